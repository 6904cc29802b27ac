package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/provisio/provisio/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "bbbbbbbbbbbbbbbbbbbbbbbbbb"

type recordingHandler struct {
	verifyErr error
	handleErr error
	verified  int
	handled   int
}

func (h *recordingHandler) Verify(_ context.Context, _ string, _ map[string]any) error {
	h.verified++
	return h.verifyErr
}

func (h *recordingHandler) Handle(_ context.Context, _ string, _ map[string]any) error {
	h.handled++
	return h.handleErr
}

func testGateway(t *testing.T, handler Handler) *Gateway {
	t.Helper()
	reg := NewRegistry()
	if handler != nil {
		require.NoError(t, reg.Add("instance_deploy", handler))
	}
	cfg := &config.ProviderConfig{CallbackToken: testSecret}
	return NewGateway(cfg, reg, nil)
}

func postCallback(t *testing.T, g *Gateway, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	Register(router.Group("/api/v2"), g)
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v2/workflow_callback", bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	return body.Errors[0].Message
}

func validPayload() map[string]any {
	return map[string]any{
		"workflow_name":   "wf-name",
		"callback_token":  testSecret,
		"workflow_type":   "instance_deploy",
		"workflow_status": "Succeeded",
	}
}

func TestGateway_ShapeValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(map[string]any)
		message string
	}{
		{"missing workflow name", func(p map[string]any) { delete(p, "workflow_name") }, "missing workflow name"},
		{"ill-formed workflow name", func(p map[string]any) { p["workflow_name"] = 123 }, "workflow name ill-formed"},
		{"missing callback token", func(p map[string]any) { delete(p, "callback_token") }, "missing callback token"},
		{"ill-formed callback token", func(p map[string]any) { p["callback_token"] = 123 }, "callback token ill-formed"},
		{"missing workflow status", func(p map[string]any) { delete(p, "workflow_status") }, "missing workflow status"},
		{"ill-formed workflow status", func(p map[string]any) { p["workflow_status"] = 123 }, "workflow status ill-formed"},
		{"unrecognized workflow status", func(p map[string]any) { p["workflow_status"] = "FooBar" }, "unrecognized workflow status"},
	}
	for _, tc := range cases {
		t.Run("Should reject "+tc.name+" with the exact reason", func(t *testing.T) {
			handler := &recordingHandler{}
			payload := validPayload()
			tc.mutate(payload)
			rec := postCallback(t, testGateway(t, handler), payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.message, errorMessage(t, rec))
			assert.Zero(t, handler.handled)
		})
	}
}

func TestGateway_Authentication(t *testing.T) {
	t.Run("Should reject a bad token without leaking the expected value", func(t *testing.T) {
		payload := validPayload()
		payload["callback_token"] = "bad-token-123"
		rec := postCallback(t, testGateway(t, &recordingHandler{}), payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		msg := errorMessage(t, rec)
		assert.Contains(t, msg, "bad callback token")
		assert.NotContains(t, msg, testSecret)
	})
	t.Run("Should surface a missing callback secret as a server-side fault", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Add("instance_deploy", &recordingHandler{}))
		g := NewGateway(&config.ProviderConfig{}, reg, nil)
		rec := postCallback(t, g, validPayload())
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, errorMessage(t, rec), "callback_token")
	})
}

func TestGateway_Dispatch(t *testing.T) {
	t.Run("Should reject an unknown workflow type", func(t *testing.T) {
		payload := validPayload()
		payload["workflow_type"] = "wf-type-123"
		rec := postCallback(t, testGateway(t, &recordingHandler{}), payload)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, errorMessage(t, rec), "unknown workflow type")
	})
	t.Run("Should reject a missing workflow type", func(t *testing.T) {
		payload := validPayload()
		delete(payload, "workflow_type")
		rec := postCallback(t, testGateway(t, &recordingHandler{}), payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing workflow type", errorMessage(t, rec))
	})
	t.Run("Should acknowledge a fully valid callback", func(t *testing.T) {
		handler := &recordingHandler{}
		rec := postCallback(t, testGateway(t, handler), validPayload())
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message": "workflow callback received"}`, rec.Body.String())
		assert.Equal(t, 1, handler.verified)
		assert.Equal(t, 1, handler.handled)
	})
	t.Run("Should not invoke handle when verify fails", func(t *testing.T) {
		handler := &recordingHandler{verifyErr: payloadErrorf("missing instance uuid")}
		rec := postCallback(t, testGateway(t, handler), validPayload())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing instance uuid", errorMessage(t, rec))
		assert.Equal(t, 1, handler.verified)
		assert.Zero(t, handler.handled)
	})
	t.Run("Should map handler-internal failures to 409 with type and message", func(t *testing.T) {
		handler := &recordingHandler{handleErr: assert.AnError}
		rec := postCallback(t, testGateway(t, handler), validPayload())
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, errorMessage(t, rec), assert.AnError.Error())
	})
	t.Run("Should process duplicate callbacks for the same workflow independently", func(t *testing.T) {
		// Deduplication is a domain-collaborator concern; the gateway runs
		// every authenticated callback it receives.
		handler := &recordingHandler{}
		g := testGateway(t, handler)
		for range 2 {
			rec := postCallback(t, g, validPayload())
			assert.Equal(t, http.StatusOK, rec.Code)
		}
		assert.Equal(t, 2, handler.handled)
	})
}

func TestGateway_BodyDecoding(t *testing.T) {
	t.Run("Should reject a malformed JSON body", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		Register(router.Group("/api/v2"), testGateway(t, &recordingHandler{}))
		req := httptest.NewRequest(http.MethodPost, "/api/v2/workflow_callback", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "request body ill-formed", errorMessage(t, rec))
	})
}
