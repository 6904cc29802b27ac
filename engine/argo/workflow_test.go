package argo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/provisio/provisio/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T, srv *httptest.Server) *Context {
	t.Helper()
	parsed, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)
	return NewContext(&config.ProviderConfig{
		APIHost:   "127.0.0.1",
		APIPort:   port,
		Namespace: "argo",
	})
}

func phaseResponse(w http.ResponseWriter, phase string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"metadata": map[string]any{"name": "wf-test"},
		"status":   map[string]any{"phase": phase},
	})
}

func TestWorkflow_Status(t *testing.T) {
	t.Run("Should project only the phase field", func(t *testing.T) {
		var gotFields string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotFields = r.URL.Query().Get("fields")
			phaseResponse(w, "Running")
		}))
		defer srv.Close()
		wf := NewWorkflow("wf-test")
		status, err := wf.Status(context.Background(), testContext(t, srv))
		require.NoError(t, err)
		assert.Equal(t, "status.phase", gotFields)
		assert.Equal(t, PhaseRunning, status.Phase())
		assert.False(t, status.Complete())
	})
	t.Run("Should return the no-status value when the status block is absent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"metadata": map[string]any{"name": "wf-test"}})
		}))
		defer srv.Close()
		wf := NewWorkflow("wf-test")
		status, err := wf.Status(context.Background(), testContext(t, srv))
		require.NoError(t, err)
		assert.True(t, status.NoStatus())
	})
	t.Run("Should fail on an unrecognized phase literal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			phaseResponse(w, "Bogus")
		}))
		defer srv.Close()
		wf := NewWorkflow("wf-test")
		_, err := wf.Status(context.Background(), testContext(t, srv))
		var unrecognized *UnrecognizedPhaseError
		require.ErrorAs(t, err, &unrecognized)
	})
	t.Run("Should propagate backend HTTP errors verbatim", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}))
		defer srv.Close()
		wf := NewWorkflow("wf-test")
		_, err := wf.Status(context.Background(), testContext(t, srv))
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	})
}

func TestWorkflow_Watch(t *testing.T) {
	t.Run("Should return success on the final attempt using exactly that many queries", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 18 {
				phaseResponse(w, "Running")
				return
			}
			phaseResponse(w, "Succeeded")
		}))
		defer srv.Close()
		wf := NewWorkflow("wf-test")
		status, err := wf.Watch(context.Background(), testContext(t, srv), time.Millisecond, 18)
		require.NoError(t, err)
		assert.True(t, status.Success())
		assert.EqualValues(t, 18, calls.Load())
	})
	t.Run("Should return the last incomplete status when attempts exhaust", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			phaseResponse(w, "Running")
		}))
		defer srv.Close()
		wf := NewWorkflow("wf-test")
		status, err := wf.Watch(context.Background(), testContext(t, srv), time.Millisecond, 3)
		require.NoError(t, err)
		assert.False(t, status.Complete())
		assert.Equal(t, PhaseRunning, status.Phase())
	})
}

func TestWorkflow_Nodes(t *testing.T) {
	t.Run("Should decode the execution graph keyed by node name", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": map[string]any{
					"nodes": map[string]any{
						"wf-test-123": map[string]any{
							"id":          "wf-test-123",
							"displayName": "deploy",
							"phase":       "Succeeded",
							"inputs": map[string]any{
								"parameters": []map[string]any{
									{"name": "playbook", "value": "/playbooks/setup_user.yml"},
								},
							},
						},
					},
				},
			})
		}))
		defer srv.Close()
		wf := NewWorkflow("wf-test")
		nodes, err := wf.Nodes(context.Background(), testContext(t, srv))
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		node := nodes["wf-test-123"]
		assert.Equal(t, "deploy", node.DisplayName)
		assert.Equal(t, "setup_user.yml", node.PlaybookName())
	})
}

func TestWorkflow_DumpPodLog(t *testing.T) {
	t.Run("Should append log lines and create parent directories", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "main", r.URL.Query().Get("logOptions.container"))
			_, _ = w.Write([]byte(
				`{"result":{"content":"line one"}}` + "\n" + `{"result":{"content":"line two"}}` + "\n"))
		}))
		defer srv.Close()
		wf := NewWorkflow("wf-test")
		path := filepath.Join(t.TempDir(), "nested", "node.log")
		wf.DumpPodLog(context.Background(), testContext(t, srv), "wf-test-123", path)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "line one\nline two\n", string(data))
	})
	t.Run("Should swallow backend failures", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()
		wf := NewWorkflow("wf-test")
		path := filepath.Join(t.TempDir(), "node.log")
		wf.DumpPodLog(context.Background(), testContext(t, srv), "wf-test-123", path)
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestWorkflow_Definition(t *testing.T) {
	t.Run("Should cache the definition unless a refetch is forced", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			assert.Equal(t, "-status", r.URL.Query().Get("fields"))
			_ = json.NewEncoder(w).Encode(map[string]any{"metadata": map[string]any{"name": "wf-test"}})
		}))
		defer srv.Close()
		wf := NewWorkflow("wf-test")
		ec := testContext(t, srv)
		_, err := wf.Definition(context.Background(), ec, false)
		require.NoError(t, err)
		_, err = wf.Definition(context.Background(), ec, false)
		require.NoError(t, err)
		assert.EqualValues(t, 1, calls.Load())
		_, err = wf.Definition(context.Background(), ec, true)
		require.NoError(t, err)
		assert.EqualValues(t, 2, calls.Load())
	})
}
