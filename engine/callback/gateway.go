package callback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/provisio/provisio/engine/argo"
	"github.com/provisio/provisio/pkg/config"
	"github.com/provisio/provisio/pkg/logger"
)

// Result is the transport-agnostic processing outcome; the router translates
// it to an HTTP response.
type Result struct {
	Status  int
	Payload any
}

type errorEntry struct {
	Message string `json:"message"`
}

type errorBody struct {
	Errors []errorEntry `json:"errors"`
}

// Every rejection carries exactly one error entry; validation failures are
// never batched into one response.
func rejection(status int, message string) Result {
	return Result{Status: status, Payload: errorBody{Errors: []errorEntry{{Message: message}}}}
}

// Gateway authenticates, validates and dispatches inbound workflow callbacks.
// One synchronous pass per notification, no internal concurrency. Duplicate
// callbacks for the same workflow are deliberately not deduplicated here;
// idempotency, where needed, is enforced by the domain collaborator from
// current instance state.
type Gateway struct {
	cfg     *config.ProviderConfig
	reg     *Registry
	metrics *Metrics
}

func NewGateway(cfg *config.ProviderConfig, reg *Registry, metrics *Metrics) *Gateway {
	if metrics == nil {
		metrics = NoopMetrics()
	}
	return &Gateway{cfg: cfg, reg: reg, metrics: metrics}
}

// Process runs the callback pipeline: shape validation, authentication,
// workflow existence check, dispatch, then handler verify and handle.
func (g *Gateway) Process(ctx context.Context, payload map[string]any) (Result, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	g.metrics.OnReceived(ctx)
	res, err := g.process(ctx, payload)
	if err != nil {
		// The client-facing message may be generic; the full error is never
		// silently dropped.
		log.Warn("workflow callback rejected", "status", res.Status, "error", err)
		g.metrics.OnRejected(ctx, res.Status, time.Since(start))
		return res, err
	}
	log.Info("workflow callback processed", "workflow", payload["workflow_name"])
	g.metrics.OnAccepted(ctx, time.Since(start))
	return res, nil
}

func (g *Gateway) process(ctx context.Context, payload map[string]any) (Result, error) {
	wfName, err := g.verifyShape(payload)
	if err != nil {
		return toResult(err), err
	}
	if err := g.verifyToken(payload); err != nil {
		return toResult(err), err
	}
	if err := g.verifyWorkflowExists(wfName); err != nil {
		return toResult(err), err
	}
	if err := g.dispatch(ctx, wfName, payload); err != nil {
		return toResult(err), err
	}
	return Result{Status: http.StatusOK, Payload: map[string]any{"message": "workflow callback received"}}, nil
}

// verifyShape checks the fields every callback must carry, with a distinct
// message per missing vs ill-formed field. The distinction is part of the
// observable contract.
func (g *Gateway) verifyShape(payload map[string]any) (string, error) {
	rawName, ok := payload["workflow_name"]
	if !ok {
		return "", payloadErrorf("missing workflow name")
	}
	wfName, ok := rawName.(string)
	if !ok {
		return "", payloadErrorf("workflow name ill-formed")
	}
	rawToken, ok := payload["callback_token"]
	if !ok {
		return "", payloadErrorf("missing callback token")
	}
	if _, ok := rawToken.(string); !ok {
		return "", payloadErrorf("callback token ill-formed")
	}
	rawStatus, ok := payload["workflow_status"]
	if !ok {
		return "", payloadErrorf("missing workflow status")
	}
	status, ok := rawStatus.(string)
	if !ok {
		return "", payloadErrorf("workflow status ill-formed")
	}
	if _, err := argo.ParsePhase(status); err != nil {
		return "", payloadErrorf("unrecognized workflow status")
	}
	return wfName, nil
}

// verifyToken compares the callback token against the pre-shared secret by
// exact string equality. The rejection stays generic so the expected value
// never leaks; a missing secret is an operator fault, not a client one.
func (g *Gateway) verifyToken(payload map[string]any) error {
	expected, err := g.cfg.RequireCallbackToken()
	if err != nil {
		return err
	}
	token, _ := payload["callback_token"].(string)
	if token != expected {
		return payloadErrorf("bad callback token")
	}
	return nil
}

// verifyWorkflowExists is a placeholder: any workflow name is accepted without
// confirming it exists in the engine. Known gap, kept deliberately unimplemented
// until verification semantics are decided.
func (g *Gateway) verifyWorkflowExists(_ string) error {
	return nil
}

func (g *Gateway) dispatch(ctx context.Context, wfName string, payload map[string]any) error {
	rawType, ok := payload["workflow_type"]
	if !ok {
		return payloadErrorf("missing workflow type")
	}
	wfType, ok := rawType.(string)
	if !ok {
		return payloadErrorf("workflow type ill-formed")
	}
	handler, ok := g.reg.Get(wfType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorkflowType, wfType)
	}
	if err := handler.Verify(ctx, wfName, payload); err != nil {
		return err
	}
	return handler.Handle(ctx, wfName, payload)
}

// toResult maps the error taxonomy to a response: payload errors are 400 with
// the exact reason, everything else (handler failures, configuration faults,
// unknown types) is 409 carrying the error type and message for diagnosability.
func toResult(err error) Result {
	var payloadErr *PayloadError
	if errors.As(err, &payloadErr) {
		return rejection(http.StatusBadRequest, payloadErr.Message)
	}
	if errors.Is(err, ErrUnknownWorkflowType) {
		return rejection(http.StatusConflict, err.Error())
	}
	return rejection(http.StatusConflict, fmt.Sprintf("%T, %s", err, err.Error()))
}
