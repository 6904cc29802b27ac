package callback

import (
	"context"
	"fmt"

	"github.com/provisio/provisio/engine/argo"
	"github.com/provisio/provisio/engine/cloud"
	"github.com/provisio/provisio/pkg/config"
	"github.com/provisio/provisio/pkg/logger"
)

// InstanceDeployHandler reconciles finished instance-deploy workflows: on
// success it resumes the second half of the deployment task chain, otherwise
// it marks the instance as failed.
type InstanceDeployHandler struct {
	store  cloud.InstanceStore
	driver cloud.Driver
	queue  cloud.TaskQueue
	ec     *argo.Context
	cfg    *config.ProviderConfig
}

// NewInstanceDeployHandler builds the handler. ec may be nil when workflow log
// retrieval is unavailable; log dumping is skipped in that case.
func NewInstanceDeployHandler(
	store cloud.InstanceStore,
	driver cloud.Driver,
	queue cloud.TaskQueue,
	ec *argo.Context,
	cfg *config.ProviderConfig,
) *InstanceDeployHandler {
	return &InstanceDeployHandler{store: store, driver: driver, queue: queue, ec: ec, cfg: cfg}
}

// Verify checks the instance-deploy specific payload fields. It has no side
// effects.
func (h *InstanceDeployHandler) Verify(_ context.Context, _ string, payload map[string]any) error {
	rawUUID, ok := payload["instance_uuid"]
	if !ok {
		return payloadErrorf("missing instance uuid")
	}
	if _, ok := rawUUID.(string); !ok {
		return payloadErrorf("instance uuid not string")
	}
	rawUsername, ok := payload["username"]
	if !ok {
		return payloadErrorf("missing username")
	}
	if _, ok := rawUsername.(string); !ok {
		return payloadErrorf("username not string")
	}
	rawRedeploy, ok := payload["redeploy"]
	if !ok {
		return payloadErrorf("missing redeploy")
	}
	if _, err := parseRedeployFlag(rawRedeploy); err != nil {
		return err
	}
	return nil
}

// Handle executes the continuation or failure path for a finished workflow.
// Log dumping happens first and is best-effort; the branch dispatch never
// depends on it.
func (h *InstanceDeployHandler) Handle(ctx context.Context, workflowName string, payload map[string]any) error {
	log := logger.FromContext(ctx)
	username := payload["username"].(string)
	instanceUUID := payload["instance_uuid"].(string)
	redeploy, err := parseRedeployFlag(payload["redeploy"])
	if err != nil {
		return err
	}
	instance, found, err := h.store.FindByProviderAlias(ctx, instanceUUID)
	if err != nil {
		return fmt.Errorf("instance lookup failed: %w", err)
	}
	if !found {
		return fmt.Errorf("no instance found with provider alias %s", instanceUUID)
	}
	log.Debug("workflow callback", "workflow", workflowName,
		"username", username, "instance", instanceUUID, "redeploy", redeploy)

	h.dumpLogs(ctx, workflowName, username, instanceUUID)

	// The domain record refers to a cloud resource that must exist whenever
	// its workflow ran against it.
	live, found, err := h.driver.LiveInstance(ctx, instanceUUID)
	if err != nil {
		return fmt.Errorf("live instance lookup failed: %w", err)
	}
	if !found {
		return fmt.Errorf("no live backend instance found for %s", instanceUUID)
	}

	status, _ := payload["workflow_status"].(string)
	if status == string(argo.PhaseSucceeded) {
		return h.continueDeployment(ctx, instance, live, username, redeploy)
	}
	return h.failDeployment(ctx, workflowName, instance)
}

// continueDeployment enqueues the second half of the deployment task chain,
// fire-and-forget.
func (h *InstanceDeployHandler) continueDeployment(
	ctx context.Context,
	instance *cloud.Instance,
	live *cloud.LiveInstance,
	username string,
	redeploy bool,
) error {
	return h.queue.EnqueueContinueDeployment(ctx, &cloud.ContinueDeploymentTask{
		Instance: live,
		Identity: instance.Owner,
		Username: username,
		Redeploy: redeploy,
	})
}

// failDeployment marks the instance's transient status as a deploy error with
// a fault naming the workflow, merging metadata keys rather than replacing
// them.
func (h *InstanceDeployHandler) failDeployment(
	ctx context.Context,
	workflowName string,
	instance *cloud.Instance,
) error {
	return h.queue.EnqueueStatusUpdate(ctx, &cloud.StatusUpdateTask{
		InstanceID: instance.ID,
		Status:     cloud.StatusDeployError,
		Fault:      fmt.Sprintf("instance deploy workflow %s did not succeed", workflowName),
		Metadata:   map[string]string{"workflow_name": workflowName},
	})
}

func (h *InstanceDeployHandler) dumpLogs(ctx context.Context, workflowName, username, instanceUUID string) {
	if h.ec == nil || h.cfg == nil || h.cfg.DeployLogDir == "" {
		return
	}
	wf := argo.NewWorkflow(workflowName)
	argo.DumpDeployLogs(ctx, h.ec, wf, h.cfg.DeployLogDir, username, instanceUUID)
}

// parseRedeployFlag parses the tri-state redeploy field once at the boundary:
// a JSON boolean or one of the exact literals "true"/"false"/"True"/"False".
// Anything else fails verification.
func parseRedeployFlag(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true", "True":
			return true, nil
		case "false", "False":
			return false, nil
		}
	}
	return false, payloadErrorf("redeploy ill-formed")
}
