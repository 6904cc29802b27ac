package argo

import (
	"context"
	"path/filepath"
	"strconv"
	"time"

	"github.com/provisio/provisio/pkg/config"
	"github.com/provisio/provisio/pkg/logger"
)

// WorkflowTypeInstanceDeploy labels workflows submitted by DeployInstance; the
// callback gateway routes finished-workflow notifications by this label.
const WorkflowTypeInstanceDeploy = "instance_deploy"

const instanceDeployTemplate = "instance_deploy.yml"

// DeployRequest describes one instance-deploy workflow submission.
type DeployRequest struct {
	ProviderID   string
	InstanceUUID string
	ServerIP     string
	Username     string
	Timezone     string
	Redeploy     bool
}

// DeployInstance submits the instance-deploy workflow for the given instance.
// The submission never waits: the second half of the deployment is resumed by
// the workflow's callback.
func DeployInstance(
	ctx context.Context,
	ec *Context,
	cfg *config.ProviderConfig,
	req *DeployRequest,
) (*Workflow, error) {
	data, err := deploySubmitData(cfg, req)
	if err != nil {
		return nil, err
	}
	wf, _, err := Submit(ctx, ec, cfg, instanceDeployTemplate, req.ProviderID, data, false)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("instance deploy workflow launched",
		"workflow", wf.Name(), "instance", req.InstanceUUID, "provider", req.ProviderID)
	return wf, nil
}

func deploySubmitData(cfg *config.ProviderConfig, req *DeployRequest) (*SubmitData, error) {
	zoneinfo, err := cfg.RequireZoneinfo()
	if err != nil {
		return nil, err
	}
	callbackURL, err := cfg.RequireCallbackURL()
	if err != nil {
		return nil, err
	}
	callbackToken, err := cfg.RequireCallbackToken()
	if err != nil {
		return nil, err
	}
	return &SubmitData{
		Parameters: []Parameter{
			{Name: "server-ip", Value: req.ServerIP},
			{Name: "user", Value: req.Username},
			{Name: "tz", Value: req.Timezone},
			{Name: "redeploy", Value: strconv.FormatBool(req.Redeploy)},
			{Name: "zoneinfo", Value: zoneinfo},
			{Name: "callback_url", Value: callbackURL},
			{Name: "callback_token", Value: callbackToken},
		},
		Labels: map[string]string{
			"workflow_type": WorkflowTypeInstanceDeploy,
			"provider":      req.ProviderID,
		},
		Annotations: map[string]string{
			"instance_uuid": req.InstanceUUID,
		},
	}, nil
}

// DumpDeployLogs dumps the workflow's per-node logs under
// {baseDir}/{username}/{instanceUUID}/{timestamp}, naming each file after the
// node's playbook input parameter when one exists. Best-effort: failures are
// logged and never returned, so a log problem cannot abort a deployment or a
// callback.
func DumpDeployLogs(ctx context.Context, ec *Context, wf *Workflow, baseDir, username, instanceUUID string) {
	log := logger.FromContext(ctx)
	timestamp := time.Now().Format("2006-01-02_150405")
	dir := filepath.Join(baseDir, username, instanceUUID, timestamp)
	nodes, err := wf.Nodes(ctx, ec)
	if err != nil {
		log.Warn("failed to list nodes for deploy log dump", "workflow", wf.Name(), "error", err)
		return
	}
	for nodeName, node := range nodes {
		filename := nodeName + ".log"
		if playbook := node.PlaybookName(); playbook != "" {
			filename = playbook + ".log"
		}
		wf.DumpPodLog(ctx, ec, nodeName, filepath.Join(dir, filename))
	}
}
