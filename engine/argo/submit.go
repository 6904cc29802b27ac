package argo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/provisio/provisio/pkg/config"
	"github.com/provisio/provisio/pkg/logger"
)

// Two-phase polling policy for synchronous submissions: a short fast phase to
// catch quick completions cheaply, then a long-tail safety net of about a day.
const (
	fastPollInterval = 10 * time.Second
	fastPollAttempts = 18
	slowPollInterval = 60 * time.Second
	slowPollAttempts = 1440
)

// LookupTemplate resolves a workflow template by filename under baseDir. A
// provider-specific file ({baseDir}/{providerID}/{filename}) is preferred over
// the shared default ({baseDir}/{filename}).
func LookupTemplate(baseDir, filename, providerID string) (map[string]any, error) {
	candidates := []string{
		filepath.Join(baseDir, providerID, filename),
		filepath.Join(baseDir, filename),
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read workflow template %s: %w", path, err)
		}
		var def map[string]any
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("failed to parse workflow template %s: %w", path, err)
		}
		return def, nil
	}
	return nil, fmt.Errorf("workflow template %s not found under %s", filename, baseDir)
}

// Submit resolves the named template for the provider, merges caller data into
// it and submits it through the execution context.
//
// With wait false the handle is returned immediately with the no-status value;
// completion is signalled by the external callback. With wait true the call
// blocks on the two-phase polling policy and returns the first terminal
// status, or the last observed one when both phases exhaust. The two modes are
// mutually exclusive per submission.
func Submit(
	ctx context.Context,
	ec *Context,
	cfg *config.ProviderConfig,
	templateName string,
	providerID string,
	data *SubmitData,
	wait bool,
) (*Workflow, Status, error) {
	log := logger.FromContext(ctx)
	// Never submit a workflow that the callback path cannot later validate.
	if err := requireCallbackConfig(cfg); err != nil {
		return nil, Status{}, err
	}
	def, err := LookupTemplate(cfg.WorkflowBaseDir, templateName, providerID)
	if err != nil {
		return nil, Status{}, err
	}
	def, err = MergeSubmitData(def, data)
	if err != nil {
		return nil, Status{}, err
	}
	name, err := ec.Client().SubmitWorkflow(ctx, def)
	if err != nil {
		return nil, Status{}, err
	}
	wf := NewWorkflow(name)
	log.Info("workflow submitted", "workflow", name, "template", templateName, "provider", providerID)
	if !wait {
		return wf, NoStatusValue(), nil
	}
	status, err := watchTwoPhase(ctx, ec, wf)
	if err != nil {
		return wf, Status{}, err
	}
	return wf, status, nil
}

func watchTwoPhase(ctx context.Context, ec *Context, wf *Workflow) (Status, error) {
	status, err := wf.Watch(ctx, ec, fastPollInterval, fastPollAttempts)
	if err != nil {
		return Status{}, err
	}
	if status.Complete() {
		return status, nil
	}
	return wf.Watch(ctx, ec, slowPollInterval, slowPollAttempts)
}

func requireCallbackConfig(cfg *config.ProviderConfig) error {
	if _, err := cfg.RequireCallbackToken(); err != nil {
		return err
	}
	if _, err := cfg.RequireCallbackURL(); err != nil {
		return err
	}
	if _, err := cfg.RequireZoneinfo(); err != nil {
		return err
	}
	return nil
}
