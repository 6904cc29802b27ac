package cli

import (
	"fmt"
	"strings"

	"github.com/provisio/provisio/engine/argo"
	"github.com/provisio/provisio/pkg/config"
	"github.com/spf13/cobra"
)

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a workflow from a named template",
		RunE:  runSubmit,
	}
	cmd.Flags().String("template", "", "workflow template filename (e.g. instance_deploy.yml)")
	cmd.Flags().String("provider", "", "provider identifier for template and config resolution")
	cmd.Flags().StringArray("param", nil, "workflow parameter as name=value (repeatable)")
	cmd.Flags().StringArray("label", nil, "workflow label as name=value (repeatable)")
	cmd.Flags().Bool("wait", false, "block until the workflow reaches a terminal status")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	template, err := cmd.Flags().GetString("template")
	if err != nil {
		return err
	}
	providerID, err := cmd.Flags().GetString("provider")
	if err != nil {
		return err
	}
	rawParams, err := cmd.Flags().GetStringArray("param")
	if err != nil {
		return err
	}
	rawLabels, err := cmd.Flags().GetStringArray("label")
	if err != nil {
		return err
	}
	wait, err := cmd.Flags().GetBool("wait")
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	pcfg, err := cfg.ForProvider(providerID)
	if err != nil {
		return err
	}
	data := &argo.SubmitData{Labels: map[string]string{}}
	for _, raw := range rawParams {
		name, value, err := splitPair(raw)
		if err != nil {
			return err
		}
		data.Parameters = append(data.Parameters, argo.Parameter{Name: name, Value: value})
	}
	for _, raw := range rawLabels {
		name, value, err := splitPair(raw)
		if err != nil {
			return err
		}
		data.Labels[name] = value
	}

	ec := argo.NewContext(pcfg)
	wf, status, err := argo.Submit(cmd.Context(), ec, pcfg, template, providerID, data, wait)
	if err != nil {
		return err
	}
	if !wait {
		cmd.Printf("workflow %s submitted\n", wf.Name())
		return nil
	}
	cmd.Printf("workflow %s finished with status %s\n", wf.Name(), status)
	return nil
}

func splitPair(raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("expected name=value, got %q", raw)
	}
	return name, value, nil
}
