package cli

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/provisio/provisio/engine/argo"
	"github.com/provisio/provisio/engine/callback"
	"github.com/provisio/provisio/engine/cloud"
	"github.com/provisio/provisio/pkg/config"
	"github.com/provisio/provisio/pkg/logger"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow callback HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			addr, err := cmd.Flags().GetString("addr")
			if err != nil {
				return err
			}
			providerID, err := cmd.Flags().GetString("provider")
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg, providerID, addr)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("provider", "", "provider identifier whose config binds the gateway")
	return cmd
}

func runServer(cfg *config.Config, providerID, addr string) error {
	pcfg, err := cfg.ForProvider(providerID)
	if err != nil {
		return err
	}
	ec := argo.NewContext(pcfg)

	// Standalone collaborators; a real deployment swaps these for the
	// resource catalog's implementations.
	store := cloud.NewMemoryStore()
	queue := cloud.NewLogQueue()

	reg := callback.NewRegistry()
	handler := callback.NewInstanceDeployHandler(store, store, queue, ec, pcfg)
	if err := reg.Add(argo.WorkflowTypeInstanceDeploy, handler); err != nil {
		return err
	}

	metrics, err := callback.NewMetrics(otel.GetMeterProvider().Meter("provisio/callback"))
	if err != nil {
		return err
	}
	gateway := callback.NewGateway(pcfg, reg, metrics)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api := router.Group("/api/v2")
	callback.Register(api, gateway)

	logger.Info("callback server listening", "addr", addr, "types", reg.Types())
	if err := router.Run(addr); err != nil {
		return fmt.Errorf("callback server failed: %w", err)
	}
	return nil
}
