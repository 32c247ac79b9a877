package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/miuzhaii/replygate/cmd/replygate/runtime"

	"github.com/miuzhaii/replygate/internal/adapter"
	"github.com/miuzhaii/replygate/internal/daemon"
	"github.com/miuzhaii/replygate/internal/daemon/components"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start Replygate in background daemon mode",
	Long:  `Starts Replygate as a long-running service using component lifecycle orchestration. It exposes health endpoints and keeps the platform adapters connected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID := runtime.ResolveWorkspaceID(cmd)
		forceClean, _ := cmd.Flags().GetBool("force-clean-locks")

		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		daemonMgr, err := daemon.NewDaemon(workspaceID, cfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon manager: %w", err)
		}
		daemonMgr.SetForceCleanup(forceClean)

		historyComp := components.NewHistoryStoreComponent(workspaceID, cfg.Daemon.WorkspacePath, &cfg.Store)
		modelComp := components.NewModelRouterComponent(cfg.Models, cfg.Judge.ModelGroup)
		gatewayComp := components.NewGatePipelineComponent(cfg, historyComp, modelComp, nil)
		adaptersComp := components.NewAdaptersComponent(cfg.Adapters, gatewayComp, adapter.RuntimeAdapterOptions{
			RequireSlackSecrets: true,
		})

		daemonMgr.AddComponent(historyComp)
		daemonMgr.AddComponent(modelComp)
		daemonMgr.AddComponent(gatewayComp)
		daemonMgr.AddComponent(adaptersComp)

		httpDeps := []string{"HistoryStore", "ModelRouter", "GatePipeline", "Adapters"}
		if cfg.Retention.Enabled {
			daemonMgr.AddComponent(components.NewRetentionSweeperComponent(&cfg.Retention, historyComp))
			httpDeps = append(httpDeps, "RetentionSweeper")
		}
		daemonMgr.AddComponent(components.NewHTTPServerComponentWithDependencies(daemonMgr, &cfg.Server, gatewayComp, httpDeps))

		slog.Info("Replygate daemon starting up...", "port", cfg.Server.Port, "workspace", workspaceID)
		err = daemonMgr.Start(context.Background())
		if err != nil {
			// Cancellation via signal/context is a graceful shutdown case for CLI.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("Replygate daemon stopped gracefully", "workspace", workspaceID)
				return nil
			}
			return fmt.Errorf("daemon failed: %w", err)
		}

		slog.Info("Replygate daemon stopped gracefully", "workspace", workspaceID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().StringP("workspace", "w", "", "Target workspace ID")
	daemonCmd.Flags().Bool("force-clean-locks", false, "Force cleanup of stale lock files (default: warn-only)")
}
