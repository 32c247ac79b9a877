package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/miuzhaii/replygate/cmd/replygate/runtime"

	"github.com/miuzhaii/replygate/internal/config"
	"github.com/miuzhaii/replygate/internal/history"
	"github.com/miuzhaii/replygate/internal/retention"

	"github.com/spf13/cobra"
)

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Inspect and run transcript retention",
	Long:  `Inspect rotated transcript backups and run retention sweeps outside the daemon schedule.`,
}

var retentionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List rotated transcript backups",
	Long:  `Display rotated transcript backups the retention sweeper removes once they exceed the configured max age.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID := runtime.ResolveWorkspaceID(cmd)
		workspaceRootPath := ""
		if cfg != nil {
			workspaceRootPath = cfg.Daemon.WorkspacePath
		}

		conversationsDir, err := history.GetConversationsDir(workspaceID, workspaceRootPath)
		if err != nil {
			return fmt.Errorf("failed to get conversations directory: %w", err)
		}

		matches, err := filepath.Glob(filepath.Join(conversationsDir, "*.bak"))
		if err != nil {
			return fmt.Errorf("failed to scan transcript backups: %w", err)
		}

		if len(matches) == 0 {
			fmt.Println("No rotated transcript backups found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "CONVERSATION\tSIZE\tROTATED")
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}

			name := filepath.Base(path)
			key := name
			if idx := strings.Index(name, ".jsonl."); idx > 0 {
				key = name[:idx]
			}

			fmt.Fprintf(w, "%s\t%d\t%s\n", key, info.Size(), info.ModTime().Format("2006-01-02 15:04:05"))
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}

		fmt.Printf("\nTotal: %d rotated backup(s)\n", len(matches))
		if cfg != nil {
			if cfg.Retention.Enabled {
				fmt.Printf("Sweep schedule: %s (max age %s)\n", cfg.Retention.Schedule, cfg.Retention.MaxAge)
			} else {
				fmt.Println("Retention sweeping is disabled (retention.enabled: false).")
			}
		}
		return nil
	},
}

var retentionSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one retention sweep now",
	Long:  `Delete rotated transcript backups and idle conversations older than retention.max_age, regardless of the schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithRuntime(cmd, func(r *runtime.RuntimeComponents) error {
			maxAge, err := config.DurationOrDefault(r.Config.Retention.MaxAge, config.DefaultRetentionMaxAge)
			if err != nil {
				return fmt.Errorf("parse retention max age: %w", err)
			}

			sweeper, err := retention.NewSweeper(r.Store, retention.Options{
				Schedule: r.Config.Retention.Schedule,
				MaxAge:   maxAge,
			})
			if err != nil {
				return fmt.Errorf("failed to configure retention sweeper: %w", err)
			}

			sweeper.Sweep()
			fmt.Println("✓ Retention sweep complete.")
			return nil
		})
	},
}

func init() {
	retentionCmd.AddCommand(retentionLsCmd)
	retentionCmd.AddCommand(retentionSweepCmd)
	retentionCmd.PersistentFlags().StringP("workspace", "w", "", "Target workspace ID")
	rootCmd.AddCommand(retentionCmd)
}
