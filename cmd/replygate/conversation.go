package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/miuzhaii/replygate/cmd/replygate/runtime"

	"github.com/miuzhaii/replygate/internal/history"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

var conversationCmd = &cobra.Command{
	Use:   "conversation",
	Short: "Manage conversations",
	Long:  `List and reset conversation transcripts in the workspace.`,
}

var conversationLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List tracked conversations",
	Long:  `Display all conversations with recorded transcripts.`,
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

		entries, err := os.ReadDir(conversationsDir)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("No conversations directory found (workspace not initialized yet).")
				fmt.Println("\nRun 'replygate run' to record your first conversation.")
				return nil
			}
			return fmt.Errorf("failed to read conversations directory: %w", err)
		}

		var keys []string
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jsonl") {
				keys = append(keys, strings.TrimSuffix(entry.Name(), ".jsonl"))
			}
		}

		if len(keys) == 0 {
			fmt.Println("No conversations found.")
			fmt.Println("\nRun 'replygate run' to record your first conversation.")
			return nil
		}

		fmt.Println("Conversations:")
		for _, key := range keys {
			fmt.Printf("- %s\n", key)
		}

		fmt.Printf("\nTotal: %d conversation(s)\n", len(keys))
		return nil
	},
}

var conversationResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Reset a conversation (delete transcript)",
	Long:  `Delete the recorded transcript for a specific conversation.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationKey := args[0]
		workspaceID := runtime.ResolveWorkspaceID(cmd)
		workspaceRootPath := ""
		if cfg != nil {
			workspaceRootPath = cfg.Daemon.WorkspacePath
		}

		lockPath, err := history.GetLockPath(workspaceID, workspaceRootPath)
		if err != nil {
			return fmt.Errorf("failed to get lock path: %w", err)
		}

		fileLock := flock.New(lockPath)
		locked, err := fileLock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("workspace is locked by another Replygate instance")
		}
		defer fileLock.Unlock()

		conversationsDir, err := history.GetConversationsDir(workspaceID, workspaceRootPath)
		if err != nil {
			return fmt.Errorf("failed to get conversations directory: %w", err)
		}

		transcriptPath := filepath.Join(conversationsDir, conversationKey+".jsonl")
		if err := os.Remove(transcriptPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete transcript: %w", err)
		}

		fmt.Printf("✓ Conversation '%s' reset successfully.\n", conversationKey)
		return nil
	},
}

func init() {
	conversationCmd.AddCommand(conversationLsCmd)
	conversationCmd.AddCommand(conversationResetCmd)
	conversationCmd.PersistentFlags().StringP("workspace", "w", "", "Target workspace ID")
	rootCmd.AddCommand(conversationCmd)
}
