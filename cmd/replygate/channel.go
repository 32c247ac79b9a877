package main

import (
	"fmt"

	"github.com/miuzhaii/replygate/cmd/replygate/runtime"

	"github.com/miuzhaii/replygate/internal/cli/format"
	"github.com/miuzhaii/replygate/internal/message"

	"github.com/spf13/cobra"
)

var channelCmd = &cobra.Command{
	Use:   "channel",
	Short: "Manage channel persona bindings",
	Long:  `Bind conversations to personas so the judgment engine adopts a channel-specific voice instead of the workspace default.`,
}

var channelLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List channel bindings",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFormat, _ := cmd.Flags().GetString("output")

		return executeWithRuntime(cmd, func(r *runtime.RuntimeComponents) error {
			bindings, err := r.Store.ListChannelBindings()
			if err != nil {
				return fmt.Errorf("failed to list channel bindings: %w", err)
			}

			formatterFactory := format.NewFormatterFactory()
			bindingFormatter, err := formatterFactory.Create(format.OutputFormat(outputFormat))
			if err != nil {
				return fmt.Errorf("invalid output format: %w", err)
			}

			output, err := bindingFormatter.FormatBindings(bindings)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}

			fmt.Println(output)
			return nil
		})
	},
}

var channelBindCmd = &cobra.Command{
	Use:   "bind [conversation-key] [persona-id]",
	Short: "Bind a conversation to a persona",
	Long:  `Bind a conversation key (e.g. group_123 or private_42) to a persona. The binding takes precedence over the workspace default persona.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationKey := args[0]
		personaID := args[1]

		if _, _, ok := message.SplitKey(conversationKey); !ok {
			return fmt.Errorf("invalid conversation key %q (expected private_<id> or group_<id>)", conversationKey)
		}

		return executeWithRuntime(cmd, func(r *runtime.RuntimeComponents) error {
			if err := r.Store.BindChannel(conversationKey, personaID); err != nil {
				return fmt.Errorf("failed to bind channel: %w", err)
			}
			fmt.Printf("✓ Conversation '%s' bound to persona '%s'.\n", conversationKey, personaID)
			return nil
		})
	},
}

var channelUnbindCmd = &cobra.Command{
	Use:   "unbind [conversation-key]",
	Short: "Remove a conversation's persona binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationKey := args[0]

		return executeWithRuntime(cmd, func(r *runtime.RuntimeComponents) error {
			if err := r.Store.BindChannel(conversationKey, ""); err != nil {
				return fmt.Errorf("failed to unbind channel: %w", err)
			}
			fmt.Printf("✓ Conversation '%s' unbound.\n", conversationKey)
			return nil
		})
	},
}

func init() {
	channelLsCmd.Flags().StringP("output", "o", "table", "Output format (table|json|yaml)")

	channelCmd.AddCommand(channelLsCmd)
	channelCmd.AddCommand(channelBindCmd)
	channelCmd.AddCommand(channelUnbindCmd)
	channelCmd.PersistentFlags().StringP("workspace", "w", "", "Target workspace ID")
	rootCmd.AddCommand(channelCmd)
}
