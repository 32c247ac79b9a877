package main

import (
	"fmt"
	"strings"

	"github.com/miuzhaii/replygate/cmd/replygate/runtime"

	"github.com/miuzhaii/replygate/internal/message"

	"github.com/spf13/cobra"
)

var judgeCmd = &cobra.Command{
	Use:   "judge [text]",
	Short: "Run a one-shot reply judgment",
	Long:  `Asks the judgment engine whether the given message deserves a reply. The message is evaluated against the conversation's recent history but is not recorded into it.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		conversationKey, _ := cmd.Flags().GetString("conversation")
		if conversationKey == "" {
			conversationKey = message.Key(message.KindPrivate, "cli")
		}

		return executeWithRuntime(cmd, func(r *runtime.RuntimeComponents) error {
			verdict := r.Engine.ShouldReply(r.Ctx, text, conversationKey)

			fmt.Printf("Conversation: %s\n", conversationKey)
			if verdict {
				fmt.Println("Verdict: reply")
			} else {
				fmt.Println("Verdict: skip")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(judgeCmd)
	judgeCmd.Flags().StringP("workspace", "w", "", "Target workspace ID")
	judgeCmd.Flags().StringP("conversation", "c", "", "Conversation key to evaluate against (default private_cli)")
}
