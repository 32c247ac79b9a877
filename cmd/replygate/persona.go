package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/miuzhaii/replygate/cmd/replygate/runtime"

	"github.com/miuzhaii/replygate/internal/cli/format"
	"github.com/miuzhaii/replygate/internal/history"

	"github.com/spf13/cobra"
)

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Manage personas",
	Long:  `Manage the personas the judgment engine can adopt, including the workspace default.`,
}

var personaLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFormat, _ := cmd.Flags().GetString("output")

		return executeWithRuntime(cmd, func(r *runtime.RuntimeComponents) error {
			personas, err := r.Store.ListPersonas()
			if err != nil {
				return fmt.Errorf("failed to list personas: %w", err)
			}
			defaultID, err := r.Store.DefaultPersonaID()
			if err != nil {
				return fmt.Errorf("failed to resolve default persona: %w", err)
			}

			formatterFactory := format.NewFormatterFactory()
			personaFormatter, err := formatterFactory.Create(format.OutputFormat(outputFormat))
			if err != nil {
				return fmt.Errorf("invalid output format: %w", err)
			}

			output, err := personaFormatter.FormatPersonas(personas, defaultID)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}

			fmt.Println(output)
			return nil
		})
	},
}

var personaShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show persona details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		personaID := args[0]
		outputFormat, _ := cmd.Flags().GetString("output")

		return executeWithRuntime(cmd, func(r *runtime.RuntimeComponents) error {
			persona, err := r.Store.GetPersona(personaID)
			if err != nil {
				return fmt.Errorf("failed to get persona: %w", err)
			}
			defaultID, err := r.Store.DefaultPersonaID()
			if err != nil {
				return fmt.Errorf("failed to resolve default persona: %w", err)
			}

			formatterFactory := format.NewFormatterFactory()
			personaFormatter, err := formatterFactory.Create(format.OutputFormat(outputFormat))
			if err != nil {
				return fmt.Errorf("invalid output format: %w", err)
			}

			isDefault := persona != nil && persona.ID == defaultID
			output, err := personaFormatter.FormatPersona(persona, isDefault)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}

			fmt.Println(output)
			return nil
		})
	},
}

var personaAddCmd = &cobra.Command{
	Use:   "add [id]",
	Short: "Add or update a persona",
	Long:  `Save a persona under the given id. The prompt text comes from --content or --file; an existing persona with the same id is overwritten.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		personaID := strings.TrimSpace(args[0])
		if personaID == "" {
			return fmt.Errorf("persona id cannot be empty")
		}

		name, _ := cmd.Flags().GetString("name")
		content, _ := cmd.Flags().GetString("content")
		file, _ := cmd.Flags().GetString("file")

		if content != "" && file != "" {
			return fmt.Errorf("--content and --file are mutually exclusive")
		}
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read persona file: %w", err)
			}
			content = string(data)
		}
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("persona content is required (use --content or --file)")
		}
		if name == "" {
			name = personaID
		}

		return executeWithRuntime(cmd, func(r *runtime.RuntimeComponents) error {
			if err := r.Store.SavePersona(history.Persona{ID: personaID, Name: name, Content: content}); err != nil {
				return fmt.Errorf("failed to save persona: %w", err)
			}
			fmt.Printf("✓ Persona '%s' saved.\n", personaID)
			return nil
		})
	},
}

var personaRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Remove a persona",
	Long:  `Delete a persona. If it was the workspace default, the default is cleared.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		personaID := args[0]

		return executeWithRuntime(cmd, func(r *runtime.RuntimeComponents) error {
			if err := r.Store.DeletePersona(personaID); err != nil {
				return fmt.Errorf("failed to delete persona: %w", err)
			}
			fmt.Printf("✓ Persona '%s' removed.\n", personaID)
			return nil
		})
	},
}

var personaSetDefaultCmd = &cobra.Command{
	Use:   "set-default [id]",
	Short: "Set the workspace default persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		personaID := args[0]

		return executeWithRuntime(cmd, func(r *runtime.RuntimeComponents) error {
			if err := r.Store.SetDefaultPersona(personaID); err != nil {
				return fmt.Errorf("failed to set default persona: %w", err)
			}
			fmt.Printf("✓ Default persona set to '%s'.\n", personaID)
			return nil
		})
	},
}

func init() {
	personaLsCmd.Flags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	personaShowCmd.Flags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	personaAddCmd.Flags().String("name", "", "Display name (defaults to the id)")
	personaAddCmd.Flags().String("content", "", "Inline persona prompt")
	personaAddCmd.Flags().String("file", "", "Read the persona prompt from a file")

	personaCmd.AddCommand(personaLsCmd)
	personaCmd.AddCommand(personaShowCmd)
	personaCmd.AddCommand(personaAddCmd)
	personaCmd.AddCommand(personaRmCmd)
	personaCmd.AddCommand(personaSetDefaultCmd)
	personaCmd.PersistentFlags().StringP("workspace", "w", "", "Target workspace ID")
	rootCmd.AddCommand(personaCmd)
}
