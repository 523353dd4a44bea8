package commands

import (
	"maps"

	"github.com/spf13/cobra"

	"github.com/vikashloomba/mcpcs-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcpcs-go/pkg/render"
)

var promptArgsLine string

func init() {
	promptsGetCmd.Flags().StringVar(&promptArgsLine, "args", "", `arguments as one string, e.g. 'lang=go style="very strict"'`)
	promptsCmd.AddCommand(promptsListCmd, promptsInfoCmd, promptsGetCmd)
	rootCmd.AddCommand(promptsCmd)
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List, inspect, and render prompts",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompts on every server, flagging names that conflict",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return current.withManager(cmd.Context(), func(m *mcpmgr.Manager) error {
			render.Prompts(cmd.OutOrStdout(), m.ListPrompts(cmd.Context()))
			return nil
		})
	},
}

var promptsInfoCmd = &cobra.Command{
	Use:   "info [server/]name",
	Short: "Show a prompt's description and arguments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.withManager(cmd.Context(), func(m *mcpmgr.Manager) error {
			matches, err := m.PromptInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			render.PromptInfo(cmd.OutOrStdout(), matches)
			return nil
		})
	},
}

var promptsGetCmd = &cobra.Command{
	Use:     "get [server/]name [key=value ...]",
	Aliases: []string{"use"},
	Short:   "Render a prompt with the given arguments",
	Example: `  mcpcs prompts get review lang=go
  mcpcs prompts get docs/summarize --args 'topic="error handling" depth=2'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		promptArgs, err := parsePromptArgs(tokenize(promptArgsLine))
		if err != nil {
			return err
		}
		positional, err := parsePromptArgs(args[1:])
		if err != nil {
			return err
		}
		maps.Copy(promptArgs, positional)

		return current.withManager(cmd.Context(), func(m *mcpmgr.Manager) error {
			rendered, err := m.GetPrompt(cmd.Context(), args[0], promptArgs)
			if err != nil {
				return err
			}
			render.PromptRender(cmd.OutOrStdout(), rendered)
			return nil
		})
	},
}
