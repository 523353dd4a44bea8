package commands

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/vikashloomba/mcpcs-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcpcs-go/pkg/render"
)

func init() {
	toolsCmd.AddCommand(toolsListCmd, toolsInfoCmd, toolsCallCmd)
	rootCmd.AddCommand(toolsCmd)
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List, inspect, and call tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools on every server, flagging names that conflict",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return current.withManager(cmd.Context(), func(m *mcpmgr.Manager) error {
			render.Tools(cmd.OutOrStdout(), m.ListTools(cmd.Context()))
			return nil
		})
	},
}

var toolsInfoCmd = &cobra.Command{
	Use:   "info [server/]name",
	Short: "Show a tool's description and schemas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.withManager(cmd.Context(), func(m *mcpmgr.Manager) error {
			matches, err := m.ToolInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			render.ToolInfo(cmd.OutOrStdout(), matches)
			return nil
		})
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call [server/]name [json-arguments]",
	Short: "Call a tool with a JSON object of arguments (default {})",
	Example: `  mcpcs tools call echo '{"text": "hi"}'
  mcpcs tools call github/search '{"query": "mcp"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw string
		if len(args) == 2 {
			raw = args[1]
		}
		toolArgs, err := parseToolArgs(raw)
		if err != nil {
			return err
		}
		return current.withManager(cmd.Context(), func(m *mcpmgr.Manager) error {
			call, err := m.CallTool(cmd.Context(), args[0], toolArgs)
			if err != nil {
				return err
			}
			render.ToolCall(cmd.OutOrStdout(), call)
			return nil
		})
	},
}

// parseToolArgs decodes the tool argument object. Empty input means {}.
func parseToolArgs(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "tool arguments must be a JSON object"),
			`quote the object for your shell, e.g. '{"key": "value"}'`)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
