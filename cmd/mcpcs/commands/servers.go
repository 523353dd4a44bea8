package commands

import (
	"github.com/spf13/cobra"

	"github.com/vikashloomba/mcpcs-go/pkg/render"
)

func init() {
	rootCmd.AddCommand(serversCmd)
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Connect to every configured server and list the ones that answered",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, report, err := current.connect(cmd.Context())
		if err != nil {
			return err
		}
		defer m.Close(cmd.Context())
		out := cmd.OutOrStdout()
		render.LoadReport(out, report)
		render.Servers(out, m.ListServers())
		return nil
	},
}
