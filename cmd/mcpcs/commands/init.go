package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vikashloomba/mcpcs-go/pkg/mcpconfig"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init name",
	Short: "Create an empty server document in the config directory",
	Long: `Create <config-dir>/<name>.json containing an empty "mcpServers" map.
Existing files are never overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := mcpconfig.NewDocument(current.fs, current.settings.ConfigDir, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
		return nil
	},
}
