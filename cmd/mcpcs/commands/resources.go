package commands

import (
	"github.com/spf13/cobra"

	"github.com/vikashloomba/mcpcs-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcpcs-go/pkg/render"
)

var resourceServer string

func init() {
	resourcesCmd.PersistentFlags().StringVarP(&resourceServer, "server", "s", "",
		"pin the resource to one server (needed for conflicting scheme://... URIs)")
	resourcesCmd.AddCommand(resourcesListCmd, resourcesInfoCmd, resourcesReadCmd, resourcesDownloadCmd)
	rootCmd.AddCommand(resourcesCmd)
}

var resourcesCmd = &cobra.Command{
	Use:     "resources",
	Aliases: []string{"res"},
	Short:   "List, inspect, read, and download resources",
}

var resourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources on every server, flagging URIs that conflict",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return current.withManager(cmd.Context(), func(m *mcpmgr.Manager) error {
			render.Resources(cmd.OutOrStdout(), m.ListResources(cmd.Context()))
			return nil
		})
	},
}

var resourcesInfoCmd = &cobra.Command{
	Use:   "info uri",
	Short: "Show a resource's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.withManager(cmd.Context(), func(m *mcpmgr.Manager) error {
			matches, err := m.ResourceInfoSpec(cmd.Context(), resourceSpec(args[0]))
			if err != nil {
				return err
			}
			render.ResourceInfo(cmd.OutOrStdout(), matches)
			return nil
		})
	},
}

var resourcesReadCmd = &cobra.Command{
	Use:   "read uri",
	Short: "Print a resource's contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.withManager(cmd.Context(), func(m *mcpmgr.Manager) error {
			read, err := m.ReadResourceSpec(cmd.Context(), resourceSpec(args[0]))
			if err != nil {
				return err
			}
			render.ResourceRead(cmd.OutOrStdout(), read)
			return nil
		})
	},
}

var resourcesDownloadCmd = &cobra.Command{
	Use:     "download uri path",
	Aliases: []string{"down"},
	Short:   "Write a resource's first content item to a local file",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.withManager(cmd.Context(), func(m *mcpmgr.Manager) error {
			dl, err := m.DownloadResourceSpec(cmd.Context(), resourceSpec(args[0]), args[1])
			if err != nil {
				return err
			}
			render.Download(cmd.OutOrStdout(), dl)
			return nil
		})
	},
}

// resourceSpec parses arg, letting --server override any qualifier.
func resourceSpec(arg string) mcpmgr.Spec {
	spec := mcpmgr.ParseSpec(arg)
	if resourceServer != "" {
		spec.Server = resourceServer
	}
	return spec
}
