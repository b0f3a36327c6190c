package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/facets/cmd/facets/handlers"
)

// Show returns the cluster show command.
func Show() *cobra.Command {
	var opts handlers.Options

	cmd := &cobra.Command{
		Use:   "show " + targetUsage,
		Short: "Show the state of a cluster slice",
		Args:  targetArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Show(cmd.Context(), args[0], opts)
		},
	}

	bindCommonFlags(cmd, &opts)
	return cmd
}
