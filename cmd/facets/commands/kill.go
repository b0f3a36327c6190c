package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/facets/cmd/facets/handlers"
)

// Kill returns the cluster kill command.
func Kill() *cobra.Command {
	var (
		opts    handlers.KillOptions
		noCloud bool
		noChef  bool
	)

	cmd := &cobra.Command{
		Use:   "kill " + targetUsage,
		Short: "Destroy the servers and node records of a cluster slice",
		Long: `Kill destroys the cloud instances and node records of the target.

Bogus servers are left alone unless --kill-bogus is given. The command
asks for confirmation and proceeds only when the answer is exactly "Yes".

WARNING: This operation is irreversible.`,
		Args: targetArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Cloud = opts.Cloud && !noCloud
			opts.Node = opts.Node && !noChef
			return handlers.Kill(cmd.Context(), args[0], opts)
		},
	}

	bindCommonFlags(cmd, &opts.Options)
	cmd.Flags().BoolVar(&opts.KillBogus, "kill-bogus", false, "Also destroy bogus servers")
	cmd.Flags().BoolVar(&opts.Cloud, "cloud", true, "Destroy cloud instances")
	cmd.Flags().BoolVar(&noCloud, "no-cloud", false, "Keep cloud instances")
	cmd.Flags().BoolVar(&opts.Node, "chef", true, "Delete node records")
	cmd.Flags().BoolVar(&noChef, "no-chef", false, "Keep node records")
	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "Answer the confirmation prompt with Yes")

	return cmd
}
