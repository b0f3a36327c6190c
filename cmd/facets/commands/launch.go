package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/facets/cmd/facets/handlers"
)

// Launch returns the cluster launch command.
//
// The launch command creates every missing server of the target and
// converges the existing ones. It is safe to rerun at any time.
func Launch() *cobra.Command {
	var opts handlers.LaunchOptions

	cmd := &cobra.Command{
		Use:   "launch " + targetUsage,
		Short: "Create the missing servers of a cluster slice",
		Long: `Launch reconciles the target against the cloud and creates every server
that has no live instance.

For each new server it waits until the instance is running, probes SSH
until a banner arrives, tags the instance and its volumes, attaches
volumes and addresses, and saves the node record. With --bootstrap it
then runs the server's bootstrap command over SSH.

Bogus servers (instances no declaration matches, or several instances
claiming one server) stop the launch with exit code 2 unless --force is
given.

Example:
  facets cluster launch gibbon-web -d gibbon.yaml --bootstrap --ssh-key ~/.ssh/id_ed25519`,
		Args: targetArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Launch(cmd.Context(), args[0], opts)
		},
	}

	bindCommonFlags(cmd, &opts.Options)
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Simulate cloud changes without making them")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Launch even when bogus servers exist")
	cmd.Flags().BoolVar(&opts.Bootstrap, "bootstrap", false, "Run the bootstrap command on new servers")
	cmd.Flags().StringVar(&opts.SSHUser, "ssh-user", "ubuntu", "SSH user for bootstrap")
	cmd.Flags().StringVar(&opts.SSHKey, "ssh-key", "", "SSH private key for bootstrap")
	cmd.Flags().IntVar(&opts.SSHPort, "ssh-port", 22, "SSH port for the probe and bootstrap")
	cmd.Flags().DurationVar(&opts.ProbeTimeout, "probe-timeout", 0, "Give up probing a server after this long (default: wait forever)")

	return cmd
}
