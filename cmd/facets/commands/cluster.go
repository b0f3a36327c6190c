package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imamik/facets/cmd/facets/handlers"
)

const targetUsage = "CLUSTER[-FACET[-INDEXES]]"

// Cluster returns the cluster command group.
func Cluster() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Launch, kill and inspect cluster servers",
		Long: `Work on a slice of a cluster.

A target names the cluster, optionally one facet, and optionally some of
its servers by index. Indexes are a comma separated list of numbers and
inclusive ranges:

  gibbon              every server of the cluster
  gibbon-web          every server of the web facet
  gibbon-web-0..2,5   servers 0, 1, 2 and 5 of the web facet`,
	}

	cmd.AddCommand(Launch())
	cmd.AddCommand(Kill())
	cmd.AddCommand(Show())

	return cmd
}

// bindCommonFlags registers the flags every cluster command shares.
func bindCommonFlags(cmd *cobra.Command, opts *handlers.Options) {
	cmd.Flags().StringVarP(&opts.Definition, "definition", "d", handlers.DefaultDefinitionPath, "Path to the cluster definition")
	cmd.Flags().StringVar(&opts.Settings, "settings", "", "Path to a settings document layered over the definition")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "Cloud provider: hcloud, ec2 or fake (default: from the definition)")
	cmd.Flags().StringVar(&opts.NodeStore, "node-store", handlers.DefaultNodeStore, "Node store: memory, bolt:PATH or s3://BUCKET[/PREFIX]")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file when done")
}

// targetArg requires exactly one target and shows the usage otherwise.
func targetArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected one target %s, got %d\n\n%s", targetUsage, len(args), cmd.UsageString())
	}
	return nil
}
