// Package main is the entry point for the facets CLI.
//
// facets converges cloud clusters declared as facets of identical servers:
// it launches what is missing, kills what is asked for, and shows how the
// declaration compares to what runs.
//
// Commands: cluster launch, cluster kill, cluster show, version.
//
// For detailed usage information, run:
//
//	facets --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/facets/cmd/facets/commands"
	"github.com/imamik/facets/cmd/facets/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	err := commands.Root().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	stop()
	os.Exit(handlers.ExitCode(err))
}
