// Package orchestration runs the two user-facing workflows over a slice of
// a cluster: launch and kill.
//
// Both start with the same pass: fetch the cloud inventory and node records,
// pair them with the declared servers, and show the result. What follows
// differs.
//
// # Launch
//
// The Launcher executes these phases in order:
//  1. Reconcile - inventory, pairing, coordinator enrichment
//  2. Check - stop on bogus servers unless forced, stop if nothing is launchable
//  3. Lint - every launchable server needs an image and a flavor
//  4. Create - submit creation for the whole batch
//  5. Post-launch - per server, concurrently: wait for ready, probe,
//     refresh and sync to the cloud, save the node record, bootstrap
//  6. Report - the final display with per-server outcomes
//
// # Kill
//
// The Killer selects killable servers (and bogus ones when asked), asks for
// an exact "Yes", then destroys cloud instances and node records in two
// passes.
//
// # Usage
//
//	launcher := orchestration.NewLauncher(provider, nodes, resolver)
//	launcher.Reporter = display.NewTable(os.Stdout)
//	err := launcher.Launch(pctx, slice, orchestration.LaunchOptions{Bootstrap: true})
//
// A launch can be rerun at any time: servers that already have a live
// instance are left alone, and partially converged servers are finished.
package orchestration
