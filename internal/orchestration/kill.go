package orchestration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/platform/nodestore"
	"github.com/imamik/facets/internal/provisioning"
	"github.com/imamik/facets/internal/provisioning/converge"
	"github.com/imamik/facets/internal/reconcile"
	"github.com/imamik/facets/internal/topology"
)

const killPhase = "kill"

// KillOptions controls a kill run.
type KillOptions struct {
	// KillBogus adds bogus servers to the targets.
	KillBogus bool
	// Cloud destroys the servers' instances.
	Cloud bool
	// Node deletes the servers' node records.
	Node bool
}

// Killer destroys the servers of a slice after an explicit confirmation.
type Killer struct {
	Provider  cloud.Provider
	Nodes     nodestore.Store
	Reporter  Reporter
	Confirmer Confirmer
}

// NewKiller creates a killer.
func NewKiller(p cloud.Provider, nodes nodestore.Store, confirmer Confirmer) *Killer {
	return &Killer{Provider: p, Nodes: nodes, Confirmer: confirmer}
}

// Kill destroys the killable servers of slice. Nothing is destroyed unless
// the confirmer answers exactly "Yes".
func (k *Killer) Kill(pctx *provisioning.Context, slice *topology.Slice, opts KillOptions) error {
	reporter := k.Reporter
	if reporter == nil {
		reporter = discardReporter{}
	}

	p, err := reconcileSlice(pctx, k.Provider, k.Nodes, slice, killPhase)
	if err != nil {
		return err
	}
	res := p.result
	targets := killTargets(res, opts.KillBogus)

	if bogus := res.Bogus(); len(bogus) > 0 {
		reporter.Bogus(bogus)
	}
	reporter.Servers(res, nil)

	nodes, servers := 0, 0
	for _, s := range targets {
		if opts.Node && s.Node != nil {
			nodes++
		}
		if opts.Cloud {
			servers += liveInstances(s)
		}
	}
	if nodes == 0 && servers == 0 {
		reporter.Notice("Nothing to kill.")
		return nil
	}

	if k.Confirmer == nil {
		return ErrNotConfirmed
	}
	answer, err := k.Confirmer.Ask(pctx, KillPrompt(nodes, servers))
	if err != nil {
		return fmt.Errorf("failed to confirm: %w", err)
	}
	if !confirmed(answer) {
		return ErrNotConfirmed
	}

	exec := converge.NewExecutor(pctx, k.Provider, k.Nodes)
	var errs []error
	if opts.Cloud {
		pctx.Observer.Printf("[%s] Killing %d cloud servers", killPhase, servers)
		for _, s := range targets {
			errs = append(errs, exec.Destroy(pctx, s, converge.DestroyOptions{Cloud: true}))
		}
	}
	if opts.Node {
		pctx.Observer.Printf("[%s] Deleting %d node records", killPhase, nodes)
		for _, s := range targets {
			errs = append(errs, exec.Destroy(pctx, s, converge.DestroyOptions{Node: true}))
		}
	}

	reporter.Servers(res, nil)
	return errors.Join(errs...)
}

// KillPrompt is the confirmation question for a kill run. Zero counts are
// left out of the sentence.
func KillPrompt(nodes, servers int) string {
	var parts []string
	if nodes > 0 {
		parts = append(parts, fmt.Sprintf("%d node records", nodes))
	}
	if servers > 0 {
		parts = append(parts, fmt.Sprintf("%d cloud servers", servers))
	}
	return fmt.Sprintf("Are you absolutely certain that you want to delete %s? (Type '%s' to confirm) ",
		strings.Join(parts, " and "), ConfirmationWord)
}

// killTargets returns the killable servers of res, plus the bogus ones
// when includeBogus is set. Each server appears once.
func killTargets(res *reconcile.Result, includeBogus bool) []*topology.Server {
	var out []*topology.Server
	for _, s := range res.Servers {
		bogus := res.State(s) == reconcile.StateBogus
		switch {
		case bogus && !includeBogus:
			continue
		case bogus || reconcile.Killable(s):
			out = append(out, s)
		}
	}
	return out
}

// liveInstances counts the instances Destroy terminates for s, duplicates
// included.
func liveInstances(s *topology.Server) int {
	n := 0
	if s.Instance.Alive() {
		n++
	}
	for _, inst := range s.Conflicts {
		if inst.Alive() {
			n++
		}
	}
	return n
}
