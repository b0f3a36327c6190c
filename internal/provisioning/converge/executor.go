// Package converge holds the idempotent operations that move one server's
// live state toward its declaration: create, tag, attach, associate,
// sync to the node store, and destroy.
package converge

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/imamik/facets/internal/config"
	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/platform/nodestore"
	"github.com/imamik/facets/internal/provisioning"
	"github.com/imamik/facets/internal/util/retry"
)

const phase = "converge"

// defaultPollInterval is how often WaitForReady re-reads an instance.
const defaultPollInterval = 2 * time.Second

// Executor runs convergence operations against one provider and node store.
// It is safe for concurrent use; each server must be owned by one caller.
type Executor struct {
	Provider cloud.Provider
	// Nodes may be nil, in which case node-store operations are skipped.
	Nodes    nodestore.Store
	Observer provisioning.Observer
	Metrics  *provisioning.Metrics
	Timeouts *config.Timeouts
	RunID    string
	// Credentials are merged into every instance's user data.
	Credentials  map[string]any
	PollInterval time.Duration

	placementGroups *groupSet
	securityGroups  *groupSet
}

// NewExecutor creates an executor bound to the run described by pctx.
func NewExecutor(pctx *provisioning.Context, p cloud.Provider, nodes nodestore.Store) *Executor {
	return &Executor{
		Provider:        p,
		Nodes:           nodes,
		Observer:        pctx.Observer,
		Metrics:         pctx.Metrics,
		Timeouts:        pctx.Timeouts,
		RunID:           pctx.RunID,
		PollInterval:    defaultPollInterval,
		placementGroups: newGroupSet(),
		securityGroups:  newGroupSet(),
	}
}

// groupSet remembers which named groups were ensured during this process.
// Concurrent callers for the same name share one provider call.
type groupSet struct {
	mu     sync.Mutex
	done   map[string]bool
	flight singleflight.Group
}

func newGroupSet() *groupSet {
	return &groupSet{done: make(map[string]bool)}
}

func (g *groupSet) has(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done[name]
}

// ensure runs fn once per name. A failed fn is retried by the next caller.
func (g *groupSet) ensure(name string, fn func() error) error {
	if g.has(name) {
		return nil
	}
	_, err, _ := g.flight.Do(name, func() (any, error) {
		if g.has(name) {
			return nil, nil
		}
		if err := fn(); err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.done[name] = true
		g.mu.Unlock()
		return nil, nil
	})
	return err
}

func (e *Executor) timeouts() *config.Timeouts {
	if e.Timeouts == nil {
		return config.LoadTimeouts()
	}
	return e.Timeouts
}

// retry runs an idempotent provider call with backoff. Not-found errors are
// not retried.
func (e *Executor) retry(ctx context.Context, fn func() error) error {
	t := e.timeouts()
	return retry.WithExponentialBackoff(ctx, func() error {
		err := fn()
		if err != nil && cloud.IsNotFound(err) {
			return retry.Fatal(err)
		}
		return err
	}, retry.WithMaxRetries(t.RetryMaxAttempts), retry.WithInitialDelay(t.RetryInitialDelay))
}

// record times one operation into the metrics.
func (e *Executor) record(operation string, start time.Time, err error) {
	e.Metrics.RecordOperation(operation, err, time.Since(start))
}

func (e *Executor) observer() provisioning.Observer {
	if e.Observer == nil {
		return provisioning.NewConsoleObserver()
	}
	return e.Observer
}
