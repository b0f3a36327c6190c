package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/platform/nodestore"
	"github.com/imamik/facets/internal/provisioning"
	"github.com/imamik/facets/internal/provisioning/converge"
	"github.com/imamik/facets/internal/reconcile"
	"github.com/imamik/facets/internal/settings"
	"github.com/imamik/facets/internal/topology"
	"github.com/imamik/facets/internal/util/netutil"
)

const launchPhase = "launch"

// LaunchOptions controls a launch run.
type LaunchOptions struct {
	// DryRun skips the reachability probe and bootstrap. The provider is
	// expected to be a dry-run overlay.
	DryRun bool
	// Force launches even when bogus servers are present.
	Force     bool
	Bootstrap bool
	// ProbeTimeout bounds the reachability probe per server. Zero falls
	// back to the configured probe timeout, which is unbounded by default.
	ProbeTimeout time.Duration
	// ProbePort overrides the port the reachability probe dials.
	ProbePort int
}

// Bootstrapper runs the first configuration pass on a launched server.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, host string, s *topology.Server) error
}

// Launcher creates the missing servers of a slice and converges them.
type Launcher struct {
	Provider cloud.Provider
	Nodes    nodestore.Store
	Resolver *settings.Resolver
	Reporter Reporter

	// Bootstrapper is required when LaunchOptions.Bootstrap is set.
	Bootstrapper Bootstrapper
	// Prober is copied for each server. Nil uses the defaults with the
	// configured timings.
	Prober *netutil.Prober
	// Progress receives post-launch steps. It is called from worker
	// goroutines.
	Progress ProgressFunc
	// Credentials are merged into every new instance's user data.
	Credentials map[string]any
}

// NewLauncher creates a launcher.
func NewLauncher(p cloud.Provider, nodes nodestore.Store, resolver *settings.Resolver) *Launcher {
	return &Launcher{
		Provider: p,
		Nodes:    nodes,
		Resolver: resolver,
	}
}

// launchRun carries state between the phases of one launch.
type launchRun struct {
	opts     LaunchOptions
	slice    *topology.Slice
	executor *converge.Executor
	pass     *pass
	batch    []*topology.Server
	outcomes map[string]error
}

// Launch launches the launchable servers of slice and runs their
// post-launch sequence. Failures of individual servers are joined into the
// returned error after every server has finished.
func (l *Launcher) Launch(pctx *provisioning.Context, slice *topology.Slice, opts LaunchOptions) error {
	run := &launchRun{
		opts:     opts,
		slice:    slice,
		executor: converge.NewExecutor(pctx, l.Provider, l.Nodes),
		outcomes: make(map[string]error),
	}
	run.executor.Credentials = l.Credentials

	err := provisioning.NewPipeline(
		provisioning.NewPhase("reconcile", func(ctx *provisioning.Context) error { return l.reconcile(ctx, run) }),
		provisioning.NewPhase("check", func(ctx *provisioning.Context) error { return l.check(ctx, run) }),
		provisioning.NewPhase("lint", func(*provisioning.Context) error { return run.executor.LintAll(run.batch) }),
		provisioning.NewPhase("create", func(ctx *provisioning.Context) error { return l.create(ctx, run) }),
		provisioning.NewPhase("post-launch", func(ctx *provisioning.Context) error { return l.postLaunch(ctx, run) }),
	).Run(pctx)

	if run.pass != nil && len(run.batch) > 0 {
		l.reporter().Servers(run.pass.result, run.outcomes)
	}
	if pctx.Metrics != nil && len(run.batch) > 0 {
		pctx.Metrics.RecordLaunch(slice.Cluster.Name, err)
	}
	return err
}

func (l *Launcher) reporter() Reporter {
	if l.Reporter == nil {
		return discardReporter{}
	}
	return l.Reporter
}

func (l *Launcher) reconcile(pctx *provisioning.Context, run *launchRun) error {
	if l.Resolver != nil {
		if err := l.Resolver.ResolveCluster(run.slice.Cluster); err != nil {
			return err
		}
	}

	p, err := reconcileSlice(pctx, l.Provider, l.Nodes, run.slice, launchPhase)
	if err != nil {
		return err
	}
	run.pass = p

	for _, msg := range settings.Enrich(run.slice.Cluster, declared(p.result), p.snapshot) {
		provisioning.LogWarning(pctx.Observer, launchPhase, run.slice.Cluster.Name, msg)
	}
	if bogus := p.result.Bogus(); len(bogus) > 0 {
		l.reporter().Bogus(bogus)
	}
	l.reporter().Servers(p.result, nil)
	return nil
}

func (l *Launcher) check(pctx *provisioning.Context, run *launchRun) error {
	res := run.pass.result
	if bogus := res.Bogus(); len(bogus) > 0 {
		if !run.opts.Force {
			return fmt.Errorf("%d bogus servers in %s, rerun with force to launch anyway: %w",
				len(bogus), run.slice.Cluster.Name, ErrBogusServers)
		}
		pctx.Observer.Printf("[%s] Launching despite %d bogus servers", launchPhase, len(bogus))
	}

	run.batch = res.Launchable()
	if len(run.batch) == 0 {
		l.reporter().Notice("All servers are running -- not launching any.")
		return provisioning.ErrStop
	}
	pctx.Observer.Printf("[%s] Launching %d servers in %s", launchPhase, len(run.batch), run.slice.Cluster.Name)
	return nil
}

// create submits creation for the whole batch before anything waits on it.
// A server whose creation fails gets no post-launch sequence.
func (l *Launcher) create(pctx *provisioning.Context, run *launchRun) error {
	var errs []error
	for _, s := range run.batch {
		l.progress(s, StepCreate, nil)
		if err := run.executor.CreateServer(pctx, s); err != nil {
			run.outcomes[s.Fullname()] = err
			l.progress(s, StepFailed, err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(run.batch) {
		return errors.Join(errs...)
	}
	return nil
}

func (l *Launcher) progress(s *topology.Server, step Step, err error) {
	if l.Progress != nil {
		l.Progress(s.Fullname(), step, err)
	}
}

// prober returns the probe used for one server.
func (l *Launcher) prober(pctx *provisioning.Context, opts LaunchOptions) *netutil.Prober {
	p := netutil.NewProber()
	if l.Prober != nil {
		cp := *l.Prober
		p = &cp
	} else if t := pctx.Timeouts; t != nil {
		if t.ProbeAttempt > 0 {
			p.AttemptTimeout = t.ProbeAttempt
		}
		if t.ProbeRefusedDelay > 0 {
			p.RefusedDelay = t.ProbeRefusedDelay
		}
	}
	if opts.ProbePort > 0 {
		p.Port = opts.ProbePort
	}
	switch {
	case opts.ProbeTimeout > 0:
		p.Deadline = opts.ProbeTimeout
	case p.Deadline == 0 && pctx.Timeouts != nil:
		p.Deadline = pctx.Timeouts.Probe
	}
	if pctx.Metrics != nil {
		next := p.OnAttempt
		p.OnAttempt = func(a netutil.Attempt) {
			pctx.Metrics.RecordProbe(string(a.Outcome))
			if next != nil {
				next(a)
			}
		}
	}
	return p
}

// Report renders the current state of slice without changing anything.
func (l *Launcher) Report(pctx *provisioning.Context, slice *topology.Slice) (*reconcile.Result, error) {
	if l.Resolver != nil {
		if err := l.Resolver.ResolveCluster(slice.Cluster); err != nil {
			return nil, err
		}
	}
	p, err := reconcileSlice(pctx, l.Provider, l.Nodes, slice, "show")
	if err != nil {
		return nil, err
	}
	if bogus := p.result.Bogus(); len(bogus) > 0 {
		l.reporter().Bogus(bogus)
	}
	l.reporter().Servers(p.result, nil)
	return p.result, nil
}
