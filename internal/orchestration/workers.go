package orchestration

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/imamik/facets/internal/provisioning"
	"github.com/imamik/facets/internal/topology"
	"github.com/imamik/facets/internal/util/async"
)

// Step names a point in a server's launch.
type Step string

const (
	StepCreate    Step = "create"
	StepWait      Step = "wait"
	StepProbe     Step = "probe"
	StepSync      Step = "sync"
	StepNode      Step = "node"
	StepBootstrap Step = "bootstrap"
	StepDone      Step = "done"
	StepFailed    Step = "failed"
)

// ProgressFunc receives the step a server has reached. err is set with
// StepFailed.
type ProgressFunc func(server string, step Step, err error)

// postLaunch runs the post-launch sequence of every created server
// concurrently. Each task owns a clone of its server; results come back
// over the completion channel and are merged here, on the caller's
// goroutine.
func (l *Launcher) postLaunch(pctx *provisioning.Context, run *launchRun) error {
	owned := make(map[string]*topology.Server)
	var tasks []async.Task
	for _, s := range run.batch {
		if _, failed := run.outcomes[s.Fullname()]; failed {
			continue
		}
		clone := s.Clone()
		owned[s.Fullname()] = clone
		tasks = append(tasks, async.Task{
			Name: s.Fullname(),
			Func: func(ctx context.Context) error {
				return l.afterLaunch(pctx.WithContext(ctx), run, clone)
			},
		})
	}
	if len(tasks) == 0 {
		return errors.Join(outcomeErrors(run.outcomes)...)
	}

	done := 0
	results := async.Run(pctx, tasks, func(res async.Result) {
		done++
		pctx.Observer.Progress(launchPhase, done, len(tasks))
	})

	for _, res := range results {
		run.outcomes[res.Name] = res.Err
		if res.Err != nil {
			pctx.Observer.Printf("[%s] %s failed after %v: %v", launchPhase, res.Name, res.Duration.Round(time.Millisecond), res.Err)
		} else {
			pctx.Observer.Printf("[%s] %s ready after %v", launchPhase, res.Name, res.Duration.Round(time.Millisecond))
		}
	}

	// Workers are done; their observed state becomes the slice's.
	for _, s := range run.batch {
		if clone, ok := owned[s.Fullname()]; ok {
			*s = *clone
		}
	}
	return errors.Join(outcomeErrors(run.outcomes)...)
}

// afterLaunch is the post-launch sequence of one server.
func (l *Launcher) afterLaunch(pctx *provisioning.Context, run *launchRun, s *topology.Server) (err error) {
	defer func() {
		if err != nil {
			l.progress(s, StepFailed, err)
			return
		}
		l.progress(s, StepDone, nil)
	}()
	exec := run.executor

	l.progress(s, StepWait, nil)
	if err := exec.WaitForReady(pctx, s); err != nil {
		return err
	}

	if !run.opts.DryRun {
		l.progress(s, StepProbe, nil)
		if err := l.probe(pctx, run, s); err != nil {
			return err
		}
	}

	l.progress(s, StepSync, nil)
	if err := refreshServer(pctx, l.Provider, run.slice.Cluster, s, launchPhase); err != nil {
		return err
	}
	if err := exec.SyncToCloud(pctx, s); err != nil {
		return err
	}

	// A dry run leaves node records untouched.
	if !run.opts.DryRun {
		l.progress(s, StepNode, nil)
		if err := exec.SyncToNodeStore(pctx, s); err != nil {
			return err
		}
	}

	if run.opts.Bootstrap && !run.opts.DryRun {
		l.progress(s, StepBootstrap, nil)
		if l.Bootstrapper == nil {
			return fmt.Errorf("bootstrap requested for %s but no bootstrapper is configured", s.Fullname())
		}
		if err := l.Bootstrapper.Bootstrap(pctx, s.Instance.Address(), s); err != nil {
			return err
		}
	}
	return nil
}

func (l *Launcher) probe(pctx *provisioning.Context, run *launchRun, s *topology.Server) error {
	host := s.Instance.Address()
	if host == "" {
		return fmt.Errorf("server %s has no address to probe", s.Fullname())
	}
	if t := pctx.Timeouts; t != nil && t.ProbeInitialDelay > 0 {
		select {
		case <-pctx.Done():
			return pctx.Err()
		case <-time.After(t.ProbeInitialDelay):
		}
	}

	pctx.Observer.Printf("[%s] Probing %s at %s", launchPhase, s.Fullname(), host)
	if err := l.prober(pctx, run.opts).Probe(pctx, host); err != nil {
		return fmt.Errorf("server %s is not reachable: %w", s.Fullname(), err)
	}
	return nil
}

func outcomeErrors(outcomes map[string]error) []error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(outcomes)) {
		if err := outcomes[name]; err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs
}
