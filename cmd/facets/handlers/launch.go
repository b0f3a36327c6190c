package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/facets/internal/orchestration"
	"github.com/imamik/facets/internal/platform/ssh"
	"github.com/imamik/facets/internal/provisioning"
	"github.com/imamik/facets/internal/ui/display"
	"github.com/imamik/facets/internal/ui/tui"
	"github.com/imamik/facets/internal/util/netutil"
)

// LaunchOptions are the flags of the launch command.
type LaunchOptions struct {
	Options
	Force        bool
	Bootstrap    bool
	SSHUser      string
	SSHKey       string
	SSHPort      int
	ProbeTimeout time.Duration
}

var (
	// newBootstrapper creates the SSH bootstrap runner.
	newBootstrapper = func(opts LaunchOptions, observer provisioning.Observer) (orchestration.Bootstrapper, error) {
		if opts.SSHKey == "" {
			return nil, errors.New("--ssh-key is required with --bootstrap")
		}
		key, err := ssh.LoadKey(opts.SSHKey)
		if err != nil {
			return nil, err
		}
		return ssh.NewBootstrapper(opts.SSHUser, opts.SSHPort, key, observer), nil
	}

	// newProber returns the reachability probe. Nil uses the configured
	// timings.
	newProber = func() *netutil.Prober { return nil }

	runLaunchTUI = tui.RunLaunchTUI
)

// Launch handles the cluster launch command.
//
// On a terminal, progress is shown in a dashboard and the tables are
// printed once it closes. Otherwise tables go to stdout and events to the
// console observer.
func Launch(ctx context.Context, target string, opts LaunchOptions) (err error) {
	s, err := openSession(ctx, opts.Options, target)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.finish(opts.MetricsTextfile)) }()

	launcher := orchestration.NewLauncher(s.provider, s.nodes, s.resolver)
	launcher.Credentials = s.nodeStore.credentials()
	launcher.Prober = newProber()

	launchOpts := orchestration.LaunchOptions{
		DryRun:       opts.DryRun,
		Force:        opts.Force,
		Bootstrap:    opts.Bootstrap,
		ProbeTimeout: opts.ProbeTimeout,
		ProbePort:    opts.SSHPort,
	}

	interactive := stdoutIsTerminal()
	var buffered bytes.Buffer
	out := stdout
	if interactive {
		// The dashboard owns the screen until it closes.
		w := &syncWriter{w: &buffered}
		out = w
		s.pctx.Observer = provisioning.NewWriterObserver(w)
		defer func() { _, _ = io.Copy(stdout, &buffered) }()
	}
	launcher.Reporter = display.NewTable(out)

	if opts.Bootstrap && !opts.DryRun {
		b, err := newBootstrapper(opts, s.pctx.Observer)
		if err != nil {
			return err
		}
		launcher.Bootstrapper = b
	}

	if !interactive {
		return launcher.Launch(s.pctx, s.slice, launchOpts)
	}

	cluster := s.slice.Cluster.Name
	return runLaunchTUI(ctx, cluster, launchOpts.Bootstrap, func(ctx context.Context, progress orchestration.ProgressFunc) error {
		launcher.Progress = progress
		if err := launcher.Launch(s.pctx.WithContext(ctx), s.slice, launchOpts); err != nil {
			return fmt.Errorf("launch of %s failed: %w", cluster, err)
		}
		return nil
	}, tea.WithAltScreen())
}
