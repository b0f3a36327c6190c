package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/imamik/facets/internal/config"
	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/platform/ec2"
	"github.com/imamik/facets/internal/platform/hcloud"
	"github.com/imamik/facets/internal/platform/nodestore"
	"github.com/imamik/facets/internal/provisioning"
	"github.com/imamik/facets/internal/settings"
	"github.com/imamik/facets/internal/topology"
)

// DefaultDefinitionPath is used when no definition is given.
const DefaultDefinitionPath = "facets.yaml"

// Options are the flags shared by the cluster commands.
type Options struct {
	Definition      string
	Settings        string
	Provider        string
	NodeStore       string
	DryRun          bool
	MetricsTextfile string
}

// Factory function variables - can be replaced in tests.
var (
	loadDefinition = config.LoadDefinition
	loadSettings   = config.LoadSettingsFile

	// newProvider builds the named cloud provider.
	newProvider = func(ctx context.Context, name string) (cloud.Provider, error) {
		return Providers().New(ctx, name)
	}

	openNodeStore = OpenNodeStore

	newProvisioningContext = provisioning.NewContext

	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin

	stdoutIsTerminal = func() bool { return isTerminal(os.Stdout) }
	stdinIsTerminal  = func() bool { return isTerminal(os.Stdin) }
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Providers returns the registry of cloud providers the CLI knows.
func Providers() *cloud.Registry {
	reg := cloud.NewRegistry()
	reg.Register(hcloud.ProviderName, hcloud.NewFromEnv)
	reg.Register(ec2.ProviderName, ec2.NewFromEnv)
	reg.Register("fake", func(context.Context) (cloud.Provider, error) {
		return cloud.NewFakeProvider(), nil
	})
	return reg
}

// session holds everything one command needs.
type session struct {
	pctx      *provisioning.Context
	slice     *topology.Slice
	provider  cloud.Provider
	nodes     nodestore.Store
	nodeStore NodeStoreSpec
	resolver  *settings.Resolver
	close     func() error
}

func openSession(ctx context.Context, opts Options, target string) (*session, error) {
	path := opts.Definition
	if path == "" {
		path = DefaultDefinitionPath
	}
	def, err := loadDefinition(path)
	if err != nil {
		return nil, err
	}

	var doc *config.SettingsDocument
	if opts.Settings != "" {
		if doc, err = loadSettings(opts.Settings); err != nil {
			return nil, err
		}
	}

	registry := topology.NewRegistry(topology.ImplicationsFromDefinition(def.Implications))
	cluster, err := topology.Build(def, registry)
	if err != nil {
		return nil, err
	}
	sel, err := topology.ParseSelector(cluster.Name, target)
	if err != nil {
		return nil, err
	}
	slice, err := cluster.Slice(sel)
	if err != nil {
		return nil, err
	}

	name := opts.Provider
	if name == "" {
		name = cluster.Provider
	}
	if name == "" {
		name = hcloud.ProviderName
	}
	provider, err := newProvider(ctx, name)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		provider = cloud.NewDryRun(provider)
	}

	spec, err := ParseNodeStore(opts.NodeStore)
	if err != nil {
		return nil, err
	}
	nodes, closeNodes, err := openNodeStore(ctx, spec)
	if err != nil {
		return nil, err
	}

	return &session{
		pctx:      newProvisioningContext(ctx),
		slice:     slice,
		provider:  provider,
		nodes:     nodes,
		nodeStore: spec,
		resolver:  settings.NewResolver(doc),
		close:     closeNodes,
	}, nil
}

// finish writes metrics and releases the node store.
func (s *session) finish(metricsTextfile string) error {
	var errs []error
	if metricsTextfile != "" {
		if err := s.pctx.Metrics.WriteTextfile(metricsTextfile); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	if s.close != nil {
		if err := s.close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close node store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// syncWriter serializes writes from the reporter and the observer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
