package orchestration

import (
	"errors"
	"fmt"

	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/platform/nodestore"
	"github.com/imamik/facets/internal/provisioning"
	"github.com/imamik/facets/internal/reconcile"
	"github.com/imamik/facets/internal/settings"
	"github.com/imamik/facets/internal/topology"
)

var (
	// ErrBogusServers stops a launch when the slice holds bogus servers
	// and the run is not forced.
	ErrBogusServers = errors.New("bogus servers detected")
	// ErrNotConfirmed is returned when a destructive run is not confirmed.
	ErrNotConfirmed = errors.New("not confirmed")
)

// Reporter shows reconciliation results to the user.
type Reporter interface {
	// Servers renders the servers of res. outcomes holds the post-launch
	// result per fullname and may be nil.
	Servers(res *reconcile.Result, outcomes map[string]error)
	// Bogus lists servers the engine will not act on.
	Bogus(servers []*topology.Server)
	Notice(format string, args ...any)
}

type discardReporter struct{}

func (discardReporter) Servers(*reconcile.Result, map[string]error) {}
func (discardReporter) Bogus([]*topology.Server)                    {}
func (discardReporter) Notice(string, ...any)                       {}

// pass is one reconciliation of a slice against the inventory.
type pass struct {
	result   *reconcile.Result
	snapshot *reconcile.Snapshot
}

// reconcileSlice fetches the inventory and node records and pairs them
// with the servers of slice. Reconciliation warnings are reported through
// the observer and never fail the pass.
func reconcileSlice(pctx *provisioning.Context, p cloud.Provider, nodes nodestore.Store, slice *topology.Slice, phase string) (*pass, error) {
	snap, err := reconcile.Fetch(pctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inventory: %w", err)
	}
	if nodes != nil {
		if err := snap.LoadNodes(pctx, nodes, slice.Cluster.Name); err != nil {
			return nil, err
		}
	}

	r := &reconcile.Reconciler{}
	if n, ok := p.(cloud.TagNormalizer); ok {
		r.Normalizer = n
	}
	res := r.Reconcile(slice.Cluster, slice.Servers, snap)
	for _, w := range res.Warnings {
		provisioning.LogWarning(pctx.Observer, phase, w.Server, w.Message)
	}
	return &pass{result: res, snapshot: snap}, nil
}

// refreshServer re-reads the inventory for one server a worker owns and
// pairs it again, so volumes created with the instance are discovered
// before the server is synced.
func refreshServer(pctx *provisioning.Context, p cloud.Provider, cluster *topology.Cluster, s *topology.Server, phase string) error {
	snap, err := reconcile.Fetch(pctx, p)
	if err != nil {
		return fmt.Errorf("failed to refresh inventory: %w", err)
	}
	if s.Node != nil {
		snap.Nodes[s.Fullname()] = s.Node
	}

	r := &reconcile.Reconciler{}
	if n, ok := p.(cloud.TagNormalizer); ok {
		r.Normalizer = n
	}
	// Only this server is passed in; phantoms of the refreshed snapshot
	// are not this worker's concern.
	res := r.Reconcile(cluster, []*topology.Server{s}, snap)
	for _, w := range res.Warnings {
		if w.Server == s.Fullname() {
			provisioning.LogWarning(pctx.Observer, phase, w.Server, w.Message)
		}
	}

	for _, msg := range settings.Enrich(cluster, []*topology.Server{s}, snap) {
		provisioning.LogWarning(pctx.Observer, phase, s.Fullname(), msg)
	}
	return nil
}

// declared returns the non-phantom servers of res.
func declared(res *reconcile.Result) []*topology.Server {
	var out []*topology.Server
	for _, s := range res.Servers {
		if !s.Phantom {
			out = append(out, s)
		}
	}
	return out
}
