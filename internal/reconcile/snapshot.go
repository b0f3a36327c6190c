package reconcile

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/platform/nodestore"
	"github.com/imamik/facets/internal/settings"
	"github.com/imamik/facets/internal/util/naming"
	"github.com/imamik/facets/internal/util/tags"
)

// Snapshot is the inventory observed at one point in a run. It is read-only
// once built and may be shared between goroutines.
type Snapshot struct {
	Instances []*cloud.Instance
	Volumes   []*cloud.Volume
	Addresses []*cloud.Address
	// Nodes holds node records by fullname.
	Nodes     map[string]*nodestore.Node
	FetchedAt time.Time
}

// Fetch lists instances, volumes and addresses concurrently.
func Fetch(ctx context.Context, p cloud.Provider) (*Snapshot, error) {
	snap := &Snapshot{Nodes: make(map[string]*nodestore.Node)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		instances, err := p.ListInstances(gctx)
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}
		snap.Instances = instances
		return nil
	})
	g.Go(func() error {
		volumes, err := p.ListVolumes(gctx)
		if err != nil {
			return fmt.Errorf("failed to list volumes: %w", err)
		}
		snap.Volumes = volumes
		return nil
	})
	g.Go(func() error {
		addresses, err := p.ListAddresses(gctx)
		if err != nil {
			return fmt.Errorf("failed to list addresses: %w", err)
		}
		snap.Addresses = addresses
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.FetchedAt = time.Now()
	return snap, nil
}

// LoadNodes adds the node records of cluster from store.
func (s *Snapshot) LoadNodes(ctx context.Context, store nodestore.Store, cluster string) error {
	nodes, err := store.ListNodes(ctx, cluster)
	if err != nil {
		return fmt.Errorf("failed to list node records: %w", err)
	}
	if s.Nodes == nil {
		s.Nodes = make(map[string]*nodestore.Node, len(nodes))
	}
	for _, n := range nodes {
		s.Nodes[n.Name] = n
	}
	return nil
}

// Instance returns the instance with id, or nil.
func (s *Snapshot) Instance(id string) *cloud.Instance {
	for _, inst := range s.Instances {
		if inst.ID == id {
			return inst
		}
	}
	return nil
}

// Volume returns the volume with id, or nil.
func (s *Snapshot) Volume(id string) *cloud.Volume {
	for _, vol := range s.Volumes {
		if vol.ID == id {
			return vol
		}
	}
	return nil
}

// Address returns the address with the given IP, or nil.
func (s *Snapshot) Address(ip string) *cloud.Address {
	for _, addr := range s.Addresses {
		if addr.IP == ip {
			return addr
		}
	}
	return nil
}

// Coordinator implements settings.CoordinatorLookup: the coordinator of a
// facet is its first server, and its private address is what gets injected.
func (s *Snapshot) Coordinator(cluster, facet string) settings.Lookup {
	fullname := naming.Server(cluster, facet, 0)
	for _, inst := range s.Instances {
		if !inst.Alive() || inst.PrivateIP == "" {
			continue
		}
		if instanceName(inst) == fullname || tags.MatchesServer(inst.Tags, cluster, facet, 0) {
			return settings.Found(inst.PrivateIP)
		}
	}
	return settings.NotFound
}

var _ settings.CoordinatorLookup = (*Snapshot)(nil)

// instanceName is the Name tag, falling back to the provider's own name.
func instanceName(inst *cloud.Instance) string {
	if n := inst.Tags[tags.KeyName]; n != "" {
		return n
	}
	return inst.Name
}
