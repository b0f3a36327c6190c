package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/platform/nodestore"
	"github.com/imamik/facets/internal/util/naming"
	"github.com/imamik/facets/internal/util/tags"
)

// InventoryFixture provides a pre-populated fake cloud and node store for
// common test scenarios.
type InventoryFixture struct {
	Provider *cloud.FakeProvider
	Nodes    *nodestore.MemoryStore

	next int
}

// NewInventoryFixture creates an empty fixture.
func NewInventoryFixture() *InventoryFixture {
	return &InventoryFixture{
		Provider: cloud.NewFakeProvider(),
		Nodes:    nodestore.NewMemoryStore(),
	}
}

// RunningServer adds a running instance tagged as server index of facet,
// the way a launch leaves it.
func (f *InventoryFixture) RunningServer(cluster, facet string, index int) *cloud.Instance {
	f.next++
	name := naming.Server(cluster, facet, index)
	inst := &cloud.Instance{
		ID:        fmt.Sprintf("i-%04d", f.next),
		Name:      name,
		State:     cloud.StateRunning,
		Flavor:    "m1.small",
		Image:     "ubuntu-24.04",
		Zone:      "us-east-1a",
		PrivateIP: fmt.Sprintf("10.1.0.%d", f.next),
		CreatedAt: time.Date(2024, 1, 1, 0, f.next, 0, 0, time.UTC),
		Tags:      tags.NewBuilder(cluster).WithFacet(facet).WithIndex(index).WithName(name).Build(),
	}
	f.Provider.AddInstance(inst)
	return inst
}

// RunningServers adds n running servers to facet, indexes 0 to n-1.
func (f *InventoryFixture) RunningServers(cluster, facet string, n int) []*cloud.Instance {
	out := make([]*cloud.Instance, 0, n)
	for i := range n {
		out = append(out, f.RunningServer(cluster, facet, i))
	}
	return out
}

// Node saves a node record for server index of facet.
func (f *InventoryFixture) Node(cluster, facet string, index int) *nodestore.Node {
	node := &nodestore.Node{
		Name:    naming.Server(cluster, facet, index),
		Cluster: cluster,
		Facet:   facet,
		Index:   index,
	}
	if err := f.Nodes.SaveNode(context.Background(), node); err != nil {
		panic(err)
	}
	return node
}
