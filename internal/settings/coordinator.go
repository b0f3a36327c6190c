package settings

import (
	"fmt"
	"strings"

	"github.com/imamik/facets/internal/topology"
)

// Lookup is the result of asking for a coordinator's address.
type Lookup struct {
	Address string
	Found   bool
}

// Found returns a successful lookup.
func Found(address string) Lookup {
	return Lookup{Address: address, Found: true}
}

// NotFound is the result when no live coordinator exists.
var NotFound = Lookup{}

// CoordinatorLookup finds the private address of a facet's coordinator
// server.
type CoordinatorLookup interface {
	Coordinator(cluster, facet string) Lookup
}

// CoordinatorFunc adapts a function to CoordinatorLookup.
type CoordinatorFunc func(cluster, facet string) Lookup

func (f CoordinatorFunc) Coordinator(cluster, facet string) Lookup { return f(cluster, facet) }

// Enrich injects coordinator addresses into the attributes of servers whose
// facet declares a coordinator. Servers whose coordinator cannot be found
// are left unchanged and reported in the returned warnings.
func Enrich(cluster *topology.Cluster, servers []*topology.Server, lookup CoordinatorLookup) []string {
	var warnings []string
	results := make(map[string]Lookup)

	for _, server := range servers {
		facet := cluster.Facet(server.FacetName)
		if facet == nil || facet.Coordinator == nil {
			continue
		}
		target := facet.Coordinator.Facet
		res, ok := results[target]
		if !ok {
			res = lookup.Coordinator(cluster.Name, target)
			results[target] = res
			if !res.Found {
				warnings = append(warnings, fmt.Sprintf(
					"no running coordinator in facet %s of cluster %s; %s attributes left unset",
					target, cluster.Name, facet.Name))
			}
		}
		if !res.Found {
			continue
		}
		if server.Settings.Attributes == nil {
			server.Settings.Attributes = make(map[string]any)
		}
		for _, key := range facet.Coordinator.Attributes {
			SetAttribute(server.Settings.Attributes, key, res.Address)
		}
	}
	return warnings
}

// SetAttribute sets a dotted key such as "hadoop.namenode.address",
// creating intermediate maps and replacing non-map intermediates.
func SetAttribute(attrs map[string]any, dotted string, value any) {
	parts := strings.Split(dotted, ".")
	cur := attrs
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}
