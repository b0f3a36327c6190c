package topology

import (
	"fmt"
	"maps"
	"slices"

	"dario.cat/mergo"

	"github.com/imamik/facets/internal/config"
	"github.com/imamik/facets/internal/util/naming"
)

// Build turns a definition into the desired-state tree. Every cluster gets
// a security group named after it and every facet one named
// <cluster>-<facet>, which its servers join.
func Build(def *config.Definition, reg *Registry) (*Cluster, error) {
	if def == nil {
		return nil, fmt.Errorf("definition is required")
	}

	cb := NewComputeBuilder(def.Name, reg).Apply(def.Compute)
	cb.SecurityGroup(def.Name, nil)

	cluster := &Cluster{
		Name:     def.Name,
		Provider: def.Provider,
		Compute:  cb.Build(),
	}

	seen := make(map[string]bool)
	for i := range def.Facets {
		spec := &def.Facets[i]

		fb := NewComputeBuilder(def.Name, reg)
		if spec.Role != "" {
			fb.Role(spec.Role)
		}
		fb.Apply(spec.Compute)
		fb.SecurityGroup(naming.Facet(def.Name, spec.Name), nil)

		facet := &Facet{
			Name:        spec.Name,
			Role:        spec.Role,
			Instances:   spec.Instances,
			Compute:     fb.Build(),
			Coordinator: spec.Coordinator,
		}

		for idx := 0; idx < spec.Instances; idx++ {
			sb := NewComputeBuilder(def.Name, reg)
			if override, ok := spec.Servers[idx]; ok {
				sb.Apply(override)
			}
			server := &Server{
				ClusterName: def.Name,
				FacetName:   spec.Name,
				Index:       idx,
				Overrides:   sb.Build(),
			}
			if seen[server.Fullname()] {
				return nil, fmt.Errorf("duplicate server %s", server.Fullname())
			}
			seen[server.Fullname()] = true
			server.SecurityGroups = cluster.securityGroupsFor(facet, server)
			vols, err := cluster.compositeVolumes(facet, server)
			if err != nil {
				return nil, err
			}
			server.Volumes = vols
			facet.Servers = append(facet.Servers, server)
		}
		cluster.Facets = append(cluster.Facets, facet)
	}
	return cluster, nil
}

// CompositeVolumes overlays a server's volume declarations on its facet's
// and then its cluster's. The first layer that sets a field wins; later
// layers only fill fields still unset. Volumes without a class are
// persistent.
func (c *Cluster) CompositeVolumes(server *Server) (map[string]*Volume, error) {
	return c.compositeVolumes(c.Facet(server.FacetName), server)
}

func (c *Cluster) compositeVolumes(facet *Facet, server *Server) (map[string]*Volume, error) {
	layers := []map[string]*Volume{server.Overrides.Volumes}
	if facet != nil {
		layers = append(layers, facet.Volumes)
	}
	layers = append(layers, c.Volumes)

	out := make(map[string]*Volume)
	for _, layer := range layers {
		for name, vol := range layer {
			dst, ok := out[name]
			if !ok {
				out[name] = vol.Clone()
				continue
			}
			// Without WithOverride mergo only fills zero-valued fields.
			if err := mergo.Merge(dst, vol.Clone()); err != nil {
				return nil, fmt.Errorf("failed to merge volume %s of %s: %w", name, server.Fullname(), err)
			}
		}
	}
	for _, vol := range out {
		if vol.Class == "" {
			vol.Class = VolumePersistent
		}
	}
	return out, nil
}

// securityGroupsFor returns the union of cluster, facet and server groups,
// sorted by scope then name.
func (c *Cluster) securityGroupsFor(facet *Facet, server *Server) []*SecurityGroup {
	var out []*SecurityGroup
	seen := make(map[string]bool)
	for _, groups := range []map[string]*SecurityGroup{c.SecurityGroups, facet.SecurityGroups, server.Overrides.SecurityGroups} {
		for _, name := range sortedKeys(groups) {
			if !seen[name] {
				seen[name] = true
				out = append(out, groups[name])
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
