package testing

import (
	"maps"
	"slices"

	"github.com/imamik/facets/internal/config"
)

// DefinitionBuilder provides a fluent interface for constructing test
// definitions. Each method returns a new builder (immutable) for chaining.
type DefinitionBuilder struct {
	def config.Definition
}

// NewDefinitionBuilder creates a builder for cluster name with settings
// that pass lint.
func NewDefinitionBuilder(name string) *DefinitionBuilder {
	return &DefinitionBuilder{
		def: config.Definition{
			Name: name,
			Compute: config.Compute{
				Settings: config.Settings{
					Flavor:           "m1.small",
					ImageName:        "ubuntu-24.04",
					AvailabilityZone: "us-east-1a",
				},
			},
		},
	}
}

// WithProvider sets the provider name.
func (b *DefinitionBuilder) WithProvider(provider string) *DefinitionBuilder {
	nb := b.clone()
	nb.def.Provider = provider
	return nb
}

// WithSettings replaces the cluster-level settings.
func (b *DefinitionBuilder) WithSettings(s config.Settings) *DefinitionBuilder {
	nb := b.clone()
	nb.def.Settings = s
	return nb
}

// WithFacet adds a facet of n servers.
func (b *DefinitionBuilder) WithFacet(name string, n int) *DefinitionBuilder {
	nb := b.clone()
	nb.def.Facets = append(nb.def.Facets, config.FacetSpec{Name: name, Instances: n})
	return nb
}

// WithVolume declares a cluster-level volume.
func (b *DefinitionBuilder) WithVolume(name string, spec config.VolumeSpec) *DefinitionBuilder {
	nb := b.clone()
	if nb.def.Volumes == nil {
		nb.def.Volumes = make(map[string]config.VolumeSpec)
	}
	nb.def.Volumes[name] = spec
	return nb
}

// WithCoordinator makes facet read its coordinator's address from the
// first server of target into each of the dotted attribute keys.
func (b *DefinitionBuilder) WithCoordinator(facet, target string, attributes ...string) *DefinitionBuilder {
	nb := b.clone()
	for i := range nb.def.Facets {
		if nb.def.Facets[i].Name == facet {
			nb.def.Facets[i].Coordinator = &config.CoordinatorSpec{Facet: target, Attributes: attributes}
		}
	}
	return nb
}

// Build returns the definition.
func (b *DefinitionBuilder) Build() *config.Definition {
	def := b.clone().def
	return &def
}

func (b *DefinitionBuilder) clone() *DefinitionBuilder {
	def := b.def
	def.Settings.RunList = slices.Clone(b.def.Settings.RunList)
	def.Volumes = maps.Clone(b.def.Volumes)
	def.Facets = make([]config.FacetSpec, len(b.def.Facets))
	for i, f := range b.def.Facets {
		if f.Coordinator != nil {
			c := *f.Coordinator
			c.Attributes = slices.Clone(f.Coordinator.Attributes)
			f.Coordinator = &c
		}
		def.Facets[i] = f
	}
	return &DefinitionBuilder{def: def}
}
