// Package settings folds the settings layers of a cluster into one resolved
// config.Settings per server.
package settings

import (
	"fmt"
	"slices"

	"dario.cat/mergo"
	"github.com/mitchellh/copystructure"

	"github.com/imamik/facets/internal/config"
	"github.com/imamik/facets/internal/topology"
)

// DefaultSettings returns the built-in bottom layer.
func DefaultSettings() config.Settings {
	return config.Settings{
		Monitoring: new(bool),
	}
}

// Resolver merges, in increasing precedence: Defaults, the document's
// common settings, the document's cluster settings, the cluster
// declaration, the document's facet settings, the facet declaration and
// the server's overrides.
//
// Scalars set in a later layer win, maps are merged key by key, and
// run-lists and security groups are concatenated keeping the first
// occurrence of each entry. A Resolver keeps no state between calls.
type Resolver struct {
	Defaults config.Settings
	Document *config.SettingsDocument
}

// NewResolver returns a resolver over the built-in defaults and doc.
func NewResolver(doc *config.SettingsDocument) *Resolver {
	return &Resolver{Defaults: DefaultSettings(), Document: doc}
}

// Resolve returns the settings for one server.
func (r *Resolver) Resolve(cluster *topology.Cluster, facet *topology.Facet, server *topology.Server) (config.Settings, error) {
	doc := r.Document.Cluster(cluster.Name)

	layers := []config.Settings{
		r.Defaults,
		r.documentCommon(),
		doc.Common,
		cluster.Settings,
		doc.Facets[facet.Name],
		facet.Settings,
		server.Overrides.Settings,
	}
	return Merge(layers...)
}

// ResolveCluster resolves every server of cluster and stores the result on
// the server.
func (r *Resolver) ResolveCluster(cluster *topology.Cluster) error {
	for _, facet := range cluster.Facets {
		for _, server := range facet.Servers {
			resolved, err := r.Resolve(cluster, facet, server)
			if err != nil {
				return fmt.Errorf("failed to resolve settings for %s: %w", server.Fullname(), err)
			}
			server.Settings = resolved
		}
	}
	return nil
}

func (r *Resolver) documentCommon() config.Settings {
	if r.Document == nil {
		return config.Settings{}
	}
	return r.Document.Common
}

// Merge folds layers left to right. The inputs are never modified.
func Merge(layers ...config.Settings) (config.Settings, error) {
	var out config.Settings
	for i, layer := range layers {
		src, err := deepCopy(layer)
		if err != nil {
			return config.Settings{}, fmt.Errorf("failed to copy settings layer %d: %w", i, err)
		}

		// mergo cannot override with a false pointer target; overlay by hand.
		permanent, monitoring := src.Permanent, src.Monitoring
		src.Permanent, src.Monitoring = nil, nil

		if err := mergo.Merge(&out, src, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
			return config.Settings{}, fmt.Errorf("failed to merge settings layer %d: %w", i, err)
		}

		if permanent != nil {
			out.Permanent = permanent
		}
		if monitoring != nil {
			out.Monitoring = monitoring
		}
	}
	out.RunList = dedupe(out.RunList)
	out.SecurityGroups = dedupe(out.SecurityGroups)
	return out, nil
}

func deepCopy(s config.Settings) (config.Settings, error) {
	c, err := copystructure.Copy(s)
	if err != nil {
		return config.Settings{}, err
	}
	return c.(config.Settings), nil
}

func dedupe(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
