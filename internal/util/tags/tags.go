// Package tags builds the tag sets applied to cloud instances and volumes.
//
// Tags are how a live resource is paired back to its declared server, so the
// keys here are part of the on-cloud contract and must stay stable.
package tags

import (
	"maps"
	"strconv"
)

// Standard tag keys.
const (
	// KeyName is the canonical name tag. Its value is the server fullname.
	KeyName = "Name"
	// KeyNameAlias is accepted in declarations and folded into KeyName.
	KeyNameAlias = "name"

	KeyCluster = "cluster"
	KeyFacet   = "facet"
	KeyIndex   = "index"

	// Volume tags.
	KeyServer     = "server"
	KeyDevice     = "device"
	KeyMountPoint = "mount_point"

	KeyManagedBy = "managed-by"
	ManagedBy    = "facets"
)

// Builder provides a fluent interface for building resource tags.
type Builder struct {
	tags map[string]string
}

// NewBuilder creates a builder with the cluster tag pre-set.
func NewBuilder(cluster string) *Builder {
	return &Builder{
		tags: map[string]string{
			KeyCluster:   cluster,
			KeyManagedBy: ManagedBy,
		},
	}
}

// WithFacet sets the facet tag.
func (b *Builder) WithFacet(facet string) *Builder {
	b.tags[KeyFacet] = facet
	return b
}

// WithIndex sets the server index tag.
func (b *Builder) WithIndex(index int) *Builder {
	b.tags[KeyIndex] = strconv.Itoa(index)
	return b
}

// WithName sets the canonical name tag.
func (b *Builder) WithName(name string) *Builder {
	b.tags[KeyName] = name
	return b
}

// ForVolume adds the tags that identify a volume's owning server and device.
func (b *Builder) ForVolume(server, device, mountPoint string) *Builder {
	b.tags[KeyServer] = server
	b.tags[KeyDevice] = device
	if mountPoint != "" {
		b.tags[KeyMountPoint] = mountPoint
	}
	return b
}

// Merge adds all tags from extra. Declared tags win over generated ones.
func (b *Builder) Merge(extra map[string]string) *Builder {
	maps.Copy(b.tags, extra)
	return b
}

// Build returns the normalized tag set as a fresh map.
func (b *Builder) Build() map[string]string {
	return Normalize(b.tags)
}

// Normalize returns a copy of t with the lowercase name alias folded into the
// canonical Name key. An explicit Name wins over the alias.
func Normalize(t map[string]string) map[string]string {
	out := make(map[string]string, len(t))
	for k, v := range t {
		if k == KeyNameAlias {
			continue
		}
		out[k] = v
	}
	if alias, ok := t[KeyNameAlias]; ok {
		if _, exists := out[KeyName]; !exists {
			out[KeyName] = alias
		}
	}
	return out
}

// Diff returns the entries of desired whose value is absent or different in
// current. An empty result means the resource is already converged.
func Diff(current, desired map[string]string) map[string]string {
	diff := make(map[string]string)
	for k, v := range desired {
		if cur, ok := current[k]; !ok || cur != v {
			diff[k] = v
		}
	}
	return diff
}

// MatchesServer reports whether t identifies the given cluster/facet/index.
func MatchesServer(t map[string]string, cluster, facet string, index int) bool {
	return t[KeyCluster] == cluster && t[KeyFacet] == facet && t[KeyIndex] == strconv.Itoa(index)
}
