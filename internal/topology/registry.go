package topology

import (
	"maps"
	"slices"

	"github.com/imamik/facets/internal/config"
)

// Implication is applied to a scope whenever a role is added to it.
type Implication func(b *ComputeBuilder)

// Registry is the role implication table. It is filled at construction and
// read-only afterwards, so one Registry may be shared by concurrent builds.
type Registry struct {
	implications map[string]Implication
}

// NewRegistry returns the built-in implications extended by extra. Entries
// in extra replace built-ins of the same name.
func NewRegistry(extra map[string]Implication) *Registry {
	r := &Registry{implications: builtinImplications()}
	maps.Copy(r.implications, extra)
	return r
}

// Lookup returns the implication registered for role.
func (r *Registry) Lookup(role string) (Implication, bool) {
	if r == nil {
		return nil, false
	}
	impl, ok := r.implications[role]
	return impl, ok
}

// Roles returns the roles with registered implications, sorted.
func (r *Registry) Roles() []string {
	return slices.Sorted(maps.Keys(r.implications))
}

// ImplicationsFromDefinition converts declared implications.
func ImplicationsFromDefinition(specs map[string]config.ImplicationSpec) map[string]Implication {
	out := make(map[string]Implication, len(specs))
	for role, spec := range specs {
		out[role] = func(b *ComputeBuilder) {
			for _, name := range slices.Sorted(maps.Keys(spec.SecurityGroups)) {
				sg := spec.SecurityGroups[name]
				b.SecurityGroup(name, func(g *SecurityGroupBuilder) { g.apply(sg) })
			}
			for _, recipe := range spec.Recipes {
				b.Recipe(recipe)
			}
		}
	}
	return out
}

func builtinImplications() map[string]Implication {
	return map[string]Implication{
		"hadoop_master": func(b *ComputeBuilder) {
			b.SecurityGroup("hadoop_namenode", func(g *SecurityGroupBuilder) {
				g.AuthorizePortRange(80, 80)
			})
		},
		"nfs_server": func(b *ComputeBuilder) {
			b.SecurityGroup("nfs_server", func(g *SecurityGroupBuilder) {
				g.AuthorizeGroup("nfs_client")
			})
		},
		"nfs_client": func(b *ComputeBuilder) {
			b.SecurityGroup("nfs_client", nil)
		},
		"ssh": func(b *ComputeBuilder) {
			b.SecurityGroup("ssh", func(g *SecurityGroupBuilder) {
				g.AuthorizePortRange(22, 22)
			})
		},
		"chef_server": func(b *ComputeBuilder) {
			b.SecurityGroup("chef_server", func(g *SecurityGroupBuilder) {
				g.AuthorizePortRange(4000, 4000) // api
				g.AuthorizePortRange(4040, 4040) // webui
			})
		},
		"george": func(b *ComputeBuilder) {
			b.SecurityGroup(b.ClusterName()+"-george", func(g *SecurityGroupBuilder) {
				g.AuthorizePortRange(80, 80)
				g.AuthorizePortRange(443, 443)
			})
		},
	}
}
