// Package topology is the desired-state model of a cluster: facets, their
// servers, and the volumes and security groups those servers own.
//
// A Cluster is built once per run from a config.Definition and a Registry
// and is not changed afterwards. Servers carry the observed state found by
// reconciliation, which is refreshed on every pass.
package topology

import (
	"maps"
	"slices"

	"github.com/imamik/facets/internal/config"
	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/platform/nodestore"
	"github.com/imamik/facets/internal/util/naming"
)

// VolumeClass tells whether a volume is instance-local scratch space or a
// standalone block volume.
type VolumeClass string

const (
	VolumeEphemeral  VolumeClass = "ephemeral"
	VolumePersistent VolumeClass = "persistent"
)

// Volume is a volume declaration. VolumeID and AvailabilityZone may be
// filled in when the live volume is discovered.
type Volume struct {
	Name             string
	Device           string
	MountPoint       string
	Size             int
	SnapshotID       string
	VolumeID         string
	AvailabilityZone string
	Class            VolumeClass
	CreateAtLaunch   bool
	Keep             bool
	Tags             map[string]string

	// Live is the discovered provider volume, if any.
	Live *cloud.Volume
}

// Ephemeral reports whether the volume is instance store.
func (v *Volume) Ephemeral() bool {
	return v.Class == VolumeEphemeral
}

// Clone returns a copy that shares nothing mutable with v.
func (v *Volume) Clone() *Volume {
	c := *v
	c.Tags = maps.Clone(v.Tags)
	if v.Live != nil {
		live := *v.Live
		live.Tags = maps.Clone(v.Live.Tags)
		c.Live = &live
	}
	return &c
}

// SecurityGroup is a named set of ingress rules.
type SecurityGroup struct {
	Name        string
	Description string
	Rules       []cloud.Rule
}

// Spec converts the group into its provider form.
func (g *SecurityGroup) Spec() cloud.SecurityGroupSpec {
	return cloud.SecurityGroupSpec{
		Name:        g.Name,
		Description: g.Description,
		Rules:       slices.Clone(g.Rules),
	}
}

// Compute is what a cluster, facet or server scope declares.
type Compute struct {
	Settings       config.Settings
	Volumes        map[string]*Volume
	SecurityGroups map[string]*SecurityGroup
}

// Cluster is the root of the desired-state tree.
type Cluster struct {
	Name     string
	Provider string
	Compute
	Facets []*Facet
}

// Facet returns the named facet, or nil.
func (c *Cluster) Facet(name string) *Facet {
	for _, f := range c.Facets {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Servers returns every server in cluster order.
func (c *Cluster) Servers() []*Server {
	var out []*Server
	for _, f := range c.Facets {
		out = append(out, f.Servers...)
	}
	return out
}

// Facet is a group of identical servers.
type Facet struct {
	Name      string
	Role      string
	Instances int
	Compute
	Coordinator *config.CoordinatorSpec
	Servers     []*Server
}

// Server is one desired server and what was observed for it.
type Server struct {
	ClusterName string
	FacetName   string
	Index       int
	// Name overrides the derived fullname. Only phantoms set it.
	Name string

	// Overrides is the server-specific declaration.
	Overrides Compute

	// Resolved desired state.
	Settings       config.Settings
	Volumes        map[string]*Volume
	SecurityGroups []*SecurityGroup

	// Observed state.
	Instance *cloud.Instance
	Node     *nodestore.Node
	// Phantom servers stand for live instances no declaration matches.
	Phantom bool
	// Conflicts lists additional live instances competing for this fullname.
	Conflicts []*cloud.Instance
}

// Fullname is the server's unique key.
func (s *Server) Fullname() string {
	if s.Name != "" {
		return s.Name
	}
	return naming.Server(s.ClusterName, s.FacetName, s.Index)
}

// InstanceID returns the paired instance id, or "".
func (s *Server) InstanceID() string {
	if s.Instance == nil {
		return ""
	}
	return s.Instance.ID
}

// SecurityGroupNames returns the names of the server's groups plus any
// existing groups named in its settings, de-duplicated in order.
func (s *Server) SecurityGroupNames() []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, g := range s.SecurityGroups {
		add(g.Name)
	}
	for _, n := range s.Settings.SecurityGroups {
		add(n)
	}
	return names
}

// SortedVolumes returns the resolved volumes ordered by name.
func (s *Server) SortedVolumes() []*Volume {
	names := slices.Sorted(maps.Keys(s.Volumes))
	out := make([]*Volume, 0, len(names))
	for _, n := range names {
		out = append(out, s.Volumes[n])
	}
	return out
}

// Clone returns a copy of s that a worker can own: volumes, observed
// instance and node are copied, declarations are shared read-only.
func (s *Server) Clone() *Server {
	c := *s
	if s.Volumes != nil {
		c.Volumes = make(map[string]*Volume, len(s.Volumes))
		for n, v := range s.Volumes {
			c.Volumes[n] = v.Clone()
		}
	}
	c.SecurityGroups = slices.Clone(s.SecurityGroups)
	if s.Instance != nil {
		inst := *s.Instance
		inst.Tags = maps.Clone(s.Instance.Tags)
		c.Instance = &inst
	}
	if s.Node != nil {
		node := *s.Node
		c.Node = &node
	}
	c.Conflicts = slices.Clone(s.Conflicts)
	return &c
}
