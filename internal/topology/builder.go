package topology

import (
	"fmt"
	"slices"
	"strings"

	"github.com/imamik/facets/internal/config"
	"github.com/imamik/facets/internal/platform/cloud"
)

// DefaultCIDR is used for port rules that do not name a source.
const DefaultCIDR = "0.0.0.0/0"

// ComputeBuilder accumulates the declarations of one scope.
type ComputeBuilder struct {
	cluster  string
	registry *Registry
	compute  Compute
}

// NewComputeBuilder starts an empty scope in cluster.
func NewComputeBuilder(cluster string, reg *Registry) *ComputeBuilder {
	return &ComputeBuilder{
		cluster:  cluster,
		registry: reg,
		compute: Compute{
			Volumes:        make(map[string]*Volume),
			SecurityGroups: make(map[string]*SecurityGroup),
		},
	}
}

// ClusterName returns the cluster the scope belongs to.
func (b *ComputeBuilder) ClusterName() string { return b.cluster }

// Settings replaces the scope's settings, keeping run-list entries added
// so far ahead of those in s.
func (b *ComputeBuilder) Settings(s config.Settings) *ComputeBuilder {
	runList := b.compute.Settings.RunList
	b.compute.Settings = s
	b.compute.Settings.RunList = nil
	for _, entry := range runList {
		b.appendRunList(entry)
	}
	for _, entry := range s.RunList {
		b.appendRunList(entry)
	}
	return b
}

// Role adds role[name] to the run-list and applies the role's implication.
func (b *ComputeBuilder) Role(name string) *ComputeBuilder {
	b.appendRunList("role[" + name + "]")
	if impl, ok := b.registry.Lookup(name); ok {
		impl(b)
	}
	return b
}

// Recipe adds recipe[name] to the run-list.
func (b *ComputeBuilder) Recipe(name string) *ComputeBuilder {
	if !strings.HasPrefix(name, "recipe[") {
		name = "recipe[" + name + "]"
	}
	b.appendRunList(name)
	return b
}

func (b *ComputeBuilder) appendRunList(entry string) {
	if !slices.Contains(b.compute.Settings.RunList, entry) {
		b.compute.Settings.RunList = append(b.compute.Settings.RunList, entry)
	}
}

// Volume returns the named volume, creating it if needed, after applying fn.
func (b *ComputeBuilder) Volume(name string, fn func(*VolumeBuilder)) *Volume {
	v, ok := b.compute.Volumes[name]
	if !ok {
		v = &Volume{Name: name}
		b.compute.Volumes[name] = v
	}
	if fn != nil {
		fn(&VolumeBuilder{v: v})
	}
	return v
}

// MountsEphemeralVolumes declares the four instance-store volumes.
func (b *ComputeBuilder) MountsEphemeralVolumes() *ComputeBuilder {
	for i, dev := range []string{"/dev/sdb", "/dev/sdc", "/dev/sdd", "/dev/sde"} {
		id := fmt.Sprintf("ephemeral%d", i)
		b.Volume(id, func(v *VolumeBuilder) {
			v.Device(dev).VolumeID(id).Ephemeral()
		})
	}
	return b
}

// SecurityGroup returns the named group, creating it if needed, after
// applying fn.
func (b *ComputeBuilder) SecurityGroup(name string, fn func(*SecurityGroupBuilder)) *SecurityGroup {
	g, ok := b.compute.SecurityGroups[name]
	if !ok {
		g = &SecurityGroup{Name: name}
		b.compute.SecurityGroups[name] = g
	}
	if fn != nil {
		fn(&SecurityGroupBuilder{g: g})
	}
	return g
}

// Apply adds a declared scope.
func (b *ComputeBuilder) Apply(c config.Compute) *ComputeBuilder {
	b.Settings(c.Settings)
	for _, role := range c.Roles {
		b.Role(role)
	}
	for _, recipe := range c.Recipes {
		b.Recipe(recipe)
	}
	if c.MountsEphemeralVolumes {
		b.MountsEphemeralVolumes()
	}
	for name, spec := range c.Volumes {
		b.Volume(name, func(v *VolumeBuilder) { v.apply(spec) })
	}
	for name, spec := range c.SecurityGroups {
		b.SecurityGroup(name, func(g *SecurityGroupBuilder) { g.apply(spec) })
	}
	return b
}

// Build returns the finished scope.
func (b *ComputeBuilder) Build() Compute {
	return b.compute
}

// VolumeBuilder configures one volume.
type VolumeBuilder struct {
	v *Volume
}

func (b *VolumeBuilder) Device(dev string) *VolumeBuilder {
	b.v.Device = dev
	return b
}

func (b *VolumeBuilder) MountPoint(path string) *VolumeBuilder {
	b.v.MountPoint = path
	return b
}

func (b *VolumeBuilder) Size(gib int) *VolumeBuilder {
	b.v.Size = gib
	return b
}

func (b *VolumeBuilder) SnapshotID(id string) *VolumeBuilder {
	b.v.SnapshotID = id
	return b
}

func (b *VolumeBuilder) VolumeID(id string) *VolumeBuilder {
	b.v.VolumeID = id
	return b
}

func (b *VolumeBuilder) Zone(zone string) *VolumeBuilder {
	b.v.AvailabilityZone = zone
	return b
}

func (b *VolumeBuilder) Ephemeral() *VolumeBuilder {
	b.v.Class = VolumeEphemeral
	return b
}

func (b *VolumeBuilder) Persistent() *VolumeBuilder {
	b.v.Class = VolumePersistent
	return b
}

func (b *VolumeBuilder) Keep() *VolumeBuilder {
	b.v.Keep = true
	return b
}

func (b *VolumeBuilder) CreateAtLaunch() *VolumeBuilder {
	b.v.CreateAtLaunch = true
	return b
}

// Tag sets a tag on the volume.
func (b *VolumeBuilder) Tag(key, value string) *VolumeBuilder {
	if b.v.Tags == nil {
		b.v.Tags = make(map[string]string)
	}
	b.v.Tags[key] = value
	return b
}

func (b *VolumeBuilder) apply(spec config.VolumeSpec) {
	if spec.Device != "" {
		b.Device(spec.Device)
	}
	if spec.MountPoint != "" {
		b.MountPoint(spec.MountPoint)
	}
	if spec.Size != 0 {
		b.Size(spec.Size)
	}
	if spec.SnapshotID != "" {
		b.SnapshotID(spec.SnapshotID)
	}
	if spec.VolumeID != "" {
		b.VolumeID(spec.VolumeID)
	}
	if spec.AvailabilityZone != "" {
		b.Zone(spec.AvailabilityZone)
	}
	if spec.Ephemeral {
		b.Ephemeral()
	}
	if spec.Keep {
		b.Keep()
	}
	if spec.CreateAtLaunch {
		b.CreateAtLaunch()
	}
	for k, v := range spec.Tags {
		b.Tag(k, v)
	}
}

// SecurityGroupBuilder configures one security group. Rules are kept in
// declaration order without duplicates.
type SecurityGroupBuilder struct {
	g *SecurityGroup
}

// Description sets the group description.
func (b *SecurityGroupBuilder) Description(desc string) *SecurityGroupBuilder {
	b.g.Description = desc
	return b
}

// AuthorizePort opens a single TCP port to cidr, or to everyone when cidr is empty.
func (b *SecurityGroupBuilder) AuthorizePort(port int, cidr string) *SecurityGroupBuilder {
	return b.AuthorizePortRangeFrom(port, port, "tcp", cidr)
}

// AuthorizePortRange opens a TCP port range to everyone.
func (b *SecurityGroupBuilder) AuthorizePortRange(from, to int) *SecurityGroupBuilder {
	return b.AuthorizePortRangeFrom(from, to, "tcp", "")
}

// AuthorizePortRangeFrom opens a port range for protocol to cidr.
func (b *SecurityGroupBuilder) AuthorizePortRangeFrom(from, to int, protocol, cidr string) *SecurityGroupBuilder {
	if protocol == "" {
		protocol = "tcp"
	}
	if cidr == "" {
		cidr = DefaultCIDR
	}
	if to == 0 {
		to = from
	}
	return b.add(cloud.Rule{Protocol: protocol, FromPort: from, ToPort: to, CIDR: cidr})
}

// AuthorizeGroup admits all members of group.
func (b *SecurityGroupBuilder) AuthorizeGroup(group string) *SecurityGroupBuilder {
	return b.add(cloud.Rule{Group: group})
}

func (b *SecurityGroupBuilder) add(r cloud.Rule) *SecurityGroupBuilder {
	if !slices.Contains(b.g.Rules, r) {
		b.g.Rules = append(b.g.Rules, r)
	}
	return b
}

func (b *SecurityGroupBuilder) apply(spec config.SecurityGroupSpec) {
	if spec.Description != "" {
		b.Description(spec.Description)
	}
	for _, p := range spec.Ports {
		b.AuthorizePortRangeFrom(p.From, p.To, p.Protocol, p.CIDR)
	}
	for _, g := range spec.Groups {
		b.AuthorizeGroup(g)
	}
}
