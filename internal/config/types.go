// Package config defines the declarative inputs of a run: the cluster
// definition document, the layered settings document, and the timeouts that
// bound provider calls.
//
// Both documents are read once per run and never mutated by the engine.
package config

// Settings is the attribute set that drives server creation. Every layer of
// the settings hierarchy (defaults, common, cluster, facet, server) is a
// Settings value; the resolver folds them into one per server.
type Settings struct {
	Flavor           string `yaml:"flavor,omitempty" json:"flavor,omitempty"`
	ImageID          string `yaml:"image_id,omitempty" json:"image_id,omitempty"`
	ImageName        string `yaml:"image_name,omitempty" json:"image_name,omitempty"`
	AvailabilityZone string `yaml:"availability_zone,omitempty" json:"availability_zone,omitempty"`
	KeyPair          string `yaml:"key_pair,omitempty" json:"key_pair,omitempty"`
	PlacementGroup   string `yaml:"placement_group,omitempty" json:"placement_group,omitempty"`
	// PublicIP is an elastic/floating address to associate with the server.
	PublicIP string `yaml:"public_ip,omitempty" json:"public_ip,omitempty"`
	// Permanent servers get termination protection.
	Permanent  *bool `yaml:"permanent,omitempty" json:"permanent,omitempty"`
	Monitoring *bool `yaml:"monitoring,omitempty" json:"monitoring,omitempty"`

	SSHUser          string `yaml:"ssh_user,omitempty" json:"ssh_user,omitempty"`
	BootstrapCommand string `yaml:"bootstrap_command,omitempty" json:"bootstrap_command,omitempty"`

	RunList        []string          `yaml:"run_list,omitempty" json:"run_list,omitempty"`
	SecurityGroups []string          `yaml:"security_groups,omitempty" json:"security_groups,omitempty"`
	Tags           map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
	UserData       map[string]any    `yaml:"user_data,omitempty" json:"user_data,omitempty"`
	Attributes     map[string]any    `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// Image returns the image reference to launch from, preferring the id.
func (s Settings) Image() string {
	if s.ImageID != "" {
		return s.ImageID
	}
	return s.ImageName
}

// Definition is the declarative cluster document.
type Definition struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider,omitempty"`

	Compute `yaml:",inline"`

	// Implications extends the built-in role implication table.
	Implications map[string]ImplicationSpec `yaml:"implications,omitempty"`

	Facets []FacetSpec `yaml:"facets"`
}

// Compute holds the declarations shared by cluster, facet and server scopes.
type Compute struct {
	Settings               Settings                     `yaml:"settings,omitempty"`
	Roles                  []string                     `yaml:"roles,omitempty"`
	Recipes                []string                     `yaml:"recipes,omitempty"`
	Volumes                map[string]VolumeSpec        `yaml:"volumes,omitempty"`
	SecurityGroups         map[string]SecurityGroupSpec `yaml:"security_groups,omitempty"`
	MountsEphemeralVolumes bool                         `yaml:"mounts_ephemeral_volumes,omitempty"`
}

// FacetSpec declares a facet and its instances.
type FacetSpec struct {
	Name      string `yaml:"name"`
	Role      string `yaml:"role,omitempty"`
	Instances int    `yaml:"instances"`

	Compute `yaml:",inline"`

	Coordinator *CoordinatorSpec `yaml:"coordinator,omitempty"`

	// Servers holds per-index overrides.
	Servers map[int]Compute `yaml:"servers,omitempty"`
}

// CoordinatorSpec names a facet whose first server's private address is
// injected into this facet's attributes under each listed dotted key.
type CoordinatorSpec struct {
	Facet      string   `yaml:"facet"`
	Attributes []string `yaml:"attributes"`
}

// VolumeSpec declares a volume. Unset fields are filled from wider scopes.
type VolumeSpec struct {
	Device           string            `yaml:"device,omitempty"`
	MountPoint       string            `yaml:"mount_point,omitempty"`
	Size             int               `yaml:"size,omitempty"`
	SnapshotID       string            `yaml:"snapshot_id,omitempty"`
	VolumeID         string            `yaml:"volume_id,omitempty"`
	AvailabilityZone string            `yaml:"availability_zone,omitempty"`
	Ephemeral        bool              `yaml:"ephemeral,omitempty"`
	CreateAtLaunch   bool              `yaml:"create_at_launch,omitempty"`
	Keep             bool              `yaml:"keep,omitempty"`
	Tags             map[string]string `yaml:"tags,omitempty"`
}

// SecurityGroupSpec declares a security group's rules.
type SecurityGroupSpec struct {
	Description string     `yaml:"description,omitempty"`
	Ports       []PortSpec `yaml:"ports,omitempty"`
	// Groups lists groups whose members are authorized.
	Groups []string `yaml:"groups,omitempty"`
}

// PortSpec authorizes a port range. To defaults to From.
type PortSpec struct {
	From     int    `yaml:"from"`
	To       int    `yaml:"to,omitempty"`
	Protocol string `yaml:"protocol,omitempty"`
	CIDR     string `yaml:"cidr,omitempty"`
}

// ImplicationSpec is what a role implies when it is applied.
type ImplicationSpec struct {
	SecurityGroups map[string]SecurityGroupSpec `yaml:"security_groups,omitempty"`
	Recipes        []string                     `yaml:"recipes,omitempty"`
}

// SettingsDocument is the layered settings source, re-read on every run.
type SettingsDocument struct {
	Common   Settings                   `yaml:"common,omitempty"`
	Clusters map[string]ClusterSettings `yaml:"clusters,omitempty"`
}

// ClusterSettings holds a cluster's settings layers.
type ClusterSettings struct {
	Common Settings            `yaml:"common,omitempty"`
	Facets map[string]Settings `yaml:"facets,omitempty"`
}

// Cluster returns the settings layers for a cluster, or empty layers.
func (d *SettingsDocument) Cluster(name string) ClusterSettings {
	if d == nil {
		return ClusterSettings{}
	}
	return d.Clusters[name]
}
