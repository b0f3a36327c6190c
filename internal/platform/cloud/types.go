package cloud

import "time"

// InstanceState is the lifecycle state of a compute instance, normalized
// across providers.
type InstanceState string

const (
	StatePending      InstanceState = "pending"
	StateRunning      InstanceState = "running"
	StateStopping     InstanceState = "stopping"
	StateStopped      InstanceState = "stopped"
	StateShuttingDown InstanceState = "shutting-down"
	StateTerminated   InstanceState = "terminated"
	StateUnknown      InstanceState = "unknown"
)

// Gone reports whether the instance is terminated or on its way there.
func (s InstanceState) Gone() bool {
	return s == StateTerminated || s == StateShuttingDown
}

// Transitional reports whether the instance is between stable states.
func (s InstanceState) Transitional() bool {
	switch s {
	case StatePending, StateStopping, StateUnknown:
		return true
	}
	return false
}

// Instance is a provider compute instance as observed during a pass.
type Instance struct {
	ID             string
	Name           string
	State          InstanceState
	Flavor         string
	Image          string
	Zone           string
	KeyPair        string
	PlacementGroup string
	SecurityGroups []string
	PublicIP       string
	PrivateIP      string
	CreatedAt      time.Time
	Tags           map[string]string
	// Protected is true when termination protection is enabled.
	Protected bool
}

// Alive reports whether the instance exists and is not terminated.
func (i *Instance) Alive() bool {
	return i != nil && !i.State.Gone()
}

// Address returns the best address to reach the instance on, preferring
// the public one.
func (i *Instance) Address() string {
	if i == nil {
		return ""
	}
	if i.PublicIP != "" {
		return i.PublicIP
	}
	return i.PrivateIP
}

// Volume is a provider block volume.
type Volume struct {
	ID         string
	Name       string
	InstanceID string
	Device     string
	Zone       string
	Size       int
	SnapshotID string
	Tags       map[string]string
}

// Address is an elastic or floating address.
type Address struct {
	ID         string
	IP         string
	InstanceID string
}

// ResourceKind identifies the type of a taggable resource.
type ResourceKind string

const (
	KindInstance ResourceKind = "instance"
	KindVolume   ResourceKind = "volume"
)

// ResourceRef points at a taggable provider resource.
type ResourceRef struct {
	Kind ResourceKind
	ID   string
}

func (r ResourceRef) String() string {
	return string(r.Kind) + "/" + r.ID
}

// InstanceRef returns a reference to an instance.
func InstanceRef(id string) ResourceRef { return ResourceRef{Kind: KindInstance, ID: id} }

// VolumeRef returns a reference to a volume.
func VolumeRef(id string) ResourceRef { return ResourceRef{Kind: KindVolume, ID: id} }

// LaunchSpec describes an instance to create.
type LaunchSpec struct {
	Name           string
	Image          string
	Flavor         string
	Zone           string
	KeyPair        string
	SecurityGroups []string
	PlacementGroup string
	UserData       string
	BlockDevices   []BlockDevice
	Monitoring     bool
	Tags           map[string]string
	// ClientToken makes the create call idempotent on providers that
	// support it.
	ClientToken string
}

// BlockDevice maps a device at launch. VirtualName is set for instance
// store (ephemeral) devices, Size or SnapshotID for volumes created with
// the instance.
type BlockDevice struct {
	Device              string
	VirtualName         string
	Size                int
	SnapshotID          string
	DeleteOnTermination bool
}

// VolumeSpec describes a standalone volume to create.
type VolumeSpec struct {
	Name       string
	Size       int
	SnapshotID string
	Zone       string
	Tags       map[string]string
}

// InstanceAttributes holds the mutable instance attributes. Nil fields are
// left unchanged.
type InstanceAttributes struct {
	DisableAPITermination *bool
}

// SecurityGroupSpec describes a security group and its ingress rules.
type SecurityGroupSpec struct {
	Name        string
	Description string
	Rules       []Rule
}

// Rule is an ingress rule. Either Group is set, authorizing members of that
// group, or the port range and CIDR are.
type Rule struct {
	Protocol string
	FromPort int
	ToPort   int
	CIDR     string
	Group    string
}
