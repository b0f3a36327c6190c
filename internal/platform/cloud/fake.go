package cloud

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"
)

// Fake operation names, used as keys for call counts and injected errors.
const (
	OpListInstances           = "ListInstances"
	OpListVolumes             = "ListVolumes"
	OpListAddresses           = "ListAddresses"
	OpGetInstance             = "GetInstance"
	OpCreateInstance          = "CreateInstance"
	OpCreateVolume            = "CreateVolume"
	OpAttachVolume            = "AttachVolume"
	OpCreateTags              = "CreateTags"
	OpAssociateAddress        = "AssociateAddress"
	OpModifyInstanceAttribute = "ModifyInstanceAttribute"
	OpDestroyInstance         = "DestroyInstance"
	OpEnsurePlacementGroup    = "EnsurePlacementGroup"
	OpEnsureSecurityGroup     = "EnsureSecurityGroup"
)

var mutatingOps = []string{
	OpCreateInstance, OpCreateVolume, OpAttachVolume, OpCreateTags, OpAssociateAddress,
	OpModifyInstanceAttribute, OpDestroyInstance, OpEnsurePlacementGroup, OpEnsureSecurityGroup,
}

// FakeProvider is an in-memory Provider. It backs the "fake" provider name,
// the dry-run overlay, and tests.
type FakeProvider struct {
	mu sync.Mutex

	name            string
	instances       map[string]*Instance
	volumes         map[string]*Volume
	addresses       map[string]*Address
	placementGroups map[string]bool
	securityGroups  map[string]SecurityGroupSpec
	nextID          int

	calls  map[string]int
	errors map[string]error

	// LaunchState is the state new instances start in. Defaults to running.
	LaunchState InstanceState
	// IDPrefix prefixes generated resource ids.
	IDPrefix string
}

var _ Provider = (*FakeProvider)(nil)

// NewFakeProvider creates an empty fake provider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		name:            "fake",
		instances:       make(map[string]*Instance),
		volumes:         make(map[string]*Volume),
		addresses:       make(map[string]*Address),
		placementGroups: make(map[string]bool),
		securityGroups:  make(map[string]SecurityGroupSpec),
		calls:           make(map[string]int),
		errors:          make(map[string]error),
		LaunchState:     StateRunning,
		IDPrefix:        "fake",
	}
}

// Name implements Provider.
func (f *FakeProvider) Name() string { return f.name }

// SetError makes every later call of op fail with err. A nil err clears it.
func (f *FakeProvider) SetError(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errors, op)
		return
	}
	f.errors[op] = err
}

// Calls returns how often op was called.
func (f *FakeProvider) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// MutationCalls returns the number of calls to mutating operations.
func (f *FakeProvider) MutationCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, op := range mutatingOps {
		n += f.calls[op]
	}
	return n
}

// ResetCalls zeroes all call counts.
func (f *FakeProvider) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = make(map[string]int)
}

// AddInstance seeds an instance.
func (f *FakeProvider) AddInstance(inst *Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[inst.ID] = cloneInstance(inst)
}

// AddVolume seeds a volume.
func (f *FakeProvider) AddVolume(vol *Volume) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes[vol.ID] = cloneVolume(vol)
}

// AddAddress seeds an address.
func (f *FakeProvider) AddAddress(addr *Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addresses[addr.IP] = &Address{ID: addr.ID, IP: addr.IP, InstanceID: addr.InstanceID}
}

// SetInstanceState changes a seeded instance's state.
func (f *FakeProvider) SetInstanceState(id string, state InstanceState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inst, ok := f.instances[id]; ok {
		inst.State = state
	}
}

// Instance returns a copy of the instance with id, or nil.
func (f *FakeProvider) Instance(id string) *Instance {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inst, ok := f.instances[id]; ok {
		return cloneInstance(inst)
	}
	return nil
}

// Volume returns a copy of the volume with id, or nil.
func (f *FakeProvider) Volume(id string) *Volume {
	f.mu.Lock()
	defer f.mu.Unlock()
	if vol, ok := f.volumes[id]; ok {
		return cloneVolume(vol)
	}
	return nil
}

// HasPlacementGroup reports whether a placement group was ensured.
func (f *FakeProvider) HasPlacementGroup(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.placementGroups[name]
}

// SecurityGroup returns an ensured security group.
func (f *FakeProvider) SecurityGroup(name string) (SecurityGroupSpec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sg, ok := f.securityGroups[name]
	return sg, ok
}

// record counts a call and returns the injected error for op. Callers hold mu.
func (f *FakeProvider) record(op string) error {
	f.calls[op]++
	return f.errors[op]
}

func (f *FakeProvider) newID(kind string) string {
	f.nextID++
	return fmt.Sprintf("%s-%s-%d", f.IDPrefix, kind, f.nextID)
}

// ListInstances implements Provider.
func (f *FakeProvider) ListInstances(_ context.Context) ([]*Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpListInstances); err != nil {
		return nil, err
	}
	out := make([]*Instance, 0, len(f.instances))
	for _, inst := range f.instances {
		out = append(out, cloneInstance(inst))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListVolumes implements Provider.
func (f *FakeProvider) ListVolumes(_ context.Context) ([]*Volume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpListVolumes); err != nil {
		return nil, err
	}
	out := make([]*Volume, 0, len(f.volumes))
	for _, vol := range f.volumes {
		out = append(out, cloneVolume(vol))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListAddresses implements Provider.
func (f *FakeProvider) ListAddresses(_ context.Context) ([]*Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpListAddresses); err != nil {
		return nil, err
	}
	out := make([]*Address, 0, len(f.addresses))
	for _, addr := range f.addresses {
		out = append(out, &Address{ID: addr.ID, IP: addr.IP, InstanceID: addr.InstanceID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out, nil
}

// GetInstance implements Provider.
func (f *FakeProvider) GetInstance(_ context.Context, id string) (*Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpGetInstance); err != nil {
		return nil, err
	}
	inst, ok := f.instances[id]
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", id, ErrNotFound)
	}
	return cloneInstance(inst), nil
}

// CreateInstance implements Provider.
func (f *FakeProvider) CreateInstance(_ context.Context, spec LaunchSpec) (*Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpCreateInstance); err != nil {
		return nil, err
	}
	if spec.ClientToken != "" {
		for _, inst := range f.instances {
			if inst.Tags["client-token"] == spec.ClientToken {
				return cloneInstance(inst), nil
			}
		}
	}

	id := f.newID("i")
	tags := maps.Clone(spec.Tags)
	if tags == nil {
		tags = make(map[string]string)
	}
	if spec.ClientToken != "" {
		tags["client-token"] = spec.ClientToken
	}
	inst := &Instance{
		ID:             id,
		Name:           spec.Name,
		State:          f.LaunchState,
		Flavor:         spec.Flavor,
		Image:          spec.Image,
		Zone:           spec.Zone,
		KeyPair:        spec.KeyPair,
		PlacementGroup: spec.PlacementGroup,
		SecurityGroups: append([]string(nil), spec.SecurityGroups...),
		PrivateIP:      fmt.Sprintf("10.0.0.%d", f.nextID),
		CreatedAt:      time.Now(),
		Tags:           tags,
	}
	f.instances[id] = inst

	for _, bd := range spec.BlockDevices {
		if bd.VirtualName != "" {
			continue
		}
		vid := f.newID("vol")
		f.volumes[vid] = &Volume{
			ID: vid, InstanceID: id, Device: bd.Device, Zone: spec.Zone,
			Size: bd.Size, SnapshotID: bd.SnapshotID, Tags: map[string]string{},
		}
	}
	return cloneInstance(inst), nil
}

// CreateVolume implements Provider.
func (f *FakeProvider) CreateVolume(_ context.Context, spec VolumeSpec) (*Volume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpCreateVolume); err != nil {
		return nil, err
	}
	vol := &Volume{
		ID:         f.newID("vol"),
		Name:       spec.Name,
		Zone:       spec.Zone,
		Size:       spec.Size,
		SnapshotID: spec.SnapshotID,
		Tags:       maps.Clone(spec.Tags),
	}
	f.volumes[vol.ID] = vol
	return cloneVolume(vol), nil
}

// AttachVolume implements Provider.
func (f *FakeProvider) AttachVolume(_ context.Context, volumeID, instanceID, device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpAttachVolume); err != nil {
		return err
	}
	vol, ok := f.volumes[volumeID]
	if !ok {
		return fmt.Errorf("volume %s: %w", volumeID, ErrNotFound)
	}
	if _, ok := f.instances[instanceID]; !ok {
		return fmt.Errorf("instance %s: %w", instanceID, ErrNotFound)
	}
	if vol.InstanceID != "" && vol.InstanceID != instanceID {
		return fmt.Errorf("volume %s is attached to %s", volumeID, vol.InstanceID)
	}
	vol.InstanceID = instanceID
	vol.Device = device
	return nil
}

// CreateTags implements Provider.
func (f *FakeProvider) CreateTags(_ context.Context, ref ResourceRef, tags map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpCreateTags); err != nil {
		return err
	}
	var target map[string]string
	switch ref.Kind {
	case KindInstance:
		inst, ok := f.instances[ref.ID]
		if !ok {
			return fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		if inst.Tags == nil {
			inst.Tags = make(map[string]string)
		}
		target = inst.Tags
	case KindVolume:
		vol, ok := f.volumes[ref.ID]
		if !ok {
			return fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		if vol.Tags == nil {
			vol.Tags = make(map[string]string)
		}
		target = vol.Tags
	default:
		return fmt.Errorf("unsupported resource kind %q", ref.Kind)
	}
	maps.Copy(target, tags)
	return nil
}

// AssociateAddress implements Provider.
func (f *FakeProvider) AssociateAddress(_ context.Context, instanceID, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpAssociateAddress); err != nil {
		return err
	}
	addr, ok := f.addresses[address]
	if !ok {
		return fmt.Errorf("address %s: %w", address, ErrNotFound)
	}
	inst, ok := f.instances[instanceID]
	if !ok {
		return fmt.Errorf("instance %s: %w", instanceID, ErrNotFound)
	}
	addr.InstanceID = instanceID
	inst.PublicIP = address
	return nil
}

// ModifyInstanceAttribute implements Provider.
func (f *FakeProvider) ModifyInstanceAttribute(_ context.Context, instanceID string, attrs InstanceAttributes) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpModifyInstanceAttribute); err != nil {
		return err
	}
	inst, ok := f.instances[instanceID]
	if !ok {
		return fmt.Errorf("instance %s: %w", instanceID, ErrNotFound)
	}
	if attrs.DisableAPITermination != nil {
		inst.Protected = *attrs.DisableAPITermination
	}
	return nil
}

// DestroyInstance implements Provider. Volumes marked for deletion are
// not modeled; attached volumes are detached.
func (f *FakeProvider) DestroyInstance(_ context.Context, instanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpDestroyInstance); err != nil {
		return err
	}
	inst, ok := f.instances[instanceID]
	if !ok {
		return fmt.Errorf("instance %s: %w", instanceID, ErrNotFound)
	}
	if inst.Protected {
		return fmt.Errorf("instance %s has termination protection enabled", instanceID)
	}
	inst.State = StateTerminated
	for _, vol := range f.volumes {
		if vol.InstanceID == instanceID {
			vol.InstanceID = ""
		}
	}
	for _, addr := range f.addresses {
		if addr.InstanceID == instanceID {
			addr.InstanceID = ""
		}
	}
	return nil
}

// EnsurePlacementGroup implements Provider.
func (f *FakeProvider) EnsurePlacementGroup(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpEnsurePlacementGroup); err != nil {
		return err
	}
	f.placementGroups[name] = true
	return nil
}

// EnsureSecurityGroup implements Provider.
func (f *FakeProvider) EnsureSecurityGroup(_ context.Context, group SecurityGroupSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpEnsureSecurityGroup); err != nil {
		return err
	}
	if _, ok := f.securityGroups[group.Name]; !ok {
		f.securityGroups[group.Name] = group
	}
	return nil
}

func cloneInstance(i *Instance) *Instance {
	c := *i
	c.Tags = maps.Clone(i.Tags)
	c.SecurityGroups = append([]string(nil), i.SecurityGroups...)
	return &c
}

func cloneVolume(v *Volume) *Volume {
	c := *v
	c.Tags = maps.Clone(v.Tags)
	return &c
}
