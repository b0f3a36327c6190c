package cloud

import (
	"context"
	"fmt"
	"sync"
)

// Mutation records a change a DryRun provider would have made.
type Mutation struct {
	Op     string
	Target string
	Detail string
}

func (m Mutation) String() string {
	if m.Detail == "" {
		return fmt.Sprintf("%s %s", m.Op, m.Target)
	}
	return fmt.Sprintf("%s %s (%s)", m.Op, m.Target, m.Detail)
}

// DryRun wraps a provider so that reads hit the real provider while
// mutations are recorded and simulated. Instances and volumes created
// during the run live in an in-memory overlay, so later reads see them.
type DryRun struct {
	delegate Provider
	overlay  *FakeProvider

	mu        sync.Mutex
	mutations []Mutation
}

var _ Provider = (*DryRun)(nil)

// NewDryRun wraps delegate.
func NewDryRun(delegate Provider) *DryRun {
	overlay := NewFakeProvider()
	overlay.IDPrefix = "dry-run"
	return &DryRun{delegate: delegate, overlay: overlay}
}

// Mutations returns the recorded mutations in order.
func (d *DryRun) Mutations() []Mutation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Mutation(nil), d.mutations...)
}

func (d *DryRun) record(op, target, detail string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mutations = append(d.mutations, Mutation{Op: op, Target: target, Detail: detail})
}

// Name implements Provider.
func (d *DryRun) Name() string { return d.delegate.Name() }

// NormalizeTags applies the delegate's tag rules.
func (d *DryRun) NormalizeTags(tags map[string]string) map[string]string {
	return NormalizeTags(d.delegate, tags)
}

// ListInstances implements Provider.
func (d *DryRun) ListInstances(ctx context.Context) ([]*Instance, error) {
	live, err := d.delegate.ListInstances(ctx)
	if err != nil {
		return nil, err
	}
	simulated, _ := d.overlay.ListInstances(ctx)
	return append(live, simulated...), nil
}

// ListVolumes implements Provider.
func (d *DryRun) ListVolumes(ctx context.Context) ([]*Volume, error) {
	live, err := d.delegate.ListVolumes(ctx)
	if err != nil {
		return nil, err
	}
	simulated, _ := d.overlay.ListVolumes(ctx)
	return append(live, simulated...), nil
}

// ListAddresses implements Provider.
func (d *DryRun) ListAddresses(ctx context.Context) ([]*Address, error) {
	return d.delegate.ListAddresses(ctx)
}

// GetInstance implements Provider.
func (d *DryRun) GetInstance(ctx context.Context, id string) (*Instance, error) {
	if inst := d.overlay.Instance(id); inst != nil {
		return inst, nil
	}
	return d.delegate.GetInstance(ctx, id)
}

// CreateInstance implements Provider.
func (d *DryRun) CreateInstance(ctx context.Context, spec LaunchSpec) (*Instance, error) {
	d.record(OpCreateInstance, spec.Name, fmt.Sprintf("flavor=%s image=%s", spec.Flavor, spec.Image))
	return d.overlay.CreateInstance(ctx, spec)
}

// CreateVolume implements Provider.
func (d *DryRun) CreateVolume(ctx context.Context, spec VolumeSpec) (*Volume, error) {
	d.record(OpCreateVolume, spec.Name, fmt.Sprintf("size=%d", spec.Size))
	return d.overlay.CreateVolume(ctx, spec)
}

// AttachVolume implements Provider.
func (d *DryRun) AttachVolume(ctx context.Context, volumeID, instanceID, device string) error {
	d.record(OpAttachVolume, volumeID, instanceID+":"+device)
	if d.overlay.Volume(volumeID) != nil && d.overlay.Instance(instanceID) != nil {
		return d.overlay.AttachVolume(ctx, volumeID, instanceID, device)
	}
	return nil
}

// CreateTags implements Provider.
func (d *DryRun) CreateTags(ctx context.Context, ref ResourceRef, tags map[string]string) error {
	d.record(OpCreateTags, ref.String(), fmt.Sprintf("%d tags", len(tags)))
	if d.owns(ref) {
		return d.overlay.CreateTags(ctx, ref, tags)
	}
	return nil
}

// AssociateAddress implements Provider.
func (d *DryRun) AssociateAddress(_ context.Context, instanceID, address string) error {
	d.record(OpAssociateAddress, address, instanceID)
	return nil
}

// ModifyInstanceAttribute implements Provider.
func (d *DryRun) ModifyInstanceAttribute(ctx context.Context, instanceID string, attrs InstanceAttributes) error {
	d.record(OpModifyInstanceAttribute, instanceID, "")
	if d.overlay.Instance(instanceID) != nil {
		return d.overlay.ModifyInstanceAttribute(ctx, instanceID, attrs)
	}
	return nil
}

// DestroyInstance implements Provider.
func (d *DryRun) DestroyInstance(_ context.Context, instanceID string) error {
	d.record(OpDestroyInstance, instanceID, "")
	return nil
}

// EnsurePlacementGroup implements Provider.
func (d *DryRun) EnsurePlacementGroup(_ context.Context, name string) error {
	d.record(OpEnsurePlacementGroup, name, "")
	return nil
}

// EnsureSecurityGroup implements Provider.
func (d *DryRun) EnsureSecurityGroup(_ context.Context, group SecurityGroupSpec) error {
	d.record(OpEnsureSecurityGroup, group.Name, fmt.Sprintf("%d rules", len(group.Rules)))
	return nil
}

func (d *DryRun) owns(ref ResourceRef) bool {
	switch ref.Kind {
	case KindInstance:
		return d.overlay.Instance(ref.ID) != nil
	case KindVolume:
		return d.overlay.Volume(ref.ID) != nil
	}
	return false
}
