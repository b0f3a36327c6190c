package cloud

import "context"

// MockProvider is a Provider whose behavior is set per method. Unset
// methods return zero values and no error.
type MockProvider struct {
	NameValue                   string
	ListInstancesFunc           func(ctx context.Context) ([]*Instance, error)
	ListVolumesFunc             func(ctx context.Context) ([]*Volume, error)
	ListAddressesFunc           func(ctx context.Context) ([]*Address, error)
	GetInstanceFunc             func(ctx context.Context, id string) (*Instance, error)
	CreateInstanceFunc          func(ctx context.Context, spec LaunchSpec) (*Instance, error)
	CreateVolumeFunc            func(ctx context.Context, spec VolumeSpec) (*Volume, error)
	AttachVolumeFunc            func(ctx context.Context, volumeID, instanceID, device string) error
	CreateTagsFunc              func(ctx context.Context, ref ResourceRef, tags map[string]string) error
	AssociateAddressFunc        func(ctx context.Context, instanceID, address string) error
	ModifyInstanceAttributeFunc func(ctx context.Context, instanceID string, attrs InstanceAttributes) error
	DestroyInstanceFunc         func(ctx context.Context, instanceID string) error
	EnsurePlacementGroupFunc    func(ctx context.Context, name string) error
	EnsureSecurityGroupFunc     func(ctx context.Context, group SecurityGroupSpec) error
}

var _ Provider = (*MockProvider)(nil)

// Name implements Provider.
func (m *MockProvider) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

// ListInstances implements Provider.
func (m *MockProvider) ListInstances(ctx context.Context) ([]*Instance, error) {
	if m.ListInstancesFunc != nil {
		return m.ListInstancesFunc(ctx)
	}
	return nil, nil
}

// ListVolumes implements Provider.
func (m *MockProvider) ListVolumes(ctx context.Context) ([]*Volume, error) {
	if m.ListVolumesFunc != nil {
		return m.ListVolumesFunc(ctx)
	}
	return nil, nil
}

// ListAddresses implements Provider.
func (m *MockProvider) ListAddresses(ctx context.Context) ([]*Address, error) {
	if m.ListAddressesFunc != nil {
		return m.ListAddressesFunc(ctx)
	}
	return nil, nil
}

// GetInstance implements Provider.
func (m *MockProvider) GetInstance(ctx context.Context, id string) (*Instance, error) {
	if m.GetInstanceFunc != nil {
		return m.GetInstanceFunc(ctx, id)
	}
	return &Instance{ID: id, State: StateRunning}, nil
}

// CreateInstance implements Provider.
func (m *MockProvider) CreateInstance(ctx context.Context, spec LaunchSpec) (*Instance, error) {
	if m.CreateInstanceFunc != nil {
		return m.CreateInstanceFunc(ctx, spec)
	}
	return &Instance{ID: "mock-id", Name: spec.Name, State: StatePending, Tags: spec.Tags}, nil
}

// CreateVolume implements Provider.
func (m *MockProvider) CreateVolume(ctx context.Context, spec VolumeSpec) (*Volume, error) {
	if m.CreateVolumeFunc != nil {
		return m.CreateVolumeFunc(ctx, spec)
	}
	return &Volume{ID: "mock-vol", Name: spec.Name, Size: spec.Size, Zone: spec.Zone}, nil
}

// AttachVolume implements Provider.
func (m *MockProvider) AttachVolume(ctx context.Context, volumeID, instanceID, device string) error {
	if m.AttachVolumeFunc != nil {
		return m.AttachVolumeFunc(ctx, volumeID, instanceID, device)
	}
	return nil
}

// CreateTags implements Provider.
func (m *MockProvider) CreateTags(ctx context.Context, ref ResourceRef, tags map[string]string) error {
	if m.CreateTagsFunc != nil {
		return m.CreateTagsFunc(ctx, ref, tags)
	}
	return nil
}

// AssociateAddress implements Provider.
func (m *MockProvider) AssociateAddress(ctx context.Context, instanceID, address string) error {
	if m.AssociateAddressFunc != nil {
		return m.AssociateAddressFunc(ctx, instanceID, address)
	}
	return nil
}

// ModifyInstanceAttribute implements Provider.
func (m *MockProvider) ModifyInstanceAttribute(ctx context.Context, instanceID string, attrs InstanceAttributes) error {
	if m.ModifyInstanceAttributeFunc != nil {
		return m.ModifyInstanceAttributeFunc(ctx, instanceID, attrs)
	}
	return nil
}

// DestroyInstance implements Provider.
func (m *MockProvider) DestroyInstance(ctx context.Context, instanceID string) error {
	if m.DestroyInstanceFunc != nil {
		return m.DestroyInstanceFunc(ctx, instanceID)
	}
	return nil
}

// EnsurePlacementGroup implements Provider.
func (m *MockProvider) EnsurePlacementGroup(ctx context.Context, name string) error {
	if m.EnsurePlacementGroupFunc != nil {
		return m.EnsurePlacementGroupFunc(ctx, name)
	}
	return nil
}

// EnsureSecurityGroup implements Provider.
func (m *MockProvider) EnsureSecurityGroup(ctx context.Context, group SecurityGroupSpec) error {
	if m.EnsureSecurityGroupFunc != nil {
		return m.EnsureSecurityGroupFunc(ctx, group)
	}
	return nil
}
