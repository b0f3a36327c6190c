package converge

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/platform/nodestore"
	"github.com/imamik/facets/internal/provisioning"
	"github.com/imamik/facets/internal/topology"
	"github.com/imamik/facets/internal/util/tags"
)

// EnsurePlacementGroup creates the named placement group if this process
// has not already done so.
func (e *Executor) EnsurePlacementGroup(ctx context.Context, name string) error {
	return e.placementGroups.ensure(name, func() (err error) {
		start := time.Now()
		defer func() { e.record("ensure_placement_group", start, err) }()

		if err := e.retry(ctx, func() error { return e.Provider.EnsurePlacementGroup(ctx, name) }); err != nil {
			return fmt.Errorf("failed to ensure placement group %s: %w", name, err)
		}
		provisioning.LogResourceExists(e.observer(), phase, "placement_group", name, name)
		return nil
	})
}

// EnsureSecurityGroups creates the server's declared security groups. Groups
// referenced only by name in settings must already exist.
func (e *Executor) EnsureSecurityGroups(ctx context.Context, s *topology.Server) error {
	for _, g := range s.SecurityGroups {
		spec := g.Spec()
		err := e.securityGroups.ensure(spec.Name, func() (err error) {
			start := time.Now()
			defer func() { e.record("ensure_security_group", start, err) }()

			if err := e.retry(ctx, func() error { return e.Provider.EnsureSecurityGroup(ctx, spec) }); err != nil {
				return fmt.Errorf("failed to ensure security group %s: %w", spec.Name, err)
			}
			provisioning.LogResourceExists(e.observer(), phase, "security_group", spec.Name, spec.Name)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Tag sends the entries of desired that differ from current. When nothing
// differs no provider call is made. It returns the tags that were sent.
func (e *Executor) Tag(ctx context.Context, ref cloud.ResourceRef, current, desired map[string]string) (map[string]string, error) {
	const op = "create_tags"
	desired = cloud.NormalizeTags(e.Provider, tags.Normalize(desired))
	diff := tags.Diff(current, desired)
	if len(diff) == 0 {
		e.Metrics.RecordSkipped(op)
		return nil, nil
	}

	start := time.Now()
	err := e.retry(ctx, func() error { return e.Provider.CreateTags(ctx, ref, diff) })
	e.record(op, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to tag %s: %w", ref, err)
	}
	provisioning.LogResourceUpdated(e.observer(), phase, string(ref.Kind), ref.ID, fmt.Sprintf("%d tags", len(diff)))
	return diff, nil
}

// CreateVolume creates a persistent volume that is declared with a size or
// snapshot but has no live counterpart yet.
func (e *Executor) CreateVolume(ctx context.Context, s *topology.Server, v *topology.Volume) error {
	const op = "create_volume"
	if v.Ephemeral() || v.VolumeID != "" || v.Live != nil || (v.Size == 0 && v.SnapshotID == "") {
		return nil
	}

	zone := v.AvailabilityZone
	if zone == "" && s.Instance != nil {
		zone = s.Instance.Zone
	}
	if zone == "" {
		zone = s.Settings.AvailabilityZone
	}

	name := s.Fullname() + ":" + v.Name
	provisioning.LogResourceCreating(e.observer(), phase, "volume", name)

	start := time.Now()
	vol, err := e.Provider.CreateVolume(ctx, cloud.VolumeSpec{
		Name:       VolumeTags(s, v)[tags.KeyName],
		Size:       v.Size,
		SnapshotID: v.SnapshotID,
		Zone:       zone,
		Tags:       cloud.NormalizeTags(e.Provider, VolumeTags(s, v)),
	})
	e.record(op, start, err)
	if err != nil {
		provisioning.LogResourceFailed(e.observer(), phase, "volume", name, err)
		return fmt.Errorf("failed to create volume %s: %w", name, err)
	}

	v.VolumeID = vol.ID
	v.AvailabilityZone = zone
	v.Live = vol
	provisioning.LogResourceCreated(e.observer(), phase, "volume", name, vol.ID)
	return nil
}

// AttachVolume attaches v to s's instance. A volume attached elsewhere is
// reported and left alone.
func (e *Executor) AttachVolume(ctx context.Context, s *topology.Server, v *topology.Volume) error {
	const op = "attach_volume"
	if v.Ephemeral() || v.VolumeID == "" || !s.Instance.Alive() {
		return nil
	}
	inst := s.Instance
	name := s.Fullname() + ":" + v.Name

	if v.Live != nil && v.Live.InstanceID != "" {
		if v.Live.InstanceID != inst.ID {
			provisioning.LogWarning(e.observer(), phase, name,
				fmt.Sprintf("volume %s is attached to %s, not %s; not attaching", v.VolumeID, v.Live.InstanceID, inst.ID))
		}
		e.Metrics.RecordSkipped(op)
		return nil
	}

	start := time.Now()
	err := e.retry(ctx, func() error { return e.Provider.AttachVolume(ctx, v.VolumeID, inst.ID, v.Device) })
	e.record(op, start, err)
	if err != nil {
		return fmt.Errorf("failed to attach volume %s to %s: %w", v.VolumeID, inst.ID, err)
	}

	if v.Live == nil {
		v.Live = &cloud.Volume{ID: v.VolumeID}
	}
	v.Live.InstanceID = inst.ID
	v.Live.Device = v.Device
	provisioning.LogResourceUpdated(e.observer(), phase, "volume", name, "attached at "+v.Device)
	return nil
}

// AssociateAddress attaches the server's public address to its instance.
// An address held by another instance is reported and left alone.
func (e *Executor) AssociateAddress(ctx context.Context, s *topology.Server) error {
	const op = "associate_address"
	ip := s.Settings.PublicIP
	if ip == "" || !s.Instance.Alive() {
		return nil
	}
	inst := s.Instance
	if inst.PublicIP == ip {
		e.Metrics.RecordSkipped(op)
		return nil
	}

	addrs, err := e.Provider.ListAddresses(ctx)
	if err != nil {
		return fmt.Errorf("failed to list addresses: %w", err)
	}
	for _, a := range addrs {
		if a.IP == ip && a.InstanceID != "" && a.InstanceID != inst.ID {
			provisioning.LogWarning(e.observer(), phase, s.Fullname(),
				fmt.Sprintf("address %s is attached to %s; not associating", ip, a.InstanceID))
			e.Metrics.RecordSkipped(op)
			return nil
		}
	}

	start := time.Now()
	err = e.retry(ctx, func() error { return e.Provider.AssociateAddress(ctx, inst.ID, ip) })
	e.record(op, start, err)
	if err != nil {
		return fmt.Errorf("failed to associate %s with %s: %w", ip, inst.ID, err)
	}
	inst.PublicIP = ip
	provisioning.LogResourceUpdated(e.observer(), phase, "server", s.Fullname(), "address "+ip)
	return nil
}

// SetInstanceAttributes applies the permanent flag as termination
// protection.
func (e *Executor) SetInstanceAttributes(ctx context.Context, s *topology.Server) error {
	const op = "modify_instance_attribute"
	permanent := s.Settings.Permanent
	if permanent == nil || !s.Instance.Alive() {
		return nil
	}
	inst := s.Instance
	if inst.Protected == *permanent {
		e.Metrics.RecordSkipped(op)
		return nil
	}

	start := time.Now()
	err := e.retry(ctx, func() error {
		return e.Provider.ModifyInstanceAttribute(ctx, inst.ID, cloud.InstanceAttributes{DisableAPITermination: permanent})
	})
	e.record(op, start, err)
	if err != nil {
		return fmt.Errorf("failed to set attributes on %s: %w", inst.ID, err)
	}
	inst.Protected = *permanent
	provisioning.LogResourceUpdated(e.observer(), phase, "server", s.Fullname(), fmt.Sprintf("permanent=%t", *permanent))
	return nil
}

// SyncToCloud brings the live resources of a running server in line with
// its declaration. Every step runs; their errors are joined.
func (e *Executor) SyncToCloud(ctx context.Context, s *topology.Server) error {
	if !s.Instance.Alive() {
		return fmt.Errorf("server %s has no live instance to sync", s.Fullname())
	}
	inst := s.Instance

	var errs []error
	sent, err := e.Tag(ctx, cloud.InstanceRef(inst.ID), inst.Tags, InstanceTags(s))
	errs = append(errs, err)
	inst.Tags = mergeTags(inst.Tags, sent)

	for _, v := range s.SortedVolumes() {
		if v.Ephemeral() {
			continue
		}
		if err := e.CreateVolume(ctx, s, v); err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, e.AttachVolume(ctx, s, v))
		if v.Live != nil {
			sent, err := e.Tag(ctx, cloud.VolumeRef(v.Live.ID), v.Live.Tags, VolumeTags(s, v))
			errs = append(errs, err)
			v.Live.Tags = mergeTags(v.Live.Tags, sent)
		}
	}

	errs = append(errs, e.AssociateAddress(ctx, s))
	errs = append(errs, e.SetInstanceAttributes(ctx, s))
	return errors.Join(errs...)
}

// SyncToNodeStore saves the server's node record.
func (e *Executor) SyncToNodeStore(ctx context.Context, s *topology.Server) (err error) {
	const op = "save_node"
	if e.Nodes == nil {
		return nil
	}
	start := time.Now()
	defer func() { e.record(op, start, err) }()

	node := &nodestore.Node{}
	if s.Node != nil {
		*node = *s.Node
	}
	node.Name = s.Fullname()
	node.Cluster = s.ClusterName
	node.Facet = s.FacetName
	node.Index = s.Index
	node.RunList = append([]string(nil), s.Settings.RunList...)
	node.Attributes = maps.Clone(s.Settings.Attributes)
	node.InstanceID = s.InstanceID()
	node.UpdatedAt = time.Now().UTC()

	node.Volumes = nil
	for _, v := range s.SortedVolumes() {
		node.Volumes = append(node.Volumes, nodestore.VolumeRecord{
			Name:       v.Name,
			Device:     v.Device,
			MountPoint: v.MountPoint,
			VolumeID:   v.VolumeID,
		})
	}

	if err := e.Nodes.SaveNode(ctx, node); err != nil {
		return fmt.Errorf("failed to save node %s: %w", node.Name, err)
	}
	s.Node = node
	provisioning.LogResourceUpdated(e.observer(), phase, "node", node.Name, "saved")
	return nil
}

func mergeTags(current, sent map[string]string) map[string]string {
	if len(sent) == 0 {
		return current
	}
	out := maps.Clone(current)
	if out == nil {
		out = make(map[string]string, len(sent))
	}
	maps.Copy(out, sent)
	return out
}
