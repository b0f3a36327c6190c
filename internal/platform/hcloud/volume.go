package hcloud

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/util/retry"
)

// ErrSnapshotVolume is returned for volumes restored from a snapshot, which
// Hetzner Cloud volumes do not support.
var ErrSnapshotVolume = errors.New("hcloud volumes cannot be created from a snapshot")

// ListVolumes implements cloud.Provider. The device a volume appears at is
// chosen by the platform, so Device is left empty and volumes are paired
// with their declarations by label.
func (p *Provider) ListVolumes(ctx context.Context) ([]*cloud.Volume, error) {
	volumes, err := p.client.Volume.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}
	out := make([]*cloud.Volume, 0, len(volumes))
	for _, v := range volumes {
		vol := &cloud.Volume{
			ID:   formatID(v.ID),
			Name: v.Name,
			Size: v.Size,
			Tags: maps.Clone(v.Labels),
		}
		if v.Server != nil {
			vol.InstanceID = formatID(v.Server.ID)
		}
		if v.Location != nil {
			vol.Zone = v.Location.Name
		}
		out = append(out, vol)
	}
	return out, nil
}

// CreateVolume implements cloud.Provider.
func (p *Provider) CreateVolume(ctx context.Context, spec cloud.VolumeSpec) (*cloud.Volume, error) {
	if spec.SnapshotID != "" {
		return nil, ErrSnapshotVolume
	}
	if spec.Zone == "" {
		return nil, fmt.Errorf("volume %s has no location", spec.Name)
	}
	location, err := p.resolveLocation(ctx, spec.Zone)
	if err != nil {
		return nil, err
	}

	name := labelValue(spec.Name)
	volume, _, err := (&EnsureOperation[*hcloud.Volume, hcloud.VolumeCreateOpts, any]{
		Name:         name,
		ResourceType: "volume",
		Get:          p.client.Volume.Get,
		Create:       p.createVolume,
		CreateOptsMapper: func() hcloud.VolumeCreateOpts {
			return hcloud.VolumeCreateOpts{
				Name:     name,
				Size:     spec.Size,
				Location: location,
				Labels:   p.NormalizeTags(spec.Tags),
			}
		},
	}).Execute(ctx, p)
	if err != nil {
		return nil, err
	}

	out := &cloud.Volume{
		ID:   formatID(volume.ID),
		Name: volume.Name,
		Zone: spec.Zone,
		Size: volume.Size,
		Tags: maps.Clone(volume.Labels),
	}
	if volume.Server != nil {
		out.InstanceID = formatID(volume.Server.ID)
	}
	return out, nil
}

func (p *Provider) createVolume(ctx context.Context, opts hcloud.VolumeCreateOpts) (*CreateResult[*hcloud.Volume], *hcloud.Response, error) {
	res, resp, err := p.client.Volume.Create(ctx, opts)
	if err != nil {
		return nil, resp, err
	}
	return &CreateResult[*hcloud.Volume]{
		Resource: res.Volume,
		Action:   res.Action,
		Actions:  res.NextActions,
	}, resp, nil
}

// AttachVolume implements cloud.Provider. The device is assigned by the
// platform; the requested one is ignored.
func (p *Provider) AttachVolume(ctx context.Context, volumeID, instanceID, _ string) error {
	vid, err := parseID("volume", volumeID)
	if err != nil {
		return err
	}
	sid, err := parseID("server", instanceID)
	if err != nil {
		return err
	}

	return retry.WithExponentialBackoff(ctx, func() error {
		action, _, err := p.client.Volume.Attach(ctx, &hcloud.Volume{ID: vid}, &hcloud.Server{ID: sid})
		if err != nil {
			if isResourceLocked(err) {
				return err
			}
			return retry.Fatal(fmt.Errorf("failed to attach volume %s: %w", volumeID, notFound(err)))
		}
		return p.client.Action.WaitFor(ctx, action)
	}, retry.WithMaxRetries(p.timeouts.RetryMaxAttempts), retry.WithInitialDelay(p.timeouts.RetryInitialDelay))
}
