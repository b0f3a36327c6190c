package hcloud

import (
	"context"
	"fmt"
	"maps"
	"path"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/util/retry"
	"github.com/imamik/facets/internal/util/tags"
)

// ListInstances implements cloud.Provider.
func (p *Provider) ListInstances(ctx context.Context) ([]*cloud.Instance, error) {
	servers, err := p.client.Server.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	out := make([]*cloud.Instance, 0, len(servers))
	for _, s := range servers {
		out = append(out, toInstance(s))
	}
	return out, nil
}

// GetInstance implements cloud.Provider.
func (p *Provider) GetInstance(ctx context.Context, id string) (*cloud.Instance, error) {
	sid, err := parseID("server", id)
	if err != nil {
		return nil, err
	}
	server, _, err := p.client.Server.GetByID(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("failed to get server %s: %w", id, notFound(err))
	}
	if server == nil {
		return nil, fmt.Errorf("server %s: %w", id, cloud.ErrNotFound)
	}
	return toInstance(server), nil
}

// CreateInstance implements cloud.Provider. A server with the requested
// name that already exists in the same cluster is returned as is. Block
// devices with a size become volumes attached to the new server.
func (p *Provider) CreateInstance(ctx context.Context, spec cloud.LaunchSpec) (*cloud.Instance, error) {
	opts, err := p.buildServerCreateOpts(ctx, spec)
	if err != nil {
		return nil, err
	}

	server, _, err := (&EnsureOperation[*hcloud.Server, hcloud.ServerCreateOpts, any]{
		Name:         spec.Name,
		ResourceType: "server",
		Get:          p.client.Server.Get,
		Create:       p.createServerWithRetry,
		Validate: func(s *hcloud.Server) error {
			if want := spec.Tags[tags.KeyCluster]; s.Labels[tags.KeyCluster] != labelValue(want) {
				return fmt.Errorf("server %s exists outside cluster %s", spec.Name, want)
			}
			return nil
		},
		CreateOptsMapper: func() hcloud.ServerCreateOpts { return opts },
	}).Execute(ctx, p)
	if err != nil {
		return nil, err
	}

	for _, bd := range spec.BlockDevices {
		if bd.VirtualName != "" || bd.Size == 0 {
			continue
		}
		if err := p.ensureLaunchVolume(ctx, spec, bd, server); err != nil {
			return nil, err
		}
	}
	return toInstance(server), nil
}

// buildServerCreateOpts resolves all dependencies and builds server creation options.
func (p *Provider) buildServerCreateOpts(ctx context.Context, spec cloud.LaunchSpec) (hcloud.ServerCreateOpts, error) {
	serverType, _, err := p.client.ServerType.Get(ctx, spec.Flavor)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get server type: %w", err)
	}
	if serverType == nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("server type not found: %s", spec.Flavor)
	}

	image, err := p.resolveImage(ctx, spec.Image, serverType)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	var keys []string
	if spec.KeyPair != "" {
		keys = []string{spec.KeyPair}
	}
	sshKeys, err := p.resolveSSHKeys(ctx, keys)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	location, err := p.resolveLocation(ctx, spec.Zone)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	placementGroup, err := p.resolvePlacementGroup(ctx, spec.PlacementGroup)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	firewalls, err := p.resolveFirewalls(ctx, spec.SecurityGroups)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	return hcloud.ServerCreateOpts{
		Name:           spec.Name,
		ServerType:     serverType,
		Image:          image,
		SSHKeys:        sshKeys,
		Location:       location,
		PlacementGroup: placementGroup,
		Firewalls:      firewalls,
		UserData:       spec.UserData,
		Labels:         p.NormalizeTags(spec.Tags),
	}, nil
}

// createServerWithRetry creates a server with exponential backoff retry logic.
func (p *Provider) createServerWithRetry(ctx context.Context, opts hcloud.ServerCreateOpts) (*CreateResult[*hcloud.Server], *hcloud.Response, error) {
	var (
		result hcloud.ServerCreateResult
		resp   *hcloud.Response
	)
	err := retry.WithExponentialBackoff(ctx, func() error {
		res, r, err := p.client.Server.Create(ctx, opts)
		resp = r
		if err != nil {
			if isInvalidParameter(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result = res
		return nil
	}, retry.WithMaxRetries(p.timeouts.RetryMaxAttempts), retry.WithInitialDelay(p.timeouts.RetryInitialDelay))
	if err != nil {
		return nil, resp, err
	}
	return &CreateResult[*hcloud.Server]{
		Resource: result.Server,
		Action:   result.Action,
		Actions:  result.NextActions,
	}, resp, nil
}

// ensureLaunchVolume creates and attaches the volume for a block device
// declared at launch. It is labeled with the server and device so a later
// pass can pair it with its declaration.
func (p *Provider) ensureLaunchVolume(ctx context.Context, spec cloud.LaunchSpec, bd cloud.BlockDevice, server *hcloud.Server) error {
	labels := maps.Clone(spec.Tags)
	if labels == nil {
		labels = make(map[string]string)
	}
	labels[tags.KeyName] = spec.Name + "-" + path.Base(bd.Device)
	labels[tags.KeyServer] = spec.Name
	labels[tags.KeyDevice] = bd.Device

	_, _, err := (&EnsureOperation[*hcloud.Volume, hcloud.VolumeCreateOpts, any]{
		Name:         labelValue(labels[tags.KeyName]),
		ResourceType: "volume",
		Get:          p.client.Volume.Get,
		Create:       p.createVolume,
		CreateOptsMapper: func() hcloud.VolumeCreateOpts {
			return hcloud.VolumeCreateOpts{
				Name:      labelValue(labels[tags.KeyName]),
				Size:      bd.Size,
				Server:    server,
				Automount: hcloud.Ptr(false),
				Labels:    p.NormalizeTags(labels),
			}
		},
	}).Execute(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to create volume for %s on %s: %w", bd.Device, spec.Name, err)
	}
	return nil
}

// DestroyInstance implements cloud.Provider. A server that no longer
// exists counts as destroyed.
func (p *Provider) DestroyInstance(ctx context.Context, id string) error {
	if _, err := parseID("server", id); err != nil {
		return err
	}
	return (&DeleteOperation[*hcloud.Server]{
		Key:          id,
		ResourceType: "server",
		Get:          p.client.Server.Get,
		Delete: func(ctx context.Context, server *hcloud.Server) (*hcloud.Response, error) {
			result, resp, err := p.client.Server.DeleteWithResult(ctx, server)
			if err != nil {
				return resp, err
			}
			return resp, p.client.Action.WaitFor(ctx, result.Action)
		},
	}).Execute(ctx, p)
}

// ModifyInstanceAttribute implements cloud.Provider. Termination
// protection sets both delete and rebuild protection.
func (p *Provider) ModifyInstanceAttribute(ctx context.Context, id string, attrs cloud.InstanceAttributes) error {
	if attrs.DisableAPITermination == nil {
		return nil
	}
	sid, err := parseID("server", id)
	if err != nil {
		return err
	}
	action, _, err := p.client.Server.ChangeProtection(ctx, &hcloud.Server{ID: sid}, hcloud.ServerChangeProtectionOpts{
		Delete:  attrs.DisableAPITermination,
		Rebuild: attrs.DisableAPITermination,
	})
	if err != nil {
		return fmt.Errorf("failed to change protection of server %s: %w", id, notFound(err))
	}
	return p.client.Action.WaitFor(ctx, action)
}

// CreateTags implements cloud.Provider. Labels are merged into the
// resource's existing ones.
func (p *Provider) CreateTags(ctx context.Context, ref cloud.ResourceRef, labels map[string]string) error {
	id, err := parseID(string(ref.Kind), ref.ID)
	if err != nil {
		return err
	}
	labels = p.NormalizeTags(labels)

	switch ref.Kind {
	case cloud.KindInstance:
		server, _, err := p.client.Server.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get server %s: %w", ref.ID, notFound(err))
		}
		if server == nil {
			return fmt.Errorf("server %s: %w", ref.ID, cloud.ErrNotFound)
		}
		_, _, err = p.client.Server.Update(ctx, server, hcloud.ServerUpdateOpts{Labels: mergeLabels(server.Labels, labels)})
		if err != nil {
			return fmt.Errorf("failed to label server %s: %w", ref.ID, err)
		}
	case cloud.KindVolume:
		volume, _, err := p.client.Volume.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get volume %s: %w", ref.ID, notFound(err))
		}
		if volume == nil {
			return fmt.Errorf("volume %s: %w", ref.ID, cloud.ErrNotFound)
		}
		_, _, err = p.client.Volume.Update(ctx, volume, hcloud.VolumeUpdateOpts{Labels: mergeLabels(volume.Labels, labels)})
		if err != nil {
			return fmt.Errorf("failed to label volume %s: %w", ref.ID, err)
		}
	default:
		return fmt.Errorf("cannot label %s", ref)
	}
	return nil
}

func mergeLabels(current, extra map[string]string) map[string]string {
	out := make(map[string]string, len(current)+len(extra))
	maps.Copy(out, current)
	maps.Copy(out, extra)
	return out
}

// toInstance maps a server to the provider-neutral instance.
func toInstance(s *hcloud.Server) *cloud.Instance {
	inst := &cloud.Instance{
		ID:        formatID(s.ID),
		Name:      s.Name,
		State:     instanceState(s.Status),
		PublicIP:  ServerIPv4(s),
		CreatedAt: s.Created,
		Tags:      maps.Clone(s.Labels),
		Protected: s.Protection.Delete,
	}
	if s.ServerType != nil {
		inst.Flavor = s.ServerType.Name
	}
	if s.Image != nil {
		inst.Image = s.Image.Name
	}
	if s.Datacenter != nil && s.Datacenter.Location != nil {
		inst.Zone = s.Datacenter.Location.Name
	}
	if s.PlacementGroup != nil {
		inst.PlacementGroup = s.PlacementGroup.Name
	}
	if len(s.PrivateNet) > 0 && s.PrivateNet[0].IP != nil {
		inst.PrivateIP = s.PrivateNet[0].IP.String()
	}
	return inst
}

func instanceState(status hcloud.ServerStatus) cloud.InstanceState {
	switch status {
	case hcloud.ServerStatusRunning:
		return cloud.StateRunning
	case hcloud.ServerStatusInitializing, hcloud.ServerStatusStarting,
		hcloud.ServerStatusMigrating, hcloud.ServerStatusRebuilding:
		return cloud.StatePending
	case hcloud.ServerStatusStopping:
		return cloud.StateStopping
	case hcloud.ServerStatusOff:
		return cloud.StateStopped
	case hcloud.ServerStatusDeleting:
		return cloud.StateShuttingDown
	default:
		return cloud.StateUnknown
	}
}
