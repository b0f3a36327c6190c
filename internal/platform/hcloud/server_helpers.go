package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// resolveImage resolves an image by ID or name for the server type's
// architecture.
func (p *Provider) resolveImage(ctx context.Context, image string, serverType *hcloud.ServerType) (*hcloud.Image, error) {
	img, _, err := p.client.Image.GetForArchitecture(ctx, image, serverType.Architecture)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	if img == nil {
		return nil, fmt.Errorf("image not found: %s (%s)", image, serverType.Architecture)
	}
	return img, nil
}

// resolveSSHKeys resolves SSH key names/IDs to SSH key objects.
func (p *Provider) resolveSSHKeys(ctx context.Context, sshKeys []string) ([]*hcloud.SSHKey, error) {
	var out []*hcloud.SSHKey
	for _, key := range sshKeys {
		keyObj, _, err := p.client.SSHKey.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to get ssh key %s: %w", key, err)
		}
		if keyObj == nil {
			return nil, fmt.Errorf("ssh key not found: %s", key)
		}
		out = append(out, keyObj)
	}
	return out, nil
}

// resolveLocation resolves a location name to a location object.
func (p *Provider) resolveLocation(ctx context.Context, location string) (*hcloud.Location, error) {
	if location == "" {
		return nil, nil
	}

	locObj, _, err := p.client.Location.Get(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to get location %s: %w", location, err)
	}
	if locObj == nil {
		return nil, fmt.Errorf("location not found: %s", location)
	}
	return locObj, nil
}

// resolvePlacementGroup looks up an existing placement group by name.
func (p *Provider) resolvePlacementGroup(ctx context.Context, name string) (*hcloud.PlacementGroup, error) {
	if name == "" {
		return nil, nil
	}
	pg, _, err := p.client.PlacementGroup.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get placement group %s: %w", name, err)
	}
	if pg == nil {
		return nil, fmt.Errorf("placement group not found: %s", name)
	}
	return pg, nil
}

// resolveFirewalls looks up the firewalls standing in for security groups.
func (p *Provider) resolveFirewalls(ctx context.Context, names []string) ([]*hcloud.ServerCreateFirewall, error) {
	var out []*hcloud.ServerCreateFirewall
	for _, name := range names {
		fw, _, err := p.client.Firewall.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get firewall %s: %w", name, err)
		}
		if fw == nil {
			return nil, fmt.Errorf("firewall not found: %s", name)
		}
		out = append(out, &hcloud.ServerCreateFirewall{Firewall: *fw})
	}
	return out, nil
}

// ServerIPv4 extracts the public IPv4 address from a server, or empty string if not set.
func ServerIPv4(s *hcloud.Server) string {
	if s != nil && s.PublicNet.IPv4.IP != nil {
		return s.PublicNet.IPv4.IP.String()
	}
	return ""
}
