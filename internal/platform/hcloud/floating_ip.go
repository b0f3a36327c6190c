package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/facets/internal/platform/cloud"
)

// ListAddresses implements cloud.Provider with the project's floating IPs.
func (p *Provider) ListAddresses(ctx context.Context) ([]*cloud.Address, error) {
	fips, err := p.client.FloatingIP.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list floating ips: %w", err)
	}
	out := make([]*cloud.Address, 0, len(fips))
	for _, fip := range fips {
		out = append(out, toAddress(fip))
	}
	return out, nil
}

// AssociateAddress implements cloud.Provider by assigning the floating IP
// to the server.
func (p *Provider) AssociateAddress(ctx context.Context, instanceID, address string) error {
	sid, err := parseID("server", instanceID)
	if err != nil {
		return err
	}

	fips, err := p.client.FloatingIP.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list floating ips: %w", err)
	}
	for _, fip := range fips {
		if toAddress(fip).IP != address {
			continue
		}
		action, _, err := p.client.FloatingIP.Assign(ctx, fip, &hcloud.Server{ID: sid})
		if err != nil {
			return fmt.Errorf("failed to assign floating ip %s: %w", address, notFound(err))
		}
		return p.client.Action.WaitFor(ctx, action)
	}
	return fmt.Errorf("floating ip %s: %w", address, cloud.ErrNotFound)
}

func toAddress(fip *hcloud.FloatingIP) *cloud.Address {
	addr := &cloud.Address{ID: formatID(fip.ID)}
	if fip.IP != nil {
		addr.IP = fip.IP.String()
	}
	if fip.Server != nil {
		addr.InstanceID = formatID(fip.Server.ID)
	}
	return addr
}
