package hcloud

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/facets/internal/util/tags"
)

// EnsurePlacementGroup implements cloud.Provider with a spread group.
func (p *Provider) EnsurePlacementGroup(ctx context.Context, name string) error {
	_, _, err := (&EnsureOperation[*hcloud.PlacementGroup, hcloud.PlacementGroupCreateOpts, any]{
		Name:         name,
		ResourceType: "placement group",
		Get:          p.client.PlacementGroup.Get,
		Create:       p.createPlacementGroup,
		CreateOptsMapper: func() hcloud.PlacementGroupCreateOpts {
			return hcloud.PlacementGroupCreateOpts{
				Name:   name,
				Type:   hcloud.PlacementGroupTypeSpread,
				Labels: map[string]string{tags.KeyManagedBy: tags.ManagedBy},
			}
		},
	}).Execute(ctx, p)
	return err
}

func (p *Provider) createPlacementGroup(ctx context.Context, opts hcloud.PlacementGroupCreateOpts) (*CreateResult[*hcloud.PlacementGroup], *hcloud.Response, error) {
	res, resp, err := p.client.PlacementGroup.Create(ctx, opts)
	if err != nil {
		return nil, resp, err
	}
	return &CreateResult[*hcloud.PlacementGroup]{Resource: res.PlacementGroup, Action: res.Action}, resp, nil
}
