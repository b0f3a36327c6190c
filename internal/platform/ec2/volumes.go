package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/facets/internal/platform/cloud"
)

// ListVolumes implements cloud.Provider.
func (p *Provider) ListVolumes(ctx context.Context) ([]*cloud.Volume, error) {
	var out []*cloud.Volume
	pager := awsec2.NewDescribeVolumesPaginator(p.api, &awsec2.DescribeVolumesInput{})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe volumes: %w", err)
		}
		for i := range page.Volumes {
			out = append(out, toVolume(&page.Volumes[i]))
		}
	}
	return out, nil
}

// CreateVolume implements cloud.Provider.
func (p *Provider) CreateVolume(ctx context.Context, spec cloud.VolumeSpec) (*cloud.Volume, error) {
	in := &awsec2.CreateVolumeInput{
		AvailabilityZone: aws.String(spec.Zone),
		TagSpecifications: []types.TagSpecification{
			{ResourceType: types.ResourceTypeVolume, Tags: toTags(spec.Tags)},
		},
	}
	if spec.Size > 0 {
		in.Size = aws.Int32(int32(spec.Size))
	}
	if spec.SnapshotID != "" {
		in.SnapshotId = aws.String(spec.SnapshotID)
	}

	out, err := p.api.CreateVolume(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create volume %s: %w", spec.Name, err)
	}
	return &cloud.Volume{
		ID:         aws.ToString(out.VolumeId),
		Name:       spec.Name,
		Zone:       aws.ToString(out.AvailabilityZone),
		Size:       int(aws.ToInt32(out.Size)),
		SnapshotID: aws.ToString(out.SnapshotId),
		Tags:       fromTags(out.Tags),
	}, nil
}

// AttachVolume implements cloud.Provider.
func (p *Provider) AttachVolume(ctx context.Context, volumeID, instanceID, device string) error {
	_, err := p.api.AttachVolume(ctx, &awsec2.AttachVolumeInput{
		VolumeId:   aws.String(volumeID),
		InstanceId: aws.String(instanceID),
		Device:     aws.String(device),
	})
	if err != nil {
		return wrap("failed to attach volume %s to %s", err, volumeID, instanceID)
	}
	return nil
}

func toVolume(v *types.Volume) *cloud.Volume {
	vol := &cloud.Volume{
		ID:         aws.ToString(v.VolumeId),
		Zone:       aws.ToString(v.AvailabilityZone),
		Size:       int(aws.ToInt32(v.Size)),
		SnapshotID: aws.ToString(v.SnapshotId),
		Tags:       fromTags(v.Tags),
	}
	vol.Name = vol.Tags["Name"]
	for _, a := range v.Attachments {
		if a.State == types.VolumeAttachmentStateDetached || a.State == types.VolumeAttachmentStateDetaching {
			continue
		}
		vol.InstanceID = aws.ToString(a.InstanceId)
		vol.Device = aws.ToString(a.Device)
		break
	}
	return vol
}

// ListAddresses implements cloud.Provider.
func (p *Provider) ListAddresses(ctx context.Context) ([]*cloud.Address, error) {
	out, err := p.api.DescribeAddresses(ctx, &awsec2.DescribeAddressesInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe addresses: %w", err)
	}
	addrs := make([]*cloud.Address, 0, len(out.Addresses))
	for _, a := range out.Addresses {
		addrs = append(addrs, &cloud.Address{
			ID:         aws.ToString(a.AllocationId),
			IP:         aws.ToString(a.PublicIp),
			InstanceID: aws.ToString(a.InstanceId),
		})
	}
	return addrs, nil
}

// AssociateAddress implements cloud.Provider. VPC addresses are associated
// by allocation ID, classic ones by IP.
func (p *Provider) AssociateAddress(ctx context.Context, instanceID, address string) error {
	out, err := p.api.DescribeAddresses(ctx, &awsec2.DescribeAddressesInput{PublicIps: []string{address}})
	if err != nil {
		return wrap("failed to describe address %s", err, address)
	}
	if len(out.Addresses) == 0 {
		return fmt.Errorf("address %s: %w", address, cloud.ErrNotFound)
	}

	in := &awsec2.AssociateAddressInput{InstanceId: aws.String(instanceID)}
	if id := out.Addresses[0].AllocationId; id != nil {
		in.AllocationId = id
	} else {
		in.PublicIp = aws.String(address)
	}
	if _, err := p.api.AssociateAddress(ctx, in); err != nil {
		return wrap("failed to associate %s with %s", err, address, instanceID)
	}
	return nil
}
