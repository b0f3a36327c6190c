package ec2

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/facets/internal/platform/cloud"
)

// ListInstances implements cloud.Provider. Terminated instances are
// included while EC2 still reports them.
func (p *Provider) ListInstances(ctx context.Context) ([]*cloud.Instance, error) {
	var out []*cloud.Instance
	pager := awsec2.NewDescribeInstancesPaginator(p.api, &awsec2.DescribeInstancesInput{})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}
		for _, r := range page.Reservations {
			for i := range r.Instances {
				out = append(out, toInstance(&r.Instances[i]))
			}
		}
	}
	return out, nil
}

// GetInstance implements cloud.Provider.
func (p *Provider) GetInstance(ctx context.Context, id string) (*cloud.Instance, error) {
	out, err := p.api.DescribeInstances(ctx, &awsec2.DescribeInstancesInput{InstanceIds: []string{id}})
	if err != nil {
		return nil, wrap("failed to describe instance %s", err, id)
	}
	for _, r := range out.Reservations {
		if len(r.Instances) > 0 {
			return toInstance(&r.Instances[0]), nil
		}
	}
	return nil, fmt.Errorf("instance %s: %w", id, cloud.ErrNotFound)
}

// CreateInstance implements cloud.Provider. The client token makes a
// retried launch return the instance of the first attempt.
func (p *Provider) CreateInstance(ctx context.Context, spec cloud.LaunchSpec) (*cloud.Instance, error) {
	in := &awsec2.RunInstancesInput{
		ImageId:        aws.String(spec.Image),
		InstanceType:   types.InstanceType(spec.Flavor),
		MinCount:       aws.Int32(1),
		MaxCount:       aws.Int32(1),
		SecurityGroups: spec.SecurityGroups,
		Monitoring:     &types.RunInstancesMonitoringEnabled{Enabled: aws.Bool(spec.Monitoring)},
		TagSpecifications: []types.TagSpecification{
			{ResourceType: types.ResourceTypeInstance, Tags: toTags(spec.Tags)},
		},
	}
	if spec.KeyPair != "" {
		in.KeyName = aws.String(spec.KeyPair)
	}
	if spec.Zone != "" || spec.PlacementGroup != "" {
		in.Placement = &types.Placement{}
		if spec.Zone != "" {
			in.Placement.AvailabilityZone = aws.String(spec.Zone)
		}
		if spec.PlacementGroup != "" {
			in.Placement.GroupName = aws.String(spec.PlacementGroup)
		}
	}
	if spec.UserData != "" {
		in.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(spec.UserData)))
	}
	if spec.ClientToken != "" {
		in.ClientToken = aws.String(spec.ClientToken)
	}
	in.BlockDeviceMappings = blockDeviceMappings(spec.BlockDevices)

	out, err := p.api.RunInstances(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to run instance %s: %w", spec.Name, err)
	}
	if len(out.Instances) == 0 {
		return nil, fmt.Errorf("run instances returned no instance for %s", spec.Name)
	}
	return toInstance(&out.Instances[0]), nil
}

func blockDeviceMappings(devices []cloud.BlockDevice) []types.BlockDeviceMapping {
	var out []types.BlockDeviceMapping
	for _, bd := range devices {
		m := types.BlockDeviceMapping{DeviceName: aws.String(bd.Device)}
		if bd.VirtualName != "" {
			m.VirtualName = aws.String(bd.VirtualName)
		} else {
			m.Ebs = &types.EbsBlockDevice{DeleteOnTermination: aws.Bool(bd.DeleteOnTermination)}
			if bd.Size > 0 {
				m.Ebs.VolumeSize = aws.Int32(int32(bd.Size))
			}
			if bd.SnapshotID != "" {
				m.Ebs.SnapshotId = aws.String(bd.SnapshotID)
			}
		}
		out = append(out, m)
	}
	return out
}

// DestroyInstance implements cloud.Provider. An instance that no longer
// exists counts as destroyed.
func (p *Provider) DestroyInstance(ctx context.Context, id string) error {
	_, err := p.api.TerminateInstances(ctx, &awsec2.TerminateInstancesInput{InstanceIds: []string{id}})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to terminate instance %s: %w", id, err)
	}
	return nil
}

// ModifyInstanceAttribute implements cloud.Provider.
func (p *Provider) ModifyInstanceAttribute(ctx context.Context, id string, attrs cloud.InstanceAttributes) error {
	if attrs.DisableAPITermination == nil {
		return nil
	}
	_, err := p.api.ModifyInstanceAttribute(ctx, &awsec2.ModifyInstanceAttributeInput{
		InstanceId:            aws.String(id),
		DisableApiTermination: &types.AttributeBooleanValue{Value: attrs.DisableAPITermination},
	})
	if err != nil {
		return wrap("failed to modify instance %s", err, id)
	}
	return nil
}

// CreateTags implements cloud.Provider.
func (p *Provider) CreateTags(ctx context.Context, ref cloud.ResourceRef, tags map[string]string) error {
	_, err := p.api.CreateTags(ctx, &awsec2.CreateTagsInput{
		Resources: []string{ref.ID},
		Tags:      toTags(tags),
	})
	if err != nil {
		return wrap("failed to tag %s", err, ref)
	}
	return nil
}

func toInstance(i *types.Instance) *cloud.Instance {
	inst := &cloud.Instance{
		ID:        aws.ToString(i.InstanceId),
		State:     cloud.StateUnknown,
		Flavor:    string(i.InstanceType),
		Image:     aws.ToString(i.ImageId),
		KeyPair:   aws.ToString(i.KeyName),
		PublicIP:  aws.ToString(i.PublicIpAddress),
		PrivateIP: aws.ToString(i.PrivateIpAddress),
		CreatedAt: aws.ToTime(i.LaunchTime),
		Tags:      fromTags(i.Tags),
	}
	inst.Name = inst.Tags["Name"]
	if i.State != nil {
		inst.State = instanceState(i.State.Name)
	}
	if i.Placement != nil {
		inst.Zone = aws.ToString(i.Placement.AvailabilityZone)
		inst.PlacementGroup = aws.ToString(i.Placement.GroupName)
	}
	for _, g := range i.SecurityGroups {
		inst.SecurityGroups = append(inst.SecurityGroups, aws.ToString(g.GroupName))
	}
	return inst
}

func instanceState(name types.InstanceStateName) cloud.InstanceState {
	switch name {
	case types.InstanceStateNamePending:
		return cloud.StatePending
	case types.InstanceStateNameRunning:
		return cloud.StateRunning
	case types.InstanceStateNameStopping:
		return cloud.StateStopping
	case types.InstanceStateNameStopped:
		return cloud.StateStopped
	case types.InstanceStateNameShuttingDown:
		return cloud.StateShuttingDown
	case types.InstanceStateNameTerminated:
		return cloud.StateTerminated
	}
	return cloud.StateUnknown
}
