package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/facets/internal/platform/cloud"
)

// EnsurePlacementGroup implements cloud.Provider with a cluster strategy
// group. An existing group is left as is.
func (p *Provider) EnsurePlacementGroup(ctx context.Context, name string) error {
	_, err := p.api.CreatePlacementGroup(ctx, &awsec2.CreatePlacementGroupInput{
		GroupName: aws.String(name),
		Strategy:  types.PlacementStrategyCluster,
	})
	if err != nil && !isDuplicate(err) {
		return fmt.Errorf("failed to create placement group %s: %w", name, err)
	}
	return nil
}

// EnsureSecurityGroup implements cloud.Provider. Each rule is authorized
// on its own; rules that already exist are skipped.
func (p *Provider) EnsureSecurityGroup(ctx context.Context, group cloud.SecurityGroupSpec) error {
	description := group.Description
	if description == "" {
		description = group.Name
	}
	_, err := p.api.CreateSecurityGroup(ctx, &awsec2.CreateSecurityGroupInput{
		GroupName:   aws.String(group.Name),
		Description: aws.String(description),
	})
	if err != nil && !isDuplicate(err) {
		return fmt.Errorf("failed to create security group %s: %w", group.Name, err)
	}

	for _, r := range group.Rules {
		_, err := p.api.AuthorizeSecurityGroupIngress(ctx, &awsec2.AuthorizeSecurityGroupIngressInput{
			GroupName:     aws.String(group.Name),
			IpPermissions: []types.IpPermission{permission(r)},
		})
		if err != nil && !isDuplicate(err) {
			return fmt.Errorf("failed to authorize %s on %s: %w", ruleString(r), group.Name, err)
		}
	}
	return nil
}

func permission(r cloud.Rule) types.IpPermission {
	protocol := r.Protocol
	if protocol == "" {
		protocol = "tcp"
	}
	perm := types.IpPermission{IpProtocol: aws.String(protocol)}
	if protocol == "icmp" {
		perm.FromPort = aws.Int32(-1)
		perm.ToPort = aws.Int32(-1)
	} else {
		to := r.ToPort
		if to == 0 {
			to = r.FromPort
		}
		perm.FromPort = aws.Int32(int32(r.FromPort))
		perm.ToPort = aws.Int32(int32(to))
	}

	switch {
	case r.Group != "":
		perm.UserIdGroupPairs = []types.UserIdGroupPair{{GroupName: aws.String(r.Group)}}
	case r.CIDR != "":
		perm.IpRanges = []types.IpRange{{CidrIp: aws.String(r.CIDR)}}
	default:
		perm.IpRanges = []types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}}
	}
	return perm
}

func ruleString(r cloud.Rule) string {
	source := r.CIDR
	if r.Group != "" {
		source = r.Group
	}
	return fmt.Sprintf("%s %d-%d from %s", r.Protocol, r.FromPort, r.ToPort, source)
}
