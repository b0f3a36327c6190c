// Package ec2 implements the cloud.Provider capability on Amazon EC2.
package ec2

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/facets/internal/platform/cloud"
)

// ProviderName is the name the provider registers under.
const ProviderName = "ec2"

// API is the subset of the EC2 client the provider calls.
type API interface {
	DescribeInstances(ctx context.Context, in *awsec2.DescribeInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeInstancesOutput, error)
	DescribeVolumes(ctx context.Context, in *awsec2.DescribeVolumesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeVolumesOutput, error)
	DescribeAddresses(ctx context.Context, in *awsec2.DescribeAddressesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeAddressesOutput, error)
	RunInstances(ctx context.Context, in *awsec2.RunInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.RunInstancesOutput, error)
	TerminateInstances(ctx context.Context, in *awsec2.TerminateInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.TerminateInstancesOutput, error)
	ModifyInstanceAttribute(ctx context.Context, in *awsec2.ModifyInstanceAttributeInput, optFns ...func(*awsec2.Options)) (*awsec2.ModifyInstanceAttributeOutput, error)
	CreateVolume(ctx context.Context, in *awsec2.CreateVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateVolumeOutput, error)
	AttachVolume(ctx context.Context, in *awsec2.AttachVolumeInput, optFns ...func(*awsec2.Options)) (*awsec2.AttachVolumeOutput, error)
	CreateTags(ctx context.Context, in *awsec2.CreateTagsInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateTagsOutput, error)
	AssociateAddress(ctx context.Context, in *awsec2.AssociateAddressInput, optFns ...func(*awsec2.Options)) (*awsec2.AssociateAddressOutput, error)
	CreatePlacementGroup(ctx context.Context, in *awsec2.CreatePlacementGroupInput, optFns ...func(*awsec2.Options)) (*awsec2.CreatePlacementGroupOutput, error)
	CreateSecurityGroup(ctx context.Context, in *awsec2.CreateSecurityGroupInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateSecurityGroupOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, in *awsec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*awsec2.Options)) (*awsec2.AuthorizeSecurityGroupIngressOutput, error)
}

// Options configures the EC2 client. Empty credentials fall back to the
// default AWS credential chain.
type Options struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Provider implements cloud.Provider on EC2.
type Provider struct {
	api API
}

var _ cloud.Provider = (*Provider)(nil)

// New wraps an EC2 API client.
func New(api API) *Provider {
	return &Provider{api: api}
}

// NewProvider builds an EC2 client from opts.
func NewProvider(ctx context.Context, opts Options) (*Provider, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awsec2.NewFromConfig(cfg, func(o *awsec2.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return New(client), nil
}

// NewFromEnv is a cloud.Factory configured by AWS_REGION and the default
// credential chain. FACETS_EC2_ENDPOINT overrides the service endpoint.
func NewFromEnv(ctx context.Context) (cloud.Provider, error) {
	return NewProvider(ctx, Options{
		Region:   os.Getenv("AWS_REGION"),
		Endpoint: os.Getenv("FACETS_EC2_ENDPOINT"),
	})
}

// Name implements cloud.Provider.
func (p *Provider) Name() string { return ProviderName }

func toTags(m map[string]string) []types.Tag {
	out := make([]types.Tag, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(m[k])})
	}
	return out
}

func fromTags(in []types.Tag) map[string]string {
	out := make(map[string]string, len(in))
	for _, t := range in {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}
