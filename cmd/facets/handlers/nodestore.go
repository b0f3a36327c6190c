package handlers

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/imamik/facets/internal/platform/nodestore"
	"github.com/imamik/facets/internal/platform/s3"
)

// Node store kinds.
const (
	NodeStoreMemory = "memory"
	NodeStoreBolt   = "bolt"
	NodeStoreS3     = "s3"
)

// DefaultNodeStore keeps node records next to the definition.
const DefaultNodeStore = "bolt:facets.db"

// NodeStoreSpec is a parsed --node-store value: "memory", "bolt:PATH" or
// "s3://BUCKET[/PREFIX]".
type NodeStoreSpec struct {
	Kind   string
	Path   string
	Bucket string
	Prefix string
}

func (s NodeStoreSpec) String() string {
	switch s.Kind {
	case NodeStoreBolt:
		return NodeStoreBolt + ":" + s.Path
	case NodeStoreS3:
		if s.Prefix == "" {
			return "s3://" + s.Bucket
		}
		return "s3://" + s.Bucket + "/" + s.Prefix
	default:
		return s.Kind
	}
}

// ParseNodeStore parses a --node-store value. Empty selects the default.
func ParseNodeStore(value string) (NodeStoreSpec, error) {
	if value == "" {
		value = DefaultNodeStore
	}
	switch {
	case value == NodeStoreMemory:
		return NodeStoreSpec{Kind: NodeStoreMemory}, nil

	case strings.HasPrefix(value, NodeStoreBolt+":"):
		path := strings.TrimPrefix(value, NodeStoreBolt+":")
		if path == "" {
			return NodeStoreSpec{}, fmt.Errorf("node store %q: a file path is required", value)
		}
		return NodeStoreSpec{Kind: NodeStoreBolt, Path: path}, nil

	case strings.HasPrefix(value, NodeStoreS3+"://"):
		u, err := url.Parse(value)
		if err != nil {
			return NodeStoreSpec{}, fmt.Errorf("node store %q: %w", value, err)
		}
		if u.Host == "" {
			return NodeStoreSpec{}, fmt.Errorf("node store %q: a bucket is required", value)
		}
		return NodeStoreSpec{Kind: NodeStoreS3, Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
	}
	return NodeStoreSpec{}, fmt.Errorf("unknown node store %q (want memory, bolt:PATH or s3://BUCKET[/PREFIX])", value)
}

// OpenNodeStore opens the store described by spec. The returned function
// releases it.
func OpenNodeStore(ctx context.Context, spec NodeStoreSpec) (nodestore.Store, func() error, error) {
	switch spec.Kind {
	case NodeStoreMemory:
		return nodestore.NewMemoryStore(), func() error { return nil }, nil

	case NodeStoreBolt:
		store, err := nodestore.NewBoltStore(spec.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case NodeStoreS3:
		client, err := s3.NewClient(ctx, S3OptionsFromEnv())
		if err != nil {
			return nil, nil, err
		}
		if err := ensureBucket(ctx, client, spec.Bucket); err != nil {
			return nil, nil, err
		}
		return nodestore.NewS3Store(client, spec.Bucket, spec.Prefix), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown node store kind %q", spec.Kind)
}

// BucketManager creates buckets.
type BucketManager interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket string) error
}

// ensureBucket creates the node store bucket on first use.
func ensureBucket(ctx context.Context, buckets BucketManager, bucket string) error {
	exists, err := buckets.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return buckets.CreateBucket(ctx, bucket)
}

// S3OptionsFromEnv reads the FACETS_S3_* variables. Unset credentials
// fall back to the standard AWS chain.
func S3OptionsFromEnv() s3.Options {
	region := os.Getenv("FACETS_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	return s3.Options{
		Endpoint:  os.Getenv("FACETS_S3_ENDPOINT"),
		Region:    region,
		AccessKey: os.Getenv("FACETS_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("FACETS_S3_SECRET_KEY"),
		PathStyle: os.Getenv("FACETS_S3_PATH_STYLE") == "true",
	}
}

// credentials is what a new server needs to register with the node store.
func (s NodeStoreSpec) credentials() map[string]any {
	if s.Kind != NodeStoreS3 {
		return nil
	}
	return map[string]any{
		"node_store": map[string]any{
			"bucket": s.Bucket,
			"prefix": s.Prefix,
		},
	}
}
