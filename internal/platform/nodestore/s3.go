package nodestore

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/imamik/facets/internal/platform/s3"
	"github.com/imamik/facets/internal/util/naming"
)

// ObjectStore is the subset of the s3 client the S3 store needs.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
}

var _ ObjectStore = (*s3.Client)(nil)

// S3Store keeps each node as a YAML object under <prefix>/nodes/ in a bucket.
type S3Store struct {
	objects ObjectStore
	bucket  string
	prefix  string
	// isNotFound classifies missing-object errors.
	isNotFound func(error) bool
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates a store over objects.
func NewS3Store(objects ObjectStore, bucket, prefix string) *S3Store {
	return &S3Store{objects: objects, bucket: bucket, prefix: prefix, isNotFound: s3.IsNotFound}
}

// FindNode implements Store.
func (s *S3Store) FindNode(ctx context.Context, fullname string) (*Node, error) {
	data, err := s.objects.GetObject(ctx, s.bucket, naming.NodeKey(s.prefix, fullname))
	if err != nil {
		if s.isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read node %s: %w", fullname, err)
	}
	var node Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to decode node %s: %w", fullname, err)
	}
	return &node, nil
}

// SaveNode implements Store.
func (s *S3Store) SaveNode(ctx context.Context, node *Node) error {
	if node == nil || node.Name == "" {
		return fmt.Errorf("node name is required")
	}
	data, err := yaml.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to encode node %s: %w", node.Name, err)
	}
	return s.objects.PutObject(ctx, s.bucket, naming.NodeKey(s.prefix, node.Name), data)
}

// DeleteNode implements Store.
func (s *S3Store) DeleteNode(ctx context.Context, fullname string) error {
	err := s.objects.DeleteObject(ctx, s.bucket, naming.NodeKey(s.prefix, fullname))
	if err != nil && !s.isNotFound(err) {
		return err
	}
	return nil
}

// ListNodes implements Store.
func (s *S3Store) ListNodes(ctx context.Context, cluster string) ([]*Node, error) {
	dir := strings.TrimSuffix(naming.NodeKey(s.prefix, "x"), "x.yaml")
	keys, err := s.objects.ListObjects(ctx, s.bucket, dir)
	if err != nil {
		return nil, err
	}

	var nodes []*Node
	for _, key := range keys {
		name, ok := strings.CutSuffix(strings.TrimPrefix(key, dir), ".yaml")
		if !ok || name == "" || strings.Contains(name, "/") {
			continue
		}
		if cluster != "" && !strings.HasPrefix(name, cluster+"-") {
			continue
		}
		node, err := s.FindNode(ctx, name)
		if err != nil {
			return nil, err
		}
		if node != nil && (cluster == "" || node.Cluster == cluster) {
			nodes = append(nodes, node)
		}
	}
	sortNodes(nodes)
	return nodes, nil
}
