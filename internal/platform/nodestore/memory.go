package nodestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/mitchellh/copystructure"
)

// MemoryStore keeps nodes in memory. Stored and returned nodes are deep
// copies, so callers never share state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string]*Node)}
}

// FindNode implements Store.
func (s *MemoryStore) FindNode(_ context.Context, fullname string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[fullname]
	if !ok {
		return nil, nil
	}
	return copyNode(node)
}

// SaveNode implements Store.
func (s *MemoryStore) SaveNode(_ context.Context, node *Node) error {
	if node == nil || node.Name == "" {
		return fmt.Errorf("node name is required")
	}
	c, err := copyNode(node)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.Name] = c
	return nil
}

// DeleteNode implements Store.
func (s *MemoryStore) DeleteNode(_ context.Context, fullname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, fullname)
	return nil
}

// ListNodes implements Store.
func (s *MemoryStore) ListNodes(_ context.Context, cluster string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Node
	for _, node := range s.nodes {
		if cluster != "" && node.Cluster != cluster {
			continue
		}
		c, err := copyNode(node)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sortNodes(out)
	return out, nil
}

func copyNode(node *Node) (*Node, error) {
	c, err := copystructure.Copy(node)
	if err != nil {
		return nil, fmt.Errorf("failed to copy node %s: %w", node.Name, err)
	}
	return c.(*Node), nil
}
