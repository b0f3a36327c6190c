package nodestore

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketNodes = []byte("nodes")

// BoltStore keeps nodes in a local bbolt file, one JSON value per node.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketNodes); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketNodes, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// FindNode implements Store.
func (s *BoltStore) FindNode(_ context.Context, fullname string) (*Node, error) {
	var node *Node
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketNodes).Get([]byte(fullname))
		if data == nil {
			return nil
		}
		node = &Node{}
		return json.Unmarshal(data, node)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read node %s: %w", fullname, err)
	}
	return node, nil
}

// SaveNode implements Store.
func (s *BoltStore) SaveNode(_ context.Context, node *Node) error {
	if node == nil || node.Name == "" {
		return fmt.Errorf("node name is required")
	}
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to encode node %s: %w", node.Name, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).Put([]byte(node.Name), data)
	})
}

// DeleteNode implements Store.
func (s *BoltStore) DeleteNode(_ context.Context, fullname string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).Delete([]byte(fullname))
	})
}

// ListNodes implements Store.
func (s *BoltStore) ListNodes(_ context.Context, cluster string) ([]*Node, error) {
	var nodes []*Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var node Node
			if err := json.Unmarshal(v, &node); err != nil {
				return fmt.Errorf("failed to decode node %s: %w", k, err)
			}
			if cluster == "" || node.Cluster == cluster {
				nodes = append(nodes, &node)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortNodes(nodes)
	return nodes, nil
}
