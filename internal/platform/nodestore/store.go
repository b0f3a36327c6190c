// Package nodestore is the configuration-management collaborator: it keeps
// one record per server, keyed by fullname, holding the server's run-list
// and attributes.
package nodestore

import (
	"context"
	"sort"
	"time"
)

// Node is a server's configuration-management record.
type Node struct {
	Name       string         `json:"name" yaml:"name"`
	Cluster    string         `json:"cluster" yaml:"cluster"`
	Facet      string         `json:"facet" yaml:"facet"`
	Index      int            `json:"index" yaml:"index"`
	RunList    []string       `json:"run_list,omitempty" yaml:"run_list,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Volumes    []VolumeRecord `json:"volumes,omitempty" yaml:"volumes,omitempty"`
	InstanceID string         `json:"instance_id,omitempty" yaml:"instance_id,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at" yaml:"updated_at"`
}

// VolumeRecord is the mount information a node needs for one volume.
type VolumeRecord struct {
	Name       string `json:"name" yaml:"name"`
	Device     string `json:"device" yaml:"device"`
	MountPoint string `json:"mount_point,omitempty" yaml:"mount_point,omitempty"`
	VolumeID   string `json:"volume_id,omitempty" yaml:"volume_id,omitempty"`
}

// Store persists node records.
type Store interface {
	// FindNode returns the node, or nil and no error when it does not exist.
	FindNode(ctx context.Context, fullname string) (*Node, error)
	SaveNode(ctx context.Context, node *Node) error
	// DeleteNode removes a node. Deleting a missing node succeeds.
	DeleteNode(ctx context.Context, fullname string) error
	// ListNodes returns the nodes of a cluster sorted by name. An empty
	// cluster lists all nodes.
	ListNodes(ctx context.Context, cluster string) ([]*Node, error)
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
}
