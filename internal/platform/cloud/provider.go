// Package cloud defines the capability interface every compute provider
// implements, along with the dry-run decorator and in-memory fake.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned (wrapped) when a resource does not exist.
var ErrNotFound = errors.New("resource not found")

// Provider is the cloud capability the convergence engine drives.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	Name() string

	ListInstances(ctx context.Context) ([]*Instance, error)
	ListVolumes(ctx context.Context) ([]*Volume, error)
	ListAddresses(ctx context.Context) ([]*Address, error)
	GetInstance(ctx context.Context, id string) (*Instance, error)

	CreateInstance(ctx context.Context, spec LaunchSpec) (*Instance, error)
	CreateVolume(ctx context.Context, spec VolumeSpec) (*Volume, error)
	AttachVolume(ctx context.Context, volumeID, instanceID, device string) error
	CreateTags(ctx context.Context, ref ResourceRef, tags map[string]string) error
	AssociateAddress(ctx context.Context, instanceID, address string) error
	ModifyInstanceAttribute(ctx context.Context, instanceID string, attrs InstanceAttributes) error
	DestroyInstance(ctx context.Context, instanceID string) error

	EnsurePlacementGroup(ctx context.Context, name string) error
	EnsureSecurityGroup(ctx context.Context, group SecurityGroupSpec) error
}

// TagNormalizer is implemented by providers that restrict tag keys or
// values. Desired tags are passed through it before they are compared with
// or sent to the provider.
type TagNormalizer interface {
	NormalizeTags(tags map[string]string) map[string]string
}

// NormalizeTags applies p's tag rules if it has any.
func NormalizeTags(p Provider, tags map[string]string) map[string]string {
	if n, ok := p.(TagNormalizer); ok {
		return n.NormalizeTags(tags)
	}
	return tags
}

// IsNotFound reports whether err signals a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Factory builds a provider.
type Factory func(ctx context.Context) (Provider, error)

// Registry maps provider names to factories. A provider is selected once
// per run by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New builds the provider registered under name.
func (r *Registry) New(ctx context.Context, name string) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %v)", name, r.Names())
	}
	p, err := f(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider %q: %w", name, err)
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
