package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/facets/internal/platform/nodestore"
	"github.com/imamik/facets/internal/topology"
)

// MockNodeStore is a mock implementation of nodestore.Store.
type MockNodeStore struct {
	mock.Mock
}

var _ nodestore.Store = (*MockNodeStore)(nil)

// FindNode returns the mocked node.
func (m *MockNodeStore) FindNode(ctx context.Context, fullname string) (*nodestore.Node, error) {
	args := m.Called(ctx, fullname)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nodestore.Node), args.Error(1)
}

// SaveNode records the save.
func (m *MockNodeStore) SaveNode(ctx context.Context, node *nodestore.Node) error {
	args := m.Called(ctx, node)
	return args.Error(0)
}

// DeleteNode records the delete.
func (m *MockNodeStore) DeleteNode(ctx context.Context, fullname string) error {
	args := m.Called(ctx, fullname)
	return args.Error(0)
}

// ListNodes returns the mocked nodes.
func (m *MockNodeStore) ListNodes(ctx context.Context, cluster string) ([]*nodestore.Node, error) {
	args := m.Called(ctx, cluster)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*nodestore.Node), args.Error(1)
}

// MockConfirmer is a mock confirmation prompt.
type MockConfirmer struct {
	mock.Mock
}

// Ask returns the mocked answer.
func (m *MockConfirmer) Ask(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// NewMockConfirmer creates a confirmer that answers every prompt with
// answer.
func NewMockConfirmer(answer string) *MockConfirmer {
	m := &MockConfirmer{}
	m.On("Ask", mock.Anything, mock.Anything).Return(answer, nil)
	return m
}

// MockBootstrapper is a mock bootstrap runner.
type MockBootstrapper struct {
	mock.Mock
}

// Bootstrap records the call.
func (m *MockBootstrapper) Bootstrap(ctx context.Context, host string, s *topology.Server) error {
	args := m.Called(ctx, host, s.Fullname())
	return args.Error(0)
}
