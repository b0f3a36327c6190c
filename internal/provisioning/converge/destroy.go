package converge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/provisioning"
	"github.com/imamik/facets/internal/topology"
)

// DestroyOptions selects which sides of a server Destroy removes.
type DestroyOptions struct {
	Cloud bool
	Node  bool
}

// Destroy removes the server's instances and node record as selected by
// opts. Missing resources are not errors. Every live instance claiming the
// server is destroyed, including conflicting duplicates.
func (e *Executor) Destroy(ctx context.Context, s *topology.Server, opts DestroyOptions) error {
	var errs []error
	if opts.Cloud {
		for _, inst := range append([]*cloud.Instance{s.Instance}, s.Conflicts...) {
			if inst == nil || inst.State.Gone() {
				continue
			}
			if err := e.destroyInstance(ctx, s.Fullname(), inst); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if opts.Node && e.Nodes != nil && s.Node != nil {
		if err := e.deleteNode(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) destroyInstance(ctx context.Context, name string, inst *cloud.Instance) (err error) {
	const op = "destroy_instance"
	start := time.Now()
	defer func() { e.record(op, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, e.timeouts().Delete)
	defer cancel()

	provisioning.LogResourceDeleting(e.observer(), phase, "server", name)
	err = e.retry(ctx, func() error { return e.Provider.DestroyInstance(ctx, inst.ID) })
	if err != nil && !cloud.IsNotFound(err) {
		provisioning.LogResourceFailed(e.observer(), phase, "server", name, err)
		return fmt.Errorf("failed to destroy instance %s of %s: %w", inst.ID, name, err)
	}
	inst.State = cloud.StateTerminated
	provisioning.LogResourceDeleted(e.observer(), phase, "server", name)
	return nil
}

func (e *Executor) deleteNode(ctx context.Context, s *topology.Server) (err error) {
	const op = "delete_node"
	start := time.Now()
	defer func() { e.record(op, start, err) }()

	name := s.Fullname()
	provisioning.LogResourceDeleting(e.observer(), phase, "node", name)
	if err := e.Nodes.DeleteNode(ctx, name); err != nil {
		return fmt.Errorf("failed to delete node %s: %w", name, err)
	}
	s.Node = nil
	provisioning.LogResourceDeleted(e.observer(), phase, "node", name)
	return nil
}
