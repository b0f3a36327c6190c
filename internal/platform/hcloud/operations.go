package hcloud

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/facets/internal/util/retry"
)

// CreateResult wraps a created resource and the actions to await.
type CreateResult[T any] struct {
	Resource T
	Action   *hcloud.Action
	Actions  []*hcloud.Action
}

// DeleteOperation deletes a resource looked up by ID or name. A resource
// that does not exist counts as deleted; a locked one is retried.
type DeleteOperation[T any] struct {
	Key          string
	ResourceType string

	Get    func(ctx context.Context, idOrName string) (T, *hcloud.Response, error)
	Delete func(ctx context.Context, resource T) (*hcloud.Response, error)
}

// Execute runs the deletion under the provider's delete timeout.
func (op *DeleteOperation[T]) Execute(ctx context.Context, p *Provider) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Delete)
	defer cancel()

	return retry.WithExponentialBackoff(ctx, func() error {
		resource, _, err := op.Get(ctx, op.Key)
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to get %s: %w", op.ResourceType, err))
		}
		if reflect.ValueOf(resource).IsNil() {
			return nil
		}

		_, err = op.Delete(ctx, resource)
		switch {
		case err == nil, isHCloudErrorCode(err, hcloud.ErrorCodeNotFound):
			return nil
		case isResourceLocked(err):
			return err
		default:
			return retry.Fatal(err)
		}
	},
		retry.WithMaxRetries(p.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(p.timeouts.RetryInitialDelay))
}

// EnsureOperation returns the resource with the given name, creating it
// when absent. An existing resource is validated and updated when the
// respective hooks are set.
type EnsureOperation[T any, CreateOpts any, UpdateOpts any] struct {
	Name         string
	ResourceType string

	Get    func(ctx context.Context, name string) (T, *hcloud.Response, error)
	Create func(ctx context.Context, opts CreateOpts) (*CreateResult[T], *hcloud.Response, error)

	// Optional.
	Update           func(ctx context.Context, resource T, opts UpdateOpts) ([]*hcloud.Action, *hcloud.Response, error)
	Validate         func(resource T) error
	UpdateOptsMapper func(resource T) UpdateOpts

	CreateOptsMapper func() CreateOpts
}

// Execute performs the get, then either validate-and-update or create.
func (op *EnsureOperation[T, CreateOpts, UpdateOpts]) Execute(ctx context.Context, p *Provider) (T, bool, error) {
	var zero T

	resource, _, err := op.Get(ctx, op.Name)
	if err != nil {
		return zero, false, fmt.Errorf("failed to get %s: %w", op.ResourceType, err)
	}

	if !reflect.ValueOf(resource).IsNil() {
		if op.Validate != nil {
			if err := op.Validate(resource); err != nil {
				return zero, false, err
			}
		}
		if op.Update != nil && op.UpdateOptsMapper != nil {
			actions, _, err := op.Update(ctx, resource, op.UpdateOptsMapper(resource))
			if err != nil {
				return zero, false, fmt.Errorf("failed to update %s: %w", op.ResourceType, err)
			}
			if err := waitForActions(ctx, p.client, actions...); err != nil {
				return zero, false, fmt.Errorf("failed to wait for %s update: %w", op.ResourceType, err)
			}
		}
		return resource, false, nil
	}

	result, _, err := op.Create(ctx, op.CreateOptsMapper())
	if err != nil {
		return zero, false, fmt.Errorf("failed to create %s: %w", op.ResourceType, err)
	}
	if err := waitForActionResult(ctx, p.client, result); err != nil {
		return zero, false, fmt.Errorf("failed to wait for %s creation: %w", op.ResourceType, err)
	}
	return result.Resource, true, nil
}

func waitForActions(ctx context.Context, client *hcloud.Client, actions ...*hcloud.Action) error {
	if len(actions) == 0 {
		return nil
	}
	return client.Action.WaitFor(ctx, actions...)
}

func waitForActionResult[T any](ctx context.Context, client *hcloud.Client, result *CreateResult[T]) error {
	actions := result.Actions
	if result.Action != nil {
		actions = append([]*hcloud.Action{result.Action}, actions...)
	}
	return waitForActions(ctx, client, actions...)
}
