package provisioning

import (
	"context"

	"github.com/google/uuid"

	"github.com/imamik/facets/internal/config"
)

// Context wraps everything a phase needs besides its own collaborators.
type Context struct {
	context.Context
	Observer Observer
	Metrics  *Metrics
	Timeouts *config.Timeouts
	// RunID identifies this invocation. Providers use it to make creation
	// requests idempotent within a run.
	RunID string
}

// NewContext creates a context with a console observer, fresh metrics and
// timeouts from the environment.
func NewContext(ctx context.Context) *Context {
	return &Context{
		Context:  ctx,
		Observer: NewConsoleObserver(),
		Metrics:  NewMetrics(),
		Timeouts: config.LoadTimeouts(),
		RunID:    uuid.NewString(),
	}
}

// WithContext returns a copy of c bound to ctx.
func (c *Context) WithContext(ctx context.Context) *Context {
	cp := *c
	cp.Context = ctx
	return &cp
}
