package provisioning

import (
	"errors"
	"fmt"
	"time"
)

// ErrStop ends a pipeline early without failing it.
var ErrStop = errors.New("pipeline stopped")

// Pipeline runs phases in order, stopping at the first failure.
type Pipeline struct {
	Phases []Phase
}

// NewPipeline creates a pipeline of phases.
func NewPipeline(phases ...Phase) *Pipeline {
	return &Pipeline{Phases: phases}
}

// Run executes all phases sequentially. A phase returning ErrStop ends the
// run successfully.
func (p *Pipeline) Run(ctx *Context) error {
	start := time.Now()

	for i, phase := range p.Phases {
		phaseStart := time.Now()
		name := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(p.Phases))

		LogPhaseStart(ctx.Observer, name)

		if err := phase.Provision(ctx); err != nil {
			if errors.Is(err, ErrStop) {
				LogPhaseComplete(ctx.Observer, name, time.Since(phaseStart))
				return nil
			}
			LogPhaseFailed(ctx.Observer, name, err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		LogPhaseComplete(ctx.Observer, name, time.Since(phaseStart))
	}

	ctx.Observer.Printf("Completed %d phases in %v", len(p.Phases), time.Since(start).Round(time.Millisecond))
	return nil
}
