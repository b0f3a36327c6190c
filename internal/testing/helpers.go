package testing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/imamik/facets/internal/config"
	"github.com/imamik/facets/internal/provisioning"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// NewProvisioningContext returns a run context with test timeouts, fresh
// metrics and a recording observer.
func NewProvisioningContext(t *testing.T) (*provisioning.Context, *RecordingObserver) {
	obs := &RecordingObserver{}
	return &provisioning.Context{
		Context:  TestContext(t),
		Observer: obs,
		Metrics:  provisioning.NewMetrics(),
		Timeouts: config.TestTimeouts(),
		RunID:    "test-run",
	}, obs
}

// RecordingObserver keeps every event and printed line.
type RecordingObserver struct {
	mu     sync.Mutex
	events []provisioning.Event
	lines  []string
}

var _ provisioning.Observer = (*RecordingObserver)(nil)

// Printf implements provisioning.Logger.
func (r *RecordingObserver) Printf(format string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, format)
}

// Event implements provisioning.Observer.
func (r *RecordingObserver) Event(e provisioning.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Progress implements provisioning.Observer.
func (r *RecordingObserver) Progress(string, int, int) {}

// WithFields implements provisioning.Observer.
func (r *RecordingObserver) WithFields(map[string]string) provisioning.Observer { return r }

// Events returns the recorded events of type t.
func (r *RecordingObserver) Events(t provisioning.EventType) []provisioning.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []provisioning.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
