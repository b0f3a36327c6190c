package reconcile

import (
	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/topology"
)

// State is the classification of a server for one pass.
type State string

const (
	// StateBogus servers are phantoms, duplicates, or in a state the
	// engine will not act on.
	StateBogus      State = "bogus"
	StateLaunchable State = "launchable"
	StateRunning    State = "running"
	StateStartable  State = "startable"
)

// Classify returns the state of server. duplicate reports that more than
// one live instance claims the server.
func Classify(server *topology.Server, duplicate bool) State {
	if server.Phantom || duplicate {
		return StateBogus
	}
	inst := server.Instance
	if inst == nil || inst.State.Gone() {
		return StateLaunchable
	}
	switch inst.State {
	case cloud.StateRunning:
		return StateRunning
	case cloud.StateStopped:
		return StateStartable
	default:
		return StateBogus
	}
}

// Killable reports whether there is anything to destroy for server: a live
// instance or a node record.
func Killable(server *topology.Server) bool {
	return (server.Instance != nil && !server.Instance.State.Gone()) || server.Node != nil
}
