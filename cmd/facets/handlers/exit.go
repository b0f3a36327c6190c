package handlers

import (
	"errors"

	"github.com/imamik/facets/internal/orchestration"
)

// Exit codes of the facets CLI.
const (
	ExitOK      = 0
	ExitFailure = 1
	// ExitBogus means a launch stopped because bogus servers exist.
	ExitBogus = 2
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, orchestration.ErrBogusServers):
		return ExitBogus
	default:
		return ExitFailure
	}
}
