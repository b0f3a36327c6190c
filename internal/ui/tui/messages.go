// Package tui provides a Bubble Tea-based terminal UI for launch progress.
package tui

import "github.com/imamik/facets/internal/orchestration"

// StepMsg reports that a server reached a launch step.
type StepMsg struct {
	Server string
	Step   orchestration.Step
	Err    error
}

// TickMsg is sent periodically to refresh the display.
type TickMsg struct{}

// ErrMsg carries an error that ends the run.
type ErrMsg struct{ Err error }

// DoneMsg signals that the operation is complete.
type DoneMsg struct{}
