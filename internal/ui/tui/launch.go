package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/facets/internal/orchestration"
)

// LaunchFunc runs a launch, reporting steps through progress.
type LaunchFunc func(ctx context.Context, progress orchestration.ProgressFunc) error

// RunLaunchTUI wraps a launch with a Bubble Tea dashboard. Quitting the
// dashboard cancels the launch; the launch's own error wins over the
// dashboard's.
func RunLaunchTUI(ctx context.Context, clusterName string, bootstrap bool, launchFn LaunchFunc, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewLaunchModel(clusterName, bootstrap)
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)

	errCh := make(chan error, 1)
	go func() {
		err := launchFn(ctx, Progress(p.Send))
		errCh <- err
		if err != nil {
			p.Send(ErrMsg{Err: err})
			return
		}
		p.Send(DoneMsg{})
	}()

	_, runErr := p.Run()
	cancel()

	if err := <-errCh; err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

// Progress adapts send into a progress callback.
func Progress(send func(tea.Msg)) orchestration.ProgressFunc {
	return func(server string, step orchestration.Step, err error) {
		send(StepMsg{Server: server, Step: step, Err: err})
	}
}
