package tui

import (
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/facets/internal/orchestration"
	"github.com/imamik/facets/internal/ui/benchmarks"
)

// ServerProgress is the launch state of one server for display.
type ServerProgress struct {
	Name      string
	Step      orchestration.Step
	StepStart time.Time
	History   []benchmarks.StepRecord
	Done      bool
	Err       error
}

// Model is the Bubble Tea model for the launch dashboard.
type Model struct {
	ClusterName string
	Bootstrap   bool
	Servers     []ServerProgress

	// ETA
	EstimatedRemaining time.Duration
	StartTime          time.Time

	// Animation
	SpinnerFrame int

	// UI state
	Width  int
	Height int
	Err    error
	Done   bool

	now func() time.Time
}

// NewLaunchModel creates a model for a launch of clusterName. Servers are
// added as their first step arrives.
func NewLaunchModel(clusterName string, bootstrap bool) Model {
	return Model{
		ClusterName: clusterName,
		Bootstrap:   bootstrap,
		StartTime:   time.Now(),
		now:         time.Now,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case StepMsg:
		m.updateStep(msg)
		m.updateETA()

	case TickMsg:
		m.SpinnerFrame++
		m.updateETA()
		return m, tickCmd()

	case ErrMsg:
		m.Err = msg.Err
		return m, tea.Quit

	case DoneMsg:
		m.Done = true
		m.EstimatedRemaining = 0
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) updateStep(msg StepMsg) {
	now := m.clock()
	idx := slices.IndexFunc(m.Servers, func(s ServerProgress) bool { return s.Name == msg.Server })
	if idx < 0 {
		// Servers is shared with earlier copies of the model.
		m.Servers = append(slices.Clone(m.Servers), ServerProgress{Name: msg.Server})
		idx = len(m.Servers) - 1
	} else {
		m.Servers = slices.Clone(m.Servers)
	}
	srv := &m.Servers[idx]
	if srv.Done {
		return
	}

	if srv.Step != "" && srv.Step != msg.Step {
		srv.History = append(slices.Clone(srv.History), benchmarks.StepRecord{
			Step:     string(srv.Step),
			Duration: now.Sub(srv.StepStart),
		})
	}

	switch msg.Step {
	case orchestration.StepDone:
		srv.Done = true
	case orchestration.StepFailed:
		srv.Done = true
		srv.Err = msg.Err
	default:
		if srv.Step != msg.Step {
			srv.Step = msg.Step
			srv.StepStart = now
		}
	}
}

func (m *Model) updateETA() {
	var longest time.Duration
	now := m.clock()
	for _, srv := range m.Servers {
		if srv.Done {
			continue
		}
		remaining := benchmarks.EstimateRemaining(string(srv.Step), now.Sub(srv.StepStart), srv.History, m.Bootstrap)
		longest = max(longest, remaining)
	}
	m.EstimatedRemaining = longest
}

// Finished returns how many servers are done and how many of those failed.
func (m Model) Finished() (done, failed int) {
	for _, srv := range m.Servers {
		if !srv.Done {
			continue
		}
		done++
		if srv.Err != nil {
			failed++
		}
	}
	return done, failed
}

func (m Model) clock() time.Time {
	if m.now == nil {
		return time.Now()
	}
	return m.now()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}
