package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/facets/internal/orchestration"
)

// Palette shared with internal/ui/display.
var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue).MarginTop(1)
	footerStyle  = lipgloss.NewStyle().Foreground(colorDim).MarginTop(1)

	readyStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed)
	warningStyle = lipgloss.NewStyle().Foreground(colorYellow)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	activeStyle  = lipgloss.NewStyle().Foreground(colorWhite).Bold(true)

	progressBarFull  = lipgloss.NewStyle().Foreground(colorGreen)
	progressBarEmpty = lipgloss.NewStyle().Foreground(colorDim)
)

// Row marks.
const (
	checkMark = "[OK]"
	crossMark = "[!!]"
	spinner   = "[..]"
	pending   = "[  ]"
)

var spinnerFrames = []string{"[.  ]", "[.. ]", "[...]", "[ ..]", "[  .]", "[   ]"}

// stepStyle colors a running server by the step it is in. Probing and
// bootstrapping wait on the server itself rather than on the cloud.
func stepStyle(step orchestration.Step) lipgloss.Style {
	switch step {
	case orchestration.StepProbe:
		return warningStyle
	case orchestration.StepBootstrap:
		return lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	default:
		return activeStyle
	}
}
