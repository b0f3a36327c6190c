package display

import "github.com/charmbracelet/lipgloss"

// Palette shared with internal/ui/tui.
var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	borderStyle = lipgloss.NewStyle().Foreground(colorDim)

	runningStyle = cellStyle.Foreground(colorGreen)
	bogusStyle   = cellStyle.Foreground(colorRed)
	pendingStyle = cellStyle.Foreground(colorYellow)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)

	bogusLineStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed)

	noticeStyle = lipgloss.NewStyle().Foreground(colorYellow)
)
