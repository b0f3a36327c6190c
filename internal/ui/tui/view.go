package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/facets/internal/orchestration"
	"github.com/imamik/facets/internal/ui/benchmarks"
)

// styleFunc is a single-string styling function.
type styleFunc func(string) string

// sf wraps a lipgloss.Style into a styleFunc.
func sf(s lipgloss.Style) styleFunc {
	return func(str string) string { return s.Render(str) }
}

func renderView(m Model) string {
	var b strings.Builder

	renderHeader(&b, m)
	renderProgressBar(&b, m)
	renderServers(&b, m)
	renderFooter(&b, m)

	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	b.WriteString(titleStyle.Render(fmt.Sprintf("facets launch: %s", m.ClusterName)))

	status := " "
	_, failed := m.Finished()
	switch {
	case m.Err != nil:
		status += failedStyle.Render(fmt.Sprintf("Error: %v", m.Err))
	case m.Done && failed > 0:
		status += warningStyle.Render(fmt.Sprintf("Finished with %d failed", failed))
	case m.Done:
		status += readyStyle.Render("Launched")
	case len(m.Servers) == 0:
		status += dimStyle.Render("Reconciling...")
	default:
		status += activeStyle.Render(currentSpinner(m.SpinnerFrame)) + " " + warningStyle.Render("Launching")
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func renderProgressBar(b *strings.Builder, m Model) {
	progress := calculateProgress(m)
	barWidth := 40
	if m.Width > 0 && m.Width < 80 {
		barWidth = max(m.Width-30, 10)
	}
	filled := min(int(float64(barWidth)*progress), barWidth)

	bar := progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))

	eta := ""
	if m.EstimatedRemaining > 0 {
		eta = fmt.Sprintf(" ETA %s", formatDuration(m.EstimatedRemaining))
	}
	fmt.Fprintf(b, "  %s %d%%%s\n", bar, int(progress*100), eta)
}

func renderServers(b *strings.Builder, m Model) {
	if len(m.Servers) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render("  Servers"))
	b.WriteString("\n")

	width := 0
	for _, srv := range m.Servers {
		width = max(width, len(srv.Name))
	}
	now := m.clock()
	for _, srv := range m.Servers {
		icon, style := serverIcon(srv, m.SpinnerFrame)
		detail := string(srv.Step)
		elapsed := ""
		switch {
		case srv.Err != nil && srv.Step == "":
			detail = srv.Err.Error()
		case srv.Err != nil:
			detail = fmt.Sprintf("%s: %v", srv.Step, srv.Err)
		case srv.Done:
			detail = "ready"
		case !srv.StepStart.IsZero():
			elapsed = formatDuration(now.Sub(srv.StepStart))
		}
		fmt.Fprintf(b, "    %s %-*s %s %s\n", style(icon), width, srv.Name, style(detail), dimStyle.Render(elapsed))
	}
}

func renderFooter(b *strings.Builder, m Model) {
	done, failed := m.Finished()
	parts := []string{
		fmt.Sprintf("elapsed: %s", formatDuration(m.clock().Sub(m.StartTime))),
		fmt.Sprintf("%d/%d servers", done, len(m.Servers)),
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	b.WriteString(footerStyle.Render(fmt.Sprintf("  %s  |  q: quit", strings.Join(parts, "  |  "))))
	b.WriteString("\n")
}

// Helper functions

func serverIcon(srv ServerProgress, frame int) (string, styleFunc) {
	switch {
	case srv.Err != nil:
		return crossMark, sf(failedStyle)
	case srv.Done:
		return checkMark, sf(readyStyle)
	case srv.Step == "":
		return pending, sf(dimStyle)
	default:
		return currentSpinner(frame), sf(stepStyle(srv.Step))
	}
}

func currentSpinner(frame int) string {
	if len(spinnerFrames) == 0 {
		return spinner
	}
	if frame < 0 {
		frame = -frame
	}
	return spinnerFrames[frame%len(spinnerFrames)]
}

// steps returns the launch steps a server goes through.
func steps(bootstrap bool) []string {
	if bootstrap {
		return benchmarks.StepOrder
	}
	return slices.DeleteFunc(slices.Clone(benchmarks.StepOrder), func(s string) bool {
		return s == string(orchestration.StepBootstrap)
	})
}

func calculateProgress(m Model) float64 {
	if m.Done {
		return 1.0
	}
	if len(m.Servers) == 0 {
		return 0
	}

	order := steps(m.Bootstrap)
	var progress float64
	for _, srv := range m.Servers {
		if srv.Done {
			progress += 1
			continue
		}
		if idx := slices.Index(order, string(srv.Step)); idx > 0 {
			progress += float64(idx) / float64(len(order))
		}
	}
	return progress / float64(len(m.Servers))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
