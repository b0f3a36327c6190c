// Package display renders reconcile results as styled tables.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/imamik/facets/internal/orchestration"
	"github.com/imamik/facets/internal/reconcile"
	"github.com/imamik/facets/internal/topology"
)

// Columns of the server table, in order.
var Columns = []string{
	"Name", "State", "InstanceID", "Flavor", "Image", "AZ",
	"Public IP", "Private IP", "Created At", "Node",
}

const (
	resultColumn = "Result"
	resultOK     = "ok"
)

// Table writes server tables to a writer.
type Table struct {
	mu sync.Mutex
	w  io.Writer
}

var _ orchestration.Reporter = (*Table)(nil)

// NewTable creates a table reporter writing to w.
func NewTable(w io.Writer) *Table {
	return &Table{w: w}
}

// Servers renders one row per server of res. With outcomes, a result
// column is added for the servers that were part of the run.
func (t *Table) Servers(res *reconcile.Result, outcomes map[string]error) {
	if res == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(res.Servers) == 0 {
		fmt.Fprintf(t.w, "%s\n", dimStyle.Render("No servers in "+clusterName(res)))
		return
	}
	fmt.Fprintf(t.w, "\n%s\n", titleStyle.Render("Cluster "+clusterName(res)))
	fmt.Fprintln(t.w, Render(res, outcomes))
}

// Bogus lists bogus servers on one line.
func (t *Table) Bogus(servers []*topology.Server) {
	if len(servers) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, bogusLineStyle.Render(BogusLine(servers)))
}

// Notice prints a highlighted message.
func (t *Table) Notice(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, noticeStyle.Render(fmt.Sprintf(format, args...)))
}

// BogusLine formats the bogus server warning.
func BogusLine(servers []*topology.Server) string {
	names := make([]string, 0, len(servers))
	for _, s := range servers {
		names = append(names, s.Fullname())
	}
	return fmt.Sprintf("Bogus servers detected: [%s]", strings.Join(names, ", "))
}

// Render returns the table for res without a trailing newline.
func Render(res *reconcile.Result, outcomes map[string]error) string {
	headers := Columns
	if outcomes != nil {
		headers = append(append([]string(nil), Columns...), resultColumn)
	}

	states := make([]reconcile.State, 0, len(res.Servers))
	rows := make([][]string, 0, len(res.Servers))
	for _, s := range res.Servers {
		state := res.State(s)
		states = append(states, state)
		row := Row(s, state)
		if outcomes != nil {
			row = append(row, outcome(s, outcomes))
		}
		rows = append(rows, row)
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col != 1 || row < 0 || row >= len(states) {
				return cellStyle
			}
			return stateStyle(states[row])
		}).
		String()
}

// Row returns the cells of one server, matching Columns.
func Row(s *topology.Server, state reconcile.State) []string {
	row := []string{s.Fullname(), string(state), "", s.Settings.Flavor, s.Settings.Image(), s.Settings.AvailabilityZone, "", "", "", ""}
	if inst := s.Instance; inst != nil {
		row[2] = inst.ID
		if inst.Flavor != "" {
			row[3] = inst.Flavor
		}
		if inst.Image != "" {
			row[4] = inst.Image
		}
		if inst.Zone != "" {
			row[5] = inst.Zone
		}
		row[6] = inst.PublicIP
		row[7] = inst.PrivateIP
		if !inst.CreatedAt.IsZero() {
			row[8] = inst.CreatedAt.UTC().Format(time.DateTime)
		}
	}
	if s.Node != nil {
		row[9] = "yes"
	}
	return row
}

func outcome(s *topology.Server, outcomes map[string]error) string {
	err, ok := outcomes[s.Fullname()]
	switch {
	case !ok:
		return ""
	case err != nil:
		return err.Error()
	default:
		return resultOK
	}
}

func stateStyle(state reconcile.State) lipgloss.Style {
	switch state {
	case reconcile.StateRunning:
		return runningStyle
	case reconcile.StateBogus:
		return bogusStyle
	default:
		return pendingStyle
	}
}

func clusterName(res *reconcile.Result) string {
	if res.Cluster == nil {
		return ""
	}
	return res.Cluster.Name
}
