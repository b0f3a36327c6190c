package topology

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ErrEmptySelection is returned when a selector matches no servers.
var ErrEmptySelection = errors.New("no servers match the selection")

var indexesPattern = regexp.MustCompile(`^[0-9]+(\.\.[0-9]+)?(,[0-9]+(\.\.[0-9]+)?)*$`)

// Selector picks servers of one cluster. An empty Facet selects every
// facet; nil Indexes selects every index.
type Selector struct {
	Cluster string
	Facet   string
	Indexes []int
}

func (s Selector) String() string {
	out := s.Cluster
	if s.Facet != "" {
		out += "-" + s.Facet
	}
	if s.Indexes != nil {
		parts := make([]string, len(s.Indexes))
		for i, idx := range s.Indexes {
			parts[i] = strconv.Itoa(idx)
		}
		out += "-" + strings.Join(parts, ",")
	}
	return out
}

// ParseSelector parses CLUSTER[-FACET[-INDEXES]] for the named cluster.
// INDEXES is a comma separated list of indexes and inclusive ranges such as
// "0..2,5". Facet names may contain dashes.
func ParseSelector(cluster, target string) (Selector, error) {
	if target == "" {
		return Selector{}, fmt.Errorf("a target is required")
	}
	rest, ok := strings.CutPrefix(target, cluster)
	if !ok || (rest != "" && rest[0] != '-') {
		return Selector{}, fmt.Errorf("target %q does not belong to cluster %q", target, cluster)
	}
	sel := Selector{Cluster: cluster}
	rest = strings.TrimPrefix(rest, "-")
	if rest == "" {
		return sel, nil
	}

	if cut := strings.LastIndex(rest, "-"); cut > 0 && indexesPattern.MatchString(rest[cut+1:]) {
		indexes, err := parseIndexes(rest[cut+1:])
		if err != nil {
			return Selector{}, err
		}
		sel.Facet = rest[:cut]
		sel.Indexes = indexes
		return sel, nil
	}
	sel.Facet = rest
	return sel, nil
}

func parseIndexes(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(part, "..")
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q: %w", lo, err)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("invalid index %q: %w", hi, err)
			}
		}
		if to < from {
			return nil, fmt.Errorf("invalid index range %q", part)
		}
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// Slice is a selected subset of a cluster's servers in cluster order.
type Slice struct {
	Cluster *Cluster
	Servers []*Server
}

// Fullnames returns the names of the selected servers.
func (s *Slice) Fullnames() []string {
	out := make([]string, len(s.Servers))
	for i, srv := range s.Servers {
		out[i] = srv.Fullname()
	}
	return out
}

// Slice selects servers. Naming an undeclared facet is an error; a
// selection matching nothing returns ErrEmptySelection.
func (c *Cluster) Slice(sel Selector) (*Slice, error) {
	if sel.Cluster != "" && sel.Cluster != c.Name {
		return nil, fmt.Errorf("selector is for cluster %q, not %q", sel.Cluster, c.Name)
	}
	if sel.Facet != "" && c.Facet(sel.Facet) == nil {
		return nil, fmt.Errorf("facet %q is not declared in cluster %q", sel.Facet, c.Name)
	}

	out := &Slice{Cluster: c}
	for _, f := range c.Facets {
		if sel.Facet != "" && f.Name != sel.Facet {
			continue
		}
		for _, s := range f.Servers {
			if sel.Indexes == nil || slices.Contains(sel.Indexes, s.Index) {
				out.Servers = append(out.Servers, s)
			}
		}
	}
	if len(out.Servers) == 0 {
		return nil, fmt.Errorf("%s: %w", sel, ErrEmptySelection)
	}
	return out, nil
}
