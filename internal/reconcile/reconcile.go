// Package reconcile pairs the declared servers of a cluster with the live
// resources found in a cloud account, and classifies each server.
package reconcile

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/topology"
	"github.com/imamik/facets/internal/util/naming"
	"github.com/imamik/facets/internal/util/tags"
)

// WarningKind names the kind of inconsistency a Warning reports.
type WarningKind string

const (
	WarnInstanceMismatch WarningKind = "instance_mismatch"
	WarnDuplicate        WarningKind = "duplicate_instance"
	WarnVolumeOwnership  WarningKind = "volume_ownership"
	WarnVolumeMissing    WarningKind = "volume_missing"
	WarnAddressOwnership WarningKind = "address_ownership"
)

// Warning is a non-fatal inconsistency found while reconciling.
type Warning struct {
	Server  string
	Kind    WarningKind
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Server, w.Message)
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Cluster *topology.Cluster
	// Servers holds the selected servers in cluster order followed by
	// phantoms.
	Servers  []*topology.Server
	Warnings []Warning
}

// State classifies server.
func (r *Result) State(server *topology.Server) State {
	return Classify(server, len(server.Conflicts) > 0)
}

// Filter returns the servers in any of the given states, in order.
func (r *Result) Filter(states ...State) []*topology.Server {
	var out []*topology.Server
	for _, s := range r.Servers {
		if slices.Contains(states, r.State(s)) {
			out = append(out, s)
		}
	}
	return out
}

// Bogus returns the bogus servers.
func (r *Result) Bogus() []*topology.Server { return r.Filter(StateBogus) }

// Launchable returns the servers with no live instance.
func (r *Result) Launchable() []*topology.Server { return r.Filter(StateLaunchable) }

// Killable returns the servers that have something to destroy.
func (r *Result) Killable() []*topology.Server {
	var out []*topology.Server
	for _, s := range r.Servers {
		if Killable(s) {
			out = append(out, s)
		}
	}
	return out
}

// Reconciler pairs servers with snapshot resources.
type Reconciler struct {
	// Normalizer applies the provider's tag rules to desired tag values
	// before they are compared with live ones. May be nil.
	Normalizer cloud.TagNormalizer
}

// Reconcile fills the observed state of servers from snap and returns the
// classification input for the pass. Servers are updated in place.
//
// Instances pair by Name tag or provider name first and by the
// cluster/facet/index tags second. A live instance always wins over a
// terminated one; more than one live instance makes the server a duplicate.
// Live instances of the cluster that match no declared server are added
// as phantoms when their facet is part of the selection.
func (r *Reconciler) Reconcile(cluster *topology.Cluster, servers []*topology.Server, snap *Snapshot) *Result {
	res := &Result{Cluster: cluster}
	claimed := make(map[string]bool)

	// Instances of unselected servers are not phantoms either.
	for _, s := range cluster.Servers() {
		for _, inst := range candidates(s, snap) {
			claimed[inst.ID] = true
		}
	}

	for _, s := range servers {
		r.pairInstance(s, snap, res)
		s.Node = snap.Nodes[s.Fullname()]
		r.resolveVolumes(s, snap, res)
		checkAddress(s, snap, res)
		res.Servers = append(res.Servers, s)
	}

	res.Servers = append(res.Servers, phantoms(cluster, servers, snap, claimed)...)
	return res
}

func (r *Reconciler) pairInstance(s *topology.Server, snap *Snapshot, res *Result) {
	prev := s.Instance
	found := candidates(s, snap)

	var alive, gone []*cloud.Instance
	for _, inst := range found {
		if inst.Alive() {
			alive = append(alive, inst)
		} else {
			gone = append(gone, inst)
		}
	}

	// The previously paired instance sorts first so a rerun never flips.
	order := func(a, b *cloud.Instance) int {
		if prev != nil && (a.ID == prev.ID) != (b.ID == prev.ID) {
			if a.ID == prev.ID {
				return -1
			}
			return 1
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	}
	slices.SortFunc(alive, order)
	slices.SortFunc(gone, order)

	s.Conflicts = nil
	var paired *cloud.Instance
	switch {
	case len(alive) > 0:
		paired = alive[0]
		if len(alive) > 1 {
			s.Conflicts = alive[1:]
			ids := make([]string, 0, len(alive))
			for _, inst := range alive {
				ids = append(ids, inst.ID)
			}
			res.warn(s, WarnDuplicate, "multiple live instances claim this server: %s", strings.Join(ids, ", "))
		}
	case len(gone) > 0:
		paired = gone[len(gone)-1]
	}

	if prev != nil && paired != nil && prev.ID != paired.ID {
		res.warn(s, WarnInstanceMismatch, "instance mismatch: was paired with %s, now %s", prev.ID, paired.ID)
	}
	s.Instance = paired
}

// candidates returns every instance that claims s, in snapshot order.
func candidates(s *topology.Server, snap *Snapshot) []*cloud.Instance {
	name := s.Fullname()
	var out []*cloud.Instance
	for _, inst := range snap.Instances {
		if instanceName(inst) == name || tags.MatchesServer(inst.Tags, s.ClusterName, s.FacetName, s.Index) {
			out = append(out, inst)
		}
	}
	return out
}

// resolveVolumes pairs each persistent volume with a live one. A volume id
// already known is authoritative; otherwise the volume attached to the
// paired instance at the declared device is used, and failing that the
// volume tagged with the server and device.
func (r *Reconciler) resolveVolumes(s *topology.Server, snap *Snapshot, res *Result) {
	instanceID := s.InstanceID()
	for _, vol := range s.SortedVolumes() {
		if vol.Ephemeral() {
			continue
		}

		var live *cloud.Volume
		switch {
		case vol.VolumeID != "":
			live = snap.Volume(vol.VolumeID)
			if live == nil {
				res.warn(s, WarnVolumeMissing, "volume %s (%s) not found", vol.Name, vol.VolumeID)
			}
		case instanceID != "" && vol.Device != "":
			live = attachedAt(snap, instanceID, vol.Device)
			if live == nil {
				live = r.taggedFor(snap, s.Fullname(), vol.Device)
			}
		default:
			live = r.taggedFor(snap, s.Fullname(), vol.Device)
		}
		if live == nil {
			vol.Live = nil
			continue
		}

		vol.Live = live
		if vol.VolumeID == "" {
			vol.VolumeID = live.ID
		}
		if vol.AvailabilityZone == "" {
			vol.AvailabilityZone = live.Zone
		}
		if instanceID != "" && live.InstanceID != "" && live.InstanceID != instanceID {
			res.warn(s, WarnVolumeOwnership, "volume %s (%s) is attached to %s, not to this server", vol.Name, live.ID, live.InstanceID)
		}
	}
}

func attachedAt(snap *Snapshot, instanceID, device string) *cloud.Volume {
	for _, v := range snap.Volumes {
		if v.InstanceID == instanceID && v.Device == device {
			return v
		}
	}
	return nil
}

func (r *Reconciler) taggedFor(snap *Snapshot, fullname, device string) *cloud.Volume {
	if device == "" {
		return nil
	}
	want := map[string]string{tags.KeyServer: fullname, tags.KeyDevice: device}
	if r.Normalizer != nil {
		want = r.Normalizer.NormalizeTags(want)
	}
	for _, v := range snap.Volumes {
		if v.Tags[tags.KeyServer] == want[tags.KeyServer] && v.Tags[tags.KeyDevice] == want[tags.KeyDevice] {
			return v
		}
	}
	return nil
}

func checkAddress(s *topology.Server, snap *Snapshot, res *Result) {
	ip := s.Settings.PublicIP
	if ip == "" {
		return
	}
	addr := snap.Address(ip)
	if addr == nil || addr.InstanceID == "" || addr.InstanceID == s.InstanceID() {
		return
	}
	res.warn(s, WarnAddressOwnership, "address %s is associated with %s, not to this server", ip, addr.InstanceID)
}

// phantoms returns bogus servers for live, unclaimed instances of the
// cluster. A cluster tag decides membership on its own. An untagged
// instance belongs to the cluster only when its name parses as a server of
// one of the cluster's facets.
func phantoms(cluster *topology.Cluster, selected []*topology.Server, snap *Snapshot, claimed map[string]bool) []*topology.Server {
	facets := make(map[string]bool)
	for _, s := range selected {
		facets[s.FacetName] = true
	}
	whole := len(selected) == len(cluster.Servers())

	var out []*topology.Server
	for _, inst := range snap.Instances {
		if !inst.Alive() || claimed[inst.ID] {
			continue
		}
		facet, index, ok := memberOf(cluster, inst)
		if !ok {
			continue
		}

		phantom := &topology.Server{
			ClusterName: cluster.Name,
			FacetName:   facet,
			Index:       index,
			Name:        instanceName(inst),
			Instance:    inst,
			Phantom:     true,
		}
		if phantom.Name == "" {
			phantom.Name = inst.ID
		}

		if facets[phantom.FacetName] || whole {
			out = append(out, phantom)
		}
	}
	return out
}

// memberOf reports whether inst belongs to cluster, and the facet and index
// it claims. The index is -1 when unknown.
func memberOf(cluster *topology.Cluster, inst *cloud.Instance) (facet string, index int, ok bool) {
	if owner, tagged := inst.Tags[tags.KeyCluster]; tagged && owner != "" {
		if owner != cluster.Name {
			return "", 0, false
		}
		facet, index = inst.Tags[tags.KeyFacet], -1
		if idx, err := strconv.Atoi(inst.Tags[tags.KeyIndex]); err == nil {
			index = idx
		}
		if facet == "" {
			if f, idx, parsed := naming.ParseServer(cluster.Name, instanceName(inst)); parsed {
				facet, index = f, idx
			}
		}
		return facet, index, true
	}

	facet, index, ok = naming.ParseServer(cluster.Name, instanceName(inst))
	if !ok || cluster.Facet(facet) == nil {
		return "", 0, false
	}
	return facet, index, true
}

func (r *Result) warn(s *topology.Server, kind WarningKind, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{
		Server:  s.Fullname(),
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}
