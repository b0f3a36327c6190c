package converge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/provisioning"
	"github.com/imamik/facets/internal/topology"
	"github.com/imamik/facets/internal/util/naming"
	"github.com/imamik/facets/internal/util/ptr"
	"github.com/imamik/facets/internal/util/retry"
	"github.com/imamik/facets/internal/util/tags"
)

// Lint failures. Both are fatal for the whole run.
var (
	ErrMissingImage  = errors.New("no image id or image name")
	ErrMissingFlavor = errors.New("no flavor")
)

// Lint checks that every server can be launched. It returns one
// validation error per problem.
func Lint(servers []*topology.Server) []provisioning.ValidationError {
	var out []provisioning.ValidationError
	for _, s := range servers {
		if s.Settings.Image() == "" {
			out = append(out, provisioning.ValidationError{
				Field:    s.Fullname() + ".image",
				Message:  "set image_id or image_name in the facet or settings",
				Severity: provisioning.SeverityError,
				Err:      ErrMissingImage,
			})
		}
		if s.Settings.Flavor == "" {
			out = append(out, provisioning.ValidationError{
				Field:    s.Fullname() + ".flavor",
				Message:  "set flavor in the facet or settings",
				Severity: provisioning.SeverityError,
				Err:      ErrMissingFlavor,
			})
		}
	}
	return out
}

// LintAll lints servers and reports the result. A failure is fatal.
func (e *Executor) LintAll(servers []*topology.Server) error {
	if err := provisioning.ReportValidation(e.observer(), phase, Lint(servers)); err != nil {
		return retry.Fatal(err)
	}
	return nil
}

// CreateServer launches an instance for s unless it already has a live
// one. The new instance is stored on s.
func (e *Executor) CreateServer(ctx context.Context, s *topology.Server) (err error) {
	const op = "create_server"
	name := s.Fullname()

	if s.Instance != nil && !s.Instance.State.Gone() {
		provisioning.LogResourceExists(e.observer(), phase, "server", name, s.Instance.ID)
		e.Metrics.RecordSkipped(op)
		return nil
	}
	if err := e.LintAll([]*topology.Server{s}); err != nil {
		return err
	}

	if pg := s.Settings.PlacementGroup; pg != "" {
		if err := e.EnsurePlacementGroup(ctx, pg); err != nil {
			return err
		}
	}
	if err := e.EnsureSecurityGroups(ctx, s); err != nil {
		return err
	}

	spec, err := e.launchSpec(s)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() { e.record(op, start, err) }()

	provisioning.LogResourceCreating(e.observer(), phase, "server", name)
	ctx, cancel := context.WithTimeout(ctx, e.timeouts().ServerCreate)
	defer cancel()

	inst, err := e.Provider.CreateInstance(ctx, spec)
	if err != nil {
		provisioning.LogResourceFailed(e.observer(), phase, "server", name, err)
		return fmt.Errorf("failed to create server %s: %w", name, err)
	}
	s.Instance = inst
	provisioning.LogResourceCreated(e.observer(), phase, "server", name, inst.ID)
	return nil
}

// WaitForReady polls the provider until s's instance is running, then
// stores the fresh instance on s.
func (e *Executor) WaitForReady(ctx context.Context, s *topology.Server) error {
	id := s.InstanceID()
	if id == "" {
		return fmt.Errorf("server %s has no instance", s.Fullname())
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeouts().ServerReady)
	defer cancel()

	interval := e.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	err := retry.Constant(ctx, interval, func() error {
		inst, err := e.Provider.GetInstance(ctx, id)
		if err != nil {
			if cloud.IsNotFound(err) {
				return retry.Fatal(err)
			}
			return err
		}
		if inst.State.Gone() {
			return retry.Fatal(fmt.Errorf("instance %s is %s", id, inst.State))
		}
		if inst.State != cloud.StateRunning {
			return fmt.Errorf("instance %s is %s", id, inst.State)
		}
		s.Instance = inst
		return nil
	})
	if err != nil {
		return fmt.Errorf("server %s did not become ready: %w", s.Fullname(), err)
	}
	return nil
}

func (e *Executor) launchSpec(s *topology.Server) (cloud.LaunchSpec, error) {
	userData, err := e.userData(s)
	if err != nil {
		return cloud.LaunchSpec{}, err
	}
	return cloud.LaunchSpec{
		Name:           s.Fullname(),
		Image:          s.Settings.Image(),
		Flavor:         s.Settings.Flavor,
		Zone:           s.Settings.AvailabilityZone,
		KeyPair:        s.Settings.KeyPair,
		SecurityGroups: s.SecurityGroupNames(),
		PlacementGroup: s.Settings.PlacementGroup,
		UserData:       userData,
		BlockDevices:   blockDevices(s),
		Monitoring:     ptr.Deref(s.Settings.Monitoring, false),
		Tags:           cloud.NormalizeTags(e.Provider, InstanceTags(s)),
		ClientToken:    clientToken(e.RunID, s.Fullname()),
	}, nil
}

// userData renders the JSON document a new instance boots with.
func (e *Executor) userData(s *topology.Server) (string, error) {
	doc := make(map[string]any, len(s.Settings.UserData)+len(e.Credentials)+5)
	maps.Copy(doc, s.Settings.UserData)
	maps.Copy(doc, e.Credentials)
	doc["node_name"] = s.Fullname()
	doc["cluster_name"] = s.ClusterName
	doc["facet_name"] = s.FacetName
	doc["facet_index"] = s.Index
	doc["run_list"] = s.Settings.RunList

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to render user data for %s: %w", s.Fullname(), err)
	}
	return string(data), nil
}

// blockDevices maps ephemeral volumes and persistent volumes that are
// created with the instance.
func blockDevices(s *topology.Server) []cloud.BlockDevice {
	var out []cloud.BlockDevice
	for _, v := range s.SortedVolumes() {
		switch {
		case v.Device == "":
			continue
		case v.Ephemeral():
			out = append(out, cloud.BlockDevice{Device: v.Device, VirtualName: v.VolumeID})
		case v.CreateAtLaunch && v.VolumeID == "" && (v.Size > 0 || v.SnapshotID != ""):
			out = append(out, cloud.BlockDevice{
				Device:              v.Device,
				Size:                v.Size,
				SnapshotID:          v.SnapshotID,
				DeleteOnTermination: !v.Keep,
			})
		}
	}
	return out
}

// InstanceTags returns the tags a server's instance should carry.
func InstanceTags(s *topology.Server) map[string]string {
	return tags.NewBuilder(s.ClusterName).
		WithFacet(s.FacetName).
		WithIndex(s.Index).
		WithName(s.Fullname()).
		Merge(s.Settings.Tags).
		Build()
}

// VolumeTags returns the tags a server's volume should carry.
func VolumeTags(s *topology.Server, v *topology.Volume) map[string]string {
	return tags.NewBuilder(s.ClusterName).
		WithFacet(s.FacetName).
		WithIndex(s.Index).
		WithName(naming.Volume(s.Fullname(), v.Name)).
		ForVolume(s.Fullname(), v.Device, v.MountPoint).
		Merge(v.Tags).
		Build()
}

// clientToken is stable for one server within one run, so a retried
// create does not launch a second instance.
func clientToken(runID, fullname string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(runID+"/"+fullname)).String()
}
