package orchestration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imamik/facets/internal/config"
	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/provisioning"
	"github.com/imamik/facets/internal/reconcile"
	"github.com/imamik/facets/internal/settings"
	testutil "github.com/imamik/facets/internal/testing"
	"github.com/imamik/facets/internal/topology"
	"github.com/imamik/facets/internal/util/netutil"
)

type recordingReporter struct {
	mu       sync.Mutex
	reports  int
	order    []string
	bogus    []string
	notices  []string
	outcomes map[string]error
}

func (r *recordingReporter) Servers(_ *reconcile.Result, outcomes map[string]error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports++
	r.order = append(r.order, "servers")
	if outcomes != nil {
		r.outcomes = outcomes
	}
}

func (r *recordingReporter) Bogus(servers []*topology.Server) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, "bogus")
	for _, s := range servers {
		r.bogus = append(r.bogus, s.Fullname())
	}
}

func (r *recordingReporter) Notice(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, fmt.Sprintf(format, args...))
}

// bannerProber answers every probe with an ssh banner.
func bannerProber() *netutil.Prober {
	p := netutil.NewProber()
	p.Dial = func(context.Context, string, string) (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			_, _ = server.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
			_ = server.Close()
		}()
		return client, nil
	}
	return p
}

func webSlice(t *testing.T, def *config.Definition, target string) *topology.Slice {
	t.Helper()
	cluster, err := topology.Build(def, topology.NewRegistry(nil))
	require.NoError(t, err)
	sel, err := topology.ParseSelector(def.Name, target)
	require.NoError(t, err)
	slice, err := cluster.Slice(sel)
	require.NoError(t, err)
	return slice
}

func newLauncher(fixture *testutil.InventoryFixture) (*Launcher, *recordingReporter) {
	l := NewLauncher(fixture.Provider, fixture.Nodes, settings.NewResolver(nil))
	rep := &recordingReporter{}
	l.Reporter = rep
	l.Prober = bannerProber()
	return l, rep
}

func TestLaunch_ExistingFacetIsLeftAlone(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInventoryFixture()
	fixture.RunningServers("gibbon", "web", 3)
	def := testutil.NewDefinitionBuilder("gibbon").WithFacet("web", 3).Build()

	l, rep := newLauncher(fixture)
	pctx, obs := testutil.NewProvisioningContext(t)

	err := l.Launch(pctx, webSlice(t, def, "gibbon-web"), LaunchOptions{})
	require.NoError(t, err)

	assert.Zero(t, fixture.Provider.Calls(cloud.OpCreateInstance))
	assert.Zero(t, fixture.Provider.MutationCalls())
	assert.Empty(t, obs.Events(provisioning.EventValidationWarning))
	assert.Equal(t, []string{"All servers are running -- not launching any."}, rep.notices)
}

func TestLaunch_CreatesMissingServers(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInventoryFixture()
	fixture.RunningServer("gibbon", "web", 0)
	def := testutil.NewDefinitionBuilder("gibbon").
		WithFacet("web", 3).
		WithVolume("data", config.VolumeSpec{Device: "/dev/sdf", MountPoint: "/data", Size: 20, CreateAtLaunch: true}).
		Build()

	l, rep := newLauncher(fixture)
	var mu sync.Mutex
	steps := make(map[string][]Step)
	l.Progress = func(server string, step Step, _ error) {
		mu.Lock()
		defer mu.Unlock()
		steps[server] = append(steps[server], step)
	}
	pctx, _ := testutil.NewProvisioningContext(t)
	slice := webSlice(t, def, "gibbon-web")

	require.NoError(t, l.Launch(pctx, slice, LaunchOptions{}))

	assert.Equal(t, 2, fixture.Provider.Calls(cloud.OpCreateInstance))
	// Volumes come with the instances and are found again, not re-created.
	assert.Zero(t, fixture.Provider.Calls(cloud.OpCreateVolume))
	assert.Zero(t, fixture.Provider.Calls(cloud.OpAttachVolume))

	for _, s := range slice.Servers[1:] {
		require.NotNil(t, s.Instance, s.Fullname())
		assert.Equal(t, cloud.StateRunning, s.Instance.State)

		vol := s.Volumes["data"]
		require.NotNil(t, vol.Live)
		assert.NotEmpty(t, vol.VolumeID)
		assert.Equal(t, s.Fullname(), fixture.Provider.Volume(vol.VolumeID).Tags["server"])

		node, err := fixture.Nodes.FindNode(context.Background(), s.Fullname())
		require.NoError(t, err)
		require.NotNil(t, node)
		assert.Equal(t, s.Instance.ID, node.InstanceID)

		assert.Equal(t, []Step{StepCreate, StepWait, StepProbe, StepSync, StepNode, StepDone}, steps[s.Fullname()])
	}
	assert.Contains(t, rep.outcomes, "gibbon-web-1")
	assert.NoError(t, rep.outcomes["gibbon-web-2"])
}

func TestLaunch_RerunConverges(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInventoryFixture()
	def := testutil.NewDefinitionBuilder("gibbon").WithFacet("web", 2).Build()
	l, _ := newLauncher(fixture)

	pctx, _ := testutil.NewProvisioningContext(t)
	require.NoError(t, l.Launch(pctx, webSlice(t, def, "gibbon-web"), LaunchOptions{}))
	require.Equal(t, 2, fixture.Provider.Calls(cloud.OpCreateInstance))

	fixture.Provider.ResetCalls()
	pctx, obs := testutil.NewProvisioningContext(t)
	require.NoError(t, l.Launch(pctx, webSlice(t, def, "gibbon-web"), LaunchOptions{}))
	assert.Zero(t, fixture.Provider.MutationCalls())
	assert.Empty(t, obs.Events(provisioning.EventValidationWarning))
}

func TestLaunch_BogusServers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		force       bool
		wantErr     error
		wantCreates int
	}{
		{name: "aborts", wantErr: ErrBogusServers},
		{name: "forced", force: true, wantCreates: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fixture := testutil.NewInventoryFixture()
			fixture.RunningServer("gibbon", "web", 0)
			fixture.RunningServer("gibbon", "web", 7)
			def := testutil.NewDefinitionBuilder("gibbon").WithFacet("web", 3).Build()

			l, rep := newLauncher(fixture)
			pctx, _ := testutil.NewProvisioningContext(t)
			err := l.Launch(pctx, webSlice(t, def, "gibbon-web"), LaunchOptions{Force: tt.force})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, []string{"gibbon-web-7"}, rep.bogus)
			assert.Equal(t, []string{"bogus", "servers"}, rep.order[:2])
			assert.Equal(t, tt.wantCreates, fixture.Provider.Calls(cloud.OpCreateInstance))
		})
	}
}

func TestLaunch_LintFailureCreatesNothing(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInventoryFixture()
	def := testutil.NewDefinitionBuilder("gibbon").
		WithSettings(config.Settings{Flavor: "m1.small"}).
		WithFacet("web", 2).
		Build()

	l, _ := newLauncher(fixture)
	pctx, _ := testutil.NewProvisioningContext(t)
	err := l.Launch(pctx, webSlice(t, def, "gibbon-web"), LaunchOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lint phase failed")
	assert.Zero(t, fixture.Provider.Calls(cloud.OpCreateInstance))
}

func TestLaunch_PartialFailureIsJoined(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInventoryFixture()
	def := testutil.NewDefinitionBuilder("gibbon").WithFacet("web", 2).Build()
	l, rep := newLauncher(fixture)

	boot := &testutil.MockBootstrapper{}
	boot.On("Bootstrap", mock.Anything, mock.Anything, "gibbon-web-0").Return(nil)
	boot.On("Bootstrap", mock.Anything, mock.Anything, "gibbon-web-1").Return(errors.New("exit status 1"))
	l.Bootstrapper = boot

	pctx, _ := testutil.NewProvisioningContext(t)
	err := l.Launch(pctx, webSlice(t, def, "gibbon-web"), LaunchOptions{Bootstrap: true})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "gibbon-web-1: exit status 1")
	assert.NotContains(t, err.Error(), "gibbon-web-0")
	assert.NoError(t, rep.outcomes["gibbon-web-0"])
	assert.Error(t, rep.outcomes["gibbon-web-1"])
	boot.AssertNumberOfCalls(t, "Bootstrap", 2)
}

func TestLauncher_ProberPort(t *testing.T) {
	t.Parallel()

	pctx, _ := testutil.NewProvisioningContext(t)
	l := &Launcher{}
	assert.Equal(t, netutil.DefaultPort, l.prober(pctx, LaunchOptions{}).Port)
	assert.Equal(t, 2222, l.prober(pctx, LaunchOptions{ProbePort: 2222}).Port)

	l.Prober = bannerProber()
	assert.Equal(t, 2222, l.prober(pctx, LaunchOptions{ProbePort: 2222}).Port)
	assert.Equal(t, netutil.DefaultPort, l.Prober.Port, "the configured prober is copied")
}

func TestLaunch_DryRunSkipsProbeAndBootstrap(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInventoryFixture()
	dry := cloud.NewDryRun(fixture.Provider)
	def := testutil.NewDefinitionBuilder("gibbon").WithFacet("web", 2).Build()

	l := NewLauncher(dry, fixture.Nodes, settings.NewResolver(nil))
	l.Prober = &netutil.Prober{Dial: func(context.Context, string, string) (net.Conn, error) {
		t.Error("dry run must not probe")
		return nil, errors.New("unexpected probe")
	}}
	boot := &testutil.MockBootstrapper{}
	l.Bootstrapper = boot

	pctx, _ := testutil.NewProvisioningContext(t)
	require.NoError(t, l.Launch(pctx, webSlice(t, def, "gibbon-web"), LaunchOptions{DryRun: true, Bootstrap: true}))

	assert.Zero(t, fixture.Provider.MutationCalls())
	assert.NotEmpty(t, dry.Mutations())
	nodes, err := fixture.Nodes.ListNodes(context.Background(), "gibbon")
	require.NoError(t, err)
	assert.Empty(t, nodes)
	boot.AssertNotCalled(t, "Bootstrap", mock.Anything, mock.Anything, mock.Anything)
}

func TestLaunch_CoordinatorInjected(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInventoryFixture()
	master := fixture.RunningServer("gibbon", "master", 0)
	def := testutil.NewDefinitionBuilder("gibbon").
		WithFacet("master", 1).
		WithFacet("worker", 1).
		WithCoordinator("worker", "master", "hadoop.namenode.address").
		Build()

	l, _ := newLauncher(fixture)
	pctx, _ := testutil.NewProvisioningContext(t)
	slice := webSlice(t, def, "gibbon-worker")
	require.NoError(t, l.Launch(pctx, slice, LaunchOptions{}))

	node, err := fixture.Nodes.FindNode(context.Background(), "gibbon-worker-0")
	require.NoError(t, err)
	require.NotNil(t, node)
	hadoop, ok := node.Attributes["hadoop"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"address": master.PrivateIP}, hadoop["namenode"])
}

func TestKillPrompt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		nodes, servers int
		want           string
	}{
		{2, 3, "Are you absolutely certain that you want to delete 2 node records and 3 cloud servers? (Type 'Yes' to confirm) "},
		{0, 1, "Are you absolutely certain that you want to delete 1 cloud servers? (Type 'Yes' to confirm) "},
		{4, 0, "Are you absolutely certain that you want to delete 4 node records? (Type 'Yes' to confirm) "},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KillPrompt(tt.nodes, tt.servers))
	}
}

func killFixture() *testutil.InventoryFixture {
	fixture := testutil.NewInventoryFixture()
	fixture.RunningServers("gibbon", "web", 3)
	fixture.Node("gibbon", "web", 0)
	fixture.Node("gibbon", "web", 1)
	return fixture
}

func TestKill_RequiresExactYes(t *testing.T) {
	t.Parallel()

	for _, answer := range []string{"", "yes", "YES", "y", " Yes", "Yes please", "no"} {
		t.Run(fmt.Sprintf("%q", answer), func(t *testing.T) {
			t.Parallel()

			fixture := killFixture()
			def := testutil.NewDefinitionBuilder("gibbon").WithFacet("web", 3).Build()
			confirmer := testutil.NewMockConfirmer(answer)
			k := NewKiller(fixture.Provider, fixture.Nodes, confirmer)

			pctx, _ := testutil.NewProvisioningContext(t)
			err := k.Kill(pctx, webSlice(t, def, "gibbon-web"), KillOptions{Cloud: true, Node: true})

			assert.ErrorIs(t, err, ErrNotConfirmed)
			assert.Zero(t, fixture.Provider.Calls(cloud.OpDestroyInstance))
			nodes, err := fixture.Nodes.ListNodes(context.Background(), "gibbon")
			require.NoError(t, err)
			assert.Len(t, nodes, 2)
			confirmer.AssertCalled(t, "Ask", mock.Anything,
				"Are you absolutely certain that you want to delete 2 node records and 3 cloud servers? (Type 'Yes' to confirm) ")
		})
	}
}

func TestKill_Confirmed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		opts          KillOptions
		wantDestroyed int
		wantNodesLeft int
	}{
		{name: "cloud and nodes", opts: KillOptions{Cloud: true, Node: true}, wantDestroyed: 3, wantNodesLeft: 0},
		{name: "cloud only", opts: KillOptions{Cloud: true}, wantDestroyed: 3, wantNodesLeft: 2},
		{name: "nodes only", opts: KillOptions{Node: true}, wantDestroyed: 0, wantNodesLeft: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fixture := killFixture()
			def := testutil.NewDefinitionBuilder("gibbon").WithFacet("web", 3).Build()
			var out strings.Builder
			confirmer := &LineConfirmer{In: strings.NewReader("Yes\n"), Out: &out}
			k := NewKiller(fixture.Provider, fixture.Nodes, confirmer)

			pctx, _ := testutil.NewProvisioningContext(t)
			require.NoError(t, k.Kill(pctx, webSlice(t, def, "gibbon-web"), tt.opts))

			assert.Equal(t, tt.wantDestroyed, fixture.Provider.Calls(cloud.OpDestroyInstance))
			nodes, err := fixture.Nodes.ListNodes(context.Background(), "gibbon")
			require.NoError(t, err)
			assert.Len(t, nodes, tt.wantNodesLeft)
			assert.Contains(t, out.String(), "Are you absolutely certain")
		})
	}
}

func TestKill_Bogus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		killBogus     bool
		wantDestroyed int
	}{
		{name: "left alone", wantDestroyed: 1},
		{name: "killed", killBogus: true, wantDestroyed: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fixture := testutil.NewInventoryFixture()
			fixture.RunningServer("gibbon", "web", 0)
			phantom := fixture.RunningServer("gibbon", "web", 9)
			def := testutil.NewDefinitionBuilder("gibbon").WithFacet("web", 1).Build()

			k := NewKiller(fixture.Provider, fixture.Nodes, AssumeYes{})
			rep := &recordingReporter{}
			k.Reporter = rep

			pctx, _ := testutil.NewProvisioningContext(t)
			require.NoError(t, k.Kill(pctx, webSlice(t, def, "gibbon-web"), KillOptions{KillBogus: tt.killBogus, Cloud: true}))

			assert.Equal(t, []string{"gibbon-web-9"}, rep.bogus)
			assert.Equal(t, "bogus", rep.order[0])
			assert.Equal(t, tt.wantDestroyed, fixture.Provider.Calls(cloud.OpDestroyInstance))
			assert.Equal(t, !tt.killBogus, fixture.Provider.Instance(phantom.ID).Alive())
		})
	}
}

func TestKill_LeavesOtherClustersAlone(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInventoryFixture()
	fixture.RunningServer("gibbon", "web", 0)
	other := fixture.RunningServer("gibbon-prod", "master", 0)
	def := testutil.NewDefinitionBuilder("gibbon").WithFacet("web", 1).Build()

	k := NewKiller(fixture.Provider, fixture.Nodes, AssumeYes{})
	rep := &recordingReporter{}
	k.Reporter = rep

	pctx, _ := testutil.NewProvisioningContext(t)
	require.NoError(t, k.Kill(pctx, webSlice(t, def, "gibbon"), KillOptions{KillBogus: true, Cloud: true}))

	assert.Empty(t, rep.bogus)
	assert.Equal(t, 1, fixture.Provider.Calls(cloud.OpDestroyInstance))
	assert.True(t, fixture.Provider.Instance(other.ID).Alive())
}

func TestKill_PromptCountsDuplicates(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInventoryFixture()
	fixture.RunningServer("gibbon", "web", 0)
	fixture.RunningServer("gibbon", "web", 0)
	def := testutil.NewDefinitionBuilder("gibbon").WithFacet("web", 1).Build()

	confirmer := testutil.NewMockConfirmer("Yes")
	k := NewKiller(fixture.Provider, fixture.Nodes, confirmer)

	pctx, _ := testutil.NewProvisioningContext(t)
	require.NoError(t, k.Kill(pctx, webSlice(t, def, "gibbon-web"), KillOptions{KillBogus: true, Cloud: true}))

	confirmer.AssertCalled(t, "Ask", mock.Anything, KillPrompt(0, 2))
	assert.Equal(t, 2, fixture.Provider.Calls(cloud.OpDestroyInstance))
}

func TestKill_NothingToKill(t *testing.T) {
	t.Parallel()

	fixture := testutil.NewInventoryFixture()
	def := testutil.NewDefinitionBuilder("gibbon").WithFacet("web", 2).Build()
	confirmer := &testutil.MockConfirmer{}
	k := NewKiller(fixture.Provider, fixture.Nodes, confirmer)
	rep := &recordingReporter{}
	k.Reporter = rep

	pctx, _ := testutil.NewProvisioningContext(t)
	require.NoError(t, k.Kill(pctx, webSlice(t, def, "gibbon-web"), KillOptions{Cloud: true, Node: true}))

	assert.Equal(t, []string{"Nothing to kill."}, rep.notices)
	confirmer.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything)
}
