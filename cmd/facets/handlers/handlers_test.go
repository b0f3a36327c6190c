package handlers

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/facets/internal/config"
	"github.com/imamik/facets/internal/orchestration"
	"github.com/imamik/facets/internal/platform/cloud"
	"github.com/imamik/facets/internal/platform/nodestore"
	"github.com/imamik/facets/internal/provisioning"
	testutil "github.com/imamik/facets/internal/testing"
	"github.com/imamik/facets/internal/topology"
	"github.com/imamik/facets/internal/ui/tui"
	"github.com/imamik/facets/internal/util/netutil"
)

// withFixture swaps the package factories for a fake cloud and an in-memory
// node store. Tests using it must not run in parallel.
func withFixture(t *testing.T, def *config.Definition) (*testutil.InventoryFixture, *bytes.Buffer) {
	t.Helper()
	origLoad := loadDefinition
	origProvider := newProvider
	origNodes := openNodeStore
	origCtx := newProvisioningContext
	origStdout := stdout
	origStdin := stdin
	origOutTTY := stdoutIsTerminal
	origInTTY := stdinIsTerminal
	origTUI := runLaunchTUI
	origProber := newProber
	t.Cleanup(func() {
		loadDefinition = origLoad
		newProvider = origProvider
		openNodeStore = origNodes
		newProvisioningContext = origCtx
		stdout = origStdout
		stdin = origStdin
		stdoutIsTerminal = origOutTTY
		stdinIsTerminal = origInTTY
		runLaunchTUI = origTUI
		newProber = origProber
	})

	fixture := testutil.NewInventoryFixture()
	var out bytes.Buffer

	loadDefinition = func(string) (*config.Definition, error) { return def, nil }
	newProvider = func(context.Context, string) (cloud.Provider, error) { return fixture.Provider, nil }
	openNodeStore = func(context.Context, NodeStoreSpec) (nodestore.Store, func() error, error) {
		return fixture.Nodes, func() error { return nil }, nil
	}
	newProvisioningContext = func(ctx context.Context) *provisioning.Context {
		pctx, _ := testutil.NewProvisioningContext(t)
		return pctx.WithContext(ctx)
	}
	stdout = &out
	stdin = strings.NewReader("")
	stdoutIsTerminal = func() bool { return false }
	stdinIsTerminal = func() bool { return false }
	return fixture, &out
}

func webDefinition() *config.Definition {
	return testutil.NewDefinitionBuilder("gibbon").WithFacet("web", 2).Build()
}

func TestShow(t *testing.T) {
	fixture, out := withFixture(t, webDefinition())
	fixture.RunningServer("gibbon", "web", 0)

	err := Show(context.Background(), "gibbon", Options{})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "gibbon-web-0")
	assert.Contains(t, out.String(), "running")
	assert.Contains(t, out.String(), "gibbon-web-1")
	assert.Contains(t, out.String(), "launchable")
	assert.Zero(t, fixture.Provider.MutationCalls())
}

func TestShow_WritesMetrics(t *testing.T) {
	withFixture(t, webDefinition())
	path := filepath.Join(t.TempDir(), "facets.prom")

	err := Show(context.Background(), "gibbon-web", Options{MetricsTextfile: path})
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestShow_InvalidTarget(t *testing.T) {
	withFixture(t, webDefinition())

	err := Show(context.Background(), "other-web", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong to cluster")

	err = Show(context.Background(), "gibbon-web-9", Options{})
	assert.ErrorIs(t, err, topology.ErrEmptySelection)
}

func TestLaunch_NothingToLaunch(t *testing.T) {
	fixture, out := withFixture(t, webDefinition())
	fixture.RunningServers("gibbon", "web", 2)

	err := Launch(context.Background(), "gibbon", LaunchOptions{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "All servers are running -- not launching any.")
	assert.Zero(t, fixture.Provider.Calls(cloud.OpCreateInstance))
}

func TestLaunch_BogusExitsWithTwo(t *testing.T) {
	fixture, out := withFixture(t, webDefinition())
	fixture.RunningServers("gibbon", "web", 2)
	fixture.RunningServer("gibbon", "web", 7)

	err := Launch(context.Background(), "gibbon", LaunchOptions{})
	require.ErrorIs(t, err, orchestration.ErrBogusServers)
	assert.Equal(t, ExitBogus, ExitCode(err))
	assert.Contains(t, out.String(), "Bogus servers detected: [gibbon-web-7]")
}

func TestLaunch_ProbesSSHPort(t *testing.T) {
	fixture, _ := withFixture(t, webDefinition())

	var mu sync.Mutex
	var dialed []string
	newProber = func() *netutil.Prober {
		p := netutil.NewProber()
		p.Dial = func(_ context.Context, _, address string) (net.Conn, error) {
			mu.Lock()
			dialed = append(dialed, address)
			mu.Unlock()
			client, server := net.Pipe()
			go func() {
				_, _ = server.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
				_ = server.Close()
			}()
			return client, nil
		}
		return p
	}

	err := Launch(context.Background(), "gibbon", LaunchOptions{SSHPort: 2222})
	require.NoError(t, err)

	assert.Equal(t, 2, fixture.Provider.Calls(cloud.OpCreateInstance))
	require.Len(t, dialed, 2)
	for _, address := range dialed {
		_, port, err := net.SplitHostPort(address)
		require.NoError(t, err)
		assert.Equal(t, "2222", port)
	}
}

func TestLaunch_DryRun(t *testing.T) {
	fixture, out := withFixture(t, webDefinition())

	err := Launch(context.Background(), "gibbon", LaunchOptions{Options: Options{DryRun: true}})
	require.NoError(t, err)

	assert.Zero(t, fixture.Provider.MutationCalls())
	assert.Contains(t, out.String(), "gibbon-web-1")
	assert.Contains(t, out.String(), "Result")
	nodes, err := fixture.Nodes.ListNodes(context.Background(), "gibbon")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestLaunch_BootstrapRequiresKey(t *testing.T) {
	fixture, _ := withFixture(t, webDefinition())

	err := Launch(context.Background(), "gibbon", LaunchOptions{Bootstrap: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--ssh-key")
	assert.Zero(t, fixture.Provider.Calls(cloud.OpCreateInstance))
}

func TestLaunch_Terminal(t *testing.T) {
	fixture, out := withFixture(t, webDefinition())
	stdoutIsTerminal = func() bool { return true }

	var (
		mu    sync.Mutex
		steps []orchestration.Step
	)
	runLaunchTUI = func(ctx context.Context, cluster string, bootstrap bool, launchFn tui.LaunchFunc, _ ...tea.ProgramOption) error {
		assert.Equal(t, "gibbon", cluster)
		assert.False(t, bootstrap)
		// Nothing reaches stdout while the dashboard is up.
		assert.Zero(t, out.Len())
		return launchFn(ctx, func(_ string, step orchestration.Step, _ error) {
			mu.Lock()
			defer mu.Unlock()
			steps = append(steps, step)
		})
	}

	err := Launch(context.Background(), "gibbon", LaunchOptions{Options: Options{DryRun: true}})
	require.NoError(t, err)

	assert.Zero(t, fixture.Provider.MutationCalls())
	assert.Contains(t, steps, orchestration.StepCreate)
	assert.Contains(t, steps, orchestration.StepDone)
	assert.Contains(t, out.String(), "gibbon-web-0")
}

func TestKill_Yes(t *testing.T) {
	fixture, _ := withFixture(t, webDefinition())
	instances := fixture.RunningServers("gibbon", "web", 2)
	fixture.Node("gibbon", "web", 0)

	err := Kill(context.Background(), "gibbon", KillOptions{Cloud: true, Node: true, Yes: true})
	require.NoError(t, err)

	for _, inst := range instances {
		assert.Equal(t, cloud.StateTerminated, fixture.Provider.Instance(inst.ID).State)
	}
	node, err := fixture.Nodes.FindNode(context.Background(), "gibbon-web-0")
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestKill_Refused(t *testing.T) {
	fixture, out := withFixture(t, webDefinition())
	fixture.RunningServers("gibbon", "web", 2)
	stdin = strings.NewReader("yes\n")

	err := Kill(context.Background(), "gibbon", KillOptions{Cloud: true, Node: true})
	require.ErrorIs(t, err, orchestration.ErrNotConfirmed)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, out.String(), "delete 2 cloud servers? (Type 'Yes' to confirm)")
	assert.Zero(t, fixture.Provider.Calls(cloud.OpDestroyInstance))
}

func TestKill_LineConfirmed(t *testing.T) {
	fixture, _ := withFixture(t, webDefinition())
	fixture.RunningServers("gibbon", "web", 2)
	stdin = strings.NewReader("Yes\n")

	err := Kill(context.Background(), "gibbon-web-1", KillOptions{Cloud: true})
	require.NoError(t, err)
	assert.Equal(t, 1, fixture.Provider.Calls(cloud.OpDestroyInstance))
}

func TestConfirmer(t *testing.T) {
	origIn, origOut := stdinIsTerminal, stdoutIsTerminal
	t.Cleanup(func() { stdinIsTerminal, stdoutIsTerminal = origIn, origOut })

	stdinIsTerminal = func() bool { return true }
	stdoutIsTerminal = func() bool { return true }
	assert.IsType(t, orchestration.AssumeYes{}, confirmer(true))
	assert.IsType(t, &orchestration.HuhConfirmer{}, confirmer(false))

	stdinIsTerminal = func() bool { return false }
	assert.IsType(t, &orchestration.LineConfirmer{}, confirmer(false))
}

func TestExitCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(orchestration.ErrNotConfirmed))
	assert.Equal(t, ExitBogus, ExitCode(orchestration.ErrBogusServers))
}

func TestProviders(t *testing.T) {
	t.Parallel()
	names := Providers().Names()
	assert.ElementsMatch(t, []string{"hcloud", "ec2", "fake"}, names)

	p, err := Providers().New(context.Background(), "fake")
	require.NoError(t, err)
	assert.Equal(t, "fake", p.Name())

	_, err = Providers().New(context.Background(), "gce")
	assert.Error(t, err)
}
