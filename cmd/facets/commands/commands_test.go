package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subcommandNames(cmd *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	return names
}

func TestRoot(t *testing.T) {
	t.Parallel()
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "facets", cmd.Use)

	names := subcommandNames(cmd)
	for _, expected := range []string{"cluster", "version", "completion"} {
		assert.True(t, names[expected], "Expected subcommand %s not found", expected)
	}
}

func TestCluster_HasSubcommands(t *testing.T) {
	t.Parallel()
	names := subcommandNames(Cluster())
	for _, expected := range []string{"launch", "kill", "show"} {
		assert.True(t, names[expected], "Expected subcommand %s not found", expected)
	}
}

func TestLaunch_Flags(t *testing.T) {
	t.Parallel()
	cmd := Launch()

	tests := []struct {
		name string
		def  string
	}{
		{"dry-run", "false"},
		{"force", "false"},
		{"bootstrap", "false"},
		{"definition", "facets.yaml"},
		{"settings", ""},
		{"provider", ""},
		{"node-store", "bolt:facets.db"},
		{"ssh-user", "ubuntu"},
		{"ssh-key", ""},
		{"ssh-port", "22"},
		{"probe-timeout", "0s"},
		{"metrics-textfile", ""},
	}
	for _, tt := range tests {
		flag := cmd.Flags().Lookup(tt.name)
		require.NotNil(t, flag, "flag %s", tt.name)
		assert.Equal(t, tt.def, flag.DefValue, "flag %s", tt.name)
	}
	assert.Equal(t, "d", cmd.Flags().Lookup("definition").Shorthand)
}

func TestKill_Flags(t *testing.T) {
	t.Parallel()
	cmd := Kill()

	for name, def := range map[string]string{
		"kill-bogus": "false",
		"cloud":      "true",
		"no-cloud":   "false",
		"chef":       "true",
		"no-chef":    "false",
		"yes":        "false",
		"definition": "facets.yaml",
	} {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, "flag %s", name)
		assert.Equal(t, def, flag.DefValue, "flag %s", name)
	}
}

func TestTargetArg(t *testing.T) {
	t.Parallel()
	cmd := Show()

	require.NoError(t, targetArg(cmd, []string{"gibbon"}))

	err := targetArg(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLUSTER[-FACET[-INDEXES]]")
	assert.Contains(t, err.Error(), "Usage:")

	assert.Error(t, targetArg(cmd, []string{"gibbon", "extra"}))
}

func TestLaunch_MissingTarget(t *testing.T) {
	t.Parallel()
	cmd := Root()
	cmd.SetArgs([]string{"cluster", "launch"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected one target")
}

func TestVersion_Output(t *testing.T) {
	// Mutates package state; not parallel.
	origVersion, origCommit, origDate := version, commit, date
	defer SetVersionInfo(origVersion, origCommit, origDate)

	SetVersionInfo("1.2.3", "abc123", "2024-01-01")

	var out bytes.Buffer
	cmd := Version()
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "facets 1.2.3")
	assert.Contains(t, out.String(), "commit: abc123")
	assert.Contains(t, out.String(), "built:  2024-01-01")
}

func TestCompletion(t *testing.T) {
	t.Parallel()
	cmd := Root()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"completion", "bash"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "facets")
}
