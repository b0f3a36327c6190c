package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"

	"github.com/imamik/facets/internal/config"
	"github.com/imamik/facets/internal/settings"
	"github.com/imamik/facets/internal/topology"
)

// generateTestKey returns a PEM-encoded ed25519 private key.
func generateTestKey(t *testing.T) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := gossh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	return pem.EncodeToMemory(block)
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()
	key := generateTestKey(t)

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "nil config", cfg: nil, wantErr: "config cannot be nil"},
		{name: "empty host", cfg: &Config{User: "root", PrivateKey: key}, wantErr: "config host cannot be empty"},
		{name: "empty user", cfg: &Config{Host: "10.0.0.1", PrivateKey: key}, wantErr: "config user cannot be empty"},
		{name: "empty key", cfg: &Config{Host: "10.0.0.1", User: "root"}, wantErr: "config private key cannot be empty"},
		{name: "invalid key", cfg: &Config{Host: "10.0.0.1", User: "root", PrivateKey: []byte("invalid key")}, wantErr: "failed to parse private key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewClient(tt.cfg)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestClient_AppliesDefaults(t *testing.T) {
	t.Parallel()
	key := generateTestKey(t)

	tests := []struct {
		name            string
		cfg             *Config
		wantPort        int
		wantDialTimeout time.Duration
		wantMaxRetries  int
		wantRetryDelay  time.Duration
	}{
		{
			name:            "zero values get defaults",
			cfg:             &Config{Host: "10.0.0.1", User: "root", PrivateKey: key},
			wantPort:        defaultPort,
			wantDialTimeout: defaultDialTimeout,
			wantMaxRetries:  defaultMaxRetries,
			wantRetryDelay:  defaultRetryDelay,
		},
		{
			name: "custom values are preserved",
			cfg: &Config{
				Host:        "10.0.0.1",
				Port:        2222,
				User:        "ubuntu",
				PrivateKey:  key,
				DialTimeout: 5 * time.Second,
				MaxRetries:  10,
				RetryDelay:  time.Second,
			},
			wantPort:        2222,
			wantDialTimeout: 5 * time.Second,
			wantMaxRetries:  10,
			wantRetryDelay:  time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			original := *tt.cfg

			client, err := NewClient(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, client.signer)
			assert.Equal(t, tt.wantPort, client.config.Port)
			assert.Equal(t, tt.wantDialTimeout, client.config.DialTimeout)
			assert.Equal(t, tt.wantMaxRetries, client.config.MaxRetries)
			assert.Equal(t, tt.wantRetryDelay, client.config.RetryDelay)

			assert.Equal(t, original.Port, tt.cfg.Port, "caller's config is not mutated")
			assert.Nil(t, tt.cfg.HostKeyCallback)
		})
	}
}

func TestClient_Addr(t *testing.T) {
	t.Parallel()
	client, err := NewClient(&Config{Host: "fd00::1", Port: 2222, User: "root", PrivateKey: generateTestKey(t)})
	require.NoError(t, err)
	assert.Equal(t, "[fd00::1]:2222", client.Addr())
}

func TestExecute_ContextCancellation(t *testing.T) {
	t.Parallel()
	client, err := NewClient(&Config{
		Host:       "192.0.2.1",
		User:       "root",
		PrivateKey: generateTestKey(t),
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Execute(ctx, "echo test")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeRunner struct {
	commands []string
	output   string
	err      error
}

func (f *fakeRunner) Execute(_ context.Context, command string) (string, error) {
	f.commands = append(f.commands, command)
	return f.output, f.err
}

func bootstrapServer() *topology.Server {
	return &topology.Server{ClusterName: "gibbon", FacetName: "web", Index: 0}
}

func TestBootstrapper_Bootstrap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		settings    config.Settings
		wantUser    string
		wantCommand string
	}{
		{name: "defaults", wantUser: "root", wantCommand: DefaultCommand},
		{
			name:        "server overrides",
			settings:    config.Settings{SSHUser: "ubuntu", BootstrapCommand: "sudo /opt/bootstrap.sh"},
			wantUser:    "ubuntu",
			wantCommand: "sudo /opt/bootstrap.sh",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			runner := &fakeRunner{output: "Starting run\nRun complete\n"}
			var got *Config

			b := NewBootstrapper("root", 2222, []byte("key"), nil)
			b.Connect = func(cfg *Config) (Runner, error) {
				got = cfg
				return runner, nil
			}

			s := bootstrapServer()
			s.Settings = tt.settings
			require.NoError(t, b.Bootstrap(context.Background(), "203.0.113.4", s))

			require.NotNil(t, got)
			assert.Equal(t, "203.0.113.4", got.Host)
			assert.Equal(t, 2222, got.Port)
			assert.Equal(t, tt.wantUser, got.User)
			assert.Equal(t, []string{tt.wantCommand}, runner.commands)
		})
	}
}

func TestBootstrapper_ResolvedSettings(t *testing.T) {
	t.Parallel()

	cluster, err := topology.Build(&config.Definition{
		Name:   "gibbon",
		Facets: []config.FacetSpec{{Name: "web", Instances: 1}},
	}, nil)
	require.NoError(t, err)
	facet := cluster.Facet("web")
	server := facet.Servers[0]
	server.Settings, err = settings.NewResolver(nil).Resolve(cluster, facet, server)
	require.NoError(t, err)

	var got *Config
	b := NewBootstrapper("ubuntu", 22, []byte("key"), nil)
	b.Connect = func(cfg *Config) (Runner, error) {
		got = cfg
		return &fakeRunner{}, nil
	}
	require.NoError(t, b.Bootstrap(context.Background(), "203.0.113.4", server))

	require.NotNil(t, got)
	assert.Equal(t, "ubuntu", got.User)
}

func TestBootstrapper_Errors(t *testing.T) {
	t.Parallel()

	b := NewBootstrapper("root", 22, nil, nil)
	b.Connect = func(*Config) (Runner, error) { return nil, errors.New("no route to host") }
	err := b.Bootstrap(context.Background(), "10.0.0.1", bootstrapServer())
	assert.ErrorContains(t, err, "failed to connect to gibbon-web-0: no route to host")

	b.Connect = func(*Config) (Runner, error) { return &fakeRunner{err: errors.New("exit status 1")}, nil }
	err = b.Bootstrap(context.Background(), "10.0.0.1", bootstrapServer())
	assert.ErrorContains(t, err, "failed to bootstrap gibbon-web-0: exit status 1")
}

func TestLoadKey(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "id_rsa")
	require.NoError(t, os.WriteFile(path, []byte("PRIVATE"), 0o600))

	data, err := LoadKey(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("PRIVATE"), data)

	_, err = LoadKey(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "failed to read SSH key")
}

func TestLastLine(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Run complete", lastLine("Starting run\nRun complete\n"))
	assert.Equal(t, "ok", lastLine("ok"))
	assert.Equal(t, "done", lastLine(""))
}
