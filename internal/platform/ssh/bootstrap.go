package ssh

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/imamik/facets/internal/provisioning"
	"github.com/imamik/facets/internal/topology"
)

// DefaultCommand runs one configuration-management pass with the run-list
// written to the node at launch.
const DefaultCommand = "sudo chef-client --once"

// Runner executes a remote command.
type Runner interface {
	Execute(ctx context.Context, command string) (string, error)
}

// Bootstrapper runs the bootstrap command on launched servers.
type Bootstrapper struct {
	User       string
	Port       int
	PrivateKey []byte
	Observer   provisioning.Observer

	// Connect builds the runner for one host. Defaults to NewClient.
	Connect func(cfg *Config) (Runner, error)
}

// NewBootstrapper creates a bootstrapper that authenticates with privateKey.
func NewBootstrapper(user string, port int, privateKey []byte, observer provisioning.Observer) *Bootstrapper {
	return &Bootstrapper{
		User:       user,
		Port:       port,
		PrivateKey: privateKey,
		Observer:   observer,
		Connect: func(cfg *Config) (Runner, error) {
			return NewClient(cfg)
		},
	}
}

// Bootstrap runs the server's bootstrap command on host. The server's
// ssh_user and bootstrap_command settings override the defaults.
func (b *Bootstrapper) Bootstrap(ctx context.Context, host string, s *topology.Server) error {
	name := s.Fullname()
	user := s.Settings.SSHUser
	if user == "" {
		user = b.User
	}
	command := s.Settings.BootstrapCommand
	if command == "" {
		command = DefaultCommand
	}

	runner, err := b.Connect(&Config{Host: host, Port: b.Port, User: user, PrivateKey: b.PrivateKey})
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", name, err)
	}

	if b.Observer != nil {
		b.Observer.Printf("[bootstrap] %s@%s: %s", user, host, command)
	}
	out, err := runner.Execute(ctx, command)
	if err != nil {
		return fmt.Errorf("failed to bootstrap %s: %w", name, err)
	}
	if b.Observer != nil {
		provisioning.LogResourceUpdated(b.Observer, "bootstrap", "server", name, lastLine(out))
	}
	return nil
}

// LoadKey reads a private key file. A leading ~ expands to the home
// directory.
func LoadKey(path string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, rest)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}
	return data, nil
}

func lastLine(out string) string {
	out = strings.TrimRight(out, "\n")
	if i := strings.LastIndexByte(out, '\n'); i >= 0 {
		return out[i+1:]
	}
	if out == "" {
		return "done"
	}
	return out
}
