package hcloud

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/facets/internal/config"
	"github.com/imamik/facets/internal/platform/cloud"
)

// ProviderName is the name the provider registers under.
const ProviderName = "hcloud"

// TokenEnv holds the API token read by NewFromEnv.
const TokenEnv = "HCLOUD_TOKEN"

// Provider implements cloud.Provider using the Hetzner Cloud API.
type Provider struct {
	client   *hcloud.Client
	timeouts *config.Timeouts
}

var (
	_ cloud.Provider      = (*Provider)(nil)
	_ cloud.TagNormalizer = (*Provider)(nil)
)

// ClientOption configures a Provider.
type ClientOption func(*Provider)

// WithTimeouts sets custom timeouts for the provider.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(p *Provider) {
		p.timeouts = t
	}
}

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(p *Provider) {
		p.client = hc
	}
}

// NewProvider creates a Provider authenticated with token.
func NewProvider(token string, opts ...ClientOption) *Provider {
	p := &Provider{
		client:   hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("facets", "")),
		timeouts: config.LoadTimeouts(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromEnv is a cloud.Factory reading the token from HCLOUD_TOKEN.
func NewFromEnv(_ context.Context) (cloud.Provider, error) {
	token := os.Getenv(TokenEnv)
	if token == "" {
		return nil, errors.New(TokenEnv + " is not set")
	}
	return NewProvider(token), nil
}

// Name implements cloud.Provider.
func (p *Provider) Name() string { return ProviderName }

func parseID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q: %w", kind, id, cloud.ErrNotFound)
	}
	return n, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
