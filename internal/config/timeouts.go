package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	ServerCreate      time.Duration // Timeout for a single server creation call
	ServerReady       time.Duration // Timeout for a launched server to report running
	Delete            time.Duration // Timeout for all delete operations
	Probe             time.Duration // Reachability probe deadline, 0 means unbounded
	ProbeInitialDelay time.Duration // Pause before the first probe attempt
	ProbeAttempt      time.Duration // Timeout of a single connect-and-read-banner attempt
	ProbeRefusedDelay time.Duration // Pause after a refused probe attempt
	RetryMaxAttempts  int           // Maximum number of retry attempts
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - FACETS_TIMEOUT_SERVER_CREATE (default: 10m)
//   - FACETS_TIMEOUT_SERVER_READY (default: 10m)
//   - FACETS_TIMEOUT_DELETE (default: 5m)
//   - FACETS_TIMEOUT_PROBE (default: 0, unbounded)
//   - FACETS_PROBE_INITIAL_DELAY (default: 10s)
//   - FACETS_PROBE_ATTEMPT (default: 5s)
//   - FACETS_PROBE_REFUSED_DELAY (default: 2s)
//   - FACETS_RETRY_MAX_ATTEMPTS (default: 5)
//   - FACETS_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		ServerCreate:      parseDuration("FACETS_TIMEOUT_SERVER_CREATE", 10*time.Minute),
		ServerReady:       parseDuration("FACETS_TIMEOUT_SERVER_READY", 10*time.Minute),
		Delete:            parseDuration("FACETS_TIMEOUT_DELETE", 5*time.Minute),
		Probe:             parseDuration("FACETS_TIMEOUT_PROBE", 0),
		ProbeInitialDelay: parseDuration("FACETS_PROBE_INITIAL_DELAY", 10*time.Second),
		ProbeAttempt:      parseDuration("FACETS_PROBE_ATTEMPT", 5*time.Second),
		ProbeRefusedDelay: parseDuration("FACETS_PROBE_REFUSED_DELAY", 2*time.Second),
		RetryMaxAttempts:  parseInt("FACETS_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("FACETS_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// TestTimeouts returns timeouts suitable for tests: short, with no probe delay.
func TestTimeouts() *Timeouts {
	return &Timeouts{
		ServerCreate:      5 * time.Second,
		ServerReady:       5 * time.Second,
		Delete:            5 * time.Second,
		ProbeAttempt:      100 * time.Millisecond,
		ProbeRefusedDelay: 10 * time.Millisecond,
		RetryMaxAttempts:  3,
		RetryInitialDelay: 5 * time.Millisecond,
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
