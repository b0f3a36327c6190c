package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimeouts_Defaults(t *testing.T) {
	for _, env := range []string{
		"FACETS_TIMEOUT_SERVER_CREATE", "FACETS_TIMEOUT_SERVER_READY", "FACETS_TIMEOUT_DELETE",
		"FACETS_TIMEOUT_PROBE", "FACETS_PROBE_INITIAL_DELAY", "FACETS_PROBE_ATTEMPT",
		"FACETS_PROBE_REFUSED_DELAY", "FACETS_RETRY_MAX_ATTEMPTS", "FACETS_RETRY_INITIAL_DELAY",
	} {
		t.Setenv(env, "")
	}

	timeouts := LoadTimeouts()

	assert.Equal(t, 10*time.Minute, timeouts.ServerCreate)
	assert.Equal(t, 10*time.Minute, timeouts.ServerReady)
	assert.Equal(t, 5*time.Minute, timeouts.Delete)
	assert.Zero(t, timeouts.Probe)
	assert.Equal(t, 10*time.Second, timeouts.ProbeInitialDelay)
	assert.Equal(t, 5*time.Second, timeouts.ProbeAttempt)
	assert.Equal(t, 2*time.Second, timeouts.ProbeRefusedDelay)
	assert.Equal(t, 5, timeouts.RetryMaxAttempts)
	assert.Equal(t, time.Second, timeouts.RetryInitialDelay)
}

func TestLoadTimeouts_FromEnv(t *testing.T) {
	t.Setenv("FACETS_TIMEOUT_PROBE", "90s")
	t.Setenv("FACETS_PROBE_INITIAL_DELAY", "0s")
	t.Setenv("FACETS_RETRY_MAX_ATTEMPTS", "9")

	timeouts := LoadTimeouts()

	assert.Equal(t, 90*time.Second, timeouts.Probe)
	assert.Zero(t, timeouts.ProbeInitialDelay)
	assert.Equal(t, 9, timeouts.RetryMaxAttempts)
}

func TestLoadTimeouts_InvalidFallsBack(t *testing.T) {
	t.Setenv("FACETS_TIMEOUT_DELETE", "soon")
	t.Setenv("FACETS_TIMEOUT_PROBE", "-5s")
	t.Setenv("FACETS_RETRY_MAX_ATTEMPTS", "many")

	timeouts := LoadTimeouts()

	assert.Equal(t, 5*time.Minute, timeouts.Delete)
	assert.Zero(t, timeouts.Probe)
	assert.Equal(t, 5, timeouts.RetryMaxAttempts)
}
