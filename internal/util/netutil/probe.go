// Package netutil provides the reachability probe run against freshly
// launched servers before they are synced and bootstrapped.
package netutil

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"syscall"
	"time"
)

const (
	// DefaultPort is the administrative (ssh) port.
	DefaultPort = 22
	// DefaultAttemptTimeout bounds a single connect-and-read-banner attempt.
	DefaultAttemptTimeout = 5 * time.Second
	// DefaultRefusedDelay is the pause after a refused connection.
	DefaultRefusedDelay = 2 * time.Second
)

// Outcome classifies a single probe attempt.
type Outcome string

const (
	OutcomeReachable Outcome = "reachable"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeRefused   Outcome = "refused"
	OutcomeError     Outcome = "error"
)

// Attempt describes one probe attempt, reported through Prober.OnAttempt.
type Attempt struct {
	Address string
	Outcome Outcome
	Banner  string
	Err     error
}

// Prober waits until a host accepts connections on its administrative port
// and sends a banner line.
//
// A timed-out attempt is retried immediately, anything else after
// RefusedDelay. With a zero Deadline the probe retries until ctx is done.
type Prober struct {
	Port           int
	AttemptTimeout time.Duration
	RefusedDelay   time.Duration
	// SettleDelay is slept once after the first successful attempt, giving
	// the daemon a moment before the caller starts using it.
	SettleDelay time.Duration
	// Deadline bounds the whole probe. Zero means no bound.
	Deadline time.Duration

	// Dial overrides the dialer, mainly for tests.
	Dial func(ctx context.Context, network, address string) (net.Conn, error)
	// OnAttempt, if set, is called after every attempt.
	OnAttempt func(Attempt)
}

// NewProber returns a Prober with the default port and timing.
func NewProber() *Prober {
	return &Prober{
		Port:           DefaultPort,
		AttemptTimeout: DefaultAttemptTimeout,
		RefusedDelay:   DefaultRefusedDelay,
	}
}

// Probe blocks until host is reachable, the deadline passes, or ctx is done.
func (p *Prober) Probe(ctx context.Context, host string) error {
	if host == "" {
		return errors.New("probe: no address to probe")
	}
	if p.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Deadline)
		defer cancel()
	}

	port := p.Port
	if port == 0 {
		port = DefaultPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var last Attempt
	for {
		last = p.attempt(ctx, addr)
		if p.OnAttempt != nil {
			p.OnAttempt(last)
		}

		if last.Outcome == OutcomeReachable {
			return sleep(ctx, p.SettleDelay)
		}
		if last.Outcome != OutcomeTimeout {
			if err := sleep(ctx, p.RefusedDelay); err != nil {
				return fmt.Errorf("probe %s: %w", addr, errors.Join(err, last.Err))
			}
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("probe %s: %w", addr, errors.Join(err, last.Err))
		}
	}
}

func (p *Prober) attempt(ctx context.Context, addr string) Attempt {
	timeout := p.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dial := p.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	conn, err := dial(attemptCtx, "tcp", addr)
	if err != nil {
		return Attempt{Address: addr, Outcome: classify(err), Err: err}
	}
	defer func() { _ = conn.Close() }()

	deadline, _ := attemptCtx.Deadline()
	_ = conn.SetReadDeadline(deadline)

	banner, err := bufio.NewReader(conn).ReadString('\n')
	if banner != "" {
		return Attempt{Address: addr, Outcome: OutcomeReachable, Banner: banner}
	}
	if errors.Is(err, io.EOF) {
		return Attempt{Address: addr, Outcome: OutcomeRefused, Err: fmt.Errorf("connection closed before banner: %w", err)}
	}
	return Attempt{Address: addr, Outcome: classify(err), Err: err}
}

func classify(err error) Outcome {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return OutcomeRefused
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeError
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
