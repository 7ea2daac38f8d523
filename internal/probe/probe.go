// Package probe polls a liveness check with a fixed attempt budget.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ZebulonRouseFrantzich/cookship/internal/logging"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("liveness probe exhausted")

const (
	// DefaultAttempts is how many times the server is probed.
	DefaultAttempts = 30
	// DefaultDelay is the pause between attempts.
	DefaultDelay = 2 * time.Second
	// requestTimeout bounds a single HTTP probe.
	requestTimeout = 5 * time.Second
)

// Check is one liveness attempt; nil means healthy.
type Check func(ctx context.Context) error

// Policy bounds polling.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy returns 30 attempts two seconds apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultAttempts, Delay: DefaultDelay}
}

// Poller runs a Check under a Policy.
type Poller struct {
	policy Policy
	clock  Clock
	logger logging.Logger
}

// NewPoller creates a poller. A nil clock uses RealClock.
func NewPoller(policy Policy, clock Clock, logger logging.Logger) *Poller {
	if clock == nil {
		clock = RealClock{}
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Poller{
		policy: policy,
		clock:  clock,
		logger: logging.OrNop(logger),
	}
}

// Poll calls check until it succeeds or MaxAttempts calls have failed, and
// returns the number of attempts made. There is no delay after the final
// attempt. On exhaustion the error wraps ErrExhausted and the last check
// error.
func (p *Poller) Poll(ctx context.Context, check Check) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		lastErr = check(ctx)
		if lastErr == nil {
			p.logger.Debug("probe succeeded", "attempt", attempt)
			return attempt, nil
		}
		p.logger.Debug("probe failed", "attempt", attempt, "max", p.policy.MaxAttempts, "error", lastErr)

		if attempt == p.policy.MaxAttempts {
			break
		}
		if err := p.clock.Sleep(ctx, p.policy.Delay); err != nil {
			return attempt, fmt.Errorf("probe interrupted: %w", err)
		}
	}
	return p.policy.MaxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.policy.MaxAttempts, lastErr)
}

// HTTPCheck returns a Check issuing GET url. Any 2xx or 3xx status is
// healthy; redirects are reported, not followed.
func HTTPCheck(client *http.Client, url string) Check {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	noRedirect := *client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := noRedirect.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 399 {
			return fmt.Errorf("unhealthy status %d", resp.StatusCode)
		}
		return nil
	}
}
