package probe

import (
	"context"
	"time"
)

// Clock provides time operations. This interface enables deterministic testing.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Sleep waits on a timer so cancellation is observed immediately.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
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

// TestClock implements Clock with a fixed time and records sleeps
// instead of performing them.
type TestClock struct {
	FixedTime time.Time
	Slept     []time.Duration
}

// Now returns the fixed time.
func (t *TestClock) Now() time.Time {
	return t.FixedTime
}

// Sleep records d and returns immediately unless ctx is already done.
func (t *TestClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.Slept = append(t.Slept, d)
	return nil
}
