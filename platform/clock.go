// Package platform defines the host collaborator a session engine needs for
// timing: a monotonic millisecond clock and a cancelable sleep used as the
// cooperative yield point at every suspension point in the state machine.
package platform

import (
	"context"
	"time"

	"go.viam.com/utils"
)

// Clock is implemented by the host. Sleep is expected to return promptly
// when ctx is canceled, so a caller can abort a session-engine wait (e.g. on
// process shutdown) instead of blocking out a full RX window.
type Clock interface {
	// Millis returns a monotonically increasing millisecond counter. Wraps
	// are the caller's concern; the session engine only ever compares two
	// nearby readings.
	Millis() uint32
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is a Clock backed by the host's wall clock. It is the
// reference implementation used by the CLI demonstrator and by tests that
// don't need to control time explicitly.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a SystemClock whose Millis() counts up from zero
// at the moment of construction.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Millis implements Clock.
func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// Sleep implements Clock using the same cancelable wait the teacher module
// uses to hold off sending a join-accept until the RX2 window opens.
func (c *SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if !utils.SelectContextOrWait(ctx, d) {
		return ctx.Err()
	}
	return nil
}
