package clock

import (
	"context"
	"time"
)

// Timer is a single pending wake-up at a fixed instant.
// It is re-armed in place with Reset rather than reallocated,
// so one timer resource serves an arbitrary number of cycles.
type Timer interface {
	// Deadline returns the instant the timer is currently armed for.
	Deadline() time.Time

	// Reset re-arms the timer for a new instant, cancelling the old
	// deadline.
	Reset(at time.Time)

	// Wait blocks until the deadline elapses. It returns the context's
	// error if the context ends first. Call Wait at most once per arming.
	Wait(ctx context.Context) error

	// Stop releases the timer resource. The timer must not be used
	// afterwards.
	Stop()
}

type sysTimer struct {
	t        *time.Timer
	deadline time.Time
}

func newSysTimer(at time.Time) *sysTimer {
	return &sysTimer{
		t:        time.NewTimer(time.Until(at)),
		deadline: at,
	}
}

func (s *sysTimer) Deadline() time.Time {
	return s.deadline
}

func (s *sysTimer) Reset(at time.Time) {
	// drain a fire that raced with the reset, so the next Wait
	// can't wake up early on a stale tick
	if !s.t.Stop() {
		select {
		case <-s.t.C:
		default:
		}
	}
	s.t.Reset(time.Until(at))
	s.deadline = at
}

func (s *sysTimer) Wait(ctx context.Context) error {
	select {
	case <-s.t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *sysTimer) Stop() {
	s.t.Stop()
}
