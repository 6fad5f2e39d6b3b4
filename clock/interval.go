package clock

import (
	"context"
	"time"
)

// phase says what the next produce step has to do with the
// underlying timer.
type phase int

const (
	// phaseDelaying: the next deadline still has to be computed,
	// period measured from now.
	phaseDelaying phase = iota
	// phaseAwaiting: the deadline is already armed, just wait for it.
	phaseAwaiting
)

// Interval is a delay-after-work recurring timer: the next tick is
// scheduled one period after the consumer *asks* for it, not one
// period after the previous tick was due. If the consumer's work
// overruns the period (say a poll against a dead upstream blocks for
// 10s on a 3s period), ticks simply shift later. There is never a
// backlog of overdue ticks firing back-to-back the moment the
// consumer catches up, which is exactly the thundering-herd failure
// mode a plain time.Ticker exhibits.
//
// An Interval is driven by a single goroutine calling Next repeatedly.
// It is not safe for concurrent use and has no reset operation.
type Interval struct {
	clock  Clock
	timer  Timer
	period time.Duration
	phase  phase
}

// NewIntervalAt returns an Interval whose first tick is due at the
// given instant, with every later tick one period after the previous
// Next call.
//
// It panics if period is not strictly positive: that is a programmer
// error, not a runtime condition.
func NewIntervalAt(cl Clock, at time.Time, period time.Duration) *Interval {
	if period <= 0 {
		panic("clock: Interval period must be positive")
	}
	return &Interval{
		clock:  cl,
		timer:  cl.NewTimer(at),
		period: period,
		// construction armed the first deadline, which is the
		// delaying step of the first cycle already done
		phase: phaseAwaiting,
	}
}

// NewInterval is shorthand for NewIntervalAt(cl, cl.Now().Add(period), period):
// the first tick is due one full period from now, not immediately.
func NewInterval(cl Clock, period time.Duration) *Interval {
	return NewIntervalAt(cl, cl.Now().Add(period), period)
}

// Next blocks until the next tick is due and returns the instant the
// tick was nominally due (the armed deadline, not wall-clock now).
// Successive values are strictly increasing and exactly one
// suspend-and-resume on the underlying timer happens per value.
//
// If the timer fails, the error is returned verbatim, no value is
// produced, and the phase is left as already flipped for this step.
func (iv *Interval) Next(ctx context.Context) (time.Time, error) {
	if iv.phase == phaseDelaying {
		iv.timer.Reset(iv.clock.Now().Add(iv.period))
	}
	due := iv.timer.Deadline()
	// waiting immediately follows arming within one call, so the armed
	// state never outlives it: after every call a re-arm is due again
	iv.phase = phaseDelaying
	if err := iv.timer.Wait(ctx); err != nil {
		return time.Time{}, err
	}
	return due, nil
}

// Period returns the nominal gap between ticks.
func (iv *Interval) Period() time.Duration {
	return iv.period
}

// Stop releases the underlying timer. The Interval must not be used
// afterwards.
func (iv *Interval) Stop() {
	iv.timer.Stop()
}
