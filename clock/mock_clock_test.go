package clock

import (
	"context"
	"time"
)

// mockClock is a fake wall clock for deterministic interval tests.
// Timers made from it don't sleep: waiting on one jumps the fake
// clock forward to the deadline, so a whole schedule can be driven
// synchronously from a single test goroutine.
type mockClock struct {
	now    time.Time
	timers []*mockTimer
}

func newMockClock(t time.Time) *mockClock {
	return &mockClock{now: t}
}

func (m *mockClock) Now() time.Time {
	return m.now
}

// Advance moves the fake clock, simulating time the consumer spent
// working between ticks.
func (m *mockClock) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

func (m *mockClock) NewTimer(at time.Time) Timer {
	mt := &mockTimer{clk: m, deadline: at}
	m.timers = append(m.timers, mt)
	return mt
}

type mockTimer struct {
	clk      *mockClock
	deadline time.Time
	stopped  bool
	waitErr  error
}

// failNext makes the next Wait fail with err, simulating a timer
// driver fault.
func (mt *mockTimer) failNext(err error) {
	mt.waitErr = err
}

func (mt *mockTimer) Deadline() time.Time {
	return mt.deadline
}

func (mt *mockTimer) Reset(at time.Time) {
	mt.deadline = at
}

func (mt *mockTimer) Wait(ctx context.Context) error {
	if mt.waitErr != nil {
		err := mt.waitErr
		mt.waitErr = nil
		return err
	}
	if mt.clk.now.Before(mt.deadline) {
		mt.clk.now = mt.deadline
	}
	return nil
}

func (mt *mockTimer) Stop() {
	mt.stopped = true
}
