package clock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalFirstTickAtStartInstant(t *testing.T) {
	t0 := time.Unix(1000, 0)
	mc := newMockClock(t0)
	first := t0.Add(7 * time.Second)

	iv := NewIntervalAt(mc, first, 3*time.Second)
	got, err := iv.Next(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, first, got)
	assert.Equal(t, first, mc.Now())
}

func TestIntervalStartingNowFiresAfterOnePeriod(t *testing.T) {
	t0 := time.Unix(1000, 0)
	mc := newMockClock(t0)

	iv := NewInterval(mc, 3*time.Second)
	got, err := iv.Next(context.Background())

	// one full period after construction, never an immediate tick
	assert.NoError(t, err)
	assert.Equal(t, t0.Add(3*time.Second), got)
}

func TestIntervalPromptConsumerTicksExactlyPeriodApart(t *testing.T) {
	t0 := time.Unix(1000, 0)
	mc := newMockClock(t0)
	period := 3 * time.Second

	iv := NewInterval(mc, period)
	var ticks []time.Time
	for i := 0; i < 5; i++ {
		got, err := iv.Next(context.Background())
		assert.NoError(t, err)
		ticks = append(ticks, got)
	}

	for i := 1; i < len(ticks); i++ {
		assert.True(t, ticks[i].After(ticks[i-1]))
		assert.Equal(t, period, ticks[i].Sub(ticks[i-1]))
	}
}

// A consumer that takes 10s per tick on a 3s period must see ticks
// 13s apart, with no burst of queued-up ticks after each overrun.
func TestIntervalSlowConsumerShiftsScheduleWithoutBurst(t *testing.T) {
	t0 := time.Unix(0, 0)
	mc := newMockClock(t0)
	work := 10 * time.Second

	iv := NewInterval(mc, 3*time.Second)

	got, err := iv.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, t0.Add(3*time.Second), got)

	mc.Advance(work) // now 13s
	got, err = iv.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, t0.Add(16*time.Second), got)

	mc.Advance(work) // now 26s
	got, err = iv.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, t0.Add(29*time.Second), got)
}

func TestIntervalPanicsOnNonPositivePeriod(t *testing.T) {
	mc := newMockClock(time.Unix(0, 0))
	assert.Panics(t, func() { NewIntervalAt(mc, mc.Now(), 0) })
	assert.Panics(t, func() { NewIntervalAt(mc, mc.Now(), -time.Second) })
	assert.Panics(t, func() { NewInterval(mc, 0) })
	assert.Panics(t, func() { NewInterval(mc, -time.Minute) })
}

func TestIntervalPropagatesTimerError(t *testing.T) {
	mc := newMockClock(time.Unix(1000, 0))
	iv := NewInterval(mc, 3*time.Second)

	driverErr := errors.New("timer driver gone")
	mc.timers[0].failNext(driverErr)

	got, err := iv.Next(context.Background())
	assert.Equal(t, driverErr, err)
	assert.True(t, got.IsZero(), "no value may be substituted on failure")

	// the sequence re-arms on the following call rather than replaying
	// the poisoned deadline
	got, err = iv.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, mc.Now(), got)
}

func TestIntervalReusesOneTimer(t *testing.T) {
	mc := newMockClock(time.Unix(0, 0))
	iv := NewInterval(mc, time.Second)

	for i := 0; i < 10; i++ {
		_, err := iv.Next(context.Background())
		assert.NoError(t, err)
	}

	// the underlying timer is re-armed in place, never reallocated
	assert.Equal(t, 1, len(mc.timers))

	iv.Stop()
	assert.True(t, mc.timers[0].stopped)
}

func TestIntervalSystemClock(t *testing.T) {
	period := 10 * time.Millisecond
	iv := NewInterval(System(), period)
	defer iv.Stop()

	start := time.Now()
	var prev time.Time
	for i := 0; i < 3; i++ {
		got, err := iv.Next(context.Background())
		assert.NoError(t, err)
		if i > 0 {
			assert.True(t, got.After(prev))
		}
		prev = got
	}
	assert.True(t, time.Since(start) >= 3*period)
}

func TestIntervalNextHonorsContext(t *testing.T) {
	iv := NewInterval(System(), time.Hour)
	defer iv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := iv.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
