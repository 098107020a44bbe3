package server

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestSchedulerStartGate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now().Add(10 * time.Second)
	sched := newBroadcastScheduler(clock, start, 2*time.Second)

	assert.False(t, sched.RideActive())
	assert.False(t, sched.StartDue())
	assert.Equal(t, 10*time.Second, sched.NextWait())

	clock.Advance(10 * time.Second)
	assert.True(t, sched.StartDue())
	assert.Equal(t, time.Duration(0), sched.NextWait())

	sched.ActivateRide()
	assert.True(t, sched.RideActive())
	assert.False(t, sched.StartDue())
}

func TestSchedulerBroadcastPeriod(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sched := newBroadcastScheduler(clock, time.Time{}, 2*time.Second)
	sched.ActivateRide()

	assert.False(t, sched.BroadcastDue())
	assert.Equal(t, 2*time.Second, sched.NextWait())

	clock.Advance(1 * time.Second)
	assert.False(t, sched.BroadcastDue())
	assert.Equal(t, 1*time.Second, sched.NextWait())

	clock.Advance(1 * time.Second)
	assert.True(t, sched.BroadcastDue())
}

// The baseline resets to "now" after a cycle, not to baseline+period:
// an overrunning cycle shifts the schedule instead of bursting.
func TestSchedulerNoDriftCompensation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sched := newBroadcastScheduler(clock, time.Time{}, 2*time.Second)
	sched.ActivateRide()

	// The cycle fires a full second late.
	clock.Advance(3 * time.Second)
	assert.True(t, sched.BroadcastDue())
	sched.MarkBroadcast()

	// The next cycle is a full period away from now.
	assert.False(t, sched.BroadcastDue())
	assert.Equal(t, 2*time.Second, sched.NextWait())
}

// The wait deadline tracks whichever of the two timers governs the
// current phase of the ride.
func TestSchedulerMergedDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now().Add(5 * time.Second)
	sched := newBroadcastScheduler(clock, start, 2*time.Second)

	// Pending ride: the start gate governs even though it is further
	// away than a broadcast period.
	assert.Equal(t, 5*time.Second, sched.NextWait())

	clock.Advance(5 * time.Second)
	sched.ActivateRide()

	// Active ride: the broadcast period governs.
	assert.Equal(t, 2*time.Second, sched.NextWait())
}

func TestSchedulerImmediateStart(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sched := newBroadcastScheduler(clock, time.Time{}, 2*time.Second)

	// A zero start time is always due.
	assert.True(t, sched.StartDue())
	assert.Equal(t, time.Duration(0), sched.NextWait())
}
