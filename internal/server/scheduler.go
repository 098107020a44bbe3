package server

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// broadcastScheduler merges the engine's two timed actions into one
// wake deadline: the one-shot ride-start gate and, once the ride is
// active, the recurring leaderboard broadcast. The event loop blocks
// until the next socket event or this deadline, whichever comes first.
type broadcastScheduler struct {
	clock  clockwork.Clock
	start  time.Time     // zero means the ride starts immediately
	period time.Duration // leaderboard broadcast period

	rideActive    bool
	lastBroadcast time.Time
}

func newBroadcastScheduler(clock clockwork.Clock, start time.Time, period time.Duration) *broadcastScheduler {
	return &broadcastScheduler{
		clock:  clock,
		start:  start,
		period: period,
	}
}

func (bs *broadcastScheduler) RideActive() bool {
	return bs.rideActive
}

// NextWait is the time remaining until the next scheduled action:
// the start gate while the ride is pending, the next broadcast once it
// is active. Never negative.
func (bs *broadcastScheduler) NextWait() time.Duration {
	var deadline time.Time
	if !bs.rideActive {
		deadline = bs.start
	} else {
		deadline = bs.lastBroadcast.Add(bs.period)
	}

	wait := deadline.Sub(bs.clock.Now())
	if wait < 0 {
		wait = 0
	}
	return wait
}

// StartDue reports whether the pending ride should start now.
func (bs *broadcastScheduler) StartDue() bool {
	return !bs.rideActive && !bs.clock.Now().Before(bs.start)
}

// ActivateRide flips the ride active and starts the broadcast period
// from now.
func (bs *broadcastScheduler) ActivateRide() {
	bs.rideActive = true
	bs.lastBroadcast = bs.clock.Now()
}

// BroadcastDue reports whether a full period has elapsed since the last
// broadcast cycle.
func (bs *broadcastScheduler) BroadcastDue() bool {
	return bs.rideActive && bs.clock.Now().Sub(bs.lastBroadcast) >= bs.period
}

// MarkBroadcast resets the period baseline to now, not to
// baseline+period: drift under overload accumulates as consistent
// lateness rather than a burst of catch-up cycles.
func (bs *broadcastScheduler) MarkBroadcast() {
	bs.lastBroadcast = bs.clock.Now()
}
