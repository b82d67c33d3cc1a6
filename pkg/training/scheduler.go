// Package training implements the timed mood-matching mini-game: a
// continuous detection loop over live camera frames driving a
// ten-challenge, thirty-second session.
package training

import "time"

// Scheduler decides when the next detection tick runs. It decouples
// "when to re-run" from "what running means" so tests can drive the
// loop deterministically.
type Scheduler interface {
	// Schedule arranges for fn to run once, later, on its own
	// goroutine. The returned cancel drops the pending run if it
	// has not started yet.
	Schedule(fn func()) (cancel func())
}

// IntervalScheduler schedules ticks after a fixed delay. This is the
// engine's stand-in for the browser's animation-frame callback; the
// effective detection rate is still throttled by model latency
// because the loop only reschedules after a verification completes.
type IntervalScheduler struct {
	Interval time.Duration
}

// Schedule implements Scheduler.
func (s IntervalScheduler) Schedule(fn func()) func() {
	t := time.AfterFunc(s.Interval, fn)
	return func() { t.Stop() }
}
