package training

import (
	"context"
	"log/slog"
	"sync"

	"github.com/moodfi/vibecheck/pkg/emotion"
)

// Controller wires the session state machine to the detection loop:
// matches from the loop advance the session, and each new challenge
// restarts the loop against the new target. It also acts as the
// safety net that forces completion if the two ever fall out of sync
// on the challenge bound.
type Controller struct {
	// OnUpdate mirrors the loop's per-verification updates.
	OnUpdate func(Update)
	// OnMatch fires after a match has been applied to the session.
	OnMatch func(Match, Snapshot)
	// OnComplete fires once when the session finishes.
	OnComplete func(Snapshot)

	session *Session
	loop    *Loop
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewController builds a training controller around a verifier, a
// frame source, and a tick scheduler. A nil rng gets a time-seeded
// default.
func NewController(verifier Verifier, frames FrameSource, sched Scheduler, rng Rand) *Controller {
	c := &Controller{
		session: NewSession(rng),
		loop:    NewLoop(verifier, frames, sched),
		logger:  slog.Default().With("component", "training"),
	}
	c.loop.OnUpdate = func(u Update) {
		if cb := c.OnUpdate; cb != nil {
			cb(u)
		}
	}
	c.loop.OnMatch = c.handleMatch
	c.session.OnComplete = c.handleComplete
	return c
}

// SetLogger replaces the controller and loop loggers. Call before Start.
func (c *Controller) SetLogger(logger *slog.Logger) {
	c.logger = logger.With("component", "training")
	c.loop.SetLogger(logger)
}

// Start begins a training session and its detection loop.
// A session already running is restarted.
func (c *Controller) Start(ctx context.Context) Snapshot {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	snap := c.session.Start()
	go c.session.Run(ctx)
	c.loop.Start(ctx, snap.TargetEmotion)

	c.logger.Info("training started",
		"session", snap.ID,
		"target", snap.TargetEmotion,
	)
	return snap
}

// Stop finalizes the session early. Safe to call when idle.
func (c *Controller) Stop() {
	c.session.Stop()
	c.loop.Stop()
}

// Reset returns the controller to NotStarted. Resetting bypasses
// completion, so the clock context is cancelled here too.
func (c *Controller) Reset() {
	c.loop.Stop()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	c.session.Reset()
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	return c.session.Snapshot()
}

// Target returns the current challenge target.
func (c *Controller) Target() emotion.Label {
	return c.session.Target()
}

// handleMatch applies a loop match to the session and, if the
// session is still running, points the loop at the next target.
func (c *Controller) handleMatch(m Match) {
	c.session.NextChallenge(true)
	snap := c.session.Snapshot()

	if snap.Active {
		if snap.ChallengeIndex > TotalChallenges {
			// The loop and session disagree about the bound.
			// Finalize rather than hand out an eleventh challenge.
			c.logger.Error("challenge index exceeded bound, forcing completion",
				"index", snap.ChallengeIndex,
			)
			c.session.Stop()
		} else {
			c.loop.Resume(snap.TargetEmotion)
		}
	}

	if cb := c.OnMatch; cb != nil {
		cb(m, snap)
	}
}

// handleComplete tears down the loop and clock when the session
// finishes, whatever the trigger (tenth match, timeout, stop).
func (c *Controller) handleComplete(snap Snapshot) {
	c.loop.Stop()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	c.logger.Info("training complete",
		"session", snap.ID,
		"score", snap.Score,
		"correct", snap.CorrectCount,
		"bonus", snap.BonusReward,
	)
	if cb := c.OnComplete; cb != nil {
		cb(snap)
	}
}
