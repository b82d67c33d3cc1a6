package training

import (
	"context"
	"log/slog"
	"sync"

	"github.com/moodfi/vibecheck/pkg/emotion"
	"github.com/moodfi/vibecheck/pkg/verify"
)

// MatchThreshold is the minimum match score (percent) for a frame to
// count as a training-mode match, on top of the dominant emotion
// equaling the target.
const MatchThreshold = 70

// LoopState describes where the detection loop is in its cycle.
type LoopState int

const (
	// LoopIdle means the loop is waiting for its next scheduled tick.
	LoopIdle LoopState = iota
	// LoopDetecting means a verification is in flight.
	LoopDetecting
	// LoopMatched means the target was hit; the loop stops scheduling
	// until the caller resumes it for the next challenge.
	LoopMatched
	// LoopStopped means the loop was shut down.
	LoopStopped
)

func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "idle"
	case LoopDetecting:
		return "detecting"
	case LoopMatched:
		return "matched"
	default:
		return "stopped"
	}
}

// Verifier is the single-shot verification dependency of the loop.
type Verifier interface {
	Verify(ctx context.Context, frame []byte, target emotion.Label) verify.Result
}

// FrameSource supplies live frames, one JPEG per call.
type FrameSource interface {
	CaptureJPEG() ([]byte, error)
}

// Update is emitted on every completed verification, match or not.
// It is what drives the "currently detected emotion" display.
type Update struct {
	FaceDetected      bool           `json:"face_detected"`
	Emotion           emotion.Label  `json:"emotion,omitempty"`
	Scores            emotion.Scores `json:"scores,omitempty"`
	Confidence        int            `json:"confidence"`
	MatchScorePercent int            `json:"match_score_percent"`
	Target            emotion.Label  `json:"target"`
}

// Match is emitted once when the current target is hit. Frame is the
// still image captured at match time.
type Match struct {
	Emotion           emotion.Label `json:"emotion"`
	MatchScorePercent int           `json:"match_score_percent"`
	Frame             []byte        `json:"-"`
}

// Loop repeatedly verifies live frames against a target emotion
// until a match is found or it is stopped. At most one verification
// is in flight at a time; per-frame failures are logged and treated
// as non-matches so a single bad frame never halts training.
//
// Set OnUpdate and OnMatch before calling Start. Both callbacks run
// on the loop's tick goroutine without internal locks held.
type Loop struct {
	verifier Verifier
	frames   FrameSource
	sched    Scheduler
	logger   *slog.Logger

	// OnUpdate fires after every completed verification.
	OnUpdate func(Update)
	// OnMatch fires once per matched target.
	OnMatch func(Match)

	mu         sync.Mutex
	state      LoopState
	target     emotion.Label
	inFlight   bool
	cancelTick func()
	gen        int // Bumped on Start/Resume/Stop; stale ticks check it
	ctx        context.Context
}

// NewLoop creates a detection loop.
func NewLoop(verifier Verifier, frames FrameSource, sched Scheduler) *Loop {
	return &Loop{
		verifier: verifier,
		frames:   frames,
		sched:    sched,
		logger:   slog.Default().With("component", "training.loop"),
		state:    LoopStopped,
	}
}

// SetLogger replaces the loop's logger. Call before Start.
func (l *Loop) SetLogger(logger *slog.Logger) {
	l.logger = logger.With("component", "training.loop")
}

// Start begins detecting against target. A running loop is restarted.
func (l *Loop) Start(ctx context.Context, target emotion.Label) {
	l.mu.Lock()
	l.stopLocked()
	l.ctx = ctx
	l.target = target
	l.state = LoopIdle
	l.gen++
	gen := l.gen
	l.cancelTick = l.sched.Schedule(func() { l.tick(gen) })
	l.mu.Unlock()
}

// Resume continues the loop after a match, against a new target.
// It is a no-op if the loop was stopped in the meantime.
func (l *Loop) Resume(target emotion.Label) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != LoopMatched {
		return
	}
	l.target = target
	l.state = LoopIdle
	l.gen++
	gen := l.gen
	l.cancelTick = l.sched.Schedule(func() { l.tick(gen) })
}

// Stop shuts the loop down. Any pending tick is cancelled and any
// in-flight verification result is discarded.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *Loop) stopLocked() {
	if l.cancelTick != nil {
		l.cancelTick()
		l.cancelTick = nil
	}
	l.state = LoopStopped
	l.gen++
}

// State returns the loop's current state.
func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Target returns the emotion the loop is currently hunting.
func (l *Loop) Target() emotion.Label {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target
}

// tick runs one capture-verify cycle. It only reschedules itself
// after the verification completes, which bounds the loop to one
// in-flight call regardless of scheduler cadence.
func (l *Loop) tick(gen int) {
	l.mu.Lock()
	if l.gen != gen || l.state != LoopIdle {
		l.mu.Unlock()
		return
	}
	if l.inFlight {
		// A verification from a superseded run has not returned yet;
		// its finish will fail the generation check and never
		// reschedule. Try again so the new run keeps ticking.
		l.cancelTick = l.sched.Schedule(func() { l.tick(gen) })
		l.mu.Unlock()
		return
	}
	l.inFlight = true
	l.state = LoopDetecting
	l.cancelTick = nil
	target := l.target
	ctx := l.ctx
	l.mu.Unlock()

	frame, err := l.frames.CaptureJPEG()
	if err != nil {
		l.logger.Warn("frame capture failed", "error", err)
		l.finish(gen, nil, verify.Result{}, false)
		return
	}

	res := l.verifier.Verify(ctx, frame, target)

	matched := res.IsFaceDetected &&
		res.VibeCheck != nil &&
		emotion.Equal(res.DominantEmotion, target) &&
		res.VibeCheck.MatchScorePercent > MatchThreshold

	l.finish(gen, frame, res, matched)
}

// finish records the outcome of a tick, emits events, and schedules
// the next tick unless the loop matched or was stopped mid-flight.
func (l *Loop) finish(gen int, frame []byte, res verify.Result, matched bool) {
	l.mu.Lock()
	l.inFlight = false
	if l.gen != gen || l.state != LoopDetecting {
		// Stopped (or restarted) while the verification was in
		// flight; the session no longer wants this result.
		l.mu.Unlock()
		return
	}

	target := l.target
	if matched {
		l.state = LoopMatched
	} else {
		l.state = LoopIdle
		l.cancelTick = l.sched.Schedule(func() { l.tick(gen) })
	}
	onUpdate := l.OnUpdate
	onMatch := l.OnMatch
	l.mu.Unlock()

	if onUpdate != nil && frame != nil {
		u := Update{
			FaceDetected: res.IsFaceDetected,
			Emotion:      res.DominantEmotion,
			Scores:       res.EmotionScores,
			Confidence:   res.OverallConfidence,
			Target:       target,
		}
		if res.VibeCheck != nil {
			u.MatchScorePercent = res.VibeCheck.MatchScorePercent
		}
		onUpdate(u)
	}

	if matched {
		l.logger.Info("target matched",
			"target", target,
			"score", res.VibeCheck.MatchScorePercent,
		)
		if onMatch != nil {
			onMatch(Match{
				Emotion:           res.DominantEmotion,
				MatchScorePercent: res.VibeCheck.MatchScorePercent,
				Frame:             frame,
			})
		}
	}
}
