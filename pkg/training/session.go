package training

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moodfi/vibecheck/pkg/emotion"
	"github.com/moodfi/vibecheck/pkg/reward"
)

// Session parameters.
const (
	// TotalChallenges is the number of target matches in one session.
	TotalChallenges = 10
	// TimeBudgetSeconds is the session clock.
	TimeBudgetSeconds = 30
	// PointsPerMatch is the score awarded per correct match.
	PointsPerMatch = 10
)

// SessionState describes the lifecycle of a training session.
type SessionState int

const (
	// NotStarted means no session is in progress.
	NotStarted SessionState = iota
	// Running means the clock is ticking and challenges are live.
	Running
	// Complete means the session finished (all matches, timeout, or
	// an explicit stop).
	Complete
)

func (s SessionState) String() string {
	switch s {
	case Running:
		return "running"
	case Complete:
		return "complete"
	default:
		return "not_started"
	}
}

// Rand is the session's randomness source for target selection.
// math/rand.Rand satisfies it; tests inject a deterministic sequence.
type Rand interface {
	Intn(n int) int
}

// Snapshot is a point-in-time copy of session state, safe to hand to
// the UI or serialize.
type Snapshot struct {
	ID              string        `json:"id"`
	Active          bool          `json:"active"`
	Complete        bool          `json:"complete"`
	ChallengeIndex  int           `json:"challenge_index"`
	TotalChallenges int           `json:"total_challenges"`
	TimeRemaining   int           `json:"time_remaining"`
	TargetEmotion   emotion.Label `json:"target_emotion,omitempty"`
	CorrectCount    int           `json:"correct_count"`
	Score           int           `json:"score"`
	BonusReward     int           `json:"bonus_reward"`
}

// Session is the training-mode state machine. It tracks the
// challenge count, clock, and score; the detection loop only reads
// the current target and reports matches.
//
// Set OnComplete and OnTarget before Start. Callbacks run without
// the session lock held, so they may call back into the session.
type Session struct {
	// OnComplete fires once when the session finishes.
	OnComplete func(Snapshot)
	// OnTarget fires whenever a new target emotion is picked.
	OnTarget func(emotion.Label)

	mu             sync.Mutex
	rng            Rand
	pool           []emotion.Label
	state          SessionState
	id             string
	challengeIndex int
	timeRemaining  int
	target         emotion.Label
	correctCount   int
	score          int
	bonusReward    int
}

// NewSession creates a session. A nil rng gets a time-seeded default.
func NewSession(rng Rand) *Session {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Session{
		rng:  rng,
		pool: emotion.ChallengePool(),
	}
}

// Start begins a new session: challenge 1 of 10, full clock, zeroed
// score, and a fresh random target.
func (s *Session) Start() Snapshot {
	s.mu.Lock()
	s.state = Running
	s.id = uuid.NewString()
	s.challengeIndex = 1
	s.timeRemaining = TimeBudgetSeconds
	s.correctCount = 0
	s.score = 0
	s.bonusReward = 0
	s.pickTargetLocked()
	snap := s.snapshotLocked()
	target := s.target
	onTarget := s.OnTarget
	s.mu.Unlock()

	if onTarget != nil {
		onTarget(target)
	}
	return snap
}

// Tick advances the clock by one second. Reaching zero completes the
// session. Exported so tests (and the Run ticker) drive time.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	s.timeRemaining--
	if s.timeRemaining > 0 {
		s.mu.Unlock()
		return
	}
	s.timeRemaining = 0
	fire := s.completeLocked()
	s.mu.Unlock()
	fire()
}

// Run ticks the session clock once per second until ctx is done.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// NextChallenge records the outcome of the current challenge and
// advances. The tenth correct match completes the session instead of
// advancing past the final challenge.
func (s *Session) NextChallenge(success bool) {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}

	if success {
		s.correctCount++
		s.score += PointsPerMatch
	}

	if (success && s.correctCount >= TotalChallenges) || s.challengeIndex >= TotalChallenges {
		fire := s.completeLocked()
		s.mu.Unlock()
		fire()
		return
	}

	s.challengeIndex++
	s.pickTargetLocked()
	target := s.target
	onTarget := s.OnTarget
	s.mu.Unlock()

	if onTarget != nil {
		onTarget(target)
	}
}

// Stop finalizes a running session immediately.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	fire := s.completeLocked()
	s.mu.Unlock()
	fire()
}

// Reset returns a finished (or running) session to NotStarted and
// reshuffles the challenge pool.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = NotStarted
	s.id = ""
	s.challengeIndex = 0
	s.timeRemaining = 0
	s.target = ""
	s.correctCount = 0
	s.score = 0
	s.bonusReward = 0

	// Fisher-Yates over the pool; target picks stay uniform but the
	// iteration order of any future sequential draws changes.
	for i := len(s.pool) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		s.pool[i], s.pool[j] = s.pool[j], s.pool[i]
	}
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Target returns the current target emotion.
func (s *Session) Target() emotion.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// State returns the session lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) pickTargetLocked() {
	s.target = s.pool[s.rng.Intn(len(s.pool))]
}

// completeLocked transitions to Complete and computes the bonus.
// It returns the callback to fire after the lock is released.
func (s *Session) completeLocked() func() {
	s.state = Complete
	s.bonusReward = reward.SessionBonus(s.timeRemaining, s.correctCount, s.challengeIndex)

	onComplete := s.OnComplete
	if onComplete == nil {
		return func() {}
	}
	snap := s.snapshotLocked()
	return func() { onComplete(snap) }
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:              s.id,
		Active:          s.state == Running,
		Complete:        s.state == Complete,
		ChallengeIndex:  s.challengeIndex,
		TotalChallenges: TotalChallenges,
		TimeRemaining:   s.timeRemaining,
		TargetEmotion:   s.target,
		CorrectCount:    s.correctCount,
		Score:           s.score,
		BonusReward:     s.bonusReward,
	}
}
