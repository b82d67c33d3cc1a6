package training

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/moodfi/vibecheck/pkg/emotion"
	"github.com/moodfi/vibecheck/pkg/verify"
)

// fakeScheduler records scheduled ticks so tests run them by hand.
type fakeScheduler struct {
	mu        sync.Mutex
	pending   []func()
	cancelled int
}

func (s *fakeScheduler) Schedule(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, fn)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cancelled++
	}
}

// step runs the most recently scheduled tick synchronously.
func (s *fakeScheduler) step(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		t.Fatal("no tick scheduled")
	}
	fn := s.pending[len(s.pending)-1]
	s.mu.Unlock()
	fn()
}

func (s *fakeScheduler) scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// fakeFrames returns a fixed frame.
type fakeFrames struct {
	frame []byte
	err   error
}

func (f *fakeFrames) CaptureJPEG() ([]byte, error) {
	return f.frame, f.err
}

// stubVerifier returns canned results and can block mid-call.
type stubVerifier struct {
	mu      sync.Mutex
	calls   int
	result  verify.Result
	entered chan struct{} // closed when Verify is entered, if set
	release chan struct{} // Verify blocks on this, if set
}

func (v *stubVerifier) Verify(ctx context.Context, frame []byte, target emotion.Label) verify.Result {
	v.mu.Lock()
	v.calls++
	entered, release := v.entered, v.release
	v.entered = nil
	v.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if release != nil {
		<-release
	}
	return v.result
}

func (v *stubVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func matchResult(target emotion.Label, percent int) verify.Result {
	return verify.Result{
		IsFaceDetected:  true,
		DominantEmotion: target,
		EmotionScores:   emotion.Scores{target: float64(percent) / 100},
		VibeCheck: &verify.VibeCheck{
			RequestedEmotion:  target,
			DominantEmotion:   target,
			MatchScorePercent: percent,
			Passed:            true,
		},
	}
}

func TestLoop_MatchStopsScheduling(t *testing.T) {
	sched := &fakeScheduler{}
	v := &stubVerifier{result: matchResult(emotion.Happy, 85)}
	l := NewLoop(v, &fakeFrames{frame: []byte("jpeg")}, sched)

	var updates []Update
	var matches []Match
	l.OnUpdate = func(u Update) { updates = append(updates, u) }
	l.OnMatch = func(m Match) { matches = append(matches, m) }

	l.Start(context.Background(), emotion.Happy)
	if sched.scheduled() != 1 {
		t.Fatalf("ticks scheduled after start: got %d, want 1", sched.scheduled())
	}

	sched.step(t)

	if l.State() != LoopMatched {
		t.Errorf("state: got %v, want matched", l.State())
	}
	if sched.scheduled() != 1 {
		t.Errorf("a match must not schedule another tick, got %d", sched.scheduled())
	}
	if len(matches) != 1 {
		t.Fatalf("matches: got %d, want 1", len(matches))
	}
	if string(matches[0].Frame) != "jpeg" {
		t.Error("match must carry the captured frame")
	}
	if matches[0].MatchScorePercent != 85 {
		t.Errorf("match score: got %d, want 85", matches[0].MatchScorePercent)
	}
	if len(updates) != 1 {
		t.Errorf("updates: got %d, want 1 (update fires on every verification)", len(updates))
	}
}

func TestLoop_NonMatchReschedules(t *testing.T) {
	sched := &fakeScheduler{}
	// Dominant matches but the score is at, not above, the threshold.
	v := &stubVerifier{result: matchResult(emotion.Happy, MatchThreshold)}
	l := NewLoop(v, &fakeFrames{frame: []byte("jpeg")}, sched)

	var updates []Update
	l.OnUpdate = func(u Update) { updates = append(updates, u) }

	l.Start(context.Background(), emotion.Happy)
	sched.step(t)

	if l.State() != LoopIdle {
		t.Errorf("state: got %v, want idle", l.State())
	}
	if sched.scheduled() != 2 {
		t.Errorf("non-match must reschedule: got %d scheduled, want 2", sched.scheduled())
	}
	if len(updates) != 1 {
		t.Errorf("updates: got %d, want 1", len(updates))
	}
}

func TestLoop_WrongDominantIsNoMatch(t *testing.T) {
	sched := &fakeScheduler{}
	res := matchResult(emotion.Sad, 90)
	v := &stubVerifier{result: res}
	l := NewLoop(v, &fakeFrames{frame: []byte("jpeg")}, sched)

	l.Start(context.Background(), emotion.Happy)
	sched.step(t)

	if l.State() != LoopIdle {
		t.Errorf("high score with wrong dominant must not match, state %v", l.State())
	}
}

func TestLoop_TargetMatchIsCaseInsensitive(t *testing.T) {
	sched := &fakeScheduler{}
	res := matchResult(emotion.Happy, 90)
	res.DominantEmotion = "HAPPY"
	v := &stubVerifier{result: res}
	l := NewLoop(v, &fakeFrames{frame: []byte("jpeg")}, sched)

	l.Start(context.Background(), emotion.Happy)
	sched.step(t)

	if l.State() != LoopMatched {
		t.Errorf("state: got %v, want matched", l.State())
	}
}

func TestLoop_ReentrancyGuard(t *testing.T) {
	sched := &fakeScheduler{}
	v := &stubVerifier{
		result:  matchResult(emotion.Happy, 0),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	l := NewLoop(v, &fakeFrames{frame: []byte("jpeg")}, sched)
	l.Start(context.Background(), emotion.Happy)

	entered := v.entered

	// First tick blocks inside Verify.
	done := make(chan struct{})
	go func() {
		sched.step(t)
		close(done)
	}()
	<-entered

	// A second tick arriving while the first is in flight must not
	// start another verification.
	sched.step(t)
	if got := v.callCount(); got != 1 {
		t.Errorf("verifications started: got %d, want 1", got)
	}

	close(v.release)
	<-done

	if got := v.callCount(); got != 1 {
		t.Errorf("verifications after release: got %d, want 1", got)
	}
}

func TestLoop_StopDiscardsInFlightResult(t *testing.T) {
	sched := &fakeScheduler{}
	v := &stubVerifier{
		result:  matchResult(emotion.Happy, 95),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	l := NewLoop(v, &fakeFrames{frame: []byte("jpeg")}, sched)

	var matches, updates int
	l.OnMatch = func(Match) { matches++ }
	l.OnUpdate = func(Update) { updates++ }

	l.Start(context.Background(), emotion.Happy)
	entered := v.entered

	done := make(chan struct{})
	go func() {
		sched.step(t)
		close(done)
	}()
	<-entered

	l.Stop()
	close(v.release)
	<-done

	if matches != 0 || updates != 0 {
		t.Errorf("late result leaked: matches=%d updates=%d", matches, updates)
	}
	if l.State() != LoopStopped {
		t.Errorf("state: got %v, want stopped", l.State())
	}
}

func TestLoop_RestartDuringInFlightKeepsTicking(t *testing.T) {
	sched := &fakeScheduler{}
	v := &stubVerifier{
		result:  matchResult(emotion.Happy, 95),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	l := NewLoop(v, &fakeFrames{frame: []byte("jpeg")}, sched)

	var matches int
	l.OnMatch = func(Match) { matches++ }

	l.Start(context.Background(), emotion.Happy)
	entered := v.entered

	// First tick blocks inside Verify.
	done := make(chan struct{})
	go func() {
		sched.step(t)
		close(done)
	}()
	<-entered

	// Stop and immediately restart while the verification is still
	// in flight, then fire the restarted run's first tick before the
	// old verification returns.
	l.Stop()
	l.Start(context.Background(), emotion.Happy)
	before := sched.scheduled()
	sched.step(t)
	if got := sched.scheduled(); got != before+1 {
		t.Fatalf("tick colliding with a stale verification must reschedule: got %d scheduled, want %d", got, before+1)
	}

	// The stale verification returns and is discarded.
	close(v.release)
	<-done
	if matches != 0 {
		t.Fatalf("stale result leaked a match")
	}

	// The rescheduled tick runs a fresh verification to completion.
	sched.step(t)
	if got := v.callCount(); got != 2 {
		t.Errorf("verifications: got %d, want 2", got)
	}
	if l.State() != LoopMatched {
		t.Errorf("state: got %v, want matched", l.State())
	}
	if matches != 1 {
		t.Errorf("matches: got %d, want 1", matches)
	}
}

func TestLoop_CaptureErrorContinues(t *testing.T) {
	sched := &fakeScheduler{}
	frames := &fakeFrames{err: errors.New("device busy")}
	v := &stubVerifier{result: matchResult(emotion.Happy, 95)}
	l := NewLoop(v, frames, sched)

	l.Start(context.Background(), emotion.Happy)
	sched.step(t)

	if l.State() != LoopIdle {
		t.Errorf("state after capture error: got %v, want idle", l.State())
	}
	if sched.scheduled() != 2 {
		t.Errorf("capture error must reschedule, got %d", sched.scheduled())
	}
	if v.callCount() != 0 {
		t.Errorf("verifier must not run without a frame, got %d calls", v.callCount())
	}
}

func TestLoop_ResumeAfterMatch(t *testing.T) {
	sched := &fakeScheduler{}
	v := &stubVerifier{result: matchResult(emotion.Happy, 95)}
	l := NewLoop(v, &fakeFrames{frame: []byte("jpeg")}, sched)

	l.Start(context.Background(), emotion.Happy)
	sched.step(t)
	if l.State() != LoopMatched {
		t.Fatalf("state: got %v, want matched", l.State())
	}

	l.Resume(emotion.Sad)
	if l.State() != LoopIdle {
		t.Errorf("state after resume: got %v, want idle", l.State())
	}
	if l.Target() != emotion.Sad {
		t.Errorf("target after resume: got %q, want sad", l.Target())
	}
	if sched.scheduled() != 2 {
		t.Errorf("resume must schedule a tick, got %d", sched.scheduled())
	}

	// Resume on a stopped loop is a no-op.
	l.Stop()
	l.Resume(emotion.Angry)
	if l.State() != LoopStopped {
		t.Error("resume must not revive a stopped loop")
	}
}

func TestController_FullSession(t *testing.T) {
	sched := &fakeScheduler{}
	v := &stubVerifier{result: matchResult(emotion.Happy, 95)}

	// Verifier always reports happy; force every target to happy so
	// each tick is a match.
	rng := &seqRand{} // Always draws index 0.
	if emotion.ChallengePool()[0] != emotion.Happy {
		t.Fatal("test assumes happy is the first pool entry")
	}

	c := NewController(v, &fakeFrames{frame: []byte("jpeg")}, sched, rng)

	var complete *Snapshot
	var matchSnaps []Snapshot
	c.OnComplete = func(s Snapshot) { complete = &s }
	c.OnMatch = func(m Match, s Snapshot) { matchSnaps = append(matchSnaps, s) }

	c.Start(context.Background())

	for i := 0; i < TotalChallenges; i++ {
		sched.step(t)
	}

	if complete == nil {
		t.Fatal("session did not complete after 10 matches")
	}
	if complete.CorrectCount != 10 || complete.Score != 100 {
		t.Errorf("correct=%d score=%d, want 10 and 100", complete.CorrectCount, complete.Score)
	}
	if complete.ChallengeIndex != TotalChallenges {
		t.Errorf("challenge index: got %d, want %d", complete.ChallengeIndex, TotalChallenges)
	}
	if len(matchSnaps) != 10 {
		t.Errorf("match events: got %d, want 10", len(matchSnaps))
	}

	// The loop must be fully stopped; no stray tick may revive it.
	if got := c.loop.State(); got != LoopStopped {
		t.Errorf("loop state: got %v, want stopped", got)
	}
}

func TestController_ResetStopsClock(t *testing.T) {
	sched := &fakeScheduler{}
	v := &stubVerifier{result: matchResult(emotion.Happy, 95)}
	c := NewController(v, &fakeFrames{frame: []byte("jpeg")}, sched, &seqRand{})

	c.Start(context.Background())
	c.mu.Lock()
	started := c.cancel != nil
	c.mu.Unlock()
	if !started {
		t.Fatal("start should arm the clock context")
	}

	c.Reset()

	c.mu.Lock()
	armed := c.cancel != nil
	c.mu.Unlock()
	if armed {
		t.Error("reset must cancel the clock context")
	}
	if got := c.loop.State(); got != LoopStopped {
		t.Errorf("loop state: got %v, want stopped", got)
	}
	snap := c.Snapshot()
	if snap.Active || snap.Complete {
		t.Errorf("reset session should be neither active nor complete: %+v", snap)
	}
}

func TestIntervalScheduler(t *testing.T) {
	s := IntervalScheduler{Interval: 5 * time.Millisecond}

	ran := make(chan struct{})
	s.Schedule(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("scheduled fn never ran")
	}

	// A cancelled schedule must not fire.
	fired := make(chan struct{})
	cancel := s.Schedule(func() { close(fired) })
	cancel()
	select {
	case <-fired:
		t.Fatal("cancelled fn ran")
	case <-time.After(20 * time.Millisecond):
	}
}
