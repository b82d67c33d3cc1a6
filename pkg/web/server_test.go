package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/moodfi/vibecheck/pkg/camera"
	"github.com/moodfi/vibecheck/pkg/detect"
	"github.com/moodfi/vibecheck/pkg/history"
	"github.com/moodfi/vibecheck/pkg/training"
	"github.com/moodfi/vibecheck/pkg/verify"
)

// noopScheduler never fires, so training tests control the loop
// lifecycle without timers.
type noopScheduler struct{}

func (noopScheduler) Schedule(fn func()) func() { return func() {} }

type fakeSource struct {
	mu     sync.Mutex
	closed bool
}

func (f *fakeSource) CaptureJPEG() ([]byte, error) { return []byte{0xFF, 0xD8}, nil }

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeAcquirer struct {
	src *fakeSource
	err error

	acquires int
}

func (f *fakeAcquirer) Acquire() (FrameSourceCloser, error) {
	f.acquires++
	if f.err != nil {
		return nil, f.err
	}
	return f.src, nil
}

func newTestServer(t *testing.T, frames *fakeAcquirer) *Server {
	t.Helper()
	if frames == nil {
		frames = &fakeAcquirer{src: &fakeSource{}}
	}
	return NewServer(":0", Deps{
		Verifier:    verify.New(detect.NewMock()),
		History:     history.NewRing(history.DefaultCapacity),
		Frames:      frames,
		ModelsReady: func() bool { return true },
		Scheduler:   noopScheduler{},
	})
}

func decodeJSON(t *testing.T, r io.Reader, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Shutdown()

	req := httptest.NewRequest("GET", "/api/status", nil)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got StatusResponse
	decodeJSON(t, resp.Body, &got)
	if !got.ModelsLoaded {
		t.Error("expected models_loaded true")
	}
	if got.LiveFeed {
		t.Error("expected no live feed before training starts")
	}
	if got.Session.Active {
		t.Error("expected inactive session")
	}
}

func TestHandleVerify(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Shutdown()

	body := bytes.NewReader([]byte{0xFF, 0xD8, 0xFF})
	req := httptest.NewRequest("POST", "/api/verify?emotion=happy", body)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got VerifyResponse
	decodeJSON(t, resp.Body, &got)
	if !got.Result.IsFaceDetected {
		t.Fatal("expected a detected face")
	}
	if got.Result.VibeCheck == nil {
		t.Fatal("expected a vibe check against the requested emotion")
	}
	if !got.Result.VibeCheck.Passed {
		t.Error("mock face is dominantly happy, vibe check should pass")
	}
	if !got.ExactMatch {
		t.Error("dominant happy against requested happy should be exact")
	}
	if got.Reward <= 0 {
		t.Errorf("reward = %v, want > 0", got.Reward)
	}
}

func TestHandleVerify_UnknownEmotion(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Shutdown()

	req := httptest.NewRequest("POST", "/api/verify?emotion=smug", bytes.NewReader([]byte{1}))
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleVerify_EmptyBody(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Shutdown()

	req := httptest.NewRequest("POST", "/api/verify", nil)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTrainingLifecycle(t *testing.T) {
	frames := &fakeAcquirer{src: &fakeSource{}}
	s := newTestServer(t, frames)
	defer s.Shutdown()

	start := httptest.NewRequest("POST", "/api/training/start", nil)
	resp, err := s.App().Test(start)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("start status = %d, want 200", resp.StatusCode)
	}
	var snap training.Snapshot
	decodeJSON(t, resp.Body, &snap)
	if !snap.Active {
		t.Fatal("expected active session after start")
	}
	if frames.acquires != 1 {
		t.Fatalf("acquires = %d, want 1", frames.acquires)
	}

	// A second start while running must not grab the camera again.
	resp, err = s.App().Test(httptest.NewRequest("POST", "/api/training/start", nil))
	if err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if resp.StatusCode != 409 {
		t.Fatalf("second start status = %d, want 409", resp.StatusCode)
	}
	if frames.acquires != 1 {
		t.Fatalf("acquires after rejected start = %d, want 1", frames.acquires)
	}

	resp, err = s.App().Test(httptest.NewRequest("POST", "/api/training/stop", nil))
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("stop status = %d, want 200", resp.StatusCode)
	}
	decodeJSON(t, resp.Body, &snap)
	if snap.Active {
		t.Error("expected inactive session after stop")
	}
	if !frames.src.isClosed() {
		t.Error("expected camera released after stop")
	}
}

func TestTrainingStart_CameraBusy(t *testing.T) {
	frames := &fakeAcquirer{err: camera.ErrBusy}
	s := newTestServer(t, frames)
	defer s.Shutdown()

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/training/start", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 409 {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestTrainingStart_AcquisitionError(t *testing.T) {
	frames := &fakeAcquirer{err: &camera.AcquisitionError{
		Device: 0,
		Err:    errors.New("device unplugged"),
	}}
	s := newTestServer(t, frames)
	defer s.Shutdown()

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/training/start", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 503 {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestHandleHistory(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Shutdown()

	s.onUpdate(training.Update{
		FaceDetected: true,
		Emotion:      "happy",
		Confidence:   72,
	})
	s.onUpdate(training.Update{FaceDetected: false})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/history", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got struct {
		Entries []history.Entry `json:"entries"`
	}
	decodeJSON(t, resp.Body, &got)
	if len(got.Entries) != 1 {
		t.Fatalf("entries = %d, want 1 (face-less updates are not recorded)", len(got.Entries))
	}
	if got.Entries[0].Dominant != "happy" {
		t.Errorf("dominant = %q, want happy", got.Entries[0].Dominant)
	}
}
