package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/moodfi/vibecheck/pkg/camera"
	"github.com/moodfi/vibecheck/pkg/emotion"
	"github.com/moodfi/vibecheck/pkg/history"
	"github.com/moodfi/vibecheck/pkg/hub"
	"github.com/moodfi/vibecheck/pkg/reward"
	"github.com/moodfi/vibecheck/pkg/training"
	"github.com/moodfi/vibecheck/pkg/verify"
)

var errNoLiveSource = errors.New("web: no live frame source claimed")

// StatusResponse reports engine readiness.
type StatusResponse struct {
	ModelsLoaded bool              `json:"models_loaded"`
	LiveFeed     bool              `json:"live_feed"`
	FeedClients  int               `json:"feed_clients"`
	Session      training.Snapshot `json:"session"`
}

// VerifyResponse pairs a verification result with its token reward.
type VerifyResponse struct {
	Result verify.Result `json:"result"`
	// ExactMatch is true when the detected dominant emotion equals
	// the requested one.
	ExactMatch bool `json:"exact_match"`
	// Reward is the MOOD token amount for this capture. Zero when no
	// face was found.
	Reward float64 `json:"reward"`
}

// handleStatus returns engine readiness and the session snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	ready := false
	if s.modelsReady != nil {
		ready = s.modelsReady()
	}

	s.srcMu.Lock()
	live := s.source != nil
	s.srcMu.Unlock()

	return c.JSON(StatusResponse{
		ModelsLoaded: ready,
		LiveFeed:     live,
		FeedClients:  s.feedHub.ClientCount(),
		Session:      s.trainer.Snapshot(),
	})
}

// handleVerify runs a single-shot verification on the JPEG request
// body, optionally against ?emotion=<label>, and computes the reward.
func (s *Server) handleVerify(c *fiber.Ctx) error {
	frame := c.Body()
	if len(frame) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "request body must be a JPEG frame",
		})
	}

	var requested emotion.Label
	if name := c.Query("emotion"); name != "" {
		label, ok := emotion.Parse(name)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unknown emotion: " + name,
			})
		}
		requested = label
	}

	res := s.verifier.Verify(c.Context(), frame, requested)

	resp := VerifyResponse{Result: res}
	if res.IsFaceDetected && res.VibeCheck != nil {
		resp.ExactMatch = requested != "" && emotion.Equal(res.DominantEmotion, requested)
		resp.Reward = reward.Compute(
			res.OverallConfidence,
			res.VibeCheck.MatchScorePercent,
			resp.ExactMatch,
		)
	}
	return c.JSON(resp)
}

// handleHistory returns the recent live-feed detections.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"entries": s.history.Entries(),
	})
}

// handleTrainingStatus returns the session snapshot.
func (s *Server) handleTrainingStatus(c *fiber.Ctx) error {
	return c.JSON(s.trainer.Snapshot())
}

// handleTrainingStart claims the camera and starts a session. The
// claim is released on every completion path via onComplete.
func (s *Server) handleTrainingStart(c *fiber.Ctx) error {
	if snap := s.trainer.Snapshot(); snap.Active {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "training already running",
		})
	}

	src, err := s.frames.Acquire()
	if err != nil {
		status := fiber.StatusServiceUnavailable
		if errors.Is(err, camera.ErrBusy) {
			status = fiber.StatusConflict
		}
		s.logger.Error("camera acquisition failed", "error", err)
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	s.setFrames(src)

	snap := s.trainer.Start(s.ctx)
	return c.JSON(snap)
}

// handleTrainingStop finalizes the session early.
func (s *Server) handleTrainingStop(c *fiber.Ctx) error {
	s.trainer.Stop()
	s.releaseFrames()
	return c.JSON(s.trainer.Snapshot())
}

// handleTrainingReset returns the session to not-started.
func (s *Server) handleTrainingReset(c *fiber.Ctx) error {
	s.trainer.Reset()
	s.releaseFrames()
	return c.JSON(s.trainer.Snapshot())
}

// Feed event types pushed over /ws/feed.
const (
	feedEventUpdate   = "update"
	feedEventMatch    = "match"
	feedEventComplete = "complete"
)

// FeedEvent is the JSON envelope for live-feed messages.
type FeedEvent struct {
	Type    string             `json:"type"`
	Update  *training.Update   `json:"update,omitempty"`
	Match   *training.Match    `json:"match,omitempty"`
	Session *training.Snapshot `json:"session,omitempty"`
	SentAt  time.Time          `json:"sent_at"`
}

// handleFeedWS registers a live-feed subscriber.
func (s *Server) handleFeedWS(c *websocket.Conn) {
	client := hub.NewClient(s.feedHub, c)
	client.Run()
}

// onUpdate records the detection and pushes it to feed subscribers.
func (s *Server) onUpdate(u training.Update) {
	if u.FaceDetected {
		s.history.Add(history.Entry{
			Timestamp:  time.Now(),
			Dominant:   u.Emotion,
			Scores:     u.Scores,
			Confidence: u.Confidence,
		})
	}
	s.feedHub.BroadcastJSON(FeedEvent{
		Type:   feedEventUpdate,
		Update: &u,
		SentAt: time.Now(),
	})
}

// onMatch pushes the match event and the captured still frame.
func (s *Server) onMatch(m training.Match, snap training.Snapshot) {
	s.feedHub.BroadcastJSON(FeedEvent{
		Type:    feedEventMatch,
		Match:   &m,
		Session: &snap,
		SentAt:  time.Now(),
	})
	s.feedHub.BroadcastBinary(m.Frame)
}

// onComplete releases the camera and announces the final score.
func (s *Server) onComplete(snap training.Snapshot) {
	s.releaseFrames()
	s.feedHub.BroadcastJSON(FeedEvent{
		Type:    feedEventComplete,
		Session: &snap,
		SentAt:  time.Now(),
	})
}
