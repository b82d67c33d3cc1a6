// Package web exposes the vibecheck engine over HTTP: single-shot
// verification, training-session control, and a websocket live feed.
package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/moodfi/vibecheck/pkg/camera"
	"github.com/moodfi/vibecheck/pkg/history"
	"github.com/moodfi/vibecheck/pkg/hub"
	"github.com/moodfi/vibecheck/pkg/training"
	"github.com/moodfi/vibecheck/pkg/verify"
)

// FrameSourceCloser is a frame source whose underlying device must
// be released when the live view goes away.
type FrameSourceCloser interface {
	training.FrameSource
	Close() error
}

// FrameAcquirer opens the live frame source for the duration of a
// training session. The camera manager satisfies it through
// CameraAcquirer; tests substitute fakes.
type FrameAcquirer interface {
	Acquire() (FrameSourceCloser, error)
}

// CameraAcquirer adapts a camera manager to the FrameAcquirer
// contract.
func CameraAcquirer(m *camera.Manager) FrameAcquirer {
	return cameraAcquirer{m}
}

type cameraAcquirer struct{ mgr *camera.Manager }

func (a cameraAcquirer) Acquire() (FrameSourceCloser, error) {
	return a.mgr.Acquire()
}

// Deps are the engine components the server exposes.
type Deps struct {
	Verifier *verify.Verifier
	History  *history.Ring
	Frames   FrameAcquirer

	// ModelsReady reports whether the primary models have loaded,
	// for the status endpoint.
	ModelsReady func() bool

	// Scheduler drives the training detection loop. Defaults to a
	// 150ms interval scheduler.
	Scheduler training.Scheduler

	// Rand seeds training target selection. Nil gets a time-seeded
	// default.
	Rand training.Rand
}

// Server is the engine's HTTP and websocket surface.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	verifier *verify.Verifier
	history  *history.Ring
	trainer  *training.Controller

	modelsReady func() bool

	// Live feed
	feedHub *hub.Hub

	// Camera ownership for the running session
	frames FrameAcquirer
	srcMu  sync.Mutex
	source FrameSourceCloser

	// Base context for training sessions, independent of any single
	// HTTP request.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer wires the engine surface. It owns the training
// controller so that camera acquisition and the live feed follow the
// session lifecycle.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		addr:        addr,
		logger:      slog.Default().With("component", "web"),
		verifier:    deps.Verifier,
		history:     deps.History,
		modelsReady: deps.ModelsReady,
		feedHub:     hub.New("feed"),
		frames:      deps.Frames,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	sched := deps.Scheduler
	if sched == nil {
		sched = training.IntervalScheduler{Interval: 150 * time.Millisecond}
	}
	s.trainer = training.NewController(deps.Verifier, liveFrames{s}, sched, deps.Rand)
	s.trainer.OnUpdate = s.onUpdate
	s.trainer.OnMatch = s.onMatch
	s.trainer.OnComplete = s.onComplete

	app := fiber.New(fiber.Config{
		AppName:               "MoodFi Vibecheck Engine",
		DisableStartupMessage: true,
		BodyLimit:             8 * 1024 * 1024, // Selfie uploads
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/verify", s.handleVerify)
	api.Get("/history", s.handleHistory)
	api.Get("/training", s.handleTrainingStatus)
	api.Post("/training/start", s.handleTrainingStart)
	api.Post("/training/stop", s.handleTrainingStop)
	api.Post("/training/reset", s.handleTrainingReset)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/feed", websocket.New(s.handleFeedWS))

	s.app = app
	return s
}

// Start runs the feed hub and serves until Shutdown.
func (s *Server) Start() error {
	go s.feedHub.Run()
	s.logger.Info("engine API listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown stops the server and tears down any running session,
// releasing the camera.
func (s *Server) Shutdown() error {
	s.trainer.Stop()
	s.releaseFrames()
	s.cancel()
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// liveFrames reads from whichever device the current session claimed.
type liveFrames struct{ s *Server }

func (f liveFrames) CaptureJPEG() ([]byte, error) {
	f.s.srcMu.Lock()
	src := f.s.source
	f.s.srcMu.Unlock()
	if src == nil {
		return nil, errNoLiveSource
	}
	return src.CaptureJPEG()
}

func (s *Server) setFrames(src FrameSourceCloser) {
	s.srcMu.Lock()
	s.source = src
	s.srcMu.Unlock()
}

// releaseFrames closes the claimed device. Idempotent: every session
// exit path funnels through here so the hardware handle never leaks.
func (s *Server) releaseFrames() {
	s.srcMu.Lock()
	src := s.source
	s.source = nil
	s.srcMu.Unlock()

	if src != nil {
		if err := src.Close(); err != nil {
			s.logger.Warn("camera release failed", "error", err)
		}
	}
}
