package detect

import (
	"context"
	"sync"

	"github.com/moodfi/vibecheck/pkg/emotion"
)

// Mock is a mock implementation of Detector for testing.
type Mock struct {
	mu sync.Mutex

	// State
	loaded bool

	// Configurable behavior
	LoadModelsFunc func(ctx context.Context) error
	DetectFunc     func(ctx context.Context, jpeg []byte) ([]Face, error)
	CloseFunc      func() error

	// Faces is returned by Detect when DetectFunc is nil.
	Faces []Face

	// Captured calls for assertions
	LoadCalls   int
	DetectCalls int
	FramesSeen  [][]byte
}

// NewMock creates a Mock detector that reports one happy face.
func NewMock() *Mock {
	return &Mock{
		Faces: []Face{MockFace(emotion.Scores{
			emotion.Happy:   0.8,
			emotion.Neutral: 0.15,
			emotion.Sad:     0.05,
		})},
	}
}

// MockFace builds a plausible centered face with the given scores.
func MockFace(scores emotion.Scores) Face {
	return Face{
		X: 0.3, Y: 0.2, W: 0.4, H: 0.5,
		Score: 0.9,
		Landmarks: Landmarks{
			RightEye:   Point{X: 0.4, Y: 0.35},
			LeftEye:    Point{X: 0.6, Y: 0.35},
			Nose:       Point{X: 0.5, Y: 0.45},
			MouthRight: Point{X: 0.42, Y: 0.58},
			MouthLeft:  Point{X: 0.58, Y: 0.58},
		},
		Expressions: scores,
	}
}

// Name implements Detector.
func (m *Mock) Name() string { return "mock" }

// LoadModels implements Detector.
func (m *Mock) LoadModels(ctx context.Context) error {
	m.mu.Lock()
	m.LoadCalls++
	m.mu.Unlock()

	if m.LoadModelsFunc != nil {
		return m.LoadModelsFunc(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = true
	return nil
}

// Detect implements Detector.
func (m *Mock) Detect(ctx context.Context, jpeg []byte) ([]Face, error) {
	m.mu.Lock()
	m.DetectCalls++
	m.FramesSeen = append(m.FramesSeen, jpeg)
	m.mu.Unlock()

	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, jpeg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Faces, nil
}

// Close implements Detector.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = false
	return nil
}

// Loaded reports whether LoadModels has succeeded.
func (m *Mock) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Verify Mock implements Detector at compile time.
var _ Detector = (*Mock)(nil)
