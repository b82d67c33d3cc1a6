package detect

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/moodfi/vibecheck/pkg/emotion"
)

// Rand is the source of randomness for the fallback detector.
// math/rand.Rand satisfies it; tests inject a deterministic source.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// FallbackDetector is the degraded-mode backend used when the model
// cascade cannot load real models. It always "finds" a centered face
// with a mildly randomized expression distribution so the capture
// flow stays usable. Its numbers are a placeholder, not product
// behavior.
type FallbackDetector struct {
	mu  sync.Mutex
	rng Rand
}

// NewFallback creates a degraded-mode detector. A nil rng gets a
// time-seeded default.
func NewFallback(rng Rand) *FallbackDetector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &FallbackDetector{rng: rng}
}

// Name implements Detector.
func (d *FallbackDetector) Name() string { return "fallback" }

// LoadModels implements Detector. The fallback has nothing to load.
func (d *FallbackDetector) LoadModels(ctx context.Context) error {
	return nil
}

// Detect implements Detector. It never fails and never reports a
// missing face.
func (d *FallbackDetector) Detect(ctx context.Context, jpeg []byte) ([]Face, error) {
	if len(jpeg) == 0 {
		return nil, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Spread ~1.0 of probability mass with a random favorite so the
	// UI still animates in degraded mode.
	labels := emotion.All()
	favorite := labels[d.rng.Intn(len(labels))]
	scores := make(emotion.Scores, len(labels))
	for _, l := range labels {
		scores[l] = 0.05 + d.rng.Float64()*0.1
	}
	scores[favorite] = 0.4 + d.rng.Float64()*0.3

	face := Face{
		X: 0.3, Y: 0.2, W: 0.4, H: 0.5,
		Score: 0.5,
		Landmarks: Landmarks{
			RightEye:   Point{X: 0.4, Y: 0.35},
			LeftEye:    Point{X: 0.6, Y: 0.35},
			Nose:       Point{X: 0.5, Y: 0.45},
			MouthRight: Point{X: 0.42, Y: 0.58},
			MouthLeft:  Point{X: 0.58, Y: 0.58},
		},
		Expressions: scores,
	}
	return []Face{face}, nil
}

// Close implements Detector.
func (d *FallbackDetector) Close() error { return nil }

// Verify FallbackDetector implements Detector at compile time.
var _ Detector = (*FallbackDetector)(nil)
