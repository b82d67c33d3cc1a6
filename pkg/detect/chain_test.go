package detect

import (
	"context"
	"errors"
	"testing"

	"github.com/moodfi/vibecheck/pkg/emotion"
)

func TestNewCascade_RequiresBackends(t *testing.T) {
	if _, err := NewCascade(); !errors.Is(err, ErrNoDetectors) {
		t.Errorf("empty cascade: got %v, want ErrNoDetectors", err)
	}
}

func TestCascade_PrimaryWins(t *testing.T) {
	primary := NewMock()
	fallback := NewMock()

	c, err := NewCascade(primary, fallback)
	if err != nil {
		t.Fatal(err)
	}

	faces, err := c.Detect(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("faces: got %d, want 1", len(faces))
	}
	if primary.DetectCalls != 1 {
		t.Errorf("primary calls: got %d, want 1", primary.DetectCalls)
	}
	if fallback.DetectCalls != 0 {
		t.Errorf("fallback must not be consulted when primary succeeds, got %d calls", fallback.DetectCalls)
	}
}

func TestCascade_FallsThroughOnError(t *testing.T) {
	primary := NewMock()
	primary.DetectFunc = func(ctx context.Context, jpeg []byte) ([]Face, error) {
		return nil, errors.New("inference crashed")
	}
	fallback := NewMock()
	fallback.Faces = []Face{MockFace(emotion.Scores{emotion.Sad: 0.9})}

	c, err := NewCascade(primary, fallback)
	if err != nil {
		t.Fatal(err)
	}

	faces, err := c.Detect(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if dom, _ := faces[0].Expressions.Dominant(); dom != emotion.Sad {
		t.Errorf("dominant from fallback: got %q, want %q", dom, emotion.Sad)
	}
}

func TestCascade_NoFaceIsNotFallthrough(t *testing.T) {
	primary := NewMock()
	primary.Faces = nil // Model ran fine, frame just has no face.
	fallback := NewMock()

	c, err := NewCascade(primary, fallback)
	if err != nil {
		t.Fatal(err)
	}

	faces, err := c.Detect(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("faces: got %d, want 0", len(faces))
	}
	if fallback.DetectCalls != 0 {
		t.Error("an empty detection must not trigger the fallback backend")
	}
}

func TestCascade_AllFailAggregatesErrors(t *testing.T) {
	fail := func(ctx context.Context, jpeg []byte) ([]Face, error) {
		return nil, errors.New("boom")
	}
	a, b := NewMock(), NewMock()
	a.DetectFunc = fail
	b.DetectFunc = fail

	c, err := NewCascade(a, b)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Detect(context.Background(), []byte("frame"))
	var cascadeErr *CascadeError
	if !errors.As(err, &cascadeErr) {
		t.Fatalf("got %T, want *CascadeError", err)
	}
	if len(cascadeErr.Errors) != 2 {
		t.Errorf("aggregated errors: got %d, want 2", len(cascadeErr.Errors))
	}
}

func TestCascade_LoadModelsFallsBack(t *testing.T) {
	primary := NewMock()
	primary.LoadModelsFunc = func(ctx context.Context) error {
		return errors.New("download failed")
	}
	fallback := NewMock()

	c, err := NewCascade(primary, fallback)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.LoadModels(context.Background()); err != nil {
		t.Fatalf("LoadModels: %v", err)
	}
	if !fallback.Loaded() {
		t.Error("fallback backend should have loaded")
	}
}
