// Package detect provides face and expression detection for mood
// verification. The primary backend runs YuNet face detection plus a
// FER+ style expression classifier through OpenCV; a degraded-mode
// fallback keeps the capture flow alive when models are unavailable.
package detect

import (
	"context"

	"github.com/moodfi/vibecheck/pkg/emotion"
)

// Point is a facial landmark position, normalized to 0-1 image space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Zero reports whether the landmark was not produced by the model.
func (p Point) Zero() bool {
	return p.X == 0 && p.Y == 0
}

// Landmarks holds the five facial landmarks produced per face.
type Landmarks struct {
	RightEye   Point `json:"right_eye"`
	LeftEye    Point `json:"left_eye"`
	Nose       Point `json:"nose"`
	MouthRight Point `json:"mouth_right"`
	MouthLeft  Point `json:"mouth_left"`
}

// Face represents a detected face with its expression distribution.
type Face struct {
	X, Y, W, H float64 // Bounding box (0-1 normalized)

	// Score is the face-detection confidence (0-1).
	Score float64

	Landmarks Landmarks

	// Expressions is the per-emotion probability distribution for
	// this face.
	Expressions emotion.Scores
}

// Area returns the normalized bounding-box area, which doubles as the
// face-to-image area ratio.
func (f Face) Area() float64 {
	return f.W * f.H
}

// Detector is the interface for face/expression detection backends.
type Detector interface {
	// LoadModels prepares the backend. It is idempotent, safe for
	// concurrent use, and retriable after a failed load.
	LoadModels(ctx context.Context) error

	// Detect finds faces with expression scores in a JPEG frame.
	// An empty result means no face, not an error.
	Detect(ctx context.Context, jpeg []byte) ([]Face, error)

	// Name identifies the backend in logs and cascade errors.
	Name() string

	// Close releases resources.
	Close() error
}

// SelectBest picks the single face to analyze from a detection.
// Priority blends confidence with size so a sharp background face
// does not win over the subject filling the frame.
func SelectBest(faces []Face) *Face {
	if len(faces) == 0 {
		return nil
	}
	if len(faces) == 1 {
		return &faces[0]
	}

	maxArea := 0.0
	for _, f := range faces {
		if f.Area() > maxArea {
			maxArea = f.Area()
		}
	}

	bestScore := -1.0
	var best *Face
	for i := range faces {
		score := faces[i].Score * 0.7
		if maxArea > 0 {
			score += (faces[i].Area() / maxArea) * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = &faces[i]
		}
	}
	return best
}

// Config holds detector configuration.
type Config struct {
	FaceModelPath    string  // Path to the YuNet ONNX model
	EmotionModelPath string  // Path to the expression ONNX model
	FaceModelURL     string  // Fetched to FaceModelPath when missing
	EmotionModelURL  string  // Fetched to EmotionModelPath when missing
	MinFaceScore     float64 // Minimum face confidence
	NMSThreshold     float64 // Non-maximum suppression threshold
	InputWidth       int     // Face model input width
	InputHeight      int     // Face model input height
}

// DefaultConfig returns production defaults.
// MinFaceScore is deliberately low (favoring recall): downstream
// scoring penalizes weak detections instead of rejecting them.
func DefaultConfig() Config {
	return Config{
		FaceModelPath:    "models/face_detection_yunet.onnx",
		EmotionModelPath: "models/emotion_ferplus.onnx",
		MinFaceScore:     0.3,
		NMSThreshold:     0.3,
		InputWidth:       320,
		InputHeight:      320,
	}
}
