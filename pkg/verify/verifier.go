// Package verify turns raw face detections into vibe-check verdicts.
// It owns the quality scoring that decides how much a single webcam
// frame should be trusted.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/moodfi/vibecheck/pkg/detect"
	"github.com/moodfi/vibecheck/pkg/emotion"
)

// PassThreshold is the minimum probability of the requested emotion
// for a vibe check to pass.
const PassThreshold = 0.2

// VibeCheck is the verdict of comparing a detection against a
// requested emotion.
type VibeCheck struct {
	RequestedEmotion  emotion.Label `json:"requested_emotion,omitempty"`
	DominantEmotion   emotion.Label `json:"dominant_emotion"`
	MatchScorePercent int           `json:"match_score_percent"`
	Passed            bool          `json:"passed"`
	Message           string        `json:"message"`
}

// Result is the outcome of a single-shot verification.
type Result struct {
	IsFaceDetected    bool           `json:"is_face_detected"`
	OverallConfidence int            `json:"overall_confidence"`
	EmotionScores     emotion.Scores `json:"emotion_scores,omitempty"`
	DominantEmotion   emotion.Label  `json:"dominant_emotion,omitempty"`
	Message           string         `json:"message,omitempty"`
	QualityFlags      []string       `json:"quality_flags,omitempty"`
	VibeCheck         *VibeCheck     `json:"vibe_check,omitempty"`
}

// Quality flag names reported in Result.QualityFlags.
const (
	FlagLowConfidence   = "low_confidence"
	FlagMissingFeatures = "missing_features"
	FlagFaceTooSmall    = "face_too_small"
)

// Quality scoring constants. A flagged frame still produces a result;
// its confidence is capped rather than rejected so noisy webcam
// captures stay usable.
const (
	lowConfidenceScore = 0.7  // Detection score below this raises a flag
	minFaceAreaRatio   = 0.03 // Face/image area below this raises a flag
	flaggedCap         = 85   // Confidence ceiling when any flag is raised
)

// Verifier runs single-shot verification against a detector backend.
type Verifier struct {
	detector detect.Detector
	logger   *slog.Logger
}

// New creates a Verifier.
func New(detector detect.Detector) *Verifier {
	return &Verifier{
		detector: detector,
		logger:   slog.Default().With("component", "verify"),
	}
}

// NewWithLogger creates a Verifier with a custom logger.
func NewWithLogger(logger *slog.Logger, detector detect.Detector) *Verifier {
	v := New(detector)
	v.logger = logger.With("component", "verify")
	return v
}

// Verify analyzes one JPEG frame, optionally against a requested
// emotion (empty label means "report the dominant emotion only").
//
// Verify never panics and never returns an error: detector failures
// and malformed frames come back as a zero-confidence, no-face result
// carrying a diagnostic message. A missing face is a normal outcome,
// not a failure.
func (v *Verifier) Verify(ctx context.Context, frame []byte, requested emotion.Label) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("verification panicked", "panic", r)
			result = failedResult(fmt.Sprintf("Analysis failed: %v", r))
		}
	}()

	faces, err := v.detector.Detect(ctx, frame)
	if err != nil {
		v.logger.Warn("detection failed", "error", err)
		return failedResult(fmt.Sprintf("Analysis failed: %v", err))
	}

	best := detect.SelectBest(faces)
	if best == nil {
		return Result{
			IsFaceDetected: false,
			Message:        "No face detected",
		}
	}

	flags := qualityFlags(*best)
	confidence := overallConfidence(*best, flags)
	dominant, dominantScore := best.Expressions.Dominant()

	result = Result{
		IsFaceDetected:    true,
		OverallConfidence: confidence,
		EmotionScores:     best.Expressions.Clone(),
		DominantEmotion:   dominant,
		QualityFlags:      flags,
		VibeCheck:         buildVibeCheck(best.Expressions, requested, dominant, dominantScore),
	}
	return result
}

func failedResult(message string) Result {
	return Result{
		IsFaceDetected:    false,
		OverallConfidence: 0,
		Message:           message,
	}
}

// qualityFlags inspects a detection for trust problems. Flags
// downgrade confidence but never abort the analysis.
func qualityFlags(f detect.Face) []string {
	var flags []string
	if f.Score < lowConfidenceScore {
		flags = append(flags, FlagLowConfidence)
	}
	if missingFeatures(f.Landmarks) {
		flags = append(flags, FlagMissingFeatures)
	}
	if f.Area() < minFaceAreaRatio {
		flags = append(flags, FlagFaceTooSmall)
	}
	return flags
}

func missingFeatures(l detect.Landmarks) bool {
	eyes := l.LeftEye.Zero() || l.RightEye.Zero()
	mouth := l.MouthLeft.Zero() && l.MouthRight.Zero()
	return eyes || l.Nose.Zero() || mouth
}

// overallConfidence blends detection score (0-50), face size (0-30)
// and expression decisiveness (0-20) into a 0-100 score, capped at 85
// when any quality flag was raised.
func overallConfidence(f detect.Face, flags []string) int {
	score := f.Score * 50
	score += math.Min(f.Area()*100, 30)
	score += math.Min(f.Expressions.Variance()*1000, 20)

	confidence := int(math.Round(score))
	if len(flags) > 0 && confidence > flaggedCap {
		confidence = flaggedCap
	}
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

func buildVibeCheck(scores emotion.Scores, requested emotion.Label, dominant emotion.Label, dominantScore float64) *VibeCheck {
	if requested == "" {
		return &VibeCheck{
			DominantEmotion:   dominant,
			MatchScorePercent: percent(dominantScore),
			Passed:            true,
			Message:           fmt.Sprintf("You're radiating %s vibes ✨", dominant),
		}
	}

	matchScore := scores[requested]
	passed := matchScore > PassThreshold

	vc := &VibeCheck{
		RequestedEmotion:  requested,
		DominantEmotion:   dominant,
		MatchScorePercent: percent(matchScore),
		Passed:            passed,
	}
	if passed {
		vc.Message = fmt.Sprintf("Vibe check passed! Great %s energy 🎉", requested)
	} else {
		vc.Message = fmt.Sprintf("Hmm, not feeling the %s vibe yet 😅", requested)
	}
	return vc
}

func percent(p float64) int {
	return int(math.Round(p * 100))
}
