// Package emotion defines the closed set of emotion labels the engine
// recognizes and the score distributions produced per detection.
package emotion

import "strings"

// Label identifies one of the recognized emotions.
type Label string

// The full label set, matching the classes of the expression model.
const (
	Neutral   Label = "neutral"
	Happy     Label = "happy"
	Sad       Label = "sad"
	Angry     Label = "angry"
	Fearful   Label = "fearful"
	Disgusted Label = "disgusted"
	Surprised Label = "surprised"
)

// All returns every recognized label in model-output order.
func All() []Label {
	return []Label{Neutral, Happy, Sad, Angry, Fearful, Disgusted, Surprised}
}

// ChallengePool returns the labels used as training-mode targets.
// Neutral is excluded: holding a neutral face is not a meaningful
// challenge, and the remaining low-signal labels match too rarely
// on webcam frames to be fun.
func ChallengePool() []Label {
	return []Label{Happy, Sad, Angry, Surprised}
}

// Parse normalizes a user-supplied emotion name to a Label.
// Returns false if the name is not in the recognized set.
func Parse(name string) (Label, bool) {
	l := Label(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range All() {
		if l == known {
			return known, true
		}
	}
	return "", false
}

// Equal compares two labels case-insensitively.
func Equal(a, b Label) bool {
	return strings.EqualFold(string(a), string(b))
}

// Scores maps each label to a probability in [0,1]. Produced per
// detection; values are a normalized-ish distribution but are not
// required to sum to exactly 1.
type Scores map[Label]float64

// Dominant returns the label with the highest score and that score.
// Ties break toward the model-output order of All. Returns ("", 0)
// for an empty distribution.
func (s Scores) Dominant() (Label, float64) {
	var best Label
	bestScore := -1.0
	for _, l := range All() {
		if score, ok := s[l]; ok && score > bestScore {
			best = l
			bestScore = score
		}
	}
	if bestScore < 0 {
		return "", 0
	}
	return best, bestScore
}

// Variance returns the population variance of the score values.
// A flat distribution (uncertain model) has variance near zero; a
// confident single-peak distribution scores much higher.
func (s Scores) Variance() float64 {
	if len(s) == 0 {
		return 0
	}

	mean := 0.0
	for _, v := range s {
		mean += v
	}
	mean /= float64(len(s))

	variance := 0.0
	for _, v := range s {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(s))
}

// Clone returns a copy of the distribution.
func (s Scores) Clone() Scores {
	out := make(Scores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
