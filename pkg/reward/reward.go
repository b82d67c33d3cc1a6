// Package reward computes MOOD token payouts from verification
// results. Everything here is pure and deterministic so payouts can
// be recomputed and audited.
package reward

import "math"

// Bonus amounts. The exact-match bonus and the vibe bonus are
// mutually exclusive: a partial match is only rewarded when the
// capture missed the exact target.
const (
	ExactMatchBonus = 50

	StrongVibeBonus     = 30
	StrongVibeThreshold = 70

	MildVibeBonus     = 15
	MildVibeThreshold = 40
)

// Compute maps a capture's verification outcome to a token amount.
//
//	base       = confidence/10            (0-10)
//	exactBonus = 50 when the detected emotion equals the target
//	vibeBonus  = 30 for matchScore > 70, 15 for matchScore > 40,
//	             applied only when the match was not exact
//
// The total is rounded to one decimal place.
func Compute(confidence, matchScorePercent int, isExactMatch bool) float64 {
	base := float64(confidence) / 10

	bonus := 0.0
	switch {
	case isExactMatch:
		bonus = ExactMatchBonus
	case matchScorePercent > StrongVibeThreshold:
		bonus = StrongVibeBonus
	case matchScorePercent > MildVibeThreshold:
		bonus = MildVibeBonus
	}

	return round1(base + bonus)
}

// Session bonus coefficients for training mode.
const (
	timeBonusPerSecond = 2
	accuracyBonusScale = 100 * 0.5
)

// SessionBonus computes the end-of-training bonus: 2 points per
// second left on the clock plus an accuracy-weighted bonus over the
// challenges actually attempted.
func SessionBonus(timeRemaining, correctCount, lastChallengeIndex int) int {
	attempted := lastChallengeIndex
	if attempted < 1 {
		attempted = 1
	}
	accuracy := float64(correctCount) / float64(attempted)
	return int(math.Round(float64(timeRemaining*timeBonusPerSecond) + accuracy*accuracyBonusScale))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
