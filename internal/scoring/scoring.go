// Package scoring implements the compatibility scorer (spec.md section
// 4.B): a pure function of two profiles plus a small amount of live
// matching-queue behavior that produces a single symmetric 0-100 score.
package scoring

import (
	"math"

	"github.com/rustyguts/strangerchat/internal/profile"
)

// Weights controls how much each scoring dimension contributes to the
// base 0-100 compatibility figure before the multiplicative adjustment is
// applied. The four weights must sum to 1.0.
type Weights struct {
	Interest  float64
	Demographic float64
	ChatMode  float64
	Behavior  float64
}

// DefaultWeights matches spec.md's default weighting: interests matter
// most, chat-mode agreement next, demographic fit third, queue behavior
// a small tiebreaker.
var DefaultWeights = Weights{
	Interest:    0.35,
	Demographic: 0.25,
	ChatMode:    0.30,
	Behavior:    0.10,
}

// Config bundles the weights and the tunable constants used by the
// adjustment terms. All fields have defaults in DefaultConfig and are
// overridable via internal/config.
type Config struct {
	Weights Weights

	// BaseScore is the score assigned before any term is added, i.e. the
	// score two profiles with nothing in common and no shared traits
	// would receive.
	BaseScore float64

	OptimalAgeDiff int     // age difference at or below which demographic term is maxed
	MaxAgeDiff     int     // age difference at or beyond which demographic term floors to 0
	SameGenderBonus float64 // additive adjustment when genders match (and neither is unspecified)
	GenderPreferenceBonus float64 // additive adjustment per direction where genderPreference is satisfied
	PremiumBonus    float64 // additive adjustment when either peer is premium
	VideoModeBonus  float64 // additive adjustment when both peers want video
	VideoTextPenalty float64 // additive adjustment when modes mismatch
	AgeRangeBonus    float64 // additive adjustment, split across both directions, when each is in the other's preferred range
	PriorityWaitSeconds float64 // wait time at or beyond which the behavior term maxes out
	MaxHistoryPenalty   float64 // ceiling on the match-history repeat penalty
	HistoryPenaltyPerMatch float64
	MaxAttemptsBoost    float64 // ceiling on the failed-attempts boost
	AttemptsBoostPerTry float64
}

// DefaultConfig matches spec.md's default constants where specified, and
// fills in the unspecified multiplicative bonuses with the values this
// repository standardizes on.
var DefaultConfig = Config{
	Weights:   DefaultWeights,
	BaseScore: 50,

	OptimalAgeDiff: 5,
	MaxAgeDiff:     25,

	SameGenderBonus:  0.10,
	GenderPreferenceBonus: 0.15,
	PremiumBonus:     0.15,
	VideoModeBonus:   0.10,
	VideoTextPenalty: 0.20,
	AgeRangeBonus:    0.20,

	PriorityWaitSeconds: 15,

	MaxHistoryPenalty:      0.30,
	HistoryPenaltyPerMatch: 0.10,

	MaxAttemptsBoost:    0.20,
	AttemptsBoostPerTry: 0.04,
}

// Input is the live matching-queue state fed into the behavior term, in
// addition to the two profiles being compared.
type Input struct {
	A, B profile.Profile

	// WaitSecondsA/B is how long each peer has been waiting in the queue.
	WaitSecondsA, WaitSecondsB float64

	// AttemptsA/B is how many earlier match rounds ended without a
	// partner for each peer (no eligible candidate, or the best one
	// below threshold), plus one per "next" re-entry.
	AttemptsA, AttemptsB int

	// HistoryCount is how many times these two peers have already been
	// paired with each other (spec.md's matchHistory, anti-repeat).
	HistoryCount int
}

// Score computes the 0-100 compatibility score for the pair described by
// in, using cfg. Score is symmetric: Score(cfg, Input{A: x, B: y, ...})
// equals Score(cfg, Input{A: y, B: x, ...}) for any symmetric WaitSeconds/
// Attempts assignment, since every term below treats A and B
// interchangeably.
func Score(cfg Config, in Input) float64 {
	interest := interestTerm(in.A, in.B)
	demographic := demographicTerm(cfg, in.A, in.B)
	chatMode := chatModeTerm(in.A, in.B)
	behavior := behaviorTerm(cfg, in)

	w := cfg.Weights
	weighted := w.Interest*interest + w.Demographic*demographic + w.ChatMode*chatMode + w.Behavior*behavior

	adjustment := adjustmentTerm(cfg, in)

	// Each term is on a 0-100 scale; halving the weighted sum means a
	// term adds at most its weight times 50 points to BaseScore.
	raw := (cfg.BaseScore + weighted/2) * (1 + adjustment)
	return clampRound(raw, 0, 100)
}

// interestTerm is 100 times the Jaccard similarity of the two interest
// sets (|A∩B|/|A∪B|), plus a flat 0.3 bonus when the intersection is
// non-empty, capped at 1.0 before scaling. 0 when both sides declared no
// interests.
func interestTerm(a, b profile.Profile) float64 {
	union := unionSize(a.Interests, b.Interests)
	if union == 0 {
		return 0
	}
	shared := len(a.SharedInterests(b))
	jaccard := float64(shared) / float64(union)
	if shared > 0 {
		jaccard += 0.3
	}
	if jaccard > 1 {
		jaccard = 1
	}
	return 100 * jaccard
}

func unionSize(a, b []string) int {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, i := range a {
		set[i] = struct{}{}
	}
	for _, i := range b {
		set[i] = struct{}{}
	}
	return len(set)
}

// demographicTerm is 100 when the age gap is within OptimalAgeDiff,
// linearly decaying to 0 at MaxAgeDiff and beyond.
func demographicTerm(cfg Config, a, b profile.Profile) float64 {
	diff := a.Age - b.Age
	if diff < 0 {
		diff = -diff
	}
	if diff <= cfg.OptimalAgeDiff {
		return 100
	}
	if diff >= cfg.MaxAgeDiff {
		return 0
	}
	span := float64(cfg.MaxAgeDiff - cfg.OptimalAgeDiff)
	return 100 * (1 - float64(diff-cfg.OptimalAgeDiff)/span)
}

// chatModeTerm is 100 when both peers want the same mode, 0 otherwise.
func chatModeTerm(a, b profile.Profile) float64 {
	if a.ChatMode == b.ChatMode {
		return 100
	}
	return 0
}

// behaviorTerm rewards peers who have waited longer, using the average
// wait across both peers so the term (and thus the whole score) stays
// symmetric. Failed attempts are not part of this term; they feed the
// attempts boost in adjustmentTerm.
func behaviorTerm(cfg Config, in Input) float64 {
	avgWait := (in.WaitSecondsA + in.WaitSecondsB) / 2
	if cfg.PriorityWaitSeconds <= 0 {
		return 0
	}
	waitFraction := avgWait / cfg.PriorityWaitSeconds
	if waitFraction > 1 {
		waitFraction = 1
	}
	return 100 * waitFraction
}

func adjustmentTerm(cfg Config, in Input) float64 {
	a, b := in.A, in.B
	adjustment := 0.0

	if a.Gender == b.Gender && a.Gender != profile.GenderUnspecified {
		adjustment += cfg.SameGenderBonus
	}

	if a.GenderPreference != profile.PreferenceAny && a.GenderPreference == profile.GenderPreference(b.Gender) {
		adjustment += cfg.GenderPreferenceBonus
	}
	if b.GenderPreference != profile.PreferenceAny && b.GenderPreference == profile.GenderPreference(a.Gender) {
		adjustment += cfg.GenderPreferenceBonus
	}

	if a.IsPremium() || b.IsPremium() {
		adjustment += cfg.PremiumBonus
	}

	switch {
	case a.ChatMode == profile.ModeVideo && b.ChatMode == profile.ModeVideo:
		adjustment += cfg.VideoModeBonus
	case a.ChatMode != b.ChatMode:
		adjustment -= cfg.VideoTextPenalty
	}

	half := cfg.AgeRangeBonus / 2
	if a.AgeRange.InRange(b.Age) {
		adjustment += half
	}
	if b.AgeRange.InRange(a.Age) {
		adjustment += half
	}

	if in.HistoryCount > 0 {
		penalty := cfg.HistoryPenaltyPerMatch * float64(in.HistoryCount)
		if penalty > cfg.MaxHistoryPenalty {
			penalty = cfg.MaxHistoryPenalty
		}
		adjustment -= penalty
	}

	avgAttempts := float64(in.AttemptsA+in.AttemptsB) / 2
	boost := cfg.AttemptsBoostPerTry * avgAttempts
	if boost > cfg.MaxAttemptsBoost {
		boost = cfg.MaxAttemptsBoost
	}
	adjustment += boost

	return adjustment
}

func clampRound(v, lo, hi float64) float64 {
	rounded := math.Round(v*10) / 10
	if rounded < lo {
		return lo
	}
	if rounded > hi {
		return hi
	}
	return rounded
}
