package scoring

import (
	"testing"

	"github.com/rustyguts/strangerchat/internal/profile"
)

func mustProfile(t *testing.T, id string, in profile.Input) profile.Profile {
	t.Helper()
	p, err := profile.New(id, in)
	if err != nil {
		t.Fatalf("profile.New(%s): %v", id, err)
	}
	return p
}

func TestScoreIsSymmetric(t *testing.T) {
	a := mustProfile(t, "a", profile.Input{
		Username: "a", Gender: "male", Age: 22, Interests: []string{"movies", "chess"},
		ChatMode: "text", GenderPreference: "female", Priority: 1,
	})
	b := mustProfile(t, "b", profile.Input{
		Username: "b", Gender: "female", Age: 25, Interests: []string{"chess", "hiking"},
		ChatMode: "text", GenderPreference: "male", Priority: 2,
	})

	forward := Score(DefaultConfig, Input{A: a, B: b, WaitSecondsA: 4, WaitSecondsB: 9, AttemptsA: 1, AttemptsB: 2, HistoryCount: 1})
	backward := Score(DefaultConfig, Input{A: b, B: a, WaitSecondsA: 9, WaitSecondsB: 4, AttemptsA: 2, AttemptsB: 1, HistoryCount: 1})

	if forward != backward {
		t.Fatalf("score not symmetric: forward=%v backward=%v", forward, backward)
	}
}

func TestScoreWithinBounds(t *testing.T) {
	a := mustProfile(t, "a", profile.Input{Username: "a", Age: 13, ChatMode: "text"})
	b := mustProfile(t, "b", profile.Input{Username: "b", Age: 120, ChatMode: "video"})

	got := Score(DefaultConfig, Input{A: a, B: b, HistoryCount: 10, AttemptsA: 99, AttemptsB: 99})
	if got < 0 || got > 100 {
		t.Fatalf("score out of bounds: %v", got)
	}
}

func TestSharedInterestsIncreaseScore(t *testing.T) {
	base := mustProfile(t, "a", profile.Input{Username: "a", Age: 20, ChatMode: "text"})
	overlap := mustProfile(t, "b", profile.Input{Username: "b", Age: 20, ChatMode: "text", Interests: []string{"skiing"}})
	noOverlap := mustProfile(t, "c", profile.Input{Username: "c", Age: 20, ChatMode: "text", Interests: []string{}})
	base = base.WithChatMode(profile.ModeText)

	baseWithInterests := mustProfile(t, "a2", profile.Input{Username: "a2", Age: 20, ChatMode: "text", Interests: []string{"skiing", "chess"}})

	scoreOverlap := Score(DefaultConfig, Input{A: baseWithInterests, B: overlap})
	scoreNoOverlap := Score(DefaultConfig, Input{A: baseWithInterests, B: noOverlap})

	if scoreOverlap <= 50 {
		t.Fatalf("expected shared-interest score above base, got %v", scoreOverlap)
	}
	if scoreOverlap <= scoreNoOverlap {
		t.Fatalf("expected shared interests to raise the score: overlap=%v noOverlap=%v", scoreOverlap, scoreNoOverlap)
	}
}

func TestVideoTextMismatchPenalized(t *testing.T) {
	text := mustProfile(t, "a", profile.Input{Username: "a", Age: 20, ChatMode: "text"})
	video := mustProfile(t, "b", profile.Input{Username: "b", Age: 20, ChatMode: "video"})
	sameMode := mustProfile(t, "c", profile.Input{Username: "c", Age: 20, ChatMode: "text"})

	mismatch := Score(DefaultConfig, Input{A: text, B: video})
	match := Score(DefaultConfig, Input{A: text, B: sameMode})

	if mismatch >= match {
		t.Fatalf("expected mode mismatch to score lower: mismatch=%v match=%v", mismatch, match)
	}
}

func TestHistoryPenaltyReducesScore(t *testing.T) {
	a := mustProfile(t, "a", profile.Input{Username: "a", Age: 20, ChatMode: "text"})
	b := mustProfile(t, "b", profile.Input{Username: "b", Age: 20, ChatMode: "text"})

	fresh := Score(DefaultConfig, Input{A: a, B: b})
	repeat := Score(DefaultConfig, Input{A: a, B: b, HistoryCount: 3})

	if repeat >= fresh {
		t.Fatalf("expected history penalty to reduce score: fresh=%v repeat=%v", fresh, repeat)
	}
}

func TestWeightsSumToOne(t *testing.T) {
	w := DefaultWeights
	sum := w.Interest + w.Demographic + w.ChatMode + w.Behavior
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("weights sum to %v, want 1.0", sum)
	}
}
