package matching

import (
	"testing"
	"time"

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

func TestFindMatchPicksHighestScore(t *testing.T) {
	e := New(DefaultConfig, nil)
	now := time.Now()

	target := mustProfile(t, "target", profile.Input{Username: "target", Age: 22, Interests: []string{"chess", "movies"}, ChatMode: "text"})
	weak := mustProfile(t, "weak", profile.Input{Username: "weak", Age: 22, Interests: []string{}, ChatMode: "text"})
	strong := mustProfile(t, "strong", profile.Input{Username: "strong", Age: 22, Interests: []string{"chess", "movies"}, ChatMode: "text"})

	e.Add(target, now)
	e.Add(weak, now)
	e.Add(strong, now)

	got, ok := e.FindMatch("target", now)
	if !ok {
		t.Fatalf("expected a match")
	}
	if got.PeerID != "strong" {
		t.Fatalf("matched %q, want %q", got.PeerID, "strong")
	}
}

func TestFindMatchRespectsModeStrictness(t *testing.T) {
	e := New(DefaultConfig, nil)
	now := time.Now()

	textPeer := mustProfile(t, "text-peer", profile.Input{Username: "text-peer", Age: 22, ChatMode: "text"})
	videoPeer := mustProfile(t, "video-peer", profile.Input{Username: "video-peer", Age: 22, ChatMode: "video"})

	e.Add(textPeer, now)
	e.Add(videoPeer, now)

	if _, ok := e.FindMatch("text-peer", now); ok {
		t.Fatalf("expected no match across chat modes")
	}
}

func TestFindMatchRespectsAgeRange(t *testing.T) {
	e := New(DefaultConfig, nil)
	now := time.Now()

	young := mustProfile(t, "young", profile.Input{Username: "young", Age: 18, ChatMode: "text", AgeRange: &profile.AgeRange{Min: 18, Max: 20}})
	old := mustProfile(t, "old", profile.Input{Username: "old", Age: 50, ChatMode: "text"})

	e.Add(young, now)
	e.Add(old, now)

	if _, ok := e.FindMatch("young", now); ok {
		t.Fatalf("expected no match outside age range")
	}
}

func TestFindMatchRespectsBlockList(t *testing.T) {
	e := New(DefaultConfig, nil)
	now := time.Now()

	a := mustProfile(t, "a", profile.Input{Username: "a", Age: 22, ChatMode: "text"})
	b := mustProfile(t, "b", profile.Input{Username: "b", Age: 22, ChatMode: "text"})

	e.Add(a, now)
	e.Add(b, now)
	e.Block("a", "b")

	if _, ok := e.FindMatch("a", now); ok {
		t.Fatalf("expected blocked peer to be excluded")
	}
}

func TestRecordMatchRemovesBothFromQueue(t *testing.T) {
	e := New(DefaultConfig, nil)
	now := time.Now()

	a := mustProfile(t, "a", profile.Input{Username: "a", Age: 22, ChatMode: "text"})
	b := mustProfile(t, "b", profile.Input{Username: "b", Age: 22, ChatMode: "text"})
	e.Add(a, now)
	e.Add(b, now)

	e.RecordMatch("a", "b")

	if e.Waiting("a") || e.Waiting("b") {
		t.Fatalf("expected both peers removed from the queue after a match")
	}
	if e.HistoryCount("a", "b") != 1 {
		t.Fatalf("history count = %d, want 1", e.HistoryCount("a", "b"))
	}
	if e.HistoryCount("b", "a") != 1 {
		t.Fatalf("history lookup should be order-independent")
	}
}

func TestFindMatchNoCandidatesBumpsAttempts(t *testing.T) {
	e := New(DefaultConfig, nil)
	now := time.Now()
	a := mustProfile(t, "a", profile.Input{Username: "a", Age: 22, ChatMode: "text"})
	e.Add(a, now)

	if _, ok := e.FindMatch("a", now); ok {
		t.Fatalf("expected no match with an empty queue")
	}

	e.mu.RLock()
	attempts := e.waiting["a"].Attempts
	e.mu.RUnlock()
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestFindMatchTieBreaksByPriorityThenWait(t *testing.T) {
	e := New(DefaultConfig, nil)
	now := time.Now()

	target := mustProfile(t, "target", profile.Input{Username: "target", Age: 22, ChatMode: "text"})
	lowPriority := mustProfile(t, "low", profile.Input{Username: "low", Age: 22, ChatMode: "text", Priority: 0.5})
	highPriority := mustProfile(t, "high", profile.Input{Username: "high", Age: 22, ChatMode: "text", Priority: 0.9})

	e.Add(target, now)
	e.Add(lowPriority, now)
	e.Add(highPriority, now)

	got, ok := e.FindMatch("target", now)
	if !ok {
		t.Fatalf("expected a match")
	}
	if got.PeerID != "high" {
		t.Fatalf("matched %q, want %q (higher priority should win an equal-score tie)", got.PeerID, "high")
	}
}

func TestAttemptsCarryForwardAcrossReAdd(t *testing.T) {
	e := New(DefaultConfig, nil)
	now := time.Now()
	a := mustProfile(t, "a", profile.Input{Username: "a", Age: 22, ChatMode: "text"})

	e.Add(a, now)
	if _, ok := e.FindMatch("a", now); ok {
		t.Fatalf("expected no match with an empty queue")
	}
	e.Remove("a")

	e.IncrementAttempts("a")
	e.Add(a, now)

	e.mu.RLock()
	attempts := e.waiting["a"].Attempts
	e.mu.RUnlock()
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2 (1 from the failed FindMatch, 1 from IncrementAttempts)", attempts)
	}
}

func TestQueueDepthAndAverageWait(t *testing.T) {
	e := New(DefaultConfig, nil)
	now := time.Now()
	a := mustProfile(t, "a", profile.Input{Username: "a", Age: 22, ChatMode: "text"})
	b := mustProfile(t, "b", profile.Input{Username: "b", Age: 22, ChatMode: "text"})

	e.Add(a, now.Add(-10*time.Second))
	e.Add(b, now.Add(-20*time.Second))

	if e.QueueDepth() != 2 {
		t.Fatalf("queue depth = %d, want 2", e.QueueDepth())
	}
	avg := e.AverageWait(now)
	if avg != 15*time.Second {
		t.Fatalf("average wait = %v, want 15s", avg)
	}
}
