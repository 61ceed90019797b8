// Package matching implements the matching engine (spec.md section 4.C):
// a queue of waiting peers, eligibility filtering, and live compatibility
// scoring to pick the best available partner for a peer.
package matching

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rustyguts/strangerchat/internal/profile"
	"github.com/rustyguts/strangerchat/internal/scoring"
)

// VideoMinScore and TextMinScore are the default per-mode compatibility
// thresholds below which a candidate is not considered a match, per
// spec.md section 4.C ("score >= threshold (70 for video, 65 for
// text)").
const (
	VideoMinScore = 70.0
	TextMinScore  = 65.0
)

// WaitingEntry is one peer's record in the matching queue.
type WaitingEntry struct {
	Profile   profile.Profile
	EnqueuedAt time.Time
	Attempts  int
}

// Config controls the engine's scoring and eligibility behavior.
type Config struct {
	Scoring       scoring.Config
	VideoMinScore float64
	TextMinScore  float64
}

// DefaultConfig uses the package's default scoring configuration and
// minimum score thresholds.
var DefaultConfig = Config{
	Scoring:       scoring.DefaultConfig,
	VideoMinScore: VideoMinScore,
	TextMinScore:  TextMinScore,
}

// threshold returns the minimum score required for mode to count as a
// match.
func (c Config) threshold(mode profile.ChatMode) float64 {
	if mode == profile.ModeVideo {
		return c.VideoMinScore
	}
	return c.TextMinScore
}

// Engine holds the waiting queue, block lists, and match history for the
// lifetime of the process. All exported methods are safe for concurrent
// use.
type Engine struct {
	cfg Config
	log *slog.Logger

	mu       sync.RWMutex
	waiting  map[string]*WaitingEntry
	blocked  map[string]map[string]struct{} // peerID -> set of blocked peer IDs
	history  map[string]int                 // unordered pair key -> match count
	attempts map[string]int                 // peerID -> attempts carried across queue membership
}

// New creates an Engine. log may be nil, in which case slog.Default() is
// used.
func New(cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		log:      log,
		waiting:  make(map[string]*WaitingEntry),
		blocked:  make(map[string]map[string]struct{}),
		history:  make(map[string]int),
		attempts: make(map[string]int),
	}
}

// Add enqueues p as waiting for a match, replacing any existing entry for
// the same peer (e.g. on mode re-search). The entry's Attempts carries
// forward any attempts already recorded for this peer (spec.md section
// 4.D: "next ... re-enters pool with incremented attempts").
func (e *Engine) Add(p profile.Profile, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.waiting[p.ID] = &WaitingEntry{Profile: p, EnqueuedAt: now, Attempts: e.attempts[p.ID]}
	e.log.Debug("peer entered matching queue", "peer_id", p.ID, "chat_mode", p.ChatMode, "attempts", e.attempts[p.ID])
}

// IncrementAttempts bumps peerID's carried-forward attempts counter by
// one, for use on transitions (like "next") that re-enter the queue
// without having gone through a failed FindMatch in this membership.
func (e *Engine) IncrementAttempts(peerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts[peerID]++
}

// Remove removes peerID from the waiting queue, if present. It is
// idempotent: removing a peer not in the queue is a no-op.
func (e *Engine) Remove(peerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.waiting, peerID)
}

// Waiting reports whether peerID is currently in the queue.
func (e *Engine) Waiting(peerID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.waiting[peerID]
	return ok
}

// Block records that peerID never wants to be matched with blockedID
// again, for the duration of the process.
func (e *Engine) Block(peerID, blockedID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	set, ok := e.blocked[peerID]
	if !ok {
		set = make(map[string]struct{})
		e.blocked[peerID] = set
	}
	set[blockedID] = struct{}{}
}

func (e *Engine) isBlocked(a, b string) bool {
	if set, ok := e.blocked[a]; ok {
		if _, blocked := set[b]; blocked {
			return true
		}
	}
	if set, ok := e.blocked[b]; ok {
		if _, blocked := set[a]; blocked {
			return true
		}
	}
	return false
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}

// HistoryCount returns how many times a and b have previously been
// matched with each other.
func (e *Engine) HistoryCount(a, b string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history[pairKey(a, b)]
}

// RecordMatch increments the match-history counter for a and b and
// removes both from the waiting queue. Callers should invoke this once a
// match has actually been committed (spec.md section 4.E).
func (e *Engine) RecordMatch(a, b string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history[pairKey(a, b)]++
	delete(e.waiting, a)
	delete(e.waiting, b)
	delete(e.attempts, a)
	delete(e.attempts, b)
}

// Candidate is one scored match possibility returned by FindMatch's
// internal ranking, exposed for introspection/testing.
type Candidate struct {
	PeerID string
	Score  float64
}

// FindMatch scans the waiting queue for the best eligible partner for
// peerID at time now, returning the winning candidate and true, or the
// zero Candidate and false if no eligible candidate scores at or above
// the configured minimum. Eligibility requires: both sides want the same
// chat mode, neither side has blocked the other, and each side's age
// falls within the other's declared age range.
func (e *Engine) FindMatch(peerID string, now time.Time) (Candidate, bool) {
	e.mu.RLock()
	self, ok := e.waiting[peerID]
	if !ok {
		e.mu.RUnlock()
		return Candidate{}, false
	}

	type scored struct {
		id          string
		score       float64
		priority    float64
		enqueuedAt  time.Time
	}
	var ranked []scored
	for otherID, other := range e.waiting {
		if otherID == peerID {
			continue
		}
		if !eligible(self, other) {
			continue
		}
		if e.isBlocked(peerID, otherID) {
			continue
		}
		s := scoring.Score(e.cfg.Scoring, scoring.Input{
			A:            self.Profile,
			B:            other.Profile,
			WaitSecondsA: now.Sub(self.EnqueuedAt).Seconds(),
			WaitSecondsB: now.Sub(other.EnqueuedAt).Seconds(),
			AttemptsA:    self.Attempts,
			AttemptsB:    other.Attempts,
			HistoryCount: e.history[pairKey(peerID, otherID)],
		})
		ranked = append(ranked, scored{id: otherID, score: s, priority: other.Profile.Priority, enqueuedAt: other.EnqueuedAt})
	}
	e.mu.RUnlock()

	if len(ranked) == 0 {
		e.bumpAttempts(peerID)
		return Candidate{}, false
	}

	// Tie-breaks are by greater priority, then longer wait, then
	// lexicographic peer id (spec.md section 4.B).
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].priority != ranked[j].priority {
			return ranked[i].priority > ranked[j].priority
		}
		if !ranked[i].enqueuedAt.Equal(ranked[j].enqueuedAt) {
			return ranked[i].enqueuedAt.Before(ranked[j].enqueuedAt)
		}
		return ranked[i].id < ranked[j].id
	})

	best := ranked[0]
	if best.score < e.cfg.threshold(self.Profile.ChatMode) {
		e.bumpAttempts(peerID)
		return Candidate{}, false
	}
	return Candidate{PeerID: best.id, Score: best.score}, true
}

func (e *Engine) bumpAttempts(peerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.waiting[peerID]; ok {
		entry.Attempts++
		e.attempts[peerID] = entry.Attempts
	}
}

func eligible(self, other *WaitingEntry) bool {
	if self.Profile.ChatMode != other.Profile.ChatMode {
		return false
	}
	if !self.Profile.AgeRange.InRange(other.Profile.Age) {
		return false
	}
	if !other.Profile.AgeRange.InRange(self.Profile.Age) {
		return false
	}
	if self.Profile.GenderPreference != profile.PreferenceAny &&
		self.Profile.GenderPreference != profile.GenderPreference(other.Profile.Gender) {
		return false
	}
	if other.Profile.GenderPreference != profile.PreferenceAny &&
		other.Profile.GenderPreference != profile.GenderPreference(self.Profile.Gender) {
		return false
	}
	return true
}

// ExpiredPeers returns the IDs of every waiting peer whose time in the
// queue is at or beyond maxWait, for the search-timeout sweep (spec.md
// section 4.C: "a timeout (default 45s, configurable) elapses ... ->
// SearchTimeout"). It does not remove the peers; callers decide whether
// to time them out before a later rematch attempt sees them.
func (e *Engine) ExpiredPeers(maxWait time.Duration, now time.Time) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []string
	for id, entry := range e.waiting {
		if now.Sub(entry.EnqueuedAt) >= maxWait {
			out = append(out, id)
		}
	}
	return out
}

// QueueDepth returns the number of peers currently waiting, for
// introspection.
func (e *Engine) QueueDepth() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.waiting)
}

// AverageWait returns the mean time-in-queue across all waiting peers at
// now, or 0 if the queue is empty.
func (e *Engine) AverageWait(now time.Time) time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.waiting) == 0 {
		return 0
	}
	var total time.Duration
	for _, entry := range e.waiting {
		total += now.Sub(entry.EnqueuedAt)
	}
	return total / time.Duration(len(e.waiting))
}
