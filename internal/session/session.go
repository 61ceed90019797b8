// Package session implements the per-peer connection state machine and
// the session registry (spec.md section 4.D): every connected peer has
// exactly one Session, serialized by its own mutex, tracked status, and
// (once paired) a reference to its partner's ID.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/rustyguts/strangerchat/internal/profile"
)

// Status is a peer's place in the connection lifecycle (spec.md section
// 3): connected -> ready -> searching -> chatting -> terminal, with
// chatting able to return to ready (via "next") or searching never
// reached directly from chatting.
type Status int

const (
	// StatusConnected is the transient state between transport handshake
	// and a successful register event.
	StatusConnected Status = iota
	// StatusReady is registered but not currently searching or paired.
	StatusReady
	// StatusSearching is enqueued in the matching engine.
	StatusSearching
	// StatusChatting is paired with a live partner.
	StatusChatting
	// StatusTerminal is disconnected; the session is kept briefly for
	// teardown bookkeeping before removal.
	StatusTerminal
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusReady:
		return "ready"
	case StatusSearching:
		return "searching"
	case StatusChatting:
		return "chatting"
	case StatusTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// ErrNotRegistered is returned by operations that require a profile when
// none has been set yet.
var ErrNotRegistered = errors.New("session: peer is not registered")

// ErrInvalidTransition is returned when an operation is attempted from a
// status that does not permit it.
var ErrInvalidTransition = errors.New("session: invalid status transition")

// Session is one connected peer's live state. Outside this package,
// fields are changed through the transition functions below and read
// through View (all of which take the per-session mutex embedded here),
// or read while the caller holds the mutex via Manager.LockBoth.
type Session struct {
	mu sync.Mutex

	ID         string
	Profile    *profile.Profile
	Status     Status
	PartnerID  string
	RoomID     string
	CreatedAt  time.Time
	LastActive time.Time
}

// Lock serializes all operations against one session, per spec.md
// section 5 ("each connected peer's events... processed one at a time").
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Manager is the registry of all live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Connect creates a new session for id in StatusConnected, replacing any
// prior session under the same id.
func (m *Manager) Connect(id string, now time.Time) *Session {
	s := &Session{ID: id, Status: StatusConnected, CreatedAt: now, LastActive: now}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s
}

// Get returns the session for id, if one exists.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove deletes the session for id from the registry.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Snapshot returns a shallow copy of every live session pointer, safe to
// range over without holding the registry lock.
func (m *Manager) Snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Register assigns p to s and transitions s from StatusConnected to
// StatusReady. Re-registering an already-ready session (no-op on mode
// changes handled upstream) is permitted.
func Register(s *Session, p profile.Profile, now time.Time) error {
	s.Lock()
	defer s.Unlock()
	if s.Status != StatusConnected && s.Status != StatusReady {
		return errInvalid(s.Status, StatusReady)
	}
	s.Profile = &p
	s.Status = StatusReady
	s.LastActive = now
	return nil
}

// BeginSearch transitions s from StatusReady to StatusSearching.
func BeginSearch(s *Session, now time.Time) error {
	s.Lock()
	defer s.Unlock()
	if s.Profile == nil {
		return ErrNotRegistered
	}
	if s.Status != StatusReady {
		return errInvalid(s.Status, StatusSearching)
	}
	s.Status = StatusSearching
	s.LastActive = now
	return nil
}

// CancelSearch transitions s from StatusSearching back to StatusReady.
func CancelSearch(s *Session, now time.Time) error {
	s.Lock()
	defer s.Unlock()
	if s.Status != StatusSearching {
		return errInvalid(s.Status, StatusReady)
	}
	s.Status = StatusReady
	s.LastActive = now
	return nil
}

// BeginChat transitions s from StatusSearching to StatusChatting with
// partnerID as its live partner.
func BeginChat(s *Session, partnerID, roomID string, now time.Time) error {
	s.Lock()
	defer s.Unlock()
	if s.Status != StatusSearching {
		return errInvalid(s.Status, StatusChatting)
	}
	s.Status = StatusChatting
	s.PartnerID = partnerID
	s.RoomID = roomID
	s.LastActive = now
	return nil
}

// EndChat transitions s from StatusChatting back to StatusReady, clearing
// the partner reference. It is valid to call this even if the partner has
// already torn down on its side.
func EndChat(s *Session, now time.Time) error {
	s.Lock()
	defer s.Unlock()
	if s.Status != StatusChatting {
		return errInvalid(s.Status, StatusReady)
	}
	s.Status = StatusReady
	s.PartnerID = ""
	s.RoomID = ""
	s.LastActive = now
	return nil
}

// Disconnect transitions s to StatusTerminal from any state.
func Disconnect(s *Session, now time.Time) {
	s.Lock()
	defer s.Unlock()
	s.Status = StatusTerminal
	s.LastActive = now
}

// Touch refreshes s's LastActive timestamp without changing its status,
// used on every inbound event to track liveness for the inactivity sweep.
func Touch(s *Session, now time.Time) {
	s.Lock()
	s.LastActive = now
	s.Unlock()
}

// Snapshot is a consistent, lock-free-to-read copy of a session's fields
// for callers that need to inspect state without holding the session
// locked across other work.
type Snapshot struct {
	ID         string
	Profile    *profile.Profile
	Status     Status
	PartnerID  string
	RoomID     string
	LastActive time.Time
}

// View takes a point-in-time snapshot of s.
func View(s *Session) Snapshot {
	s.Lock()
	defer s.Unlock()
	return Snapshot{
		ID:         s.ID,
		Profile:    s.Profile,
		Status:     s.Status,
		PartnerID:  s.PartnerID,
		RoomID:     s.RoomID,
		LastActive: s.LastActive,
	}
}

// InactivitySweep returns the IDs of every non-terminal session whose
// LastActive is at least threshold before now. Callers are expected to
// disconnect and remove the returned sessions.
func (m *Manager) InactivitySweep(threshold time.Duration, now time.Time) []string {
	var stale []string
	for _, s := range m.Snapshot() {
		v := View(s)
		if v.Status == StatusTerminal {
			continue
		}
		if now.Sub(v.LastActive) >= threshold {
			stale = append(stale, v.ID)
		}
	}
	return stale
}

// LockBoth locks the two sessions identified by aID and bID in a
// consistent global order (lexicographic by ID) to prevent deadlock when
// two peers are torn down or paired concurrently (spec.md section 5). It
// returns an unlock function the caller must invoke exactly once. If
// aID == bID, the session is locked only once and unlocked once.
func (m *Manager) LockBoth(aID, bID string) (a, b *Session, unlock func(), ok bool) {
	a, okA := m.Get(aID)
	b, okB := m.Get(bID)
	if !okA || !okB {
		return nil, nil, func() {}, false
	}
	if aID == bID {
		a.Lock()
		return a, a, func() { a.Unlock() }, true
	}
	first, second := a, b
	if bID < aID {
		first, second = b, a
	}
	first.Lock()
	second.Lock()
	return a, b, func() {
		second.Unlock()
		first.Unlock()
	}, true
}

func errInvalid(from, to Status) error {
	return &transitionError{from: from, to: to}
}

type transitionError struct {
	from, to Status
}

func (e *transitionError) Error() string {
	return "session: cannot transition from " + e.from.String() + " to " + e.to.String()
}

func (e *transitionError) Unwrap() error { return ErrInvalidTransition }
