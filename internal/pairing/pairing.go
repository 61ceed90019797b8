// Package pairing implements the pair and room registry (spec.md section
// 4.E): once the matching engine picks two waiting peers, this package
// owns the resulting Pair and its optional WebRTC CallRecord for as long
// as the two peers remain connected to each other.
package pairing

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotPaired is returned when an operation references a peer or room
// that has no live pair.
var ErrNotPaired = errors.New("pairing: no live pair")

// ErrAlreadyPaired is returned by Commit when either peer is already in a
// live pair.
var ErrAlreadyPaired = errors.New("pairing: peer already paired")

// CallStatus is the lifecycle state of a pair's WebRTC call, independent
// of the underlying text chat (spec.md section 4.F: video call setup is
// layered on top of an existing pair, not a replacement for it).
type CallStatus int

const (
	CallNone CallStatus = iota
	CallPending
	CallOffered
	CallAnswered
	CallEnded
	CallRejected
)

func (c CallStatus) String() string {
	switch c {
	case CallNone:
		return "none"
	case CallPending:
		return "pending"
	case CallOffered:
		return "offered"
	case CallAnswered:
		return "answered"
	case CallEnded:
		return "ended"
	case CallRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Pair is a live, symmetric 1:1 connection between two peers. Neither
// side is an "owner"; PeerA/PeerB ordering only fixes a canonical
// representation for the pair key.
type Pair struct {
	RoomID    string
	PeerA     string
	PeerB     string
	CreatedAt time.Time
}

// Partner returns the other peer in the pair, or "" if peerID is not one
// of the two.
func (p Pair) Partner(peerID string) string {
	switch peerID {
	case p.PeerA:
		return p.PeerB
	case p.PeerB:
		return p.PeerA
	default:
		return ""
	}
}

// CallRecord tracks one pair's WebRTC call/video-mode layer.
type CallRecord struct {
	CallID      string
	RoomID      string
	Status      CallStatus
	VideoA      bool
	VideoB      bool
	AudioA      bool
	AudioB      bool
	RequestedAt time.Time
	StartedAt   time.Time
	EndedAt     time.Time
}

// Registry holds every live Pair and its CallRecord, keyed by room and by
// peer. It does not know about sessions or transports; callers are
// expected to hold the relevant session locks (session.Manager.LockBoth)
// before calling Commit or Teardown, per spec.md section 5's cross-peer
// locking discipline.
type Registry struct {
	mu         sync.RWMutex
	pairs      map[string]*Pair       // roomID -> pair
	peerRoom   map[string]string      // peerID -> roomID
	calls      map[string]*CallRecord // roomID -> call record
}

// NewRegistry creates an empty pair registry.
func NewRegistry() *Registry {
	return &Registry{
		pairs:    make(map[string]*Pair),
		peerRoom: make(map[string]string),
		calls:    make(map[string]*CallRecord),
	}
}

// Commit creates a new Pair between peerA and peerB with a fresh,
// unpredictable room ID (spec.md section 4.E.3). It fails with
// ErrAlreadyPaired if either peer already has a live pair.
func (r *Registry) Commit(peerA, peerB string, now time.Time) (Pair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peerRoom[peerA]; ok {
		return Pair{}, ErrAlreadyPaired
	}
	if _, ok := r.peerRoom[peerB]; ok {
		return Pair{}, ErrAlreadyPaired
	}

	pair := &Pair{
		RoomID:    uuid.NewString(),
		PeerA:     peerA,
		PeerB:     peerB,
		CreatedAt: now,
	}
	r.pairs[pair.RoomID] = pair
	r.peerRoom[peerA] = pair.RoomID
	r.peerRoom[peerB] = pair.RoomID
	return *pair, nil
}

// Get returns the pair associated with peerID, if one exists.
func (r *Registry) Get(peerID string) (Pair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.peerRoom[peerID]
	if !ok {
		return Pair{}, false
	}
	pair, ok := r.pairs[roomID]
	if !ok {
		return Pair{}, false
	}
	return *pair, true
}

// GetByRoom returns the pair for roomID, if one exists.
func (r *Registry) GetByRoom(roomID string) (Pair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pair, ok := r.pairs[roomID]
	if !ok {
		return Pair{}, false
	}
	return *pair, true
}

// Teardown removes the pair containing peerID (and its call record, if
// any), returning the pair that was torn down so the caller can notify
// the partner. ErrNotPaired is returned if peerID has no live pair.
func (r *Registry) Teardown(peerID string) (Pair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.peerRoom[peerID]
	if !ok {
		return Pair{}, ErrNotPaired
	}
	pair, ok := r.pairs[roomID]
	if !ok {
		return Pair{}, ErrNotPaired
	}

	delete(r.pairs, roomID)
	delete(r.calls, roomID)
	delete(r.peerRoom, pair.PeerA)
	delete(r.peerRoom, pair.PeerB)
	return *pair, nil
}

// ActivePairs returns the number of live pairs.
func (r *Registry) ActivePairs() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairs)
}

// StartCall creates a CallRecord for roomID in CallPending status. It
// fails with ErrNotPaired if roomID has no live pair.
func (r *Registry) StartCall(roomID string, now time.Time) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pairs[roomID]; !ok {
		return CallRecord{}, ErrNotPaired
	}
	rec := &CallRecord{
		CallID:      uuid.NewString(),
		RoomID:      roomID,
		Status:      CallPending,
		RequestedAt: now,
	}
	r.calls[roomID] = rec
	return *rec, nil
}

// EnsureCall returns roomID's existing CallRecord, or creates one if none
// exists yet (spec.md section 4.F: answer may arrive without a preceding
// offer having been observed, and must still synthesize a record). callID
// is used for a newly created record when non-empty; otherwise one is
// generated. It fails with ErrNotPaired if roomID has no live pair.
func (r *Registry) EnsureCall(roomID, callID string, now time.Time) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pairs[roomID]; !ok {
		return CallRecord{}, ErrNotPaired
	}
	if rec, ok := r.calls[roomID]; ok {
		return *rec, nil
	}
	if callID == "" {
		callID = uuid.NewString()
	}
	rec := &CallRecord{
		CallID:      callID,
		RoomID:      roomID,
		Status:      CallNone,
		RequestedAt: now,
	}
	r.calls[roomID] = rec
	return *rec, nil
}

// ClearCall removes roomID's call record, if any, so a subsequent offer
// starts a fresh call rather than reusing a finished one.
func (r *Registry) ClearCall(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calls, roomID)
}

// GetCall returns the call record for roomID, if one exists.
func (r *Registry) GetCall(roomID string) (CallRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.calls[roomID]
	if !ok {
		return CallRecord{}, false
	}
	return *rec, true
}

// SetCallStatus transitions the call for roomID to status, stamping
// StartedAt/EndedAt as appropriate.
func (r *Registry) SetCallStatus(roomID string, status CallStatus, now time.Time) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.calls[roomID]
	if !ok {
		return CallRecord{}, ErrNotPaired
	}
	rec.Status = status
	switch status {
	case CallAnswered:
		if rec.StartedAt.IsZero() {
			rec.StartedAt = now
		}
	case CallEnded, CallRejected:
		rec.EndedAt = now
	}
	return *rec, nil
}

// SetMediaFlags updates the audio/video toggle state one side of roomID's
// call is reporting.
func (r *Registry) SetMediaFlags(roomID, peerID string, audio, video bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pair, ok := r.pairs[roomID]
	if !ok {
		return ErrNotPaired
	}
	rec, ok := r.calls[roomID]
	if !ok {
		return ErrNotPaired
	}
	switch peerID {
	case pair.PeerA:
		rec.AudioA, rec.VideoA = audio, video
	case pair.PeerB:
		rec.AudioB, rec.VideoB = audio, video
	default:
		return ErrNotPaired
	}
	return nil
}

// ActiveCalls returns the number of calls currently in CallOffered or
// CallAnswered status (spec.md section 4.G: "active calls (state answered
// or offered)").
func (r *Registry) ActiveCalls() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.calls {
		if c.Status == CallOffered || c.Status == CallAnswered {
			n++
		}
	}
	return n
}
