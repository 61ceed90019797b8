// Package relay implements the signaling relay (spec.md section 4.F):
// pair-scoped chat message and WebRTC signaling delivery between two
// already-paired peers. The relay never interprets SDP or ICE payloads;
// it only routes them to the correct partner and keeps a best-effort
// in-memory transcript for the pair's lifetime.
package relay

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rustyguts/strangerchat/internal/events"
	"github.com/rustyguts/strangerchat/internal/pairing"
	"github.com/rustyguts/strangerchat/internal/protocol"
)

// ErrNotPaired is returned when a relay operation is attempted by a peer
// with no live pair.
var ErrNotPaired = errors.New("relay: peer is not paired")

// TypingTimeout is how long a "typing" indicator is held before the relay
// synthesizes a typingStopped event, matching a conventional chat-UI
// debounce.
const TypingTimeout = 3 * time.Second

// MaxRingMessages bounds the best-effort per-pair message history kept in
// memory; it is not authoritative and is discarded on teardown.
const MaxRingMessages = 200

// StoredMessage is one relayed chat message retained for the pair's
// lifetime.
type StoredMessage struct {
	SenderID  string
	Text      string
	MessageID string
	Timestamp int64
}

// Relay routes chat and signaling events between paired peers.
type Relay struct {
	pairs *pairing.Registry
	sink  events.Sink
	log   *slog.Logger

	mu      sync.Mutex
	ring    map[string][]StoredMessage      // roomID -> messages
	typing  map[string]*time.Timer          // peerID -> pending typingStopped timer
}

// New creates a Relay bound to pairs and sink. log may be nil, in which
// case slog.Default() is used.
func New(pairs *pairing.Registry, sink events.Sink, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		pairs:  pairs,
		sink:   sink,
		log:    log,
		ring:   make(map[string][]StoredMessage),
		typing: make(map[string]*time.Timer),
	}
}

func (r *Relay) partnerOf(peerID string) (pairing.Pair, string, error) {
	pair, ok := r.pairs.Get(peerID)
	if !ok {
		return pairing.Pair{}, "", ErrNotPaired
	}
	return pair, pair.Partner(peerID), nil
}

// SendMessage relays a chat message from fromPeer to its partner, echoing
// a message-sent acknowledgement back to the sender and retaining the
// message in the pair's ring buffer.
func (r *Relay) SendMessage(fromPeer, senderName, text string, now time.Time) (StoredMessage, error) {
	pair, partner, err := r.partnerOf(fromPeer)
	if err != nil {
		return StoredMessage{}, err
	}

	stored := StoredMessage{
		SenderID:  fromPeer,
		Text:      text,
		MessageID: uuid.NewString(),
		Timestamp: now.UnixMilli(),
	}
	r.appendRing(pair.RoomID, stored)

	outbound := protocol.Message{
		Type:       protocol.TypeMessageOut,
		Text:       text,
		MessageID:  stored.MessageID,
		Timestamp:  stored.Timestamp,
		SenderName: senderName,
		From:       fromPeer,
	}
	if err := r.sink.Send(partner, outbound); err != nil {
		r.log.Warn("failed to deliver message to partner", "peer_id", partner, "room_id", pair.RoomID, "error", err)
	}

	ack := protocol.Message{Type: protocol.TypeMessageSent, MessageID: stored.MessageID, Timestamp: stored.Timestamp}
	r.sink.Send(fromPeer, ack)

	return stored, nil
}

func (r *Relay) appendRing(roomID string, msg StoredMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := append(r.ring[roomID], msg)
	if len(buf) > MaxRingMessages {
		buf = buf[len(buf)-MaxRingMessages:]
	}
	r.ring[roomID] = buf
}

// History returns the retained messages for peerID's current pair, oldest
// first.
func (r *Relay) History(peerID string) ([]StoredMessage, error) {
	pair, ok := r.pairs.Get(peerID)
	if !ok {
		return nil, ErrNotPaired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StoredMessage, len(r.ring[pair.RoomID]))
	copy(out, r.ring[pair.RoomID])
	return out, nil
}

// DropHistory discards the ring buffer for roomID, called on pair
// teardown since message retention never outlives the live pair.
func (r *Relay) DropHistory(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ring, roomID)
}

// Typing forwards a typing indicator to fromPeer's partner and arms a
// timer that synthesizes typingStopped if the sender goes quiet.
func (r *Relay) Typing(fromPeer string) error {
	_, partner, err := r.partnerOf(fromPeer)
	if err != nil {
		return err
	}
	r.sink.Send(partner, protocol.Message{Type: protocol.TypePartnerTyping, From: fromPeer})

	r.mu.Lock()
	if existing, ok := r.typing[fromPeer]; ok {
		existing.Stop()
	}
	r.typing[fromPeer] = time.AfterFunc(TypingTimeout, func() {
		r.mu.Lock()
		delete(r.typing, fromPeer)
		r.mu.Unlock()
		if _, partner, err := r.partnerOf(fromPeer); err == nil {
			r.sink.Send(partner, protocol.Message{Type: protocol.TypePartnerTypingStopped, From: fromPeer})
		}
	})
	r.mu.Unlock()
	return nil
}

// TypingStopped cancels any pending auto-stop timer and forwards the stop
// event immediately.
func (r *Relay) TypingStopped(fromPeer string) error {
	_, partner, err := r.partnerOf(fromPeer)
	if err != nil {
		return err
	}
	r.mu.Lock()
	if existing, ok := r.typing[fromPeer]; ok {
		existing.Stop()
		delete(r.typing, fromPeer)
	}
	r.mu.Unlock()
	r.sink.Send(partner, protocol.Message{Type: protocol.TypePartnerTypingStopped, From: fromPeer})
	return nil
}

// TypingCount returns how many peers currently have an active typing
// indicator pending auto-stop, for stats/introspection.
func (r *Relay) TypingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.typing)
}

// StopTyping cancels any pending typing timer for peerID without sending
// an event, used on teardown to avoid firing a stray timer after the
// pair is gone.
func (r *Relay) StopTyping(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.typing[peerID]; ok {
		existing.Stop()
		delete(r.typing, peerID)
	}
}

// forwardSignal relays an opaque WebRTC signaling message to fromPeer's
// partner unchanged except for From/To, used by every webrtc-* handler.
// If msg.To was set by the sender and names someone other than the
// resolved partner, the message is rejected rather than silently
// re-targeted (spec.md section 8 scenario 6: a mistargeted "to" must
// fail, not be corrected).
func (r *Relay) forwardSignal(fromPeer string, msg protocol.Message) error {
	_, partner, err := r.partnerOf(fromPeer)
	if err != nil {
		return err
	}
	if msg.To != "" && msg.To != partner {
		return ErrNotPaired
	}
	msg.From = fromPeer
	msg.To = partner
	if err := r.sink.Send(partner, msg); err != nil {
		r.log.Warn("failed to deliver signaling message", "peer_id", partner, "type", msg.Type, "error", err)
		return err
	}
	return nil
}

// Offer forwards a WebRTC offer to the partner and moves the pair's
// CallRecord into CallOffered status, allocating a call ID if the sender
// didn't supply one and none exists yet (spec.md section 4.F).
func (r *Relay) Offer(fromPeer string, msg protocol.Message, now time.Time) error {
	pair, partner, err := r.partnerOf(fromPeer)
	if err != nil {
		return err
	}
	if msg.To != "" && msg.To != partner {
		return ErrNotPaired
	}
	rec, err := r.pairs.EnsureCall(pair.RoomID, msg.CallID, now)
	if err != nil {
		return err
	}
	if _, err := r.pairs.SetCallStatus(pair.RoomID, pairing.CallOffered, now); err != nil {
		return err
	}
	msg.Type = protocol.TypeWebRTCOffer
	msg.CallID = rec.CallID
	msg.RoomID = pair.RoomID
	return r.forwardSignal(fromPeer, msg)
}

// Answer forwards a WebRTC answer to the partner and moves the pair's
// CallRecord into CallAnswered status, synthesizing a record first if no
// offer was observed (spec.md section 4.F).
func (r *Relay) Answer(fromPeer string, msg protocol.Message, now time.Time) error {
	pair, partner, err := r.partnerOf(fromPeer)
	if err != nil {
		return err
	}
	if msg.To != "" && msg.To != partner {
		return ErrNotPaired
	}
	rec, err := r.pairs.EnsureCall(pair.RoomID, msg.CallID, now)
	if err != nil {
		return err
	}
	if _, err := r.pairs.SetCallStatus(pair.RoomID, pairing.CallAnswered, now); err != nil {
		return err
	}
	msg.Type = protocol.TypeWebRTCAnswer
	msg.CallID = rec.CallID
	msg.RoomID = pair.RoomID
	return r.forwardSignal(fromPeer, msg)
}

func (r *Relay) ICECandidate(fromPeer string, msg protocol.Message) error {
	msg.Type = protocol.TypeWebRTCICECandidate
	return r.forwardSignal(fromPeer, msg)
}

// End forwards a WebRTC hangup to the partner and, if a call record
// exists for the pair, marks it ended and clears it so a later offer
// starts a fresh call.
func (r *Relay) End(fromPeer string, msg protocol.Message, now time.Time) error {
	pair, partner, err := r.partnerOf(fromPeer)
	if err != nil {
		return err
	}
	if msg.To != "" && msg.To != partner {
		return ErrNotPaired
	}
	if _, ok := r.pairs.GetCall(pair.RoomID); ok {
		r.pairs.SetCallStatus(pair.RoomID, pairing.CallEnded, now)
		r.pairs.ClearCall(pair.RoomID)
	}
	msg.Type = protocol.TypeWebRTCEnd
	return r.forwardSignal(fromPeer, msg)
}

// Reject forwards a WebRTC call rejection to the partner and, if a call
// record exists for the pair, marks it rejected and clears it.
func (r *Relay) Reject(fromPeer string, msg protocol.Message, now time.Time) error {
	pair, partner, err := r.partnerOf(fromPeer)
	if err != nil {
		return err
	}
	if msg.To != "" && msg.To != partner {
		return ErrNotPaired
	}
	if _, ok := r.pairs.GetCall(pair.RoomID); ok {
		r.pairs.SetCallStatus(pair.RoomID, pairing.CallRejected, now)
		r.pairs.ClearCall(pair.RoomID)
	}
	msg.Type = protocol.TypeWebRTCReject
	return r.forwardSignal(fromPeer, msg)
}

// CallStatus, MediaToggle, and ScreenShareStatus forward ancillary call
// metadata opaquely; MediaToggle additionally updates the pair's
// CallRecord so stats/introspection reflect current audio/video state.
// Request forwards a video-call-request event opaquely to the partner,
// used when a peer asks to escalate an existing text pair to video.
func (r *Relay) Request(fromPeer string, msg protocol.Message) error {
	msg.Type = protocol.TypeVideoCallRequest
	return r.forwardSignal(fromPeer, msg)
}

func (r *Relay) CallStatus(fromPeer string, msg protocol.Message) error {
	msg.Type = protocol.TypeVideoCallStatus
	return r.forwardSignal(fromPeer, msg)
}

func (r *Relay) ScreenShareStatus(fromPeer string, msg protocol.Message) error {
	msg.Type = protocol.TypeScreenShareStatus
	return r.forwardSignal(fromPeer, msg)
}

func (r *Relay) MediaToggle(fromPeer string, audio, video bool, msg protocol.Message) error {
	pair, ok := r.pairs.Get(fromPeer)
	if !ok {
		return ErrNotPaired
	}
	r.pairs.SetMediaFlags(pair.RoomID, fromPeer, audio, video)
	msg.Type = protocol.TypeCallToggleMedia
	return r.forwardSignal(fromPeer, msg)
}
