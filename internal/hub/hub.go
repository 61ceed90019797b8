// Package hub wires components A-G behind one per-peer serialized entry
// point (spec.md section 5): every inbound protocol.Message for a given
// peer is dispatched through Hub.Dispatch, which relies on the transport
// delivering each peer's events from a single goroutine; each session
// transition takes that session's own lock, and cross-peer operations
// (pairing, teardown) use the session manager's two-peer lock ordering
// to avoid deadlock.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyguts/strangerchat/internal/events"
	"github.com/rustyguts/strangerchat/internal/matching"
	"github.com/rustyguts/strangerchat/internal/pairing"
	"github.com/rustyguts/strangerchat/internal/profile"
	"github.com/rustyguts/strangerchat/internal/protocol"
	"github.com/rustyguts/strangerchat/internal/relay"
	"github.com/rustyguts/strangerchat/internal/session"
	"github.com/rustyguts/strangerchat/internal/stats"
)

// Hub is the cross-component orchestrator: it owns no state of its own
// beyond references to the Manager/Engine/Registry/Relay it coordinates.
type Hub struct {
	Sessions *session.Manager
	Matching *matching.Engine
	Pairing  *pairing.Registry
	Relay    *relay.Relay
	Sink     events.Sink
	Stats    *stats.Collector
	log      *slog.Logger

	// OnMatch, if set, is invoked once per committed match; wired to a
	// Prometheus counter by cmd/server.
	OnMatch func()

	// MaxWait is how long a peer may sit in the matching queue before
	// the rematch sweep times its search out (spec.md section 4.C/5:
	// "maxWaitTime, default 45s"). cmd/server overrides this from
	// internal/config once New returns.
	MaxWait time.Duration
}

// DefaultMaxWait is used when a Hub's MaxWait is left at its zero value.
const DefaultMaxWait = 45 * time.Second

// New builds a Hub from its component registries. log may be nil, in
// which case slog.Default() is used.
func New(sessions *session.Manager, m *matching.Engine, p *pairing.Registry, r *relay.Relay, sink events.Sink, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		Sessions: sessions,
		Matching: m,
		Pairing:  p,
		Relay:    r,
		Sink:     sink,
		Stats:    stats.NewCollector(sessions, m, p, r),
		log:      log,
		MaxWait:  DefaultMaxWait,
	}
}

// Connect registers a newly established transport connection as a new
// session in StatusConnected, awaiting a "register" event.
func (h *Hub) Connect(peerID string, now time.Time) {
	h.Sessions.Connect(peerID, now)
	h.log.Info("peer connected", "peer_id", peerID)
}

// Disconnect tears down everything associated with peerID: its pair (if
// any, notifying the partner), its matching-queue entry (if any), and
// finally its session.
func (h *Hub) Disconnect(peerID string, now time.Time) {
	h.teardownPair(peerID, now, "partner disconnected")
	h.Matching.Remove(peerID)
	if s, ok := h.Sessions.Get(peerID); ok {
		session.Disconnect(s, now)
	}
	h.Sessions.Remove(peerID)
	h.log.Info("peer disconnected", "peer_id", peerID)
}

// teardownPair ends peerID's live pair, if any, clearing both sides'
// session state and notifying the partner with a partnerDisconnected
// event carrying reason.
func (h *Hub) teardownPair(peerID string, now time.Time, reason string) {
	pair, ok := h.Pairing.Get(peerID)
	if !ok {
		return
	}
	partner := pair.Partner(peerID)

	// The registry teardown runs under both session locks; EndChat below
	// takes each session's own lock, so both are released first.
	_, _, unlock, _ := h.Sessions.LockBoth(peerID, partner)
	_, err := h.Pairing.Teardown(peerID)
	unlock()
	if err != nil {
		h.log.Warn("teardown raced with another teardown", "peer_id", peerID, "error", err)
		return
	}
	h.Relay.DropHistory(pair.RoomID)
	h.Relay.StopTyping(peerID)
	h.Relay.StopTyping(partner)

	if s, found := h.Sessions.Get(peerID); found {
		session.EndChat(s, now)
	}
	if s, found := h.Sessions.Get(partner); found {
		session.EndChat(s, now)
	}

	h.Sink.Send(partner, protocol.Message{Type: protocol.TypePartnerDisconnected, Reason: reason})
}

// Dispatch routes one inbound event for peerID. Callers (internal/ws or
// equivalent transport glue) must serialize calls per peer themselves
// only insofar as the transport read loop is already single-goroutine
// per connection; Dispatch does not take an additional per-call lock
// beyond what each handler needs.
func (h *Hub) Dispatch(peerID string, msg protocol.Message, now time.Time) error {
	s, ok := h.Sessions.Get(peerID)
	if !ok {
		return fmt.Errorf("dispatch %s: %w", msg.Type, ErrUnknownPeer)
	}
	session.Touch(s, now)

	switch msg.Type {
	case protocol.TypeRegister:
		return h.handleRegister(peerID, s, msg, now)
	case protocol.TypeSearch:
		return h.handleSearch(peerID, s, msg, now)
	case protocol.TypeCancelSearch:
		return h.handleCancelSearch(peerID, s, now)
	case protocol.TypeNext:
		return h.handleNext(peerID, s, now)
	case protocol.TypeDisconnectPartner:
		h.teardownPair(peerID, now, "partner ended the chat")
		return nil
	case protocol.TypeMessage:
		return h.handleMessage(peerID, s, msg, now)
	case protocol.TypeTyping:
		return h.requireChatting(s, func() error { return h.Relay.Typing(peerID) })
	case protocol.TypeTypingStopped:
		return h.requireChatting(s, func() error { return h.Relay.TypingStopped(peerID) })
	case protocol.TypeWebRTCOffer:
		return h.requireChatting(s, func() error { return h.Relay.Offer(peerID, msg, now) })
	case protocol.TypeWebRTCAnswer:
		return h.requireChatting(s, func() error { return h.Relay.Answer(peerID, msg, now) })
	case protocol.TypeWebRTCICECandidate:
		return h.requireChatting(s, func() error { return h.Relay.ICECandidate(peerID, msg) })
	case protocol.TypeWebRTCEnd:
		return h.requireChatting(s, func() error { return h.Relay.End(peerID, msg, now) })
	case protocol.TypeWebRTCReject:
		return h.requireChatting(s, func() error { return h.Relay.Reject(peerID, msg, now) })
	case protocol.TypeVideoCallRequest:
		return h.handleVideoCallRequest(peerID, s, msg, now)
	case protocol.TypeVideoCallStatus:
		return h.handleVideoCallStatus(peerID, s, msg, now)
	case protocol.TypeCallToggleMedia:
		return h.requireChatting(s, func() error { return h.Relay.MediaToggle(peerID, msg.Metadata["audio"] == true, msg.Metadata["video"] == true, msg) })
	case protocol.TypeScreenShareStatus:
		return h.requireChatting(s, func() error { return h.Relay.ScreenShareStatus(peerID, msg) })
	case protocol.TypeGetPartnerInfo:
		return h.handleGetPartnerInfo(peerID, s)
	case protocol.TypeGetStats:
		return h.handleGetStats(peerID, now)
	case protocol.TypeHeartbeat:
		return h.handleHeartbeat(peerID, msg)
	default:
		return fmt.Errorf("dispatch %s: %w", msg.Type, ErrUnknownEvent)
	}
}

func (h *Hub) requireChatting(s *session.Session, fn func() error) error {
	if session.View(s).Status != session.StatusChatting {
		return ErrNotPaired
	}
	return fn()
}

func (h *Hub) handleRegister(peerID string, s *session.Session, msg protocol.Message, now time.Time) error {
	var ageRange *profile.AgeRange
	if msg.AgeRange != nil {
		ageRange = &profile.AgeRange{Min: msg.AgeRange.Min, Max: msg.AgeRange.Max}
	}
	p, err := profile.New(peerID, profile.Input{
		Username:         msg.Username,
		Gender:           msg.Gender,
		Age:              msg.Age,
		Interests:        msg.Interests,
		ChatMode:         msg.ChatMode,
		GenderPreference: msg.GenderPreference,
		AgeRange:         ageRange,
		Priority:         msg.Priority,
	})
	if err != nil {
		h.Sink.Send(peerID, protocol.Message{Type: protocol.TypeRegisterError, Error: err.Error()})
		return err
	}
	if err := session.Register(s, p, now); err != nil {
		h.Sink.Send(peerID, protocol.Message{Type: protocol.TypeRegisterError, Error: err.Error()})
		return err
	}
	h.Sink.Send(peerID, protocol.Message{Type: protocol.TypeRegistered})
	return nil
}

func (h *Hub) handleSearch(peerID string, s *session.Session, msg protocol.Message, now time.Time) error {
	view := session.View(s)
	if view.Profile == nil {
		return ErrNotRegistered
	}
	p := *view.Profile
	if msg.ChatMode != "" {
		if mode, err := normalizeMode(msg.ChatMode); err == nil {
			p = p.WithChatMode(mode)
		}
	}
	if err := session.BeginSearch(s, now); err != nil {
		h.Sink.Send(peerID, protocol.Message{Type: protocol.TypeSearchError, Error: err.Error()})
		return err
	}
	h.Matching.Add(p, now)
	h.Sink.Send(peerID, protocol.Message{Type: protocol.TypeSearching})
	h.AttemptMatch(peerID, now)
	return nil
}

func normalizeMode(raw string) (profile.ChatMode, error) {
	switch profile.ChatMode(raw) {
	case profile.ModeText, profile.ModeVideo:
		return profile.ChatMode(raw), nil
	default:
		return "", ErrUnknownEvent
	}
}

func (h *Hub) handleCancelSearch(peerID string, s *session.Session, now time.Time) error {
	if err := session.CancelSearch(s, now); err != nil {
		return err
	}
	h.Matching.Remove(peerID)
	h.Sink.Send(peerID, protocol.Message{Type: protocol.TypeSearchCancelled})
	return nil
}

func (h *Hub) handleNext(peerID string, s *session.Session, now time.Time) error {
	h.teardownPair(peerID, now, "partner requested next")
	view := session.View(s)
	if view.Profile == nil {
		return ErrNotRegistered
	}
	if err := session.BeginSearch(s, now); err != nil {
		return err
	}
	h.Matching.IncrementAttempts(peerID)
	h.Matching.Add(*view.Profile, now)
	h.Sink.Send(peerID, protocol.Message{Type: protocol.TypeSearching})
	h.AttemptMatch(peerID, now)
	return nil
}

func (h *Hub) handleMessage(peerID string, s *session.Session, msg protocol.Message, now time.Time) error {
	if session.View(s).Status != session.StatusChatting {
		h.Sink.Send(peerID, protocol.Message{Type: protocol.TypeMessageError, Error: ErrNotPaired.Error()})
		return ErrNotPaired
	}
	view := session.View(s)
	senderName := ""
	if view.Profile != nil {
		senderName = view.Profile.Username
	}
	_, err := h.Relay.SendMessage(peerID, senderName, msg.Text, now)
	if err != nil {
		h.Sink.Send(peerID, protocol.Message{Type: protocol.TypeMessageError, Error: err.Error()})
	}
	return err
}

func (h *Hub) handleVideoCallRequest(peerID string, s *session.Session, msg protocol.Message, now time.Time) error {
	view := session.View(s)
	if view.Status != session.StatusChatting {
		return ErrNotPaired
	}
	pair, ok := h.Pairing.Get(peerID)
	if !ok {
		return ErrNotPaired
	}
	if _, err := h.Pairing.StartCall(pair.RoomID, now); err != nil && err != pairing.ErrNotPaired {
		return err
	}
	return h.Relay.Request(peerID, msg)
}

// handleVideoCallStatus is a pure opaque relay: spec.md's external-
// interfaces table lists video-call-status alongside call-toggle-media
// and screen-share-status as relay-only events that never touch the
// pair's CallRecord (that state machine lives on the actual
// offer/answer/end/reject handlers instead).
func (h *Hub) handleVideoCallStatus(peerID string, s *session.Session, msg protocol.Message, now time.Time) error {
	if session.View(s).Status != session.StatusChatting {
		return ErrNotPaired
	}
	return h.Relay.CallStatus(peerID, msg)
}

func (h *Hub) handleGetPartnerInfo(peerID string, s *session.Session) error {
	view := session.View(s)
	if view.Status != session.StatusChatting {
		return ErrNotPaired
	}
	partnerSession, ok := h.Sessions.Get(view.PartnerID)
	if !ok {
		return ErrNotPaired
	}
	partnerView := session.View(partnerSession)
	if partnerView.Profile == nil {
		return ErrNotRegistered
	}
	h.Sink.Send(peerID, protocol.Message{
		Type:      protocol.TypePartnerInfo,
		PartnerID: view.PartnerID,
		PartnerProfile: &protocol.PeerProfile{
			Username:  partnerView.Profile.Username,
			Age:       partnerView.Profile.Age,
			Gender:    string(partnerView.Profile.Gender),
			Interests: partnerView.Profile.Interests,
		},
	})
	return nil
}

func (h *Hub) handleGetStats(peerID string, now time.Time) error {
	snap := h.Stats.Snapshot(now)
	h.Sink.Send(peerID, protocol.Message{Type: protocol.TypeStats, Stats: &protocol.StatsPayload{
		OnlinePeers:     snap.OnlinePeers,
		SearchingPeers:  snap.SearchingPeers,
		ActivePairs:     snap.ActivePairs,
		ActiveCalls:     snap.ActiveCalls,
		WaitingRequests: snap.WaitingRequests,
		TypingPeers:     snap.TypingPeers,
		AvgWaitSeconds:  snap.AvgWaitSeconds,
	}})
	return nil
}

func (h *Hub) handleHeartbeat(peerID string, msg protocol.Message) error {
	h.Sink.Send(peerID, protocol.Message{Type: protocol.TypeHeartbeatResponse, ClientTime: msg.ClientTime, Timestamp: time.Now().UnixMilli()})
	return nil
}

// AttemptMatch tries to find and commit a match for peerID right now. It
// is safe to call speculatively (e.g. immediately after a peer starts
// searching) and periodically from the rematch sweep loop.
func (h *Hub) AttemptMatch(peerID string, now time.Time) bool {
	candidate, ok := h.Matching.FindMatch(peerID, now)
	if !ok {
		return false
	}
	return h.commitMatch(peerID, candidate.PeerID, candidate.Score, now)
}

func (h *Hub) commitMatch(peerA, peerB string, score float64, now time.Time) bool {
	sa, sb, unlock, ok := h.Sessions.LockBoth(peerA, peerB)
	if !ok {
		return false
	}

	// The status re-check and the pair commit run under both session
	// locks; BeginChat below takes each session's own lock, so both are
	// released first.
	if sa.Status != session.StatusSearching || sb.Status != session.StatusSearching {
		unlock()
		return false
	}

	pair, err := h.Pairing.Commit(peerA, peerB, now)
	unlock()
	if err != nil {
		return false
	}

	if err := session.BeginChat(sa, peerB, pair.RoomID, now); err != nil {
		h.Pairing.Teardown(peerA)
		return false
	}
	if err := session.BeginChat(sb, peerA, pair.RoomID, now); err != nil {
		session.EndChat(sa, now)
		h.Pairing.Teardown(peerA)
		return false
	}

	h.Matching.RecordMatch(peerA, peerB)
	if h.OnMatch != nil {
		h.OnMatch()
	}

	va := session.View(sa)
	vb := session.View(sb)
	h.notifyMatched(peerA, peerB, pair.RoomID, score, va, vb)
	h.notifyMatched(peerB, peerA, pair.RoomID, score, vb, va)
	return true
}

func (h *Hub) notifyMatched(peerID, partnerID, roomID string, score float64, self, partner session.Snapshot) {
	var shared []string
	var partnerProfile *protocol.PeerProfile
	if self.Profile != nil && partner.Profile != nil {
		shared = self.Profile.SharedInterests(*partner.Profile)
	}
	if partner.Profile != nil {
		partnerProfile = &protocol.PeerProfile{
			Username:  partner.Profile.Username,
			Age:       partner.Profile.Age,
			Gender:    string(partner.Profile.Gender),
			Interests: partner.Profile.Interests,
		}
	}
	msgType := protocol.TypeMatched
	if partner.Profile != nil && partner.Profile.ChatMode == profile.ModeVideo && self.Profile != nil && self.Profile.ChatMode == profile.ModeVideo {
		msgType = protocol.TypeVideoMatchReady
	}
	h.Sink.Send(peerID, protocol.Message{
		Type:            msgType,
		PartnerID:       partnerID,
		PartnerProfile:  partnerProfile,
		Compatibility:   score,
		SharedInterests: shared,
		RoomID:          roomID,
	})
}

// RunRematchLoop periodically sweeps every StatusSearching session and
// attempts a match, since FindMatch recomputes compatibility live (wait
// time and attempt counts change scores over time even when the queue's
// membership does not). It returns when ctx is cancelled.
func (h *Hub) RunRematchLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.sweepRematch(now)
		}
	}
}

func (h *Hub) sweepRematch(now time.Time) {
	for _, id := range h.Matching.ExpiredPeers(h.MaxWait, now) {
		h.timeoutSearch(id, now)
	}
	for _, s := range h.Sessions.Snapshot() {
		if session.View(s).Status != session.StatusSearching {
			continue
		}
		h.AttemptMatch(s.ID, now)
	}
}

// timeoutSearch ends peerID's search with a search-timeout event once it
// has waited in the matching queue beyond MaxWait (spec.md section
// 4.D: "searching -> ready on cancel or SearchTimeout").
func (h *Hub) timeoutSearch(peerID string, now time.Time) {
	h.Matching.Remove(peerID)
	s, ok := h.Sessions.Get(peerID)
	if !ok {
		return
	}
	if session.View(s).Status != session.StatusSearching {
		return
	}
	if err := session.CancelSearch(s, now); err != nil {
		return
	}
	h.log.Info("search timed out", "peer_id", peerID)
	h.Sink.Send(peerID, protocol.Message{Type: protocol.TypeSearchTimeout})
}

// RunInactivitySweep periodically disconnects sessions that have not
// produced any inbound event within threshold (spec.md section 4.D).
func (h *Hub) RunInactivitySweep(ctx context.Context, period, threshold time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, id := range h.Sessions.InactivitySweep(threshold, now) {
				h.log.Info("disconnecting inactive peer", "peer_id", id)
				h.Disconnect(id, now)
			}
		}
	}
}

// RunStatsBroadcast periodically pushes a stats-updated event to every
// connected peer and, if observe is non-nil, feeds the same snapshot to
// the Prometheus collectors.
func (h *Hub) RunStatsBroadcast(ctx context.Context, period time.Duration, observe func(stats.Snapshot)) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			snap := h.Stats.Snapshot(now)
			if observe != nil {
				observe(snap)
			}
			payload := protocol.StatsPayload{
				OnlinePeers:     snap.OnlinePeers,
				SearchingPeers:  snap.SearchingPeers,
				ActivePairs:     snap.ActivePairs,
				ActiveCalls:     snap.ActiveCalls,
				WaitingRequests: snap.WaitingRequests,
				TypingPeers:     snap.TypingPeers,
				AvgWaitSeconds:  snap.AvgWaitSeconds,
			}
			for _, s := range h.Sessions.Snapshot() {
				h.Sink.Send(s.ID, protocol.Message{Type: protocol.TypeStatsUpdated, Stats: &payload})
			}
		}
	}
}
