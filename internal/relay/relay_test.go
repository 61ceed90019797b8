package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/rustyguts/strangerchat/internal/events"
	"github.com/rustyguts/strangerchat/internal/pairing"
	"github.com/rustyguts/strangerchat/internal/protocol"
)

type fakeSink struct {
	mu   sync.Mutex
	sent map[string][]protocol.Message
}

func newFakeSink() *fakeSink {
	return &fakeSink{sent: make(map[string][]protocol.Message)}
}

func (f *fakeSink) Send(peerID string, msg protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[peerID] = append(f.sent[peerID], msg)
	return nil
}

func (f *fakeSink) last(peerID string) (protocol.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.sent[peerID]
	if len(msgs) == 0 {
		return protocol.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

var _ events.Sink = (*fakeSink)(nil)

func TestSendMessageDeliversAndAcks(t *testing.T) {
	pairs := pairing.NewRegistry()
	now := time.Now()
	pairs.Commit("a", "b", now)

	sink := newFakeSink()
	r := New(pairs, sink, nil)

	stored, err := r.SendMessage("a", "alex", "hello", now)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	delivered, ok := sink.last("b")
	if !ok || delivered.Type != protocol.TypeMessageOut || delivered.Text != "hello" {
		t.Fatalf("partner did not receive message: %+v, ok=%v", delivered, ok)
	}

	ack, ok := sink.last("a")
	if !ok || ack.Type != protocol.TypeMessageSent || ack.MessageID != stored.MessageID {
		t.Fatalf("sender did not receive ack: %+v, ok=%v", ack, ok)
	}
}

func TestSendMessageUnpaired(t *testing.T) {
	pairs := pairing.NewRegistry()
	r := New(pairs, newFakeSink(), nil)

	if _, err := r.SendMessage("ghost", "ghost", "hi", time.Now()); err != ErrNotPaired {
		t.Fatalf("err = %v, want ErrNotPaired", err)
	}
}

func TestHistoryRetainsMessagesUntilTeardown(t *testing.T) {
	pairs := pairing.NewRegistry()
	now := time.Now()
	pairs.Commit("a", "b", now)
	r := New(pairs, newFakeSink(), nil)

	r.SendMessage("a", "alex", "one", now)
	r.SendMessage("b", "blair", "two", now)

	hist, err := r.History("a")
	if err != nil || len(hist) != 2 {
		t.Fatalf("history = %v, err = %v; want 2 messages", hist, err)
	}

	pair, _ := pairs.Get("a")
	r.DropHistory(pair.RoomID)
	hist, _ = r.History("a")
	if len(hist) != 0 {
		t.Fatalf("expected history cleared after DropHistory, got %v", hist)
	}
}

func TestTypingAutoStops(t *testing.T) {
	pairs := pairing.NewRegistry()
	pairs.Commit("a", "b", time.Now())
	sink := newFakeSink()
	r := New(pairs, sink, nil)

	if err := r.Typing("a"); err != nil {
		t.Fatalf("Typing: %v", err)
	}
	got, ok := sink.last("b")
	if !ok || got.Type != protocol.TypePartnerTyping {
		t.Fatalf("expected partnerTyping delivered, got %+v ok=%v", got, ok)
	}

	time.Sleep(TypingTimeout + 50*time.Millisecond)
	got, ok = sink.last("b")
	if !ok || got.Type != protocol.TypePartnerTypingStopped {
		t.Fatalf("expected auto typingStopped, got %+v ok=%v", got, ok)
	}
}

func TestTypingStoppedCancelsTimer(t *testing.T) {
	pairs := pairing.NewRegistry()
	pairs.Commit("a", "b", time.Now())
	sink := newFakeSink()
	r := New(pairs, sink, nil)

	r.Typing("a")
	if err := r.TypingStopped("a"); err != nil {
		t.Fatalf("TypingStopped: %v", err)
	}
	got, ok := sink.last("b")
	if !ok || got.Type != protocol.TypePartnerTypingStopped {
		t.Fatalf("expected immediate typingStopped, got %+v ok=%v", got, ok)
	}
}

func TestWebRTCSignalForwarding(t *testing.T) {
	pairs := pairing.NewRegistry()
	pair, _ := pairs.Commit("a", "b", time.Now())
	sink := newFakeSink()
	r := New(pairs, sink, nil)
	now := time.Now()

	if err := r.Offer("a", protocol.Message{SDP: "offer-sdp"}, now); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	got, ok := sink.last("b")
	if !ok || got.Type != protocol.TypeWebRTCOffer || got.SDP != "offer-sdp" || got.From != "a" || got.To != "b" {
		t.Fatalf("unexpected forwarded offer: %+v ok=%v", got, ok)
	}
	rec, _ := pairs.GetCall(pair.RoomID)
	if rec.Status != pairing.CallOffered {
		t.Fatalf("call status = %v, want offered", rec.Status)
	}

	if err := r.ICECandidate("b", protocol.Message{Candidate: map[string]any{"sdpMid": "0"}}); err != nil {
		t.Fatalf("ICECandidate: %v", err)
	}
	got, ok = sink.last("a")
	if !ok || got.Type != protocol.TypeWebRTCICECandidate || got.From != "b" {
		t.Fatalf("unexpected forwarded candidate: %+v ok=%v", got, ok)
	}

	if err := r.Answer("b", protocol.Message{SDP: "answer-sdp"}, now); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	rec, _ = pairs.GetCall(pair.RoomID)
	if rec.Status != pairing.CallAnswered {
		t.Fatalf("call status = %v, want answered", rec.Status)
	}

	if err := r.End("a", protocol.Message{}, now); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, ok := pairs.GetCall(pair.RoomID); ok {
		t.Fatalf("expected call record cleared after End")
	}
}

func TestWebRTCSignalRejectsMistargetedTo(t *testing.T) {
	pairs := pairing.NewRegistry()
	pairs.Commit("a", "b", time.Now())
	pairs.Commit("c", "d", time.Now())
	sink := newFakeSink()
	r := New(pairs, sink, nil)
	now := time.Now()

	err := r.Offer("a", protocol.Message{SDP: "offer-sdp", To: "c"}, now)
	if err != ErrNotPaired {
		t.Fatalf("err = %v, want ErrNotPaired", err)
	}
	if _, ok := sink.last("c"); ok {
		t.Fatalf("mistargeted offer must not reach the unintended recipient")
	}
}

func TestMediaToggleUpdatesCallRecord(t *testing.T) {
	pairs := pairing.NewRegistry()
	pair, _ := pairs.Commit("a", "b", time.Now())
	pairs.StartCall(pair.RoomID, time.Now())
	sink := newFakeSink()
	r := New(pairs, sink, nil)

	if err := r.MediaToggle("a", true, false, protocol.Message{}); err != nil {
		t.Fatalf("MediaToggle: %v", err)
	}
	rec, _ := pairs.GetCall(pair.RoomID)
	if !rec.AudioA || rec.VideoA {
		t.Fatalf("call record not updated: %+v", rec)
	}
}
