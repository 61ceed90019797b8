package stats

import (
	"testing"
	"time"

	"github.com/rustyguts/strangerchat/internal/matching"
	"github.com/rustyguts/strangerchat/internal/pairing"
	"github.com/rustyguts/strangerchat/internal/profile"
	"github.com/rustyguts/strangerchat/internal/protocol"
	"github.com/rustyguts/strangerchat/internal/relay"
	"github.com/rustyguts/strangerchat/internal/session"
)

type noopSink struct{}

func (noopSink) Send(peerID string, msg protocol.Message) error { return nil }

func TestSnapshotAggregatesComponents(t *testing.T) {
	now := time.Now()

	sessions := session.NewManager()
	s1 := sessions.Connect("a", now)
	p1, _ := profile.New("a", profile.Input{Username: "a"})
	session.Register(s1, p1, now)
	session.BeginSearch(s1, now)

	sessions.Connect("b", now)

	m := matching.New(matching.DefaultConfig, nil)
	m.Add(p1, now)

	pairs := pairing.NewRegistry()
	pairs.Commit("c", "d", now)

	r := relay.New(pairs, noopSink{}, nil)

	c := NewCollector(sessions, m, pairs, r)
	snap := c.Snapshot(now)

	if snap.OnlinePeers != 2 {
		t.Fatalf("onlinePeers = %d, want 2", snap.OnlinePeers)
	}
	if snap.SearchingPeers != 1 {
		t.Fatalf("searchingPeers = %d, want 1", snap.SearchingPeers)
	}
	if snap.ActivePairs != 1 {
		t.Fatalf("activePairs = %d, want 1", snap.ActivePairs)
	}
	if snap.WaitingRequests != 1 {
		t.Fatalf("waitingRequests = %d, want 1", snap.WaitingRequests)
	}
}
