// Package stats implements component G, the stats and introspection
// surface (spec.md section 4.G): a periodic, read-only snapshot of
// queue depth, pairing, and call counts drawn from the other
// components' registries.
package stats

import (
	"time"

	"github.com/rustyguts/strangerchat/internal/matching"
	"github.com/rustyguts/strangerchat/internal/pairing"
	"github.com/rustyguts/strangerchat/internal/relay"
	"github.com/rustyguts/strangerchat/internal/session"
)

// Snapshot is a point-in-time view of server-wide activity, mirroring
// protocol.StatsPayload's wire shape.
type Snapshot struct {
	OnlinePeers     int
	SearchingPeers  int
	ActivePairs     int
	ActiveCalls     int
	WaitingRequests int
	TypingPeers     int
	AvgWaitSeconds  float64
	TakenAt         time.Time
}

// Collector pulls a Snapshot from the live session, matching, pairing,
// and relay registries. It holds no state of its own.
type Collector struct {
	Sessions *session.Manager
	Matching *matching.Engine
	Pairing  *pairing.Registry
	Relay    *relay.Relay
}

// NewCollector builds a Collector from the components' registries.
func NewCollector(sessions *session.Manager, m *matching.Engine, p *pairing.Registry, r *relay.Relay) *Collector {
	return &Collector{Sessions: sessions, Matching: m, Pairing: p, Relay: r}
}

// Snapshot computes a fresh point-in-time view of server activity.
func (c *Collector) Snapshot(now time.Time) Snapshot {
	searching := 0
	for _, s := range c.Sessions.Snapshot() {
		if session.View(s).Status == session.StatusSearching {
			searching++
		}
	}

	typing := 0
	if c.Relay != nil {
		typing = c.Relay.TypingCount()
	}

	return Snapshot{
		OnlinePeers:     c.Sessions.Count(),
		SearchingPeers:  searching,
		ActivePairs:     c.Pairing.ActivePairs(),
		ActiveCalls:     c.Pairing.ActiveCalls(),
		WaitingRequests: c.Matching.QueueDepth(),
		TypingPeers:     typing,
		AvgWaitSeconds:  c.Matching.AverageWait(now).Seconds(),
		TakenAt:         now,
	}
}
