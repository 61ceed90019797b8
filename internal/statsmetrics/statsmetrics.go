// Package statsmetrics exposes component G's snapshots as Prometheus
// gauges and counters, feeding the /metrics endpoint internal/httpapi
// registers (spec.md section 6's external collaborators: "metrics/
// observability backend").
package statsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rustyguts/strangerchat/internal/stats"
)

// Metrics holds the Prometheus collectors fed by each stats.Snapshot.
type Metrics struct {
	OnlinePeers     prometheus.Gauge
	SearchingPeers  prometheus.Gauge
	ActivePairs     prometheus.Gauge
	ActiveCalls     prometheus.Gauge
	WaitingRequests prometheus.Gauge
	TypingPeers     prometheus.Gauge
	AvgWaitSeconds  prometheus.Gauge
	MatchesTotal    prometheus.Counter
}

// New creates and registers the collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stranger", Name: "online_peers", Help: "Number of currently connected peers.",
		}),
		SearchingPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stranger", Name: "searching_peers", Help: "Number of peers currently in the matching queue.",
		}),
		ActivePairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stranger", Name: "active_pairs", Help: "Number of live peer pairs.",
		}),
		ActiveCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stranger", Name: "active_calls", Help: "Number of pairs with an active WebRTC call.",
		}),
		WaitingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stranger", Name: "waiting_requests", Help: "Number of peers waiting for a match.",
		}),
		TypingPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stranger", Name: "typing_peers", Help: "Number of peers with a pending typing indicator.",
		}),
		AvgWaitSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stranger", Name: "avg_wait_seconds", Help: "Average matching queue wait time, in seconds.",
		}),
		MatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stranger", Name: "matches_total", Help: "Total number of matches committed since startup.",
		}),
	}
	reg.MustRegister(
		m.OnlinePeers, m.SearchingPeers, m.ActivePairs, m.ActiveCalls,
		m.WaitingRequests, m.TypingPeers, m.AvgWaitSeconds, m.MatchesTotal,
	)
	return m
}

// Observe updates every gauge from snap. MatchesTotal is incremented
// separately by the caller on each committed match (RecordMatch), since
// it is a monotonic counter rather than a point-in-time value.
func (m *Metrics) Observe(snap stats.Snapshot) {
	m.OnlinePeers.Set(float64(snap.OnlinePeers))
	m.SearchingPeers.Set(float64(snap.SearchingPeers))
	m.ActivePairs.Set(float64(snap.ActivePairs))
	m.ActiveCalls.Set(float64(snap.ActiveCalls))
	m.WaitingRequests.Set(float64(snap.WaitingRequests))
	m.TypingPeers.Set(float64(snap.TypingPeers))
	m.AvgWaitSeconds.Set(snap.AvgWaitSeconds)
}
