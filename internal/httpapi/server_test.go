package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rustyguts/strangerchat/internal/events"
	"github.com/rustyguts/strangerchat/internal/hub"
	"github.com/rustyguts/strangerchat/internal/matching"
	"github.com/rustyguts/strangerchat/internal/pairing"
	"github.com/rustyguts/strangerchat/internal/protocol"
	"github.com/rustyguts/strangerchat/internal/relay"
	"github.com/rustyguts/strangerchat/internal/session"
	"github.com/rustyguts/strangerchat/internal/transport/wsconn"
)

func newTestServer() *Server {
	sessions := session.NewManager()
	pairs := pairing.NewRegistry()
	sink := events.SinkFunc(func(string, protocol.Message) error { return nil })
	r := relay.New(pairs, sink, nil)
	m := matching.New(matching.DefaultConfig, nil)
	h := hub.New(sessions, m, pairs, r, sink, nil)

	ws := wsconn.NewManager(h.Dispatch, wsconn.LifecycleHooks{
		OnConnect:    h.Connect,
		OnDisconnect: h.Disconnect,
	}, nil, nil)

	n := 0
	return New(h, ws, func() string {
		n++
		return fmt.Sprintf("peer-%d", n)
	})
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestServer()
	ts := httptest.NewServer(api.Echo())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" {
		t.Fatalf("unexpected health payload: %#v", health)
	}
}

func TestStatsEndpoint(t *testing.T) {
	api := newTestServer()
	ts := httptest.NewServer(api.Echo())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload protocol.StatsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	api := newTestServer()
	ts := httptest.NewServer(api.Echo())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
