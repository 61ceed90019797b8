// Command server runs the stranger-chat pairing and signaling server: it
// wires internal/session, internal/matching, internal/pairing,
// internal/relay, and internal/hub behind the WebSocket transport in
// internal/transport/wsconn and the admin/health surface in
// internal/httpapi, the way the teacher's server/main.go wires Room,
// Server, and the optional REST API behind one process.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustyguts/strangerchat/internal/config"
	"github.com/rustyguts/strangerchat/internal/httpapi"
	"github.com/rustyguts/strangerchat/internal/hub"
	"github.com/rustyguts/strangerchat/internal/matching"
	"github.com/rustyguts/strangerchat/internal/pairing"
	"github.com/rustyguts/strangerchat/internal/protocol"
	"github.com/rustyguts/strangerchat/internal/relay"
	"github.com/rustyguts/strangerchat/internal/session"
	"github.com/rustyguts/strangerchat/internal/statsmetrics"
	"github.com/rustyguts/strangerchat/internal/transport/wsconn"
)

// Version is stamped into CLI output; bumped by hand on release.
const Version = "0.1.0"

func main() {
	if len(os.Args) > 1 {
		if RunCLI(os.Args[1:]) {
			return
		}
	}

	addr := flag.String("addr", "", "HTTP/WebSocket listen address (overrides STRANGER_LISTEN_ADDR)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	setupLogging(*logLevel)

	cfg := config.Load()
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	sessions := session.NewManager()
	matchEngine := matching.New(matching.Config{
		Scoring:       cfg.Scoring,
		VideoMinScore: cfg.VideoMatchMinScore,
		TextMinScore:  cfg.TextMatchMinScore,
	}, slog.Default())
	pairs := pairing.NewRegistry()

	// wsconn.Manager implements events.Sink but is itself constructed from
	// the Hub's Dispatch method, so sink is a thin forwarding shim set
	// once the Manager exists (mirrors the teacher's pattern of wiring
	// callbacks into Room before the transport that drives them exists).
	sink := &deferredSink{}

	relayEngine := relay.New(pairs, sink, slog.Default())
	h := hub.New(sessions, matchEngine, pairs, relayEngine, sink, slog.Default())
	h.MaxWait = time.Duration(cfg.MaxWaitSeconds) * time.Second

	metrics := statsmetrics.New(prometheus.DefaultRegisterer)
	h.OnMatch = metrics.MatchesTotal.Inc

	manager := wsconn.NewManager(h.Dispatch, wsconn.LifecycleHooks{
		OnConnect:    h.Connect,
		OnDisconnect: h.Disconnect,
	}, cfg.OriginAllowlist, slog.Default())
	sink.manager = manager

	api := httpapi.New(h, manager, func() string { return uuid.NewString() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	go h.RunRematchLoop(ctx, cfg.RematchInterval)
	go h.RunInactivitySweep(ctx, cfg.InactivitySweepPeriod, cfg.InactivityThreshold)
	go h.RunStatsBroadcast(ctx, cfg.StatsBroadcastPeriod, metrics.Observe)

	slog.Info("starting server", "addr", cfg.ListenAddr, "version", Version)
	if err := api.Run(ctx, cfg.ListenAddr); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

// deferredSink implements events.Sink by forwarding to manager once it is
// set. Sends before the manager exists (there are none in practice, since
// nothing can be connected yet) are silently dropped.
type deferredSink struct {
	manager *wsconn.Manager
}

func (s *deferredSink) Send(peerID string, msg protocol.Message) error {
	if s.manager == nil {
		return nil
	}
	return s.manager.Send(peerID, msg)
}
