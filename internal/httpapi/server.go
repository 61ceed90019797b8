// Package httpapi is the admin/health HTTP surface spec.md section 1
// calls out as an external collaborator: a health check, a JSON stats
// endpoint mirroring component G, a Prometheus /metrics endpoint, and the
// WebSocket upgrade route that hands new connections to
// internal/transport/wsconn. Built on github.com/labstack/echo/v4, the
// way the teacher's internal/httpapi/server.go wires its own Echo app.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyguts/strangerchat/internal/hub"
	"github.com/rustyguts/strangerchat/internal/protocol"
	"github.com/rustyguts/strangerchat/internal/transport/wsconn"
)

// Server is the Echo application exposing health, stats, metrics, and the
// WebSocket upgrade route.
type Server struct {
	echo *echo.Echo
	hub  *hub.Hub
	ws   *wsconn.Manager
}

// New constructs an Echo app wired to h for stats/health and ws for the
// WebSocket upgrade route. peerID assigns a fresh identifier to each
// incoming connection before the upgrade.
func New(h *hub.Hub, ws *wsconn.Manager, peerID func() string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{echo: e, hub: h, ws: ws}
	s.registerRoutes(peerID)
	return s
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			path := req.URL.Path
			if path == "/ws" || path == "/healthz" {
				slog.Debug("http request", "method", req.Method, "path", path,
					"status", c.Response().Status, "duration_ms", time.Since(start).Milliseconds())
			} else {
				slog.Info("http request", "method", req.Method, "path", path,
					"status", c.Response().Status, "duration_ms", time.Since(start).Milliseconds(),
					"remote", c.RealIP())
			}
			return nil
		}
	}
}

// Echo exposes the underlying Echo instance, for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes(peerID func() string) {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/stats", s.handleStats)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/ws", s.handleWebSocket(peerID))
}

// Run starts Echo and blocks until ctx is cancelled or startup fails.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down http server")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		slog.Info("http server stopped")
		return nil
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	OnlinePeers int    `json:"onlinePeers"`
}

func (s *Server) handleHealth(c echo.Context) error {
	snap := s.hub.Stats.Snapshot(time.Now())
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", OnlinePeers: snap.OnlinePeers})
}

func (s *Server) handleStats(c echo.Context) error {
	snap := s.hub.Stats.Snapshot(time.Now())
	return c.JSON(http.StatusOK, protocol.StatsPayload{
		OnlinePeers:     snap.OnlinePeers,
		SearchingPeers:  snap.SearchingPeers,
		ActivePairs:     snap.ActivePairs,
		ActiveCalls:     snap.ActiveCalls,
		WaitingRequests: snap.WaitingRequests,
		TypingPeers:     snap.TypingPeers,
		AvgWaitSeconds:  snap.AvgWaitSeconds,
	})
}

func (s *Server) handleWebSocket(peerID func() string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := peerID()
		if err := s.ws.Upgrade(c.Response(), c.Request(), id); err != nil {
			slog.Error("ws upgrade failed", "remote", c.RealIP(), "error", err)
			return err
		}
		return nil
	}
}
