// Package wsconn is the default WebSocket transport: a concrete
// events.Sink and per-connection read/write pump built on
// github.com/gorilla/websocket, the way the teacher repo's
// internal/ws/handler.go and server.go wire its WebSocket upgrader and
// per-client send channel.
package wsconn

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustyguts/strangerchat/internal/protocol"
)

// SendTimeout bounds how long a single outbound write may block before
// the connection is judged unhealthy, mirroring the teacher's
// channel_state.go trySend timeout.
const SendTimeout = 5 * time.Second

// SendQueueDepth is the buffer size of each connection's outbound
// channel; a slow reader fills this before writes start timing out.
const SendQueueDepth = 64

// circuitBreakerThreshold is the number of consecutive failed sends
// after which a connection is closed rather than retried further,
// adapted from the teacher's client.go sendHealth circuit breaker.
const circuitBreakerThreshold = 8

// defaultUpgrader is the shared gorilla/websocket upgrader. NewManager
// replaces its CheckOrigin with the origin allowlist when one is given.
var defaultUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Handler is invoked with every inbound decoded message for a
// connection; normally bound to a Hub's Dispatch method.
type Handler func(peerID string, msg protocol.Message, now time.Time) error

// LifecycleHooks lets the caller observe connect/disconnect without the
// Manager depending on internal/hub directly.
type LifecycleHooks struct {
	OnConnect    func(peerID string, now time.Time)
	OnDisconnect func(peerID string, now time.Time)
}

// Manager tracks every live WebSocket connection and implements
// events.Sink by routing Send calls to the right connection's outbound
// channel.
type Manager struct {
	log      *slog.Logger
	upgrader websocket.Upgrader
	handler  Handler
	hooks    LifecycleHooks

	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewManager builds a connection Manager. log may be nil, in which case
// slog.Default() is used. originAllowlist, if non-empty, restricts the
// Origin header the upgrader accepts; with an empty allowlist the
// upgrader keeps gorilla/websocket's default check, which accepts a
// request with no Origin header or one whose host matches the request
// Host, and rejects other origins.
func NewManager(handler Handler, hooks LifecycleHooks, originAllowlist []string, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	upgrader := defaultUpgrader
	if len(originAllowlist) > 0 {
		allowed := make(map[string]struct{}, len(originAllowlist))
		for _, o := range originAllowlist {
			allowed[o] = struct{}{}
		}
		upgrader.CheckOrigin = func(r *http.Request) bool {
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		}
	}
	return &Manager{
		log:      log,
		upgrader: upgrader,
		handler:  handler,
		hooks:    hooks,
		conns:    make(map[string]*Conn),
	}
}

// Send implements events.Sink.
func (m *Manager) Send(peerID string, msg protocol.Message) error {
	m.mu.RLock()
	c, ok := m.conns[peerID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return c.enqueue(msg)
}

// Upgrade accepts a new WebSocket connection under peerID, registers it,
// and starts its read and write pumps. It blocks until the connection's
// read loop exits (the caller is expected to invoke this from an HTTP
// handler goroutine, one per connection).
func (m *Manager) Upgrade(w http.ResponseWriter, r *http.Request, peerID string) error {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Conn{
		id:   peerID,
		ws:   ws,
		send: make(chan protocol.Message, SendQueueDepth),
		log:  m.log,
	}

	m.mu.Lock()
	m.conns[peerID] = c
	m.mu.Unlock()

	now := time.Now()
	if m.hooks.OnConnect != nil {
		m.hooks.OnConnect(peerID, now)
	}

	go c.writePump()
	c.readPump(m.handler)

	m.mu.Lock()
	delete(m.conns, peerID)
	m.mu.Unlock()
	if m.hooks.OnDisconnect != nil {
		m.hooks.OnDisconnect(peerID, time.Now())
	}
	return nil
}

// ConnectedPeers returns the number of live connections, for
// introspection.
func (m *Manager) ConnectedPeers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Conn is one peer's WebSocket connection.
type Conn struct {
	id   string
	ws   *websocket.Conn
	send chan protocol.Message
	log  *slog.Logger

	closeOnce sync.Once

	mu           sync.Mutex
	failureCount int
}

func (c *Conn) enqueue(msg protocol.Message) error {
	select {
	case c.send <- msg:
		return nil
	case <-time.After(SendTimeout):
		c.recordFailure()
		return websocket.ErrCloseSent
	}
}

func (c *Conn) recordFailure() {
	c.mu.Lock()
	c.failureCount++
	unhealthy := c.failureCount >= circuitBreakerThreshold
	c.mu.Unlock()
	if unhealthy {
		c.log.Warn("connection exceeded send failure threshold, closing", "peer_id", c.id)
		c.close()
	}
}

func (c *Conn) recordSuccess() {
	c.mu.Lock()
	c.failureCount = 0
	c.mu.Unlock()
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.ws.Close()
	})
}

func (c *Conn) writePump() {
	defer c.close()
	for msg := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(SendTimeout))
		b, err := json.Marshal(msg)
		if err != nil {
			c.log.Error("failed to marshal outbound message", "peer_id", c.id, "error", err)
			continue
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
			c.log.Warn("write failed", "peer_id", c.id, "error", err)
			c.recordFailure()
			return
		}
		c.recordSuccess()
	}
}

func (c *Conn) readPump(handler Handler) {
	defer func() {
		close(c.send)
		c.close()
	}()
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg protocol.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Debug("dropping malformed inbound message", "peer_id", c.id, "error", err)
			continue
		}
		if err := handler(c.id, msg, time.Now()); err != nil {
			c.log.Debug("dispatch returned error", "peer_id", c.id, "type", msg.Type, "error", err)
		}
	}
}
