// Package events defines the narrow interface the core components use to
// push protocol messages out to a connected peer, so that internal/relay,
// internal/hub, and internal/stats never hold a direct reference to a
// transport connection (spec.md's design notes on avoiding pointer
// cycles: sessions and pairs resolve partners by ID through a registry,
// never by holding each other's connection directly).
package events

import "github.com/rustyguts/strangerchat/internal/protocol"

// Sink delivers an outbound protocol message to a specific peer. Send
// must be safe for concurrent use and must not block indefinitely; a
// transport-level implementation (internal/transport/wsconn) is expected
// to apply its own write timeout and report failures so the caller can
// tear the peer down rather than retry forever.
type Sink interface {
	Send(peerID string, msg protocol.Message) error
}

// SinkFunc adapts a plain function to the Sink interface, mirroring the
// standard library's http.HandlerFunc pattern; used heavily in tests.
type SinkFunc func(peerID string, msg protocol.Message) error

// Send implements Sink.
func (f SinkFunc) Send(peerID string, msg protocol.Message) error {
	return f(peerID, msg)
}
