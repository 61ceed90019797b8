package hub

import "errors"

// Sentinel errors returned by Hub operations, wrapped with context via
// fmt.Errorf("...: %w", ...) at the call site (spec.md section 7:
// "errors are values, never panics, on the data path").
var (
	ErrUnknownPeer    = errors.New("hub: unknown peer")
	ErrUnknownEvent   = errors.New("hub: unknown event type")
	ErrNotRegistered  = errors.New("hub: peer is not registered")
	ErrAlreadySearching = errors.New("hub: peer is already searching")
	ErrNotSearching   = errors.New("hub: peer is not searching")
	ErrNotPaired      = errors.New("hub: peer is not paired")
)
