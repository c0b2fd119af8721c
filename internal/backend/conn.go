package backend

import "context"

// Message is one push report from a remote embed player.
//
// The wire protocol differs per backend: position units, event names and
// cadence are normalized by the adapter consuming the messages, not here.
type Message struct {
	Event string  // "ready", "property", "state", "ended"
	Name  string  // property name for "property" messages
	Value float64 // numeric payload in the remote protocol's own unit
	Flag  bool    // boolean payload for "state" messages
}

// Conn is the message-passing boundary to one remote embed player.
//
// Commands are fire-and-forget into the remote player; state flows back
// asynchronously over Messages, or through explicit queries for backends
// whose protocol is poll-based. No adapter shares mutable state with the
// remote player beyond this boundary.
type Conn interface {
	// Command issues a remote command ("load", "play", "pause", "seek",
	// "volume") with protocol-specific arguments.
	Command(ctx context.Context, name string, args ...any) error

	// GetFloat queries a numeric remote property; blocks until the remote
	// answers or ctx ends.
	GetFloat(ctx context.Context, name string) (float64, error)

	// GetBool queries a boolean remote property.
	GetBool(ctx context.Context, name string) (bool, error)

	// Messages returns the push channel. Closed when the conn shuts down.
	Messages() <-chan Message

	// Close tears down the connection.
	Close() error
}
