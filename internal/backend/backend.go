// package backend wraps the external media players behind one adapter contract
package backend

import (
	"context"

	"github.com/subwave-fm/subwave/internal/models"
)

// EventKind enumerates the normalized events adapters push to the coordinator.
type EventKind int

const (
	EventReady EventKind = iota
	EventState
	EventTime
	EventDuration
	EventEnded
)

// Event is a normalized report from an adapter.
//
// Binding identifies which bind produced the event; the coordinator drops
// events whose binding no longer matches the active song (stale-callback
// protection). Seconds carries time or duration depending on Kind.
type Event struct {
	Binding string
	Kind    EventKind
	Playing bool
	Seconds float64
}

// Sink receives adapter events. The coordinator owns the channel; adapters
// must never block on it indefinitely.
type Sink chan<- Event

// Adapter is the uniform capability set over one external media backend.
//
// Bind associates the adapter with a song and a binding token; events
// emitted afterwards carry that token. Implementations verify they are
// still bound to the song an asynchronous callback was scheduled for
// before emitting anything.
type Adapter interface {
	// Kind returns which source kind this adapter plays.
	Kind() models.SourceKind

	// Bind prepares the backend for the song. Readiness is asynchronous;
	// an EventReady is emitted once the backend can accept commands.
	Bind(ctx context.Context, song models.Song, binding string) error

	// Unbind tears down the active binding. Events scheduled before the
	// teardown must be discarded by their stale binding token.
	Unbind()

	// Play starts or resumes playback.
	Play() error

	// Pause pauses playback.
	Pause() error

	// Seek moves to the given position in seconds. If the backend pauses
	// internally during the seek, the adapter re-issues play when the
	// pre-seek state was playing.
	Seek(seconds float64) error

	// SetVolume sets the backend volume, 0-100.
	SetVolume(v int) error
}

// emit sends an event without blocking; a full sink drops the event rather
// than stalling the backend callback.
func emit(sink Sink, ev Event) {
	if sink == nil {
		return
	}
	select {
	case sink <- ev:
	default:
	}
}
