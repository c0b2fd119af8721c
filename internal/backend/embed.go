package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/subwave-fm/subwave/internal/models"
	"github.com/subwave-fm/subwave/internal/shared"
)

// positionUnit names the unit a remote protocol reports positions in.
type positionUnit int

const (
	unitMilliseconds positionUnit = iota
	unitPercent
)

// resumePollAttempts bounds the paused-state polling after a seek; most
// remote players pause internally while seeking and some never resume on
// their own.
const (
	resumePollAttempts = 5
	resumePollInterval = 100 * time.Millisecond
)

// EmbedAdapter drives one remote embed player over a [Conn].
//
// It owns the normalization from the remote protocol's units and cadence
// into seconds-based [Event]s: millisecond positions are scaled, percent
// positions are resolved against the known duration, and poll-based
// protocols are sampled on a ticker. Events carry the binding token handed
// to Bind; anything arriving for a superseded binding is dropped here or by
// the coordinator's stale check.
type EmbedAdapter struct {
	kind      models.SourceKind
	dial      func() (Conn, error)
	sink      Sink
	logger    *log.Logger
	unit      positionUnit
	polled    bool
	pollEvery time.Duration

	mu           sync.Mutex
	conn         Conn
	binding      string
	playing      bool
	userPaused   bool
	endedSent    bool
	duration     float64 // seconds, 0 until known
	pendingLoads int
	stateKnown   bool
	lastPlaying  bool
}

func newEmbedAdapter(kind models.SourceKind, dial func() (Conn, error), sink Sink, logger *log.Logger, unit positionUnit, polled bool) *EmbedAdapter {
	return &EmbedAdapter{
		kind:      kind,
		dial:      dial,
		sink:      sink,
		logger:    logger,
		unit:      unit,
		polled:    polled,
		pollEvery: 500 * time.Millisecond,
	}
}

// NewYouTube wraps the YouTube embed protocol: push events, positions and
// durations in milliseconds.
func NewYouTube(dial func() (Conn, error), sink Sink, logger *log.Logger) *EmbedAdapter {
	return newEmbedAdapter(models.KindYouTube, dial, sink, logger, unitMilliseconds, false)
}

// NewVimeo wraps the Vimeo embed protocol: push events, progress as a
// percentage resolved against a seconds duration.
func NewVimeo(dial func() (Conn, error), sink Sink, logger *log.Logger) *EmbedAdapter {
	return newEmbedAdapter(models.KindVimeo, dial, sink, logger, unitPercent, false)
}

// NewSoundCloud wraps the widget protocol: no push position events, the
// adapter polls millisecond positions and the async paused flag.
func NewSoundCloud(dial func() (Conn, error), sink Sink, logger *log.Logger) *EmbedAdapter {
	return newEmbedAdapter(models.KindSoundCloud, dial, sink, logger, unitMilliseconds, true)
}

// Kind returns which source kind this adapter plays.
func (a *EmbedAdapter) Kind() models.SourceKind {
	return a.kind
}

// Bind loads the song into the remote player. The first bind dials the
// connection; later binds reuse it (widget reuse across songs of the same
// kind). Readiness arrives asynchronously as an EventReady.
func (a *EmbedAdapter) Bind(ctx context.Context, song models.Song, binding string) error {
	a.mu.Lock()

	if a.conn == nil {
		conn, err := a.dial()
		if err != nil {
			a.mu.Unlock()
			return fmt.Errorf("%w: %v", shared.ErrBackendFailed, err)
		}
		a.conn = conn
		go a.pump(conn)
		if a.polled {
			go a.poll(conn)
		}
	}

	a.binding = binding
	a.playing = false
	a.userPaused = false
	a.endedSent = false
	a.duration = 0
	a.stateKnown = false
	a.pendingLoads++
	conn := a.conn
	a.mu.Unlock()

	if err := conn.Command(ctx, "load", song.URL); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrBackendFailed, err)
	}
	return nil
}

// Unbind clears the binding. The connection stays up for reuse; events from
// the torn-down binding are discarded by their stale token.
func (a *EmbedAdapter) Unbind() {
	a.mu.Lock()
	a.binding = ""
	a.playing = false
	a.mu.Unlock()
}

// Play starts or resumes playback.
func (a *EmbedAdapter) Play() error {
	a.mu.Lock()
	conn := a.conn
	if conn == nil || a.binding == "" {
		a.mu.Unlock()
		return shared.ErrNotBound
	}
	a.playing = true
	a.userPaused = false
	a.mu.Unlock()

	return conn.Command(context.Background(), "play")
}

// Pause pauses playback. The pause is remembered so a trailing stopped
// report from the remote player is not re-emitted as a fresh state change.
func (a *EmbedAdapter) Pause() error {
	a.mu.Lock()
	conn := a.conn
	if conn == nil || a.binding == "" {
		a.mu.Unlock()
		return shared.ErrNotBound
	}
	a.playing = false
	a.userPaused = true
	a.mu.Unlock()

	return conn.Command(context.Background(), "pause")
}

// Seek moves to the given position. If playback was running, the adapter
// polls the remote paused flag for a bounded window and re-issues play,
// because most embed players pause internally during seeks.
func (a *EmbedAdapter) Seek(seconds float64) error {
	a.mu.Lock()
	conn := a.conn
	if conn == nil || a.binding == "" {
		a.mu.Unlock()
		return shared.ErrNotBound
	}
	wasPlaying := a.playing && !a.userPaused
	binding := a.binding
	a.mu.Unlock()

	if err := conn.Command(context.Background(), "seek", seconds); err != nil {
		return err
	}

	if wasPlaying {
		go a.resumeAfterSeek(conn, binding)
	}
	return nil
}

// resumeAfterSeek is the bounded retry loop over the remote player's
// asynchronous paused query.
func (a *EmbedAdapter) resumeAfterSeek(conn Conn, binding string) {
	for attempt := 0; attempt < resumePollAttempts; attempt++ {
		time.Sleep(resumePollInterval)

		a.mu.Lock()
		stale := a.binding != binding || a.userPaused
		a.mu.Unlock()
		if stale {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), resumePollInterval)
		paused, err := conn.GetBool(ctx, "paused")
		cancel()
		if err != nil {
			continue
		}
		if !paused {
			return
		}

		if err := conn.Command(context.Background(), "play"); err != nil {
			a.logger.Warn("resume after seek failed", "kind", a.kind, "err", err)
		}
	}
}

// SetVolume sets the remote volume.
func (a *EmbedAdapter) SetVolume(v int) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return shared.ErrNotBound
	}
	return conn.Command(context.Background(), "volume", models.ClampVolume(v))
}

// pump translates remote messages into normalized events for the lifetime
// of the connection.
func (a *EmbedAdapter) pump(conn Conn) {
	for msg := range conn.Messages() {
		a.handle(msg)
	}
}

func (a *EmbedAdapter) handle(msg Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if msg.Event == "ready" {
		// A ready always answers the oldest outstanding load, even one
		// whose binding is already gone; the count must settle either
		// way or every later load's ready lands one off.
		if a.pendingLoads > 0 {
			a.pendingLoads--
		}
		if a.binding == "" || a.pendingLoads > 0 {
			return
		}
		emit(a.sink, Event{Binding: a.binding, Kind: EventReady})
		return
	}

	if a.binding == "" {
		return
	}

	switch msg.Event {
	case "state":
		if msg.Flag == a.lastPlaying && a.stateKnown {
			return
		}
		if !msg.Flag && a.userPaused && a.stateKnown && !a.lastPlaying {
			return
		}
		a.stateKnown = true
		a.lastPlaying = msg.Flag
		a.playing = msg.Flag
		emit(a.sink, Event{Binding: a.binding, Kind: EventState, Playing: msg.Flag})

	case "ended":
		if a.endedSent {
			return
		}
		a.endedSent = true
		emit(a.sink, Event{Binding: a.binding, Kind: EventEnded})

	case "property":
		a.handleProperty(msg)
	}
}

// handleProperty converts a position/duration report from the protocol's
// unit into clamped seconds. Caller holds the lock.
func (a *EmbedAdapter) handleProperty(msg Message) {
	switch msg.Name {
	case "position":
		if a.unit != unitMilliseconds {
			return
		}
		seconds, ok := models.ClampSeconds(msg.Value / 1000)
		if !ok {
			return
		}
		emit(a.sink, Event{Binding: a.binding, Kind: EventTime, Seconds: seconds})

	case "percent":
		if a.unit != unitPercent || a.duration <= 0 {
			return
		}
		seconds, ok := models.ClampSeconds(msg.Value / 100 * a.duration)
		if !ok {
			return
		}
		emit(a.sink, Event{Binding: a.binding, Kind: EventTime, Seconds: seconds})

	case "duration":
		value := msg.Value
		if a.unit == unitMilliseconds {
			value /= 1000
		}
		seconds, ok := models.ClampSeconds(value)
		if !ok || seconds == 0 {
			return
		}
		a.duration = seconds
		emit(a.sink, Event{Binding: a.binding, Kind: EventDuration, Seconds: seconds})
	}
}

// poll samples position and paused state for protocols without push
// reports. Runs for the lifetime of the connection.
func (a *EmbedAdapter) poll(conn Conn) {
	ticker := time.NewTicker(a.pollEvery)
	defer ticker.Stop()

	for range ticker.C {
		a.mu.Lock()
		bound := a.binding != ""
		closed := a.conn == nil
		a.mu.Unlock()
		if closed {
			return
		}
		if !bound {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.pollEvery)
		position, err := conn.GetFloat(ctx, "position")
		if err == nil {
			a.handle(Message{Event: "property", Name: "position", Value: position})
		}
		paused, err := conn.GetBool(ctx, "paused")
		if err == nil {
			a.handle(Message{Event: "state", Flag: !paused})
		}
		cancel()
	}
}

// Close tears down the connection.
func (a *EmbedAdapter) Close() {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.binding = ""
	a.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

var _ Adapter = (*EmbedAdapter)(nil)
