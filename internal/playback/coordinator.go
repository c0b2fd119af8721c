package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/subwave-fm/subwave/internal/backend"
	"github.com/subwave-fm/subwave/internal/models"
	"github.com/subwave-fm/subwave/internal/shared"
)

const (
	// seekTolerance is how close a backend time report must land to a
	// pending seek target before the report is trusted again.
	seekTolerance = 0.5
	// seekGrace bounds how long stale pre-seek reports are held off; after
	// it expires reports are accepted even if the seek silently failed.
	seekGrace = 3 * time.Second
)

// seekIntent is an in-flight seek: the optimistic target plus the window
// during which off-target backend reports are discarded.
type seekIntent struct {
	target  float64
	expires time.Time
}

// Coordinator owns the logical playback state and the queue, and is the
// only writer of both.
//
// Commands mutate state optimistically and forward to the bound adapter;
// adapter events flow back through Run and reconcile the state. Every bind
// gets a fresh token, so events from an abandoned song can never touch the
// state of its successor.
type Coordinator struct {
	logger *log.Logger
	now    func() time.Time

	events chan backend.Event

	mu       sync.Mutex
	adapters map[models.SourceKind]backend.Adapter
	queue    *Queue
	state    models.PlaybackState
	binding  string
	active   backend.Adapter
	seek     *seekIntent
	subs     []chan models.PlaybackState
}

// NewCoordinator creates a coordinator with the given starting volume.
// Adapters register afterwards via Register; their sink is Events.
func NewCoordinator(volume int, logger *log.Logger) *Coordinator {
	return &Coordinator{
		logger:   logger,
		now:      time.Now,
		events:   make(chan backend.Event, 64),
		adapters: map[models.SourceKind]backend.Adapter{},
		queue:    NewQueue(),
		state:    models.PlaybackState{Volume: models.ClampVolume(volume)},
	}
}

// Events is the sink adapters emit into.
func (c *Coordinator) Events() backend.Sink {
	return c.events
}

// Register installs the adapter for its source kind.
func (c *Coordinator) Register(a backend.Adapter) {
	c.mu.Lock()
	c.adapters[a.Kind()] = a
	c.mu.Unlock()
}

// Run consumes adapter events until ctx ends. The caller runs it in its
// own goroutine.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// Subscribe returns a channel of state snapshots. Slow subscribers miss
// intermediate snapshots rather than blocking playback.
func (c *Coordinator) Subscribe() <-chan models.PlaybackState {
	ch := make(chan models.PlaybackState, 8)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	ch <- c.state
	c.mu.Unlock()
	return ch
}

// notifyLocked pushes the current snapshot to subscribers. Caller holds
// the lock.
func (c *Coordinator) notifyLocked() {
	for _, ch := range c.subs {
		select {
		case ch <- c.state:
		default:
		}
	}
}

// State returns a snapshot of the playback state.
func (c *Coordinator) State() models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Songs returns a copy of the queue contents.
func (c *Coordinator) Songs() []models.Song {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Songs()
}

// Cursor returns the active queue index, -1 when nothing is selected.
func (c *Coordinator) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Cursor()
}

// NearQueueEnd reports whether playback is within margin songs of the tail.
func (c *Coordinator) NearQueueEnd(margin int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.NearEnd(margin)
}

// ReplaceQueue swaps the queue for a fresh feed result and stops whatever
// was playing.
func (c *Coordinator) ReplaceQueue(songs []models.Song) {
	c.mu.Lock()
	c.unbindLocked()
	c.queue.SetAll(songs)
	c.state = models.PlaybackState{Volume: c.state.Volume}
	c.notifyLocked()
	c.mu.Unlock()
}

// AppendQueue adds a later feed page to the tail without disturbing
// playback.
func (c *Coordinator) AppendQueue(songs []models.Song) {
	c.mu.Lock()
	c.queue.Append(songs)
	c.notifyLocked()
	c.mu.Unlock()
}

// PlaySong selects the song with the given ID and starts it.
func (c *Coordinator) PlaySong(ctx context.Context, id string) error {
	c.mu.Lock()
	song, ok := c.queue.Select(id)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: song %q not in queue", shared.ErrInvalidInput, id)
	}
	return c.startLocked(ctx, song)
}

// Next advances to the following song. At the tail it is a no-op.
func (c *Coordinator) Next(ctx context.Context) error {
	c.mu.Lock()
	song, ok := c.queue.Advance()
	if !ok {
		c.mu.Unlock()
		return nil
	}
	return c.startLocked(ctx, song)
}

// Previous moves back one song. At the head it is a no-op.
func (c *Coordinator) Previous(ctx context.Context) error {
	c.mu.Lock()
	song, ok := c.queue.Retreat()
	if !ok {
		c.mu.Unlock()
		return nil
	}
	return c.startLocked(ctx, song)
}

// startLocked binds the adapter for the song. Takes ownership of the held
// lock and releases it.
//
// Playback is optimistic from the bind: the song becomes current
// immediately, and the ready event completes the start. A bind failure
// leaves the song current but stopped.
func (c *Coordinator) startLocked(ctx context.Context, song models.Song) error {
	c.unbindLocked()

	adapter, ok := c.adapters[song.Kind]
	if !ok {
		c.state.CurrentSong = &song
		c.state.IsPlaying = false
		c.state.CurrentTime = 0
		c.state.Duration = 0
		c.notifyLocked()
		c.mu.Unlock()
		return fmt.Errorf("%w: no adapter for %s", shared.ErrNoBackend, song.Kind)
	}

	binding := shared.GenerateID()
	c.binding = binding
	c.active = adapter
	c.seek = nil
	c.state.CurrentSong = &song
	c.state.IsPlaying = true
	c.state.CurrentTime = 0
	c.state.Duration = song.DurationHint
	c.notifyLocked()
	c.mu.Unlock()

	if err := adapter.Bind(ctx, song, binding); err != nil {
		c.logger.Error("failed to start song", "song", song.ID, "kind", song.Kind, "err", err)
		c.mu.Lock()
		if c.binding == binding {
			c.binding = ""
			c.active = nil
			c.state.IsPlaying = false
			c.notifyLocked()
		}
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", shared.ErrBackendFailed, err)
	}
	return nil
}

// unbindLocked releases the active adapter binding. Caller holds the lock.
func (c *Coordinator) unbindLocked() {
	if c.active != nil {
		c.active.Unbind()
	}
	c.active = nil
	c.binding = ""
	c.seek = nil
}

// Stop unbinds and clears playback, keeping the queue.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.unbindLocked()
	c.state.IsPlaying = false
	c.state.CurrentTime = 0
	c.notifyLocked()
	c.mu.Unlock()
}

// PlayPause toggles playback of the current song. Without one it is a
// no-op.
func (c *Coordinator) PlayPause() error {
	c.mu.Lock()
	adapter := c.active
	if adapter == nil {
		c.mu.Unlock()
		return nil
	}
	playing := !c.state.IsPlaying
	c.state.IsPlaying = playing
	c.notifyLocked()
	c.mu.Unlock()

	if playing {
		return adapter.Play()
	}
	return adapter.Pause()
}

// SeekTo moves playback to the given position.
//
// The state jumps to the target immediately and backend time reports that
// still show the pre-seek position are discarded until the backend lands
// near the target or the grace window expires.
func (c *Coordinator) SeekTo(seconds float64) error {
	target, ok := models.ClampSeconds(seconds)
	if !ok {
		return fmt.Errorf("%w: bad seek target", shared.ErrInvalidInput)
	}

	c.mu.Lock()
	adapter := c.active
	if adapter == nil {
		c.mu.Unlock()
		return shared.ErrNotBound
	}
	if d := c.state.Duration; d > 0 && target > d {
		target = d
	}
	c.state.CurrentTime = target
	c.seek = &seekIntent{target: target, expires: c.now().Add(seekGrace)}
	c.notifyLocked()
	c.mu.Unlock()

	return adapter.Seek(target)
}

// SetVolume sets the shared volume for all backends.
func (c *Coordinator) SetVolume(v int) error {
	v = models.ClampVolume(v)
	c.mu.Lock()
	c.state.Volume = v
	adapter := c.active
	c.notifyLocked()
	c.mu.Unlock()

	if adapter == nil {
		return nil
	}
	return adapter.SetVolume(v)
}

// handle reconciles one adapter event into the state.
func (c *Coordinator) handle(ev backend.Event) {
	c.mu.Lock()

	if ev.Binding == "" || ev.Binding != c.binding {
		c.mu.Unlock()
		return
	}

	switch ev.Kind {
	case backend.EventReady:
		adapter := c.active
		volume := c.state.Volume
		wantPlaying := c.state.IsPlaying
		c.mu.Unlock()
		c.ready(ev.Binding, adapter, volume, wantPlaying)
		return

	case backend.EventState:
		if c.state.IsPlaying != ev.Playing {
			c.state.IsPlaying = ev.Playing
			c.notifyLocked()
		}

	case backend.EventTime:
		seconds := ev.Seconds
		if c.seek != nil {
			if c.now().Before(c.seek.expires) && abs(seconds-c.seek.target) > seekTolerance {
				c.mu.Unlock()
				return
			}
			c.seek = nil
		}
		if d := c.state.Duration; d > 0 && seconds > d {
			seconds = d
		}
		c.state.CurrentTime = seconds
		c.notifyLocked()

	case backend.EventDuration:
		if ev.Seconds > 0 {
			c.state.Duration = ev.Seconds
			c.notifyLocked()
		}

	case backend.EventEnded:
		song, ok := c.queue.Advance()
		if !ok {
			// End of queue: stay on the last song, stopped.
			c.unbindLocked()
			c.state.IsPlaying = false
			c.notifyLocked()
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		go func() {
			if err := c.startSong(song); err != nil {
				c.logger.Error("auto-advance failed", "song", song.ID, "err", err)
			}
		}()
		return
	}

	c.mu.Unlock()
}

// ready completes a song start once the backend reports it can accept
// commands: syncs the shared volume, then issues the pending play.
func (c *Coordinator) ready(binding string, adapter backend.Adapter, volume int, wantPlaying bool) {
	if adapter == nil {
		return
	}
	if err := adapter.SetVolume(volume); err != nil {
		c.logger.Warn("volume sync failed", "err", err)
	}
	if !wantPlaying {
		return
	}
	if err := adapter.Play(); err != nil {
		c.logger.Error("autoplay failed", "err", err)
		c.mu.Lock()
		if binding == c.binding {
			c.state.IsPlaying = false
			c.notifyLocked()
		}
		c.mu.Unlock()
	}
}

// startSong starts a song from the event loop's auto-advance path.
func (c *Coordinator) startSong(song models.Song) error {
	c.mu.Lock()
	return c.startLocked(context.Background(), song)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
