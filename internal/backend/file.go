package backend

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/subwave-fm/subwave/internal/models"
	"github.com/subwave-fm/subwave/internal/shared"
)

const fileSampleRate = beep.SampleRate(44100)

// The audio device is initialized exactly once per process. Binds racing
// the first init wait on the same Once instead of double-initializing.
var (
	speakerOnce sync.Once
	speakerErr  error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(fileSampleRate, fileSampleRate.N(time.Second/10))
	})
	return speakerErr
}

// FileAdapter plays direct audio-file URLs through the local audio device.
//
// Unlike the embed adapters there is no remote protocol: time is derived
// from the decoder's sample position on a short ticker, and play/pause are
// synchronous, so state events are emitted at command time.
type FileAdapter struct {
	sink       Sink
	httpClient *http.Client
	logger     *log.Logger

	mu       sync.Mutex
	binding  string
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	body     *http.Response
	playing  bool
	done     chan struct{}
}

// NewFile creates a FileAdapter. A nil client falls back to
// [http.DefaultClient].
func NewFile(sink Sink, client *http.Client, logger *log.Logger) *FileAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &FileAdapter{sink: sink, httpClient: client, logger: logger}
}

// Kind returns which source kind this adapter plays.
func (a *FileAdapter) Kind() models.SourceKind {
	return models.KindAudioFile
}

func decode(url string, body *http.Response) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0])) {
	case ".wav":
		return wav.Decode(body.Body)
	case ".flac":
		return flac.Decode(body.Body)
	case ".ogg", ".oga":
		return vorbis.Decode(body.Body)
	default:
		return mp3.Decode(body.Body)
	}
}

// Bind opens the stream, decodes it and hands it to the audio device
// paused. Emits ready and the decoded duration once the pipeline is up.
func (a *FileAdapter) Bind(ctx context.Context, song models.Song, binding string) error {
	if err := initSpeaker(); err != nil {
		return fmt.Errorf("%w: speaker init: %v", shared.ErrBackendFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, song.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrBackendFailed, err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrBackendFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("%w: stream HTTP %d", shared.ErrBackendFailed, resp.StatusCode)
	}

	streamer, format, err := decode(song.URL, resp)
	if err != nil {
		resp.Body.Close()
		return fmt.Errorf("%w: decode: %v", shared.ErrBackendFailed, err)
	}

	a.mu.Lock()
	a.teardownLocked()

	resampled := beep.Resample(4, format.SampleRate, fileSampleRate, streamer)
	ctrl := &beep.Ctrl{Streamer: resampled, Paused: true}
	volume := &effects.Volume{Streamer: ctrl, Base: 2, Volume: 0}

	a.binding = binding
	a.streamer = streamer
	a.format = format
	a.ctrl = ctrl
	a.volume = volume
	a.body = resp
	a.playing = false
	a.done = make(chan struct{})
	done := a.done
	a.mu.Unlock()

	speaker.Play(beep.Seq(volume, beep.Callback(func() {
		a.finished(binding)
	})))

	go a.tick(binding, done)

	emit(a.sink, Event{Binding: binding, Kind: EventReady})
	if secs, ok := models.ClampSeconds(format.SampleRate.D(streamer.Len()).Seconds()); ok && secs > 0 {
		emit(a.sink, Event{Binding: binding, Kind: EventDuration, Seconds: secs})
	}
	return nil
}

// finished emits the end-of-media event unless the binding already changed.
func (a *FileAdapter) finished(binding string) {
	a.mu.Lock()
	current := a.binding == binding
	if current {
		a.playing = false
	}
	a.mu.Unlock()
	if current {
		emit(a.sink, Event{Binding: binding, Kind: EventEnded})
	}
}

// tick reports the decoder position while the binding lives.
func (a *FileAdapter) tick(binding string, done chan struct{}) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		a.mu.Lock()
		if a.binding != binding || a.streamer == nil {
			a.mu.Unlock()
			return
		}
		speaker.Lock()
		position := a.format.SampleRate.D(a.streamer.Position()).Seconds()
		speaker.Unlock()
		a.mu.Unlock()

		if secs, ok := models.ClampSeconds(position); ok {
			emit(a.sink, Event{Binding: binding, Kind: EventTime, Seconds: secs})
		}
	}
}

// Unbind stops playback and releases the stream.
func (a *FileAdapter) Unbind() {
	a.mu.Lock()
	a.teardownLocked()
	a.mu.Unlock()
}

// teardownLocked releases the current pipeline. Caller holds the lock.
func (a *FileAdapter) teardownLocked() {
	if a.ctrl != nil {
		speaker.Lock()
		a.ctrl.Paused = true
		speaker.Unlock()
		a.ctrl = nil
	}
	if a.done != nil {
		close(a.done)
		a.done = nil
	}
	if a.streamer != nil {
		a.streamer.Close()
		a.streamer = nil
	}
	if a.body != nil {
		a.body.Body.Close()
		a.body = nil
	}
	a.binding = ""
	a.playing = false
}

// Play resumes the paused controller. Local playback cannot be rejected,
// so the state event is emitted synchronously.
func (a *FileAdapter) Play() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctrl == nil {
		return shared.ErrNotBound
	}

	speaker.Lock()
	a.ctrl.Paused = false
	speaker.Unlock()
	a.playing = true
	emit(a.sink, Event{Binding: a.binding, Kind: EventState, Playing: true})
	return nil
}

// Pause pauses the controller.
func (a *FileAdapter) Pause() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctrl == nil {
		return shared.ErrNotBound
	}

	speaker.Lock()
	a.ctrl.Paused = true
	speaker.Unlock()
	a.playing = false
	emit(a.sink, Event{Binding: a.binding, Kind: EventState, Playing: false})
	return nil
}

// Seek repositions the decoder. The controller's paused flag is untouched,
// so the pre-seek play state carries through without a resume dance.
func (a *FileAdapter) Seek(seconds float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.streamer == nil {
		return shared.ErrNotBound
	}

	secs, ok := models.ClampSeconds(seconds)
	if !ok {
		return fmt.Errorf("%w: bad seek target", shared.ErrInvalidInput)
	}

	sample := a.format.SampleRate.N(time.Duration(secs * float64(time.Second)))
	if max := a.streamer.Len(); sample > max {
		sample = max
	}

	speaker.Lock()
	err := a.streamer.Seek(sample)
	speaker.Unlock()
	if err != nil {
		return fmt.Errorf("%w: seek: %v", shared.ErrBackendFailed, err)
	}
	return nil
}

// SetVolume maps the 0-100 scale onto the device's exponential volume;
// 0 mutes outright.
func (a *FileAdapter) SetVolume(v int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.volume == nil {
		return shared.ErrNotBound
	}

	v = models.ClampVolume(v)
	speaker.Lock()
	a.volume.Silent = v == 0
	a.volume.Volume = float64(v)/25 - 4 // 100 -> 0, fading toward silence
	speaker.Unlock()
	return nil
}

var _ Adapter = (*FileAdapter)(nil)
