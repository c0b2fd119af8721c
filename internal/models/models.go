// package models defines the data model for the feed player
package models

import "math"

// SourceKind identifies which media backend a song plays through.
type SourceKind string

const (
	KindAudioFile  SourceKind = "audio-file"
	KindYouTube    SourceKind = "youtube"
	KindVimeo      SourceKind = "vimeo"
	KindSoundCloud SourceKind = "soundcloud"
)

// Song is an immutable playable item produced by the feed parser.
//
// ID is the dedup key, derived from the source post. URL is the normalized
// playable URL for the backend named by Kind.
type Song struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	Kind         SourceKind `json:"kind"`
	Permalink    string     `json:"permalink,omitempty"`
	Thumbnail    string     `json:"thumbnail,omitempty"`
	DurationHint float64    `json:"duration_hint,omitempty"` // seconds, 0 = unknown
}

// PlaybackState is the single logical player state owned by the coordinator.
//
// CurrentTime and Duration are seconds; Duration 0 means unknown.
// Volume is 0-100, with 0 displayed as muted.
type PlaybackState struct {
	CurrentSong *Song   `json:"current_song"`
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Volume      int     `json:"volume"`
}

// Progress returns playback progress as a fraction in [0, 1].
//
// Unknown duration always yields 0, regardless of CurrentTime, so a new
// song never inherits the previous song's progress bar.
func (s PlaybackState) Progress() float64 {
	if s.Duration <= 0 || math.IsNaN(s.Duration) || math.IsInf(s.Duration, 0) {
		return 0
	}
	t := s.CurrentTime
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	p := t / s.Duration
	if p > 1 {
		return 1
	}
	return p
}

// Muted reports whether the player should display as muted.
func (s PlaybackState) Muted() bool {
	return s.Volume == 0
}

// ClampSeconds discards non-finite or negative time reports.
//
// Returns the sanitized value and whether the report is usable at all.
func ClampSeconds(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// ClampVolume clamps a volume command into the 0-100 range.
func ClampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
