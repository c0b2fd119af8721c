package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/subwave-fm/subwave/internal/models"
)

var _ list.Item = songItem{}

// songItem wraps [models.Song] to implement [list.Item].
type songItem struct {
	song    models.Song
	playing bool
}

func (i songItem) FilterValue() string { return i.song.Title }

func (i songItem) Title() string {
	if i.playing {
		return "▶ " + i.song.Title
	}
	return i.song.Title
}

func (i songItem) Description() string {
	desc := string(i.song.Kind)
	if i.song.DurationHint > 0 {
		desc = fmt.Sprintf("%s • %s", desc, formatTime(i.song.DurationHint))
	}
	return desc
}

// formatTime renders seconds as m:ss (or h:mm:ss past the hour).
func formatTime(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
