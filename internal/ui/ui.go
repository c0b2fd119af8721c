package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/subwave-fm/subwave/internal/feed"
	"github.com/subwave-fm/subwave/internal/models"
	"github.com/subwave-fm/subwave/internal/playback"
)

// prefetchMargin is how close to the queue tail playback may get before
// the next feed page is requested.
const prefetchMargin = 3

const (
	progressWidth = 30
	seekStep      = 10
	volumeStep    = 5
)

// Model represents the player TUI state.
type Model struct {
	ctx         context.Context
	coordinator *playback.Coordinator
	pipeline    *feed.Pipeline
	states      <-chan models.PlaybackState

	width     int
	height    int
	state     models.PlaybackState
	queueList list.Model
	help      help.Model
	keys      keyMap
	err       error
}

type stateMsg models.PlaybackState

type tickMsg struct{}

// NewModel creates a player model over the coordinator and pipeline.
func NewModel(ctx context.Context, coordinator *playback.Coordinator, pipeline *feed.Pipeline) *Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Queue"
	l.SetShowStatusBar(false)

	return &Model{
		ctx:         ctx,
		coordinator: coordinator,
		pipeline:    pipeline,
		states:      coordinator.Subscribe(),
		state:       coordinator.State(),
		queueList:   l,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init starts the state subscription and the refresh ticker.
func (m *Model) Init() tea.Cmd {
	m.syncQueue()
	return tea.Batch(m.waitForState(), m.tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.queueList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case stateMsg:
		m.state = models.PlaybackState(msg)
		m.syncQueue()
		return m, m.waitForState()

	case tickMsg:
		m.syncQueue()
		if m.coordinator.NearQueueEnd(prefetchMargin) && !m.pipeline.Exhausted() {
			m.pipeline.FetchMore(m.ctx)
		}
		return m, m.tick()
	}

	var cmd tea.Cmd
	m.queueList, cmd = m.queueList.Update(msg)
	return m, cmd
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "q" || msg.String() == "ctrl+c":
		return m, tea.Quit

	case msg.String() == "enter":
		if item, ok := m.queueList.SelectedItem().(songItem); ok {
			m.err = m.coordinator.PlaySong(m.ctx, item.song.ID)
		}
		return m, nil

	case msg.String() == " ":
		m.err = m.coordinator.PlayPause()
		return m, nil

	case msg.String() == "n":
		m.err = m.coordinator.Next(m.ctx)
		return m, nil

	case msg.String() == "p":
		m.err = m.coordinator.Previous(m.ctx)
		return m, nil

	case msg.String() == "left" || msg.String() == "h":
		target := m.state.CurrentTime - seekStep
		if target < 0 {
			target = 0
		}
		m.err = m.coordinator.SeekTo(target)
		return m, nil

	case msg.String() == "right" || msg.String() == "l":
		m.err = m.coordinator.SeekTo(m.state.CurrentTime + seekStep)
		return m, nil

	case msg.String() == "+" || msg.String() == "=":
		m.err = m.coordinator.SetVolume(m.state.Volume + volumeStep)
		return m, nil

	case msg.String() == "-":
		m.err = m.coordinator.SetVolume(m.state.Volume - volumeStep)
		return m, nil

	case msg.String() == "m":
		m.pipeline.FetchMore(m.ctx)
		return m, nil

	case msg.String() == "r":
		m.pipeline.Retry(m.ctx)
		return m, nil
	}

	var cmd tea.Cmd
	m.queueList, cmd = m.queueList.Update(msg)
	return m, cmd
}

// View renders the queue, the transport line and the feed status.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.queueList.View())
	b.WriteString("\n\n")
	b.WriteString(m.renderTransport())
	b.WriteString("\n")
	b.WriteString(m.renderFeedStatus())
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) renderTransport() string {
	if m.state.CurrentSong == nil {
		return styles.help.Render("nothing playing (enter starts a song)")
	}

	symbol := "⏸"
	if m.state.IsPlaying {
		symbol = "▶"
	}

	clock := formatTime(m.state.CurrentTime)
	if m.state.Duration > 0 {
		clock = fmt.Sprintf("%s / %s", clock, formatTime(m.state.Duration))
	}

	volume := fmt.Sprintf("vol %d%%", m.state.Volume)
	if m.state.Muted() {
		volume = "muted"
	}

	return fmt.Sprintf("%s %s\n%s %s  %s",
		symbol,
		styles.title.Render(m.state.CurrentSong.Title),
		m.renderProgress(),
		clock,
		styles.help.Render(volume),
	)
}

func (m *Model) renderProgress() string {
	filled := int(m.state.Progress() * progressWidth)
	if filled > progressWidth {
		filled = progressWidth
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", progressWidth-filled) + "]"
}

func (m *Model) renderFeedStatus() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("error: %v", m.err))
	}

	switch m.pipeline.Status() {
	case feed.StatusFetching:
		return styles.warn.Render("loading feed…")
	case feed.StatusFailed:
		return styles.err.Render(fmt.Sprintf("feed failed: %v (press r to retry)", m.pipeline.Err()))
	default:
		if m.pipeline.Exhausted() {
			return styles.help.Render("end of feed")
		}
		return ""
	}
}

// syncQueue rebuilds the list items when the queue or the current song
// changed.
func (m *Model) syncQueue() {
	songs := m.coordinator.Songs()
	cursor := m.coordinator.Cursor()

	items := make([]list.Item, len(songs))
	for i, song := range songs {
		items[i] = songItem{song: song, playing: i == cursor && m.state.IsPlaying}
	}
	m.queueList.SetItems(items)
}

func (m *Model) waitForState() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.states
		if !ok {
			return tea.Quit()
		}
		return stateMsg(s)
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}
