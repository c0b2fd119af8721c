// Package ui implements the interactive player using bubbletea's Elm architecture.
//
// A single queue view doubles as the transport surface: the song list on
// top, a progress/volume line below, and the feed pipeline's status at the
// bottom. Playback state arrives over the coordinator's subscription
// channel; a half-second ticker keeps the queue list in sync with feed
// pagination and triggers pre-fetching near the tail.
//
// Keyboard navigation uses vim-style bindings (j/k, h/l for seeking, space
// for play/pause) with contextual help via charmbracelet/bubbles/help.
package ui
