// Package playback owns the logical player: one queue, one playback state,
// one coordinator reconciling user commands against backend events.
package playback
