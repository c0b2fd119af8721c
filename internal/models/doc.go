// Package models holds the shared value types of the player: songs, the
// logical playback state, and the wire shapes of upstream listings.
//
// Song values are immutable once produced by the feed parser. PlaybackState
// is owned and mutated exclusively by the playback coordinator; everything
// else reads snapshots.
package models
