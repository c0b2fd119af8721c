package playback

import "github.com/subwave-fm/subwave/internal/models"

// Queue holds the ordered songs and the cursor of the active one.
//
// Queue is not safe for concurrent use; the Coordinator serializes access
// under its own lock.
type Queue struct {
	songs  []models.Song
	seen   map[string]bool
	cursor int
}

// NewQueue returns an empty queue with the cursor parked before the first
// slot.
func NewQueue() *Queue {
	return &Queue{seen: map[string]bool{}, cursor: -1}
}

// SetAll replaces the queue contents, deduplicating by song ID. The cursor
// lands on the first song, or -1 when the result is empty.
func (q *Queue) SetAll(songs []models.Song) {
	q.songs = q.songs[:0]
	q.seen = map[string]bool{}
	q.Append(songs)
	if len(q.songs) > 0 {
		q.cursor = 0
	} else {
		q.cursor = -1
	}
}

// Append adds songs to the tail, skipping IDs already present. Pagination
// feeds overlap at page boundaries; the overlap must not produce repeats.
func (q *Queue) Append(songs []models.Song) {
	for _, song := range songs {
		if song.ID == "" || q.seen[song.ID] {
			continue
		}
		q.seen[song.ID] = true
		q.songs = append(q.songs, song)
	}
}

// Len returns the number of queued songs.
func (q *Queue) Len() int {
	return len(q.songs)
}

// Songs returns a copy of the queued songs.
func (q *Queue) Songs() []models.Song {
	out := make([]models.Song, len(q.songs))
	copy(out, q.songs)
	return out
}

// Current returns the song under the cursor.
func (q *Queue) Current() (models.Song, bool) {
	if q.cursor < 0 || q.cursor >= len(q.songs) {
		return models.Song{}, false
	}
	return q.songs[q.cursor], true
}

// Cursor returns the active index, -1 when nothing has been selected.
func (q *Queue) Cursor() int {
	return q.cursor
}

// Select moves the cursor to the song with the given ID.
func (q *Queue) Select(id string) (models.Song, bool) {
	for i, song := range q.songs {
		if song.ID == id {
			q.cursor = i
			return song, true
		}
	}
	return models.Song{}, false
}

// Advance moves the cursor forward. At the tail it reports false and leaves
// the cursor in place.
func (q *Queue) Advance() (models.Song, bool) {
	if q.cursor+1 >= len(q.songs) {
		return models.Song{}, false
	}
	q.cursor++
	return q.songs[q.cursor], true
}

// Retreat moves the cursor backward. At the head it reports false.
func (q *Queue) Retreat() (models.Song, bool) {
	if q.cursor <= 0 {
		return models.Song{}, false
	}
	q.cursor--
	return q.songs[q.cursor], true
}

// NearEnd reports whether the cursor is within margin songs of the tail,
// the signal for fetching another feed page.
func (q *Queue) NearEnd(margin int) bool {
	return q.cursor >= 0 && len(q.songs)-q.cursor-1 <= margin
}
