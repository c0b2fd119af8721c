package proxy

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Cache persists upstream responses keyed by the fully-resolved upstream URL.
//
// Entries older than the caller's freshness window are treated as absent;
// they are overwritten on the next successful fetch rather than evicted.
type Cache struct {
	db *sqlx.DB
}

type cachedResponse struct {
	URL       string    `db:"url"`
	Body      []byte    `db:"body"`
	FetchedAt time.Time `db:"fetched_at"`
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS responses (
	url TEXT PRIMARY KEY,
	body BLOB NOT NULL,
	fetched_at TIMESTAMP NOT NULL
);`

// NewCache creates the response table if needed and returns the store.
func NewCache(db *sqlx.DB) (*Cache, error) {
	if _, err := db.Exec(cacheSchema); err != nil {
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get returns the cached body for url if it is younger than maxAge.
// Lookup failures of any kind read as a miss; the fetch path repopulates.
func (c *Cache) Get(url string, maxAge time.Duration) ([]byte, bool) {
	var row cachedResponse
	if err := c.db.Get(&row, "SELECT url, body, fetched_at FROM responses WHERE url = ?", url); err != nil {
		return nil, false
	}

	if time.Since(row.FetchedAt) > maxAge {
		return nil, false
	}

	return row.Body, true
}

// Put stores or replaces the cached body for url.
func (c *Cache) Put(url string, body []byte) error {
	_, err := c.db.Exec(
		"INSERT INTO responses (url, body, fetched_at) VALUES (?, ?, ?) ON CONFLICT(url) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at",
		url, body, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}
