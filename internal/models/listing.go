package models

import "encoding/json"

// Listing mirrors the upstream listing envelope served through the proxy.
//
// Fields the parser does not consume are left as raw JSON so malformed
// extras never break decoding.
type Listing struct {
	Data ListingData `json:"data"`
}

// ListingData carries one page of feed items plus the pagination cursor.
//
// After is the opaque cursor for the next page; empty means exhausted.
type ListingData struct {
	After    string     `json:"after"`
	Children []FeedItem `json:"children"`
}

// FeedItem is one raw post in a listing page.
type FeedItem struct {
	Kind string       `json:"kind"`
	Data FeedItemData `json:"data"`
}

// FeedItemData is the subset of post fields the parser reads.
//
// Every field is optional on the wire; the parser tolerates absence.
type FeedItemData struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	URL       string          `json:"url"`
	Permalink string          `json:"permalink"`
	Thumbnail string          `json:"thumbnail"`
	IsSelf    bool            `json:"is_self"`
	Media     json.RawMessage `json:"media"`
}
