package feed

import (
	"fmt"
	"html"
	"net/url"
	"path"
	"strings"

	"github.com/subwave-fm/subwave/internal/models"
	"github.com/subwave-fm/subwave/internal/shared"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".ogg":  true,
	".oga":  true,
	".wav":  true,
	".m4a":  true,
	".flac": true,
}

// ClassifyURL decides which backend can play the given URL. The second
// return is false for anything that is not recognized media (text posts,
// images, articles).
func ClassifyURL(raw string) (models.SourceKind, bool) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	switch {
	case host == "youtube.com" || host == "m.youtube.com" || host == "music.youtube.com" || host == "youtu.be":
		return models.KindYouTube, true
	case host == "vimeo.com" || host == "player.vimeo.com":
		// Only numeric video paths are playable; channel and user pages
		// share the host.
		segment := strings.Trim(parsed.Path, "/")
		if segment == "" {
			return "", false
		}
		segment = path.Base(segment)
		for _, r := range segment {
			if r < '0' || r > '9' {
				return "", false
			}
		}
		return models.KindVimeo, true
	case host == "soundcloud.com" || host == "on.soundcloud.com" || strings.HasSuffix(host, ".soundcloud.com"):
		return models.KindSoundCloud, true
	}

	if audioExtensions[strings.ToLower(path.Ext(parsed.Path))] {
		return models.KindAudioFile, true
	}
	return "", false
}

// ParseItem turns one raw feed item into a Song.
//
// Self posts and items without playable media are rejected with ErrParse;
// the caller drops them and moves on. Titles arrive HTML-escaped upstream.
func ParseItem(item models.FeedItem) (models.Song, error) {
	data := item.Data
	if data.ID == "" {
		return models.Song{}, fmt.Errorf("%w: item has no id", shared.ErrParse)
	}
	if data.IsSelf {
		return models.Song{}, fmt.Errorf("%w: %s is a self post", shared.ErrParse, data.ID)
	}
	if data.URL == "" {
		return models.Song{}, fmt.Errorf("%w: %s has no url", shared.ErrParse, data.ID)
	}

	kind, ok := ClassifyURL(data.URL)
	if !ok {
		return models.Song{}, fmt.Errorf("%w: %s is not playable media", shared.ErrParse, data.ID)
	}

	song := models.Song{
		ID:        data.ID,
		Title:     html.UnescapeString(data.Title),
		URL:       data.URL,
		Kind:      kind,
		Permalink: data.Permalink,
	}
	if thumb := data.Thumbnail; strings.HasPrefix(thumb, "http") {
		song.Thumbnail = thumb
	}
	return song, nil
}

// ParseListing extracts the playable songs and the pagination cursor from
// one listing page. Unparseable items are dropped, never fatal.
func ParseListing(listing models.Listing) ([]models.Song, string) {
	songs := make([]models.Song, 0, len(listing.Data.Children))
	for _, item := range listing.Data.Children {
		song, err := ParseItem(item)
		if err != nil {
			continue
		}
		songs = append(songs, song)
	}
	return songs, listing.Data.After
}
