package feed

import (
	"errors"
	"testing"

	"github.com/subwave-fm/subwave/internal/models"
	"github.com/subwave-fm/subwave/internal/shared"
)

func TestClassifyURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		kind models.SourceKind
		ok   bool
	}{
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", models.KindYouTube, true},
		{"youtube short link", "https://youtu.be/dQw4w9WgXcQ", models.KindYouTube, true},
		{"youtube music", "https://music.youtube.com/watch?v=abc", models.KindYouTube, true},
		{"vimeo video", "https://vimeo.com/76979871", models.KindVimeo, true},
		{"vimeo player", "https://player.vimeo.com/video/76979871", models.KindVimeo, true},
		{"vimeo channel page", "https://vimeo.com/channels/staffpicks", "", false},
		{"vimeo user page", "https://vimeo.com/someband", "", false},
		{"soundcloud track", "https://soundcloud.com/artist/track", models.KindSoundCloud, true},
		{"soundcloud short link", "https://on.soundcloud.com/abc123", models.KindSoundCloud, true},
		{"mp3 file", "https://example.com/audio/song.mp3", models.KindAudioFile, true},
		{"mp3 with query", "https://example.com/song.mp3?token=x", models.KindAudioFile, true},
		{"ogg file", "https://example.com/song.ogg", models.KindAudioFile, true},
		{"flac file", "https://example.com/song.FLAC", models.KindAudioFile, true},
		{"image post", "https://i.imgur.com/abc.jpg", "", false},
		{"article", "https://pitchfork.com/reviews/albums/123", "", false},
		{"relative url", "/r/listentothis", "", false},
		{"garbage", "::not a url::", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, ok := ClassifyURL(tc.url)
			if ok != tc.ok || kind != tc.kind {
				t.Errorf("ClassifyURL(%q) = %q, %v; want %q, %v", tc.url, kind, ok, tc.kind, tc.ok)
			}
		})
	}
}

func item(id, title, url string) models.FeedItem {
	return models.FeedItem{
		Kind: "t3",
		Data: models.FeedItemData{
			ID:        id,
			Title:     title,
			URL:       url,
			Permalink: "/r/listentothis/comments/" + id + "/x/",
		},
	}
}

func TestParseItem(t *testing.T) {
	t.Run("playable item becomes a song", func(t *testing.T) {
		raw := item("abc1", "Artist -- Song [indie] (2024)", "https://youtu.be/xyz")
		raw.Data.Thumbnail = "https://b.thumbs.example/t.jpg"

		song, err := ParseItem(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if song.ID != "abc1" || song.Kind != models.KindYouTube {
			t.Errorf("unexpected song %+v", song)
		}
		if song.Thumbnail == "" {
			t.Error("http thumbnail should be kept")
		}
	})

	t.Run("titles are html unescaped", func(t *testing.T) {
		song, err := ParseItem(item("abc2", "Belle &amp; Sebastian &quot;Live&quot;", "https://youtu.be/xyz"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if song.Title != `Belle & Sebastian "Live"` {
			t.Errorf("title not unescaped: %q", song.Title)
		}
	})

	t.Run("placeholder thumbnails are dropped", func(t *testing.T) {
		raw := item("abc3", "t", "https://youtu.be/xyz")
		raw.Data.Thumbnail = "self"
		song, err := ParseItem(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if song.Thumbnail != "" {
			t.Errorf("placeholder thumbnail kept: %q", song.Thumbnail)
		}
	})

	t.Run("rejections carry the parse sentinel", func(t *testing.T) {
		self := item("abc4", "discussion thread", "https://reddit.com/r/x")
		self.Data.IsSelf = true

		bad := []models.FeedItem{
			self,
			item("", "no id", "https://youtu.be/xyz"),
			item("abc5", "no url", ""),
			item("abc6", "article", "https://example.com/news"),
		}
		for _, raw := range bad {
			if _, err := ParseItem(raw); !errors.Is(err, shared.ErrParse) {
				t.Errorf("item %q: expected ErrParse, got %v", raw.Data.ID, err)
			}
		}
	})
}

func TestParseListing(t *testing.T) {
	self := item("s1", "weekly thread", "https://reddit.com/r/x")
	self.Data.IsSelf = true

	listing := models.Listing{Data: models.ListingData{
		After: "t3_cursor",
		Children: []models.FeedItem{
			item("a", "one", "https://youtu.be/a"),
			self,
			item("b", "two", "https://example.com/b.mp3"),
			item("c", "article", "https://example.com/review"),
		},
	}}

	songs, after := ParseListing(listing)
	if after != "t3_cursor" {
		t.Errorf("cursor lost: %q", after)
	}
	if len(songs) != 2 {
		t.Fatalf("expected 2 playable songs, got %d", len(songs))
	}
	if songs[0].ID != "a" || songs[1].ID != "b" {
		t.Errorf("wrong songs survived: %+v", songs)
	}
}
