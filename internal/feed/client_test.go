package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/subwave-fm/subwave/internal/shared"
)

func TestClient(t *testing.T) {
	t.Run("listing hits the proxy with the query parameters", func(t *testing.T) {
		var got *http.Request
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Clone(context.Background())
			w.Write([]byte(`{"data":{"after":"c1","children":[]}}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, srv.Client())
		listing, err := client.Listing(context.Background(), ListingRequest{
			Subreddit: "listentothis",
			Sort:      "top",
			Window:    "week",
			After:     "c0",
			Limit:     25,
		})
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if listing.Data.After != "c1" {
			t.Errorf("cursor lost: %q", listing.Data.After)
		}

		if got.URL.Path != "/api/listing" {
			t.Errorf("wrong endpoint %q", got.URL.Path)
		}
		q := got.URL.Query()
		if q.Get("path") != "/r/listentothis/top.json" || q.Get("t") != "week" || q.Get("after") != "c0" || q.Get("limit") != "25" {
			t.Errorf("query parameters mangled: %v", q)
		}
	})

	t.Run("a query routes through search", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/search" || r.URL.Query().Get("q") != "shoegaze" {
				t.Errorf("unexpected request %s %v", r.URL.Path, r.URL.Query())
			}
			w.Write([]byte(`{"data":{"after":"","children":[]}}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, srv.Client())
		if _, err := client.Listing(context.Background(), ListingRequest{Query: "shoegaze"}); err != nil {
			t.Fatalf("search: %v", err)
		}
	})

	t.Run("neither subreddit nor query is rejected locally", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:0", nil)
		_, err := client.Listing(context.Background(), ListingRequest{})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("wire error classifications map back to sentinels", func(t *testing.T) {
		cases := []struct {
			kind   string
			status int
			want   error
		}{
			{"rate-limited", http.StatusTooManyRequests, shared.ErrRateLimited},
			{"timeout", http.StatusGatewayTimeout, shared.ErrTimeout},
			{"network", http.StatusServiceUnavailable, shared.ErrNetwork},
			{"invalid-response", http.StatusInternalServerError, shared.ErrInvalidResponse},
			{"upstream-error", http.StatusBadGateway, shared.ErrUpstream},
		}
		for _, tc := range cases {
			t.Run(tc.kind, func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(tc.status)
					w.Write([]byte(`{"error":"` + tc.kind + `","message":"nope"}`))
				}))
				defer srv.Close()

				client := NewClient(srv.URL, srv.Client())
				_, err := client.Listing(context.Background(), ListingRequest{Subreddit: "music"})
				if !errors.Is(err, tc.want) {
					t.Errorf("kind %q: expected %v, got %v", tc.kind, tc.want, err)
				}
			})
		}
	})

	t.Run("comments proxies the permalink", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/comments" {
				t.Errorf("wrong endpoint %q", r.URL.Path)
			}
			if r.URL.Query().Get("permalink") != "/r/music/comments/abc/x/" {
				t.Errorf("permalink mangled: %q", r.URL.Query().Get("permalink"))
			}
			w.Write([]byte(`[{"kind":"Listing"}]`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, srv.Client())
		raw, err := client.Comments(context.Background(), "/r/music/comments/abc/x/", "top")
		if err != nil {
			t.Fatalf("comments: %v", err)
		}
		if len(raw) == 0 {
			t.Error("empty comment payload")
		}
	})
}
