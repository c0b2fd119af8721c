package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/subwave-fm/subwave/internal/models"
	"github.com/subwave-fm/subwave/internal/shared"
)

func page(after string, ids ...string) models.Listing {
	children := make([]models.FeedItem, len(ids))
	for i, id := range ids {
		children[i] = item(id, "song "+id, "https://youtu.be/"+id)
	}
	return models.Listing{Data: models.ListingData{After: after, Children: children}}
}

// fakeLister answers Listing calls from a script; a nil gate answers
// immediately, otherwise the call blocks until the gate closes.
type fakeLister struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, req ListingRequest) (models.Listing, error)
	gate  chan struct{}
}

func (f *fakeLister) Listing(ctx context.Context, req ListingRequest) (models.Listing, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	gate := f.gate
	fn := f.fn
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.Listing{}, shared.WrapTransport(ctx.Err())
		}
	}
	return fn(call, req)
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordSink captures queue mutations.
type recordSink struct {
	mu       sync.Mutex
	replaced [][]models.Song
	appended [][]models.Song
}

func (s *recordSink) ReplaceQueue(songs []models.Song) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced = append(s.replaced, songs)
}

func (s *recordSink) AppendQueue(songs []models.Song) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, songs)
}

func (s *recordSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replaced), len(s.appended)
}

func waitStatus(t *testing.T, p *Pipeline, want Status) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p.Status() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %d, at %d", want, p.Status())
}

func newPipeline(fn func(call int, req ListingRequest) (models.Listing, error)) (*Pipeline, *fakeLister, *recordSink) {
	lister := &fakeLister{fn: fn}
	sink := &recordSink{}
	return NewPipeline(lister, sink, shared.NewLogger(nil)), lister, sink
}

func TestPipelineFetch(t *testing.T) {
	t.Run("first page replaces the queue and stores the cursor", func(t *testing.T) {
		p, _, sink := newPipeline(func(int, ListingRequest) (models.Listing, error) {
			return page("c1", "a", "b", "c"), nil
		})

		p.Fetch(context.Background(), ListingRequest{Subreddit: "listentothis"})
		waitStatus(t, p, StatusSucceeded)

		replaced, appended := sink.counts()
		if replaced != 1 || appended != 0 {
			t.Fatalf("expected one replace, got %d/%d", replaced, appended)
		}
		if len(sink.replaced[0]) != 3 {
			t.Errorf("expected 3 songs, got %d", len(sink.replaced[0]))
		}
		if p.Exhausted() {
			t.Error("cursor present, must not be exhausted")
		}
	})

	t.Run("fetch more appends with the stored cursor", func(t *testing.T) {
		p, _, sink := newPipeline(func(call int, req ListingRequest) (models.Listing, error) {
			if call == 1 {
				return page("c1", "a"), nil
			}
			if req.After != "c1" {
				t.Errorf("second page fetched with cursor %q, want c1", req.After)
			}
			return page("", "b"), nil
		})

		p.Fetch(context.Background(), ListingRequest{Subreddit: "music"})
		waitStatus(t, p, StatusSucceeded)
		p.FetchMore(context.Background())
		waitStatus(t, p, StatusSucceeded)

		replaced, appended := sink.counts()
		if replaced != 1 || appended != 1 {
			t.Fatalf("expected 1 replace + 1 append, got %d/%d", replaced, appended)
		}
		if !p.Exhausted() {
			t.Error("empty cursor should mark the feed exhausted")
		}
	})

	t.Run("fetch more after exhaustion is a no-op", func(t *testing.T) {
		p, lister, _ := newPipeline(func(int, ListingRequest) (models.Listing, error) {
			return page("", "a"), nil
		})

		p.Fetch(context.Background(), ListingRequest{Subreddit: "music"})
		waitStatus(t, p, StatusSucceeded)

		p.FetchMore(context.Background())
		time.Sleep(20 * time.Millisecond)
		if got := lister.callCount(); got != 1 {
			t.Errorf("exhausted feed fetched again: %d calls", got)
		}
	})

	t.Run("fetch more before any fetch is a no-op", func(t *testing.T) {
		p, lister, _ := newPipeline(func(int, ListingRequest) (models.Listing, error) {
			return page("", "a"), nil
		})
		p.FetchMore(context.Background())
		time.Sleep(20 * time.Millisecond)
		if lister.callCount() != 0 {
			t.Error("no query parameters yet, nothing should be fetched")
		}
	})
}

func TestPipelineSupersede(t *testing.T) {
	t.Run("a superseded response never touches the queue", func(t *testing.T) {
		gate := make(chan struct{})
		lister := &fakeLister{gate: gate, fn: func(call int, req ListingRequest) (models.Listing, error) {
			if req.Subreddit == "old" {
				return page("stale", "old1", "old2"), nil
			}
			return page("fresh", "new1"), nil
		}}
		sink := &recordSink{}
		p := NewPipeline(lister, sink, shared.NewLogger(nil))

		p.Fetch(context.Background(), ListingRequest{Subreddit: "old"})

		// Supersede while the first request is parked on the gate.
		p.Fetch(context.Background(), ListingRequest{Subreddit: "new"})
		close(gate)
		waitStatus(t, p, StatusSucceeded)
		time.Sleep(20 * time.Millisecond) // let the stale response drain

		sink.mu.Lock()
		defer sink.mu.Unlock()
		if len(sink.replaced) != 1 {
			t.Fatalf("expected exactly one replace, got %d", len(sink.replaced))
		}
		if sink.replaced[0][0].ID != "new1" {
			t.Errorf("stale response reached the queue: %+v", sink.replaced[0])
		}
	})

	t.Run("cancel discards the in-flight fetch", func(t *testing.T) {
		gate := make(chan struct{})
		lister := &fakeLister{gate: gate, fn: func(int, ListingRequest) (models.Listing, error) {
			return page("", "a"), nil
		}}
		sink := &recordSink{}
		p := NewPipeline(lister, sink, shared.NewLogger(nil))

		p.Fetch(context.Background(), ListingRequest{Subreddit: "music"})
		p.Cancel()
		close(gate)
		waitStatus(t, p, StatusCancelled)
		time.Sleep(20 * time.Millisecond)

		if replaced, appended := sink.counts(); replaced != 0 || appended != 0 {
			t.Error("cancelled fetch mutated the queue")
		}
	})
}

func TestPipelineErrors(t *testing.T) {
	t.Run("first page failure surfaces and retry re-runs it", func(t *testing.T) {
		p, _, sink := newPipeline(func(call int, req ListingRequest) (models.Listing, error) {
			if call == 1 {
				return models.Listing{}, shared.ErrRateLimited
			}
			if req.After != "" {
				t.Errorf("retry must re-run the first page, got cursor %q", req.After)
			}
			return page("c1", "a"), nil
		})

		p.Fetch(context.Background(), ListingRequest{Subreddit: "music"})
		waitStatus(t, p, StatusFailed)
		if !errors.Is(p.Err(), shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", p.Err())
		}

		p.Retry(context.Background())
		waitStatus(t, p, StatusSucceeded)
		if replaced, _ := sink.counts(); replaced != 1 {
			t.Errorf("retry should replace the queue once, got %d", replaced)
		}
	})

	t.Run("later page failure leaves loaded songs alone", func(t *testing.T) {
		p, _, sink := newPipeline(func(call int, req ListingRequest) (models.Listing, error) {
			if call == 1 {
				return page("c1", "a", "b"), nil
			}
			return models.Listing{}, shared.ErrTimeout
		})

		p.Fetch(context.Background(), ListingRequest{Subreddit: "music"})
		waitStatus(t, p, StatusSucceeded)
		p.FetchMore(context.Background())
		waitStatus(t, p, StatusFailed)

		replaced, appended := sink.counts()
		if replaced != 1 || appended != 0 {
			t.Errorf("page failure touched the queue: %d/%d", replaced, appended)
		}
		if !errors.Is(p.Err(), shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", p.Err())
		}
	})

	t.Run("retry after a page failure resumes from the last good cursor", func(t *testing.T) {
		p, _, sink := newPipeline(func(call int, req ListingRequest) (models.Listing, error) {
			switch call {
			case 1:
				return page("c1", "a"), nil
			case 2:
				return models.Listing{}, shared.ErrNetwork
			default:
				if req.After != "c1" {
					t.Errorf("retry cursor %q, want c1", req.After)
				}
				return page("", "b"), nil
			}
		})

		p.Fetch(context.Background(), ListingRequest{Subreddit: "music"})
		waitStatus(t, p, StatusSucceeded)
		p.FetchMore(context.Background())
		waitStatus(t, p, StatusFailed)
		p.Retry(context.Background())
		waitStatus(t, p, StatusSucceeded)

		if _, appended := sink.counts(); appended != 1 {
			t.Errorf("expected the retried page appended once, got %d", appended)
		}
	})
}
