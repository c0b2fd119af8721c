package feed

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/subwave-fm/subwave/internal/models"
	"github.com/subwave-fm/subwave/internal/shared"
)

// Status is the lifecycle of the most recent fetch intent.
type Status int

const (
	StatusIdle Status = iota
	StatusFetching
	StatusSucceeded
	StatusFailed
	StatusCancelled
)

// QueueSink receives parsed pages. The playback coordinator implements it;
// the indirection keeps the pipeline testable and free of playback imports.
type QueueSink interface {
	// ReplaceQueue swaps the whole queue for a fresh first page.
	ReplaceQueue(songs []models.Song)
	// AppendQueue adds a later page to the tail.
	AppendQueue(songs []models.Song)
}

// Lister is the slice of the proxy client the pipeline consumes.
type Lister interface {
	Listing(ctx context.Context, req ListingRequest) (models.Listing, error)
}

// Pipeline turns feed queries into queue mutations.
//
// At most one request is logically live: starting a new fetch supersedes
// the previous one, and a superseded response is discarded wherever it is
// in flight. The generation token, not request ordering, is the
// correctness mechanism.
type Pipeline struct {
	client Lister
	sink   QueueSink
	logger *log.Logger

	mu         sync.Mutex
	generation string
	cancel     context.CancelFunc
	params     ListingRequest
	cursor     string
	exhausted  bool
	status     Status
	lastErr    error
}

// NewPipeline creates a pipeline feeding the given sink.
func NewPipeline(client Lister, sink QueueSink, logger *log.Logger) *Pipeline {
	return &Pipeline{client: client, sink: sink, logger: logger}
}

// Fetch starts a fresh feed query, superseding any fetch in flight. The
// result replaces the queue. Returns once the request is dispatched.
func (p *Pipeline) Fetch(ctx context.Context, req ListingRequest) {
	p.mu.Lock()
	p.params = req
	p.cursor = ""
	p.exhausted = false
	p.startLocked(ctx, req, true)
	p.mu.Unlock()
}

// FetchMore requests the next page of the current query and appends it.
// A no-op while a fetch is live, after exhaustion, or before any Fetch.
func (p *Pipeline) FetchMore(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusFetching || p.exhausted || p.params == (ListingRequest{}) {
		return
	}
	req := p.params
	req.After = p.cursor
	p.startLocked(ctx, req, req.After == "")
}

// Retry re-runs the failed request with its original parameters.
func (p *Pipeline) Retry(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusFailed {
		return
	}
	req := p.params
	req.After = p.cursor
	p.startLocked(ctx, req, req.After == "")
}

// Cancel discards the in-flight fetch, if any.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusFetching {
		return
	}
	p.supersedeLocked()
	p.status = StatusCancelled
}

// startLocked dispatches one request under a fresh generation. Caller
// holds the lock.
func (p *Pipeline) startLocked(ctx context.Context, req ListingRequest, firstPage bool) {
	p.supersedeLocked()

	generation := shared.GenerateID()
	runCtx, cancel := context.WithCancel(ctx)
	p.generation = generation
	p.cancel = cancel
	p.status = StatusFetching
	p.lastErr = nil

	go p.run(runCtx, generation, req, firstPage)
}

// supersedeLocked invalidates the current generation. Caller holds the
// lock.
func (p *Pipeline) supersedeLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.generation = ""
}

// run performs one fetch and applies it unless superseded. The generation
// check sits after the await point and before any sink mutation.
func (p *Pipeline) run(ctx context.Context, generation string, req ListingRequest, firstPage bool) {
	listing, err := p.client.Listing(ctx, req)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != generation {
		// Superseded while in flight; this response no longer exists.
		return
	}
	p.generation = ""
	p.cancel = nil

	if err != nil {
		if shared.IsCancelled(err) {
			p.status = StatusCancelled
			return
		}
		p.status = StatusFailed
		p.lastErr = err
		if firstPage {
			p.logger.Error("feed fetch failed", "subreddit", req.Subreddit, "query", req.Query, "err", err)
		} else {
			// Later pages fail quietly; the loaded queue survives.
			p.logger.Warn("feed page fetch failed", "after", req.After, "err", err)
		}
		return
	}

	songs, after := ParseListing(listing)
	p.cursor = after
	p.exhausted = after == ""
	p.status = StatusSucceeded

	if firstPage {
		p.sink.ReplaceQueue(songs)
	} else {
		p.sink.AppendQueue(songs)
	}
	p.logger.Debug("feed page applied", "songs", len(songs), "dropped", len(listing.Data.Children)-len(songs), "exhausted", p.exhausted)
}

// Status returns the lifecycle state of the latest fetch.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Err returns the failure of the latest fetch, nil outside StatusFailed.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Exhausted reports whether the upstream cursor ran out; FetchMore is a
// no-op once true.
func (p *Pipeline) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exhausted
}

// Params returns the parameters of the current query.
func (p *Pipeline) Params() ListingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params
}
