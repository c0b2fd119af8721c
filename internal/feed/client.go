package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/subwave-fm/subwave/internal/models"
	"github.com/subwave-fm/subwave/internal/shared"
)

// ListingRequest is one feed query. Query, when set, wins over Subreddit
// and goes through the search endpoint.
type ListingRequest struct {
	Subreddit string
	Query     string
	Sort      string
	Window    string // time window for "top" sorts
	After     string // pagination cursor, empty for the first page
	Limit     int
}

// Client fetches listings through the caching proxy.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a proxy client. A nil httpClient falls back to
// [http.DefaultClient].
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// errorPayload is the proxy's wire error shape.
type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// sentinelFor maps a wire error classification back to the sentinel the
// proxy derived it from, so callers can branch with errors.Is on either
// side of the HTTP hop.
func sentinelFor(kind string) error {
	switch shared.ErrorKind(kind) {
	case shared.KindRateLimited:
		return shared.ErrRateLimited
	case shared.KindTimeout:
		return shared.ErrTimeout
	case shared.KindNetwork:
		return shared.ErrNetwork
	case shared.KindInvalidResponse:
		return shared.ErrInvalidResponse
	default:
		return shared.ErrUpstream
	}
}

// Listing fetches one page of feed items.
func (c *Client) Listing(ctx context.Context, req ListingRequest) (models.Listing, error) {
	values := url.Values{}
	if req.Window != "" {
		values.Set("t", req.Window)
	}
	if req.After != "" {
		values.Set("after", req.After)
	}
	if req.Limit > 0 {
		values.Set("limit", strconv.Itoa(req.Limit))
	}

	endpoint := "/api/listing"
	if req.Query != "" {
		// Search carries the sort as a parameter rather than a path segment.
		endpoint = "/api/search"
		values.Set("q", req.Query)
		if req.Sort != "" {
			values.Set("sort", req.Sort)
		}
	} else {
		if req.Subreddit == "" {
			return models.Listing{}, fmt.Errorf("%w: subreddit or query required", shared.ErrInvalidInput)
		}
		path := "/r/" + req.Subreddit
		if req.Sort != "" {
			path += "/" + req.Sort
		}
		values.Set("path", path+".json")
	}

	var listing models.Listing
	if err := c.get(ctx, endpoint, values, &listing); err != nil {
		return models.Listing{}, err
	}
	return listing, nil
}

// Comments fetches the comment tree for a post permalink.
func (c *Client) Comments(ctx context.Context, permalink, sort string) (json.RawMessage, error) {
	values := url.Values{}
	values.Set("permalink", permalink)
	if sort != "" {
		values.Set("sort", sort)
	}

	var raw json.RawMessage
	if err := c.get(ctx, "/api/comments", values, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) get(ctx context.Context, endpoint string, values url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shared.WrapTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return shared.WrapTransport(err)
	}

	if resp.StatusCode != http.StatusOK {
		var payload errorPayload
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			return fmt.Errorf("%w: %s", sentinelFor(payload.Error), payload.Message)
		}
		return fmt.Errorf("%w: proxy returned %d", shared.ErrUpstream, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidResponse, err)
	}
	return nil
}
