package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/subwave-fm/subwave/internal/shared"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// Result carries an upstream response body and status.
type Result struct {
	Status int
	Body   []byte
}

// Upstream fetches listing pages from the upstream API with browser-like
// headers, a bounded per-process rate limit, and retries on transient
// failures (403/429/5xx) with increasing backoff delays.
//
// When client credentials are configured, requests go to the authenticated
// API host through an OAuth2 client-credentials token source instead.
type Upstream struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	maxRetries int
	backoffs   []time.Duration
	sleep      func(time.Duration)
}

// NewUpstream builds an Upstream from configuration.
func NewUpstream(cfg shared.UpstreamConfig, logger *log.Logger) *Upstream {
	client := &http.Client{Timeout: cfg.Timeout()}
	baseURL := cfg.BaseURL

	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = cc.Client(context.Background())
		client.Timeout = cfg.Timeout()
		if cfg.OAuthBaseURL != "" {
			baseURL = cfg.OAuthBaseURL
		}
	}

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	return &Upstream{
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
		maxRetries: retries,
		backoffs:   []time.Duration{250 * time.Millisecond, time.Second, 3 * time.Second},
		sleep:      time.Sleep,
	}
}

// BaseURL returns the resolved upstream host requests are issued against.
func (u *Upstream) BaseURL() string {
	return u.baseURL
}

func (u *Upstream) backoff(attempt int) time.Duration {
	if attempt < len(u.backoffs) {
		return u.backoffs[attempt]
	}
	return u.backoffs[len(u.backoffs)-1]
}

func retryable(status int) bool {
	return status == http.StatusForbidden ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}

// Fetch performs a GET against the fully-resolved upstream URL.
//
// On success the body is validated as JSON and returned. On failure the
// returned error is classified through the shared taxonomy; the Result still
// carries the last observed upstream status for pass-through responses.
func (u *Upstream) Fetch(ctx context.Context, fullURL string) (*Result, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return nil, shared.WrapTransport(err)
	}

	var lastStatus int

	for attempt := 0; ; attempt++ {
		result, err := u.fetchOnce(ctx, fullURL)
		if err != nil {
			// Transport errors: timeouts and cancellations are final,
			// connection-level failures get the same bounded retries.
			if shared.IsCancelled(err) || !errors.Is(err, shared.ErrNetwork) || attempt >= u.maxRetries {
				return nil, err
			}
			u.logger.Warn("upstream transport failure, retrying", "url", fullURL, "attempt", attempt+1, "err", err)
			u.sleep(u.backoff(attempt))
			continue
		}

		lastStatus = result.Status

		if result.Status >= 200 && result.Status < 300 {
			if !json.Valid(result.Body) {
				return result, fmt.Errorf("%w: body is not JSON", shared.ErrInvalidResponse)
			}
			return result, nil
		}

		if retryable(result.Status) && attempt < u.maxRetries {
			u.logger.Warn("upstream rejected request, retrying", "url", fullURL, "status", result.Status, "attempt", attempt+1)
			u.sleep(u.backoff(attempt))
			continue
		}

		if result.Status == http.StatusForbidden || result.Status == http.StatusTooManyRequests {
			return result, fmt.Errorf("%w: status %d after %d attempts", shared.ErrRateLimited, result.Status, attempt+1)
		}
		return result, fmt.Errorf("%w: status %d", shared.ErrUpstream, lastStatus)
	}
}

func (u *Upstream) fetchOnce(ctx context.Context, fullURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if u.userAgent != "" {
		req.Header.Set("User-Agent", u.userAgent)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, shared.WrapTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.WrapTransport(err)
	}

	return &Result{Status: resp.StatusCode, Body: body}, nil
}
