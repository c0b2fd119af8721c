// Listing proxy handlers.
//
// Serves cached upstream responses when fresh, fetches through [Upstream]
// otherwise, and maps fetch failures to classified JSON error payloads.
package proxy

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/subwave-fm/subwave/internal/shared"
)

// passthroughParams are the query parameters forwarded to the upstream
// listing API as-is.
var passthroughParams = []string{"after", "before", "limit", "t", "sort", "raw_json"}

// Handler serves the proxy endpoints.
//
// Implements [server.Handler]; all routes dispatch through ServeHTTP.
type Handler struct {
	upstream  *Upstream
	cache     *Cache
	freshness time.Duration
	logger    *log.Logger
}

// NewHandler creates a proxy Handler.
func NewHandler(upstream *Upstream, cache *Cache, freshness time.Duration, logger *log.Logger) *Handler {
	if freshness <= 0 {
		freshness = time.Minute
	}
	return &Handler{
		upstream:  upstream,
		cache:     cache,
		freshness: freshness,
		logger:    logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *Handler) Routes() []string {
	return []string{"/api/listing", "/api/comments", "/api/search", "/health"}
}

// ServeHTTP dispatches to the endpoint handlers.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/api/listing":
		h.serveListing(w, r)
	case "/api/comments":
		h.serveComments(w, r)
	case "/api/search":
		h.serveSearch(w, r)
	case "/health":
		h.serveHealth(w)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) serveHealth(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// serveListing proxies GET /api/listing?path=/r/<subs>/<sort>.json with
// pass-through pagination/sort parameters.
func (h *Handler) serveListing(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" || !strings.HasPrefix(path, "/r/") {
		writeError(w, http.StatusBadRequest, "invalid-request", "missing or invalid listing path")
		return
	}

	h.fetchThrough(w, r, h.resolve(path, r.URL.Query()))
}

// serveComments proxies GET /api/comments?permalink=...&sort=...
func (h *Handler) serveComments(w http.ResponseWriter, r *http.Request) {
	permalink := r.URL.Query().Get("permalink")
	if permalink == "" {
		writeError(w, http.StatusBadRequest, "invalid-request", "missing permalink")
		return
	}

	if !strings.HasSuffix(permalink, ".json") {
		permalink = strings.TrimSuffix(permalink, "/") + ".json"
	}

	h.fetchThrough(w, r, h.resolve(permalink, r.URL.Query()))
}

// serveSearch proxies GET /api/search?q=... using the upstream search
// listing, same shape as /api/listing.
func (h *Handler) serveSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid-request", "missing search query")
		return
	}

	params := r.URL.Query()
	params.Set("q", query)
	h.fetchThrough(w, r, h.resolveSearch(params))
}

// resolve builds the fully-resolved upstream URL for a listing path,
// forwarding only recognized query parameters. The resolved URL doubles as
// the cache key.
func (h *Handler) resolve(path string, params url.Values) string {
	forwarded := url.Values{}
	for _, key := range passthroughParams {
		if v := params.Get(key); v != "" {
			forwarded.Set(key, v)
		}
	}

	full := h.upstream.BaseURL() + path
	if encoded := forwarded.Encode(); encoded != "" {
		full += "?" + encoded
	}
	return full
}

func (h *Handler) resolveSearch(params url.Values) string {
	forwarded := url.Values{}
	forwarded.Set("q", params.Get("q"))
	for _, key := range passthroughParams {
		if v := params.Get(key); v != "" {
			forwarded.Set(key, v)
		}
	}

	return h.upstream.BaseURL() + "/search.json?" + forwarded.Encode()
}

// fetchThrough serves the cached body when fresh, otherwise fetches
// upstream, caches the success, and maps failures onto the error taxonomy.
func (h *Handler) fetchThrough(w http.ResponseWriter, r *http.Request, fullURL string) {
	if h.cache != nil {
		if body, ok := h.cache.Get(fullURL, h.freshness); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			w.Write(body)
			return
		}
	}

	result, err := h.upstream.Fetch(r.Context(), fullURL)
	if err != nil {
		fallback := 0
		if result != nil {
			fallback = result.Status
		}
		status := shared.HTTPStatus(err, fallback)
		h.logger.Error("upstream fetch failed", "url", fullURL, "status", status, "err", err)
		writeError(w, status, string(shared.Classify(err)), err.Error())
		return
	}

	if h.cache != nil {
		if err := h.cache.Put(fullURL, result.Body); err != nil {
			h.logger.Warn("failed to cache response", "url", fullURL, "err", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	w.WriteHeader(http.StatusOK)
	w.Write(result.Body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{
		"error":   kind,
		"message": message,
	})
}
