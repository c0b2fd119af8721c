package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Request-level fetch errors
	ErrNetwork         = fmt.Errorf("upstream unreachable")
	ErrTimeout         = fmt.Errorf("request timed out")
	ErrRateLimited     = fmt.Errorf("rate limited by upstream")
	ErrInvalidResponse = fmt.Errorf("invalid upstream response")
	ErrUpstream        = fmt.Errorf("upstream error")

	// ErrCancelled marks a superseded fetch. It is never a user-facing
	// failure; callers swallow it silently.
	ErrCancelled = fmt.Errorf("request cancelled")

	// ErrParse marks a single unparseable feed item; the batch continues.
	ErrParse = fmt.Errorf("item parse failed")

	// Playback errors
	ErrNoBackend     = fmt.Errorf("no backend for source kind")
	ErrNotBound      = fmt.Errorf("adapter not bound")
	ErrBackendFailed = fmt.Errorf("backend command failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// ErrorKind is the wire classification carried in proxy error payloads.
type ErrorKind string

const (
	KindRateLimited     ErrorKind = "rate-limited"
	KindTimeout         ErrorKind = "timeout"
	KindNetwork         ErrorKind = "network"
	KindInvalidResponse ErrorKind = "invalid-response"
	KindUpstreamError   ErrorKind = "upstream-error"
)

// Classify maps an error to its wire classification.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrInvalidResponse):
		return KindInvalidResponse
	default:
		return KindUpstreamError
	}
}

// HTTPStatus maps an error to the status the proxy responds with.
//
// Timeouts map to 504, unreachable upstreams to 503, malformed payloads to
// 500. fallback carries the upstream status for pass-through cases; 0 means
// none was observed.
func HTTPStatus(err error, fallback int) int {
	switch Classify(err) {
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindNetwork:
		return http.StatusServiceUnavailable
	case KindInvalidResponse:
		return http.StatusInternalServerError
	default:
		if fallback > 0 {
			return fallback
		}
		return http.StatusBadGateway
	}
}

// WrapTransport converts a transport-layer error from [http.Client.Do] into
// the taxonomy: deadline and net timeouts become ErrTimeout, context
// cancellation becomes ErrCancelled, anything else ErrNetwork.
func WrapTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// IsCancelled reports whether err is a superseded-request error.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
