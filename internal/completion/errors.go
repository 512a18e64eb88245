package completion

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrResponseNotParseable is returned when no JSON value can be extracted
// from a completion.
var ErrResponseNotParseable = errors.New("completion response is not parseable as JSON")

// UpstreamError is a transport or HTTP failure from the completion service.
// StatusCode is zero when no response was received.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream error: %s", truncate(e.Message, 200))
	}
	return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Retryable reports whether a caller could reasonably try again later.
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// AsUpstream returns the UpstreamError in err's chain, if any.
func AsUpstream(err error) (*UpstreamError, bool) {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr, true
	}
	return nil, false
}
