package listscrape

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrEmptyURL is wrapped by ValidationError when no listing URL was given.
var ErrEmptyURL = errors.New("url is empty")

// FetchError describes a failure to retrieve a URL: a network error, a
// timeout, a non-2xx status or an unreadable body. StatusCode is zero when
// no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could plausibly succeed:
// timeouts, connection-level failures, 429 and 5xx responses.
func (e *FetchError) Retryable() bool {
	if e.StatusCode != 0 {
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
	}

	// The caller gave up; retrying would ignore that.
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(e.Err, &opErr)
}

// ParseError describes markup that could not be turned into a document.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError rejects a listing URL before any network activity.
type ValidationError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("invalid listing url: %s", e.Reason)
	}
	return fmt.Sprintf("invalid listing url %q: %s", e.URL, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
