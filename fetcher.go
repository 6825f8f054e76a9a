package listscrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent identifies requests as a desktop browser. Some sites
// answer 403/406 to Go's default agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Fetcher retrieves the raw markup behind a URL. Implementations return a
// *FetchError on failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetcherConfig controls the HTTP fetcher.
type FetcherConfig struct {
	// Timeout bounds one request including reading the body.
	Timeout time.Duration
	// UserAgent is sent on every request.
	UserAgent string
	// Headers are extra request headers; they override the defaults.
	Headers map[string]string
	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64
}

// DefaultFetcherConfig returns a 10 second timeout, browser-like headers and
// a 5 MiB body cap.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:      10 * time.Second,
		UserAgent:    DefaultUserAgent,
		MaxBodyBytes: 5 << 20,
	}
}

// HTTPFetcher fetches pages over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
	config FetcherConfig
}

// NewHTTPFetcher creates a fetcher. Zero-valued config fields fall back to
// DefaultFetcherConfig.
func NewHTTPFetcher(config FetcherConfig) *HTTPFetcher {
	defaults := DefaultFetcherConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("stopped after 10 redirects")
				}
				return nil
			},
		},
		config: config,
	}
}

// Fetch performs a GET request and returns the response body as a string.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	return string(body), nil
}

func (f *HTTPFetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	for key, value := range f.config.Headers {
		req.Header.Set(key, value)
	}
}

// RetryConfig configures RetryFetcher.
type RetryConfig struct {
	// Retries is the number of extra attempts after the first one.
	Retries int
	// InitialDelay is the wait before the first retry; it doubles on each
	// further retry up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// RetryFetcher retries retryable FetchErrors with exponential backoff.
type RetryFetcher struct {
	next   Fetcher
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryFetcher wraps next. With Retries <= 0 it behaves exactly like
// next.
func NewRetryFetcher(next Fetcher, config RetryConfig) *RetryFetcher {
	if config.InitialDelay <= 0 {
		config.InitialDelay = 500 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}

	return &RetryFetcher{
		next:   next,
		config: config,
		sleep:  sleepContext,
	}
}

// Fetch tries next up to Retries+1 times.
func (r *RetryFetcher) Fetch(ctx context.Context, url string) (string, error) {
	delay := r.config.InitialDelay

	for attempt := 0; ; attempt++ {
		body, err := r.next.Fetch(ctx, url)
		if err == nil {
			return body, nil
		}

		if attempt >= r.config.Retries || !isRetryable(err) {
			return "", err
		}

		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			// Report the fetch failure, not the interrupted wait.
			return "", err
		}

		delay *= 2
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}
}

func isRetryable(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr) && fetchErr.Retryable()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
