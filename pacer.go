package listscrape

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out requests to the same host. Wait blocks until a request
// to host may be sent or ctx is done.
type Pacer interface {
	Wait(ctx context.Context, host string) error
}

// NewPacer returns a HostLimiter for a positive delay and NoDelay
// otherwise.
func NewPacer(delay time.Duration) Pacer {
	if delay <= 0 {
		return NoDelay{}
	}
	return NewHostLimiter(delay)
}

// NoDelay never waits. It only reports ctx cancellation.
type NoDelay struct{}

func (NoDelay) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}

// HostLimiter keeps one token-bucket limiter per host with a burst of one,
// so the first request to a host goes out at once and later ones are at
// least delay apart.
type HostLimiter struct {
	delay time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter allowing one request per delay per host.
func NewHostLimiter(delay time.Duration) *HostLimiter {
	return &HostLimiter{
		delay:    delay,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the host's limiter releases a token. Unlike
// rate.Limiter.Wait it does not fail early when the wait would outlast
// ctx's deadline; it waits for ctx to end and returns ctx.Err(), so the
// caller always sees the real stop cause.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r := h.limiter(host).Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Delay returns the configured spacing.
func (h *HostLimiter) Delay() time.Duration {
	return h.delay
}

func (h *HostLimiter) limiter(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(h.delay), 1)
		h.limiters[host] = l
	}
	return l
}
