// Package metrics provides Prometheus instrumentation for scrape runs and
// the fetches they make.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pevans/listscrape"
)

// Namespace prefixes every metric name.
const Namespace = "listscrape"

// Metrics holds all scraper metrics.
type Metrics struct {
	FetchesTotal         *prometheus.CounterVec
	FetchDurationSeconds prometheus.Histogram

	RunsTotal          *prometheus.CounterVec
	RunDurationSeconds prometheus.Histogram
	ArticlesTotal      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics on reg. A nil reg gets a fresh
// registry so that tests and multiple servers do not collide.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	factory := promauto.With(reg)

	return &Metrics{
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "fetches_total",
				Help:      "HTTP fetches by result: ok, an HTTP status code, timeout or error",
			},
			[]string{"result"},
		),
		FetchDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of HTTP fetches in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by status",
			},
			[]string{"status"},
		),
		RunDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of pipeline runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		ArticlesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "articles_total",
				Help:      "Articles processed by outcome: scraped or failed",
			},
			[]string{"outcome"},
		),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveRun records a finished run. result may be nil when the run failed
// before any article was attempted.
func (m *Metrics) ObserveRun(result *listscrape.RunResult, err error, elapsed time.Duration) {
	m.RunsTotal.WithLabelValues(runStatus(err)).Inc()
	m.RunDurationSeconds.Observe(elapsed.Seconds())

	if result != nil {
		m.ArticlesTotal.WithLabelValues("scraped").Add(float64(len(result.Records)))
		m.ArticlesTotal.WithLabelValues("failed").Add(float64(len(result.Failures)))
	}
}

func runStatus(err error) string {
	var validationErr *listscrape.ValidationError

	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &validationErr):
		return "invalid"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "failed"
	}
}

// Fetcher counts and times the fetches of the Fetcher it wraps.
type Fetcher struct {
	next    listscrape.Fetcher
	metrics *Metrics
}

// InstrumentFetcher wraps next.
func (m *Metrics) InstrumentFetcher(next listscrape.Fetcher) *Fetcher {
	return &Fetcher{next: next, metrics: m}
}

// Fetch implements listscrape.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	start := time.Now()
	body, err := f.next.Fetch(ctx, url)
	f.metrics.FetchDurationSeconds.Observe(time.Since(start).Seconds())
	f.metrics.FetchesTotal.WithLabelValues(fetchResult(err)).Inc()
	return body, err
}

func fetchResult(err error) string {
	if err == nil {
		return "ok"
	}

	var fetchErr *listscrape.FetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
		return strconv.Itoa(fetchErr.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
