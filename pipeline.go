// Package listscrape scrapes the articles linked from a listing page: it
// discovers article links, fetches each article and extracts a flat record
// of fields that can be exported as CSV, JSON or XLSX.
package listscrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pevans/listscrape/logger"
)

// MaxWorkers caps concurrent article fetches.
const MaxWorkers = 4

// Options configures a Pipeline.
type Options struct {
	// ArticleMarker is the path segment identifying article links.
	ArticleMarker string
	// CategoryMarkers are href substrings identifying category links.
	CategoryMarkers []string
	// Fetcher configures the HTTP fetcher built by NewDefaultPipeline.
	Fetcher FetcherConfig
	// Delay is the minimum spacing between requests to one host.
	Delay time.Duration
	// Workers is the number of concurrent article fetches, 1 to MaxWorkers.
	Workers int
	// MaxArticles limits how many discovered links are fetched; 0 means
	// no limit.
	MaxArticles int
	// Retry applies to article fetches only. The listing page gets one
	// attempt.
	Retry RetryConfig
	// ReadabilityFallback enables the readability content rule.
	ReadabilityFallback bool
}

// DefaultOptions returns sequential, one-request-per-second settings.
func DefaultOptions() *Options {
	return &Options{
		ArticleMarker:   DefaultArticleMarker,
		CategoryMarkers: DefaultCategoryMarkers,
		Fetcher:         DefaultFetcherConfig(),
		Delay:           1 * time.Second,
		Workers:         1,
	}
}

// Pipeline turns a listing URL into article records: fetch the listing,
// discover article links, then fetch and extract each article. A failing
// article is logged and skipped; only a failing listing page ends a run.
// Pipelines hold no state between runs.
type Pipeline struct {
	fetcher        Fetcher
	articleFetcher Fetcher
	pacer          Pacer
	opts           Options
	log            logger.Logger
}

// NewPipeline creates a pipeline from explicit collaborators. A nil opts
// means DefaultOptions; a nil pacer means NewPacer(opts.Delay).
func NewPipeline(fetcher Fetcher, pacer Pacer, opts *Options, log logger.Logger) *Pipeline {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.ArticleMarker == "" {
		o.ArticleMarker = DefaultArticleMarker
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Workers > MaxWorkers {
		o.Workers = MaxWorkers
	}
	if pacer == nil {
		pacer = NewPacer(o.Delay)
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Pipeline{
		fetcher:        fetcher,
		articleFetcher: NewRetryFetcher(fetcher, o.Retry),
		pacer:          pacer,
		opts:           o,
		log:            log,
	}
}

// NewDefaultPipeline creates a pipeline backed by an HTTPFetcher and a
// per-host rate limiter built from opts.
func NewDefaultPipeline(opts *Options, log logger.Logger) *Pipeline {
	if opts == nil {
		opts = DefaultOptions()
	}
	return NewPipeline(NewHTTPFetcher(opts.Fetcher), NewPacer(opts.Delay), opts, log)
}

// ValidateListingURL checks that raw is an absolute http(s) URL.
func ValidateListingURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &ValidationError{Reason: "url is empty", Err: ErrEmptyURL}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ValidationError{URL: raw, Reason: "url does not parse", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ValidationError{URL: raw, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return nil, &ValidationError{URL: raw, Reason: "url has no host"}
	}

	return u, nil
}

// Run scrapes every article linked from listingURL. It returns an error
// without a result when the URL is invalid or the listing page cannot be
// fetched or parsed. When ctx is cancelled mid-run, the records collected
// so far are returned together with the context error.
func (p *Pipeline) Run(ctx context.Context, listingURL string) (*RunResult, error) {
	listing, err := ValidateListingURL(listingURL)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		ListingURL: listing.String(),
		StartedAt:  time.Now(),
		Records:    []ArticleRecord{},
		Failures:   []ArticleFailure{},
	}
	log := p.log.With(logger.String("listing_url", result.ListingURL))
	log.Info("Starting run")

	// Article links carry lowercased hosts, so the listing must share
	// their limiter key.
	if err := p.pacer.Wait(ctx, strings.ToLower(listing.Host)); err != nil {
		return nil, err
	}

	markup, err := p.fetcher.Fetch(ctx, result.ListingURL)
	if err != nil {
		log.Error("Failed to fetch listing page", logger.Error(err))
		return nil, err
	}

	origin := &url.URL{Scheme: listing.Scheme, Host: listing.Host}
	links, err := ExtractLinks(markup, origin.String(), LinkOptions{ArticleMarker: p.opts.ArticleMarker})
	if err != nil {
		log.Error("Failed to parse listing page", logger.Error(err))
		return nil, err
	}

	if p.opts.MaxArticles > 0 && len(links) > p.opts.MaxArticles {
		links = links[:p.opts.MaxArticles]
	}
	result.LinksFound = len(links)
	log.Info("Discovered article links", logger.Int("links", len(links)))

	outcomes, stopErr := p.scrapeAll(ctx, links)

	processed := 0
	for _, o := range outcomes {
		switch {
		case !o.done:
			continue
		case o.err != nil:
			result.Failures = append(result.Failures, ArticleFailure{URL: o.url, Error: o.err.Error()})
		default:
			result.Records = append(result.Records, o.record)
		}
		processed++
	}
	result.FinishedAt = time.Now()

	log.Info("Run finished",
		logger.Int("records", len(result.Records)),
		logger.Int("failures", len(result.Failures)),
		logger.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	)

	if processed < len(links) {
		cause := ctx.Err()
		if cause == nil {
			cause = stopErr
		}
		if cause == nil {
			cause = errors.New("run stopped early")
		}
		return result, fmt.Errorf("run interrupted after %d of %d articles: %w", processed, len(links), cause)
	}

	return result, nil
}

// outcome is one article slot. done is false for links not completed
// because the run stopped; stop then holds the reason when known.
type outcome struct {
	url    string
	record ArticleRecord
	err    error
	done   bool
	stop   error
}

// scrapeAll processes links with up to opts.Workers goroutines. Each slot
// is written by exactly one worker, so order follows links. The first
// slot that stops the run ends the remaining work and its cause is
// returned.
func (p *Pipeline) scrapeAll(ctx context.Context, links []string) ([]outcome, error) {
	outcomes := make([]outcome, len(links))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		stopOnce sync.Once
		stopErr  error
	)
	stopRun := func(err error) {
		stopOnce.Do(func() {
			stopErr = err
			cancel()
		})
	}

	if p.opts.Workers == 1 {
		for i, link := range links {
			if ctx.Err() != nil {
				break
			}
			outcomes[i] = p.scrapeArticle(ctx, link)
			if outcomes[i].stop != nil {
				stopRun(outcomes[i].stop)
				break
			}
		}
		return outcomes, stopErr
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range p.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = p.scrapeArticle(ctx, links[i])
				if outcomes[i].stop != nil {
					stopRun(outcomes[i].stop)
				}
			}
		}()
	}

feed:
	for i := range links {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return outcomes, stopErr
}

// scrapeArticle fetches and extracts one article. A pacer error, or a
// fetch failure caused by the run being cancelled, leaves the slot undone
// with the cause in stop rather than blaming the article.
func (p *Pipeline) scrapeArticle(ctx context.Context, link string) outcome {
	o := outcome{url: link}

	host := ""
	if u, err := url.Parse(link); err == nil {
		host = u.Host
	}

	if err := p.pacer.Wait(ctx, host); err != nil {
		o.stop = err
		return o
	}

	markup, err := p.articleFetcher.Fetch(ctx, link)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			o.stop = err
			return o
		}
		p.log.Warn("Skipping article", logger.String("url", link), logger.Error(err))
		o.err, o.done = err, true
		return o
	}

	doc, err := ParseDocument(markup, link)
	if err != nil {
		p.log.Warn("Skipping article", logger.String("url", link), logger.Error(err))
		o.err, o.done = err, true
		return o
	}

	o.record = ExtractFieldsFromDocument(doc, markup, link, FieldOptions{
		CategoryMarkers:     p.opts.CategoryMarkers,
		ReadabilityFallback: p.opts.ReadabilityFallback,
	})
	o.done = true
	p.log.Debug("Extracted article", logger.String("url", link), logger.String("title", o.record.Title))

	return o
}
