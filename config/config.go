// Package config assembles scraper and server settings from built-in
// defaults, an optional YAML file and LISTSCRAPE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pevans/listscrape"
	"github.com/pevans/listscrape/logger"
)

// Config is the complete runtime configuration.
type Config struct {
	Scrape ScrapeConfig  `yaml:"scrape"`
	Server ServerConfig  `yaml:"server"`
	Log    logger.Config `yaml:"log"`
}

// ScrapeConfig holds pipeline settings.
type ScrapeConfig struct {
	ArticleMarker       string            `yaml:"article_marker"`
	CategoryMarkers     []string          `yaml:"category_markers"`
	Timeout             time.Duration     `yaml:"timeout"`
	Delay               time.Duration     `yaml:"delay"`
	UserAgent           string            `yaml:"user_agent"`
	Headers             map[string]string `yaml:"headers"`
	MaxBodyBytes        int64             `yaml:"max_body_bytes"`
	Workers             int               `yaml:"workers"`
	MaxArticles         int               `yaml:"max_articles"`
	Retries             int               `yaml:"retries"`
	RetryDelay          time.Duration     `yaml:"retry_delay"`
	ReadabilityFallback bool              `yaml:"readability_fallback"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// RunTimeout bounds one run started through the API.
	RunTimeout time.Duration `yaml:"run_timeout"`
	// RunTTL is how long finished runs stay downloadable.
	RunTTL time.Duration `yaml:"run_ttl"`
	// MaxRuns is how many finished runs are kept at once.
	MaxRuns int `yaml:"max_runs"`
}

// Default returns the built-in configuration.
func Default() *Config {
	fetcher := listscrape.DefaultFetcherConfig()

	return &Config{
		Scrape: ScrapeConfig{
			ArticleMarker:   listscrape.DefaultArticleMarker,
			CategoryMarkers: append([]string(nil), listscrape.DefaultCategoryMarkers...),
			Timeout:         fetcher.Timeout,
			Delay:           1 * time.Second,
			UserAgent:       fetcher.UserAgent,
			MaxBodyBytes:    fetcher.MaxBodyBytes,
			Workers:         1,
			RetryDelay:      500 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr:       "localhost:8080",
			RunTimeout: 10 * time.Minute,
			RunTTL:     1 * time.Hour,
			MaxRuns:    20,
		},
		Log: logger.Config{
			Level:  logger.DefaultLevel,
			Format: logger.DefaultFormat,
		},
	}
}

// ApplyEnv overrides fields from LISTSCRAPE_* variables. getenv is usually
// os.Getenv; empty values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
				return
			}
			*dst = n
		}
	}

	str("LISTSCRAPE_ARTICLE_MARKER", &c.Scrape.ArticleMarker)
	if v := getenv("LISTSCRAPE_CATEGORY_MARKERS"); v != "" {
		c.Scrape.CategoryMarkers = splitList(v)
	}
	dur("LISTSCRAPE_TIMEOUT", &c.Scrape.Timeout)
	dur("LISTSCRAPE_DELAY", &c.Scrape.Delay)
	str("LISTSCRAPE_USER_AGENT", &c.Scrape.UserAgent)
	num("LISTSCRAPE_WORKERS", &c.Scrape.Workers)
	num("LISTSCRAPE_MAX_ARTICLES", &c.Scrape.MaxArticles)
	num("LISTSCRAPE_RETRIES", &c.Scrape.Retries)
	dur("LISTSCRAPE_RETRY_DELAY", &c.Scrape.RetryDelay)
	if v := getenv("LISTSCRAPE_READABILITY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LISTSCRAPE_READABILITY: invalid boolean %q", v))
		} else {
			c.Scrape.ReadabilityFallback = b
		}
	}

	str("LISTSCRAPE_ADDR", &c.Server.Addr)
	dur("LISTSCRAPE_RUN_TIMEOUT", &c.Server.RunTimeout)
	dur("LISTSCRAPE_RUN_TTL", &c.Server.RunTTL)
	num("LISTSCRAPE_MAX_RUNS", &c.Server.MaxRuns)

	str("LISTSCRAPE_LOG_LEVEL", &c.Log.Level)
	str("LISTSCRAPE_LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Scrape.ArticleMarker) == "" || strings.Trim(c.Scrape.ArticleMarker, "/") == "" {
		errs = append(errs, errors.New("scrape.article_marker must name a path segment"))
	}
	if c.Scrape.Timeout <= 0 {
		errs = append(errs, errors.New("scrape.timeout must be positive"))
	}
	if c.Scrape.Delay < 0 {
		errs = append(errs, errors.New("scrape.delay must not be negative"))
	}
	if c.Scrape.Workers < 1 || c.Scrape.Workers > listscrape.MaxWorkers {
		errs = append(errs, fmt.Errorf("scrape.workers must be between 1 and %d", listscrape.MaxWorkers))
	}
	if c.Scrape.MaxArticles < 0 {
		errs = append(errs, errors.New("scrape.max_articles must not be negative"))
	}
	if c.Scrape.Retries < 0 {
		errs = append(errs, errors.New("scrape.retries must not be negative"))
	}
	if c.Server.RunTimeout <= 0 {
		errs = append(errs, errors.New("server.run_timeout must be positive"))
	}
	if c.Server.RunTTL <= 0 {
		errs = append(errs, errors.New("server.run_ttl must be positive"))
	}
	if c.Server.MaxRuns < 1 {
		errs = append(errs, errors.New("server.max_runs must be at least 1"))
	}

	return errors.Join(errs...)
}

// ScrapeOptions converts the scrape section into pipeline options.
func (c *Config) ScrapeOptions() *listscrape.Options {
	s := c.Scrape

	return &listscrape.Options{
		ArticleMarker:   s.ArticleMarker,
		CategoryMarkers: s.CategoryMarkers,
		Fetcher: listscrape.FetcherConfig{
			Timeout:      s.Timeout,
			UserAgent:    s.UserAgent,
			Headers:      s.Headers,
			MaxBodyBytes: s.MaxBodyBytes,
		},
		Delay:       s.Delay,
		Workers:     s.Workers,
		MaxArticles: s.MaxArticles,
		Retry: listscrape.RetryConfig{
			Retries:      s.Retries,
			InitialDelay: s.RetryDelay,
		},
		ReadabilityFallback: s.ReadabilityFallback,
	}
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
