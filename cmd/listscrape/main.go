package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pevans/listscrape/config"
	"github.com/pevans/listscrape/logger"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	switch subcommand {
	case "run":
		os.Exit(handleRun(args))
	case "serve":
		os.Exit(handleServe(args))
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("listscrape - Scrape the articles linked from a listing page")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  listscrape <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Scrape one listing page and write the records")
	fmt.Println("  serve      Start the HTTP API")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  LISTSCRAPE_CONFIG     Path to config file (default: ~/.listscrape/config.yaml)")
	fmt.Println("  LISTSCRAPE_DELAY      Delay between requests to one host (default: 1s)")
	fmt.Println("  LISTSCRAPE_WORKERS    Concurrent article fetches, 1-4 (default: 1)")
	fmt.Println("  LISTSCRAPE_LOG_LEVEL  debug, info, warn or error (default: info)")
}

// configPath finds -config in args before the flag set is built, since
// the file supplies the flag defaults.
func configPath(args []string) string {
	for i, arg := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return getEnv("LISTSCRAPE_CONFIG", "")
}

// loadConfig layers defaults, the config file and LISTSCRAPE_* variables,
// including any set in .env files.
func loadConfig(args []string) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.LoadFile(configPath(args))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	return cfg, nil
}

// scrapeFlags registers the flags shared by run and serve. Their defaults
// come from cfg and parsing writes straight back into it.
func scrapeFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.String("config", "", "Path to config file (LISTSCRAPE_CONFIG)")
	fs.StringVar(&cfg.Scrape.ArticleMarker, "marker", cfg.Scrape.ArticleMarker, "Path segment identifying article links (LISTSCRAPE_ARTICLE_MARKER)")
	fs.DurationVar(&cfg.Scrape.Timeout, "timeout", cfg.Scrape.Timeout, "Timeout per request (LISTSCRAPE_TIMEOUT)")
	fs.DurationVar(&cfg.Scrape.Delay, "delay", cfg.Scrape.Delay, "Delay between requests to one host (LISTSCRAPE_DELAY)")
	fs.StringVar(&cfg.Scrape.UserAgent, "user-agent", cfg.Scrape.UserAgent, "User-Agent header (LISTSCRAPE_USER_AGENT)")
	fs.IntVar(&cfg.Scrape.Workers, "workers", cfg.Scrape.Workers, "Concurrent article fetches, 1-4 (LISTSCRAPE_WORKERS)")
	fs.IntVar(&cfg.Scrape.MaxArticles, "max-articles", cfg.Scrape.MaxArticles, "Stop after N articles, 0 for all (LISTSCRAPE_MAX_ARTICLES)")
	fs.IntVar(&cfg.Scrape.Retries, "retries", cfg.Scrape.Retries, "Retries per article on transient errors (LISTSCRAPE_RETRIES)")
	fs.BoolVar(&cfg.Scrape.ReadabilityFallback, "readability", cfg.Scrape.ReadabilityFallback, "Use readability when no content container matches (LISTSCRAPE_READABILITY)")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level (LISTSCRAPE_LOG_LEVEL)")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "Log format, console or json (LISTSCRAPE_LOG_FORMAT)")
}

// setup validates cfg and builds the logger.
func setup(cfg *config.Config) (logger.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}
