package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pevans/listscrape"
	"github.com/pevans/listscrape/logger"
)

func handleRun(args []string) int {
	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	listingURL := fs.String("url", getEnv("LISTSCRAPE_URL", ""), "Listing page URL (LISTSCRAPE_URL)")
	out := fs.String("out", "", "Output file (default: stdout)")
	format := fs.String("format", "csv", "Output format: csv, json, xlsx or table")
	scrapeFlags(fs, cfg)
	fs.Parse(args)

	if *listingURL == "" && fs.NArg() > 0 {
		*listingURL = fs.Arg(0)
	}
	if *listingURL == "" {
		fmt.Fprintln(os.Stderr, "Error: --url is required")
		fs.Usage()
		return 1
	}
	if err := validateFormat(*format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log, err := setup(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer log.Sync()

	// Ctrl-C stops the run but keeps what was already scraped.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline := listscrape.NewDefaultPipeline(cfg.ScrapeOptions(), log)
	result, runErr := pipeline.Run(ctx, *listingURL)
	if result == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}
	if runErr != nil {
		log.Warn("Run stopped early", logger.Error(runErr))
	}

	w := io.Writer(os.Stdout)
	if *out != "" {
		file, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create output file: %v\n", err)
			return 1
		}
		defer file.Close()
		w = file
	}

	if err := writeResult(w, result, *format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *out != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d articles to %s (%d skipped)\n", result.Total(), *out, len(result.Failures))
	}

	if runErr != nil {
		return 2
	}
	return 0
}

func validateFormat(format string) error {
	switch format {
	case "csv", "json", "xlsx", "table":
		return nil
	}
	return errors.New("invalid format: must be csv, json, xlsx or table")
}

// writeResult renders result in the given format.
func writeResult(w io.Writer, result *listscrape.RunResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return nil
	case "xlsx":
		return listscrape.WriteXLSX(w, result)
	case "table":
		printRecordsTable(w, result)
		return nil
	default:
		return listscrape.WriteCSV(w, result.Records)
	}
}
