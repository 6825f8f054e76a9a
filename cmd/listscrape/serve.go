package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pevans/listscrape"
	"github.com/pevans/listscrape/api"
	"github.com/pevans/listscrape/logger"
	"github.com/pevans/listscrape/metrics"
	"github.com/pevans/listscrape/runs"
)

func handleServe(args []string) int {
	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "Listen address (LISTSCRAPE_ADDR)")
	fs.DurationVar(&cfg.Server.RunTimeout, "run-timeout", cfg.Server.RunTimeout, "Maximum duration of one run (LISTSCRAPE_RUN_TIMEOUT)")
	fs.DurationVar(&cfg.Server.RunTTL, "run-ttl", cfg.Server.RunTTL, "How long finished runs are kept (LISTSCRAPE_RUN_TTL)")
	fs.IntVar(&cfg.Server.MaxRuns, "max-runs", cfg.Server.MaxRuns, "Maximum number of stored runs (LISTSCRAPE_MAX_RUNS)")
	scrapeFlags(fs, cfg)
	fs.Parse(args)

	log, err := setup(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer log.Sync()

	opts := cfg.ScrapeOptions()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	fetcher := m.InstrumentFetcher(listscrape.NewHTTPFetcher(opts.Fetcher))
	pipeline := listscrape.NewPipeline(fetcher, listscrape.NewPacer(opts.Delay), opts, log)

	store := runs.NewStore(cfg.Server.RunTTL, cfg.Server.MaxRuns)
	server := api.NewServer(pipeline, store, cfg, log).WithMetrics(m)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting API server", logger.String("addr", "http://"+cfg.Server.Addr+"/api/v1/runs"))
		errChan <- httpServer.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		log.Info("Shutting down gracefully", logger.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Error("Shutdown timeout exceeded, forcing exit", logger.Error(err))
			return 1
		}
		log.Info("Server stopped")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", logger.Error(err))
			return 1
		}
	}

	return 0
}
