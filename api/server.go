// Package api exposes scrape runs over HTTP: start a run, read its records
// as JSON, and download them as CSV.
package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pevans/listscrape"
	"github.com/pevans/listscrape/config"
	"github.com/pevans/listscrape/logger"
	"github.com/pevans/listscrape/metrics"
	"github.com/pevans/listscrape/runs"
)

// DefaultRunTimeout bounds one run when the server is built without one.
const DefaultRunTimeout = 10 * time.Minute

// statusClientClosedRequest is returned when the client goes away before
// the run finishes.
const statusClientClosedRequest = 499

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Runner executes a scrape. *listscrape.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, listingURL string) (*listscrape.RunResult, error)
}

// Server is the HTTP API server.
type Server struct {
	runner     Runner
	store      *runs.Store
	config     *config.Config
	runTimeout time.Duration
	metrics    *metrics.Metrics
	log        logger.Logger
}

// NewServer creates a server. cfg may be nil, in which case the config
// endpoint is not mounted and DefaultRunTimeout applies.
func NewServer(runner Runner, store *runs.Store, cfg *config.Config, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}

	runTimeout := DefaultRunTimeout
	if cfg != nil && cfg.Server.RunTimeout > 0 {
		runTimeout = cfg.Server.RunTimeout
	}

	return &Server{
		runner:     runner,
		store:      store,
		config:     cfg,
		runTimeout: runTimeout,
		log:        log,
	}
}

// WithMetrics records every run on m and mounts GET /metrics.
func (s *Server) WithMetrics(m *metrics.Metrics) *Server {
	s.metrics = m
	return s
}

// SetupRouter configures the Gin router with all API routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/healthz", s.HandleHealth)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := router.Group("/api/v1")
	api.GET("/status", s.HandleStatus)
	api.POST("/runs", s.HandleCreateRun)
	api.GET("/runs", s.HandleListRuns)
	api.GET("/runs/:id", s.HandleGetRun)
	api.GET("/runs/:id/csv", s.HandleDownloadCSV)
	api.GET("/runs/:id/xlsx", s.HandleDownloadXLSX)
	api.DELETE("/runs/:id", s.HandleDeleteRun)

	if s.config != nil {
		config.NewAPIHandler(s.config).Register(api)
	}

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("Handled request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
		)
	}
}

// CreateRunRequest represents the request for POST /api/v1/runs.
type CreateRunRequest struct {
	URL string `json:"url" binding:"required"`
}

// RunResponse represents a stored run.
type RunResponse struct {
	RunID      uuid.UUID                   `json:"run_id"`
	ListingURL string                      `json:"listing_url"`
	LinksFound int                         `json:"links_found"`
	Total      int                         `json:"total"`
	StartedAt  time.Time                   `json:"started_at"`
	FinishedAt time.Time                   `json:"finished_at"`
	Records    []listscrape.ArticleRecord  `json:"records"`
	Failures   []listscrape.ArticleFailure `json:"failures"`
}

// ListRunsResponse represents the response for GET /api/v1/runs.
type ListRunsResponse struct {
	Runs  []runs.Summary `json:"runs"`
	Total int            `json:"total"`
}

func newRunResponse(run *runs.Run) RunResponse {
	r := run.Result
	return RunResponse{
		RunID:      run.ID,
		ListingURL: r.ListingURL,
		LinksFound: r.LinksFound,
		Total:      r.Total(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Records:    r.Records,
		Failures:   r.Failures,
	}
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// handleRunError maps pipeline errors to HTTP responses.
func (s *Server) handleRunError(c *gin.Context, err error) {
	var (
		validationErr *listscrape.ValidationError
		fetchErr      *listscrape.FetchError
		parseErr      *listscrape.ParseError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, errorResponse("timeout", err.Error()))
	case errors.Is(err, context.Canceled):
		c.JSON(statusClientClosedRequest, errorResponse("cancelled", err.Error()))
	case errors.As(err, &fetchErr):
		c.JSON(http.StatusBadGateway, errorResponse("fetch_error", err.Error()))
	case errors.As(err, &parseErr):
		c.JSON(http.StatusBadGateway, errorResponse("parse_error", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// lookupRun resolves the :id parameter, accepting "latest". It writes the
// error response itself and returns nil when no run matches.
func (s *Server) lookupRun(c *gin.Context) *runs.Run {
	param := c.Param("id")

	if param == "latest" {
		run := s.store.Latest()
		if run == nil {
			c.JSON(http.StatusNotFound, errorResponse("not_found", "No runs available"))
		}
		return run
	}

	id, err := uuid.Parse(param)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid run ID"))
		return nil
	}

	run := s.store.Get(id)
	if run == nil {
		c.JSON(http.StatusNotFound, errorResponse("not_found", "Run not found"))
	}
	return run
}

// HandleHealth handles GET /healthz.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "runs": s.store.Len()})
}

// HandleStatus handles GET /api/v1/status. scraped_count is the record
// count of the latest run.
func (s *Server) HandleStatus(c *gin.Context) {
	scraped := 0
	if latest := s.store.Latest(); latest != nil {
		scraped = latest.Result.Total()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "running",
		"runs":          s.store.Len(),
		"scraped_count": scraped,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleCreateRun handles POST /api/v1/runs. The run executes within the
// request, bounded by the server's run timeout.
func (s *Server) HandleCreateRun(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.runTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.runner.Run(ctx, req.URL)
	if s.metrics != nil {
		s.metrics.ObserveRun(result, err, time.Since(start))
	}
	if err != nil {
		s.log.Warn("Run failed", logger.String("url", req.URL), logger.Error(err))
		s.handleRunError(c, err)
		return
	}

	id := s.store.Add(result)
	s.log.Info("Run stored",
		logger.String("run_id", id.String()),
		logger.Int("records", result.Total()),
	)

	c.JSON(http.StatusCreated, newRunResponse(&runs.Run{ID: id, Result: result}))
}

// HandleListRuns handles GET /api/v1/runs.
func (s *Server) HandleListRuns(c *gin.Context) {
	summaries := s.store.List()

	c.JSON(http.StatusOK, ListRunsResponse{
		Runs:  summaries,
		Total: len(summaries),
	})
}

// HandleGetRun handles GET /api/v1/runs/{id}.
func (s *Server) HandleGetRun(c *gin.Context) {
	run := s.lookupRun(c)
	if run == nil {
		return
	}

	c.JSON(http.StatusOK, newRunResponse(run))
}

// HandleDownloadCSV handles GET /api/v1/runs/{id}/csv.
func (s *Server) HandleDownloadCSV(c *gin.Context) {
	run := s.lookupRun(c)
	if run == nil {
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+listscrape.CSVFilename(run.Result)+`"`)
	c.Status(http.StatusOK)

	if err := listscrape.WriteCSV(c.Writer, run.Result.Records); err != nil {
		s.log.Error("Failed to write CSV", logger.String("run_id", run.ID.String()), logger.Error(err))
	}
}

// HandleDownloadXLSX handles GET /api/v1/runs/{id}/xlsx.
func (s *Server) HandleDownloadXLSX(c *gin.Context) {
	run := s.lookupRun(c)
	if run == nil {
		return
	}

	var buf bytes.Buffer
	if err := listscrape.WriteXLSX(&buf, run.Result); err != nil {
		s.log.Error("Failed to write XLSX", logger.String("run_id", run.ID.String()), logger.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to build workbook"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+listscrape.XLSXFilename(run.Result)+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// HandleDeleteRun handles DELETE /api/v1/runs/{id}.
func (s *Server) HandleDeleteRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid run ID"))
		return
	}

	if !s.store.Delete(id) {
		c.JSON(http.StatusNotFound, errorResponse("not_found", "Run not found"))
		return
	}

	c.Status(http.StatusNoContent)
}
