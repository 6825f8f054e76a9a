package config

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIHandler serves the effective configuration read-only. Durations are
// rendered as Go duration strings ("10s", "1h0m0s").
type APIHandler struct {
	config *Config
}

// NewAPIHandler creates a handler for cfg.
func NewAPIHandler(cfg *Config) *APIHandler {
	return &APIHandler{
		config: cfg,
	}
}

// Register mounts GET /config on group.
func (h *APIHandler) Register(group *gin.RouterGroup) {
	group.GET("/config", h.HandleGetConfig)
}

// HandleGetConfig handles GET /api/v1/config.
func (h *APIHandler) HandleGetConfig(ctx *gin.Context) {
	s := h.config.Scrape

	ctx.JSON(http.StatusOK, gin.H{
		"scrape": gin.H{
			"article_marker":       s.ArticleMarker,
			"category_markers":     s.CategoryMarkers,
			"timeout":              s.Timeout.String(),
			"delay":                s.Delay.String(),
			"user_agent":           s.UserAgent,
			"max_body_bytes":       s.MaxBodyBytes,
			"workers":              s.Workers,
			"max_articles":         s.MaxArticles,
			"retries":              s.Retries,
			"retry_delay":          s.RetryDelay.String(),
			"readability_fallback": s.ReadabilityFallback,
		},
		"server": gin.H{
			"addr":        h.config.Server.Addr,
			"run_timeout": h.config.Server.RunTimeout.String(),
			"run_ttl":     h.config.Server.RunTTL.String(),
			"max_runs":    h.config.Server.MaxRuns,
		},
		"log": gin.H{
			"level":  h.config.Log.Level,
			"format": h.config.Log.Format,
		},
	})
}
