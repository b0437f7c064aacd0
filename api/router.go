package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/snapr/api/handler"
	"github.com/use-agent/snapr/api/middleware"
	"github.com/use-agent/snapr/capture"
	"github.com/use-agent/snapr/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint and the archive form are intentionally outside auth so
// monitoring probes and the built-in UI always work.
func NewRouter(svc capture.Service, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	// Archive form UI.
	r.SetHTMLTemplate(handler.ArchiveTemplate())
	r.GET("/", handler.ArchiveForm())
	r.POST("/archive", handler.ArchivePost(svc))

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(svc, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Capture
	protected.GET("/screenshot", handler.Screenshot(svc))
	protected.POST("/capture", handler.Capture(svc))

	// Batch
	protected.POST("/batch/capture", handler.PostBatch(svc, cfg.Webhook.Secret))
	protected.GET("/batch/:id", handler.GetBatch())

	return r
}
