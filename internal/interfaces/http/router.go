package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/turtacn/KinKeep/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KinKeep/internal/interfaces/http/handlers"
	"github.com/turtacn/KinKeep/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree. Nil handlers leave their routes unmounted.
type RouterConfig struct {
	MemberHandler *handlers.MemberHandler
	StoryHandler  *handlers.StoryHandler
	HealthHandler *handlers.HealthHandler

	CORS          middleware.CORSConfig
	Logging       middleware.LoggingConfig
	ImportLimiter middleware.RateLimiter
	MaxBodySize   int64

	Logger           logging.Logger
	Metrics          *prommetrics.AppMetrics
	MetricsCollector prommetrics.MetricsCollector
	MetricsPath      string
}

// NewRouter constructs the gin engine serving the API, the probes and the
// metrics endpoint.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestLogging(logger, cfg.Logging))
	r.Use(middleware.Metrics(cfg.Metrics))
	if cfg.MaxBodySize > 0 {
		r.Use(limitBody(cfg.MaxBodySize))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	registerMemberRoutes(api, cfg.MemberHandler)
	registerStoryRoutes(api, cfg.StoryHandler, cfg.ImportLimiter)

	return r
}

// registerMemberRoutes mounts the record store and its views.
func registerMemberRoutes(r *gin.RouterGroup, h *handlers.MemberHandler) {
	if h == nil {
		return
	}
	members := r.Group("/members")
	members.GET("", h.List)
	members.POST("", h.Create)
	members.GET("/:id", h.Get)
	members.PUT("/:id", h.Update)
	members.DELETE("/:id", h.Delete)
	members.GET("/:id/relatives", h.Relatives)
	members.POST("/:id/memories", h.AddMemory)
	members.DELETE("/:id/memories/:memoryId", h.RemoveMemory)

	r.GET("/timeline", h.Timeline)
	r.GET("/candidates", h.Candidates)
}

// registerStoryRoutes mounts story import and export. Import calls a paid
// model, so it sits behind the limiter when one is configured.
func registerStoryRoutes(r *gin.RouterGroup, h *handlers.StoryHandler, limiter middleware.RateLimiter) {
	if h == nil {
		return
	}
	imp := r.Group("/import")
	if limiter != nil {
		imp.Use(middleware.RateLimit(limiter))
	}
	imp.POST("/story", h.Import)

	r.GET("/export", h.Download)
	r.POST("/export", h.Publish)
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
