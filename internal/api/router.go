package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"market-price-alerts/internal/auth"
	"market-price-alerts/internal/catalog"
	"market-price-alerts/internal/metrics"
	"market-price-alerts/internal/service"
)

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Service   *service.Service
	Directory *catalog.Directory
	JWT       auth.JWT
	DB        Pinger
	Metrics   *metrics.Recorder
	Logger    zerolog.Logger
}

// NewRouter builds the gin engine. /healthz, /readyz and /metrics are public; every
// /api route requires a bearer token.
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger.With().Str("component", "api").Logger()

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), requestMetrics(deps.Metrics))

	(&HealthHandler{DB: deps.DB}).Register(r)
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	secured := r.Group("", auth.Middleware(deps.JWT))
	(&AlertHandler{Service: deps.Service, Directory: deps.Directory, Logger: logger}).Register(secured)
	(&ObservationHandler{Service: deps.Service, Logger: logger}).Register(secured)
	return r
}

func requestMetrics(rec *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		rec.ObserveHTTP(path, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		event := logger.Debug()
		if status >= 500 {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	}
}
