// Package api implements the HTTP JSON API consumed by the dashboard.
package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/classwatch/classwatch-go/internal/conf"
	"github.com/classwatch/classwatch-go/internal/logging"
	"github.com/classwatch/classwatch-go/internal/monitor"
)

// Cache settings for derived classroom statistics.
const (
	statsCacheTTL     = 5 * time.Second
	statsCacheCleanup = time.Minute
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings
	Monitor  *monitor.Monitor

	apiLogger  *slog.Logger
	statsCache *cache.Cache
}

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an error response with a correlation ID for log lookup.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	resp := &ErrorResponse{
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// generateCorrelationID creates a short random identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "err-rand"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// New creates the API controller and registers all routes on the echo instance.
// The registry may be nil when telemetry is disabled.
func New(e *echo.Echo, settings *conf.Settings, mon *monitor.Monitor, registry *prometheus.Registry) *Controller {
	c := &Controller{
		Echo:       e,
		Settings:   settings,
		Monitor:    mon,
		apiLogger:  logging.ForService("api"),
		statsCache: cache.New(statsCacheTTL, statsCacheCleanup),
	}

	e.Use(middleware.Recover())
	if settings.WebServer.Debug {
		e.Use(middleware.Logger())
	}

	c.Group = e.Group("/api/v2")
	c.initRoutes()

	if settings.Telemetry.Enabled && registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return c
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	c.initStudentRoutes()
	c.initMonitorRoutes()
	c.initDashboardRoutes()

	if c.apiLogger != nil {
		c.apiLogger.Info("API routes initialized")
	}
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	if c.apiLogger != nil {
		var errorStr string
		if err != nil {
			errorStr = err.Error()
		} else {
			errorStr = message
		}
		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorStr,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(code, errorResp)
}

// Healthz responds to liveness probes.
func (c *Controller) Healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
