package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/classwatch/classwatch-go/internal/model"
)

const statsCacheKey = "classroom_stats"

// initDashboardRoutes registers the derived statistics endpoints
func (c *Controller) initDashboardRoutes() {
	c.Group.GET("/classroom/stats", c.ClassroomStats)
	c.Echo.GET("/healthz", c.Healthz)
}

// ClassroomStats returns aggregate attention statistics derived from the
// roster. Results are cached briefly since the dashboard polls this endpoint.
func (c *Controller) ClassroomStats(ctx echo.Context) error {
	if cached, found := c.statsCache.Get(statsCacheKey); found {
		if stats, ok := cached.(model.ClassroomStats); ok {
			return ctx.JSON(http.StatusOK, stats)
		}
	}

	stats := model.ComputeClassroomStats(c.Monitor.Students())
	c.statsCache.Set(statsCacheKey, stats, cache.DefaultExpiration)

	return ctx.JSON(http.StatusOK, stats)
}

// invalidateStatsCache drops the cached statistics after a roster change.
func (c *Controller) invalidateStatsCache() {
	c.statsCache.Delete(statsCacheKey)
}
