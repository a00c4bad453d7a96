package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/classwatch/classwatch-go/internal/monitor"
)

// MonitorStatus is the live session status surface for the dashboard.
type MonitorStatus struct {
	State      monitor.State       `json:"state"`
	Analyzing  bool                `json:"analyzing"`
	RosterSize int                 `json:"rosterSize"`
	Interval   int                 `json:"intervalSeconds"`
	LastError  *monitor.CycleError `json:"lastError,omitempty"`
}

// ControlResult is the response for start/stop/retry actions.
type ControlResult struct {
	Success bool          `json:"success"`
	State   monitor.State `json:"state"`
	Message string        `json:"message"`
}

// initMonitorRoutes registers the live monitoring control endpoints
func (c *Controller) initMonitorRoutes() {
	c.Group.GET("/monitor/status", c.MonitorStatusHandler)
	c.Group.GET("/monitor/faces", c.MonitorFaces)
	c.Group.GET("/monitor/events", c.MonitorEvents)
	c.Group.POST("/monitor/start", c.StartMonitor)
	c.Group.POST("/monitor/stop", c.StopMonitor)
	c.Group.POST("/monitor/retry", c.RetryCycle)
}

// MonitorStatusHandler reports the session state, in-flight flag, roster size
// and the current error slot.
func (c *Controller) MonitorStatusHandler(ctx echo.Context) error {
	status := MonitorStatus{
		State:      c.Monitor.State(),
		Analyzing:  c.Monitor.Analyzing(),
		RosterSize: len(c.Monitor.Students()),
		Interval:   c.Settings.Monitor.Interval,
		LastError:  c.Monitor.LastError(),
	}
	return ctx.JSON(http.StatusOK, status)
}

// MonitorFaces returns the latest cycle's detections carrying bounding boxes.
func (c *Controller) MonitorFaces(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Monitor.Faces())
}

// MonitorEvents returns the bounded event log, newest first.
func (c *Controller) MonitorEvents(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Monitor.Events())
}

// StartMonitor transitions the session to live. Starting with an empty
// roster or without a recognition credential is rejected, not an internal
// failure.
func (c *Controller) StartMonitor(ctx echo.Context) error {
	if err := c.Monitor.Start(ctx.Request().Context()); err != nil {
		switch {
		case errors.Is(err, monitor.ErrEmptyRoster):
			return c.HandleError(ctx, err, "enroll at least one student before starting", http.StatusConflict)
		case errors.Is(err, monitor.ErrAlreadyLive):
			return ctx.JSON(http.StatusOK, ControlResult{
				Success: true,
				State:   c.Monitor.State(),
				Message: "monitoring already running",
			})
		default:
			return c.HandleError(ctx, err, "failed to start monitoring", http.StatusServiceUnavailable)
		}
	}

	return ctx.JSON(http.StatusOK, ControlResult{
		Success: true,
		State:   c.Monitor.State(),
		Message: "live monitoring started",
	})
}

// StopMonitor transitions the session to idle. Stopping an idle session is a
// no-op success.
func (c *Controller) StopMonitor(ctx echo.Context) error {
	c.Monitor.Stop()
	return ctx.JSON(http.StatusOK, ControlResult{
		Success: true,
		State:   c.Monitor.State(),
		Message: "live monitoring stopped",
	})
}

// RetryCycle clears the current error slot and triggers one analysis cycle
// immediately. Only valid while live; a cycle already in flight is reported
// as a conflict rather than queued.
func (c *Controller) RetryCycle(ctx echo.Context) error {
	if c.Monitor.State() != monitor.StateLive {
		return c.HandleError(ctx, nil, "monitoring is not running", http.StatusConflict)
	}

	c.Monitor.ClearError()
	go func() {
		// Detached from the request context so a client disconnect does
		// not abort the cycle mid-flight.
		_ = c.Monitor.RunCycle(context.Background())
	}()

	return ctx.JSON(http.StatusAccepted, ControlResult{
		Success: true,
		State:   c.Monitor.State(),
		Message: "analysis cycle triggered",
	})
}
