// Package monitor implements the live classroom monitoring command.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	api "github.com/classwatch/classwatch-go/internal/api/v2"
	"github.com/classwatch/classwatch-go/internal/capture"
	"github.com/classwatch/classwatch-go/internal/conf"
	"github.com/classwatch/classwatch-go/internal/logging"
	"github.com/classwatch/classwatch-go/internal/monitor"
	"github.com/classwatch/classwatch-go/internal/observability"
	"github.com/classwatch/classwatch-go/internal/recognizer"
)

// Command creates the monitor command, which runs the live analysis
// scheduler and the dashboard API server until interrupted.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run live classroom monitoring",
		Long:  "Start the periodic capture and analysis scheduler and serve the dashboard API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the monitor command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Monitor.Interval, "interval", viper.GetInt("monitor.interval"), "Analysis cycle interval in seconds")
	cmd.Flags().StringVar(&settings.Camera.Source, "source", viper.GetString("camera.source"), "Frame source (\"http\" or \"file\")")
	cmd.Flags().StringVar(&settings.Camera.SnapshotURL, "snapshoturl", viper.GetString("camera.snapshoturl"), "Camera still-frame URL for the http source")
	cmd.Flags().StringVar(&settings.Camera.FilePath, "framepath", viper.GetString("camera.filepath"), "Path to a JPEG frame for the file source")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the dashboard API server")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

// runMonitor wires the capture source, recognition provider, scheduler and
// API server together and blocks until a shutdown signal arrives.
func runMonitor(settings *conf.Settings) error {
	source, err := capture.NewSource(settings)
	if err != nil {
		return fmt.Errorf("failed to create capture source: %w", err)
	}

	provider, err := recognizer.NewProvider(settings)
	if err != nil {
		return fmt.Errorf("failed to create recognition provider: %w", err)
	}

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if settings.Telemetry.Enabled {
		registry = prometheus.NewRegistry()
		metrics, err = observability.NewMetrics(registry)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	mon := monitor.New(settings, source, provider, metrics)
	defer func() {
		if err := mon.Close(); err != nil {
			logging.Error("Failed to close monitor", "error", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	api.New(e, settings, mon, registry)

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		logging.Info("Starting dashboard API server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("web server error: %w", err)
	case sig := <-quit:
		logging.Info("Shutting down", "signal", sig.String())
	}

	mon.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}

	return nil
}
