// validate.go: settings validation performed at load time.
package conf

import (
	"fmt"
	"strconv"
)

// ValidateSettings checks the loaded settings for values that would prevent
// the application from operating. It does not verify credentials.
func ValidateSettings(settings *Settings) error {
	if settings.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %d", settings.Monitor.Interval)
	}

	if settings.Recognizer.Timeout <= 0 {
		return fmt.Errorf("recognizer.timeout must be positive, got %d", settings.Recognizer.Timeout)
	}

	switch settings.Recognizer.Provider {
	case "gemini":
	default:
		return fmt.Errorf("unsupported recognizer provider: %q", settings.Recognizer.Provider)
	}

	switch settings.Camera.Source {
	case "http", "file":
	default:
		return fmt.Errorf("unsupported camera source: %q", settings.Camera.Source)
	}

	if settings.WebServer.Enabled {
		port, err := strconv.Atoi(settings.WebServer.Port)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid webserver port: %q", settings.WebServer.Port)
		}
	}

	return nil
}
