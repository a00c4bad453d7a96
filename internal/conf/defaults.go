// defaults.go: viper default values for each configuration parameter.
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig sets the default configuration values for viper.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main configuration
	viper.SetDefault("main.name", "ClassWatch-Go")
	viper.SetDefault("main.timeas24h", true)
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/classwatch.log")

	// Recognition service configuration
	viper.SetDefault("recognizer.provider", "gemini")
	viper.SetDefault("recognizer.timeout", 45)
	viper.SetDefault("recognizer.gemini.apikey", "")
	viper.SetDefault("recognizer.gemini.endpoint", "https://generativelanguage.googleapis.com")
	viper.SetDefault("recognizer.gemini.model", "gemini-2.0-flash")

	// Camera configuration
	viper.SetDefault("camera.source", "http")
	viper.SetDefault("camera.snapshoturl", "http://127.0.0.1:8080/shot.jpg")
	viper.SetDefault("camera.filepath", "")
	viper.SetDefault("camera.timeout", 10)

	// Monitor configuration
	viper.SetDefault("monitor.interval", 12)
	viper.SetDefault("monitor.log.enabled", true)
	viper.SetDefault("monitor.log.path", "logs/monitor.log")

	// Web server configuration
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8090")
	viper.SetDefault("webserver.debug", false)

	// Telemetry configuration
	viper.SetDefault("telemetry.enabled", false)
}
