// config.go: This file contains the configuration for the ClassWatch-Go application. It defines the settings struct and functions to load and save the settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to log file
}

// GeminiSettings contains settings for the Gemini recognition provider.
type GeminiSettings struct {
	APIKey   string // API key for the generative language API
	Endpoint string // base URL of the generative language API
	Model    string // model used for classroom frame analysis
}

// RecognizerSettings contains settings for the external recognition service.
type RecognizerSettings struct {
	Provider string         // recognition provider, "gemini" is the only supported value for now
	Timeout  int            // request timeout in seconds
	Gemini   GeminiSettings // Gemini provider configuration
}

// CameraSettings contains settings for the classroom camera collaborator.
type CameraSettings struct {
	Source      string // frame source type, "http" or "file"
	SnapshotURL string // still-frame URL for http source (IP camera style)
	FilePath    string // path to a JPEG frame for file source, used in development
	Timeout     int    // capture timeout in seconds
}

// MonitorSettings contains settings for the live analysis scheduler.
type MonitorSettings struct {
	Interval int       // analysis cycle interval in seconds
	Log      LogConfig // monitor log configuration
}

// Settings contains all runtime settings for the application.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name      string    // name of the ClassWatch node, used to identify the classroom
		TimeAs24h bool      // true 24-hour time format, false 12-hour time format
		Log       LogConfig // main logging configuration
	}

	Recognizer RecognizerSettings // external recognition service configuration

	Camera CameraSettings // camera capture configuration

	Monitor MonitorSettings // live monitoring scheduler configuration

	WebServer struct {
		Debug   bool   // true to enable web server debug mode
		Enabled bool   // true to enable web server
		Port    string // port for web server
	}

	Telemetry struct {
		Enabled bool // true to expose Prometheus metrics
	}
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into GlobalConfig.
func Load() (*Settings, error) {
	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal config file into struct
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	// Save settings instance
	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment variables override file values, e.g. CLASSWATCH_RECOGNIZER_GEMINI_APIKEY
	viper.SetEnvPrefix("classwatch")
	viper.AutomaticEnv()

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	setDefaultConfig()

	// Read configuration file
	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default configuration to the first config path.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	log.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig returns the embedded default configuration as a string.
func getDefaultConfig() (string, error) {
	data, err := configFiles.ReadFile("config.yaml")
	if err != nil {
		return "", fmt.Errorf("error reading embedded config.yaml: %w", err)
	}
	return string(data), nil
}

// GetDefaultConfigPaths returns the default configuration paths for the application.
func GetDefaultConfigPaths() ([]string, error) {
	var paths []string

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	paths = append(paths, filepath.Join(homeDir, ".config", "classwatch-go"))
	paths = append(paths, ".")

	return paths, nil
}

// Setting returns the current settings instance, loading them if necessary.
func Setting() *Settings {
	once.Do(func() {
		if _, err := Load(); err != nil {
			log.Fatalf("Error loading settings: %v", err)
		}
	})

	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveSettings saves the current settings to the configuration file used by viper.
func SaveSettings(settings *Settings) error {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to yaml: %w", err)
	}

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		configPath = filepath.Join(configPaths[0], "config.yaml")
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing settings to config file: %w", err)
	}

	settingsInstance = settings
	return nil
}
