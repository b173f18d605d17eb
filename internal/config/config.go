package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration settings for the application
type Config struct {
	// ListenAddr is the address and port for the web server
	ListenAddr string `toml:"listen_addr"`

	// DatabasePath is the path to the SQLite database file holding the install log
	DatabasePath string `toml:"database_path"`

	// OrchestratorURL is the base URL of the orchestration service
	OrchestratorURL string `toml:"orchestrator_url"`

	// RequestTimeout bounds every call to the orchestration service
	RequestTimeout time.Duration `toml:"request_timeout"`

	// RefreshSchedule is a cron expression for refreshing plugin lists. Empty disables it.
	RefreshSchedule string `toml:"refresh_schedule"`

	// LogDir is where pluginhub.log is written. Empty logs to stdout only.
	LogDir string `toml:"log_dir"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `toml:"log_level"`

	// LogoBaseURL is the prefix of plugin logo URLs
	LogoBaseURL string `toml:"logo_base_url"`

	// OTLPEndpoint enables trace export when set
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// defaultConfig returns the default configuration
func defaultConfig() *Config {
	return &Config{
		ListenAddr:      DefaultPort,
		DatabasePath:    DefaultDatabasePath,
		OrchestratorURL: DefaultOrchestratorURL,
		RequestTimeout:  DefaultRequestTimeout,
		LogLevel:        "info",
		LogoBaseURL:     DefaultLogoBaseURL,
	}
}

// ConfigPath returns the config file location, PLUGINHUB_CONFIG_PATH or ./config.toml
func ConfigPath() string {
	if p := os.Getenv("PLUGINHUB_CONFIG_PATH"); p != "" {
		return p
	}
	return "config.toml"
}

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	// Start with default configuration
	config := defaultConfig()

	// Try to load from config.toml if it exists
	configPath := ConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	// Override with environment variables if set
	if listenAddr := os.Getenv("LISTEN_ADDR"); listenAddr != "" {
		config.ListenAddr = listenAddr
	}

	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.DatabasePath = dbPath
	}

	if url := os.Getenv("PLUGINHUB_ORCHESTRATOR_URL"); url != "" {
		config.OrchestratorURL = url
	}

	if timeout := os.Getenv("PLUGINHUB_REQUEST_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid PLUGINHUB_REQUEST_TIMEOUT %q: %w", timeout, err)
		}
		config.RequestTimeout = d
	}

	if schedule, ok := os.LookupEnv("PLUGINHUB_REFRESH_SCHEDULE"); ok {
		config.RefreshSchedule = schedule
	}

	if logDir := os.Getenv("PLUGINHUB_LOG_DIR"); logDir != "" {
		config.LogDir = logDir
	}

	if level := os.Getenv("PLUGINHUB_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}

	if logoURL := os.Getenv("PLUGINHUB_LOGO_BASE_URL"); logoURL != "" {
		config.LogoBaseURL = logoURL
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		config.OTLPEndpoint = endpoint
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Ensure DatabasePath is absolute
	if config.DatabasePath != ":memory:" && !filepath.IsAbs(config.DatabasePath) {
		absPath, err := filepath.Abs(config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for database_path: %w", err)
		}
		config.DatabasePath = absPath
	}

	return config, nil
}

// Validate checks settings that would otherwise fail later at startup
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OrchestratorURL) == "" {
		return fmt.Errorf("orchestrator_url must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	return nil
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("ListenAddr: %s", c.ListenAddr))
	parts = append(parts, fmt.Sprintf("DatabasePath: %s", c.DatabasePath))
	parts = append(parts, fmt.Sprintf("OrchestratorURL: %s", c.OrchestratorURL))
	parts = append(parts, fmt.Sprintf("RequestTimeout: %s", c.RequestTimeout))
	parts = append(parts, fmt.Sprintf("RefreshSchedule: %q", c.RefreshSchedule))
	parts = append(parts, fmt.Sprintf("LogLevel: %s", c.LogLevel))
	return strings.Join(parts, ", ")
}
