package config

import "time"

// Defaults applied before config.toml and the environment
const (
	// DefaultPort is the default port for the pluginhub server
	DefaultPort = ":3000"

	// DefaultDatabasePath holds the install operation log
	DefaultDatabasePath = "pluginhub.db"

	// DefaultOrchestratorURL is where the orchestration service listens in development
	DefaultOrchestratorURL = "http://localhost:5000"

	// DefaultRequestTimeout bounds orchestration calls; installs can take a while
	DefaultRequestTimeout = 5 * time.Minute

	// DefaultLogoBaseURL is where plugin logos are served from
	DefaultLogoBaseURL = "/static/logos"
)
