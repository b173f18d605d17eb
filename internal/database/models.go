package database

import (
	"database/sql"
	"time"
)

// InstallOperation is one row of the install log.
type InstallOperation struct {
	ID             string
	CollectionType string
	PluginName     string
	Status         string
	ErrorMessage   sql.NullString
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    sql.NullTime
}

const (
	// Status Choices
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
