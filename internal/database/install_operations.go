package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pluginhub/internal/orchestrations"
)

// ErrOperationNotFound is returned for unknown operation ids.
var ErrOperationNotFound = errors.New("install operation not found")

const interruptedMessage = "interrupted by restart"

// Operations records plugin installs in the install_operations table.
type Operations struct {
	db *sql.DB
}

// NewOperations wraps an open database.
func NewOperations(db *sql.DB) *Operations {
	return &Operations{db: db}
}

// StartInstall records a new install and marks it in progress.
func (o *Operations) StartInstall(ctx context.Context, ct orchestrations.CollectionType, name string) (string, error) {
	operationID := uuid.New().String()

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	query := `
		INSERT INTO install_operations (id, collection_type, plugin_name, status)
		VALUES (?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query, operationID, string(ct), name, StatusPending); err != nil {
		return "", fmt.Errorf("failed to create operation: %w", err)
	}

	if err := setStatus(ctx, tx, operationID, StatusInProgress, ""); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit operation: %w", err)
	}
	return operationID, nil
}

// CompleteInstall marks an install as completed.
func (o *Operations) CompleteInstall(ctx context.Context, id string) error {
	return setStatus(ctx, o.db, id, StatusCompleted, "")
}

// FailInstall marks an install as failed with message.
func (o *Operations) FailInstall(ctx context.Context, id, message string) error {
	return setStatus(ctx, o.db, id, StatusFailed, message)
}

// FailInterrupted fails every install left pending or in progress by a previous run.
func (o *Operations) FailInterrupted(ctx context.Context) (int64, error) {
	query := `
		UPDATE install_operations
		SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP, completed_at = CURRENT_TIMESTAMP
		WHERE status IN (?, ?)
	`
	res, err := o.db.ExecContext(ctx, query, StatusFailed, interruptedMessage, StatusPending, StatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up interrupted operations: %w", err)
	}
	return res.RowsAffected()
}

// Get returns one operation by id.
func (o *Operations) Get(ctx context.Context, id string) (*InstallOperation, error) {
	query := `
		SELECT id, collection_type, plugin_name, status, error_message, created_at, updated_at, completed_at
		FROM install_operations
		WHERE id = ?
	`
	op, err := scanOperation(o.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOperationNotFound
		}
		return nil, fmt.Errorf("failed to get operation %s: %w", id, err)
	}
	return op, nil
}

// List returns the most recent operations first, at most limit rows.
func (o *Operations) List(ctx context.Context, limit int) ([]InstallOperation, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, collection_type, plugin_name, status, error_message, created_at, updated_at, completed_at
		FROM install_operations
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := o.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	ops := []InstallOperation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, *op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return ops, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func setStatus(ctx context.Context, e execer, id, status, errorMessage string) error {
	query := `
		UPDATE install_operations
		SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	if status == StatusCompleted || status == StatusFailed {
		query = `
			UPDATE install_operations
			SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP, completed_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`
	}

	var msg sql.NullString
	if errorMessage != "" {
		msg = sql.NullString{String: errorMessage, Valid: true}
	}

	res, err := e.ExecContext(ctx, query, status, msg, id)
	if err != nil {
		return fmt.Errorf("failed to update operation status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrOperationNotFound
	}
	return nil
}

func scanOperation(s scanner) (*InstallOperation, error) {
	var op InstallOperation
	err := s.Scan(&op.ID, &op.CollectionType, &op.PluginName, &op.Status,
		&op.ErrorMessage, &op.CreatedAt, &op.UpdatedAt, &op.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &op, nil
}
