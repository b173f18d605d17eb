//go:build cgo

package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"pluginhub/internal/orchestrations"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck,gosec // Test cleanup
	return db
}

func TestInstallOperationLifecycle(t *testing.T) {
	ctx := context.Background()
	ops := NewOperations(openTestDB(t))

	t.Run("completed install", func(t *testing.T) {
		id, err := ops.StartInstall(ctx, orchestrations.Extractors, "tap-github")
		if err != nil {
			t.Fatalf("StartInstall() error = %v", err)
		}

		op, err := ops.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if op.Status != StatusInProgress {
			t.Errorf("Status = %s, want %s", op.Status, StatusInProgress)
		}
		if op.CollectionType != "extractors" || op.PluginName != "tap-github" {
			t.Errorf("unexpected row: %+v", op)
		}
		if op.CompletedAt.Valid {
			t.Errorf("CompletedAt set before completion")
		}

		if err := ops.CompleteInstall(ctx, id); err != nil {
			t.Fatalf("CompleteInstall() error = %v", err)
		}
		op, err = ops.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if op.Status != StatusCompleted || !op.CompletedAt.Valid {
			t.Errorf("expected completed row, got %+v", op)
		}
	})

	t.Run("failed install keeps message", func(t *testing.T) {
		id, err := ops.StartInstall(ctx, orchestrations.Loaders, "target-csv")
		if err != nil {
			t.Fatalf("StartInstall() error = %v", err)
		}
		if err := ops.FailInstall(ctx, id, "pip exited with status 1"); err != nil {
			t.Fatalf("FailInstall() error = %v", err)
		}

		op, err := ops.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if op.Status != StatusFailed {
			t.Errorf("Status = %s, want %s", op.Status, StatusFailed)
		}
		if op.ErrorMessage.String != "pip exited with status 1" {
			t.Errorf("ErrorMessage = %q", op.ErrorMessage.String)
		}
	})
}

func TestUnknownOperation(t *testing.T) {
	ctx := context.Background()
	ops := NewOperations(openTestDB(t))

	if err := ops.CompleteInstall(ctx, "missing"); !errors.Is(err, ErrOperationNotFound) {
		t.Errorf("CompleteInstall() error = %v, want ErrOperationNotFound", err)
	}
	if _, err := ops.Get(ctx, "missing"); !errors.Is(err, ErrOperationNotFound) {
		t.Errorf("Get() error = %v, want ErrOperationNotFound", err)
	}
}

func TestListOperationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	ops := NewOperations(openTestDB(t))

	names := []string{"tap-a", "tap-b", "tap-c"}
	for _, name := range names {
		if _, err := ops.StartInstall(ctx, orchestrations.Extractors, name); err != nil {
			t.Fatalf("StartInstall(%s) error = %v", name, err)
		}
	}

	list, err := ops.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(list))
	}
	if list[0].PluginName != "tap-c" || list[1].PluginName != "tap-b" {
		t.Errorf("unexpected order: %s, %s", list[0].PluginName, list[1].PluginName)
	}
}

func TestFailInterrupted(t *testing.T) {
	ctx := context.Background()
	ops := NewOperations(openTestDB(t))

	running, err := ops.StartInstall(ctx, orchestrations.Extractors, "tap-a")
	if err != nil {
		t.Fatalf("StartInstall() error = %v", err)
	}
	done, err := ops.StartInstall(ctx, orchestrations.Extractors, "tap-b")
	if err != nil {
		t.Fatalf("StartInstall() error = %v", err)
	}
	if err := ops.CompleteInstall(ctx, done); err != nil {
		t.Fatalf("CompleteInstall() error = %v", err)
	}

	n, err := ops.FailInterrupted(ctx)
	if err != nil {
		t.Fatalf("FailInterrupted() error = %v", err)
	}
	if n != 1 {
		t.Errorf("FailInterrupted() = %d, want 1", n)
	}

	op, _ := ops.Get(ctx, running)
	if op.Status != StatusFailed || op.ErrorMessage.String != interruptedMessage {
		t.Errorf("expected interrupted failure, got %+v", op)
	}
	op, _ = ops.Get(ctx, done)
	if op.Status != StatusCompleted {
		t.Errorf("completed operation changed to %s", op.Status)
	}
}
