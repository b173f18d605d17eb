// Package scheduler refreshes the plugin lists on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"pluginhub/internal/logging"
)

// Refresher is the part of the store the scheduler drives.
type Refresher interface {
	LoadInstalledPlugins(ctx context.Context) error
	LoadPlugins(ctx context.Context) error
}

// Scheduler runs a plugin refresh on every tick of a cron expression.
type Scheduler struct {
	cron    *cron.Cron
	target  Refresher
	timeout time.Duration
}

// New parses schedule (standard five fields or descriptors like "@every 10m").
// A run still in progress when the next tick fires is skipped.
func New(schedule string, target Refresher, timeout time.Duration) (*Scheduler, error) {
	logger := cronLogger{}
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		target:  target,
		timeout: timeout,
	}

	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	logging.Infof("Plugin refresh scheduler started")
}

// Stop halts the schedule and waits for a running refresh up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logging.Warnf("Plugin refresh still running at shutdown")
	}
}

// Next returns when the schedule fires next, zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := RunOnce(ctx, s.target); err != nil {
		logging.Warnf("Scheduled plugin refresh failed: %v", err)
	}
}

// RunOnce refreshes the installed snapshot and then the catalog.
func RunOnce(ctx context.Context, target Refresher) error {
	start := time.Now()
	if err := target.LoadInstalledPlugins(ctx); err != nil {
		return fmt.Errorf("refresh installed plugins: %w", err)
	}
	if err := target.LoadPlugins(ctx); err != nil {
		return fmt.Errorf("refresh plugin catalog: %w", err)
	}
	logging.Debugf("Plugin refresh finished in %s", time.Since(start))
	return nil
}

// cronLogger sends cron's own messages to the leveled logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debugf("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
