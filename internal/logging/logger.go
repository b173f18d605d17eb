// Package logging provides unified logging infrastructure for pluginhub
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a level name into a Level. Unknown names map to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger wraps the standard logger with file output
type Logger struct {
	*log.Logger
	file *os.File
	mu   sync.Mutex
}

const logFileName = "pluginhub.log"

var (
	defaultLogger *Logger
	once          sync.Once

	levelMu sync.RWMutex
	level   = LevelInfo
)

// SetLevel changes the minimum level that is written.
func SetLevel(l Level) {
	levelMu.Lock()
	defer levelMu.Unlock()
	level = l
}

func enabled(l Level) bool {
	if l == LevelDebug && os.Getenv("DEBUG") == "true" {
		return true
	}
	levelMu.RLock()
	defer levelMu.RUnlock()
	return l >= level
}

// Initialize sets up the logging system with file output
func Initialize(logDir string) error {
	var initErr error
	once.Do(func() {
		if err := os.MkdirAll(logDir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}

		logPath := filepath.Join(logDir, logFileName)
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 - path from configuration
		if err != nil {
			initErr = fmt.Errorf("failed to open log file: %w", err)
			return
		}

		multiWriter := io.MultiWriter(os.Stdout, file)

		defaultLogger = &Logger{
			Logger: log.New(multiWriter, "", log.LstdFlags|log.Lshortfile),
			file:   file,
		}

		log.SetOutput(multiWriter)
		log.SetFlags(log.LstdFlags | log.Lshortfile)

		log.Printf("Logging initialized: %s", logPath)
	})
	return initErr
}

// Close closes the log file
func Close() error {
	if defaultLogger != nil && defaultLogger.file != nil {
		return defaultLogger.file.Close()
	}
	return nil
}

func output(msg string) {
	// calldepth 3 points Lshortfile at the caller of Infof and friends
	if defaultLogger != nil {
		defaultLogger.Output(3, msg) //nolint:errcheck // Logging must not fail callers
	} else {
		log.Output(3, msg) //nolint:errcheck // Logging must not fail callers
	}
}

// Errorf logs an error message
func Errorf(format string, v ...interface{}) {
	if enabled(LevelError) {
		output(fmt.Sprintf("[ERROR] "+format, v...))
	}
}

// Warnf logs a warning message
func Warnf(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		output(fmt.Sprintf("[WARN] "+format, v...))
	}
}

// Infof logs an info message
func Infof(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		output(fmt.Sprintf("[INFO] "+format, v...))
	}
}

// Debugf logs a debug message (level debug or DEBUG=true)
func Debugf(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		output(fmt.Sprintf("[DEBUG] "+format, v...))
	}
}

// RotateLogs creates a new log file with timestamp and renames the old one
func RotateLogs(logDir string) error {
	if defaultLogger == nil {
		return fmt.Errorf("logger not initialized")
	}

	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()

	if err := defaultLogger.file.Close(); err != nil {
		return fmt.Errorf("failed to close current log file: %w", err)
	}

	oldPath := filepath.Join(logDir, logFileName)
	newPath := filepath.Join(logDir, fmt.Sprintf("pluginhub-%s.log", time.Now().Format("20060102-150405")))
	if err := os.Rename(oldPath, newPath); err != nil {
		// Keep logging to the original file if rename fails
		defaultLogger.file, _ = os.OpenFile(oldPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	file, err := os.OpenFile(oldPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to open new log file: %w", err)
	}

	defaultLogger.file = file

	multiWriter := io.MultiWriter(os.Stdout, file)
	defaultLogger.Logger.SetOutput(multiWriter)
	log.SetOutput(multiWriter)

	log.Printf("Log rotation completed: %s", newPath)
	return nil
}
