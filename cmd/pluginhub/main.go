// Package main is the entry point for the pluginhub server
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pluginhub/internal/config"
	"pluginhub/internal/configuration"
	"pluginhub/internal/database"
	"pluginhub/internal/logging"
	"pluginhub/internal/migrations"
	"pluginhub/internal/orchestrations"
	"pluginhub/internal/scheduler"
	"pluginhub/internal/server"
	"pluginhub/internal/telemetry"
	"pluginhub/internal/version"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file if it exists (for development)
	if err := godotenv.Load(); err != nil && os.Getenv("DEBUG") == "true" {
		logging.Debugf("No .env file found or error loading it: %v", err)
	}

	// Handle version flag first, before loading configuration
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-version" || os.Args[1] == "version") {
		fmt.Println(version.Get().String())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	if cfg.LogDir != "" {
		if err := logging.Initialize(cfg.LogDir); err != nil {
			logging.Warnf("Failed to initialize file logging: %v", err)
		} else {
			defer logging.Close() //nolint:errcheck // Process exit
		}
	}

	addr, err := normalizeListenAddr(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}
	cfg.ListenAddr = addr
	logging.Infof("Configuration: %s", cfg)

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, version.Get().Version)
	if err != nil {
		logging.Warnf("Failed to initialize telemetry: %v", err)
	} else {
		defer func() {
			if err := shutdownTracing(ctx); err != nil {
				logging.Warnf("Error shutting down telemetry: %v", err)
			}
		}()
	}

	if err := database.Initialize(cfg.DatabasePath); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logging.Errorf("Failed to close database: %v", err)
		}
	}()

	operations := database.NewOperations(database.GetDB())
	if n, err := operations.FailInterrupted(ctx); err != nil {
		logging.Warnf("%v", err)
	} else if n > 0 {
		logging.Warnf("Marked %d interrupted install(s) as failed", n)
	}

	sse := server.NewSSEManager()
	client := orchestrations.NewClient(cfg.OrchestratorURL, cfg.RequestTimeout)
	store := configuration.NewStore(client, configuration.Options{
		LogoBaseURL: cfg.LogoBaseURL,
		Operations:  operations,
		Events:      sse,
	})

	// Prime the plugin lists without blocking startup on the orchestrator
	go func() {
		refreshCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
		if err := scheduler.RunOnce(refreshCtx, store); err != nil {
			logging.Warnf("Initial plugin refresh failed: %v", err)
		}
	}()

	var sched *scheduler.Scheduler
	if cfg.RefreshSchedule != "" {
		sched, err = scheduler.New(cfg.RefreshSchedule, store, cfg.RequestTimeout)
		if err != nil {
			return err
		}
		sched.Start()
	}

	srv := server.New(cfg, store, operations, sse)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	for {
		select {
		case err := <-serverErr:
			if sched != nil {
				sched.Stop(ctx)
			}
			return err
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				if cfg.LogDir == "" {
					continue
				}
				if err := logging.RotateLogs(cfg.LogDir); err != nil {
					logging.Errorf("Log rotation failed: %v", err)
				}
				continue
			}

			logging.Infof("Received %s, shutting down", sig)
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			if sched != nil {
				sched.Stop(shutdownCtx)
			}
			err := srv.Shutdown(shutdownCtx)
			cancel()
			return err
		}
	}
}

func runMigrate(cfg *config.Config, args []string) error {
	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	// Open applies pending migrations, so "up" only reports the result
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Process exit

	switch command {
	case "up":
		v, err := migrations.Version(db)
		if err != nil {
			return err
		}
		fmt.Printf("Database %s is at schema version %d\n", cfg.DatabasePath, v)
		return nil
	case "down":
		return migrations.RunDown(db)
	case "status":
		return migrations.Status(db)
	default:
		return fmt.Errorf("unknown migrate command %q (want up, down or status)", command)
	}
}

// normalizeListenAddr accepts a bare port ("3000") or a host:port address
func normalizeListenAddr(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", errors.New("empty address")
	}

	if !strings.Contains(addr, ":") {
		port, err := strconv.Atoi(addr)
		if err != nil {
			return "", fmt.Errorf("invalid port %q: %w", addr, err)
		}
		if port < 1 || port > 65535 {
			return "", fmt.Errorf("port %d out of range", port)
		}
		return ":" + addr, nil
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", fmt.Errorf("invalid port %q", portStr)
	}
	return net.JoinHostPort(host, portStr), nil
}
