package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nvandessel/axelrod/internal/config"
	"github.com/nvandessel/axelrod/internal/logging"
	"github.com/nvandessel/axelrod/internal/store"
)

// loadConfig loads configuration honouring the --config and --log-level flags.
func loadConfig(cmd *cobra.Command) (*config.StudyConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if !logging.ValidLevel(cfg.Logging.Level) {
		return nil, fmt.Errorf("invalid log level: %s (valid: info, debug, trace)", cfg.Logging.Level)
	}
	return cfg, nil
}

// newLoggers returns the stderr logger and, at debug or trace level, the
// event log under ~/.axelrod. The event log may be nil.
func newLoggers(cmd *cobra.Command, cfg *config.StudyConfig) (*slog.Logger, *logging.EventLogger) {
	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	var events *logging.EventLogger
	if dir, err := config.Dir(); err == nil {
		events = logging.NewEventLogger(dir, cfg.Logging.Level)
	}
	return logger, events
}

// openStore opens the results database named by the config.
func openStore(cfg *config.StudyConfig) (*store.SQLiteStore, error) {
	path, err := store.ResolvePath(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}
	return s, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
