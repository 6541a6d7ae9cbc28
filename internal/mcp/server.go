// Package mcp provides an MCP (Model Context Protocol) server for axelrod.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/axelrod/internal/backup"
	"github.com/nvandessel/axelrod/internal/batch"
	"github.com/nvandessel/axelrod/internal/logging"
	"github.com/nvandessel/axelrod/internal/store"
)

// Server wraps the MCP SDK server and exposes simulation tools.
type Server struct {
	server       *sdk.Server
	store        store.ResultStore
	runner       *batch.Runner
	toolLimiters ToolLimiters
	auditLogger  *AuditLogger
	logger       *slog.Logger
	maxSteps     int
	backupDir    string
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "axelrod")
	Version string // Server version

	// DBPath is the results database. Empty means store.DefaultPath().
	DBPath string

	// AuditDir receives audit.jsonl. Empty disables audit logging.
	AuditDir string

	// Workers bounds sweep concurrency. Zero uses every CPU.
	Workers int

	// MaxSteps is the default step budget for tool calls that omit one.
	MaxSteps int

	// BackupDir receives axelrod_backup archives. Empty means
	// backup.DefaultDir().
	BackupDir string

	Logger *slog.Logger
	Events *logging.EventLogger
}

// NewServer creates a new MCP server with axelrod tools.
func NewServer(cfg *Config) (*Server, error) {
	dbPath, err := store.ResolvePath(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	resultStore, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 1_000_000
	}
	backupDir := cfg.BackupDir
	if backupDir == "" {
		if backupDir, err = backup.DefaultDir(); err != nil {
			resultStore.Close()
			return nil, err
		}
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		store:        resultStore,
		runner:       &batch.Runner{Workers: cfg.Workers, Logger: logger, Events: cfg.Events},
		toolLimiters: NewToolLimiters(),
		logger:       logger,
		maxSteps:     maxSteps,
		backupDir:    backupDir,
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	s.Close()

	return err
}

// Close closes the server and releases resources. Safe to call twice.
func (s *Server) Close() error {
	s.auditLogger.Close()
	return s.store.Close()
}
