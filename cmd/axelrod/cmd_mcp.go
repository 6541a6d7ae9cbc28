package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/axelrod/internal/config"
	"github.com/nvandessel/axelrod/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the axelrod MCP server over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout.

Tools:
  axelrod_run        run one trajectory
  axelrod_sweep      run a case-study sweep and store it
  axelrod_results    list stored sweeps and runs
  axelrod_templates  list feature templates
  axelrod_backup     archive the results database to ~/.axelrod/backups

Logs go to stderr. Tool calls are audited to ~/.axelrod/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				cfg.Batch.Workers, _ = cmd.Flags().GetInt("workers")
			}

			auditDir, _ := cmd.Flags().GetString("audit-dir")
			if auditDir == "" {
				if auditDir, err = config.Dir(); err != nil {
					return err
				}
			}

			dir, err := backupDir(cfg)
			if err != nil {
				return err
			}

			logger, events := newLoggers(cmd, cfg)
			defer events.Close()

			server, err := mcp.NewServer(&mcp.Config{
				Name:      "axelrod",
				Version:   version,
				DBPath:    cfg.Storage.DatabasePath,
				AuditDir:  auditDir,
				BackupDir: dir,
				Workers:   cfg.Batch.Workers,
				MaxSteps:  cfg.Simulation.MaxSteps,
				Logger:    logger,
				Events:    events,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			logger.Info("mcp server starting", "version", version)
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().Int("workers", 0, "Parallel workers for sweeps (default: config, 0 = every CPU)")
	cmd.Flags().String("audit-dir", "", "Directory for audit.jsonl (default ~/.axelrod)")

	return cmd
}
