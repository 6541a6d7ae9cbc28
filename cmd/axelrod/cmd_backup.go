package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/axelrod/internal/backup"
	"github.com/nvandessel/axelrod/internal/config"
	"github.com/nvandessel/axelrod/internal/pathutil"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive every stored sweep and run to a backup file",
		Long: `Archive the results database to a compressed, checksummed file.

Default location: ~/.axelrod/backups/axelrod-backup-YYYYMMDD-HHMMSS.json.gz
Old archives are pruned according to backup.retention (default: last 10).

Examples:
  axelrod backup                              # Backup to the default location
  axelrod backup --output ./results.json.gz   # Backup into the working directory
  axelrod backup --keep 3                     # Keep only the 3 newest archives
  axelrod backup list                         # List archives
  axelrod backup verify <file>                # Verify archive integrity`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("keep") {
				cfg.Backup.Retention.MaxCount, _ = cmd.Flags().GetInt("keep")
			}
			if cmd.Flags().Changed("max-age") {
				cfg.Backup.Retention.MaxAge, _ = cmd.Flags().GetString("max-age")
			}
			policy, err := buildRetentionPolicy(&cfg.Backup.Retention)
			if err != nil {
				return err
			}

			dir, err := backupDir(cfg)
			if err != nil {
				return err
			}
			if outputPath == "" {
				outputPath = backup.GeneratePath(dir)
			} else if err := checkBackupPath(outputPath, dir); err != nil {
				return fmt.Errorf("backup path rejected: %w", err)
			}

			resultStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer resultStore.Close()

			archive, err := backup.Backup(cmd.Context(), resultStore, outputPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			deleted, err := backup.ApplyRetention(filepath.Dir(outputPath), policy)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
			}

			if jsonOut {
				var size int64
				if info, err := os.Stat(outputPath); err == nil {
					size = info.Size()
				}
				return printJSON(cmd, map[string]interface{}{
					"path":        outputPath,
					"sweep_count": len(archive.Sweeps),
					"run_count":   len(archive.Runs),
					"size_bytes":  size,
					"deleted":     deleted,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backup created: %d sweeps, %d runs\n", len(archive.Sweeps), len(archive.Runs))
			fmt.Fprintf(out, "  Path: %s\n", outputPath)
			if len(deleted) > 0 {
				fmt.Fprintf(out, "  Pruned %d old backups\n", len(deleted))
			}
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output file path (default: auto-generated in the backup directory)")
	cmd.Flags().Int("keep", 0, "Keep this many newest backups (default: backup.retention.max_count)")
	cmd.Flags().String("max-age", "", "Delete backups older than this, e.g. 30d or 2w (default: backup.retention.max_age)")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
	)

	return cmd
}

// backupDir returns the configured backup directory or the default one.
func backupDir(cfg *config.StudyConfig) (string, error) {
	if cfg.Backup.Dir != "" {
		return cfg.Backup.Dir, nil
	}
	dir, err := backup.DefaultDir()
	if err != nil {
		return "", fmt.Errorf("failed to get backup directory: %w", err)
	}
	return dir, nil
}

// checkBackupPath confines explicit archive paths to the backup directory
// and the working directory.
func checkBackupPath(path, dir string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	allowed, err := pathutil.AllowedBackupDirs(dir, wd)
	if err != nil {
		return fmt.Errorf("failed to determine allowed backup dirs: %w", err)
	}
	return pathutil.ValidatePath(path, allowed)
}

// buildRetentionPolicy constructs a retention policy from config.
func buildRetentionPolicy(cfg *config.RetentionConfig) (backup.RetentionPolicy, error) {
	var policies []backup.RetentionPolicy

	if cfg.MaxCount > 0 {
		policies = append(policies, &backup.CountPolicy{MaxCount: cfg.MaxCount})
	}
	if cfg.MaxAge != "" {
		d, err := backup.ParseDuration(cfg.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("invalid backup max age: %w", err)
		}
		policies = append(policies, &backup.AgePolicy{MaxAge: d})
	}

	switch len(policies) {
	case 0:
		return &backup.CountPolicy{MaxCount: 10}, nil
	case 1:
		return policies[0], nil
	default:
		return &backup.CompositePolicy{Policies: policies}, nil
	}
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups with their record counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := backupDir(cfg)
			if err != nil {
				return err
			}
			backups, err := backup.List(dir)
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}

			type entry struct {
				Path       string `json:"path"`
				Size       int64  `json:"size_bytes"`
				CreatedAt  string `json:"created_at"`
				SweepCount int    `json:"sweep_count"`
				RunCount   int    `json:"run_count"`
				Checksum   string `json:"checksum,omitempty"`
			}
			entries := make([]entry, 0, len(backups))
			for _, b := range backups {
				e := entry{Path: b.Path, Size: b.Size, CreatedAt: b.CreatedAt.Format("2006-01-02T15:04:05Z07:00")}
				if h, err := backup.ReadHeader(b.Path); err == nil {
					e.SweepCount, e.RunCount, e.Checksum = h.SweepCount, h.RunCount, h.Checksum
				}
				entries = append(entries, e)
			}

			if jsonOut {
				return printJSON(cmd, map[string]interface{}{
					"backups":     entries,
					"total_count": len(entries),
					"directory":   dir,
				})
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No backups found in %s\n", dir)
				return nil
			}
			fmt.Fprintf(out, "Backups in %s:\n", dir)
			var total int64
			for i, e := range entries {
				total += e.Size
				fmt.Fprintf(out, "  %s  %8s  %4d sweeps  %6d runs  %s\n",
					backups[i].CreatedAt.Format("2006-01-02 15:04"),
					humanize.IBytes(uint64(e.Size)),
					e.SweepCount, e.RunCount,
					filepath.Base(e.Path),
				)
			}
			fmt.Fprintf(out, "Total: %d backups, %s\n", len(entries), humanize.IBytes(uint64(total)))
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a backup's SHA-256 checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			jsonOut, _ := cmd.Flags().GetBool("json")

			err := backup.VerifyChecksum(filePath)
			if jsonOut {
				res := map[string]interface{}{"file": filePath, "valid": err == nil}
				if err != nil {
					res["error"] = err.Error()
				}
				if encErr := printJSON(cmd, res); encErr != nil {
					return encErr
				}
				if err != nil {
					return fmt.Errorf("checksum verification failed")
				}
				return nil
			}

			out := cmd.OutOrStdout()
			if err != nil {
				fmt.Fprintf(out, "FAILED: %v\n", err)
				fmt.Fprintf(out, "  File: %s\n", filePath)
				return fmt.Errorf("checksum verification failed")
			}
			fmt.Fprintln(out, "OK: checksum verified")
			fmt.Fprintf(out, "  File: %s\n", filePath)
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Merge a backup into the results database",
		Long: `Restore sweeps and runs from a backup file. Records whose ID already
exists in the database are skipped, so restoring twice is harmless.

Examples:
  axelrod restore ~/.axelrod/backups/axelrod-backup-20260206-120000.json.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath := args[0]
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := backupDir(cfg)
			if err != nil {
				return err
			}
			if err := checkBackupPath(inputPath, dir); err != nil {
				return fmt.Errorf("restore path rejected: %w", err)
			}

			resultStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer resultStore.Close()

			result, err := backup.Restore(cmd.Context(), resultStore, inputPath)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				return printJSON(cmd, map[string]interface{}{
					"sweeps_restored": result.SweepsRestored,
					"sweeps_skipped":  result.SweepsSkipped,
					"runs_restored":   result.RunsRestored,
					"runs_skipped":    result.RunsSkipped,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Restore complete")
			fmt.Fprintf(out, "  Sweeps: %d restored, %d skipped\n", result.SweepsRestored, result.SweepsSkipped)
			fmt.Fprintf(out, "  Runs:   %d restored, %d skipped\n", result.RunsRestored, result.RunsSkipped)
			return nil
		},
	}
}
