// Package backup archives and restores the axelrod results database.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/axelrod/internal/store"
)

// Archive is the payload of a backup file. Records are oldest first.
type Archive struct {
	Version   int                 `json:"version"`
	CreatedAt time.Time           `json:"created_at"`
	Sweeps    []store.SweepRecord `json:"sweeps"`
	Runs      []store.RunRecord   `json:"runs"`
}

// Source is the read side of a result store.
type Source interface {
	ListSweeps(ctx context.Context, limit int) ([]store.SweepRecord, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]store.RunRecord, error)
}

// Importer is the write side of a result store used by Restore.
type Importer interface {
	ImportSweep(ctx context.Context, rec *store.SweepRecord) (bool, error)
	ImportRun(ctx context.Context, rec *store.RunRecord) (bool, error)
}

// DefaultDir returns the default backup directory (~/.axelrod/backups/).
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".axelrod", "backups"), nil
}

// Backup exports every sweep and run from src to a compressed archive at
// outputPath.
func Backup(ctx context.Context, src Source, outputPath string) (*Archive, error) {
	sweeps, err := src.ListSweeps(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweeps: %w", err)
	}
	runs, err := src.ListRuns(ctx, store.RunFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	// Stores list newest first; archives keep insertion order.
	reverse(sweeps)
	reverse(runs)

	archive := &Archive{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Sweeps:    sweeps,
		Runs:      runs,
	}
	if err := Write(outputPath, archive); err != nil {
		return nil, err
	}
	return archive, nil
}

func reverse[T any](xs []T) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}

// RestoreResult contains statistics about the restore operation.
type RestoreResult struct {
	SweepsRestored int `json:"sweeps_restored"`
	SweepsSkipped  int `json:"sweeps_skipped"`
	RunsRestored   int `json:"runs_restored"`
	RunsSkipped    int `json:"runs_skipped"`
}

// Restore imports the archive at inputPath into dst. Records whose IDs are
// already stored are skipped, so restoring twice is harmless.
func Restore(ctx context.Context, dst Importer, inputPath string) (*RestoreResult, error) {
	archive, err := Read(inputPath)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}

	// Sweeps first: runs reference them.
	for i := range archive.Sweeps {
		ok, err := dst.ImportSweep(ctx, &archive.Sweeps[i])
		if err != nil {
			return result, fmt.Errorf("failed to restore sweep %s: %w", archive.Sweeps[i].ID, err)
		}
		if ok {
			result.SweepsRestored++
		} else {
			result.SweepsSkipped++
		}
	}

	for i := range archive.Runs {
		ok, err := dst.ImportRun(ctx, &archive.Runs[i])
		if err != nil {
			return result, fmt.Errorf("failed to restore run %s: %w", archive.Runs[i].ID, err)
		}
		if ok {
			result.RunsRestored++
		} else {
			result.RunsSkipped++
		}
	}

	return result, nil
}

// GeneratePath creates a timestamped backup filename in the given directory.
func GeneratePath(dir string) string {
	ts := time.Now().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("%s%s%s", filePrefix, ts, fileExt))
}
