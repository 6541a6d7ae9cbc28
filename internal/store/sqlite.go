package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/axelrod/internal/batch"
)

// ErrNotFound is returned when a requested sweep does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements ResultStore on a single SQLite file.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// Open opens or creates the results database at path, creating its directory.
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.dbPath }

const runColumns = `
    id, sweep_id, label, trajectory_index, grid_size, num_features, variant,
    initializer, correlation, template_name, seed, state, total_steps,
    unique_cultures, largest_domain_size, largest_domain_percentage,
    avg_cultural_distance, features, elapsed_ms, created_at`

const (
	insertRunSQL = `INSERT INTO runs (` + runColumns + `
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	importRunSQL = `INSERT OR IGNORE INTO runs (` + runColumns + `
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRun(ctx context.Context, ex execer, rec *RunRecord) error {
	_, err := execRun(ctx, ex, insertRunSQL, rec)
	return err
}

func execRun(ctx context.Context, ex execer, query string, rec *RunRecord) (sql.Result, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	featuresJSON, err := json.Marshal(rec.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal features: %w", err)
	}
	res, err := ex.ExecContext(ctx, query,
		rec.ID, nullString(rec.SweepID), nullString(rec.Label), rec.Index,
		rec.GridSize, rec.NumFeatures, rec.Variant, rec.Initializer,
		rec.Correlation, nullString(rec.Template), rec.Seed, rec.State,
		rec.Steps, rec.UniqueCultures, rec.LargestDomainSize,
		rec.LargestDomainPercentage, rec.AvgCulturalDistance,
		string(featuresJSON), rec.ElapsedMS, formatTime(rec.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert run %s: %w", rec.ID, err)
	}
	return res, nil
}

// SaveRun stores a standalone trajectory, assigning an ID if it has none.
func (s *SQLiteStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRun(ctx, s.db, rec)
}

// SaveSweep stores a sweep and every one of its trajectories in one
// transaction.
func (s *SQLiteStore) SaveSweep(ctx context.Context, sr *batch.SweepResult) (*SweepRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &SweepRecord{
		ID:           uuid.New().String(),
		Kind:         string(sr.Study.Kind),
		Study:        sr.Study,
		Trajectories: len(sr.Results),
		Aggregates:   sr.Aggregates,
		ElapsedMS:    sr.Elapsed.Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := execSweep(ctx, tx, "INSERT", rec); err != nil {
		return nil, err
	}

	for _, res := range sr.Results {
		run := NewRunRecord(res, rec.ID, sr.Study.Template)
		run.CreatedAt = rec.CreatedAt
		if err := insertRun(ctx, tx, &run); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sweep: %w", err)
	}
	return rec, nil
}

func execSweep(ctx context.Context, ex execer, verb string, rec *SweepRecord) (sql.Result, error) {
	studyJSON, err := json.Marshal(rec.Study)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal study: %w", err)
	}
	aggJSON, err := json.Marshal(rec.Aggregates)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal aggregates: %w", err)
	}
	res, err := ex.ExecContext(ctx,
		verb+` INTO sweeps (id, kind, study, trajectories, aggregates, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, string(studyJSON), rec.Trajectories, string(aggJSON),
		rec.ElapsedMS, formatTime(rec.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert sweep %s: %w", rec.ID, err)
	}
	return res, nil
}

// ImportSweep stores a sweep record as is, keeping its ID. It reports false
// when a sweep with that ID already exists.
func (s *SQLiteStore) ImportSweep(ctx context.Context, rec *SweepRecord) (bool, error) {
	if rec.ID == "" {
		return false, fmt.Errorf("cannot import sweep without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := execSweep(ctx, s.db, "INSERT OR IGNORE", rec)
	if err != nil {
		return false, err
	}
	return inserted(res)
}

// ImportRun stores a run record as is, keeping its ID. It reports false when
// a run with that ID already exists. The run's sweep must already be stored.
func (s *SQLiteStore) ImportRun(ctx context.Context, rec *RunRecord) (bool, error) {
	if rec.ID == "" {
		return false, fmt.Errorf("cannot import run without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := execRun(ctx, s.db, importRunSQL, rec)
	if err != nil {
		return false, err
	}
	return inserted(res)
}

func inserted(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// ListRuns returns stored trajectories. Runs of a sweep come back in
// trajectory order; otherwise the most recent come first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, sweep_id, label, trajectory_index, grid_size, num_features,
	    variant, initializer, correlation, template_name, seed, state, total_steps,
	    unique_cultures, largest_domain_size, largest_domain_percentage,
	    avg_cultural_distance, features, elapsed_ms, created_at
	FROM runs`

	var (
		where []string
		args  []any
	)
	if filter.SweepID != "" {
		where = append(where, "sweep_id = ?")
		args = append(args, filter.SweepID)
	}
	if filter.Label != "" {
		where = append(where, "label = ?")
		args = append(args, filter.Label)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.SweepID != "" {
		query += " ORDER BY trajectory_index ASC"
	} else {
		query += " ORDER BY rowid DESC"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec                     RunRecord
			sweepID, label, tmpl    sql.NullString
			featuresJSON, createdAt string
		)
		if err := rows.Scan(&rec.ID, &sweepID, &label, &rec.Index, &rec.GridSize,
			&rec.NumFeatures, &rec.Variant, &rec.Initializer, &rec.Correlation,
			&tmpl, &rec.Seed, &rec.State, &rec.Steps, &rec.UniqueCultures,
			&rec.LargestDomainSize, &rec.LargestDomainPercentage,
			&rec.AvgCulturalDistance, &featuresJSON, &rec.ElapsedMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.SweepID, rec.Label, rec.Template = sweepID.String, label.String, tmpl.String
		if err := json.Unmarshal([]byte(featuresJSON), &rec.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal features of run %s: %w", rec.ID, err)
		}
		rec.CreatedAt = parseTime(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectSweepSQL = `SELECT id, kind, study, trajectories, aggregates, elapsed_ms, created_at FROM sweeps`

type scanner interface {
	Scan(dest ...any) error
}

func scanSweep(row scanner) (*SweepRecord, error) {
	var (
		rec                           SweepRecord
		studyJSON, aggJSON, createdAt string
	)
	if err := row.Scan(&rec.ID, &rec.Kind, &studyJSON, &rec.Trajectories, &aggJSON, &rec.ElapsedMS, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(studyJSON), &rec.Study); err != nil {
		return nil, fmt.Errorf("failed to unmarshal study of sweep %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(aggJSON), &rec.Aggregates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal aggregates of sweep %s: %w", rec.ID, err)
	}
	rec.CreatedAt = parseTime(createdAt)
	return &rec, nil
}

// ListSweeps returns stored sweeps, most recent first. A limit of zero
// returns all of them.
func (s *SQLiteStore) ListSweeps(ctx context.Context, limit int) ([]SweepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectSweepSQL + " ORDER BY rowid DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweeps: %w", err)
	}
	defer rows.Close()

	var out []SweepRecord
	for rows.Next() {
		rec, err := scanSweep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sweep: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetSweep returns the sweep with the given id, or ErrNotFound.
func (s *SQLiteStore) GetSweep(ctx context.Context, id string) (*SweepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := scanSweep(s.db.QueryRowContext(ctx, selectSweepSQL+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sweep %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sweep %s: %w", id, err)
	}
	return rec, nil
}

// AggregateSweep recomputes per-point aggregates from the stored runs of a
// sweep, in the order points were first run.
func (s *SQLiteStore) AggregateSweep(ctx context.Context, id string) ([]batch.PointAggregate, error) {
	if _, err := s.GetSweep(ctx, id); err != nil {
		return nil, err
	}
	runs, err := s.ListRuns(ctx, RunFilter{SweepID: id})
	if err != nil {
		return nil, err
	}

	results := make([]batch.Result, len(runs))
	for i, r := range runs {
		results[i] = batch.Result{Task: batch.Task{Label: r.Label, Index: r.Index}, Seed: r.Seed, Summary: r.Summary()}
	}
	return batch.Aggregate(results), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
