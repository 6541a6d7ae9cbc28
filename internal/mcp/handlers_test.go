package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/nvandessel/axelrod/internal/backup"
	"github.com/nvandessel/axelrod/internal/batch"
	"github.com/nvandessel/axelrod/internal/culture"
	"github.com/nvandessel/axelrod/internal/engine"
)

func seedPtr(v int64) *int64 { return &v }

func TestHandleRun_Defaults(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	result, out, err := server.handleRun(ctx, nil, RunInput{GridSize: 4, F: 3, Q: 3, Seed: seedPtr(1)})
	if err != nil {
		t.Fatalf("handleRun failed: %v", err)
	}
	if result != nil {
		t.Error("Expected nil result (SDK auto-populates)")
	}
	if out.Seed != 1 {
		t.Errorf("Seed = %d, want 1", out.Seed)
	}
	if out.State != "absorbed" && out.State != "budget_exceeded" {
		t.Errorf("State = %q", out.State)
	}
	if out.Summary.UniqueCultures < 1 || out.Summary.UniqueCultures > 16 {
		t.Errorf("UniqueCultures = %d, want within [1, 16]", out.Summary.UniqueCultures)
	}
	if len(out.Features) != 3 {
		t.Errorf("len(Features) = %d, want 3", len(out.Features))
	}
	if out.Grid != nil {
		t.Error("Grid returned without include_grid")
	}
	if out.RunID != "" {
		t.Error("RunID set without save")
	}
}

func TestHandleRun_Deterministic(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	in := RunInput{GridSize: 5, Template: "urban-rural", Variant: "ordered-transition", Initializer: "correlated", Seed: seedPtr(9), IncludeGrid: true}
	_, a, err := server.handleRun(ctx, nil, in)
	if err != nil {
		t.Fatalf("handleRun failed: %v", err)
	}
	_, b, err := server.handleRun(ctx, nil, in)
	if err != nil {
		t.Fatalf("handleRun failed: %v", err)
	}

	if a.Summary != b.Summary {
		t.Errorf("same seed gave %+v and %+v", a.Summary, b.Summary)
	}
	if len(a.Grid) != 5 || len(a.Grid[0]) != 5 || len(a.Grid[0][0]) != len(a.Features) {
		t.Errorf("unexpected grid shape")
	}
}

func TestHandleRun_SaveAndList(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleRun(ctx, nil, RunInput{
		GridSize: 3,
		Features: []culture.FeatureSpec{{Name: "Ideology", States: 3, Ordered: true}, {Name: "Religion", States: 2}},
		Variant:  "similarity-gated",
		Seed:     seedPtr(3),
		Save:     true,
	})
	if err != nil {
		t.Fatalf("handleRun failed: %v", err)
	}
	if out.RunID == "" {
		t.Fatal("expected RunID when save is set")
	}

	_, results, err := server.handleResults(ctx, nil, ResultsInput{})
	if err != nil {
		t.Fatalf("handleResults failed: %v", err)
	}
	if results.Count != 1 || results.Runs[0].ID != out.RunID {
		t.Fatalf("handleResults runs = %+v, want the saved run", results.Runs)
	}
	if results.Runs[0].Variant != "similarity-gated" || results.Runs[0].Seed != 3 {
		t.Errorf("stored run = %+v", results.Runs[0])
	}
}

func TestHandleRun_InvalidInput(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RunInput
	}{
		{"grid too small", RunInput{GridSize: 1}},
		{"grid too large", RunInput{GridSize: maxGridSize + 1}},
		{"unknown variant", RunInput{Variant: "voter"}},
		{"unknown initializer", RunInput{Initializer: "random"}},
		{"unknown template", RunInput{Template: "nope"}},
		{"correlation out of range", RunInput{Correlation: func() *float64 { v := 2.0; return &v }()}},
		{"bad feature", RunInput{Features: []culture.FeatureSpec{{States: 0}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := server.handleRun(ctx, nil, tt.in); err == nil {
				t.Error("expected error")
			}
		})
	}

	_, _, err := server.handleRun(ctx, nil, RunInput{GridSize: maxGridSize + 1})
	if !errors.Is(err, engine.ErrInvalidConfiguration) {
		t.Errorf("oversized grid error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestHandleRun_RateLimited(t *testing.T) {
	server, _ := setupTestServer(t)
	server.toolLimiters[toolRun] = rate.NewLimiter(rate.Every(time.Hour), 1)
	ctx := context.Background()

	in := RunInput{GridSize: 3, F: 2, Q: 2, Seed: seedPtr(1)}
	if _, _, err := server.handleRun(ctx, nil, in); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	_, _, err := server.handleRun(ctx, nil, in)
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("second call error = %v, want rate limit", err)
	}
}

func TestSweepStudy(t *testing.T) {
	study, err := sweepStudy(SweepInput{Kind: "grid-size", Runs: 2, GridSizes: []int{3, 4}, F: 2, Q: 2})
	if err != nil {
		t.Fatalf("sweepStudy failed: %v", err)
	}
	if study.Kind != batch.KindGridSize || study.Runs != 2 || study.F != 2 {
		t.Errorf("unexpected study: %+v", study)
	}
	if study.MaxSteps != 1_000_000 {
		t.Errorf("MaxSteps = %d, want case-study default", study.MaxSteps)
	}

	if _, err := sweepStudy(SweepInput{Kind: "bogus"}); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := sweepStudy(SweepInput{Kind: "fvsq", Runs: 1000}); err == nil {
		t.Error("expected error for oversized sweep")
	}
	if _, err := sweepStudy(SweepInput{Kind: "grid-size", GridSizes: []int{maxGridSize + 1}}); !errors.Is(err, engine.ErrInvalidConfiguration) {
		t.Errorf("oversized grid error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestHandleSweep_StoresAndAggregates(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleSweep(ctx, nil, SweepInput{
		Kind:     "fvsq",
		Runs:     2,
		GridSize: 3,
		MaxSteps: 50000,
		BaseSeed: 5,
		FValues:  []int{2},
		QValues:  []int{2, 3},
	})
	if err != nil {
		t.Fatalf("handleSweep failed: %v", err)
	}
	if out.SweepID == "" {
		t.Fatal("expected SweepID")
	}
	if out.Trajectories != 4 || len(out.Aggregates) != 2 {
		t.Fatalf("Trajectories = %d, Aggregates = %d; want 4, 2", out.Trajectories, len(out.Aggregates))
	}
	if out.Aggregates[0].Label != "F=2,q=2" || out.Aggregates[0].Stats.Runs != 2 {
		t.Errorf("first aggregate = %+v", out.Aggregates[0])
	}

	_, results, err := server.handleResults(ctx, nil, ResultsInput{SweepID: out.SweepID})
	if err != nil {
		t.Fatalf("handleResults failed: %v", err)
	}
	if len(results.Sweeps) != 1 || results.Sweeps[0].ID != out.SweepID {
		t.Errorf("Sweeps = %+v", results.Sweeps)
	}
	if results.Count != 4 {
		t.Errorf("Count = %d, want 4", results.Count)
	}
	for i, r := range results.Runs {
		if r.Seed != 5+int64(i) {
			t.Errorf("run %d seed = %d, want %d", i, r.Seed, 5+i)
		}
	}
	if len(results.Aggregates) != 2 || results.Aggregates[1].Stats != out.Aggregates[1].Stats {
		t.Errorf("recomputed aggregates = %+v, want %+v", results.Aggregates, out.Aggregates)
	}

	_, labelled, err := server.handleResults(ctx, nil, ResultsInput{SweepID: out.SweepID, Label: "F=2,q=3", Limit: 1})
	if err != nil {
		t.Fatalf("handleResults failed: %v", err)
	}
	if labelled.Count != 1 || labelled.Runs[0].Label != "F=2,q=3" {
		t.Errorf("labelled runs = %+v", labelled.Runs)
	}
}

func TestHandleSweep_NoSave(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleSweep(ctx, nil, SweepInput{
		Kind: "ordered-ratio", Runs: 1, GridSize: 3, MaxSteps: 20000,
		Splits: []batch.Split{{Ordered: 1, Unordered: 1}}, Q: 3, NoSave: true,
	})
	if err != nil {
		t.Fatalf("handleSweep failed: %v", err)
	}
	if out.SweepID != "" {
		t.Error("SweepID set with no_save")
	}

	_, results, err := server.handleResults(ctx, nil, ResultsInput{})
	if err != nil {
		t.Fatalf("handleResults failed: %v", err)
	}
	if len(results.Sweeps) != 0 || results.Count != 0 {
		t.Errorf("expected empty store, got %d sweeps and %d runs", len(results.Sweeps), results.Count)
	}
}

func TestHandleSweep_Cancelled(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := server.handleSweep(ctx, nil, SweepInput{Kind: "grid-size", Runs: 3, GridSizes: []int{3}, F: 2, Q: 2})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestHandleResults_UnknownSweep(t *testing.T) {
	server, _ := setupTestServer(t)

	if _, _, err := server.handleResults(context.Background(), nil, ResultsInput{SweepID: "missing"}); err == nil {
		t.Error("expected error for unknown sweep")
	}
}

func TestHandleTemplates(t *testing.T) {
	server, _ := setupTestServer(t)

	_, out, err := server.handleTemplates(context.Background(), nil, TemplatesInput{})
	if err != nil {
		t.Fatalf("handleTemplates failed: %v", err)
	}
	if out.Count != len(out.Templates) || out.Count < 7 {
		t.Errorf("Count = %d, len = %d", out.Count, len(out.Templates))
	}
	found := false
	for _, tmpl := range out.Templates {
		if tmpl.Key == "urban-rural" {
			found = true
			if tmpl.Correlation != 0.65 {
				t.Errorf("urban-rural correlation = %v, want 0.65", tmpl.Correlation)
			}
		}
	}
	if !found {
		t.Error("urban-rural template missing")
	}
}

func TestHandleBackup_DefaultPath(t *testing.T) {
	server, tmpDir := setupTestServer(t)
	ctx := context.Background()

	if _, _, err := server.handleRun(ctx, nil, RunInput{GridSize: 3, F: 2, Q: 2, Seed: seedPtr(4), Save: true}); err != nil {
		t.Fatalf("handleRun failed: %v", err)
	}

	result, out, err := server.handleBackup(ctx, nil, BackupInput{})
	if err != nil {
		t.Fatalf("handleBackup failed: %v", err)
	}
	if result != nil {
		t.Error("Expected nil result (SDK auto-populates)")
	}
	if filepath.Dir(out.Path) != filepath.Join(tmpDir, "backups") {
		t.Errorf("Path = %s, want inside backups dir", out.Path)
	}
	if out.Sweeps != 0 || out.Runs != 1 {
		t.Errorf("archived %d sweeps, %d runs; want 0, 1", out.Sweeps, out.Runs)
	}

	archive, err := backup.Read(out.Path)
	if err != nil {
		t.Fatalf("backup.Read failed: %v", err)
	}
	if len(archive.Runs) != 1 || archive.Runs[0].Seed != 4 {
		t.Errorf("archive runs = %+v", archive.Runs)
	}
}

func TestHandleBackup_Retention(t *testing.T) {
	server, tmpDir := setupTestServer(t)
	server.toolLimiters[toolBackup] = rate.NewLimiter(rate.Inf, 0)
	ctx := context.Background()
	dir := filepath.Join(tmpDir, "backups")

	names := []string{
		"axelrod-backup-20260101-000000.json.gz",
		"axelrod-backup-20260102-000000.json.gz",
		"axelrod-backup-20260103-000000.json.gz",
	}
	var out BackupOutput
	for i, name := range names {
		in := BackupInput{Output: filepath.Join(dir, name)}
		if i == len(names)-1 {
			in.Keep = 1
		}
		var err error
		if _, out, err = server.handleBackup(ctx, nil, in); err != nil {
			t.Fatalf("handleBackup(%s) failed: %v", name, err)
		}
	}

	if len(out.Deleted) != 2 {
		t.Errorf("Deleted = %v, want 2 archives", out.Deleted)
	}
	remaining, err := backup.List(dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || filepath.Base(remaining[0].Path) != names[2] {
		t.Errorf("remaining = %+v, want only %s", remaining, names[2])
	}
}

func TestHandleBackup_RejectsOutsidePath(t *testing.T) {
	server, _ := setupTestServer(t)
	outside := filepath.Join(t.TempDir(), "axelrod-backup-x.json.gz")

	_, _, err := server.handleBackup(context.Background(), nil, BackupInput{Output: outside})
	if err == nil || !strings.Contains(err.Error(), "outside allowed directories") {
		t.Fatalf("handleBackup error = %v, want path rejection", err)
	}
	if _, statErr := os.Stat(outside); !os.IsNotExist(statErr) {
		t.Error("archive written outside the backup directory")
	}
}
