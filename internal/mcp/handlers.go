package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/axelrod/internal/backup"
	"github.com/nvandessel/axelrod/internal/batch"
	"github.com/nvandessel/axelrod/internal/config"
	"github.com/nvandessel/axelrod/internal/engine"
	"github.com/nvandessel/axelrod/internal/pathutil"
	"github.com/nvandessel/axelrod/internal/store"
	"github.com/nvandessel/axelrod/internal/templates"
)

const (
	toolRun       = "axelrod_run"
	toolSweep     = "axelrod_sweep"
	toolResults   = "axelrod_results"
	toolTemplates = "axelrod_templates"
	toolBackup    = "axelrod_backup"
)

const (
	// maxGridSize bounds N for a single tool call.
	maxGridSize = 200

	// maxTrajectories bounds the size of one sweep.
	maxTrajectories = 50_000

	defaultResultsLimit = 20
)

// registerTools registers all axelrod MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolRun,
		Description: "Run one Axelrod cultural dissemination trajectory to absorption or budget and return its terminal metrics",
	}, s.handleRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolSweep,
		Description: "Run a case-study parameter sweep (fvsq, grid-size, ordered-ratio, correlation) and return per-point aggregates",
	}, s.handleSweep)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolResults,
		Description: "List stored sweeps and runs, or the runs and aggregates of one sweep",
	}, s.handleResults)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolTemplates,
		Description: "List built-in feature templates with their state labels and correlation",
	}, s.handleTemplates)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        toolBackup,
		Description: "Archive every stored sweep and run to a compressed backup file, optionally pruning old archives",
	}, s.handleBackup)
}

// runParams converts tool input into engine parameters, filling defaults.
func (s *Server) runParams(args RunInput) (engine.Params, error) {
	cfg := config.Default()
	cfg.Simulation.MaxSteps = s.maxSteps

	sim := &cfg.Simulation
	if args.GridSize != 0 {
		sim.GridSize = args.GridSize
	}
	if args.F != 0 {
		sim.F = args.F
	}
	if args.Q != 0 {
		sim.Q = args.Q
	}
	if args.MaxSteps != 0 {
		sim.MaxSteps = args.MaxSteps
	}
	if args.Variant != "" {
		sim.Variant = args.Variant
	}
	if args.Initializer != "" {
		sim.Initializer = args.Initializer
	}
	sim.Features = args.Features
	sim.Template = args.Template
	sim.Correlation = args.Correlation
	sim.Seed = args.Seed

	if sim.GridSize > maxGridSize {
		return engine.Params{}, fmt.Errorf("%w: grid_size %d exceeds the limit of %d", engine.ErrInvalidConfiguration, sim.GridSize, maxGridSize)
	}
	p, err := cfg.EngineParams()
	if err != nil {
		return engine.Params{}, err
	}
	return p, p.Validate()
}

func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (_ *sdk.CallToolResult, _ RunOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(toolRun, start, retErr, sanitizeToolParams(map[string]interface{}{
			"grid_size": args.GridSize, "variant": args.Variant, "initializer": args.Initializer,
			"template": args.Template, "max_steps": args.MaxSteps, "features": len(args.Features),
			"save": args.Save,
		}))
	}()

	if err := CheckLimit(s.toolLimiters, toolRun); err != nil {
		return nil, RunOutput{}, err
	}

	p, err := s.runParams(args)
	if err != nil {
		return nil, RunOutput{}, err
	}

	runner := *s.runner
	runner.KeepGrids = args.IncludeGrid
	results, err := runner.Run(ctx, []batch.Task{{Label: "run", Params: p}})
	if err != nil {
		return nil, RunOutput{}, fmt.Errorf("run failed: %w", err)
	}
	res := results[0]

	out := RunOutput{
		Seed:     res.Seed,
		State:    res.State.String(),
		Summary:  res.Summary,
		Features: p.Features,
	}
	if res.Grid != nil {
		out.Grid = res.Grid.Rows()
	}

	if args.Save {
		rec := store.NewRunRecord(res, "", args.Template)
		if err := s.store.SaveRun(ctx, &rec); err != nil {
			return nil, RunOutput{}, fmt.Errorf("failed to save run: %w", err)
		}
		out.RunID = rec.ID
	}

	s.logger.Debug("run finished", "seed", res.Seed, "state", out.State, "steps", res.Summary.Steps)
	return nil, out, nil
}

// sweepStudy builds the study a sweep call asks for.
func sweepStudy(args SweepInput) (batch.Study, error) {
	base, err := batch.DefaultStudy(batch.Kind(args.Kind))
	if err != nil {
		return batch.Study{}, err
	}
	study := base.Override(batch.Study{
		GridSize:     args.GridSize,
		MaxSteps:     args.MaxSteps,
		Runs:         args.Runs,
		BaseSeed:     args.BaseSeed,
		Variant:      args.Variant,
		FValues:      args.FValues,
		QValues:      args.QValues,
		GridSizes:    args.GridSizes,
		F:            args.F,
		Q:            args.Q,
		Splits:       args.Splits,
		Correlations: args.Correlations,
		Template:     args.Template,
	})

	points, err := study.Points()
	if err != nil {
		return batch.Study{}, err
	}
	for _, pt := range points {
		if pt.Params.GridSize > maxGridSize {
			return batch.Study{}, fmt.Errorf("%w: grid_size %d exceeds the limit of %d", engine.ErrInvalidConfiguration, pt.Params.GridSize, maxGridSize)
		}
	}
	if n := len(points) * study.Runs; n > maxTrajectories {
		return batch.Study{}, fmt.Errorf("sweep of %d trajectories exceeds the limit of %d", n, maxTrajectories)
	}
	return study, nil
}

func (s *Server) handleSweep(ctx context.Context, req *sdk.CallToolRequest, args SweepInput) (_ *sdk.CallToolResult, _ SweepOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(toolSweep, start, retErr, sanitizeToolParams(map[string]interface{}{
			"kind": args.Kind, "runs": args.Runs, "grid_size": args.GridSize,
			"variant": args.Variant, "template": args.Template, "correlations": len(args.Correlations),
			"save": !args.NoSave,
		}))
	}()

	if err := CheckLimit(s.toolLimiters, toolSweep); err != nil {
		return nil, SweepOutput{}, err
	}

	study, err := sweepStudy(args)
	if err != nil {
		return nil, SweepOutput{}, err
	}

	sr, err := batch.Sweep(ctx, s.runner, study)
	if err != nil {
		return nil, SweepOutput{}, err
	}

	out := SweepOutput{
		Kind:         string(study.Kind),
		Trajectories: len(sr.Results),
		Aggregates:   sr.Aggregates,
		ElapsedMs:    sr.Elapsed.Milliseconds(),
	}
	if !args.NoSave {
		rec, err := s.store.SaveSweep(ctx, sr)
		if err != nil {
			return nil, SweepOutput{}, fmt.Errorf("failed to save sweep: %w", err)
		}
		out.SweepID = rec.ID
	}
	return nil, out, nil
}

func (s *Server) handleResults(ctx context.Context, req *sdk.CallToolRequest, args ResultsInput) (_ *sdk.CallToolResult, _ ResultsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(toolResults, start, retErr, sanitizeToolParams(map[string]interface{}{
			"sweep_id": args.SweepID, "label": args.Label, "limit": args.Limit,
		}))
	}()

	if err := CheckLimit(s.toolLimiters, toolResults); err != nil {
		return nil, ResultsOutput{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultResultsLimit
	}

	var out ResultsOutput
	if args.SweepID != "" {
		sweep, err := s.store.GetSweep(ctx, args.SweepID)
		if err != nil {
			return nil, ResultsOutput{}, err
		}
		aggs, err := s.store.AggregateSweep(ctx, args.SweepID)
		if err != nil {
			return nil, ResultsOutput{}, err
		}
		out.Sweeps = []store.SweepRecord{*sweep}
		out.Aggregates = aggs
	} else {
		sweeps, err := s.store.ListSweeps(ctx, limit)
		if err != nil {
			return nil, ResultsOutput{}, err
		}
		out.Sweeps = sweeps
	}

	runs, err := s.store.ListRuns(ctx, store.RunFilter{SweepID: args.SweepID, Label: args.Label, Limit: limit})
	if err != nil {
		return nil, ResultsOutput{}, err
	}
	out.Runs = runs
	out.Count = len(runs)
	return nil, out, nil
}

func (s *Server) handleTemplates(ctx context.Context, req *sdk.CallToolRequest, args TemplatesInput) (_ *sdk.CallToolResult, _ TemplatesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(toolTemplates, start, retErr, nil)
	}()

	if err := CheckLimit(s.toolLimiters, toolTemplates); err != nil {
		return nil, TemplatesOutput{}, err
	}

	all := templates.All()
	return nil, TemplatesOutput{Templates: all, Count: len(all)}, nil
}

func (s *Server) handleBackup(ctx context.Context, req *sdk.CallToolRequest, args BackupInput) (_ *sdk.CallToolResult, _ BackupOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(toolBackup, start, retErr, sanitizeToolParams(map[string]interface{}{
			"output": args.Output, "keep": args.Keep,
		}))
	}()

	if err := CheckLimit(s.toolLimiters, toolBackup); err != nil {
		return nil, BackupOutput{}, err
	}

	path := args.Output
	if path == "" {
		path = backup.GeneratePath(s.backupDir)
	}
	allowed, err := pathutil.AllowedBackupDirs(s.backupDir)
	if err != nil {
		return nil, BackupOutput{}, err
	}
	if err := pathutil.ValidatePath(path, allowed); err != nil {
		return nil, BackupOutput{}, err
	}

	archive, err := backup.Backup(ctx, s.store, path)
	if err != nil {
		return nil, BackupOutput{}, fmt.Errorf("backup failed: %w", err)
	}
	out := BackupOutput{Path: path, Sweeps: len(archive.Sweeps), Runs: len(archive.Runs)}

	if args.Keep > 0 {
		deleted, err := backup.ApplyRetention(filepath.Dir(path), &backup.CountPolicy{MaxCount: args.Keep})
		if err != nil {
			return nil, BackupOutput{}, fmt.Errorf("retention failed: %w", err)
		}
		out.Deleted = deleted
	}

	s.logger.Info("backup written", "path", pathutil.RedactPath(path), "sweeps", out.Sweeps, "runs", out.Runs)
	return nil, out, nil
}
