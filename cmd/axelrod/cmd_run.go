package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/axelrod/internal/batch"
	"github.com/nvandessel/axelrod/internal/config"
	"github.com/nvandessel/axelrod/internal/culture"
	"github.com/nvandessel/axelrod/internal/engine"
	"github.com/nvandessel/axelrod/internal/metrics"
	"github.com/nvandessel/axelrod/internal/store"
	"github.com/nvandessel/axelrod/internal/visualization"
)

// runOutput is the JSON shape of one finished trajectory.
type runOutput struct {
	RunID   string          `json:"run_id,omitempty"`
	Seed    int64           `json:"seed"`
	State   string          `json:"state"`
	Summary metrics.Summary `json:"summary"`
	Grid    [][][]int       `json:"grid,omitempty"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run trajectories at one parameter point",
		Long: `Run one Axelrod trajectory, or --runs trajectories seeded base, base+1, ...

Parameters come from the config file and environment, then from flags.
Features are chosen from --features-file, then --template, then --f/--q.

Examples:
  axelrod run --grid-size 20 --f 5 --q 15 --seed 7
  axelrod run --template urban-rural --variant ordered-transition --initializer correlated
  axelrod run --runs 50 --workers 8 --save
  axelrod run --grid-size 40 --seed 3 --render cultures.html`,
		RunE: runRun,
	}

	cmd.Flags().Int("grid-size", 0, "Grid side length N")
	cmd.Flags().Int("f", 0, "Number of categorical features")
	cmd.Flags().Int("q", 0, "States per categorical feature")
	cmd.Flags().Int("max-steps", 0, "Step budget per trajectory")
	cmd.Flags().Int64("seed", 0, "PRNG seed (single run) or base seed (--runs > 1)")
	cmd.Flags().String("variant", "", "Interaction rule: full-exchange, ordered-transition, similarity-gated")
	cmd.Flags().String("initializer", "", "Grid initializer: uniform, correlated")
	cmd.Flags().Float64("correlation", 0, "Correlation rho in [-1, 1] for the correlated initializer")
	cmd.Flags().String("template", "", "Built-in feature template (see 'axelrod templates')")
	cmd.Flags().String("features-file", "", "YAML file holding a list of features")
	cmd.Flags().Int("runs", 1, "Number of trajectories")
	cmd.Flags().Int("workers", 0, "Parallel workers (default: config, 0 = every CPU)")
	cmd.Flags().Bool("save", false, "Store the trajectories in the results database")
	cmd.Flags().Bool("show-grid", false, "Print the terminal grid of a single run")
	cmd.Flags().String("render", "", "Write the terminal culture map of a single run to a .dot, .json or .html file")

	return cmd
}

// applyRunFlags copies every flag the user set onto the simulation config.
func applyRunFlags(cmd *cobra.Command, cfg *config.StudyConfig) error {
	flags := cmd.Flags()
	sim := &cfg.Simulation

	if flags.Changed("grid-size") {
		sim.GridSize, _ = flags.GetInt("grid-size")
	}
	if flags.Changed("f") {
		sim.F, _ = flags.GetInt("f")
	}
	if flags.Changed("q") {
		sim.Q, _ = flags.GetInt("q")
	}
	if flags.Changed("max-steps") {
		sim.MaxSteps, _ = flags.GetInt("max-steps")
	}
	if flags.Changed("seed") {
		seed, _ := flags.GetInt64("seed")
		sim.Seed = &seed
		cfg.Batch.BaseSeed = seed
	}
	if flags.Changed("variant") {
		sim.Variant, _ = flags.GetString("variant")
	}
	if flags.Changed("initializer") {
		sim.Initializer, _ = flags.GetString("initializer")
	}
	if flags.Changed("correlation") {
		rho, _ := flags.GetFloat64("correlation")
		sim.Correlation = &rho
	}
	if flags.Changed("template") {
		sim.Template, _ = flags.GetString("template")
		sim.Features = nil
	}
	if flags.Changed("f") || flags.Changed("q") {
		if !flags.Changed("template") {
			sim.Template = ""
		}
		sim.Features = nil
	}
	if path, _ := flags.GetString("features-file"); path != "" {
		features, err := readFeaturesFile(path)
		if err != nil {
			return err
		}
		sim.Features = features
	}
	if flags.Changed("runs") {
		cfg.Batch.Runs, _ = flags.GetInt("runs")
	} else {
		cfg.Batch.Runs = 1
	}
	if flags.Changed("workers") {
		cfg.Batch.Workers, _ = flags.GetInt("workers")
	}
	return nil
}

func readFeaturesFile(path string) ([]culture.FeatureSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading features file: %w", err)
	}
	var features []culture.FeatureSpec
	if err := yaml.Unmarshal(data, &features); err != nil {
		return nil, fmt.Errorf("parsing features file: %w", err)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("features file %s lists no features", path)
	}
	return features, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	save, _ := cmd.Flags().GetBool("save")
	showGrid, _ := cmd.Flags().GetBool("show-grid")
	renderPath, _ := cmd.Flags().GetString("render")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	var renderFormat visualization.Format
	if renderPath != "" {
		if cfg.Batch.Runs != 1 {
			return fmt.Errorf("--render needs a single run, got --runs %d", cfg.Batch.Runs)
		}
		if renderFormat, err = visualization.FormatForPath(renderPath); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	p, err := cfg.EngineParams()
	if err != nil {
		return err
	}

	logger, events := newLoggers(cmd, cfg)
	defer events.Close()

	runner := &batch.Runner{
		Workers:   cfg.Batch.Workers,
		KeepGrids: (showGrid || renderPath != "") && cfg.Batch.Runs == 1,
		Logger:    logger,
		Events:    events,
	}

	var tasks []batch.Task
	if cfg.Batch.Runs == 1 {
		tasks = []batch.Task{{Label: "run", Params: p}}
	} else {
		tasks = batch.Tasks([]batch.Point{{Label: "run", Params: p}}, cfg.Batch.Runs, cfg.Batch.BaseSeed)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	results, err := runner.Run(ctx, tasks)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	outputs := make([]runOutput, len(results))
	var resultStore *store.SQLiteStore
	if save {
		resultStore, err = openStore(cfg)
		if err != nil {
			return err
		}
		defer resultStore.Close()
	}
	for i, res := range results {
		outputs[i] = runOutput{Seed: res.Seed, State: res.State.String(), Summary: res.Summary}
		if res.Grid != nil {
			outputs[i].Grid = res.Grid.Rows()
		}
		if resultStore != nil {
			rec := store.NewRunRecord(res, "", cfg.Simulation.Template)
			if err := resultStore.SaveRun(ctx, &rec); err != nil {
				return fmt.Errorf("failed to save run: %w", err)
			}
			outputs[i].RunID = rec.ID
		}
	}

	out := cmd.OutOrStdout()
	if len(results) == 1 {
		res := results[0]
		if renderPath != "" {
			title := fmt.Sprintf("Axelrod %dx%d, seed %d, %s after %d steps", p.GridSize, p.GridSize, res.Seed, res.State, res.Summary.Steps)
			data, err := visualization.Render(res.Grid, renderFormat, title)
			if err != nil {
				return err
			}
			if err := os.WriteFile(renderPath, data, 0644); err != nil {
				return fmt.Errorf("writing render: %w", err)
			}
			if !showGrid {
				outputs[0].Grid = nil
			}
		}
		if jsonOut {
			return printJSON(cmd, outputs[0])
		}
		printRun(out, outputs[0], p)
		if renderPath != "" {
			fmt.Fprintf(out, "  Rendered to:           %s\n", renderPath)
		}
		if showGrid {
			fmt.Fprintln(out)
			printGrid(out, res.Grid)
		}
		return nil
	}

	agg := batch.Aggregate(results)[0].Stats
	if jsonOut {
		return printJSON(cmd, map[string]interface{}{
			"runs":      outputs,
			"aggregate": agg,
		})
	}
	fmt.Fprintf(out, "%d trajectories (N=%d, F=%d, %s, %s)\n\n", len(results), p.GridSize, len(p.Features), p.Variant, p.Init)
	fmt.Fprintf(out, "%-6s %-16s %10s %8s %10s %9s\n", "SEED", "STATE", "STEPS", "CULTURES", "LARGEST%", "DISTANCE")
	for _, o := range outputs {
		fmt.Fprintf(out, "%-6d %-16s %10d %8d %9.1f%% %9.4f\n", o.Seed, o.State, o.Summary.Steps,
			o.Summary.UniqueCultures, o.Summary.LargestDomainPercentage, o.Summary.AvgCulturalDistance)
	}
	fmt.Fprintln(out)
	printAggregate(out, agg)
	return nil
}

func printRun(out io.Writer, o runOutput, p engine.Params) {
	fmt.Fprintf(out, "Trajectory %s after %d steps (seed %d)\n", strings.ReplaceAll(o.State, "_", " "), o.Summary.Steps, o.Seed)
	fmt.Fprintf(out, "  Grid:                  %dx%d, %d features, %s, %s\n", p.GridSize, p.GridSize, len(p.Features), p.Variant, p.Init)
	fmt.Fprintf(out, "  Unique cultures:       %d\n", o.Summary.UniqueCultures)
	fmt.Fprintf(out, "  Largest domain:        %d agents (%.1f%%)\n", o.Summary.LargestDomainSize, o.Summary.LargestDomainPercentage)
	fmt.Fprintf(out, "  Avg cultural distance: %.4f\n", o.Summary.AvgCulturalDistance)
	if o.RunID != "" {
		fmt.Fprintf(out, "  Saved as:              %s\n", o.RunID)
	}
}

// printGrid prints each agent's culture vector, one grid row per line.
func printGrid(out io.Writer, g *culture.Grid) {
	n := g.Size()
	for r := 0; r < n; r++ {
		cells := make([]string, n)
		for c := 0; c < n; c++ {
			cells[c] = g.Key(r, c)
		}
		fmt.Fprintln(out, strings.Join(cells, " "))
	}
}

func printAggregate(out io.Writer, agg metrics.Aggregate) {
	fmt.Fprintf(out, "  Unique cultures:       %.2f ± %.2f (min %.0f, max %.0f)\n", agg.UniqueCultures.Mean, agg.UniqueCultures.Std, agg.UniqueCultures.Min, agg.UniqueCultures.Max)
	fmt.Fprintf(out, "  Largest domain:        %.1f%% ± %.1f\n", agg.LargestDomain.Mean, agg.LargestDomain.Std)
	fmt.Fprintf(out, "  Avg cultural distance: %.4f ± %.4f\n", agg.AvgCulturalDistance.Mean, agg.AvgCulturalDistance.Std)
	fmt.Fprintf(out, "  Steps:                 %.0f ± %.0f\n", agg.Steps.Mean, agg.Steps.Std)
	fmt.Fprintf(out, "  P(global consensus):   %.3f\n", agg.ProbGlobalConsensus)
	fmt.Fprintf(out, "  Absorbed:              %.3f\n", agg.AbsorbedFraction)
}
