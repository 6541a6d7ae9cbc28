package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/axelrod/internal/batch"
	"github.com/nvandessel/axelrod/internal/store"
)

func newSweepCmd() *cobra.Command {
	kinds := make([]string, 0, len(batch.Kinds()))
	for _, k := range batch.Kinds() {
		kinds = append(kinds, string(k))
	}

	cmd := &cobra.Command{
		Use:       "sweep <kind>",
		Short:     "Run a case-study parameter sweep",
		ValidArgs: kinds,
		Args:      cobra.ExactArgs(1),
		Long: `Run a case-study sweep and store the results.

Kinds:
  fvsq           F in 2..10 against q in 2..20 (full exchange)
  grid-size      N in {5, 10, 15, 20, 25} with F=5, q=15 (full exchange)
  ordered-ratio  ordered/unordered feature splits with q=4 (similarity gated)
  correlation    rho from -1 to 1 on the political-economic template
                 (ordered transition, correlated initializer)

Trajectory i of a sweep is seeded with base-seed + i, so a sweep gives the
same results on any number of workers.

Examples:
  axelrod sweep fvsq --runs 20 --f-values 2,3,5 --q-values 2,5,10
  axelrod sweep grid-size --grid-sizes 5,10 --workers 4
  axelrod sweep ordered-ratio --splits 5:0,3:2,0:5
  axelrod sweep correlation --correlations -0.5,0,0.5 --template urban-rural`,
		RunE: runSweep,
	}

	cmd.Flags().Int("runs", 0, "Trajectories per parameter point")
	cmd.Flags().Int("grid-size", 0, "Grid side length N")
	cmd.Flags().Int("max-steps", 0, "Step budget per trajectory")
	cmd.Flags().Int64("base-seed", 0, "Seed of trajectory 0 (default: config batch.base_seed)")
	cmd.Flags().Int("workers", 0, "Parallel workers (default: config, 0 = every CPU)")
	cmd.Flags().String("variant", "", "Override the case study's interaction rule")
	cmd.Flags().IntSlice("f-values", nil, "fvsq: feature counts")
	cmd.Flags().IntSlice("q-values", nil, "fvsq: state counts")
	cmd.Flags().IntSlice("grid-sizes", nil, "grid-size: grid side lengths")
	cmd.Flags().Int("f", 0, "grid-size: features per agent")
	cmd.Flags().Int("q", 0, "grid-size, ordered-ratio: states per feature")
	cmd.Flags().StringSlice("splits", nil, "ordered-ratio: ordered:unordered feature splits, e.g. 3:2")
	cmd.Flags().Float64Slice("correlations", nil, "correlation: rho values")
	cmd.Flags().String("template", "", "correlation: feature template")
	cmd.Flags().String("study-file", "", "YAML file overriding the case study's parameters")
	cmd.Flags().Bool("no-save", false, "Do not store the sweep")

	return cmd
}

// parseSplits parses "ordered:unordered" pairs.
func parseSplits(values []string) ([]batch.Split, error) {
	splits := make([]batch.Split, 0, len(values))
	for _, v := range values {
		o, u, ok := strings.Cut(v, ":")
		if !ok {
			return nil, fmt.Errorf("invalid split %q (want ordered:unordered)", v)
		}
		ordered, err := strconv.Atoi(strings.TrimSpace(o))
		if err != nil {
			return nil, fmt.Errorf("invalid split %q: %w", v, err)
		}
		unordered, err := strconv.Atoi(strings.TrimSpace(u))
		if err != nil {
			return nil, fmt.Errorf("invalid split %q: %w", v, err)
		}
		splits = append(splits, batch.Split{Ordered: ordered, Unordered: unordered})
	}
	return splits, nil
}

func readStudyFile(path string) (batch.Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return batch.Study{}, fmt.Errorf("reading study file: %w", err)
	}
	var s batch.Study
	if err := yaml.Unmarshal(data, &s); err != nil {
		return batch.Study{}, fmt.Errorf("parsing study file: %w", err)
	}
	return s, nil
}

// sweepOverrides collects the study fields set by flags.
func sweepOverrides(cmd *cobra.Command) (batch.Study, error) {
	flags := cmd.Flags()
	var o batch.Study
	o.Runs, _ = flags.GetInt("runs")
	o.GridSize, _ = flags.GetInt("grid-size")
	o.MaxSteps, _ = flags.GetInt("max-steps")
	o.BaseSeed, _ = flags.GetInt64("base-seed")
	o.Variant, _ = flags.GetString("variant")
	o.FValues, _ = flags.GetIntSlice("f-values")
	o.QValues, _ = flags.GetIntSlice("q-values")
	o.GridSizes, _ = flags.GetIntSlice("grid-sizes")
	o.F, _ = flags.GetInt("f")
	o.Q, _ = flags.GetInt("q")
	o.Correlations, _ = flags.GetFloat64Slice("correlations")
	o.Template, _ = flags.GetString("template")

	splitArgs, _ := flags.GetStringSlice("splits")
	splits, err := parseSplits(splitArgs)
	if err != nil {
		return batch.Study{}, err
	}
	o.Splits = splits
	return o, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	noSave, _ := cmd.Flags().GetBool("no-save")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cfg.Batch.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", cfg.Batch.Workers)
	}

	study, err := batch.DefaultStudy(batch.Kind(args[0]))
	if err != nil {
		return err
	}
	study = study.Override(batch.Study{BaseSeed: cfg.Batch.BaseSeed})
	if path, _ := cmd.Flags().GetString("study-file"); path != "" {
		fileStudy, err := readStudyFile(path)
		if err != nil {
			return err
		}
		study = study.Override(fileStudy)
	}
	overrides, err := sweepOverrides(cmd)
	if err != nil {
		return err
	}
	study = study.Override(overrides)

	logger, events := newLoggers(cmd, cfg)
	defer events.Close()

	var resultStore *store.SQLiteStore
	if !noSave {
		resultStore, err = openStore(cfg)
		if err != nil {
			return err
		}
		defer resultStore.Close()
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	runner := &batch.Runner{Workers: cfg.Batch.Workers, Logger: logger, Events: events}
	sr, err := batch.Sweep(ctx, runner, study)
	if err != nil {
		return err
	}

	sweepID := ""
	if resultStore != nil {
		rec, err := resultStore.SaveSweep(ctx, sr)
		if err != nil {
			return fmt.Errorf("failed to save sweep: %w", err)
		}
		sweepID = rec.ID
	}

	if jsonOut {
		return printJSON(cmd, map[string]interface{}{
			"sweep_id":     sweepID,
			"study":        sr.Study,
			"trajectories": len(sr.Results),
			"aggregates":   sr.Aggregates,
			"elapsed_ms":   sr.Elapsed.Milliseconds(),
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sweep %s: %d trajectories in %s\n", study.Kind, len(sr.Results), sr.Elapsed.Round(time.Millisecond))
	if sweepID != "" {
		fmt.Fprintf(out, "Saved as %s\n", sweepID)
	}
	fmt.Fprintln(out)
	printAggregateTable(out, sr.Aggregates)
	return nil
}

func printAggregateTable(out io.Writer, aggs []batch.PointAggregate) {
	fmt.Fprintf(out, "%-24s %5s %16s %10s %10s %9s %9s\n", "POINT", "RUNS", "CULTURES", "LARGEST%", "DISTANCE", "P(CONS)", "ABSORBED")
	for _, a := range aggs {
		s := a.Stats
		fmt.Fprintf(out, "%-24s %5d %7.2f ± %6.2f %9.1f%% %10.4f %9.3f %9.3f\n",
			a.Label, s.Runs, s.UniqueCultures.Mean, s.UniqueCultures.Std, s.LargestDomain.Mean,
			s.AvgCulturalDistance.Mean, s.ProbGlobalConsensus, s.AbsorbedFraction)
	}
}
