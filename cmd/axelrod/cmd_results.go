package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/axelrod/internal/store"
)

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results [sweep-id]",
		Short: "Show stored sweeps and runs",
		Long: `Show results stored in the results database.

Without an argument, lists recent sweeps and runs. With a sweep id, shows
the sweep's aggregates recomputed from its stored runs.

Examples:
  axelrod results
  axelrod results 3f1c... --runs
  axelrod results 3f1c... --label "F=3,q=5" --runs`,
		Args: cobra.MaximumNArgs(1),
		RunE: runResults,
	}

	cmd.Flags().String("label", "", "Restrict runs to one parameter point")
	cmd.Flags().Int("limit", 20, "Maximum number of sweeps or runs listed (0 = all)")
	cmd.Flags().Bool("runs", false, "List the individual runs of a sweep")

	return cmd
}

func runResults(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	label, _ := cmd.Flags().GetString("label")
	limit, _ := cmd.Flags().GetInt("limit")
	showRuns, _ := cmd.Flags().GetBool("runs")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	resultStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer resultStore.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		sweeps, err := resultStore.ListSweeps(ctx, limit)
		if err != nil {
			return err
		}
		runs, err := resultStore.ListRuns(ctx, store.RunFilter{Label: label, Limit: limit})
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd, map[string]interface{}{
				"sweeps": sweeps,
				"runs":   runs,
			})
		}

		if len(sweeps) == 0 && len(runs) == 0 {
			fmt.Fprintf(out, "No results stored in %s\n", resultStore.Path())
			return nil
		}
		fmt.Fprintf(out, "Sweeps (%d):\n", len(sweeps))
		for _, sw := range sweeps {
			fmt.Fprintf(out, "  %s  %-14s %6d trajectories  %s\n", sw.ID, sw.Kind, sw.Trajectories, sw.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Runs (%d):\n", len(runs))
		printRunTable(cmd, runs)
		return nil
	}

	sweepID := args[0]
	sweep, err := resultStore.GetSweep(ctx, sweepID)
	if err != nil {
		return err
	}
	aggs, err := resultStore.AggregateSweep(ctx, sweepID)
	if err != nil {
		return err
	}
	var runs []store.RunRecord
	if showRuns || label != "" || jsonOut {
		runs, err = resultStore.ListRuns(ctx, store.RunFilter{SweepID: sweepID, Label: label, Limit: limit})
		if err != nil {
			return err
		}
	}

	if jsonOut {
		return printJSON(cmd, map[string]interface{}{
			"sweep":      sweep,
			"aggregates": aggs,
			"runs":       runs,
		})
	}

	fmt.Fprintf(out, "Sweep %s (%s)\n", sweep.ID, sweep.Kind)
	fmt.Fprintf(out, "  Trajectories: %d\n", sweep.Trajectories)
	fmt.Fprintf(out, "  Grid size:    %d\n", sweep.Study.GridSize)
	fmt.Fprintf(out, "  Base seed:    %d\n", sweep.Study.BaseSeed)
	fmt.Fprintf(out, "  Variant:      %s\n", valueOrDefault(sweep.Study.Variant, "(case-study default)"))
	fmt.Fprintf(out, "  Created:      %s\n", sweep.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(out)
	printAggregateTable(out, aggs)
	if len(runs) > 0 {
		fmt.Fprintln(out)
		printRunTable(cmd, runs)
	}
	return nil
}

func printRunTable(cmd *cobra.Command, runs []store.RunRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  %-36s %-20s %-6s %4s %-16s %10s %8s %10s\n", "ID", "POINT", "SEED", "N", "STATE", "STEPS", "CULTURES", "LARGEST%")
	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s %-20s %-6d %4d %-16s %10d %8d %9.1f%%\n", r.ID, valueOrDefault(r.Label, "-"), r.Seed,
			r.GridSize, r.State, r.Steps, r.UniqueCultures, r.LargestDomainPercentage)
	}
}
