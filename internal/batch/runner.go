// Package batch runs many independent trajectories on a worker pool and
// collects their terminal metrics.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/axelrod/internal/culture"
	"github.com/nvandessel/axelrod/internal/engine"
	"github.com/nvandessel/axelrod/internal/logging"
	"github.com/nvandessel/axelrod/internal/metrics"
)

// Task is one trajectory to run.
type Task struct {
	// Label names the parameter point the trajectory belongs to, e.g. "F=3,q=5".
	Label string

	// Index is the trajectory's position within its sweep. Seeds derive from it.
	Index int

	Params engine.Params
}

// Result is the outcome of one Task.
type Result struct {
	Task    Task
	Seed    int64
	State   engine.State
	Summary metrics.Summary
	Elapsed time.Duration

	// Grid is the terminal grid, kept only when Runner.KeepGrids is set.
	Grid *culture.Grid
}

// DeriveSeed returns the seed of trajectory index within a sweep seeded by
// base. It depends only on the index, never on scheduling order.
func DeriveSeed(base int64, index int) int64 {
	return base + int64(index)
}

// Runner executes tasks on a fixed number of workers. Each worker owns the
// engine of the task it is running; results travel back over a channel.
type Runner struct {
	// Workers bounds concurrency. Zero means runtime.NumCPU().
	Workers int

	// KeepGrids retains terminal grids in results.
	KeepGrids bool

	Logger *slog.Logger
	Events *logging.EventLogger
}

func (r *Runner) workerCount(tasks int) int {
	n := r.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > tasks {
		n = tasks
	}
	return n
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return logging.Discard()
	}
	return r.Logger
}

// Run executes every task and returns results in task order. An invalid
// task aborts the batch; cancelling ctx stops dispatch of further tasks.
func (r *Runner) Run(ctx context.Context, tasks []Task) ([]Result, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	type job struct {
		pos  int
		task Task
	}
	type done struct {
		pos    int
		result Result
	}

	jobs := make(chan job)
	results := make(chan done, len(tasks))

	g, ctx := errgroup.WithContext(ctx)
	for w := r.workerCount(len(tasks)); w > 0; w-- {
		g.Go(func() error {
			for j := range jobs {
				res, err := r.runTask(j.task)
				if err != nil {
					return fmt.Errorf("task %d (%s): %w", j.task.Index, j.task.Label, err)
				}
				results <- done{pos: j.pos, result: res}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for i, t := range tasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case jobs <- job{pos: i, task: t}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	err := g.Wait()
	close(results)
	if err != nil {
		return nil, err
	}

	out := make([]Result, len(tasks))
	for d := range results {
		out[d.pos] = d.result
	}
	return out, nil
}

func (r *Runner) runTask(t Task) (Result, error) {
	start := time.Now()
	e, err := engine.New(t.Params)
	if err != nil {
		return Result{}, err
	}
	state, steps := e.Run()

	grid := e.Snapshot()
	summary := metrics.Calculate(grid, steps)
	summary.Absorbed = state == engine.Absorbed

	res := Result{
		Task:    t,
		Seed:    e.Seed(),
		State:   state,
		Summary: summary,
		Elapsed: time.Since(start),
	}
	if r.KeepGrids {
		res.Grid = grid
	}

	r.logger().Log(context.Background(), logging.LevelTrace, "trajectory finished",
		"label", t.Label, "index", t.Index, "seed", res.Seed,
		"state", state.String(), "steps", steps, "unique_cultures", summary.UniqueCultures)
	r.Events.Log("trajectory_finished", map[string]any{
		"label":           t.Label,
		"index":           t.Index,
		"seed":            res.Seed,
		"state":           state.String(),
		"steps":           steps,
		"unique_cultures": summary.UniqueCultures,
		"elapsed_ms":      res.Elapsed.Milliseconds(),
	})
	return res, nil
}
