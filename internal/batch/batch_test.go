package batch

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/nvandessel/axelrod/internal/engine"
)

func smallStudy() Study {
	return Study{
		Kind:     KindFvsQ,
		GridSize: 4,
		MaxSteps: 100000,
		Runs:     3,
		BaseSeed: 7,
		FValues:  []int{2, 3},
		QValues:  []int{2, 3},
	}
}

func TestDeriveSeed(t *testing.T) {
	if got := DeriveSeed(42, 0); got != 42 {
		t.Errorf("DeriveSeed(42, 0) = %d, want 42", got)
	}
	if got := DeriveSeed(42, 10); got != 52 {
		t.Errorf("DeriveSeed(42, 10) = %d, want 52", got)
	}
}

func TestStudy_Points(t *testing.T) {
	points, err := smallStudy().Points()
	if err != nil {
		t.Fatalf("Points() error = %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("Points() returned %d points, want 4", len(points))
	}

	if points[0].Label != "F=2,q=2" || points[3].Label != "F=3,q=3" {
		t.Errorf("labels = %q .. %q", points[0].Label, points[3].Label)
	}
	if len(points[3].Params.Features) != 3 {
		t.Errorf("last point has %d features, want 3", len(points[3].Params.Features))
	}
	if points[0].Params.Variant != engine.FullExchange {
		t.Errorf("variant = %v, want full-exchange", points[0].Params.Variant)
	}
}

func TestStudy_PointsPerKind(t *testing.T) {
	tests := []struct {
		kind    Kind
		points  int
		variant engine.Variant
		init    engine.InitKind
	}{
		{KindFvsQ, 9 * 19, engine.FullExchange, engine.InitUniform},
		{KindGridSize, 5, engine.FullExchange, engine.InitUniform},
		{KindOrderedRatio, 5, engine.SimilarityGated, engine.InitUniform},
		{KindCorrelation, 17, engine.OrderedTransition, engine.InitCorrelated},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			s, err := DefaultStudy(tt.kind)
			if err != nil {
				t.Fatalf("DefaultStudy() error = %v", err)
			}
			points, err := s.Points()
			if err != nil {
				t.Fatalf("Points() error = %v", err)
			}
			if len(points) != tt.points {
				t.Errorf("Points() returned %d, want %d", len(points), tt.points)
			}
			if points[0].Params.Variant != tt.variant {
				t.Errorf("variant = %v, want %v", points[0].Params.Variant, tt.variant)
			}
			if points[0].Params.Init != tt.init {
				t.Errorf("init = %v, want %v", points[0].Params.Init, tt.init)
			}
		})
	}
}

func TestStudy_PointsErrors(t *testing.T) {
	tests := []struct {
		name    string
		study   func() Study
		invalid bool
	}{
		{"zero runs", func() Study { s := smallStudy(); s.Runs = 0; return s }, false},
		{"unknown variant", func() Study { s := smallStudy(); s.Variant = "bogus"; return s }, true},
		{"grid too small", func() Study { s := smallStudy(); s.GridSize = 1; return s }, true},
		{"missing template", func() Study {
			return Study{Kind: KindCorrelation, GridSize: 4, MaxSteps: 10, Runs: 1, Template: "missing", Correlations: []float64{0}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.study().Points()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.invalid && !errors.Is(err, engine.ErrInvalidConfiguration) {
				t.Errorf("error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}

	if _, err := DefaultStudy("unknown"); err == nil {
		t.Error("expected error for unknown study kind")
	}
}

func TestTasks_SeedsFollowGlobalIndex(t *testing.T) {
	points, err := smallStudy().Points()
	if err != nil {
		t.Fatalf("Points() error = %v", err)
	}

	tasks := Tasks(points, 3, 100)
	if len(tasks) != 12 {
		t.Fatalf("Tasks() returned %d, want 12", len(tasks))
	}
	for i, task := range tasks {
		if task.Index != i {
			t.Errorf("task %d has index %d", i, task.Index)
		}
		if task.Params.Seed == nil {
			t.Fatalf("task %d has no seed", i)
		}
		if *task.Params.Seed != int64(100+i) {
			t.Errorf("task %d seed = %d, want %d", i, *task.Params.Seed, 100+i)
		}
	}
	if tasks[3].Label != "F=2,q=3" {
		t.Errorf("tasks[3].Label = %q, want F=2,q=3", tasks[3].Label)
	}
}

func TestRunner_OrderAndDeterminism(t *testing.T) {
	points, err := smallStudy().Points()
	if err != nil {
		t.Fatalf("Points() error = %v", err)
	}
	tasks := Tasks(points, 3, 7)

	serial, err := (&Runner{Workers: 1}).Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("serial Run() error = %v", err)
	}
	parallel, err := (&Runner{Workers: 4}).Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("parallel Run() error = %v", err)
	}

	if len(parallel) != len(tasks) {
		t.Fatalf("Run() returned %d results, want %d", len(parallel), len(tasks))
	}
	for i := range tasks {
		if parallel[i].Task.Index != tasks[i].Index {
			t.Errorf("result %d has task index %d, results not in task order", i, parallel[i].Task.Index)
		}
		if serial[i].Seed != parallel[i].Seed || serial[i].State != parallel[i].State {
			t.Errorf("result %d seed/state differ: %d/%v vs %d/%v", i, serial[i].Seed, serial[i].State, parallel[i].Seed, parallel[i].State)
		}
		if serial[i].Summary != parallel[i].Summary {
			t.Errorf("result %d summary = %+v, want %+v", i, parallel[i].Summary, serial[i].Summary)
		}
	}
}

func TestRunner_KeepGrids(t *testing.T) {
	points, err := smallStudy().Points()
	if err != nil {
		t.Fatalf("Points() error = %v", err)
	}
	tasks := Tasks(points[:1], 2, 1)

	results, err := (&Runner{Workers: 2, KeepGrids: true}).Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i, r := range results {
		if r.Grid == nil {
			t.Fatalf("result %d has no grid", i)
		}
		if r.Grid.Size() != 4 {
			t.Errorf("result %d grid size = %d, want 4", i, r.Grid.Size())
		}
		if r.State != engine.Absorbed || !r.Summary.Absorbed {
			t.Errorf("result %d state = %v, absorbed = %v", i, r.State, r.Summary.Absorbed)
		}
	}

	results, err = (&Runner{Workers: 2}).Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results[0].Grid != nil {
		t.Error("grid kept without KeepGrids")
	}
}

func TestRunner_InvalidTaskFailsBatch(t *testing.T) {
	tasks := []Task{{Label: "bad", Params: engine.Params{GridSize: 1, MaxSteps: 1}}}
	_, err := (&Runner{Workers: 2}).Run(context.Background(), tasks)
	if !errors.Is(err, engine.ErrInvalidConfiguration) {
		t.Errorf("Run() error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	points, err := smallStudy().Points()
	if err != nil {
		t.Fatalf("Points() error = %v", err)
	}
	tasks := Tasks(points, 3, 7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&Runner{Workers: 2}).Run(ctx, tasks); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunner_Empty(t *testing.T) {
	results, err := (&Runner{}).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Run(nil) returned %d results", len(results))
	}
}

func TestSweep_Aggregates(t *testing.T) {
	sr, err := Sweep(context.Background(), &Runner{Workers: 2}, smallStudy())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if len(sr.Results) != 12 || len(sr.Aggregates) != 4 {
		t.Fatalf("Sweep() = %d results, %d aggregates; want 12, 4", len(sr.Results), len(sr.Aggregates))
	}
	for _, agg := range sr.Aggregates {
		if agg.Stats.Runs != 3 {
			t.Errorf("%s runs = %d, want 3", agg.Label, agg.Stats.Runs)
		}
		if p := agg.Stats.ProbGlobalConsensus; p < 0 || p > 1 {
			t.Errorf("%s consensus probability = %v, want [0, 1]", agg.Label, p)
		}
		if math.Abs(agg.Stats.AbsorbedFraction-1) > 1e-9 {
			t.Errorf("%s absorbed fraction = %v, want 1", agg.Label, agg.Stats.AbsorbedFraction)
		}
	}
	if sr.Aggregates[0].Label != "F=2,q=2" {
		t.Errorf("first aggregate = %q, want F=2,q=2", sr.Aggregates[0].Label)
	}
}

func TestStudy_Override(t *testing.T) {
	base, err := DefaultStudy(KindGridSize)
	if err != nil {
		t.Fatalf("DefaultStudy() error = %v", err)
	}

	s := base.Override(Study{Kind: KindFvsQ, Runs: 4, GridSizes: []int{3, 4}, Variant: "ordered-transition"})
	if s.Kind != KindGridSize {
		t.Errorf("Kind = %v, want grid-size", s.Kind)
	}
	if s.Runs != 4 || s.Variant != "ordered-transition" {
		t.Errorf("runs/variant = %d/%q", s.Runs, s.Variant)
	}
	if !reflect.DeepEqual(s.GridSizes, []int{3, 4}) {
		t.Errorf("GridSizes = %v, want [3 4]", s.GridSizes)
	}
	if s.F != base.F || s.MaxSteps != base.MaxSteps {
		t.Errorf("untouched fields changed: F=%d MaxSteps=%d", s.F, s.MaxSteps)
	}

	if got := s.Trajectories(); got != 8 {
		t.Errorf("Trajectories() = %d, want 8", got)
	}
	s.Runs = 0
	if got := s.Trajectories(); got != 0 {
		t.Errorf("Trajectories() with zero runs = %d, want 0", got)
	}
}
