package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/nvandessel/axelrod/internal/culture"
	"github.com/nvandessel/axelrod/internal/engine"
	"github.com/nvandessel/axelrod/internal/metrics"
	"github.com/nvandessel/axelrod/internal/templates"
)

// Kind names a case study.
type Kind string

const (
	KindFvsQ         Kind = "fvsq"
	KindGridSize     Kind = "grid-size"
	KindOrderedRatio Kind = "ordered-ratio"
	KindCorrelation  Kind = "correlation"
)

// Kinds lists every case study.
func Kinds() []Kind {
	return []Kind{KindFvsQ, KindGridSize, KindOrderedRatio, KindCorrelation}
}

// Split is an (ordered, unordered) feature count pair.
type Split struct {
	Ordered   int `json:"ordered" yaml:"ordered"`
	Unordered int `json:"unordered" yaml:"unordered"`
}

// Study describes a parameter sweep. Which list fields apply depends on Kind.
type Study struct {
	Kind     Kind  `json:"kind" yaml:"kind"`
	GridSize int   `json:"grid_size" yaml:"grid_size"`
	MaxSteps int   `json:"max_steps" yaml:"max_steps"`
	Runs     int   `json:"runs" yaml:"runs"`
	BaseSeed int64 `json:"base_seed" yaml:"base_seed"`

	// Variant overrides the case study's default dynamics when non-empty.
	Variant string `json:"variant,omitempty" yaml:"variant,omitempty"`

	// fvsq
	FValues []int `json:"f_values,omitempty" yaml:"f_values,omitempty"`
	QValues []int `json:"q_values,omitempty" yaml:"q_values,omitempty"`

	// grid-size, ordered-ratio
	GridSizes []int   `json:"grid_sizes,omitempty" yaml:"grid_sizes,omitempty"`
	F         int     `json:"f,omitempty" yaml:"f,omitempty"`
	Q         int     `json:"q,omitempty" yaml:"q,omitempty"`
	Splits    []Split `json:"splits,omitempty" yaml:"splits,omitempty"`

	// correlation
	Correlations []float64 `json:"correlations,omitempty" yaml:"correlations,omitempty"`
	Template     string    `json:"template,omitempty" yaml:"template,omitempty"`
}

// DefaultStudy returns the parameter grid the case study was published with.
func DefaultStudy(kind Kind) (Study, error) {
	s := Study{Kind: kind, GridSize: 10, MaxSteps: 1_000_000, BaseSeed: 42}
	switch kind {
	case KindFvsQ:
		s.Runs = 100
		s.FValues = intRange(2, 10)
		s.QValues = intRange(2, 20)
	case KindGridSize:
		s.Runs = 100
		s.GridSizes = []int{5, 10, 15, 20, 25}
		s.F, s.Q = 5, 15
	case KindOrderedRatio:
		s.Runs = 200
		s.Q = 4
		s.Splits = []Split{{5, 0}, {4, 1}, {3, 2}, {1, 4}, {0, 5}}
	case KindCorrelation:
		s.Runs = 500
		s.Template = "political-economic"
		s.Correlations = []float64{-1.0, -0.9, -0.75, -0.6, -0.5, -0.4, -0.25, -0.1, 0.0, 0.1, 0.25, 0.4, 0.5, 0.6, 0.75, 0.9, 1.0}
	default:
		return Study{}, fmt.Errorf("unknown study kind %q", kind)
	}
	return s, nil
}

// Override returns s with every non-zero field of o applied on top. Kind is
// never overridden.
func (s Study) Override(o Study) Study {
	if o.GridSize != 0 {
		s.GridSize = o.GridSize
	}
	if o.MaxSteps != 0 {
		s.MaxSteps = o.MaxSteps
	}
	if o.Runs != 0 {
		s.Runs = o.Runs
	}
	if o.BaseSeed != 0 {
		s.BaseSeed = o.BaseSeed
	}
	if o.Variant != "" {
		s.Variant = o.Variant
	}
	if len(o.FValues) > 0 {
		s.FValues = o.FValues
	}
	if len(o.QValues) > 0 {
		s.QValues = o.QValues
	}
	if len(o.GridSizes) > 0 {
		s.GridSizes = o.GridSizes
	}
	if o.F != 0 {
		s.F = o.F
	}
	if o.Q != 0 {
		s.Q = o.Q
	}
	if len(o.Splits) > 0 {
		s.Splits = o.Splits
	}
	if len(o.Correlations) > 0 {
		s.Correlations = o.Correlations
	}
	if o.Template != "" {
		s.Template = o.Template
	}
	return s
}

// Trajectories returns the number of trajectories the study will run, or 0
// if it does not expand.
func (s Study) Trajectories() int {
	points, err := s.Points()
	if err != nil {
		return 0
	}
	return len(points) * s.Runs
}

func intRange(lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

// Point is one parameter combination of a study.
type Point struct {
	Label  string
	Params engine.Params
}

func (s Study) variant(def engine.Variant) (engine.Variant, error) {
	if s.Variant == "" {
		return def, nil
	}
	return engine.ParseVariant(s.Variant)
}

// Points expands the study into its parameter combinations, in sweep order.
func (s Study) Points() ([]Point, error) {
	if s.Runs < 1 {
		return nil, fmt.Errorf("runs must be >= 1, got %d", s.Runs)
	}
	base := engine.Params{GridSize: s.GridSize, MaxSteps: s.MaxSteps}
	var points []Point

	switch s.Kind {
	case KindFvsQ:
		v, err := s.variant(engine.FullExchange)
		if err != nil {
			return nil, err
		}
		for _, f := range s.FValues {
			for _, q := range s.QValues {
				p := base
				p.Variant = v
				p.Features = culture.UniformFeatures(f, q, false)
				points = append(points, Point{Label: fmt.Sprintf("F=%d,q=%d", f, q), Params: p})
			}
		}
	case KindGridSize:
		v, err := s.variant(engine.FullExchange)
		if err != nil {
			return nil, err
		}
		for _, n := range s.GridSizes {
			p := base
			p.GridSize = n
			p.Variant = v
			p.Features = culture.UniformFeatures(s.F, s.Q, false)
			points = append(points, Point{Label: fmt.Sprintf("N=%d", n), Params: p})
		}
	case KindOrderedRatio:
		v, err := s.variant(engine.SimilarityGated)
		if err != nil {
			return nil, err
		}
		for _, sp := range s.Splits {
			p := base
			p.Variant = v
			p.Features = templates.Ratio(sp.Ordered, sp.Unordered, s.Q)
			points = append(points, Point{Label: fmt.Sprintf("ordered=%d,unordered=%d", sp.Ordered, sp.Unordered), Params: p})
		}
	case KindCorrelation:
		v, err := s.variant(engine.OrderedTransition)
		if err != nil {
			return nil, err
		}
		tmpl, err := templates.Get(s.Template)
		if err != nil {
			return nil, err
		}
		for _, rho := range s.Correlations {
			p := base
			p.Variant = v
			p.Init = engine.InitCorrelated
			p.Correlation = rho
			p.Features = tmpl.Features
			points = append(points, Point{Label: fmt.Sprintf("rho=%g", rho), Params: p})
		}
	default:
		return nil, fmt.Errorf("unknown study kind %q", s.Kind)
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("study %s has no parameter points", s.Kind)
	}
	for _, pt := range points {
		if err := pt.Params.Validate(); err != nil {
			return nil, fmt.Errorf("point %s: %w", pt.Label, err)
		}
	}
	return points, nil
}

// Tasks expands points into runs trajectories each, numbering trajectories
// across the whole sweep and seeding each from base.
func Tasks(points []Point, runs int, base int64) []Task {
	tasks := make([]Task, 0, len(points)*runs)
	for _, pt := range points {
		for i := 0; i < runs; i++ {
			idx := len(tasks)
			p := pt.Params
			seed := DeriveSeed(base, idx)
			p.Seed = &seed
			tasks = append(tasks, Task{Label: pt.Label, Index: idx, Params: p})
		}
	}
	return tasks
}

// PointAggregate is the aggregate of every run at one parameter point.
type PointAggregate struct {
	Label string            `json:"label"`
	Stats metrics.Aggregate `json:"stats"`
}

// SweepResult holds the raw results and per-point aggregates of a study.
type SweepResult struct {
	Study      Study            `json:"study"`
	Results    []Result         `json:"-"`
	Aggregates []PointAggregate `json:"aggregates"`
	Elapsed    time.Duration    `json:"elapsed"`
}

// Aggregate groups results by label, preserving first-seen label order.
func Aggregate(results []Result) []PointAggregate {
	var order []string
	groups := make(map[string][]metrics.Summary)
	for _, r := range results {
		if _, ok := groups[r.Task.Label]; !ok {
			order = append(order, r.Task.Label)
		}
		groups[r.Task.Label] = append(groups[r.Task.Label], r.Summary)
	}
	out := make([]PointAggregate, 0, len(order))
	for _, label := range order {
		out = append(out, PointAggregate{Label: label, Stats: metrics.AggregateSummaries(groups[label])})
	}
	return out
}

// Sweep runs every trajectory of study on r and aggregates the results.
func Sweep(ctx context.Context, r *Runner, study Study) (*SweepResult, error) {
	points, err := study.Points()
	if err != nil {
		return nil, err
	}
	tasks := Tasks(points, study.Runs, study.BaseSeed)

	log := r.logger()
	log.Info("sweep started", "kind", study.Kind, "points", len(points), "trajectories", len(tasks))
	start := time.Now()

	results, err := r.Run(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", study.Kind, err)
	}

	sr := &SweepResult{
		Study:      study,
		Results:    results,
		Aggregates: Aggregate(results),
		Elapsed:    time.Since(start),
	}
	log.Info("sweep finished", "kind", study.Kind, "trajectories", len(results), "elapsed", sr.Elapsed)
	r.Events.Log("sweep_finished", map[string]any{
		"kind":         string(study.Kind),
		"points":       len(points),
		"trajectories": len(results),
		"elapsed_ms":   sr.Elapsed.Milliseconds(),
	})
	return sr, nil
}
