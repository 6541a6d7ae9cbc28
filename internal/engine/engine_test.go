package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nvandessel/axelrod/internal/culture"
)

func seed(v int64) *int64 { return &v }

func baseParams() Params {
	return Params{
		GridSize: 5,
		Features: culture.UniformFeatures(3, 3, false),
		Variant:  FullExchange,
		MaxSteps: 200000,
		Seed:     seed(42),
	}
}

func TestNew_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"grid too small", func(p *Params) { p.GridSize = 1 }},
		{"empty features", func(p *Params) { p.Features = nil }},
		{"zero states", func(p *Params) { p.Features = []culture.FeatureSpec{{States: 0}} }},
		{"correlation above one", func(p *Params) { p.Correlation = 1.2 }},
		{"correlation below minus one", func(p *Params) { p.Correlation = -1.01 }},
		{"zero budget", func(p *Params) { p.MaxSteps = 0 }},
		{"unknown variant", func(p *Params) { p.Variant = Variant(99) }},
		{"unknown initializer", func(p *Params) { p.Init = InitKind(7) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseParams()
			tt.mutate(&p)
			_, err := New(p)
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("New() error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestNew_InitialGridMismatch(t *testing.T) {
	g, _ := culture.NewGrid(3, culture.UniformFeatures(2, 2, false))
	p := Params{GridSize: 4, Initial: g, MaxSteps: 10}
	if _, err := New(p); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("New() error = %v, want ErrInvalidConfiguration", err)
	}
}

func uniformGrid(t *testing.T, n int, features []culture.FeatureSpec, value func(r, c, f int) int) *culture.Grid {
	t.Helper()
	g, err := culture.NewGrid(n, features)
	if err != nil {
		t.Fatalf("NewGrid() error = %v", err)
	}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			for f := range features {
				g.Set(r, c, f, value(r, c, f))
			}
		}
	}
	return g
}

func TestRun_IdenticalGridAbsorbsAtFirstScan(t *testing.T) {
	for _, v := range Variants() {
		t.Run(v.String(), func(t *testing.T) {
			g := uniformGrid(t, 4, culture.UniformFeatures(3, 5, true), func(_, _, f int) int { return f })
			e, err := New(Params{Initial: g, Variant: v, MaxSteps: 1000, Seed: seed(1)})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			state, steps := e.Run()
			if state != Absorbed {
				t.Errorf("state = %v, want absorbed", state)
			}
			if steps != 16 {
				t.Errorf("steps = %d, want 16 (N²)", steps)
			}
		})
	}
}

func TestRun_DisjointGridAbsorbsAtFirstScan(t *testing.T) {
	// Checkerboard of {0,0} and {1,1}: every adjacent pair shares nothing.
	g := uniformGrid(t, 3, culture.UniformFeatures(2, 2, false), func(r, c, _ int) int { return (r + c) % 2 })
	e, err := New(Params{Initial: g, Variant: OrderedTransition, MaxSteps: 1000, Seed: seed(9)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	state, steps := e.Run()
	if state != Absorbed || steps != 9 {
		t.Errorf("Run() = (%v, %d), want (absorbed, 9)", state, steps)
	}
	if !reflect.DeepEqual(e.Snapshot().Rows(), g.Rows()) {
		t.Error("absorbing scan mutated the grid")
	}
}

func TestRun_ConvergesToAbsorbingState(t *testing.T) {
	for _, v := range Variants() {
		t.Run(v.String(), func(t *testing.T) {
			p := baseParams()
			p.Variant = v
			p.Features = []culture.FeatureSpec{{States: 3, Ordered: true}, {States: 3}, {States: 4, Ordered: true}}
			e, err := New(p)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			state, steps := e.Run()
			if state != Absorbed {
				t.Fatalf("state = %v after %d steps, want absorbed", state, steps)
			}
			snap := e.Snapshot()
			if !IsAbsorbing(snap) {
				t.Error("terminal grid is not absorbing")
			}
			if !snap.InRange() {
				t.Error("terminal grid has out-of-range values")
			}
		})
	}
}

func TestRun_SmallScenarioTerminates(t *testing.T) {
	e, err := New(Params{
		GridSize: 2,
		Features: culture.UniformFeatures(2, 2, false),
		MaxSteps: 100000,
		Seed:     seed(2024),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	state, steps := e.Run()
	if state != Absorbed {
		t.Fatalf("state = %v, want absorbed", state)
	}
	if steps < 4 || steps > 10000 {
		t.Errorf("steps = %d, want a small finite count", steps)
	}
}

func TestRun_BudgetExceeded(t *testing.T) {
	p := baseParams()
	p.MaxSteps = 1
	p.Features = culture.UniformFeatures(4, 2, false)
	e, err := New(p)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	state, steps := e.Run()
	if state != BudgetExceeded || steps != 1 {
		t.Errorf("Run() = (%v, %d), want (budget_exceeded, 1)", state, steps)
	}

	if _, err := e.Step(); !errors.Is(err, ErrHalted) {
		t.Errorf("Step() after halt error = %v, want ErrHalted", err)
	}
	if again, n := e.Run(); again != BudgetExceeded || n != 1 {
		t.Errorf("second Run() = (%v, %d), want unchanged", again, n)
	}
}

func TestRun_Deterministic(t *testing.T) {
	run := func() ([][][]int, int) {
		p := baseParams()
		p.Variant = SimilarityGated
		p.Init = InitCorrelated
		p.Correlation = 0.5
		p.Features = []culture.FeatureSpec{{States: 5, Ordered: true}, {States: 5, Ordered: true}, {States: 3}}
		e, err := New(p)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		_, steps := e.Run()
		return e.Snapshot().Rows(), steps
	}

	g1, s1 := run()
	g2, s2 := run()
	if s1 != s2 {
		t.Errorf("step counts differ: %d vs %d", s1, s2)
	}
	if !reflect.DeepEqual(g1, g2) {
		t.Error("terminal grids differ for the same seed")
	}
}

func TestSnapshot_IsIndependent(t *testing.T) {
	// A uniform grid never changes under Step, so any difference after
	// stepping can only come from the snapshot edits leaking back.
	g := uniformGrid(t, 4, culture.UniformFeatures(2, 3, false), func(_, _, _ int) int { return 1 })
	e, err := New(Params{Initial: g, MaxSteps: 100, Seed: seed(3)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	snap := e.Snapshot()
	for r := 0; r < snap.Size(); r++ {
		for c := 0; c < snap.Size(); c++ {
			snap.Set(r, c, 0, 2)
		}
	}
	g.Set(0, 0, 1, 0)

	if _, err := e.Step(); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	want := uniformGrid(t, 4, culture.UniformFeatures(2, 3, false), func(_, _, _ int) int { return 1 })
	if !reflect.DeepEqual(e.Snapshot().Rows(), want.Rows()) {
		t.Error("snapshot or initial grid mutation leaked into engine state")
	}
}

func TestStep_FailureCounter(t *testing.T) {
	g := uniformGrid(t, 3, culture.UniformFeatures(2, 2, false), func(_, _, _ int) int { return 0 })
	e, err := New(Params{Initial: g, MaxSteps: 100, Seed: seed(5)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for i := 1; i < 9; i++ {
		out, err := e.Step()
		if err != nil || out != Continued {
			t.Fatalf("step %d: (%v, %v), want Continued", i, out, err)
		}
		if e.FailedInteractions() != i {
			t.Errorf("step %d: failed = %d, want %d", i, e.FailedInteractions(), i)
		}
	}
	out, err := e.Step()
	if err != nil || out != Halt {
		t.Fatalf("ninth step: (%v, %v), want Halt", out, err)
	}
	if e.State() != Absorbed {
		t.Errorf("State() = %v, want absorbed", e.State())
	}
}

func TestIsAbsorbing_Idempotent(t *testing.T) {
	g, _ := culture.FromRows([][][]int{
		{{0, 0}, {0, 1}},
		{{1, 1}, {1, 1}},
	}, culture.UniformFeatures(2, 2, false))
	first, second := IsAbsorbing(g), IsAbsorbing(g)
	if first != second {
		t.Errorf("IsAbsorbing verdicts differ: %v then %v", first, second)
	}
	if first {
		t.Error("grid with an interactable pair reported absorbing")
	}
}

func TestCanInteract(t *testing.T) {
	tests := []struct {
		shared, f int
		want      bool
	}{
		{0, 3, false},
		{1, 3, true},
		{2, 3, true},
		{3, 3, false},
		{0, 1, false},
		{1, 1, false},
	}
	for _, tt := range tests {
		if got := CanInteract(tt.shared, tt.f); got != tt.want {
			t.Errorf("CanInteract(%d, %d) = %v, want %v", tt.shared, tt.f, got, tt.want)
		}
	}
}

func TestParseVariant(t *testing.T) {
	for _, v := range Variants() {
		got, err := ParseVariant(v.String())
		if err != nil || got != v {
			t.Errorf("ParseVariant(%q) = (%v, %v)", v.String(), got, err)
		}
	}
	if _, err := ParseVariant("Ordered-Transition"); err != nil {
		t.Errorf("ParseVariant is case sensitive: %v", err)
	}
	if _, err := ParseVariant("bogus"); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("ParseVariant(bogus) error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestParseInitKind(t *testing.T) {
	if k, err := ParseInitKind("correlated"); err != nil || k != InitCorrelated {
		t.Errorf("ParseInitKind(correlated) = (%v, %v)", k, err)
	}
	if k, err := ParseInitKind(""); err != nil || k != InitUniform {
		t.Errorf("ParseInitKind(\"\") = (%v, %v)", k, err)
	}
	if _, err := ParseInitKind("gaussian"); err == nil {
		t.Error("ParseInitKind(gaussian) succeeded")
	}
}
