package engine

import (
	"math"
	"math/rand"
	"testing"

	"github.com/nvandessel/axelrod/internal/culture"
)

// pairGrid returns a 2×2 grid whose top row holds a and b.
func pairGrid(t *testing.T, features []culture.FeatureSpec, a, b []int) *culture.Grid {
	t.Helper()
	g, err := culture.FromRows([][][]int{{a, b}, {a, b}}, features)
	if err != nil {
		t.Fatalf("FromRows() error = %v", err)
	}
	return g
}

var (
	left  = culture.Pos{Row: 0, Col: 0}
	right = culture.Pos{Row: 0, Col: 1}
)

func TestOrderedTransition_StepsByOne(t *testing.T) {
	features := []culture.FeatureSpec{{States: 5, Ordered: true}, {States: 5, Ordered: true}}
	rule, _ := RuleFor(OrderedTransition)
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 200; i++ {
		g := pairGrid(t, features, []int{0, 2}, []int{4, 2})
		if !rule.Interact(g, left, right, 1, rng) {
			t.Fatal("Interact() = false, want true")
		}
		a, b := g.Get(0, 0, 0), g.Get(0, 1, 0)
		switch {
		case a == 1 && b == 4:
		case a == 0 && b == 3:
		default:
			t.Fatalf("ordered update produced (%d, %d), want one-step move toward dominator", a, b)
		}
		if g.Get(0, 0, 1) != 2 || g.Get(0, 1, 1) != 2 {
			t.Fatal("shared feature changed")
		}
	}
}

func TestOrderedTransition_CategoricalCopies(t *testing.T) {
	features := []culture.FeatureSpec{{States: 6}, {States: 3, Ordered: true}}
	rule, _ := RuleFor(OrderedTransition)
	rng := rand.New(rand.NewSource(4))

	for i := 0; i < 100; i++ {
		g := pairGrid(t, features, []int{0, 1}, []int{5, 1})
		rule.Interact(g, left, right, 1, rng)
		if g.Get(0, 0, 0) != g.Get(0, 1, 0) {
			t.Fatalf("categorical update left values %d and %d", g.Get(0, 0, 0), g.Get(0, 1, 0))
		}
	}
}

func TestFullExchange_IgnoresOrder(t *testing.T) {
	features := []culture.FeatureSpec{{States: 5, Ordered: true}, {States: 2}}
	rule, _ := RuleFor(FullExchange)
	rng := rand.New(rand.NewSource(8))

	for i := 0; i < 100; i++ {
		g := pairGrid(t, features, []int{0, 1}, []int{4, 1})
		rule.Interact(g, left, right, 1, rng)
		a, b := g.Get(0, 0, 0), g.Get(0, 1, 0)
		if a != b || (a != 0 && a != 4) {
			t.Fatalf("full exchange produced (%d, %d), want full adoption", a, b)
		}
	}
}

func TestRules_DominatorIsFair(t *testing.T) {
	features := []culture.FeatureSpec{{States: 2}, {States: 2}}
	rule, _ := RuleFor(FullExchange)
	rng := rand.New(rand.NewSource(99))

	leftWins := 0
	const trials = 4000
	for i := 0; i < trials; i++ {
		g := pairGrid(t, features, []int{0, 0}, []int{1, 0})
		rule.Interact(g, left, right, 1, rng)
		if g.Get(0, 1, 0) == 0 {
			leftWins++
		}
	}
	if frac := float64(leftWins) / trials; math.Abs(frac-0.5) > 0.05 {
		t.Errorf("left cell dominated %.3f of interactions, want about 0.5", frac)
	}
}

func TestSimilarityGated_AcceptsWithSharedFraction(t *testing.T) {
	features := culture.UniformFeatures(4, 3, true)
	rule, _ := RuleFor(SimilarityGated)
	rng := rand.New(rand.NewSource(21))

	accepted := 0
	const trials = 4000
	for i := 0; i < trials; i++ {
		g := pairGrid(t, features, []int{0, 0, 0, 0}, []int{0, 1, 1, 1})
		if rule.Interact(g, left, right, 1, rng) {
			accepted++
		}
	}
	if frac := float64(accepted) / trials; math.Abs(frac-0.25) > 0.04 {
		t.Errorf("gated acceptance = %.3f, want about shared/F = 0.25", frac)
	}
}

func TestSimilarityGated_RejectedLeavesGrid(t *testing.T) {
	features := culture.UniformFeatures(4, 3, false)
	rule, _ := RuleFor(SimilarityGated)
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 200; i++ {
		g := pairGrid(t, features, []int{0, 0, 0, 0}, []int{0, 1, 1, 1})
		before := g.Rows()
		if rule.Interact(g, left, right, 1, rng) {
			continue
		}
		after := g.Rows()
		for c := 0; c < 2; c++ {
			for f := 0; f < 4; f++ {
				if before[0][c][f] != after[0][c][f] {
					t.Fatal("rejected gated interaction mutated the grid")
				}
			}
		}
	}
}

func TestRuleFor_Unknown(t *testing.T) {
	if _, err := RuleFor(Variant(-1)); err == nil {
		t.Error("RuleFor(-1) succeeded")
	}
}
