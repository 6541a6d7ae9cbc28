package culture

import (
	"testing"
)

func TestNewGrid_Validation(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		features []FeatureSpec
		wantErr  bool
	}{
		{"valid", 3, UniformFeatures(2, 3, false), false},
		{"single state feature", 2, []FeatureSpec{{States: 1}}, false},
		{"dimension too small", 1, UniformFeatures(2, 3, false), true},
		{"no features", 4, nil, true},
		{"zero states", 4, []FeatureSpec{{States: 0}}, true},
		{"label count mismatch", 4, []FeatureSpec{{States: 3, Labels: []string{"a", "b"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGrid(tt.n, tt.features)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewGrid() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGrid_SimilarityAndDiffering(t *testing.T) {
	g, err := FromRows([][][]int{
		{{0, 1, 2}, {0, 1, 0}},
		{{1, 0, 1}, {0, 1, 2}},
	}, UniformFeatures(3, 3, false))
	if err != nil {
		t.Fatalf("FromRows() error = %v", err)
	}

	a, b := Pos{0, 0}, Pos{0, 1}
	if got := g.Similarity(a, b); got != 2 {
		t.Errorf("Similarity() = %d, want 2", got)
	}
	if got := g.Similarity(a, Pos{1, 1}); got != 3 {
		t.Errorf("Similarity(identical) = %d, want 3", got)
	}
	if got := g.Similarity(a, Pos{1, 0}); got != 0 {
		t.Errorf("Similarity(disjoint) = %d, want 0", got)
	}

	diff := g.Differing(a, b, nil)
	if len(diff) != 1 || diff[0] != 2 {
		t.Errorf("Differing() = %v, want [2]", diff)
	}
}

func TestFromRows_RejectsOutOfRange(t *testing.T) {
	_, err := FromRows([][][]int{
		{{0}, {1}},
		{{2}, {0}},
	}, UniformFeatures(1, 2, false))
	if err == nil {
		t.Fatal("expected error for value 2 with 2 states")
	}
}

func TestGrid_CloneIsIndependent(t *testing.T) {
	g, _ := NewGrid(2, []FeatureSpec{{Name: "x", States: 3, Labels: []string{"a", "b", "c"}}})
	clone := g.Clone()
	clone.Set(0, 0, 0, 2)
	clone.features[0].Labels[0] = "changed"

	if g.Get(0, 0, 0) != 0 {
		t.Error("mutating clone changed original cell")
	}
	if g.Feature(0).Labels[0] != "a" {
		t.Error("mutating clone changed original labels")
	}
}

func TestNeighbors(t *testing.T) {
	tests := []struct {
		name string
		r, c int
		want int
	}{
		{"corner", 0, 0, 2},
		{"edge", 0, 1, 3},
		{"interior", 1, 1, 4},
		{"far corner", 2, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Neighbors(3, tt.r, tt.c, nil)
			if len(got) != tt.want {
				t.Fatalf("Neighbors(%d,%d) = %v, want %d entries", tt.r, tt.c, got, tt.want)
			}
			for _, p := range got {
				dr, dc := p.Row-tt.r, p.Col-tt.c
				if dr*dr+dc*dc != 1 {
					t.Errorf("neighbor %v is not adjacent to (%d,%d)", p, tt.r, tt.c)
				}
				if p.Row < 0 || p.Row > 2 || p.Col < 0 || p.Col > 2 {
					t.Errorf("neighbor %v outside grid", p)
				}
			}
		})
	}
}

func TestPolicy_Adopt(t *testing.T) {
	tests := []struct {
		name      string
		policy    Policy
		dom, recv int
		want      int
	}{
		{"categorical copies", Categorical, 4, 0, 4},
		{"ordered steps up", Ordered, 4, 0, 1},
		{"ordered steps down", Ordered, 0, 3, 2},
		{"ordered adjacent reaches dominator", Ordered, 2, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Adopt(tt.dom, tt.recv); got != tt.want {
				t.Errorf("Adopt(%d, %d) = %d, want %d", tt.dom, tt.recv, got, tt.want)
			}
		})
	}
}

func TestGrid_Key(t *testing.T) {
	g, _ := FromRows([][][]int{
		{{1, 10}, {0, 0}},
		{{0, 0}, {1, 10}},
	}, []FeatureSpec{{States: 2}, {States: 11}})

	if g.Key(0, 0) != "1.10" {
		t.Errorf("Key(0,0) = %q, want 1.10", g.Key(0, 0))
	}
	if g.Key(0, 0) != g.Key(1, 1) {
		t.Error("identical cells produced different keys")
	}
}
