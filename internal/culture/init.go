package culture

import (
	"fmt"
	"math"
	"math/rand"
)

// Initializer fills a freshly allocated grid with starting cultures.
type Initializer interface {
	Populate(g *Grid, rng *rand.Rand)
}

// Uniform draws every value of every cell independently and uniformly.
type Uniform struct{}

// Populate implements Initializer.
func (Uniform) Populate(g *Grid, rng *rand.Rand) {
	for r := 0; r < g.n; r++ {
		for c := 0; c < g.n; c++ {
			for f, spec := range g.features {
				g.Set(r, c, f, rng.Intn(spec.States))
			}
		}
	}
}

// Correlated couples the ordered features of each cell through a shared
// anchor. Categorical features are drawn uniformly. For ordered features one
// is picked at random as the anchor and drawn uniformly; every other ordered
// feature then samples state s with weight (1-d)(1+Rho) + d(1-Rho), where d is
// the distance between the anchor's and s's normalized positions.
type Correlated struct {
	Rho float64
}

// ValidateCorrelation checks rho lies in [-1, 1].
func ValidateCorrelation(rho float64) error {
	if math.IsNaN(rho) || rho < -1 || rho > 1 {
		return fmt.Errorf("correlation must be in [-1, 1], got %v", rho)
	}
	return nil
}

// Populate implements Initializer.
func (ci Correlated) Populate(g *Grid, rng *rand.Rand) {
	var ordered, categorical []int
	maxStates := 0
	for f, spec := range g.features {
		if spec.Ordered {
			ordered = append(ordered, f)
		} else {
			categorical = append(categorical, f)
		}
		if spec.States > maxStates {
			maxStates = spec.States
		}
	}
	weights := make([]float64, maxStates)

	for r := 0; r < g.n; r++ {
		for c := 0; c < g.n; c++ {
			for _, f := range categorical {
				g.Set(r, c, f, rng.Intn(g.features[f].States))
			}
			if len(ordered) == 0 {
				continue
			}

			anchorIdx := rng.Intn(len(ordered))
			anchor := ordered[anchorIdx]
			anchorStates := g.features[anchor].States
			anchorState := rng.Intn(anchorStates)
			g.Set(r, c, anchor, anchorState)
			anchorPos := Position(anchorState, anchorStates)

			for i, f := range ordered {
				if i == anchorIdx {
					continue
				}
				states := g.features[f].States
				w := StateWeights(anchorPos, states, ci.Rho, weights[:states])
				g.Set(r, c, f, SampleCategorical(w, rng.Float64()))
			}
		}
	}
}

// Position maps state index to its normalized position in [0, 1]. A feature
// with a single state sits at 0.
func Position(index, states int) float64 {
	if states <= 1 {
		return 0
	}
	return float64(index) / float64(states-1)
}

// StateWeights writes into buf the normalized probability of each state of a
// feature with the given state count, relative to an anchor at anchorPos.
// A non-positive weight sum falls back to the uniform distribution.
func StateWeights(anchorPos float64, states int, rho float64, buf []float64) []float64 {
	buf = buf[:states]
	sum := 0.0
	for s := range buf {
		d := math.Abs(anchorPos - Position(s, states))
		p := (1-d)*(1+rho) + d*(1-rho)
		buf[s] = p
		sum += p
	}
	if sum <= 0 {
		for s := range buf {
			buf[s] = 1 / float64(states)
		}
		return buf
	}
	for s := range buf {
		buf[s] /= sum
	}
	return buf
}

// SampleCategorical walks the cumulative distribution of probs and returns
// the first index whose cumulative probability reaches u. If rounding leaves
// the total just short of u, state 0 is returned.
func SampleCategorical(probs []float64, u float64) int {
	cumulative := 0.0
	for i, p := range probs {
		cumulative += p
		if u <= cumulative {
			return i
		}
	}
	return 0
}
