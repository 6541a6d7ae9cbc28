// Package metrics summarizes terminal grids and aggregates batches of
// trajectory summaries.
package metrics

import (
	"math"

	"github.com/nvandessel/axelrod/internal/culture"
)

// Summary holds the statistics of one finished trajectory.
type Summary struct {
	Steps                   int     `json:"steps"`
	Absorbed                bool    `json:"absorbed"`
	UniqueCultures          int     `json:"unique_cultures"`
	LargestDomainSize       int     `json:"largest_domain_size"`
	LargestDomainPercentage float64 `json:"largest_domain_percentage"`
	AvgCulturalDistance     float64 `json:"avg_cultural_distance"`
}

// Calculate computes the summary of g after steps steps. Absorbed is left
// for the caller to fill from the engine's terminal state.
func Calculate(g *culture.Grid, steps int) Summary {
	size, pct := LargestDomain(g)
	return Summary{
		Steps:                   steps,
		UniqueCultures:          UniqueCultures(g),
		LargestDomainSize:       size,
		LargestDomainPercentage: pct,
		AvgCulturalDistance:     AvgCulturalDistance(g),
	}
}

func cultureCounts(g *culture.Grid) map[string]int {
	counts := make(map[string]int)
	for r := 0; r < g.Size(); r++ {
		for c := 0; c < g.Size(); c++ {
			counts[g.Key(r, c)]++
		}
	}
	return counts
}

// UniqueCultures counts distinct feature vectors across the grid.
func UniqueCultures(g *culture.Grid) int {
	return len(cultureCounts(g))
}

// LargestDomain returns the frequency of the most common feature vector and
// that frequency as a percentage of N². This is a global tally over the whole
// grid; cells sharing a culture need not be connected.
func LargestDomain(g *culture.Grid) (int, float64) {
	largest := 0
	for _, n := range cultureCounts(g) {
		if n > largest {
			largest = n
		}
	}
	return largest, float64(largest) / float64(g.Cells()) * 100
}

// AvgCulturalDistance is the mean fraction of differing features over every
// right-neighbour and down-neighbour pair.
func AvgCulturalDistance(g *culture.Grid) float64 {
	n, f := g.Size(), g.NumFeatures()
	total, pairs := 0.0, 0
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			here := culture.Pos{Row: r, Col: c}
			if c+1 < n {
				total += float64(f-g.Similarity(here, culture.Pos{Row: r, Col: c + 1})) / float64(f)
				pairs++
			}
			if r+1 < n {
				total += float64(f-g.Similarity(here, culture.Pos{Row: r + 1, Col: c})) / float64(f)
				pairs++
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

// Stat is the mean, population standard deviation, min and max of a sample.
type Stat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Describe computes a Stat. An empty sample yields the zero Stat.
func Describe(xs []float64) Stat {
	if len(xs) == 0 {
		return Stat{}
	}
	s := Stat{Min: xs[0], Max: xs[0]}
	sum := 0.0
	for _, x := range xs {
		sum += x
		s.Min = math.Min(s.Min, x)
		s.Max = math.Max(s.Max, x)
	}
	s.Mean = sum / float64(len(xs))
	sq := 0.0
	for _, x := range xs {
		d := x - s.Mean
		sq += d * d
	}
	s.Std = math.Sqrt(sq / float64(len(xs)))
	return s
}

// Aggregate condenses the summaries of one parameter point.
type Aggregate struct {
	Runs                int     `json:"runs"`
	Steps               Stat    `json:"steps"`
	UniqueCultures      Stat    `json:"unique_cultures"`
	LargestDomain       Stat    `json:"largest_domain_percentage"`
	AvgCulturalDistance Stat    `json:"avg_cultural_distance"`
	ProbGlobalConsensus float64 `json:"prob_global_consensus"`
	AbsorbedFraction    float64 `json:"absorbed_fraction"`
}

// AggregateSummaries computes per-metric statistics plus the fraction of
// runs that ended in global consensus (a single culture) and the fraction
// that absorbed within budget.
func AggregateSummaries(runs []Summary) Aggregate {
	agg := Aggregate{Runs: len(runs)}
	if len(runs) == 0 {
		return agg
	}

	steps := make([]float64, len(runs))
	unique := make([]float64, len(runs))
	domain := make([]float64, len(runs))
	distance := make([]float64, len(runs))
	consensus, absorbed := 0, 0
	for i, r := range runs {
		steps[i] = float64(r.Steps)
		unique[i] = float64(r.UniqueCultures)
		domain[i] = r.LargestDomainPercentage
		distance[i] = r.AvgCulturalDistance
		if r.UniqueCultures == 1 {
			consensus++
		}
		if r.Absorbed {
			absorbed++
		}
	}

	agg.Steps = Describe(steps)
	agg.UniqueCultures = Describe(unique)
	agg.LargestDomain = Describe(domain)
	agg.AvgCulturalDistance = Describe(distance)
	agg.ProbGlobalConsensus = float64(consensus) / float64(len(runs))
	agg.AbsorbedFraction = float64(absorbed) / float64(len(runs))
	return agg
}
