package engine

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/nvandessel/axelrod/internal/culture"
)

// Variant names one of the interaction dynamics.
type Variant int

const (
	// FullExchange adopts every feature wholesale, ignoring order.
	FullExchange Variant = iota

	// OrderedTransition steps ordered features by one and copies
	// categorical features.
	OrderedTransition

	// SimilarityGated behaves like OrderedTransition but an interactable
	// pair only interacts with probability shared/F.
	SimilarityGated
)

var variantNames = map[Variant]string{
	FullExchange:      "full-exchange",
	OrderedTransition: "ordered-transition",
	SimilarityGated:   "similarity-gated",
}

// String returns the variant name used in config and CLI flags.
func (v Variant) String() string {
	if s, ok := variantNames[v]; ok {
		return s
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// ParseVariant maps a name to a Variant. Matching is case-insensitive.
func ParseVariant(s string) (Variant, error) {
	for v, name := range variantNames {
		if strings.EqualFold(s, name) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown variant %q (valid: full-exchange, ordered-transition, similarity-gated)", ErrInvalidConfiguration, s)
}

// Variants lists every variant in declaration order.
func Variants() []Variant {
	return []Variant{FullExchange, OrderedTransition, SimilarityGated}
}

// Rule applies one interaction to a pair of adjacent cells that already
// passed the 0 < shared < F test. It reports whether the grid changed.
type Rule interface {
	Interact(g *culture.Grid, a, b culture.Pos, shared int, rng *rand.Rand) bool
}

// RuleFor returns the interaction rule of a variant.
func RuleFor(v Variant) (Rule, error) {
	switch v {
	case FullExchange:
		return fullExchange{}, nil
	case OrderedTransition:
		return orderedTransition{}, nil
	case SimilarityGated:
		return similarityGated{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown variant %d", ErrInvalidConfiguration, int(v))
	}
}

type fullExchange struct{}

func (fullExchange) Interact(g *culture.Grid, a, b culture.Pos, _ int, rng *rand.Rand) bool {
	return adopt(g, a, b, rng, func(int) culture.Policy { return culture.Categorical })
}

type orderedTransition struct{}

func (orderedTransition) Interact(g *culture.Grid, a, b culture.Pos, _ int, rng *rand.Rand) bool {
	return adopt(g, a, b, rng, featurePolicy(g))
}

type similarityGated struct{}

func (similarityGated) Interact(g *culture.Grid, a, b culture.Pos, shared int, rng *rand.Rand) bool {
	if rng.Float64() > float64(shared)/float64(g.NumFeatures()) {
		return false
	}
	return adopt(g, a, b, rng, featurePolicy(g))
}

func featurePolicy(g *culture.Grid) func(int) culture.Policy {
	return func(f int) culture.Policy { return g.Feature(f).Policy() }
}

// adopt picks a differing feature, a dominator, and updates the receiver.
func adopt(g *culture.Grid, a, b culture.Pos, rng *rand.Rand, policy func(int) culture.Policy) bool {
	var buf [16]int
	differing := g.Differing(a, b, buf[:0])
	if len(differing) == 0 {
		return false
	}
	f := differing[rng.Intn(len(differing))]

	dom, recv := a, b
	if rng.Float64() >= 0.5 {
		dom, recv = b, a
	}

	d, r := g.Get(dom.Row, dom.Col, f), g.Get(recv.Row, recv.Col, f)
	g.Set(recv.Row, recv.Col, f, policy(f).Adopt(d, r))
	return true
}
