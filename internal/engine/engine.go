// Package engine runs one trajectory of Axelrod's cultural dissemination
// model: it samples adjacent pairs, applies the configured interaction rule
// and detects when the grid has frozen into an absorbing configuration.
//
// An Engine is a sequential Markov chain with a private PRNG. It is not safe
// for concurrent use; run independent trajectories on independent engines.
package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/nvandessel/axelrod/internal/culture"
)

// ErrInvalidConfiguration is wrapped by every construction-time validation error.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ErrHalted is returned by Step once the engine has reached a terminal state.
var ErrHalted = errors.New("engine halted")

// State is the lifecycle state of an engine.
type State int

const (
	Running        State = iota // still stepping
	Absorbed                    // no adjacent pair can interact
	BudgetExceeded              // max steps reached before absorption
)

// String returns the state name as reported to callers and stored results.
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Absorbed:
		return "absorbed"
	case BudgetExceeded:
		return "budget_exceeded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the signal returned by a single Step.
type Outcome int

const (
	Continued Outcome = iota
	Halt
)

// InitKind selects how a fresh grid is populated.
type InitKind int

const (
	InitUniform InitKind = iota
	InitCorrelated
)

// String returns the initializer name.
func (k InitKind) String() string {
	switch k {
	case InitUniform:
		return "uniform"
	case InitCorrelated:
		return "correlated"
	default:
		return fmt.Sprintf("init(%d)", int(k))
	}
}

// ParseInitKind maps "uniform" or "correlated" to an InitKind.
func ParseInitKind(s string) (InitKind, error) {
	switch strings.ToLower(s) {
	case "uniform", "":
		return InitUniform, nil
	case "correlated":
		return InitCorrelated, nil
	default:
		return 0, fmt.Errorf("%w: unknown initializer %q (valid: uniform, correlated)", ErrInvalidConfiguration, s)
	}
}

// Params configures a trajectory. All fields are validated by New.
type Params struct {
	// GridSize is N for an N×N grid. Must be >= 2.
	GridSize int

	// Features is the ordered feature list; F = len(Features) >= 1.
	Features []culture.FeatureSpec

	// Variant selects the interaction dynamics.
	Variant Variant

	// Init selects the grid initializer.
	Init InitKind

	// Correlation is rho for InitCorrelated, in [-1, 1].
	Correlation float64

	// MaxSteps is the step budget. Must be >= 1.
	MaxSteps int

	// Seed seeds the private PRNG. Nil draws a seed from the clock and the
	// trajectory is not reproducible.
	Seed *int64

	// Initial, when set, is copied as the starting grid instead of running
	// the initializer. GridSize and Features may then be left zero.
	Initial *culture.Grid
}

// Validate checks every parameter and returns an error wrapping
// ErrInvalidConfiguration on the first violation.
func (p Params) Validate() error {
	n, features := p.GridSize, p.Features
	if p.Initial != nil {
		if n == 0 {
			n = p.Initial.Size()
		}
		if features == nil {
			features = p.Initial.Features()
		}
		if n != p.Initial.Size() {
			return fmt.Errorf("%w: grid size %d does not match initial grid size %d", ErrInvalidConfiguration, n, p.Initial.Size())
		}
		if len(features) != p.Initial.NumFeatures() {
			return fmt.Errorf("%w: %d features do not match initial grid's %d", ErrInvalidConfiguration, len(features), p.Initial.NumFeatures())
		}
	}
	if n < 2 {
		return fmt.Errorf("%w: grid dimension must be >= 2, got %d", ErrInvalidConfiguration, n)
	}
	if err := culture.ValidateFeatures(features); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if err := culture.ValidateCorrelation(p.Correlation); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if p.MaxSteps < 1 {
		return fmt.Errorf("%w: max steps must be >= 1, got %d", ErrInvalidConfiguration, p.MaxSteps)
	}
	if _, err := RuleFor(p.Variant); err != nil {
		return err
	}
	if p.Init != InitUniform && p.Init != InitCorrelated {
		return fmt.Errorf("%w: unknown initializer %d", ErrInvalidConfiguration, int(p.Init))
	}
	return nil
}

// Initializer returns the culture initializer described by p.
func (p Params) Initializer() culture.Initializer {
	if p.Init == InitCorrelated {
		return culture.Correlated{Rho: p.Correlation}
	}
	return culture.Uniform{}
}

// Engine evolves one grid. Construct with New.
type Engine struct {
	grid     *culture.Grid
	rule     Rule
	rng      *rand.Rand
	seed     int64
	maxSteps int
	steps    int
	failed   int
	state    State
	nbuf     [4]culture.Pos
}

// New validates p, seeds the PRNG and populates the grid.
func New(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rule, _ := RuleFor(p.Variant)

	seed := time.Now().UnixNano()
	if p.Seed != nil {
		seed = *p.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	var grid *culture.Grid
	if p.Initial != nil {
		grid = p.Initial.Clone()
	} else {
		g, err := culture.NewGrid(p.GridSize, p.Features)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
		p.Initializer().Populate(g, rng)
		grid = g
	}

	return &Engine{
		grid:     grid,
		rule:     rule,
		rng:      rng,
		seed:     seed,
		maxSteps: p.MaxSteps,
		state:    Running,
	}, nil
}

// Step performs one stochastic transition attempt. It returns Halt when the
// step confirmed absorption, and ErrHalted if the engine was already terminal.
// The step that consumes the last unit of budget moves the engine to
// BudgetExceeded but still returns Continued.
func (e *Engine) Step() (Outcome, error) {
	if e.state != Running {
		return Halt, ErrHalted
	}
	e.steps++

	n := e.grid.Size()
	a := culture.Pos{Row: e.rng.Intn(n), Col: e.rng.Intn(n)}
	nbrs := culture.Neighbors(n, a.Row, a.Col, e.nbuf[:0])
	b := nbrs[e.rng.Intn(len(nbrs))]

	shared := e.grid.Similarity(a, b)
	if !CanInteract(shared, e.grid.NumFeatures()) {
		e.failed++
		if e.failed >= e.grid.Cells() {
			if IsAbsorbing(e.grid) {
				e.state = Absorbed
				return Halt, nil
			}
			e.failed = 0
		}
	} else {
		e.failed = 0
		e.rule.Interact(e.grid, a, b, shared, e.rng)
	}

	if e.steps >= e.maxSteps {
		e.state = BudgetExceeded
	}
	return Continued, nil
}

// Run steps until absorption or the budget is spent and returns the terminal
// state with the step count at halt. Calling Run on a terminal engine
// returns immediately.
func (e *Engine) Run() (State, int) {
	for e.state == Running {
		if out, err := e.Step(); err != nil || out == Halt {
			break
		}
	}
	return e.state, e.steps
}

// Snapshot returns an independent copy of the current grid.
func (e *Engine) Snapshot() *culture.Grid { return e.grid.Clone() }

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state }

// Steps returns the number of steps taken so far.
func (e *Engine) Steps() int { return e.steps }

// Seed returns the seed the PRNG was created with.
func (e *Engine) Seed() int64 { return e.seed }

// FailedInteractions returns the current run of consecutive failed attempts.
func (e *Engine) FailedInteractions() int { return e.failed }
