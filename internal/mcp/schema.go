package mcp

import (
	"github.com/nvandessel/axelrod/internal/batch"
	"github.com/nvandessel/axelrod/internal/culture"
	"github.com/nvandessel/axelrod/internal/metrics"
	"github.com/nvandessel/axelrod/internal/store"
	"github.com/nvandessel/axelrod/internal/templates"
)

// RunInput defines the input for the axelrod_run tool.
type RunInput struct {
	GridSize    int                   `json:"grid_size,omitempty" jsonschema:"Side length N of the N x N grid (default 10)"`
	F           int                   `json:"f,omitempty" jsonschema:"Number of categorical features when no features or template are given (default 5)"`
	Q           int                   `json:"q,omitempty" jsonschema:"States per categorical feature (default 10)"`
	Features    []culture.FeatureSpec `json:"features,omitempty" jsonschema:"Explicit feature list; takes precedence over template and f/q"`
	Template    string                `json:"template,omitempty" jsonschema:"Built-in feature template key, e.g. urban-rural"`
	Variant     string                `json:"variant,omitempty" jsonschema:"Interaction rule: full-exchange, ordered-transition or similarity-gated"`
	Initializer string                `json:"initializer,omitempty" jsonschema:"Grid initializer: uniform or correlated"`
	Correlation *float64              `json:"correlation,omitempty" jsonschema:"Correlation rho in [-1, 1] for the correlated initializer; defaults to the template's"`
	MaxSteps    int                   `json:"max_steps,omitempty" jsonschema:"Step budget (default 1000000)"`
	Seed        *int64                `json:"seed,omitempty" jsonschema:"PRNG seed; omitted seeds from the clock"`
	IncludeGrid bool                  `json:"include_grid,omitempty" jsonschema:"Return the terminal grid as rows x cols x features"`
	Save        bool                  `json:"save,omitempty" jsonschema:"Persist the run to the results database"`
}

// RunOutput defines the output for the axelrod_run tool.
type RunOutput struct {
	RunID    string                `json:"run_id,omitempty" jsonschema:"ID of the stored run when save was set"`
	Seed     int64                 `json:"seed" jsonschema:"Seed the trajectory used"`
	State    string                `json:"state" jsonschema:"Terminal state: absorbed or budget_exceeded"`
	Summary  metrics.Summary       `json:"summary" jsonschema:"Terminal metrics"`
	Features []culture.FeatureSpec `json:"features" jsonschema:"Features the run used"`
	Grid     [][][]int             `json:"grid,omitempty" jsonschema:"Terminal grid when include_grid was set"`
}

// SweepInput defines the input for the axelrod_sweep tool. Zero fields keep
// the case study's defaults.
type SweepInput struct {
	Kind         string        `json:"kind" jsonschema:"Case study: fvsq, grid-size, ordered-ratio or correlation"`
	Runs         int           `json:"runs,omitempty" jsonschema:"Trajectories per parameter point"`
	GridSize     int           `json:"grid_size,omitempty" jsonschema:"Grid side length for fvsq, ordered-ratio and correlation"`
	MaxSteps     int           `json:"max_steps,omitempty" jsonschema:"Step budget per trajectory"`
	BaseSeed     int64         `json:"base_seed,omitempty" jsonschema:"Seed of trajectory 0; trajectory i uses base_seed + i"`
	Variant      string        `json:"variant,omitempty" jsonschema:"Override the case study's interaction rule"`
	FValues      []int         `json:"f_values,omitempty" jsonschema:"fvsq: feature counts to sweep"`
	QValues      []int         `json:"q_values,omitempty" jsonschema:"fvsq: state counts to sweep"`
	GridSizes    []int         `json:"grid_sizes,omitempty" jsonschema:"grid-size: grid side lengths to sweep"`
	F            int           `json:"f,omitempty" jsonschema:"grid-size: features per agent"`
	Q            int           `json:"q,omitempty" jsonschema:"grid-size and ordered-ratio: states per feature"`
	Splits       []batch.Split `json:"splits,omitempty" jsonschema:"ordered-ratio: (ordered, unordered) feature splits"`
	Correlations []float64     `json:"correlations,omitempty" jsonschema:"correlation: rho values to sweep"`
	Template     string        `json:"template,omitempty" jsonschema:"correlation: feature template key"`
	NoSave       bool          `json:"no_save,omitempty" jsonschema:"Skip persisting the sweep"`
}

// SweepOutput defines the output for the axelrod_sweep tool.
type SweepOutput struct {
	SweepID      string                 `json:"sweep_id,omitempty" jsonschema:"ID of the stored sweep"`
	Kind         string                 `json:"kind" jsonschema:"Case study that ran"`
	Trajectories int                    `json:"trajectories" jsonschema:"Number of trajectories run"`
	Aggregates   []batch.PointAggregate `json:"aggregates" jsonschema:"Per parameter point statistics"`
	ElapsedMs    int64                  `json:"elapsed_ms" jsonschema:"Wall-clock duration of the sweep"`
}

// ResultsInput defines the input for the axelrod_results tool.
type ResultsInput struct {
	SweepID string `json:"sweep_id,omitempty" jsonschema:"Show runs and aggregates of this sweep; omitted lists recent sweeps and standalone runs"`
	Label   string `json:"label,omitempty" jsonschema:"Restrict runs to one parameter point, e.g. F=3,q=5"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of rows (default 20)"`
}

// ResultsOutput defines the output for the axelrod_results tool.
type ResultsOutput struct {
	Sweeps     []store.SweepRecord    `json:"sweeps,omitempty" jsonschema:"Stored sweeps, most recent first"`
	Runs       []store.RunRecord      `json:"runs,omitempty" jsonschema:"Stored runs"`
	Aggregates []batch.PointAggregate `json:"aggregates,omitempty" jsonschema:"Aggregates recomputed from the sweep's stored runs"`
	Count      int                    `json:"count" jsonschema:"Number of runs returned"`
}

// TemplatesInput defines the input for the axelrod_templates tool.
type TemplatesInput struct{}

// TemplatesOutput defines the output for the axelrod_templates tool.
type TemplatesOutput struct {
	Templates []templates.Template `json:"templates" jsonschema:"Built-in feature templates"`
	Count     int                  `json:"count" jsonschema:"Number of templates"`
}

// BackupInput defines the input for the axelrod_backup tool.
type BackupInput struct {
	Output string `json:"output,omitempty" jsonschema:"Archive path inside the backup directory; omitted generates a timestamped name"`
	Keep   int    `json:"keep,omitempty" jsonschema:"Keep only this many most recent archives in the backup directory after writing"`
}

// BackupOutput defines the output for the axelrod_backup tool.
type BackupOutput struct {
	Path    string   `json:"path" jsonschema:"Path of the written archive"`
	Sweeps  int      `json:"sweeps" jsonschema:"Number of sweeps archived"`
	Runs    int      `json:"runs" jsonschema:"Number of runs archived"`
	Deleted []string `json:"deleted,omitempty" jsonschema:"Archives removed by retention"`
}
