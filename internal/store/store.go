// Package store persists finished trajectories and sweep aggregates.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/axelrod/internal/batch"
	"github.com/nvandessel/axelrod/internal/culture"
	"github.com/nvandessel/axelrod/internal/metrics"
)

// RunRecord is one stored trajectory.
type RunRecord struct {
	ID          string  `json:"id"`
	SweepID     string  `json:"sweep_id,omitempty"`
	Label       string  `json:"label,omitempty"`
	Index       int     `json:"index"`
	GridSize    int     `json:"grid_size"`
	NumFeatures int     `json:"num_features"`
	Variant     string  `json:"variant"`
	Initializer string  `json:"initializer"`
	Correlation float64 `json:"correlation"`
	Template    string  `json:"template,omitempty"`
	Seed        int64   `json:"seed"`

	// State is the terminal engine state, "absorbed" or "budget_exceeded".
	State string `json:"state"`

	Steps                   int     `json:"steps"`
	UniqueCultures          int     `json:"unique_cultures"`
	LargestDomainSize       int     `json:"largest_domain_size"`
	LargestDomainPercentage float64 `json:"largest_domain_percentage"`
	AvgCulturalDistance     float64 `json:"avg_cultural_distance"`

	Features  []culture.FeatureSpec `json:"features"`
	ElapsedMS int64                 `json:"elapsed_ms"`
	CreatedAt time.Time             `json:"created_at"`
}

// Summary returns the metrics the record was built from.
func (r RunRecord) Summary() metrics.Summary {
	return metrics.Summary{
		Steps:                   r.Steps,
		Absorbed:                r.State == "absorbed",
		UniqueCultures:          r.UniqueCultures,
		LargestDomainSize:       r.LargestDomainSize,
		LargestDomainPercentage: r.LargestDomainPercentage,
		AvgCulturalDistance:     r.AvgCulturalDistance,
	}
}

// NewRunRecord builds a record for res with a fresh ID. sweepID may be empty
// for a standalone run.
func NewRunRecord(res batch.Result, sweepID, template string) RunRecord {
	p := res.Task.Params
	features := p.Features
	if len(features) == 0 && p.Initial != nil {
		features = p.Initial.Features()
	}
	gridSize := p.GridSize
	if gridSize == 0 && p.Initial != nil {
		gridSize = p.Initial.Size()
	}
	return RunRecord{
		ID:                      uuid.New().String(),
		SweepID:                 sweepID,
		Label:                   res.Task.Label,
		Index:                   res.Task.Index,
		GridSize:                gridSize,
		NumFeatures:             len(features),
		Variant:                 p.Variant.String(),
		Initializer:             p.Init.String(),
		Correlation:             p.Correlation,
		Template:                template,
		Seed:                    res.Seed,
		State:                   res.State.String(),
		Steps:                   res.Summary.Steps,
		UniqueCultures:          res.Summary.UniqueCultures,
		LargestDomainSize:       res.Summary.LargestDomainSize,
		LargestDomainPercentage: res.Summary.LargestDomainPercentage,
		AvgCulturalDistance:     res.Summary.AvgCulturalDistance,
		Features:                features,
		ElapsedMS:               res.Elapsed.Milliseconds(),
	}
}

// SweepRecord is one stored case study with its per-point aggregates.
type SweepRecord struct {
	ID           string                 `json:"id"`
	Kind         string                 `json:"kind"`
	Study        batch.Study            `json:"study"`
	Trajectories int                    `json:"trajectories"`
	Aggregates   []batch.PointAggregate `json:"aggregates"`
	ElapsedMS    int64                  `json:"elapsed_ms"`
	CreatedAt    time.Time              `json:"created_at"`
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	SweepID string
	Label   string

	// Limit caps the number of records. Zero means no limit.
	Limit int
}

// ResultStore is implemented by SQLiteStore.
type ResultStore interface {
	SaveRun(ctx context.Context, rec *RunRecord) error
	SaveSweep(ctx context.Context, sr *batch.SweepResult) (*SweepRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)
	ListSweeps(ctx context.Context, limit int) ([]SweepRecord, error)
	GetSweep(ctx context.Context, id string) (*SweepRecord, error)
	AggregateSweep(ctx context.Context, id string) ([]batch.PointAggregate, error)

	// ImportSweep and ImportRun store records with their existing IDs,
	// skipping records already present.
	ImportSweep(ctx context.Context, rec *SweepRecord) (bool, error)
	ImportRun(ctx context.Context, rec *RunRecord) (bool, error)

	Close() error
}
