// Package config provides unified configuration loading for axelrod.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/axelrod/internal/culture"
	"github.com/nvandessel/axelrod/internal/engine"
	"github.com/nvandessel/axelrod/internal/logging"
	"github.com/nvandessel/axelrod/internal/templates"
)

// StudyConfig contains all axelrod configuration settings.
type StudyConfig struct {
	// Simulation describes a single trajectory.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Batch controls how many trajectories run and on how many workers.
	Batch BatchConfig `json:"batch" yaml:"batch"`

	// Storage configures where finished runs are persisted.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Backup configures results archives.
	Backup BackupConfig `json:"backup" yaml:"backup"`
}

// SimulationConfig describes the model a trajectory runs.
type SimulationConfig struct {
	GridSize int `json:"grid_size" yaml:"grid_size"`
	MaxSteps int `json:"max_steps" yaml:"max_steps"`

	// Seed fixes the PRNG of a single run. Nil seeds from the clock.
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// Variant is "full-exchange", "ordered-transition" or "similarity-gated".
	Variant string `json:"variant" yaml:"variant"`

	// Initializer is "uniform" or "correlated".
	Initializer string `json:"initializer" yaml:"initializer"`

	// Correlation overrides the template's correlation when set.
	Correlation *float64 `json:"correlation,omitempty" yaml:"correlation,omitempty"`

	// Features are used in order of precedence: Features, Template, then
	// F categorical features with Q states each.
	Features []culture.FeatureSpec `json:"features,omitempty" yaml:"features,omitempty"`
	Template string                `json:"template,omitempty" yaml:"template,omitempty"`
	F        int                   `json:"f" yaml:"f"`
	Q        int                   `json:"q" yaml:"q"`
}

// BatchConfig configures multi-run execution.
type BatchConfig struct {
	// Workers bounds concurrency. Zero uses every CPU.
	Workers  int   `json:"workers" yaml:"workers"`
	Runs     int   `json:"runs" yaml:"runs"`
	BaseSeed int64 `json:"base_seed" yaml:"base_seed"`
}

// StorageConfig configures the result database.
type StorageConfig struct {
	// DatabasePath is the SQLite file. Empty means ~/.axelrod/results.db.
	DatabasePath string `json:"database_path,omitempty" yaml:"database_path,omitempty"`
}

// BackupConfig configures where archives go and how many are kept.
type BackupConfig struct {
	// Dir is the archive directory. Empty means ~/.axelrod/backups.
	Dir       string          `json:"dir,omitempty" yaml:"dir,omitempty"`
	Retention RetentionConfig `json:"retention" yaml:"retention"`
}

// RetentionConfig bounds the archives kept after each backup. A backup
// survives if any set limit keeps it.
type RetentionConfig struct {
	MaxCount int    `json:"max_count" yaml:"max_count"`
	MaxAge   string `json:"max_age,omitempty" yaml:"max_age,omitempty"` // e.g. "30d", "2w"
}

// LoggingConfig configures axelrod's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables event logging to ~/.axelrod/events.jsonl.
	// "trace" additionally logs every finished trajectory to stderr.
	Level string `json:"level" yaml:"level"`
}

// Default returns a StudyConfig with sensible defaults.
func Default() *StudyConfig {
	return &StudyConfig{
		Simulation: SimulationConfig{
			GridSize:    10,
			MaxSteps:    1_000_000,
			Variant:     engine.FullExchange.String(),
			Initializer: engine.InitUniform.String(),
			F:           5,
			Q:           10,
		},
		Batch: BatchConfig{
			Workers:  0,
			Runs:     10,
			BaseSeed: 42,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Backup: BackupConfig{
			Retention: RetentionConfig{MaxCount: 10},
		},
	}
}

// Dir returns ~/.axelrod.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".axelrod"), nil
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.axelrod/config.yaml -> environment variables
func Load() (*StudyConfig, error) {
	return LoadPath("")
}

// LoadPath is Load with an explicit config file in place of
// ~/.axelrod/config.yaml. An explicit file must exist.
func LoadPath(path string) (*StudyConfig, error) {
	config := Default()

	if path == "" {
		if defaultPath, err := Path(); err == nil {
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				path = defaultPath
			}
		}
	}

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*StudyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Save writes the configuration as YAML to path, creating its directory.
func Save(config *StudyConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *StudyConfig) Validate() error {
	if c.Batch.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Batch.Workers)
	}
	if c.Batch.Runs < 1 {
		return fmt.Errorf("runs must be >= 1, got %d", c.Batch.Runs)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}
	if c.Backup.Retention.MaxCount < 0 {
		return fmt.Errorf("backup max_count must be non-negative, got %d", c.Backup.Retention.MaxCount)
	}

	p, err := c.EngineParams()
	if err != nil {
		return err
	}
	return p.Validate()
}

// ResolveFeatures returns the feature list and correlation a trajectory uses.
func (s SimulationConfig) ResolveFeatures() ([]culture.FeatureSpec, float64, error) {
	var (
		features []culture.FeatureSpec
		rho      float64
	)
	switch {
	case len(s.Features) > 0:
		features = s.Features
	case s.Template != "":
		tmpl, err := templates.Get(s.Template)
		if err != nil {
			return nil, 0, err
		}
		features, rho = tmpl.Features, tmpl.Correlation
	default:
		if s.F < 1 || s.Q < 1 {
			return nil, 0, fmt.Errorf("%w: need f >= 1 and q >= 1, got f=%d q=%d", engine.ErrInvalidConfiguration, s.F, s.Q)
		}
		features = culture.UniformFeatures(s.F, s.Q, false)
	}
	if s.Correlation != nil {
		rho = *s.Correlation
	}
	return features, rho, nil
}

// EngineParams converts the simulation section into engine parameters.
func (c *StudyConfig) EngineParams() (engine.Params, error) {
	s := c.Simulation
	features, rho, err := s.ResolveFeatures()
	if err != nil {
		return engine.Params{}, err
	}
	variant, err := engine.ParseVariant(s.Variant)
	if err != nil {
		return engine.Params{}, err
	}
	init, err := engine.ParseInitKind(s.Initializer)
	if err != nil {
		return engine.Params{}, err
	}
	return engine.Params{
		GridSize:    s.GridSize,
		Features:    features,
		Variant:     variant,
		Init:        init,
		Correlation: rho,
		MaxSteps:    s.MaxSteps,
		Seed:        s.Seed,
	}, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *StudyConfig) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"AXELROD_GRID_SIZE", &config.Simulation.GridSize},
		{"AXELROD_MAX_STEPS", &config.Simulation.MaxSteps},
		{"AXELROD_WORKERS", &config.Batch.Workers},
		{"AXELROD_RUNS", &config.Batch.Runs},
	}
	for _, e := range ints {
		if v := os.Getenv(e.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %q", e.name, v)
			}
			*e.dst = n
		}
	}

	if v := os.Getenv("AXELROD_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid AXELROD_SEED: %q", v)
		}
		config.Simulation.Seed = &n
		config.Batch.BaseSeed = n
	}

	if v := os.Getenv("AXELROD_VARIANT"); v != "" {
		config.Simulation.Variant = v
	}

	if v := os.Getenv("AXELROD_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("AXELROD_DB_PATH"); v != "" {
		config.Storage.DatabasePath = v
	}
	return nil
}
