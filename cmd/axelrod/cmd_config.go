package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nvandessel/axelrod/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage axelrod configuration",
		Long: `View and modify axelrod configuration settings.

Configuration is stored in ~/.axelrod/config.yaml (or the --config file).
Environment variables (AXELROD_GRID_SIZE, AXELROD_MAX_STEPS, AXELROD_SEED,
AXELROD_VARIANT, AXELROD_WORKERS, AXELROD_RUNS, AXELROD_LOG_LEVEL,
AXELROD_DB_PATH) override the file.

Examples:
  axelrod config list                          # Show all settings
  axelrod config get simulation.grid_size      # Get a specific setting
  axelrod config set simulation.variant ordered-transition
  axelrod config set batch.workers 8`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

// configKeys lists every key get and set understand, in display order.
var configKeys = []string{
	"simulation.grid_size",
	"simulation.max_steps",
	"simulation.seed",
	"simulation.variant",
	"simulation.initializer",
	"simulation.correlation",
	"simulation.template",
	"simulation.f",
	"simulation.q",
	"batch.workers",
	"batch.runs",
	"batch.base_seed",
	"storage.database_path",
	"logging.level",
	"backup.dir",
	"backup.retention.max_count",
	"backup.retention.max_age",
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd, cfg)
			}

			out := cmd.OutOrStdout()
			path, _ := configFilePath(cmd)
			fmt.Fprintf(out, "Configuration (%s):\n\n", path)
			for _, key := range configKeys {
				value, _ := getConfigValue(cfg, key)
				fmt.Fprintf(out, "  %-28s %v\n", key+":", value)
			}
			if len(cfg.Simulation.Features) > 0 {
				fmt.Fprintf(out, "  %-28s %d explicit features\n", "simulation.features:", len(cfg.Simulation.Features))
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return printJSON(cmd, map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path, err := configFilePath(cmd)
			if err != nil {
				return err
			}

			// Edit the file alone so environment overrides are not persisted.
			cfg := config.Default()
			if _, statErr := os.Stat(path); statErr == nil {
				if cfg, err = config.LoadFromFile(path); err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd, map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// configFilePath returns the --config file, or ~/.axelrod/config.yaml.
func configFilePath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return config.Path()
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.StudyConfig, key string) (interface{}, bool) {
	switch key {
	case "simulation.grid_size":
		return cfg.Simulation.GridSize, true
	case "simulation.max_steps":
		return cfg.Simulation.MaxSteps, true
	case "simulation.seed":
		if cfg.Simulation.Seed == nil {
			return "(clock)", true
		}
		return *cfg.Simulation.Seed, true
	case "simulation.variant":
		return cfg.Simulation.Variant, true
	case "simulation.initializer":
		return cfg.Simulation.Initializer, true
	case "simulation.correlation":
		if cfg.Simulation.Correlation == nil {
			return "(template default)", true
		}
		return *cfg.Simulation.Correlation, true
	case "simulation.template":
		return valueOrDefault(cfg.Simulation.Template, "(not set)"), true
	case "simulation.f":
		return cfg.Simulation.F, true
	case "simulation.q":
		return cfg.Simulation.Q, true
	case "batch.workers":
		return cfg.Batch.Workers, true
	case "batch.runs":
		return cfg.Batch.Runs, true
	case "batch.base_seed":
		return cfg.Batch.BaseSeed, true
	case "storage.database_path":
		return valueOrDefault(cfg.Storage.DatabasePath, "(default)"), true
	case "logging.level":
		return cfg.Logging.Level, true
	case "backup.dir":
		return valueOrDefault(cfg.Backup.Dir, "(default)"), true
	case "backup.retention.max_count":
		return cfg.Backup.Retention.MaxCount, true
	case "backup.retention.max_age":
		return valueOrDefault(cfg.Backup.Retention.MaxAge, "(not set)"), true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key. An empty
// value clears optional settings.
func setConfigValue(cfg *config.StudyConfig, key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %s", key, value)
		}
		return n, nil
	}

	var err error
	switch key {
	case "simulation.grid_size":
		cfg.Simulation.GridSize, err = atoi()
	case "simulation.max_steps":
		cfg.Simulation.MaxSteps, err = atoi()
	case "simulation.seed":
		if value == "" {
			cfg.Simulation.Seed = nil
			return nil
		}
		n, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid seed: %s", value)
		}
		cfg.Simulation.Seed = &n
	case "simulation.variant":
		cfg.Simulation.Variant = value
	case "simulation.initializer":
		cfg.Simulation.Initializer = value
	case "simulation.correlation":
		if value == "" {
			cfg.Simulation.Correlation = nil
			return nil
		}
		f, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("invalid correlation: %s (must be a number between -1 and 1)", value)
		}
		cfg.Simulation.Correlation = &f
	case "simulation.template":
		cfg.Simulation.Template = value
	case "simulation.f":
		cfg.Simulation.F, err = atoi()
	case "simulation.q":
		cfg.Simulation.Q, err = atoi()
	case "batch.workers":
		cfg.Batch.Workers, err = atoi()
	case "batch.runs":
		cfg.Batch.Runs, err = atoi()
	case "batch.base_seed":
		n, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid base seed: %s", value)
		}
		cfg.Batch.BaseSeed = n
	case "storage.database_path":
		cfg.Storage.DatabasePath = value
	case "logging.level":
		cfg.Logging.Level = value
	case "backup.dir":
		cfg.Backup.Dir = value
	case "backup.retention.max_count":
		cfg.Backup.Retention.MaxCount, err = atoi()
	case "backup.retention.max_age":
		cfg.Backup.Retention.MaxAge = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return err
}
