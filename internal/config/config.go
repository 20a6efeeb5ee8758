// Package config loads cage settings from embedded defaults, an optional
// YAML file and CAGE_* environment variables, in that order.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/engine"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all configuration for a game and its surroundings.
type Config struct {
	Cage      CageConfig      `yaml:"cage"`
	Mouse     MouseConfig     `yaml:"mouse"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CageConfig holds scheduler and rule settings.
type CageConfig struct {
	MaxPopulation     int           `yaml:"max_population"`
	RoundLimit        int           `yaml:"round_limit"`
	StepBudget        uint64        `yaml:"step_budget"`
	TickDelay         time.Duration `yaml:"tick_delay"`
	FoundersPerPlayer int           `yaml:"founders_per_player"`
	DiscreteFights    bool          `yaml:"discrete_fights"`
	PreserveHistory   bool          `yaml:"preserve_history"`
	Headless          bool          `yaml:"headless"`
	BacklogLimit      int           `yaml:"backlog_limit"`
	Seed              uint64        `yaml:"seed"`
}

// MouseConfig holds founder traits and inheritance drift.
type MouseConfig struct {
	Founder  mouse.Traits   `yaml:"founder"`
	Mutation mouse.Mutation `yaml:"mutation"`
}

// StorageConfig configures the event recorder.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// ServerConfig configures the spectator server.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// TelemetryConfig configures CSV output.
type TelemetryConfig struct {
	CSVDir string `yaml:"csv_dir"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load merges the file at path (if any) over the defaults, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only keys present in the file overwrite defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would make a game meaningless.
func (c *Config) Validate() error {
	switch {
	case c.Cage.MaxPopulation < 1:
		return fmt.Errorf("%w: max_population must be positive, got %d", ErrInvalid, c.Cage.MaxPopulation)
	case c.Cage.RoundLimit < 1:
		return fmt.Errorf("%w: round_limit must be positive, got %d", ErrInvalid, c.Cage.RoundLimit)
	case c.Cage.StepBudget == 0:
		return fmt.Errorf("%w: step_budget must be positive", ErrInvalid)
	case c.Cage.TickDelay < 0:
		return fmt.Errorf("%w: tick_delay must be non-negative, got %v", ErrInvalid, c.Cage.TickDelay)
	case c.Cage.FoundersPerPlayer < 0:
		return fmt.Errorf("%w: founders_per_player must be non-negative, got %d", ErrInvalid, c.Cage.FoundersPerPlayer)
	case c.Mouse.Founder.Size <= 0:
		return fmt.Errorf("%w: founder size must be positive, got %g", ErrInvalid, c.Mouse.Founder.Size)
	case c.Mouse.Founder.Aggressiveness < 0 || c.Mouse.Founder.Fertility < 0:
		return fmt.Errorf("%w: founder counters must be non-negative", ErrInvalid)
	case c.Mouse.Mutation.Size < 0 || c.Mouse.Mutation.Size >= 1:
		return fmt.Errorf("%w: mutation size must be in [0, 1), got %g", ErrInvalid, c.Mouse.Mutation.Size)
	case c.Mouse.Mutation.Trait < 0:
		return fmt.Errorf("%w: mutation trait must be non-negative, got %d", ErrInvalid, c.Mouse.Mutation.Trait)
	}

	validLevels := map[string]bool{"": true, "info": true, "debug": true, "trace": true, "warn": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("%w: log level %q (valid: info, debug, trace, warn)", ErrInvalid, c.Logging.Level)
	}
	return nil
}

// Options converts the config into engine options. A zero seed is
// replaced by one derived from the clock.
func (c *Config) Options() engine.Options {
	seed := c.Cage.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return engine.Options{
		MaxPopulation:     c.Cage.MaxPopulation,
		RoundLimit:        c.Cage.RoundLimit,
		StepBudget:        c.Cage.StepBudget,
		TickDelay:         c.Cage.TickDelay,
		FoundersPerPlayer: c.Cage.FoundersPerPlayer,
		Founder:           c.Mouse.Founder,
		Mutation:          c.Mouse.Mutation,
		Seed:              seed,
		DiscreteFights:    c.Cage.DiscreteFights,
		PreserveHistory:   c.Cage.PreserveHistory,
		Headless:          c.Cage.Headless,
		BacklogLimit:      c.Cage.BacklogLimit,
	}
}

// WriteYAML writes the config to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func applyEnvOverrides(c *Config) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"CAGE_MAX_POPULATION", &c.Cage.MaxPopulation},
		{"CAGE_ROUND_LIMIT", &c.Cage.RoundLimit},
		{"CAGE_FOUNDERS_PER_PLAYER", &c.Cage.FoundersPerPlayer},
	}
	for _, o := range ints {
		if v := os.Getenv(o.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", o.name, err)
			}
			*o.dst = n
		}
	}

	if v := os.Getenv("CAGE_STEP_BUDGET"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CAGE_STEP_BUDGET: %w", err)
		}
		c.Cage.StepBudget = n
	}
	if v := os.Getenv("CAGE_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CAGE_SEED: %w", err)
		}
		c.Cage.Seed = n
	}
	if v := os.Getenv("CAGE_TICK_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CAGE_TICK_DELAY: %w", err)
		}
		c.Cage.TickDelay = d
	}
	if v := os.Getenv("CAGE_HEADLESS"); v != "" {
		c.Cage.Headless = v == "true" || v == "1"
	}
	if v := os.Getenv("CAGE_DISCRETE_FIGHTS"); v != "" {
		c.Cage.DiscreteFights = v == "true" || v == "1"
	}
	if v := os.Getenv("CAGE_SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := os.Getenv("CAGE_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("CAGE_CSV_DIR"); v != "" {
		c.Telemetry.CSVDir = v
	}
	if v := os.Getenv("CAGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}
