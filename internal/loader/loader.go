// Package loader handles daemon configuration: loading the YAML file,
// expanding environment variables, validating, and applying the sensor
// inventory to an engine.
package loader

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/sectorq/internal/engine"
	engineconfig "github.com/xtxerr/sectorq/internal/engine/config"
	"github.com/xtxerr/sectorq/internal/engine/types"
	"github.com/xtxerr/sectorq/internal/errors"
)

// =============================================================================
// Types
// =============================================================================

// Config is the daemon-level configuration: engine tuning plus the
// sensor inventory and the surfaces around the engine.
type Config struct {
	Log      LogConfig            `yaml:"log"`
	Metrics  MetricsConfig        `yaml:"metrics"`
	Engine   *engineconfig.Config `yaml:"engine"`
	Uploader UploaderConfig       `yaml:"uploader"`

	// StepInterval is the host loop tick driving engine.Step.
	StepInterval time.Duration `yaml:"step_interval"`

	Sensors []SensorConfig `yaml:"sensors"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig configures the Prometheus endpoint. An empty listen
// address disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// UploaderConfig configures the upstream drain.
type UploaderConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Endpoint string        `yaml:"endpoint"`
	Interval time.Duration `yaml:"interval"`
	Batch    int           `yaml:"batch"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SensorConfig declares one sensor to register at startup.
type SensorConfig struct {
	Source string `yaml:"source"`
	ID     string `yaml:"id"`
	Kind   string `yaml:"kind"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log:          LogConfig{Level: "info"},
		Metrics:      MetricsConfig{Listen: ":9464"},
		Engine:       engineconfig.DefaultConfig(),
		StepInterval: 250 * time.Millisecond,
		Uploader: UploaderConfig{
			Interval: time.Second,
			Batch:    256,
			Timeout:  10 * time.Second,
		},
	}
}

// =============================================================================
// Load
// =============================================================================

// Load loads daemon configuration from a YAML file. Environment
// variables in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if cfg.Engine == nil {
		cfg.Engine = engineconfig.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// =============================================================================
// Validate
// =============================================================================

// Validate checks the daemon configuration, including the embedded
// engine section and every sensor declaration.
func (c *Config) Validate() error {
	var errs []error

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, errors.NewValidation("log.level", fmt.Sprintf("unknown level %q", c.Log.Level)))
	}

	if c.StepInterval <= 0 {
		errs = append(errs, errors.NewValidation("step_interval", "must be positive"))
	}

	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Uploader.Enabled && c.Uploader.Endpoint == "" {
		errs = append(errs, errors.NewValidation("uploader.endpoint", "required when uploader is enabled"))
	}
	if c.Uploader.Interval < 0 {
		errs = append(errs, errors.NewValidation("uploader.interval", "must not be negative"))
	}
	if c.Uploader.Batch < 0 {
		errs = append(errs, errors.NewValidation("uploader.batch", "must not be negative"))
	}

	seen := make(map[string]bool)
	for i, s := range c.Sensors {
		if s.ID == "" {
			errs = append(errs, errors.NewValidation(fmt.Sprintf("sensors[%d].id", i), "cannot be empty"))
		}
		if _, ok := types.ParseSource(s.Source); !ok {
			errs = append(errs, errors.NewValidation(fmt.Sprintf("sensors[%d].source", i), fmt.Sprintf("unknown source %q", s.Source)))
		}
		if _, ok := types.ParseRecordKind(s.Kind); !ok {
			errs = append(errs, errors.NewValidation(fmt.Sprintf("sensors[%d].kind", i), fmt.Sprintf("unknown kind %q", s.Kind)))
		}
		key := s.Source + "/" + s.ID
		if seen[key] {
			errs = append(errs, errors.NewValidation(fmt.Sprintf("sensors[%d]", i), "duplicate sensor "+key))
		}
		seen[key] = true
	}

	return errors.Join(errs...)
}

// =============================================================================
// Apply
// =============================================================================

// Apply registers every declared sensor with the engine. The config
// must have been validated.
func Apply(cfg *Config, eng *engine.Engine) error {
	for _, s := range cfg.Sensors {
		source, ok := types.ParseSource(s.Source)
		if !ok {
			return errors.NewValidation("sensor "+s.ID, fmt.Sprintf("unknown source %q", s.Source))
		}
		kind, ok := types.ParseRecordKind(s.Kind)
		if !ok {
			return errors.NewValidation("sensor "+s.ID, fmt.Sprintf("unknown kind %q", s.Kind))
		}
		if err := eng.Register(source, s.ID, kind); err != nil {
			return errors.Wrapf(err, "register sensor %s/%s", s.Source, s.ID)
		}
	}
	return nil
}
