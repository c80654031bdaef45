package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/sectorq/internal/errors"
)

// Config represents the complete engine configuration.
type Config struct {
	// SpoolDir is the directory holding per-sensor disk spool files.
	SpoolDir string `yaml:"spool_dir"`

	// Pool configures the in-memory sector arena.
	Pool PoolConfig `yaml:"pool"`

	// Spool configures the disk spooling engine.
	Spool SpoolConfig `yaml:"spool"`

	// Scheduler configures the orchestrator step.
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// PoolConfig configures the in-memory sector arena.
type PoolConfig struct {
	// TotalSectors is the fixed number of sectors in the arena.
	TotalSectors int `yaml:"total_sectors"`

	// SectorCapacity is the number of records one sector holds. The
	// spool frame format caps it at 65535.
	SectorCapacity int `yaml:"sector_capacity"`
}

// SpoolConfig configures the disk spooling engine.
type SpoolConfig struct {
	// HighWater is the pool utilization (0.0-1.0) at which the
	// orchestrator starts spooling sectors to disk. The production
	// systems this engine was tuned on ran at 0.80.
	HighWater float64 `yaml:"high_water"`

	// SectorsPerVisit caps how many sectors one spool pass flushes
	// for a single sensor, bounding the disk write under that
	// sensor's lock.
	SectorsPerVisit int `yaml:"sectors_per_visit"`
}

// SchedulerConfig configures the orchestrator step.
type SchedulerConfig struct {
	// SpoolChunk is the number of sensors one Step visits for
	// spooling work.
	SpoolChunk int `yaml:"spool_chunk"`

	// GCChunk is the number of sensors one Step visits for
	// garbage-collection work.
	GCChunk int `yaml:"gc_chunk"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "parse config file")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
// High-water mark and chunk sizes default to the values observed in
// production but remain tunable.
func DefaultConfig() *Config {
	return &Config{
		SpoolDir: "/var/lib/sectorq/spool",
		Pool: PoolConfig{
			TotalSectors:   1024,
			SectorCapacity: 32,
		},
		Spool: SpoolConfig{
			HighWater:       0.80,
			SectorsPerVisit: 4,
		},
		Scheduler: SchedulerConfig{
			SpoolChunk: 5,
			GCChunk:    5,
		},
	}
}

// EnsureDirectories creates the directories the engine writes to.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.SpoolDir, 0755); err != nil {
		return errors.Wrap(err, "create spool dir")
	}
	return nil
}
