package config

import (
	"errors"
	"fmt"

	"github.com/xtxerr/sectorq/internal/engine/spool"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.SpoolDir == "" {
		errs = append(errs, errors.New("spool_dir is required"))
	}

	if err := c.Pool.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pool: %w", err))
	}

	if err := c.Spool.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("spool: %w", err))
	}

	if err := c.Scheduler.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the pool configuration.
func (c *PoolConfig) Validate() error {
	var errs []error

	if c.TotalSectors <= 0 {
		errs = append(errs, errors.New("total_sectors must be positive"))
	}

	if c.SectorCapacity <= 0 {
		errs = append(errs, errors.New("sector_capacity must be positive"))
	} else if c.SectorCapacity > spool.MaxCapacity {
		errs = append(errs, fmt.Errorf("sector_capacity must be at most %d", spool.MaxCapacity))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the spool configuration.
func (c *SpoolConfig) Validate() error {
	var errs []error

	if c.HighWater <= 0 || c.HighWater > 1.0 {
		errs = append(errs, errors.New("high_water must be in (0.0, 1.0]"))
	}

	if c.SectorsPerVisit <= 0 {
		errs = append(errs, errors.New("sectors_per_visit must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the scheduler configuration.
func (c *SchedulerConfig) Validate() error {
	var errs []error

	if c.SpoolChunk <= 0 {
		errs = append(errs, errors.New("spool_chunk must be positive"))
	}

	if c.GCChunk <= 0 {
		errs = append(errs, errors.New("gc_chunk must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
