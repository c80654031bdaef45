package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xtxerr/sectorq/internal/engine/spool"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty spool dir", func(c *Config) { c.SpoolDir = "" }},
		{"zero sectors", func(c *Config) { c.Pool.TotalSectors = 0 }},
		{"negative capacity", func(c *Config) { c.Pool.SectorCapacity = -1 }},
		{"capacity above frame limit", func(c *Config) { c.Pool.SectorCapacity = 70000 }},
		{"high water zero", func(c *Config) { c.Spool.HighWater = 0 }},
		{"high water above one", func(c *Config) { c.Spool.HighWater = 1.5 }},
		{"zero sectors per visit", func(c *Config) { c.Spool.SectorsPerVisit = 0 }},
		{"zero spool chunk", func(c *Config) { c.Scheduler.SpoolChunk = 0 }},
		{"zero gc chunk", func(c *Config) { c.Scheduler.GCChunk = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}
}

func TestValidateAcceptsMaxSectorCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pool.SectorCapacity = spool.MaxCapacity
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate rejected capacity %d: %v", spool.MaxCapacity, err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
spool_dir: ` + dir + `
pool:
  total_sectors: 64
  sector_capacity: 16
spool:
  high_water: 0.75
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Pool.TotalSectors != 64 {
		t.Errorf("TotalSectors = %d, want 64", cfg.Pool.TotalSectors)
	}
	if cfg.Pool.SectorCapacity != 16 {
		t.Errorf("SectorCapacity = %d, want 16", cfg.Pool.SectorCapacity)
	}
	if cfg.Spool.HighWater != 0.75 {
		t.Errorf("HighWater = %v, want 0.75", cfg.Spool.HighWater)
	}

	// Unset sections keep their defaults.
	if cfg.Scheduler.SpoolChunk != 5 {
		t.Errorf("SpoolChunk = %d, want default 5", cfg.Scheduler.SpoolChunk)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("pool:\n  total_sectors: -5\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted invalid config")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of missing file succeeded")
	}
}
