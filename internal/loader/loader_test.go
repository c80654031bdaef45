package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xtxerr/sectorq/internal/engine"
	"github.com/xtxerr/sectorq/internal/engine/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
log:
  level: debug
metrics:
  listen: ":9100"
step_interval: 100ms
engine:
  spool_dir: `+dir+`
  pool:
    total_sectors: 128
uploader:
  enabled: true
  endpoint: http://collector:8080/ingest
sensors:
  - source: gateway
    id: temp-01
    kind: tsd
  - source: can
    id: engine-fault
    kind: evt
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Metrics.Listen != ":9100" {
		t.Errorf("Metrics.Listen = %q", cfg.Metrics.Listen)
	}
	if cfg.StepInterval != 100*time.Millisecond {
		t.Errorf("StepInterval = %v, want 100ms", cfg.StepInterval)
	}
	if cfg.Engine.Pool.TotalSectors != 128 {
		t.Errorf("TotalSectors = %d, want 128", cfg.Engine.Pool.TotalSectors)
	}
	// Engine defaults survive a partial engine section.
	if cfg.Engine.Pool.SectorCapacity != 32 {
		t.Errorf("SectorCapacity = %d, want default 32", cfg.Engine.Pool.SectorCapacity)
	}
	if len(cfg.Sensors) != 2 {
		t.Fatalf("Sensors = %d, want 2", len(cfg.Sensors))
	}
	if cfg.Sensors[1].Kind != "evt" {
		t.Errorf("Sensors[1].Kind = %q, want evt", cfg.Sensors[1].Kind)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SECTORQ_TEST_SPOOL", dir)
	path := writeConfig(t, "engine:\n  spool_dir: ${SECTORQ_TEST_SPOOL}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.SpoolDir != dir {
		t.Errorf("SpoolDir = %q, want %q", cfg.Engine.SpoolDir, dir)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"zero step interval", func(c *Config) { c.StepInterval = 0 }},
		{"uploader without endpoint", func(c *Config) { c.Uploader.Enabled = true; c.Uploader.Endpoint = "" }},
		{"sensor without id", func(c *Config) {
			c.Sensors = []SensorConfig{{Source: "gateway", Kind: "tsd"}}
		}},
		{"unknown source", func(c *Config) {
			c.Sensors = []SensorConfig{{Source: "satellite", ID: "x", Kind: "tsd"}}
		}},
		{"unknown kind", func(c *Config) {
			c.Sensors = []SensorConfig{{Source: "gateway", ID: "x", Kind: "blob"}}
		}},
		{"duplicate sensor", func(c *Config) {
			c.Sensors = []SensorConfig{
				{Source: "gateway", ID: "x", Kind: "tsd"},
				{Source: "gateway", ID: "x", Kind: "evt"},
			}
		}},
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

func TestApply(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.SpoolDir = t.TempDir()
	cfg.Sensors = []SensorConfig{
		{Source: "gateway", ID: "temp-01", Kind: "tsd"},
		{Source: "hosted", ID: "rollup", Kind: "tsd"},
		{Source: "can", ID: "fault", Kind: "evt"},
	}

	eng, err := engine.New(cfg.Engine, engine.Options{})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	defer eng.Close()

	if err := Apply(cfg, eng); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := eng.Registry().Sensors(); got != 3 {
		t.Errorf("registered %d sensors, want 3", got)
	}

	cb, err := eng.Registry().Lookup(types.SourceCAN, "fault")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if cb.Kind() != types.KindEVT {
		t.Errorf("Kind = %v, want KindEVT", cb.Kind())
	}
}
