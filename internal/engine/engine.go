package engine

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/sectorq/internal/engine/config"
	"github.com/xtxerr/sectorq/internal/engine/pool"
	"github.com/xtxerr/sectorq/internal/engine/spool"
	"github.com/xtxerr/sectorq/internal/engine/types"
	"github.com/xtxerr/sectorq/internal/errors"
	"github.com/xtxerr/sectorq/internal/logging"
	"github.com/xtxerr/sectorq/internal/metrics"
)

// Engine is the tiered buffering engine. It owns the sector pool, the
// sensor registry and the orchestrator cursors, and exposes the API the
// upload layer consumes.
type Engine struct {
	cfg      *config.Config
	pool     *pool.Pool
	registry *Registry
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() int64

	// Orchestrator cursors, guarded by schedMu. Step is intended to be
	// called from the single host loop, but nothing breaks if two
	// callers race.
	schedMu sync.Mutex
	sched   schedulerState

	// Step latency sketch, guarded by sketchMu.
	sketchMu   sync.Mutex
	stepSketch *ddsketch.DDSketch

	closed atomic.Bool

	// Counters surfaced through Stats.
	corruptionEvents atomic.Int64
	rejectedWrites   atomic.Int64
	steps            atomic.Int64
}

// Options configures engine construction. Zero values select defaults.
type Options struct {
	// Metrics receives the engine's Prometheus collectors. Defaults to
	// a collection on a throwaway registry.
	Metrics *metrics.Metrics

	// Now supplies record timestamps (Unix milliseconds) for records
	// written without one. Defaults to the wall clock.
	Now func() int64
}

// New creates an engine from the given configuration.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, errors.Wrap(err, "ensure directories")
	}

	p, err := pool.New(cfg.Pool.TotalSectors, cfg.Pool.SectorCapacity)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}

	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() int64 { return time.Now().UnixMilli() }
	}

	// Relative accuracy of 1% is plenty for a millisecond budget check.
	sketch, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		return nil, errors.Wrap(err, "create step sketch")
	}

	return &Engine{
		cfg:        cfg,
		pool:       p,
		registry:   NewRegistry(),
		metrics:    opts.Metrics,
		log:        logging.Component("engine"),
		now:        opts.Now,
		stepSketch: sketch,
	}, nil
}

// Register creates the control block for a sensor. Any stale spool file
// left over from a previous process is removed: the engine starts empty.
func (e *Engine) Register(source types.Source, id string, kind types.RecordKind) error {
	if e.closed.Load() {
		return errors.ErrEngineClosed
	}

	if _, err := e.registry.Register(source, id, kind); err != nil {
		return err
	}

	if err := os.Remove(spool.Path(e.cfg.SpoolDir, source, id)); err == nil {
		e.log.Warn("removed stale spool file", "source", source.String(), "sensor", id)
	}

	return nil
}

// Registry returns the sensor registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Pool returns the sector pool, for diagnostics.
func (e *Engine) Pool() *pool.Pool {
	return e.pool
}

// PendingCount returns the number of buffered, unacknowledged records
// for a sensor.
func (e *Engine) PendingCount(source types.Source, id string) (int64, error) {
	cb, err := e.registry.Lookup(source, id)
	if err != nil {
		return 0, err
	}
	return cb.Pending(), nil
}

// Close releases per-sensor spool files. The engine rejects all
// operations afterwards.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.registry.Each(func(cb *ControlBlock) {
		cb.mu.Lock()
		if cb.file != nil {
			cb.file.Close()
		}
		cb.mu.Unlock()
	})

	return nil
}

// lookup resolves a sensor or fails, checking engine liveness first.
func (e *Engine) lookup(source types.Source, id string) (*ControlBlock, error) {
	if e.closed.Load() {
		return nil, errors.ErrEngineClosed
	}
	return e.registry.Lookup(source, id)
}

// recordStep registers one orchestrator step duration.
func (e *Engine) recordStep(d time.Duration) {
	e.steps.Add(1)
	e.metrics.Steps.Inc()
	e.metrics.StepDuration.Observe(d.Seconds())

	e.sketchMu.Lock()
	// Sketch values are microseconds; DDSketch rejects non-positive
	// values, so clamp at one.
	us := float64(d.Microseconds())
	if us < 1 {
		us = 1
	}
	e.stepSketch.Add(us)
	e.sketchMu.Unlock()
}

// Stats is a point-in-time snapshot of engine state, the surface the
// diagnostics/CLI layer queries.
type Stats struct {
	Pool             pool.Stats
	Sensors          int
	CorruptionEvents int64
	RejectedWrites   int64
	Steps            int64

	// Orchestrator step latency quantiles, milliseconds. Zero until
	// the first step completes.
	StepP50Ms float64
	StepP99Ms float64
}

// Stats returns a snapshot of engine statistics.
func (e *Engine) Stats() Stats {
	s := Stats{
		Pool:             e.pool.Stats(),
		Sensors:          e.registry.Sensors(),
		CorruptionEvents: e.corruptionEvents.Load(),
		RejectedWrites:   e.rejectedWrites.Load(),
		Steps:            e.steps.Load(),
	}

	e.sketchMu.Lock()
	if e.stepSketch.GetCount() > 0 {
		if p50, err := e.stepSketch.GetValueAtQuantile(0.5); err == nil {
			s.StepP50Ms = p50 / 1000.0
		}
		if p99, err := e.stepSketch.GetValueAtQuantile(0.99); err == nil {
			s.StepP99Ms = p99 / 1000.0
		}
	}
	e.sketchMu.Unlock()

	return s
}
