package engine

import (
	"time"

	"github.com/xtxerr/sectorq/internal/engine/types"
	"github.com/xtxerr/sectorq/internal/errors"
)

// schedulerState holds the round-robin cursors the orchestrator resumes
// from between steps. Spill work and reclamation work keep independent
// cursors so a spill-heavy phase does not starve reclamation of its
// fair rotation.
type schedulerState struct {
	spoolSrc types.Source
	spoolIdx int
	gcSrc    types.Source
	gcIdx    int
}

// nextSensor returns the sensor at the cursor and advances it, rotating
// gateway -> hosted -> CAN and wrapping back to the first sensor of the
// next source. Returns nil when no source has any sensors.
func (e *Engine) nextSensor(src *types.Source, idx *int) *ControlBlock {
	for tries := 0; tries <= types.NumSources; tries++ {
		if *idx < e.registry.Count(*src) {
			cb := e.registry.At(*src, *idx)
			*idx++
			return cb
		}
		*idx = 0
		*src = src.Next()
	}
	return nil
}

// Step runs one bounded orchestrator pass: a chunk of spill visits when
// the pool is under memory pressure, a chunk of reclamation visits
// always, then the pool accounting check. Each visit locks exactly one
// sensor, so writers on other sensors proceed concurrently. The host
// loop calls Step on its tick; the amount of work per call is capped by
// the configured chunk sizes, never by queue depth.
func (e *Engine) Step() error {
	if e.closed.Load() {
		return errors.ErrEngineClosed
	}

	start := time.Now()

	e.schedMu.Lock()
	defer e.schedMu.Unlock()

	var firstErr error

	// Spill phase. Skipped entirely below the high-water mark: disk
	// writes on the gateway are eager only under pressure.
	if e.pool.Utilization() >= e.cfg.Spool.HighWater {
		for i := 0; i < e.cfg.Scheduler.SpoolChunk; i++ {
			cb := e.nextSensor(&e.sched.spoolSrc, &e.sched.spoolIdx)
			if cb == nil {
				break
			}

			cb.mu.Lock()
			_, err := e.spoolLocked(cb)
			cb.mu.Unlock()

			if err != nil {
				e.log.Warn("spill failed, sectors retained",
					"source", cb.source.String(), "sensor", cb.id, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}

			if e.pool.Utilization() < e.cfg.Spool.HighWater {
				break
			}
		}
	}

	// Reclamation phase.
	reclaimed := 0
	for i := 0; i < e.cfg.Scheduler.GCChunk; i++ {
		cb := e.nextSensor(&e.sched.gcSrc, &e.sched.gcIdx)
		if cb == nil {
			break
		}

		cb.mu.Lock()
		reclaimed += e.collectLocked(cb)
		cb.mu.Unlock()
	}
	if reclaimed > 0 {
		e.metrics.SectorsReclaimed.Add(float64(reclaimed))
	}

	if err := e.pool.CheckAccounting(); err != nil {
		e.metrics.AccountingViolations.Inc()
		e.log.Error("pool accounting violation", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	st := e.pool.Stats()
	e.metrics.PoolUtilization.Set(st.Utilization)
	e.metrics.PoolFreeSectors.Set(float64(st.Free))
	e.metrics.PoolUsedSectors.Set(float64(st.InUse))

	var pending [types.NumSources]int64
	e.registry.Each(func(cb *ControlBlock) {
		pending[cb.Source()] += cb.Pending()
	})
	for src := types.SourceGateway; src.Valid(); src = types.Source(int(src) + 1) {
		e.metrics.PendingRecords.WithLabelValues(src.String()).Set(float64(pending[src]))
	}

	e.recordStep(time.Since(start))
	return firstErr
}
