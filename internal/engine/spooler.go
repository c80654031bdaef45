package engine

import (
	"github.com/xtxerr/sectorq/internal/engine/pool"
	"github.com/xtxerr/sectorq/internal/engine/spool"
	"github.com/xtxerr/sectorq/internal/errors"
)

// spoolLocked spills up to SectorsPerVisit full sectors from the head of
// a sensor's chain into its spool file. Only full sectors spill; a
// partial tail always stays in RAM. RAM sectors are freed strictly
// after the frames are durable (Sync), and on any I/O error the file is
// rolled back and nothing is freed, so no record is ever lost to a
// failed spill. Returns the number of sectors spilled. Caller holds
// cb.mu.
func (e *Engine) spoolLocked(cb *ControlBlock) (int, error) {
	capacity := e.pool.Capacity()
	budget := e.cfg.Spool.SectorsPerVisit

	// Collect the run of full sectors at the head.
	var batch []pool.SectorID
	seen := make(map[pool.SectorID]bool)
	sec := cb.head
	for len(batch) < budget && sec != pool.None && e.pool.Count(sec) == capacity {
		if seen[sec] {
			e.resetLocked(cb, "cycle detected collecting spill batch")
			return 0, errors.ErrChainCorrupted
		}
		seen[sec] = true
		batch = append(batch, sec)
		sec = e.pool.NextOf(sec)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if cb.file == nil {
		path := spool.Path(e.cfg.SpoolDir, cb.source, cb.id)
		f, err := spool.Create(path, capacity)
		if err != nil {
			e.metrics.SpoolFailures.Inc()
			return 0, err
		}
		cb.file = f
	}

	rollback := cb.file.Frames()
	for _, id := range batch {
		recs := e.pool.Records(nil, id, 0, capacity)
		if err := cb.file.AppendFrame(recs); err != nil {
			e.spoolRollback(cb, rollback)
			return 0, err
		}
	}
	if err := cb.file.Sync(); err != nil {
		e.spoolRollback(cb, rollback)
		return 0, err
	}

	// Durable. Map the batch into the file and release the RAM copies.
	// Frames for records GC reclaimed from RAM without spilling are
	// absent from the file, so a spill that does not continue the
	// previous one starts a fresh contiguous run.
	if rollback == 0 || cb.headRecord != cb.spoolEnd {
		cb.runStartRecord = cb.headRecord
		cb.runStartFrame = rollback
	}

	for _, id := range batch {
		next := e.pool.NextOf(id)
		last := id == cb.tail

		e.pool.Free(id)
		cb.headRecord += int64(capacity)
		cb.spoolEnd = cb.headRecord
		if cb.readSector == id {
			cb.readSector = pool.None
			cb.readOff = 0
		}

		if last {
			cb.head = pool.None
			cb.tail = pool.None
		} else {
			cb.head = next
		}
	}

	e.metrics.SectorsSpooled.Add(float64(len(batch)))
	e.metrics.SpoolBytes.Add(float64(len(batch) * spool.FrameSize(capacity)))
	return len(batch), nil
}

// spoolRollback discards the partially written spill run. The RAM chain
// is untouched, so the records are simply retried on a later pass.
func (e *Engine) spoolRollback(cb *ControlBlock, frames int64) {
	e.metrics.SpoolFailures.Inc()
	if err := cb.file.Truncate(frames); err != nil {
		e.log.Error("spool rollback failed",
			"source", cb.source.String(), "sensor", cb.id, "error", err)
	}
	if frames == 0 {
		// Fresh file with nothing durable in it; drop it entirely.
		if err := cb.file.Remove(); err != nil {
			e.log.Warn("spool file removal failed after rollback",
				"source", cb.source.String(), "sensor", cb.id, "error", err)
		}
		cb.file = nil
	}
}
