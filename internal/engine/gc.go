package engine

import (
	"github.com/xtxerr/sectorq/internal/engine/pool"
)

// collectLocked reclaims storage a sensor no longer needs: the spool
// file once every spooled record is both read and acked, then fully
// acked sectors from the head of the RAM chain. Returns the number of
// sectors freed. Caller holds cb.mu.
func (e *Engine) collectLocked(cb *ControlBlock) int {
	// Spool file: records on disk are never freed piecemeal; the whole
	// file goes once the cursors have moved past its last record.
	if cb.file != nil && cb.acked >= cb.spoolEnd && cb.read >= cb.spoolEnd {
		if err := cb.file.Remove(); err != nil {
			e.log.Warn("spool file removal failed",
				"source", cb.source.String(), "sensor", cb.id,
				"path", cb.file.Path(), "error", err)
		}
		cb.file = nil
		cb.runStartRecord = 0
		cb.runStartFrame = 0
	}

	reclaimed := 0
	bound := e.pool.Total()

	for cb.head != pool.None {
		if reclaimed > bound {
			e.resetLocked(cb, "gc traversal bound exceeded")
			return reclaimed
		}

		end := cb.headRecord + int64(e.pool.Count(cb.head))
		if cb.acked < end || cb.read < end {
			break
		}

		freed := cb.head
		next := e.pool.NextOf(freed)
		last := freed == cb.tail

		e.pool.Free(freed)
		reclaimed++
		cb.headRecord = end
		if cb.readSector == freed {
			cb.readSector = pool.None
			cb.readOff = 0
		}

		if last {
			cb.head = pool.None
			cb.tail = pool.None
			break
		}
		if next == pool.None {
			// A successor was expected; the chain is shorter than the
			// cursors say.
			e.resetLocked(cb, "chain ended before tail during gc")
			return reclaimed
		}
		cb.head = next
	}

	return reclaimed
}

// resetLocked is the containment path for a corrupted chain: free every
// reachable in-use sector exactly once, drop the spool file, and fold
// all cursors onto the written total so the sensor comes back empty but
// usable. Damage never propagates past the sensor. Caller holds cb.mu.
func (e *Engine) resetLocked(cb *ControlBlock, reason string) {
	e.log.Error("resetting corrupted chain",
		"source", cb.source.String(), "sensor", cb.id,
		"reason", reason, "dropped", cb.written-cb.acked)

	visited := make(map[pool.SectorID]bool)
	bound := e.pool.Total()
	sec := cb.head
	for sec != pool.None && !visited[sec] && len(visited) <= bound {
		visited[sec] = true
		next := e.pool.NextOf(sec)
		if e.pool.InUse(sec) {
			e.pool.Free(sec)
		}
		sec = next
	}

	cb.head = pool.None
	cb.tail = pool.None
	cb.headRecord = cb.written
	cb.readSector = pool.None
	cb.readOff = 0
	cb.read = cb.written
	cb.acked = cb.written

	if cb.file != nil {
		if err := cb.file.Remove(); err != nil {
			e.log.Warn("spool file removal failed during reset",
				"source", cb.source.String(), "sensor", cb.id, "error", err)
		}
		cb.file = nil
	}
	cb.spoolEnd = cb.written
	cb.runStartRecord = 0
	cb.runStartFrame = 0

	cb.corruptions++
	e.corruptionEvents.Add(1)
	e.metrics.CorruptionEvents.Inc()
}
