package engine

import (
	"github.com/xtxerr/sectorq/internal/engine/pool"
	"github.com/xtxerr/sectorq/internal/engine/types"
	"github.com/xtxerr/sectorq/internal/errors"
)

// ReadBulk returns up to max unread records of a sensor in append order
// and advances the read cursor. Spooled records are served from disk
// before the RAM chain. Returns ErrNoData when nothing is unread.
//
// Reading does not acknowledge: records stay buffered (and pending)
// until Acknowledge confirms the upload.
func (e *Engine) ReadBulk(source types.Source, id string, max int) ([]types.Record, error) {
	cb, err := e.lookup(source, id)
	if err != nil {
		return nil, err
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	recs, err := e.readLocked(cb, max, true)
	if err == nil && len(recs) > 0 {
		e.metrics.RecordsRead.WithLabelValues(source.String()).Add(float64(len(recs)))
	}
	return recs, err
}

// PeekBulk is ReadBulk without consuming: the read cursor and all counts
// are left untouched, so an immediate ReadBulk returns the same records.
func (e *Engine) PeekBulk(source types.Source, id string, max int) ([]types.Record, error) {
	cb, err := e.lookup(source, id)
	if err != nil {
		return nil, err
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	return e.readLocked(cb, max, false)
}

// readLocked gathers up to max records starting at the read cursor.
// Caller holds cb.mu.
func (e *Engine) readLocked(cb *ControlBlock, max int, consume bool) ([]types.Record, error) {
	if max <= 0 {
		return nil, nil
	}

	unread := cb.written - cb.read
	if unread == 0 {
		return nil, errors.ErrNoData
	}

	want := int64(max)
	if want > unread {
		want = unread
	}

	capacity := int64(e.pool.Capacity())
	out := make([]types.Record, 0, want)
	pos := cb.read

	// Disk stage: records below spoolEnd live in the spool file.
	for pos < cb.spoolEnd && int64(len(out)) < want {
		if cb.file == nil || pos < cb.runStartRecord {
			// Unread records claimed on disk with no frame to serve
			// them from. Contain the damage to this sensor.
			e.resetLocked(cb, "spool state inconsistent")
			return nil, errors.ErrChainCorrupted
		}

		frame := cb.runStartFrame + (pos-cb.runStartRecord)/capacity
		off := (pos - cb.runStartRecord) % capacity

		recs, err := cb.file.ReadFrame(frame)
		if err != nil {
			if errors.Is(err, errors.ErrDiskIO) {
				// Transient: nothing consumed, the upload layer
				// retries later.
				return nil, err
			}
			// Decode or checksum failure. The frame will never read
			// back; retrying forever would wedge the sensor.
			e.resetLocked(cb, "spool frame unreadable")
			return nil, errors.ErrChainCorrupted
		}

		take := int64(len(recs)) - off
		if rem := want - int64(len(out)); take > rem {
			take = rem
		}
		if take <= 0 {
			e.resetLocked(cb, "spool frame short")
			return nil, errors.ErrChainCorrupted
		}

		out = append(out, recs[off:off+take]...)
		pos += take
	}

	// RAM stage.
	ramRan := false
	var sec pool.SectorID = pool.None
	var off int64
	if int64(len(out)) < want && pos < cb.written {
		ramRan = true

		if cb.head == pool.None || pos < cb.headRecord {
			e.resetLocked(cb, "read cursor behind RAM chain")
			return nil, errors.ErrChainCorrupted
		}

		bound := e.pool.Total()
		visits := 0

		// Resolve the cursor. The cached sector is only trusted after
		// re-validating it against the pool: a spool or GC pass may
		// have freed it since the count query that triggered this
		// read.
		resolved := false
		if cb.readSector != pool.None && pos == cb.read {
			if e.pool.InUse(cb.readSector) {
				sec = cb.readSector
				off = int64(cb.readOff)
				resolved = true
			} else {
				// Walk best-effort successor links to the first
				// still-live sector. Frees happen only at the chain
				// head, so that sector is the current head.
				s := cb.readSector
				for s != pool.None && !e.pool.InUse(s) {
					visits++
					if visits > bound {
						e.resetLocked(cb, "traversal bound exceeded repairing cursor")
						return nil, errors.ErrChainCorrupted
					}
					s = e.pool.NextOf(s)
				}
				off = pos - cb.headRecord
				if s == cb.head && off >= 0 && off < capacity {
					sec = s
					resolved = true
				}
			}
		}
		if !resolved {
			// Recompute from the head: every sector but the tail is
			// full, so stream offsets map arithmetically.
			skip := pos - cb.headRecord
			sec = cb.head
			for hops := skip / capacity; hops > 0; hops-- {
				visits++
				if visits > bound {
					e.resetLocked(cb, "traversal bound exceeded seeking cursor")
					return nil, errors.ErrChainCorrupted
				}
				sec = e.pool.NextOf(sec)
				if sec == pool.None {
					e.resetLocked(cb, "chain shorter than read cursor")
					return nil, errors.ErrChainCorrupted
				}
			}
			off = skip % capacity
		}

		for int64(len(out)) < want && sec != pool.None {
			cnt := int64(e.pool.Count(sec))
			if off < cnt {
				take := cnt - off
				if rem := want - int64(len(out)); take > rem {
					take = rem
				}
				out = e.pool.Records(out, sec, int(off), int(off+take))
				pos += take
				off += take
			}
			if int64(len(out)) >= want {
				break
			}
			if cnt < capacity {
				// Partial tail: nothing beyond it.
				break
			}

			visits++
			if visits > bound {
				e.resetLocked(cb, "traversal bound exceeded reading chain")
				return nil, errors.ErrChainCorrupted
			}
			sec = e.pool.NextOf(sec)
			off = 0
		}
	}

	if consume {
		cb.read = pos
		if ramRan {
			cb.readSector = sec
			cb.readOff = int(off)
		} else {
			// Entirely served from disk; the cached RAM cursor no
			// longer matches the stream position.
			cb.readSector = pool.None
			cb.readOff = 0
		}
	}

	return out, nil
}

// Acknowledge confirms n records as uploaded, unblocking reclamation of
// the sectors (or spool frames) that held them. Acknowledging past the
// read cursor consumes peeked records; acknowledging past the written
// total is clamped.
func (e *Engine) Acknowledge(source types.Source, id string, n int64) error {
	cb, err := e.lookup(source, id)
	if err != nil {
		return err
	}
	if n <= 0 {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	target := cb.acked + n
	if target > cb.written {
		e.log.Warn("acknowledge clamped",
			"source", source.String(), "sensor", id,
			"requested", n, "pending", cb.written-cb.acked)
		target = cb.written
	}

	if target > cb.read {
		// Delivered via PeekBulk; acknowledging consumes them.
		cb.read = target
		cb.readSector = pool.None
		cb.readOff = 0
	}

	delta := target - cb.acked
	cb.acked = target
	if delta > 0 {
		e.metrics.RecordsAcked.WithLabelValues(source.String()).Add(float64(delta))
	}
	return nil
}
