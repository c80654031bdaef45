package engine

import (
	"github.com/xtxerr/sectorq/internal/engine/pool"
	"github.com/xtxerr/sectorq/internal/engine/types"
	"github.com/xtxerr/sectorq/internal/errors"
)

// Write appends one record to a sensor's chain. When the tail sector is
// full a new sector is allocated from the pool and linked; if the pool
// is exhausted the record is rejected with ErrPoolExhausted and nothing
// is modified - a record is never partially written.
func (e *Engine) Write(source types.Source, id string, rec types.Record) error {
	cb, err := e.lookup(source, id)
	if err != nil {
		return err
	}

	if rec.Kind != cb.kind {
		return errors.Wrapf(errors.ErrKindMismatch, "%s/%s: got %s, registered %s",
			source, id, rec.Kind, cb.kind)
	}
	if rec.TimestampMs == 0 {
		rec.TimestampMs = e.now()
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Allocate and link a new tail when the chain is empty or the
	// current tail is full.
	if cb.tail == pool.None || e.pool.Count(cb.tail) >= e.pool.Capacity() {
		sec, err := e.pool.Allocate()
		if err != nil {
			e.rejectedWrites.Add(1)
			e.metrics.RecordsRejected.WithLabelValues(source.String()).Inc()
			return err
		}

		if cb.tail != pool.None {
			e.pool.SetNext(cb.tail, sec)
		} else {
			cb.head = sec
			cb.headRecord = cb.written
			// The cached cursor predates the new chain; force a
			// recompute on the next read.
			cb.readSector = pool.None
			cb.readOff = 0
		}
		cb.tail = sec
	}

	if !e.pool.Append(cb.tail, rec) {
		// Unreachable while the full-tail check above holds.
		return errors.Wrapf(errors.ErrInvalidSector, "append to full tail %d", cb.tail)
	}

	cb.written++
	e.metrics.RecordsWritten.WithLabelValues(source.String()).Inc()
	return nil
}

// WriteBatch appends records in order, stopping at the first failure and
// reporting how many were accepted.
func (e *Engine) WriteBatch(source types.Source, id string, recs []types.Record) (int, error) {
	for i := range recs {
		if err := e.Write(source, id, recs[i]); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}
