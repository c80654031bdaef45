package engine

import (
	"sync"

	"github.com/xtxerr/sectorq/internal/engine/pool"
	"github.com/xtxerr/sectorq/internal/engine/spool"
	"github.com/xtxerr/sectorq/internal/engine/types"
)

// ControlBlock is the per-sensor state: the RAM chain, the read cursor,
// the cumulative stream counters and the disk spool bookkeeping. One
// exists per registered (source, sensor) pair.
//
// All fields except the identity are guarded by mu. Every path that
// mutates anything reachable from this sensor's chain - write, read,
// acknowledge, spooling, garbage collection - must hold mu. Lock
// acquisition order is one sensor at a time; no path ever holds two
// control-block locks at once.
type ControlBlock struct {
	mu sync.Mutex

	// Identity, immutable after registration.
	source types.Source
	id     string
	kind   types.RecordKind

	// RAM chain. head/tail are None for an empty chain. headRecord is
	// the stream index (cumulative record number) of the first record
	// in the head sector; all sectors except the tail hold exactly
	// sector-capacity records, so stream positions map onto the chain
	// arithmetically.
	head       pool.SectorID
	tail       pool.SectorID
	headRecord int64

	// Cached read cursor. readSector may go stale when a concurrent
	// spool or GC pass frees it; the read path re-validates it against
	// the pool before every traversal and repairs it if needed.
	readSector pool.SectorID
	readOff    int

	// Cumulative stream cursors: acked <= read <= written.
	// pending = written - acked.
	written int64
	read    int64
	acked   int64

	// Disk spool state. file is nil until the sensor first spills.
	// spoolEnd is the stream index after the last spooled record.
	// Frames in the file may have gaps where GC reclaimed already
	// consumed sectors between spill runs; runStartRecord/runStartFrame
	// map stream positions of the current contiguous run onto frame
	// indices. Records at or past the read cursor always fall inside
	// the current run.
	file           *spool.File
	spoolEnd       int64
	runStartRecord int64
	runStartFrame  int64

	// corruptions counts chain resets forced on this sensor.
	corruptions int64
}

// Source returns the upload source the sensor belongs to.
func (cb *ControlBlock) Source() types.Source {
	return cb.source
}

// ID returns the sensor id.
func (cb *ControlBlock) ID() string {
	return cb.id
}

// Kind returns the record kind the sensor was registered with.
func (cb *ControlBlock) Kind() types.RecordKind {
	return cb.kind
}

// Pending returns the number of buffered, unacknowledged records.
func (cb *ControlBlock) Pending() int64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.written - cb.acked
}

// SensorStats is a point-in-time snapshot of one sensor's state.
type SensorStats struct {
	Source      types.Source
	ID          string
	Kind        types.RecordKind
	Written     int64
	Read        int64
	Acked       int64
	Pending     int64
	Spooled     bool
	SpoolFrames int64
	Corruptions int64
}

// Stats returns a snapshot of the sensor's counters.
func (cb *ControlBlock) Stats() SensorStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := SensorStats{
		Source:      cb.source,
		ID:          cb.id,
		Kind:        cb.kind,
		Written:     cb.written,
		Read:        cb.read,
		Acked:       cb.acked,
		Pending:     cb.written - cb.acked,
		Corruptions: cb.corruptions,
	}
	if cb.file != nil {
		s.Spooled = true
		s.SpoolFrames = cb.file.Frames()
	}
	return s
}
