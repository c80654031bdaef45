// Package pool implements the fixed-size sector arena underlying the
// buffering engine.
//
// The pool is the sole owner of sector lifetime. Sectors are addressed by
// integer index (SectorID); chains are built from per-sector forward
// links held in the chain index. The pool's own mutex protects only the
// free list, the in-use flags and the forward links. Record payloads of
// an allocated sector are guarded by the lock of the sensor that owns the
// chain, which every caller must hold before touching them.
package pool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/xtxerr/sectorq/internal/engine/types"
	"github.com/xtxerr/sectorq/internal/errors"
)

// SectorID addresses a sector slot in the arena.
type SectorID int32

// None is the nil forward link: a chain terminates at None.
const None SectorID = -1

// sector is one slot of the arena.
type sector struct {
	inUse bool
	next  SectorID

	// records is the sector payload. Appended under the owning
	// sensor's lock; reset on allocation.
	records []types.Record
}

// Pool is a fixed arena of equally sized sectors with a free list and a
// chain index (per-sector forward links).
type Pool struct {
	mu sync.Mutex

	sectors  []sector
	free     []SectorID
	capacity int // records per sector

	// Statistics
	allocCount atomic.Int64
	freeCount  atomic.Int64
	exhausted  atomic.Int64
}

// New creates a pool of total sectors, each holding capacity records.
func New(total, capacity int) (*Pool, error) {
	if total <= 0 {
		return nil, errors.NewValidation("total_sectors", "must be positive")
	}
	if capacity <= 0 {
		return nil, errors.NewValidation("sector_capacity", "must be positive")
	}

	p := &Pool{
		sectors:  make([]sector, total),
		free:     make([]SectorID, 0, total),
		capacity: capacity,
	}

	for i := range p.sectors {
		p.sectors[i].next = None
		p.sectors[i].records = make([]types.Record, 0, capacity)
		p.free = append(p.free, SectorID(i))
	}

	return p, nil
}

// Total returns the number of sectors in the arena.
func (p *Pool) Total() int {
	return len(p.sectors)
}

// Capacity returns the number of records one sector holds.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Allocate takes a sector from the free list. The returned sector has no
// forward link and an empty payload. Returns ErrPoolExhausted when the
// free list is empty; exhaustion is always reported, never swallowed.
func (p *Pool) Allocate() (SectorID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		p.exhausted.Add(1)
		return None, errors.ErrPoolExhausted
	}

	id := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	s := &p.sectors[id]
	s.inUse = true
	s.next = None
	s.records = s.records[:0]

	p.allocCount.Add(1)
	return id, nil
}

// Free returns a sector to the free list. The forward link is left in
// place until the sector is reallocated so that a concurrent best-effort
// recovery walk can still follow it past the freed sector.
//
// Free never validates chain ownership; that responsibility lies with
// the owning sensor's lock, which the caller must hold.
func (p *Pool) Free(id SectorID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.valid(id) || !p.sectors[id].inUse {
		return
	}

	p.sectors[id].inUse = false
	p.free = append(p.free, id)
	p.freeCount.Add(1)
}

// NextOf returns the forward link of a sector, or None.
func (p *Pool) NextOf(id SectorID) SectorID {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.valid(id) {
		return None
	}
	return p.sectors[id].next
}

// SetNext sets the forward link of a sector. The caller must hold the
// lock of the sensor whose chain contains the sector.
func (p *Pool) SetNext(id, next SectorID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.valid(id) {
		return
	}
	p.sectors[id].next = next
}

// InUse reports whether the sector is currently allocated to a chain.
func (p *Pool) InUse(id SectorID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.valid(id) && p.sectors[id].inUse
}

// valid reports whether id addresses an arena slot. Caller holds p.mu.
func (p *Pool) valid(id SectorID) bool {
	return id >= 0 && int(id) < len(p.sectors)
}

// ============================================================================
// Payload access - caller must hold the owning sensor's lock
// ============================================================================

// Append adds a record to a sector's payload. Returns false when the
// sector is full. Never partially writes.
func (p *Pool) Append(id SectorID, rec types.Record) bool {
	if id < 0 || int(id) >= len(p.sectors) {
		return false
	}
	s := &p.sectors[id]
	if len(s.records) >= p.capacity {
		return false
	}
	s.records = append(s.records, rec)
	return true
}

// Count returns the number of records in a sector's payload.
func (p *Pool) Count(id SectorID) int {
	if id < 0 || int(id) >= len(p.sectors) {
		return 0
	}
	return len(p.sectors[id].records)
}

// Records copies records [from, to) of a sector's payload into dst and
// returns the extended slice. Out-of-range bounds are clamped.
func (p *Pool) Records(dst []types.Record, id SectorID, from, to int) []types.Record {
	if id < 0 || int(id) >= len(p.sectors) {
		return dst
	}
	recs := p.sectors[id].records
	if from < 0 {
		from = 0
	}
	if to > len(recs) {
		to = len(recs)
	}
	if from >= to {
		return dst
	}
	return append(dst, recs[from:to]...)
}

// ============================================================================
// Accounting
// ============================================================================

// Stats is a point-in-time snapshot of pool state.
type Stats struct {
	Total       int
	Free        int
	InUse       int
	Utilization float64
	AllocCount  int64
	FreeCount   int64
	Exhausted   int64
}

// Stats returns a snapshot of pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	free := len(p.free)
	total := len(p.sectors)

	return Stats{
		Total:       total,
		Free:        free,
		InUse:       total - free,
		Utilization: float64(total-free) / float64(total),
		AllocCount:  p.allocCount.Load(),
		FreeCount:   p.freeCount.Load(),
		Exhausted:   p.exhausted.Load(),
	}
}

// Utilization returns the in-use fraction of the arena (0.0 - 1.0).
func (p *Pool) Utilization() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return float64(len(p.sectors)-len(p.free)) / float64(len(p.sectors))
}

// CheckAccounting verifies the pool-wide invariant
// free + in-use == total. It is cheap enough to run on every
// orchestrator step, not just at startup.
func (p *Pool) CheckAccounting() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	inUse := 0
	for i := range p.sectors {
		if p.sectors[i].inUse {
			inUse++
		}
	}

	if len(p.free)+inUse != len(p.sectors) {
		return fmt.Errorf("pool accounting: free=%d in_use=%d total=%d",
			len(p.free), inUse, len(p.sectors))
	}

	// A free-listed sector must not be flagged in-use.
	for _, id := range p.free {
		if p.sectors[id].inUse {
			return fmt.Errorf("pool accounting: sector %d on free list but in use", id)
		}
	}

	return nil
}
