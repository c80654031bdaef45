package engine

import (
	"sync"

	"github.com/xtxerr/sectorq/internal/engine/pool"
	"github.com/xtxerr/sectorq/internal/engine/types"
	"github.com/xtxerr/sectorq/internal/errors"
)

// Registry owns the sensor control blocks, one collection per upload
// source. The orchestrator receives it explicitly rather than reaching
// into package state.
type Registry struct {
	mu     sync.RWMutex
	blocks [types.NumSources][]*ControlBlock
	index  [types.NumSources]map[string]*ControlBlock
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.index {
		r.index[i] = make(map[string]*ControlBlock)
	}
	return r
}

// Register creates the control block for a sensor. Sensors are
// registered at startup from configuration; registering the same
// (source, id) twice is an error.
func (r *Registry) Register(source types.Source, id string, kind types.RecordKind) (*ControlBlock, error) {
	if !source.Valid() {
		return nil, errors.ErrInvalidSource
	}
	if id == "" {
		return nil, errors.NewMissingField("sensor id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[source][id]; ok {
		return nil, errors.Wrapf(errors.ErrSensorAlreadyExists, "%s/%s", source, id)
	}

	cb := &ControlBlock{
		source:     source,
		id:         id,
		kind:       kind,
		head:       pool.None,
		tail:       pool.None,
		readSector: pool.None,
	}

	r.blocks[source] = append(r.blocks[source], cb)
	r.index[source][id] = cb
	return cb, nil
}

// Lookup returns the control block for a sensor.
func (r *Registry) Lookup(source types.Source, id string) (*ControlBlock, error) {
	if !source.Valid() {
		return nil, errors.ErrInvalidSource
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cb, ok := r.index[source][id]
	if !ok {
		return nil, errors.NewSensorNotFound(source, id)
	}
	return cb, nil
}

// Count returns the number of sensors registered under a source.
func (r *Registry) Count(source types.Source) int {
	if !source.Valid() {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blocks[source])
}

// At returns the i-th sensor of a source, or nil when out of range.
// The per-source order is registration order and stable, which the
// orchestrator's persistent cursors rely on.
func (r *Registry) At(source types.Source, i int) *ControlBlock {
	if !source.Valid() {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if i < 0 || i >= len(r.blocks[source]) {
		return nil
	}
	return r.blocks[source][i]
}

// Sensors returns the total number of registered sensors.
func (r *Registry) Sensors() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for i := range r.blocks {
		n += len(r.blocks[i])
	}
	return n
}

// Each calls fn for every control block across all sources.
func (r *Registry) Each(fn func(*ControlBlock)) {
	r.mu.RLock()
	var blocks []*ControlBlock
	for i := range r.blocks {
		blocks = append(blocks, r.blocks[i]...)
	}
	r.mu.RUnlock()

	for _, cb := range blocks {
		fn(cb)
	}
}
