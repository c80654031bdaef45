// Package engine implements the tiered sector-based storage engine that
// buffers time-series samples and discrete events between the sensor
// producers and the upload layer.
//
// Architecture:
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│  Producers  │────▶│ Sector Pool │────▶│ Spool Files │
//	│ (TSD / EVT) │     │  + Chains   │     │  (on disk)  │
//	└─────────────┘     └─────────────┘     └─────────────┘
//	                           │                   │
//	                           ▼                   │
//	                    ┌─────────────┐            │
//	                    │  Read Path  │◀───────────┘
//	                    │ (uploader)  │
//	                    └─────────────┘
//
// Recent records live in a fixed arena of RAM sectors chained per sensor.
// When pool utilization crosses the high-water mark, the orchestrator
// flushes the oldest full sectors of visited sensors to per-sensor disk
// spool files and frees their RAM. Reads traverse disk frames first, then
// the RAM chain, preserving append order. Sectors whose records have been
// read and acknowledged are reclaimed by the garbage collector.
//
// The engine provides:
//   - Per-sensor exclusive locking; no global lock serializes the pool
//   - Bounded chain traversal everywhere, so corrupted links degrade into
//     a contained chain reset instead of a lockup
//   - Continuous free/in-use accounting verification
//   - A cooperative Step() scheduler whose cost per call is bounded by
//     configured sensor chunks
package engine
