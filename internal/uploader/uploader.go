// Package uploader drains buffered records out of the engine and pushes
// them to an upstream sink. It is the consumer the read path was shaped
// for: records are peeked, handed to the sink, and acknowledged only
// after the sink accepts them, so a failed push costs nothing but time.
package uploader

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xtxerr/sectorq/internal/engine"
	"github.com/xtxerr/sectorq/internal/engine/types"
	"github.com/xtxerr/sectorq/internal/errors"
	"github.com/xtxerr/sectorq/internal/logging"
)

// Sink receives batches of records for one sensor. Upload must be
// idempotent upstream: a batch whose acknowledgement was lost will be
// delivered again.
type Sink interface {
	Upload(ctx context.Context, source types.Source, sensorID string, recs []types.Record) error
}

// Options configures an Uploader. Zero values select defaults.
type Options struct {
	// Interval between drain passes. Defaults to one second.
	Interval time.Duration

	// Batch is the maximum records per Upload call. Defaults to 256.
	Batch int
}

// Uploader periodically drains every registered sensor into a Sink.
type Uploader struct {
	eng      *engine.Engine
	sink     Sink
	interval time.Duration
	batch    int
	log      *slog.Logger

	uploaded atomic.Int64
	failures atomic.Int64
}

// New creates an uploader over the given engine and sink.
func New(eng *engine.Engine, sink Sink, opts Options) *Uploader {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Batch <= 0 {
		opts.Batch = 256
	}
	return &Uploader{
		eng:      eng,
		sink:     sink,
		interval: opts.Interval,
		batch:    opts.Batch,
		log:      logging.Component("uploader"),
	}
}

// Run drains on a fixed interval until the context is cancelled.
func (u *Uploader) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			u.DrainAll(ctx)
		}
	}
}

// DrainAll runs one drain pass over every registered sensor.
func (u *Uploader) DrainAll(ctx context.Context) {
	u.eng.Registry().Each(func(cb *engine.ControlBlock) {
		if ctx.Err() != nil {
			return
		}
		u.drainSensor(ctx, cb.Source(), cb.ID())
	})
}

// drainSensor pushes one sensor's backlog in batches until it is empty
// or an upload fails. Failures leave the records buffered; the next
// pass retries the same batch.
func (u *Uploader) drainSensor(ctx context.Context, source types.Source, id string) {
	for ctx.Err() == nil {
		recs, err := u.eng.PeekBulk(source, id, u.batch)
		if err != nil {
			if !errors.IsNoData(err) {
				u.log.Warn("peek failed",
					"source", source.String(), "sensor", id, "error", err)
				u.failures.Add(1)
			}
			return
		}
		if len(recs) == 0 {
			return
		}

		if err := u.sink.Upload(ctx, source, id, recs); err != nil {
			u.log.Warn("upload failed, will retry",
				"source", source.String(), "sensor", id,
				"records", len(recs), "error", err)
			u.failures.Add(1)
			return
		}

		if err := u.eng.Acknowledge(source, id, int64(len(recs))); err != nil {
			u.log.Error("acknowledge failed",
				"source", source.String(), "sensor", id, "error", err)
			return
		}
		u.uploaded.Add(int64(len(recs)))

		if len(recs) < u.batch {
			return
		}
	}
}

// Stats is a snapshot of uploader counters.
type Stats struct {
	Uploaded int64
	Failures int64
}

// Stats returns a snapshot of uploader statistics.
func (u *Uploader) Stats() Stats {
	return Stats{
		Uploaded: u.uploaded.Load(),
		Failures: u.failures.Load(),
	}
}
