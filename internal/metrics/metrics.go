// Package metrics exposes the engine's diagnostics counters as Prometheus
// collectors. The engine itself only increments them; serving /metrics is
// the daemon's job.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Pool metrics
	PoolUtilization prometheus.Gauge
	PoolFreeSectors prometheus.Gauge
	PoolUsedSectors prometheus.Gauge

	// Write path metrics
	RecordsWritten  *prometheus.CounterVec
	RecordsRejected *prometheus.CounterVec

	// Read path metrics
	RecordsRead    *prometheus.CounterVec
	RecordsAcked   *prometheus.CounterVec
	PendingRecords *prometheus.GaugeVec

	// Spooling metrics
	SectorsSpooled   prometheus.Counter
	SpoolBytes       prometheus.Counter
	SpoolFailures    prometheus.Counter
	SectorsReclaimed prometheus.Counter

	// Failure metrics
	CorruptionEvents     prometheus.Counter
	AccountingViolations prometheus.Counter

	// Orchestrator metrics
	StepDuration prometheus.Histogram
	Steps        prometheus.Counter
}

// New creates the metrics collection registered against the given
// registerer. Passing nil uses the default Prometheus registerer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		PoolUtilization: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "sectorq_pool_utilization_ratio",
				Help: "In-use fraction of the sector pool (0.0-1.0)",
			},
		),
		PoolFreeSectors: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "sectorq_pool_free_sectors",
				Help: "Number of sectors on the free list",
			},
		),
		PoolUsedSectors: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "sectorq_pool_used_sectors",
				Help: "Number of sectors currently owned by sensor chains",
			},
		),
		RecordsWritten: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorq_records_written_total",
				Help: "Records accepted by the write path",
			},
			[]string{"source"},
		),
		RecordsRejected: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorq_records_rejected_total",
				Help: "Records rejected because the pool was exhausted",
			},
			[]string{"source"},
		),
		RecordsRead: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorq_records_read_total",
				Help: "Records returned by consuming reads",
			},
			[]string{"source"},
		),
		RecordsAcked: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorq_records_acked_total",
				Help: "Records acknowledged by the upload layer",
			},
			[]string{"source"},
		),
		PendingRecords: promauto.With(registerer).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sectorq_pending_records",
				Help: "Buffered records not yet acknowledged, per source",
			},
			[]string{"source"},
		),
		SectorsSpooled: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "sectorq_sectors_spooled_total",
				Help: "Sectors flushed to disk spool files",
			},
		),
		SpoolBytes: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "sectorq_spool_bytes_total",
				Help: "Bytes appended to disk spool files",
			},
		),
		SpoolFailures: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "sectorq_spool_failures_total",
				Help: "Spool flushes that failed and will be retried",
			},
		),
		SectorsReclaimed: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "sectorq_sectors_reclaimed_total",
				Help: "Sectors reclaimed by the garbage collector",
			},
		),
		CorruptionEvents: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "sectorq_corruption_events_total",
				Help: "Chain corruption events (bounded traversal exceeded)",
			},
		),
		AccountingViolations: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "sectorq_accounting_violations_total",
				Help: "Pool accounting invariant violations detected",
			},
		),
		StepDuration: promauto.With(registerer).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sectorq_orchestrator_step_seconds",
				Help:    "Duration of one orchestrator step",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~400ms
			},
		),
		Steps: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "sectorq_orchestrator_steps_total",
				Help: "Orchestrator steps executed",
			},
		),
	}
}

// NewNop creates a metrics collection backed by a throwaway registry.
// Useful in tests that do not assert on metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
