// Package mmetrics exposes Prometheus instrumentation for the store, WAL,
// pool and SPARQL executor layers. Metrics are optional: nothing in the
// engine requires the default registry to be scraped, but every counter is
// cheap enough to update unconditionally on the hot path, the same way the
// teacher's pkg/metrics instruments Raft apply/commit and scheduling.
package mmetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Store-level gauges (§4.4 get_statistics).
	QuadsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mercury_quads_total",
			Help: "Total number of quad versions held by a store, by store role",
		},
		[]string{"store"},
	)

	AtomsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mercury_atoms_total",
			Help: "Total number of interned atoms, by store role",
		},
		[]string{"store"},
	)

	StoreBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mercury_store_bytes",
			Help: "On-disk size of a store's atom segments and indices",
		},
		[]string{"store"},
	)

	// WAL metrics (§4.3, get_wal_statistics).
	WALBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mercury_wal_bytes",
			Help: "Current size of the write-ahead log",
		},
		[]string{"store"},
	)

	WALCheckpointLSN = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mercury_wal_checkpoint_lsn",
			Help: "Last checkpoint LSN",
		},
		[]string{"store"},
	)

	WALLastTxID = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mercury_wal_last_tx_id",
			Help: "Last durable transaction id",
		},
		[]string{"store"},
	)

	WALAppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mercury_wal_append_duration_seconds",
			Help:    "Time to append and fsync a WAL frame",
			Buckets: prometheus.DefBuckets,
		},
	)

	CheckpointDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mercury_checkpoint_duration_seconds",
			Help:    "Time to flush dirty pages and truncate the WAL",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecoveredTxTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mercury_recovered_transactions_total",
			Help: "Number of WAL transactions replayed during crash recovery",
		},
	)

	TornFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mercury_wal_torn_frames_total",
			Help: "Number of torn/truncated WAL frames discarded during recovery",
		},
	)

	// Write-path metrics.
	AddDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mercury_add_duration_seconds",
			Help:    "Time taken by QuadStore.Add",
			Buckets: prometheus.DefBuckets,
		},
	)

	RetractDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mercury_retract_duration_seconds",
			Help:    "Time taken by QuadStore.Retract",
			Buckets: prometheus.DefBuckets,
		},
	)

	BatchCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mercury_batch_commit_duration_seconds",
			Help:    "Time taken to commit a batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SPARQL metrics.
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mercury_query_duration_seconds",
			Help:    "SPARQL query execution duration by query form",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"form"},
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mercury_queries_total",
			Help: "Total number of SPARQL queries executed by form and outcome",
		},
		[]string{"form", "outcome"},
	)

	ServiceCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mercury_service_call_duration_seconds",
			Help:    "SERVICE clause remote call duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// Pool/pruner metrics.
	PruneDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mercury_prune_duration_seconds",
			Help:    "Pruning run duration by history mode",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"mode"},
	)

	PrunedQuadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mercury_pruned_quads_total",
			Help: "Total number of quad versions dropped by the pruner",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(
		QuadsTotal, AtomsTotal, StoreBytes,
		WALBytes, WALCheckpointLSN, WALLastTxID, WALAppendDuration,
		CheckpointDuration, RecoveredTxTotal, TornFramesTotal,
		AddDuration, RetractDuration, BatchCommitDuration,
		QueryDuration, QueriesTotal, ServiceCallDuration,
		PruneDuration, PrunedQuadsTotal,
	)
}

// Handler returns the Prometheus HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
