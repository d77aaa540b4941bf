// Package metrics provides Prometheus metrics for the storage engine
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the storage engine.
type Metrics struct {
	// Buffer pool metrics
	BufferHitsTotal      prometheus.Counter
	BufferMissesTotal    prometheus.Counter
	BufferEvictionsTotal prometheus.Counter
	BufferHitRatio       prometheus.Gauge
	BufferDirtyPages     prometheus.Gauge

	// Index operation metrics (shared by btree + hashindex, labeled by index kind)
	IndexOperationsTotal   *prometheus.CounterVec
	IndexOperationDuration *prometheus.HistogramVec
	IndexFragmentation     *prometheus.GaugeVec

	// Write-ahead log metrics
	WalAppendsTotal prometheus.Counter
	WalFsyncsTotal  prometheus.Counter
	WalCurrentLSN   prometheus.Gauge

	// Recovery metrics
	RecoveryRunsTotal    prometheus.Counter
	RecoveryRedoOpsTotal prometheus.Counter
	RecoveryUndoOpsTotal prometheus.Counter

	// Query processor metrics
	QueryOperationsTotal   *prometheus.CounterVec
	QueryOperationDuration *prometheus.HistogramVec

	// Maintenance coordinator metrics
	MaintenanceRunsTotal    *prometheus.CounterVec
	MaintenanceRunDuration  *prometheus.HistogramVec
	MaintenancePendingTasks prometheus.Gauge

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// Buffer pool metrics
	m.BufferHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relstore_buffer_hits_total",
			Help: "Total number of buffer pool page hits",
		},
	)

	m.BufferMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relstore_buffer_misses_total",
			Help: "Total number of buffer pool page misses",
		},
	)

	m.BufferEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relstore_buffer_evictions_total",
			Help: "Total number of buffer pool page evictions",
		},
	)

	m.BufferHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relstore_buffer_hit_ratio",
			Help: "Current buffer pool hit ratio",
		},
	)

	m.BufferDirtyPages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relstore_buffer_dirty_pages",
			Help: "Current number of dirty pages held in the buffer pool",
		},
	)

	// Index operation metrics
	m.IndexOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relstore_index_operations_total",
			Help: "Total number of index operations",
		},
		[]string{"index", "operation"},
	)

	m.IndexOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relstore_index_operation_duration_seconds",
			Help:    "Duration of index operations in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"index", "operation"},
	)

	m.IndexFragmentation = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relstore_index_fragmentation_ratio",
			Help: "Current fragmentation ratio reported for an index",
		},
		[]string{"index"},
	)

	// Write-ahead log metrics
	m.WalAppendsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relstore_wal_appends_total",
			Help: "Total number of write-ahead log records appended",
		},
	)

	m.WalFsyncsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relstore_wal_fsyncs_total",
			Help: "Total number of write-ahead log fsync calls",
		},
	)

	m.WalCurrentLSN = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relstore_wal_current_lsn",
			Help: "Most recently assigned write-ahead log sequence number",
		},
	)

	// Recovery metrics
	m.RecoveryRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relstore_recovery_runs_total",
			Help: "Total number of crash-recovery passes performed",
		},
	)

	m.RecoveryRedoOpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relstore_recovery_redo_operations_total",
			Help: "Total number of operations redone during recovery",
		},
	)

	m.RecoveryUndoOpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relstore_recovery_undo_operations_total",
			Help: "Total number of operations undone during recovery",
		},
	)

	// Query processor metrics
	m.QueryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relstore_query_operations_total",
			Help: "Total number of query processor operations",
		},
		[]string{"operation", "status"},
	)

	m.QueryOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relstore_query_operation_duration_seconds",
			Help:    "Duration of query processor operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Maintenance coordinator metrics
	m.MaintenanceRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relstore_maintenance_runs_total",
			Help: "Total number of maintenance tasks performed",
		},
		[]string{"index", "status"},
	)

	m.MaintenanceRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relstore_maintenance_run_duration_seconds",
			Help:    "Duration of maintenance task runs in seconds",
			Buckets: []float64{.001, .01, .1, .5, 1, 5, 10, 30, 60},
		},
		[]string{"index"},
	)

	m.MaintenancePendingTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relstore_maintenance_pending_tasks",
			Help: "Current number of tasks queued in the maintenance coordinator",
		},
	)

	// Server metrics
	m.ServerUptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relstore_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime periodically updates the server uptime metric.
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
	}
}

// RecordBufferStats updates buffer pool gauges from a point-in-time snapshot.
func (m *Metrics) RecordBufferStats(hitRatio float64, dirtyPages int) {
	m.BufferHitRatio.Set(hitRatio)
	m.BufferDirtyPages.Set(float64(dirtyPages))
}

// RecordIndexOperation records one index operation's count and latency.
func (m *Metrics) RecordIndexOperation(index, operation string, duration time.Duration) {
	m.IndexOperationsTotal.WithLabelValues(index, operation).Inc()
	m.IndexOperationDuration.WithLabelValues(index, operation).Observe(duration.Seconds())
}

// RecordIndexFragmentation updates the fragmentation gauge for an index.
func (m *Metrics) RecordIndexFragmentation(index string, ratio float64) {
	m.IndexFragmentation.WithLabelValues(index).Set(ratio)
}

// RecordWalAppend records one write-ahead log append and its resulting LSN.
func (m *Metrics) RecordWalAppend(lsn uint64) {
	m.WalAppendsTotal.Inc()
	m.WalCurrentLSN.Set(float64(lsn))
}

// RecordWalFsync records one write-ahead log fsync call.
func (m *Metrics) RecordWalFsync() {
	m.WalFsyncsTotal.Inc()
}

// RecordRecovery records the outcome of one crash-recovery pass.
func (m *Metrics) RecordRecovery(redoOps, undoOps int) {
	m.RecoveryRunsTotal.Inc()
	m.RecoveryRedoOpsTotal.Add(float64(redoOps))
	m.RecoveryUndoOpsTotal.Add(float64(undoOps))
}

// RecordQueryOperation records a query processor operation.
func (m *Metrics) RecordQueryOperation(operation string, status string, duration time.Duration) {
	m.QueryOperationsTotal.WithLabelValues(operation, status).Inc()
	m.QueryOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordMaintenanceRun records one maintenance coordinator task completing.
func (m *Metrics) RecordMaintenanceRun(index, status string, duration time.Duration) {
	m.MaintenanceRunsTotal.WithLabelValues(index, status).Inc()
	m.MaintenanceRunDuration.WithLabelValues(index).Observe(duration.Seconds())
}

// SetMaintenancePending updates the pending-task gauge.
func (m *Metrics) SetMaintenancePending(count int) {
	m.MaintenancePendingTasks.Set(float64(count))
}
