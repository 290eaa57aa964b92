// Package metrics provides Prometheus metrics for report generation, exports and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"

	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultInvalid = "invalid"
)

var (
	ReportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldops_reports_generated_total",
			Help: "Total number of report snapshots aggregated",
		},
		[]string{"period"},
	)
	ReportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldops_report_duration_seconds",
			Help:    "Time to fetch and aggregate a report snapshot",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"period"},
	)
	ReportTasksScanned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldops_report_tasks_scanned",
			Help:    "Number of task records read for one report",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
		[]string{"period"},
	)
	SnapshotCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldops_snapshot_cache_total",
			Help: "Snapshot cache lookups by result",
		},
		[]string{"result"},
	)
	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldops_exports_total",
			Help: "CSV exports by result",
		},
		[]string{"period", "result"},
	)
	ExportJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldops_export_jobs_total",
			Help: "Export job transitions by status",
		},
		[]string{"status"},
	)
	ExportJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldops_export_job_duration_seconds",
			Help:    "Export job execution duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)
	ExportJobsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fieldops_export_jobs",
			Help: "Current number of export jobs by status",
		},
		[]string{"status"},
	)
	ExportQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldops_export_queue_depth",
			Help: "Current number of export jobs waiting to run",
		},
	)
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldops_export_workers_active",
			Help: "Number of currently running export workers",
		},
	)
	PasswordChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldops_password_changes_total",
			Help: "Password change attempts by result",
		},
		[]string{"result"},
	)
	ProfileUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldops_profile_updates_total",
			Help: "Profile update attempts by result",
		},
		[]string{"result"},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldops_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldops_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordReportGenerated(period string, tasks int, duration time.Duration) {
	ReportsGenerated.WithLabelValues(period).Inc()
	ReportDuration.WithLabelValues(period).Observe(duration.Seconds())
	ReportTasksScanned.WithLabelValues(period).Observe(float64(tasks))
}

func RecordCacheLookup(result string) {
	SnapshotCache.WithLabelValues(result).Inc()
}

func RecordExport(period, result string) {
	Exports.WithLabelValues(period, result).Inc()
}

func RecordExportJob(status string) {
	ExportJobs.WithLabelValues(status).Inc()
}

func RecordExportJobFinished(status string, duration time.Duration) {
	ExportJobs.WithLabelValues(status).Inc()
	ExportJobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func UpdateExportJobGauges(jobsByStatus map[string]int) {
	ExportJobsByStatus.Reset()
	for status, count := range jobsByStatus {
		ExportJobsByStatus.WithLabelValues(status).Set(float64(count))
	}
}

func UpdateExportQueueDepth(depth int) {
	ExportQueueDepth.Set(float64(depth))
}

func UpdateActiveWorkers(count int) {
	WorkersActive.Set(float64(count))
}

func RecordPasswordChange(result string) {
	PasswordChanges.WithLabelValues(result).Inc()
}

func RecordProfileUpdate(result string) {
	ProfileUpdates.WithLabelValues(result).Inc()
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
