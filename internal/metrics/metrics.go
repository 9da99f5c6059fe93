// Package metrics exposes Prometheus instrumentation for the records
// workflow and the HTTP layer. All methods are safe on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

type Metrics struct {
	ResidentIntake   *prometheus.CounterVec
	Reviews          *prometheus.CounterVec
	ApprovalDuration prometheus.Histogram
	OfficialChanges  *prometheus.CounterVec
	LoginAttempts    *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	Backups          *prometheus.CounterVec
	BackupBytes      prometheus.Gauge
}

// New registers every metric with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ResidentIntake: f.NewCounterVec(prometheus.CounterOpts{
			Name: "barangay_resident_intake_total",
			Help: "Resident records accepted, by path (direct or pending)",
		}, []string{"path"}),
		Reviews: f.NewCounterVec(prometheus.CounterOpts{
			Name: "barangay_submission_reviews_total",
			Help: "Pending submission reviews, by outcome",
		}, []string{"outcome"}),
		ApprovalDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "barangay_approval_duration_seconds",
			Help:    "Duration of the approval transaction",
			Buckets: durationBuckets,
		}),
		OfficialChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "barangay_official_changes_total",
			Help: "Elected official roster changes, by operation",
		}, []string{"op"}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "barangay_login_attempts_total",
			Help: "Login attempts, by result",
		}, []string{"result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "barangay_http_requests_total",
			Help: "HTTP requests, by method, route pattern and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "barangay_http_request_duration_seconds",
			Help:    "HTTP request latency, by route pattern",
			Buckets: durationBuckets,
		}, []string{"route"}),
		Backups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "barangay_backups_total",
			Help: "Database backup runs, by result",
		}, []string{"result"}),
		BackupBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "barangay_last_backup_bytes",
			Help: "Size of the last completed encrypted backup",
		}),
	}
}

// IncIntake records an accepted resident payload. path is "direct" or
// "pending".
func (m *Metrics) IncIntake(path string) {
	if m == nil {
		return
	}
	m.ResidentIntake.WithLabelValues(path).Inc()
}

// IncReview records a review outcome such as "approved", "rejected",
// "conflict" or "failed".
func (m *Metrics) IncReview(outcome string) {
	if m == nil {
		return
	}
	m.Reviews.WithLabelValues(outcome).Inc()
}

// ObserveApproval records the duration of an approval.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveApproval(start time.Time) {
	if m == nil {
		return
	}
	m.ApprovalDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncOfficialChange(op string) {
	if m == nil {
		return
	}
	m.OfficialChanges.WithLabelValues(op).Inc()
}

func (m *Metrics) IncLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request. route is the matched ServeMux
// pattern, or "unmatched".
func (m *Metrics) ObserveHTTP(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

// ObserveBackup records one backup run. size is ignored unless result is
// "completed".
func (m *Metrics) ObserveBackup(result string, size int64) {
	if m == nil {
		return
	}
	m.Backups.WithLabelValues(result).Inc()
	if result == "completed" {
		m.BackupBytes.Set(float64(size))
	}
}
