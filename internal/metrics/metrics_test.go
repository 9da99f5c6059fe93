package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncIntake("direct")
		m.IncReview("approved")
		m.ObserveApproval(time.Now())
		m.IncOfficialChange("add")
		m.IncLogin("success")
		m.ObserveHTTP("GET", "GET /", 200, time.Now())
		m.ObserveBackup("completed", 10)
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncIntake("pending")
	m.IncIntake("pending")
	m.IncReview("rejected")
	m.ObserveHTTP("POST", "", 404, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ResidentIntake.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reviews.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "unmatched", "404")))
}

func TestObserveBackup(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBackup("completed", 2048)
	m.ObserveBackup("failed", 999)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Backups.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Backups.WithLabelValues("failed")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.BackupBytes))
}
