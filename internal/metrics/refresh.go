// SPDX-License-Identifier: MIT
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_refresh_total",
		Help: "Completed refresh attempts by store and outcome",
	}, []string{"store", "outcome"}) // outcome=success|connectivity_error|partial_fetch_error|cancelled

	refreshSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_refresh_skipped_total",
		Help: "Refresh requests dropped because another refresh was in flight",
	}, []string{"store"})

	refreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lms_refresh_duration_seconds",
		Help:    "Wall time of refresh attempts (probe + partitioned fetch)",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"store"})

	snapshotRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lms_snapshot_records",
		Help: "Records per partition in the last published snapshot",
	}, []string{"store", "partition"})

	snapshotAge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lms_snapshot_last_success_timestamp_seconds",
		Help: "Unix time of the last successful refresh",
	}, []string{"store"})

	schedulerMode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lms_scheduler_mode",
		Help: "Active scheduler mode by store (1 for the active mode, 0 otherwise)",
	}, []string{"store", "mode"})
)

var schedulerModes = []string{"stopped", "foreground", "background"}

// RecordRefresh records the outcome and duration of one refresh attempt.
func RecordRefresh(store, outcome string, d time.Duration) {
	refreshTotal.WithLabelValues(store, outcome).Inc()
	refreshDuration.WithLabelValues(store).Observe(d.Seconds())
}

// RecordRefreshSkipped counts a refresh request dropped by the single-flight guard.
func RecordRefreshSkipped(store string) {
	refreshSkipped.WithLabelValues(store).Inc()
}

// SetSnapshotRecords publishes the per-partition record count of a new snapshot.
func SetSnapshotRecords(store, partition string, n int) {
	snapshotRecords.WithLabelValues(store, partition).Set(float64(n))
}

// SetLastSuccess records the time of the last successful refresh.
func SetLastSuccess(store string, at time.Time) {
	snapshotAge.WithLabelValues(store).Set(float64(at.Unix()))
}

// SetSchedulerMode marks mode as the active scheduler mode for store.
func SetSchedulerMode(store, mode string) {
	for _, m := range schedulerModes {
		v := 0.0
		if m == mode {
			v = 1.0
		}
		schedulerMode.WithLabelValues(store, m).Set(v)
	}
}
