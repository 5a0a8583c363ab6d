// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var upsertTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lms_book_upsert_total",
	Help: "Book upserts by outcome",
}, []string{"outcome"}) // outcome=inserted|merged|invalid|failed

// RecordUpsert increments the upsert counter for outcome.
func RecordUpsert(outcome string) {
	upsertTotal.WithLabelValues(outcome).Inc()
}
