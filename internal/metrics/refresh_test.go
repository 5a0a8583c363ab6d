// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRefresh_CountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(refreshTotal.WithLabelValues("metrics-test", "success"))
	RecordRefresh("metrics-test", "success", 150*time.Millisecond)
	RecordRefresh("metrics-test", "success", 20*time.Millisecond)
	after := testutil.ToFloat64(refreshTotal.WithLabelValues("metrics-test", "success"))
	assert.Equal(t, before+2, after)
}

func TestSetSchedulerMode_OneHot(t *testing.T) {
	SetSchedulerMode("metrics-test", "background")
	assert.Equal(t, 1.0, testutil.ToFloat64(schedulerMode.WithLabelValues("metrics-test", "background")))
	assert.Equal(t, 0.0, testutil.ToFloat64(schedulerMode.WithLabelValues("metrics-test", "foreground")))
	assert.Equal(t, 0.0, testutil.ToFloat64(schedulerMode.WithLabelValues("metrics-test", "stopped")))

	SetSchedulerMode("metrics-test", "stopped")
	assert.Equal(t, 0.0, testutil.ToFloat64(schedulerMode.WithLabelValues("metrics-test", "background")))
	assert.Equal(t, 1.0, testutil.ToFloat64(schedulerMode.WithLabelValues("metrics-test", "stopped")))
}

func TestCircuitBreakerState_OneHot(t *testing.T) {
	SetCircuitBreakerState("metrics-test", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("metrics-test", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("metrics-test", "closed")))
}

func TestPromhttpExposure(t *testing.T) {
	RecordRefreshSkipped("exposure-test")
	RecordUpsert("merged")

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `lms_refresh_skipped_total{store="exposure-test"}`), "skipped counter exposed")
	assert.True(t, strings.Contains(body, `lms_book_upsert_total{outcome="merged"}`), "upsert counter exposed")
}
