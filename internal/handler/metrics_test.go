package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atspro/atspro/internal/metrics"
)

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewInMemory()
	recorder.IncRemoteFallback("find")
	recorder.IncLocalOperation("find")
	recorder.IncReportCreated()
	recorder.IncStatusChanged("shortlisted")
	recorder.IncStatusChanged("rejected")
	recorder.ObserveOracleDuration(1500 * time.Millisecond)
	recorder.IncEventPublished("success")

	rec := httptest.NewRecorder()
	NewMetricsHandler(recorder).Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, line := range []string{
		`atspro_datastore_fallbacks_total 1`,
		`atspro_datastore_operations_total{path="local"} 1`,
		`atspro_reports_created_total 1`,
		`atspro_status_changes_total{status="rejected"} 1`,
		`atspro_oracle_duration_seconds_sum 1.500000`,
		`atspro_events_published_total{status="success"} 1`,
	} {
		if !strings.Contains(body, line) {
			t.Errorf("metrics output missing %q\n%s", line, body)
		}
	}

	// Labels are emitted in a stable order.
	if strings.Index(body, `status="rejected"`) > strings.Index(body, `status="shortlisted"`) {
		t.Error("status labels are not sorted")
	}
}

func TestMetricsHandler_NoSnapshotter(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewMetricsHandler(nil).Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
