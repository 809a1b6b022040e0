package handler

import (
	"bufio"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/atspro/atspro/internal/metrics"
)

// MetricsHandler renders a metrics.Snapshot in the Prometheus text format.
// It is mounted when METRICS_BACKEND=memory.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics serves GET /metrics.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, _ *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	s := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	e := exposition{w: bufio.NewWriter(w)}
	defer e.w.Flush()

	e.family("atspro_datastore_operations_total", "counter")
	e.line(`atspro_datastore_operations_total{path="remote"} %d`, s.RemoteSuccess)
	e.line(`atspro_datastore_operations_total{path="local"} %d`, s.LocalOperations)
	e.family("atspro_datastore_fallbacks_total", "counter")
	e.line("atspro_datastore_fallbacks_total %d", s.RemoteFallback)

	e.family("atspro_reports_created_total", "counter")
	e.line("atspro_reports_created_total %d", s.ReportsCreated)
	e.family("atspro_status_changes_total", "counter")
	e.labelled("atspro_status_changes_total", "status", s.StatusChanges)

	e.family("atspro_oracle_duration_seconds", "summary")
	e.line("atspro_oracle_duration_seconds_count %d", s.OracleCalls)
	e.line("atspro_oracle_duration_seconds_sum %.6f", float64(s.OracleDurationTotalNs)/1e9)
	e.family("atspro_oracle_failures_total", "counter")
	e.line("atspro_oracle_failures_total %d", s.OracleFailures)

	e.family("atspro_events_published_total", "counter")
	e.line(`atspro_events_published_total{status="success"} %d`, s.EventsPublished)
	e.line(`atspro_events_published_total{status="dropped"} %d`, s.EventsDropped)

	e.family("atspro_timeline_events_total", "counter")
	e.labelled("atspro_timeline_events_total", "result", s.TimelineEvents)
	e.family("atspro_timeline_backlog", "gauge")
	e.line("atspro_timeline_backlog %d", s.TimelineBacklog)
}

type exposition struct {
	w *bufio.Writer
}

func (e exposition) family(name, kind string) {
	fmt.Fprintf(e.w, "# TYPE %s %s\n", name, kind)
}

func (e exposition) line(format string, args ...any) {
	fmt.Fprintf(e.w, format+"\n", args...)
}

// labelled writes one sample per key of values, in key order.
func (e exposition) labelled(name, label string, values map[string]uint64) {
	for _, k := range slices.Sorted(maps.Keys(values)) {
		fmt.Fprintf(e.w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}
