package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder with client_golang collectors on a
// private registry. Metric names match the in-memory exposition.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	datastoreOps   *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
	reportsCreated prometheus.Counter
	statusChanges  *prometheus.CounterVec
	oracleDuration prometheus.Histogram
	oracleFailures prometheus.Counter
	eventsOut      *prometheus.CounterVec
	timelineEvents *prometheus.CounterVec
	timelineDepth  prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

// NewPrometheus creates a recorder with Go runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()

	p := &PrometheusRecorder{
		registry: reg,
		datastoreOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "atspro_datastore_operations_total", Help: "Persistence operations by path and action."},
			[]string{"path", "action"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "atspro_datastore_fallbacks_total", Help: "Remote failures served locally."},
			[]string{"action"},
		),
		reportsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "atspro_reports_created_total", Help: "Reports created."},
		),
		statusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "atspro_status_changes_total", Help: "Candidate status changes by target status."},
			[]string{"status"},
		),
		oracleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "atspro_oracle_duration_seconds",
			Help:    "Scoring oracle latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		oracleFailures: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "atspro_oracle_failures_total", Help: "Failed scoring calls."},
		),
		eventsOut: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "atspro_events_published_total", Help: "Status events by outcome."},
			[]string{"status"},
		),
		timelineEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "atspro_timeline_events_total", Help: "Consumed status events by result."},
			[]string{"result"},
		),
		timelineDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "atspro_timeline_backlog", Help: "Pending plus unread events of the timeline consumer group."},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "atspro_http_requests_total", Help: "HTTP requests by route, method and status."},
			[]string{"route", "method", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atspro_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.datastoreOps, p.fallbacks, p.reportsCreated, p.statusChanges,
		p.oracleDuration, p.oracleFailures, p.eventsOut,
		p.timelineEvents, p.timelineDepth,
		p.httpRequests, p.httpLatency,
	)
	return p
}

// Handler serves the registry in Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// IncRemoteSuccess implements Recorder.
func (p *PrometheusRecorder) IncRemoteSuccess(action string) {
	p.datastoreOps.WithLabelValues("remote", action).Inc()
}

// IncRemoteFallback implements Recorder.
func (p *PrometheusRecorder) IncRemoteFallback(action string) {
	p.fallbacks.WithLabelValues(action).Inc()
}

// IncLocalOperation implements Recorder.
func (p *PrometheusRecorder) IncLocalOperation(action string) {
	p.datastoreOps.WithLabelValues("local", action).Inc()
}

// IncReportCreated implements Recorder.
func (p *PrometheusRecorder) IncReportCreated() {
	p.reportsCreated.Inc()
}

// IncStatusChanged implements Recorder.
func (p *PrometheusRecorder) IncStatusChanged(status string) {
	p.statusChanges.WithLabelValues(status).Inc()
}

// ObserveOracleDuration implements Recorder.
func (p *PrometheusRecorder) ObserveOracleDuration(duration time.Duration) {
	p.oracleDuration.Observe(duration.Seconds())
}

// IncOracleFailure implements Recorder.
func (p *PrometheusRecorder) IncOracleFailure() {
	p.oracleFailures.Inc()
}

// IncEventPublished implements Recorder.
func (p *PrometheusRecorder) IncEventPublished(result string) {
	p.eventsOut.WithLabelValues(result).Inc()
}

// IncTimelineEvent implements Recorder.
func (p *PrometheusRecorder) IncTimelineEvent(result string) {
	p.timelineEvents.WithLabelValues(result).Inc()
}

// SetTimelineBacklog implements Recorder.
func (p *PrometheusRecorder) SetTimelineBacklog(depth int64) {
	p.timelineDepth.Set(float64(depth))
}

// ObserveHTTPRequest records one served request. route is the matched
// pattern, never the raw path.
func (p *PrometheusRecorder) ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	p.httpLatency.WithLabelValues(route, method).Observe(duration.Seconds())
}
