// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Persistence metrics
	IncRemoteSuccess(action string)
	IncRemoteFallback(action string)
	IncLocalOperation(action string)

	// Report metrics
	IncReportCreated()
	IncStatusChanged(status string)

	// Scoring oracle metrics
	ObserveOracleDuration(duration time.Duration)
	IncOracleFailure()

	// Event metrics
	IncEventPublished(result string)

	// Timeline consumer metrics
	IncTimelineEvent(result string)
	SetTimelineBacklog(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
