package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	RemoteSuccess         uint64
	RemoteFallback        uint64
	LocalOperations       uint64
	ReportsCreated        uint64
	StatusChanges         map[string]uint64
	OracleCalls           uint64
	OracleDurationTotalNs int64
	OracleFailures        uint64
	EventsPublished       uint64
	EventsDropped         uint64
	TimelineEvents        map[string]uint64
	TimelineBacklog       int64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint
// and is used directly by tests.
type InMemoryRecorder struct {
	remoteSuccess         uint64
	remoteFallback        uint64
	localOperations       uint64
	reportsCreated        uint64
	oracleCalls           uint64
	oracleDurationTotalNs int64
	oracleFailures        uint64
	eventsPublished       uint64
	eventsDropped         uint64
	timelineBacklog       int64

	mu             sync.Mutex
	statusChanges  map[string]uint64
	timelineEvents map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		statusChanges:  make(map[string]uint64),
		timelineEvents: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	changes := make(map[string]uint64, len(m.statusChanges))
	for k, v := range m.statusChanges {
		changes[k] = v
	}
	timeline := make(map[string]uint64, len(m.timelineEvents))
	for k, v := range m.timelineEvents {
		timeline[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		RemoteSuccess:         atomic.LoadUint64(&m.remoteSuccess),
		RemoteFallback:        atomic.LoadUint64(&m.remoteFallback),
		LocalOperations:       atomic.LoadUint64(&m.localOperations),
		ReportsCreated:        atomic.LoadUint64(&m.reportsCreated),
		StatusChanges:         changes,
		OracleCalls:           atomic.LoadUint64(&m.oracleCalls),
		OracleDurationTotalNs: atomic.LoadInt64(&m.oracleDurationTotalNs),
		OracleFailures:        atomic.LoadUint64(&m.oracleFailures),
		EventsPublished:       atomic.LoadUint64(&m.eventsPublished),
		EventsDropped:         atomic.LoadUint64(&m.eventsDropped),
		TimelineEvents:        timeline,
		TimelineBacklog:       atomic.LoadInt64(&m.timelineBacklog),
	}
}

// IncRemoteSuccess increments the remote success counter.
func (m *InMemoryRecorder) IncRemoteSuccess(action string) {
	atomic.AddUint64(&m.remoteSuccess, 1)
}

// IncRemoteFallback increments the fallback counter.
func (m *InMemoryRecorder) IncRemoteFallback(action string) {
	atomic.AddUint64(&m.remoteFallback, 1)
}

// IncLocalOperation increments the local operation counter.
func (m *InMemoryRecorder) IncLocalOperation(action string) {
	atomic.AddUint64(&m.localOperations, 1)
}

// IncReportCreated increments the report created counter.
func (m *InMemoryRecorder) IncReportCreated() {
	atomic.AddUint64(&m.reportsCreated, 1)
}

// IncStatusChanged counts transitions per target status.
func (m *InMemoryRecorder) IncStatusChanged(status string) {
	m.mu.Lock()
	m.statusChanges[status]++
	m.mu.Unlock()
}

// ObserveOracleDuration records a scoring call duration.
func (m *InMemoryRecorder) ObserveOracleDuration(duration time.Duration) {
	atomic.AddUint64(&m.oracleCalls, 1)
	atomic.AddInt64(&m.oracleDurationTotalNs, duration.Nanoseconds())
}

// IncOracleFailure increments the oracle failure counter.
func (m *InMemoryRecorder) IncOracleFailure() {
	atomic.AddUint64(&m.oracleFailures, 1)
}

// IncEventPublished counts event deliveries by result ("success" or "dropped").
func (m *InMemoryRecorder) IncEventPublished(result string) {
	if result == "success" {
		atomic.AddUint64(&m.eventsPublished, 1)
		return
	}
	atomic.AddUint64(&m.eventsDropped, 1)
}

// IncTimelineEvent counts consumed events by result.
func (m *InMemoryRecorder) IncTimelineEvent(result string) {
	m.mu.Lock()
	m.timelineEvents[result]++
	m.mu.Unlock()
}

// SetTimelineBacklog stores the pending plus unread events of the consumer group.
func (m *InMemoryRecorder) SetTimelineBacklog(depth int64) {
	atomic.StoreInt64(&m.timelineBacklog, depth)
}
