package metrics

import "time"

// NoopRecorder discards every observation. Services fall back to it when
// built without a recorder.
type NoopRecorder struct{}

// NewNoop returns a NoopRecorder.
func NewNoop() Recorder { return NoopRecorder{} }

func (NoopRecorder) IncRemoteSuccess(string)             {}
func (NoopRecorder) IncRemoteFallback(string)            {}
func (NoopRecorder) IncLocalOperation(string)            {}
func (NoopRecorder) IncReportCreated()                   {}
func (NoopRecorder) IncStatusChanged(string)             {}
func (NoopRecorder) ObserveOracleDuration(time.Duration) {}
func (NoopRecorder) IncOracleFailure()                   {}
func (NoopRecorder) IncEventPublished(string)            {}
func (NoopRecorder) IncTimelineEvent(string)             {}
func (NoopRecorder) SetTimelineBacklog(int64)            {}
