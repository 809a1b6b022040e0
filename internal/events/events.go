// Package events publishes report status changes to a message broker.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atspro/atspro/internal/metrics"
	"github.com/atspro/atspro/internal/model"
)

// PublishTimeout bounds a single asynchronous publish.
const PublishTimeout = 2 * time.Second

// StatusEvent is emitted whenever an admin changes a candidate status.
type StatusEvent struct {
	ReportID  string    `json:"report_id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStatusEvent builds the event for a report's current status.
func NewStatusEvent(report model.ATSReport, at time.Time) StatusEvent {
	return StatusEvent{
		ReportID:  report.ID,
		UserID:    report.UserID,
		Status:    string(report.Status),
		Message:   fmt.Sprintf("candidate status changed to %s", report.Status),
		Timestamp: at.UTC(),
	}
}

// RoutingKey returns the routing key of events about one report.
func RoutingKey(reportID string) string {
	return "report." + reportID
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event StatusEvent) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, StatusEvent) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }

// Notifier publishes events without blocking the caller.
type Notifier struct {
	publisher Publisher
	logger    *slog.Logger
	metrics   metrics.Recorder

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// NewNotifier creates a Notifier. A nil publisher discards events.
func NewNotifier(publisher Publisher, logger *slog.Logger, recorder metrics.Recorder) *Notifier {
	if publisher == nil {
		publisher = Noop{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		publisher: publisher,
		logger:    logger.With("component", "events.notifier"),
		metrics:   recorder,
	}
}

// Notify publishes synchronously and records the outcome. Errors are logged,
// never returned.
func (n *Notifier) Notify(ctx context.Context, event StatusEvent) {
	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.Warn("failed to publish status event",
			"report_id", event.ReportID,
			"status", event.Status,
			"error", err,
		)
		n.metrics.IncEventPublished("dropped")
		return
	}

	n.logger.Debug("status event published", "report_id", event.ReportID, "status", event.Status)
	n.metrics.IncEventPublished("success")
}

// NotifyAsync publishes in the background. Events arriving after Close are
// dropped.
func (n *Notifier) NotifyAsync(event StatusEvent) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		n.logger.Warn("notifier closed, dropping status event", "report_id", event.ReportID)
		n.metrics.IncEventPublished("dropped")
		return
	}
	n.pending.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.pending.Done()
		n.Notify(context.Background(), event)
	}()
}

// Close waits for in-flight publishes, each bounded by PublishTimeout, and
// then closes the underlying publisher.
func (n *Notifier) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	n.pending.Wait()
	return n.publisher.Close()
}
