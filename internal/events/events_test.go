package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/atspro/atspro/internal/metrics"
	"github.com/atspro/atspro/internal/model"
	"github.com/atspro/atspro/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []StatusEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestNewStatusEvent(t *testing.T) {
	t.Parallel()

	report := testutil.NewReport("r1", "u1", "Backend Engineer", 80, 0)
	report.Status = model.StatusInterviewing
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))

	event := NewStatusEvent(report, at)
	if event.ReportID != "r1" || event.UserID != "u1" || event.Status != "interviewing" {
		t.Errorf("event = %+v", event)
	}
	if event.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp not normalized to UTC: %v", event.Timestamp)
	}

	data, _ := json.Marshal(event)
	var decoded map[string]any
	_ = json.Unmarshal(data, &decoded)
	for _, key := range []string{"report_id", "user_id", "status", "message", "timestamp"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("payload missing %q: %s", key, data)
		}
	}
}

func TestRoutingKey(t *testing.T) {
	t.Parallel()
	if got := RoutingKey("01HX"); got != "report.01HX" {
		t.Errorf("RoutingKey = %q", got)
	}
}

func TestNotifier(t *testing.T) {
	t.Parallel()

	publisher := &recordingPublisher{}
	recorder := metrics.NewInMemory()
	n := NewNotifier(publisher, testutil.DiscardLogger(), recorder)

	event := StatusEvent{ReportID: "r1", Status: "shortlisted"}
	n.Notify(context.Background(), event)

	if len(publisher.events) != 1 || publisher.events[0].ReportID != "r1" {
		t.Errorf("published = %+v", publisher.events)
	}

	publisher.err = errors.New("broker down")
	n.Notify(context.Background(), event)

	s := recorder.Snapshot()
	if s.EventsPublished != 1 || s.EventsDropped != 1 {
		t.Errorf("metrics = %+v", s)
	}
}

func TestNotifier_NilPublisherDiscards(t *testing.T) {
	t.Parallel()

	n := NewNotifier(nil, nil, nil)
	n.Notify(context.Background(), StatusEvent{ReportID: "r1"})
	if err := n.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

// gatedPublisher blocks every publish until release is closed.
type gatedPublisher struct {
	recordingPublisher
	release chan struct{}
	closed  bool
}

func (p *gatedPublisher) Publish(ctx context.Context, event StatusEvent) error {
	<-p.release
	return p.recordingPublisher.Publish(ctx, event)
}

func (p *gatedPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func TestNotifier_CloseDrainsAsyncPublishes(t *testing.T) {
	t.Parallel()

	publisher := &gatedPublisher{release: make(chan struct{})}
	recorder := metrics.NewInMemory()
	n := NewNotifier(publisher, testutil.DiscardLogger(), recorder)

	for _, id := range []string{"r1", "r2", "r3"} {
		n.NotifyAsync(StatusEvent{ReportID: id, Status: "rejected"})
	}

	done := make(chan error, 1)
	go func() { done <- n.Close() }()

	select {
	case <-done:
		t.Fatal("Close returned while publishes were in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(publisher.release)
	if err := <-done; err != nil {
		t.Fatalf("Close: %v", err)
	}

	publisher.mu.Lock()
	published, closed := len(publisher.events), publisher.closed
	publisher.mu.Unlock()
	if published != 3 || !closed {
		t.Errorf("published=%d closed=%v, want 3 and true", published, closed)
	}

	n.NotifyAsync(StatusEvent{ReportID: "late"})
	if s := recorder.Snapshot(); s.EventsPublished != 3 || s.EventsDropped != 1 {
		t.Errorf("metrics = %+v, want 3 published and 1 dropped", s)
	}
}
