// Package analytics consumes report status events from the Redis stream and
// keeps a per-report status timeline in the local store.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/atspro/atspro/internal/events"
	"github.com/atspro/atspro/internal/localstore"
)

const (
	keyPrefix = "timeline:"

	// MaxEntries caps the history kept per report. Oldest entries go first.
	MaxEntries = 100
)

// Entry is one recorded status transition.
type Entry struct {
	EventID string    `json:"eventId"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Timeline stores status history as one JSON array per report.
type Timeline struct {
	store localstore.Store

	// Serializes read-modify-write of a single key within this process.
	mu sync.Mutex
}

// NewTimeline creates a Timeline over store.
func NewTimeline(store localstore.Store) *Timeline {
	return &Timeline{store: store}
}

// Append records event under eventID. It reports false when eventID was
// already recorded, which makes redelivered stream messages harmless.
func (t *Timeline) Append(ctx context.Context, eventID string, event events.StatusEvent) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := t.load(ctx, event.ReportID)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.EventID == eventID {
			return false, nil
		}
	}

	entries = append(entries, Entry{
		EventID: eventID,
		Status:  event.Status,
		Message: event.Message,
		At:      event.Timestamp.UTC(),
	})
	if len(entries) > MaxEntries {
		entries = entries[len(entries)-MaxEntries:]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return false, fmt.Errorf("marshal timeline: %w", err)
	}
	if err := t.store.Set(ctx, keyPrefix+event.ReportID, data); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the recorded transitions of a report, oldest first. A report
// without history yields an empty slice.
func (t *Timeline) List(ctx context.Context, reportID string) ([]Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx, reportID)
}

func (t *Timeline) load(ctx context.Context, reportID string) ([]Entry, error) {
	data, ok, err := t.store.Get(ctx, keyPrefix+reportID)
	if err != nil {
		return nil, err
	}
	entries := []Entry{}
	if !ok {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode timeline %s: %w", reportID, err)
	}
	return entries, nil
}
