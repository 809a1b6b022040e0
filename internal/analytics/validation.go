package analytics

import (
	"errors"
	"fmt"

	"github.com/atspro/atspro/internal/events"
	"github.com/atspro/atspro/internal/model"
)

const (
	maxIDLength      = 128
	maxMessageLength = 500
)

// ValidateEvent rejects events that cannot be recorded on a timeline.
func ValidateEvent(event events.StatusEvent) error {
	if event.ReportID == "" {
		return errors.New("report_id is required")
	}
	if len(event.ReportID) > maxIDLength || len(event.UserID) > maxIDLength {
		return errors.New("id too long")
	}
	if !model.CandidateStatus(event.Status).IsValid() {
		return fmt.Errorf("unknown status %q", event.Status)
	}
	if event.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	if len(event.Message) > maxMessageLength {
		return errors.New("message too long")
	}
	return nil
}
