package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atspro/atspro/internal/analytics"
	"github.com/atspro/atspro/internal/handler/dto"
	"github.com/atspro/atspro/internal/service"
)

// TimelineReader returns the recorded status history of a report.
type TimelineReader interface {
	List(ctx context.Context, reportID string) ([]analytics.Entry, error)
}

// TimelineHandler serves status timelines to admins.
type TimelineHandler struct {
	book     *service.ReportBook
	timeline TimelineReader
	logger   *slog.Logger
}

// NewTimelineHandler creates a new TimelineHandler.
func NewTimelineHandler(book *service.ReportBook, timeline TimelineReader, logger *slog.Logger) *TimelineHandler {
	return &TimelineHandler{book: book, timeline: timeline, logger: logger}
}

// Get handles GET /api/v1/admin/reports/{id}/timeline.
func (h *TimelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "id")
	if _, err := h.book.Get(reportID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	entries, err := h.timeline.List(r.Context(), reportID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TimelineResponse{ReportID: reportID, Entries: entries, Total: len(entries)})
}
