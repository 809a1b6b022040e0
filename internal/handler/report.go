package handler

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atspro/atspro/internal/auth"
	"github.com/atspro/atspro/internal/handler/dto"
	"github.com/atspro/atspro/internal/model"
	"github.com/atspro/atspro/internal/service"
)

// ReportHandler serves a user's own reports.
type ReportHandler struct {
	book   *service.ReportBook
	logger *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(book *service.ReportBook, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{book: book, logger: logger}
}

// List handles GET /api/v1/reports. Admins see every report.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, dto.ToReportList(h.book.History(id.User)))
}

// Get handles GET /api/v1/reports/{id}.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.visible(r)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Export handles GET /api/v1/reports/{id}/export with a plain-text download.
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	report, err := h.visible(r)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": report.ExportFilename(),
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.PlainText()))
}

// visible returns the report named in the URL. Other users' reports are
// reported as missing to non-admins.
func (h *ReportHandler) visible(r *http.Request) (model.ATSReport, error) {
	id := auth.MustIdentityFromContext(r.Context())

	report, err := h.book.Get(chi.URLParam(r, "id"))
	if err != nil {
		return model.ATSReport{}, err
	}
	if !id.User.IsAdmin() && !report.IsOwnedBy(id.User.ID) {
		return model.ATSReport{}, service.ErrReportNotFound
	}
	return report, nil
}
