package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atspro/atspro/internal/handler/dto"
	"github.com/atspro/atspro/internal/model"
	"github.com/atspro/atspro/internal/ranking"
	"github.com/atspro/atspro/internal/service"
)

// AdminDirectory reads users and collection counts.
// *repository.Repository satisfies it.
type AdminDirectory interface {
	GetUsers(ctx context.Context) ([]model.User, error)
	GetStats(ctx context.Context) (model.Stats, error)
}

// AdminHandler provides the recruiter dashboard endpoints.
type AdminHandler struct {
	book      *service.ReportBook
	directory AdminDirectory
	logger    *slog.Logger
	startedAt time.Time
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(book *service.ReportBook, directory AdminDirectory, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		book:      book,
		directory: directory,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Leaderboard handles GET /api/v1/admin/reports?job={title|all}.
// Without a job filter every report is ranked.
func (h *AdminHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	job := strings.TrimSpace(r.URL.Query().Get("job"))
	if job == "" {
		job = ranking.FilterAll
	}

	reports := h.book.Leaderboard(job)
	if reports == nil {
		reports = []model.ATSReport{}
	}
	writeJSON(w, http.StatusOK, dto.LeaderboardResponse{Job: job, Reports: reports, Total: len(reports)})
}

// Jobs handles GET /api/v1/admin/jobs.
func (h *AdminHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.ToJobGroups(h.book.JobGroups()))
}

// UpdateStatus handles PATCH /api/v1/admin/reports/{id}/status.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := h.book.ApplyStatusChange(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Users handles GET /api/v1/admin/users.
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	users, err := h.directory.GetUsers(ctx)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserList(users))
}

// StatsResponse represents dashboard counts and service info.
type StatsResponse struct {
	model.Stats
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	stats, err := h.directory.GetStats(ctx)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Stats:     stats,
		Timestamp: time.Now().UTC(),
		Service:   "atspro",
		Version:   Version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	})
}
