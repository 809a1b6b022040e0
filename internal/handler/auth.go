package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/atspro/atspro/internal/auth"
	"github.com/atspro/atspro/internal/handler/dto"
	"github.com/atspro/atspro/internal/model"
	"github.com/atspro/atspro/internal/service"
	"github.com/atspro/atspro/internal/session"
)

// SessionRegistry creates, resolves and ends token sessions.
// *session.Registry satisfies it.
type SessionRegistry interface {
	Begin(ctx context.Context, fn func(*session.Session) error) (string, *session.Session, error)
	Lookup(ctx context.Context, token string) (*session.Session, error)
	End(ctx context.Context, token string) error
	RefreshUser(ctx context.Context, user model.User) error
}

// AuthHandler handles account and session endpoints.
type AuthHandler struct {
	svc      *service.AuthService
	sessions SessionRegistry
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, sessions SessionRegistry, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:      svc,
		sessions: sessions,
		logger:   logger,
	}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var user *model.User
	token, _, err := h.sessions.Begin(r.Context(), func(sess *session.Session) error {
		var err error
		user, err = h.svc.Register(r.Context(), sess, service.RegisterInput{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
		})
		return err
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user_registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, dto.SessionResponse{Token: token, User: user.ToResponse()})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var user *model.User
	token, _, err := h.sessions.Begin(r.Context(), func(sess *session.Session) error {
		var err error
		user, err = h.svc.Login(r.Context(), sess, req.Email, req.Password)
		return err
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user_logged_in", "user_id", user.ID, "role", string(user.Role))
	writeJSON(w, http.StatusOK, dto.SessionResponse{Token: token, User: user.ToResponse()})
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentityFromContext(r.Context())

	if err := h.sessions.End(r.Context(), id.Token); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user_logged_out", "user_id", id.User.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, id.User.ToResponse())
}

// UpdateMe handles PATCH /api/v1/auth/me.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentityFromContext(r.Context())

	var req dto.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.sessions.Lookup(r.Context(), id.Token)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), sess, req.Name, req.Email)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	if err := h.sessions.RefreshUser(r.Context(), *user); err != nil {
		h.logger.Warn("session_refresh_failed", "user_id", user.ID, "error", err)
	}

	h.logger.Info("profile_updated", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user.ToResponse())
}
