// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/atspro/atspro/internal/document"
	"github.com/atspro/atspro/internal/handler/dto"
	"github.com/atspro/atspro/internal/localstore"
	"github.com/atspro/atspro/internal/model"
	"github.com/atspro/atspro/internal/oracle"
	"github.com/atspro/atspro/internal/service"
	"github.com/atspro/atspro/internal/session"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Handler serves the routes that need no collaborators.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Hello identifies the service.
// GET /
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "ATS Pro resume matcher",
		"version": Version,
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: dto.ErrorBody{Code: code, Message: message}})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		status := http.StatusBadRequest
		switch ve.Code {
		case model.CodeEmailTaken:
			status = http.StatusConflict
		case model.CodeBadCredentials:
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, dto.ErrorResponse{Error: dto.ErrorBody{Code: ve.Code, Message: ve.Message, Field: ve.Field}})
	case errors.Is(err, service.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "REPORT_NOT_FOUND", "Report not found")
	case errors.Is(err, service.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, model.CodeInvalidStatus, "Status must be pending, shortlisted, rejected or interviewing")
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing session token")
	case errors.Is(err, oracle.ErrOracleFailure):
		logger.Warn("oracle_failure", "error", err)
		writeError(w, http.StatusBadGateway, "ORACLE_FAILURE", "Analysis failed. Please try again.")
	case errors.Is(err, document.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", "Resume must be a .txt, .pdf or .docx file")
	case errors.Is(err, document.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Resume exceeds the upload size limit")
	case errors.Is(err, document.ErrEmptyDocument), errors.Is(err, document.ErrExtractFailed):
		writeError(w, http.StatusUnprocessableEntity, "UNREADABLE_DOCUMENT", "No text could be read from the resume")
	case errors.Is(err, localstore.ErrIOFailure):
		logger.Error("storage_failure", "error", err)
		writeError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Storage is unavailable")
	default:
		logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
