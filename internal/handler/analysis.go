package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/atspro/atspro/internal/auth"
	"github.com/atspro/atspro/internal/document"
	"github.com/atspro/atspro/internal/handler/dto"
	"github.com/atspro/atspro/internal/service"
)

// multipartMemory is held in memory before parts spill to temp files.
const multipartMemory = 8 << 20

// AnalysisHandler scores resumes against job descriptions.
type AnalysisHandler struct {
	book      *service.ReportBook
	maxUpload int64
	logger    *slog.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler. maxUpload caps the
// size of an uploaded resume file.
func NewAnalysisHandler(book *service.ReportBook, maxUpload int64, logger *slog.Logger) *AnalysisHandler {
	if maxUpload <= 0 || maxUpload > document.MaxFileSize {
		maxUpload = document.MaxFileSize
	}
	return &AnalysisHandler{
		book:      book,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// upload is the original file behind a multipart analysis request.
type upload struct {
	filename    string
	contentType string
	data        []byte
}

// Create handles POST /api/v1/analyses.
//
// The body is either JSON {resumeText, jobDescription} or multipart with a
// "resume" file (or "resumeText" field) and a "jobDescription" field.
func (h *AnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentityFromContext(r.Context())

	var (
		req  dto.AnalyzeRequest
		file *upload
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var err error
		req, file, err = h.readMultipart(r)
		if err != nil {
			h.writeUploadError(w, err)
			return
		}
	} else if !decodeJSON(w, r, &req) {
		return
	}

	report, err := h.book.Analyze(r.Context(), id.User, req.ResumeText, req.JobDescription)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	if file != nil {
		h.book.ArchiveUpload(r.Context(), id.User.ID, report.ID, file.filename, file.contentType, file.data)
	}

	h.logger.Info("analysis_created",
		"report_id", report.ID,
		"user_id", report.UserID,
		"job_title", report.JobTitle,
		"score", report.OverallScore,
		"from_file", file != nil,
	)
	writeJSON(w, http.StatusCreated, report)
}

func (h *AnalysisHandler) readMultipart(r *http.Request) (dto.AnalyzeRequest, *upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return dto.AnalyzeRequest{}, nil, err
	}

	req := dto.AnalyzeRequest{
		ResumeText:     r.FormValue("resumeText"),
		JobDescription: r.FormValue("jobDescription"),
	}

	f, header, err := r.FormFile("resume")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, err
	}
	defer f.Close()

	if header.Size > h.maxUpload {
		return req, nil, fmt.Errorf("%w: %d bytes", document.ErrTooLarge, header.Size)
	}
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return req, nil, err
	}
	if int64(len(data)) > h.maxUpload {
		return req, nil, fmt.Errorf("%w: more than %d bytes", document.ErrTooLarge, h.maxUpload)
	}

	text, err := document.Extract(header.Filename, data)
	if err != nil {
		return req, nil, err
	}
	req.ResumeText = text

	return req, &upload{
		filename:    header.Filename,
		contentType: header.Header.Get("Content-Type"),
		data:        data,
	}, nil
}

func (h *AnalysisHandler) writeUploadError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
		return
	}
	switch {
	case errors.Is(err, document.ErrUnsupportedFormat),
		errors.Is(err, document.ErrTooLarge),
		errors.Is(err, document.ErrEmptyDocument),
		errors.Is(err, document.ErrExtractFailed):
		h.logger.Info("resume_rejected", "error", err)
		handleServiceError(w, h.logger, err)
	default:
		writeError(w, http.StatusBadRequest, "INVALID_MULTIPART", "Invalid multipart body")
	}
}
