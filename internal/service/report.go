// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/atspro/atspro/internal/events"
	"github.com/atspro/atspro/internal/metrics"
	"github.com/atspro/atspro/internal/model"
	"github.com/atspro/atspro/internal/oracle"
	"github.com/atspro/atspro/internal/ranking"
)

// Service errors.
var (
	ErrReportNotFound = errors.New("report not found")
	ErrInvalidStatus  = errors.New("invalid candidate status")
)

const (
	// DefaultJobTitle is used when the job description has no usable first line.
	DefaultJobTitle = "Resume Diagnostic"
	maxJobTitleLen  = 50
)

// ReportStore persists reports. *repository.Repository satisfies it.
type ReportStore interface {
	GetReports(ctx context.Context) ([]model.ATSReport, error)
	SaveReport(ctx context.Context, report *model.ATSReport) error
	UpdateReport(ctx context.Context, report *model.ATSReport) error
}

// Archiver stores original uploads. *archive.Archive satisfies it.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// ReportBook is the in-memory view of all reports, kept in sync with the
// store. Reports are held newest first.
type ReportBook struct {
	store    ReportStore
	scorer   oracle.Scorer
	notifier *events.Notifier
	archive  Archiver
	logger   *slog.Logger
	metrics  metrics.Recorder

	mu      sync.RWMutex
	reports []model.ATSReport

	now   func() time.Time
	newID func() string
}

// ReportBookOptions holds the optional collaborators of a ReportBook.
type ReportBookOptions struct {
	Scorer   oracle.Scorer
	Notifier *events.Notifier
	Archive  Archiver
	Logger   *slog.Logger
	Metrics  metrics.Recorder
}

// NewReportBook creates an empty ReportBook. Call Load to populate it.
func NewReportBook(store ReportStore, opts ReportBookOptions) *ReportBook {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = events.NewNotifier(nil, opts.Logger, opts.Metrics)
	}
	return &ReportBook{
		store:    store,
		scorer:   opts.Scorer,
		notifier: opts.Notifier,
		archive:  opts.Archive,
		logger:   opts.Logger.With("component", "reports"),
		metrics:  opts.Metrics,
		reports:  []model.ATSReport{},
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return ulid.Make().String() },
	}
}

// Load replaces the in-memory collection with the stored reports.
func (b *ReportBook) Load(ctx context.Context) error {
	reports, err := b.store.GetReports(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.reports = reports
	b.mu.Unlock()

	b.logger.Info("reports loaded", slog.Int("count", len(reports)))
	return nil
}

// Add persists a new report and prepends it. A blank status becomes pending.
func (b *ReportBook) Add(ctx context.Context, report model.ATSReport) (model.ATSReport, error) {
	if report.Status == "" {
		report.Status = model.StatusPending
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.store.SaveReport(ctx, &report); err != nil {
		return model.ATSReport{}, err
	}

	b.reports = append([]model.ATSReport{report}, b.reports...)
	b.metrics.IncReportCreated()
	return report, nil
}

// ApplyStatusChange sets a report's status, persists it and publishes a
// status event. Any status may follow any other.
func (b *ReportBook) ApplyStatusChange(ctx context.Context, reportID string, status model.CandidateStatus) (model.ATSReport, error) {
	if !status.IsValid() {
		return model.ATSReport{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	index := -1
	for i := range b.reports {
		if b.reports[i].ID == reportID {
			index = i
			break
		}
	}
	if index < 0 {
		return model.ATSReport{}, ErrReportNotFound
	}

	updated := ranking.WithStatus(b.reports[index], status)
	if err := b.store.UpdateReport(ctx, &updated); err != nil {
		return model.ATSReport{}, err
	}

	b.reports[index] = updated
	b.metrics.IncStatusChanged(string(status))
	b.notifier.NotifyAsync(events.NewStatusEvent(updated, b.now()))

	b.logger.Info("candidate status changed",
		slog.String("report_id", reportID),
		slog.String("status", string(status)),
	)
	return updated, nil
}

// Snapshot returns a copy of every report, newest first.
func (b *ReportBook) Snapshot() []model.ATSReport {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.ATSReport, len(b.reports))
	copy(out, b.reports)
	return out
}

// Get returns one report by id.
func (b *ReportBook) Get(reportID string) (model.ATSReport, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, r := range b.reports {
		if r.ID == reportID {
			return r, nil
		}
	}
	return model.ATSReport{}, ErrReportNotFound
}

// Leaderboard ranks the reports of one job group, or all for "all".
func (b *ReportBook) Leaderboard(jobFilter string) []model.ATSReport {
	return ranking.Leaderboard(b.Snapshot(), jobFilter)
}

// JobGroups returns the reports bucketed by job title.
func (b *ReportBook) JobGroups() []ranking.Group {
	return ranking.GroupByJobTitle(b.Snapshot())
}

// History returns the reports visible to viewer, newest first.
func (b *ReportBook) History(viewer model.User) []model.ATSReport {
	return ranking.History(b.Snapshot(), viewer)
}

// Analyze scores a resume against a job description and stores the report.
func (b *ReportBook) Analyze(ctx context.Context, user model.User, resumeText, jobDescription string) (model.ATSReport, error) {
	if strings.TrimSpace(resumeText) == "" {
		return model.ATSReport{}, &model.ValidationError{Field: "resume", Code: model.CodeMissingInput, Message: "resume text is required"}
	}
	if strings.TrimSpace(jobDescription) == "" {
		return model.ATSReport{}, &model.ValidationError{Field: "jobDescription", Code: model.CodeMissingInput, Message: "job description is required"}
	}
	if b.scorer == nil {
		return model.ATSReport{}, fmt.Errorf("%w: no scorer configured", oracle.ErrOracleFailure)
	}

	analysis, err := b.scorer.Score(ctx, resumeText, jobDescription)
	if err != nil {
		return model.ATSReport{}, err
	}

	report := model.ATSReport{
		ID:             b.newID(),
		UserID:         user.ID,
		UserName:       user.Name,
		JobTitle:       JobTitleFrom(jobDescription),
		CreatedAt:      b.now(),
		ResumeContent:  resumeText,
		JobDescription: jobDescription,
		Status:         model.StatusPending,
	}
	report.ApplyAnalysis(analysis)

	return b.Add(ctx, report)
}

// JobTitleFrom derives a report title from the first line of a job
// description.
func JobTitleFrom(jobDescription string) string {
	line, _, _ := strings.Cut(jobDescription, "\n")
	runes := []rune(line)
	if len(runes) > maxJobTitleLen {
		runes = runes[:maxJobTitleLen]
	}
	if title := strings.TrimSpace(string(runes)); title != "" {
		return title
	}
	return DefaultJobTitle
}
