package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/atspro/atspro/internal/auth"
	"github.com/atspro/atspro/internal/datastore"
	"github.com/atspro/atspro/internal/localstore"
	"github.com/atspro/atspro/internal/metrics"
	"github.com/atspro/atspro/internal/model"
	"github.com/atspro/atspro/internal/repository"
	"github.com/atspro/atspro/internal/service"
	"github.com/atspro/atspro/internal/session"
	"github.com/atspro/atspro/internal/testutil"
)

type stubScorer struct {
	analysis *model.Analysis
	err      error
	resumes  []string
}

func (s *stubScorer) Score(_ context.Context, resumeText, _ string) (*model.Analysis, error) {
	s.resumes = append(s.resumes, resumeText)
	return s.analysis, s.err
}

func sampleAnalysis(score float64) *model.Analysis {
	return &model.Analysis{
		OverallScore:     score,
		MatchedSkills:    []string{"Go", "PostgreSQL"},
		MissingSkills:    []string{"Kubernetes"},
		SemanticAnalysis: "Strong backend profile.",
		ImprovementTips:  []string{"Quantify impact."},
		CategoryScores: []model.CategoryScore{
			{Subject: "Technical Stack", Value: 85, FullMark: 100},
		},
	}
}

type fixture struct {
	repo     *repository.Repository
	book     *service.ReportBook
	svc      *service.AuthService
	registry *session.Registry
	scorer   *stubScorer
	metrics  *metrics.InMemoryRecorder

	auth     *AuthHandler
	analysis *AnalysisHandler
	reports  *ReportHandler
	admin    *AdminHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := testutil.DiscardLogger()
	store := localstore.NewMemoryStore()
	recorder := metrics.NewInMemory()
	adapter := datastore.New(datastore.NewLocal(store, ""), nil, logger, recorder)
	repo := repository.New(adapter, logger)

	scorer := &stubScorer{analysis: sampleAnalysis(82)}
	book := service.NewReportBook(repo, service.ReportBookOptions{
		Scorer:  scorer,
		Logger:  logger,
		Metrics: recorder,
	})
	svc := service.NewAuthService(repo, auth.PlaintextVerifier{}, logger)
	registry := session.NewRegistry(store, logger)

	return &fixture{
		repo:     repo,
		book:     book,
		svc:      svc,
		registry: registry,
		scorer:   scorer,
		metrics:  recorder,
		auth:     NewAuthHandler(svc, registry, logger),
		analysis: NewAnalysisHandler(book, 1<<10, logger),
		reports:  NewReportHandler(book, logger),
		admin:    NewAdminHandler(book, repo, logger),
	}
}

// login saves user and opens a session for it.
func (f *fixture) login(t *testing.T, user model.User) string {
	t.Helper()

	if err := f.repo.SaveUser(context.Background(), &user); err != nil {
		t.Fatalf("SaveUser() error = %v", err)
	}
	token, _, err := f.registry.Begin(context.Background(), func(s *session.Session) error {
		return s.Login(context.Background(), user)
	})
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	return token
}

// seed stores reports and reloads the book.
func (f *fixture) seed(t *testing.T, reports ...model.ATSReport) {
	t.Helper()

	for i := range reports {
		if err := f.repo.SaveReport(context.Background(), &reports[i]); err != nil {
			t.Fatalf("SaveReport() error = %v", err)
		}
	}
	if err := f.book.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func withIdentity(r *http.Request, user model.User, token string) *http.Request {
	return r.WithContext(auth.ContextWithIdentity(r.Context(), &auth.Identity{Token: token, User: user}))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
