package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atspro/atspro/internal/analytics"
	"github.com/atspro/atspro/internal/auth"
	"github.com/atspro/atspro/internal/cache"
	"github.com/atspro/atspro/internal/datastore"
	"github.com/atspro/atspro/internal/handler/dto"
	"github.com/atspro/atspro/internal/localstore"
	"github.com/atspro/atspro/internal/metrics"
	"github.com/atspro/atspro/internal/model"
	"github.com/atspro/atspro/internal/repository"
	"github.com/atspro/atspro/internal/service"
	"github.com/atspro/atspro/internal/session"
	"github.com/atspro/atspro/internal/testutil"
)

type fixedScorer struct{ score float64 }

func (s fixedScorer) Score(context.Context, string, string) (*model.Analysis, error) {
	return &model.Analysis{
		OverallScore:     s.score,
		MatchedSkills:    []string{"Go"},
		MissingSkills:    []string{},
		SemanticAnalysis: "Good fit.",
		ImprovementTips:  []string{"Add metrics."},
		CategoryScores:   []model.CategoryScore{{Subject: "Technical Stack", Value: 80, FullMark: 100}},
	}, nil
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string, string, cache.Limit) (*cache.RateLimitResult, error) {
	return &cache.RateLimitResult{Allowed: false, RetryAfter: 30 * time.Second}, nil
}

func newTestRouter(t *testing.T, mutate func(*Deps)) http.Handler {
	t.Helper()

	logger := testutil.DiscardLogger()
	store := localstore.NewMemoryStore()
	recorder := metrics.NewInMemory()
	repo := repository.New(datastore.New(datastore.NewLocal(store, ""), nil, logger, recorder), logger)

	authSvc := service.NewAuthService(repo, auth.PlaintextVerifier{}, logger)
	if err := authSvc.EnsureDefaultAdmin(context.Background()); err != nil {
		t.Fatalf("EnsureDefaultAdmin() error = %v", err)
	}
	book := service.NewReportBook(repo, service.ReportBookOptions{
		Scorer:  fixedScorer{score: 77},
		Logger:  logger,
		Metrics: recorder,
	})

	deps := Deps{
		Config: RouterConfig{
			MaxUploadSize: 1 << 20,
			AnalysisLimit: cache.Limit{PerMinute: 10, Burst: 3},
			LoginLimit:    cache.Limit{PerMinute: 20, Burst: 5},
		},
		Logger:    logger,
		Book:      book,
		Auth:      authSvc,
		Sessions:  session.NewRegistry(store, logger),
		Directory: repo,
		Store:     store,
		Metrics:   recorder,
	}
	if mutate != nil {
		mutate(&deps)
	}
	return NewRouter(deps)
}

func call(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func loginAs(t *testing.T, h http.Handler, email, password string) string {
	t.Helper()

	rec := call(t, h, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"`+email+`","password":"`+password+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d; body %s", rec.Code, rec.Body.String())
	}
	var resp dto.SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp.Token
}

func TestRouter_CandidateAndRecruiterFlow(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, nil)

	// Candidate registers and runs an analysis.
	rec := call(t, h, http.MethodPost, "/api/v1/auth/register", "",
		`{"email":"cand@example.com","password":"secret1","name":"Cand"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d; body %s", rec.Code, rec.Body.String())
	}
	var registered dto.SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&registered); err != nil {
		t.Fatal(err)
	}

	rec = call(t, h, http.MethodPost, "/api/v1/analyses", registered.Token,
		`{"resumeText":"Go engineer","jobDescription":"Backend Engineer\nBuild APIs"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("analysis status = %d; body %s", rec.Code, rec.Body.String())
	}
	var report model.ATSReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.JobTitle != "Backend Engineer" || report.Status != model.StatusPending {
		t.Errorf("report = %+v", report)
	}

	// Candidates cannot reach admin routes.
	if rec := call(t, h, http.MethodGet, "/api/v1/admin/reports", registered.Token, ""); rec.Code != http.StatusForbidden {
		t.Errorf("candidate admin access status = %d, want 403", rec.Code)
	}

	// Recruiter shortlists the candidate.
	admin := loginAs(t, h, service.DefaultAdminEmail, service.DefaultAdminPassword)
	rec = call(t, h, http.MethodPatch, "/api/v1/admin/reports/"+report.ID+"/status", admin, `{"status":"shortlisted"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status update = %d; body %s", rec.Code, rec.Body.String())
	}

	// The candidate sees the new status in their history.
	rec = call(t, h, http.MethodGet, "/api/v1/reports", registered.Token, "")
	var list dto.ReportListResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || list.Reports[0].Status != model.StatusShortlisted {
		t.Errorf("history = %+v", list)
	}

	// Logging out invalidates the token.
	if rec := call(t, h, http.MethodPost, "/api/v1/auth/logout", registered.Token, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if rec := call(t, h, http.MethodGet, "/api/v1/auth/me", registered.Token, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("me after logout = %d, want 401", rec.Code)
	}
}

func TestRouter_Guards(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, nil)

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		wantStatus  int
	}{
		{"reports need a session", http.MethodGet, "/api/v1/reports", "", http.StatusUnauthorized},
		{"admin needs a session", http.MethodGet, "/api/v1/admin/stats", "", http.StatusUnauthorized},
		{"login wants json", http.MethodPost, "/api/v1/auth/login", "text/plain", http.StatusUnsupportedMediaType},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/api/v1/auth/login", "", http.StatusMethodNotAllowed},
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"readiness", http.MethodGet, "/readyz", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var body io.Reader
			if tt.contentType != "" {
				body = strings.NewReader("x")
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
			if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("security headers not applied")
			}
		})
	}
}

func TestRouter_LoginRateLimited(t *testing.T) {
	t.Parallel()
	h := newTestRouter(t, func(d *Deps) { d.Limiter = denyAll{} })

	rec := call(t, h, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"`+service.DefaultAdminEmail+`","password":"`+service.DefaultAdminPassword+`"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestRouter_TimelineOnlyWhenEnabled(t *testing.T) {
	t.Parallel()

	disabled := newTestRouter(t, nil)
	admin := loginAs(t, disabled, service.DefaultAdminEmail, service.DefaultAdminPassword)
	if rec := call(t, disabled, http.MethodGet, "/api/v1/admin/reports/r-1/timeline", admin, ""); rec.Code != http.StatusNotFound {
		t.Errorf("disabled timeline status = %d, want 404", rec.Code)
	}

	enabled := newTestRouter(t, func(d *Deps) {
		d.Timeline = analytics.NewTimeline(localstore.NewMemoryStore())
	})
	admin = loginAs(t, enabled, service.DefaultAdminEmail, service.DefaultAdminPassword)
	cand := call(t, enabled, http.MethodPost, "/api/v1/auth/register", "",
		`{"email":"tl@example.com","password":"secret1","name":"TL"}`)
	var sess dto.SessionResponse
	if err := json.NewDecoder(cand.Body).Decode(&sess); err != nil {
		t.Fatal(err)
	}
	rec := call(t, enabled, http.MethodPost, "/api/v1/analyses", sess.Token,
		`{"resumeText":"Go engineer","jobDescription":"SRE\nKeep it up"}`)
	var report model.ATSReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}

	rec = call(t, enabled, http.MethodGet, "/api/v1/admin/reports/"+report.ID+"/timeline", admin, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("timeline status = %d; body %s", rec.Code, rec.Body.String())
	}
	var tl dto.TimelineResponse
	if err := json.NewDecoder(rec.Body).Decode(&tl); err != nil {
		t.Fatal(err)
	}
	if tl.ReportID != report.ID || tl.Total != 0 {
		t.Errorf("timeline = %+v", tl)
	}
}

func TestRouter_PrometheusMetrics(t *testing.T) {
	t.Parallel()

	prom := metrics.NewPrometheus()
	h := newTestRouter(t, func(d *Deps) {
		d.Metrics = nil
		d.MetricsHandler = prom.Handler()
		d.HTTPObserver = prom
	})

	if rec := call(t, h, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}

	rec := call(t, h, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if want := `atspro_http_requests_total{method="GET",route="/healthz",status="200"} 1`; !strings.Contains(rec.Body.String(), want) {
		t.Errorf("exposition missing %q", want)
	}
}
