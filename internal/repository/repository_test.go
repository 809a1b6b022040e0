package repository

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/atspro/atspro/internal/datastore"
	"github.com/atspro/atspro/internal/localstore"
	"github.com/atspro/atspro/internal/model"
	"github.com/atspro/atspro/internal/testutil"
)

func newTestRepository(t *testing.T) (*Repository, localstore.Store) {
	t.Helper()
	store := localstore.NewMemoryStore()
	adapter := datastore.New(datastore.NewLocal(store, ""), nil, testutil.DiscardLogger(), nil)
	return New(adapter, testutil.DiscardLogger()), store
}

func TestRepository_SaveAndGetUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	users, err := repo.GetUsers(ctx)
	if err != nil {
		t.Fatalf("get users: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected empty collection, got %d", len(users))
	}

	alice := testutil.NewUser("alice")
	if err := repo.SaveUser(ctx, &alice); err != nil {
		t.Fatalf("save user: %v", err)
	}

	users, err = repo.GetUsers(ctx)
	if err != nil {
		t.Fatalf("get users: %v", err)
	}
	if len(users) != 1 || !reflect.DeepEqual(users[0], alice) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", users, alice)
	}

	// Saving again with a changed name updates in place.
	alice.Name = "Alice Renamed"
	if err := repo.SaveUser(ctx, &alice); err != nil {
		t.Fatalf("resave user: %v", err)
	}
	users, _ = repo.GetUsers(ctx)
	if len(users) != 1 || users[0].Name != "Alice Renamed" {
		t.Fatalf("expected single renamed user, got %+v", users)
	}
}

func TestRepository_FindUserByEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	bob := testutil.NewUser("bob")
	_ = repo.SaveUser(ctx, &bob)

	found, err := repo.FindUserByEmail(ctx, "  BOB@Example.com ")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if found.ID != "bob" {
		t.Errorf("found %q, want bob", found.ID)
	}

	if _, err := repo.FindUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	byID, err := repo.GetUserByID(ctx, "bob")
	if err != nil || byID.Email != bob.Email {
		t.Errorf("GetUserByID = %+v, %v", byID, err)
	}
	if _, err := repo.GetUserByID(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRepository_ReportsNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	old := testutil.NewReport("r-old", "u1", "Backend Engineer", 60, 0)
	mid := testutil.NewReport("r-mid", "u1", "Backend Engineer", 90, time.Hour)
	newest := testutil.NewReport("r-new", "u2", "Designer", 40, 2*time.Hour)

	for _, r := range []model.ATSReport{mid, old, newest} {
		if err := repo.SaveReport(ctx, &r); err != nil {
			t.Fatalf("save report %s: %v", r.ID, err)
		}
	}

	reports, err := repo.GetReports(ctx)
	if err != nil {
		t.Fatalf("get reports: %v", err)
	}

	var ids []string
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	want := []string{"r-new", "r-mid", "r-old"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
	if !reflect.DeepEqual(reports[1], mid) {
		t.Errorf("report round trip mismatch:\n got %+v\nwant %+v", reports[1], mid)
	}
}

func TestRepository_UpdateReport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	report := testutil.NewReport("r1", "u1", "Backend Engineer", 75, 0)
	_ = repo.SaveReport(ctx, &report)

	report.Status = model.StatusShortlisted
	if err := repo.UpdateReport(ctx, &report); err != nil {
		t.Fatalf("update report: %v", err)
	}

	reports, _ := repo.GetReports(ctx)
	if len(reports) != 1 || reports[0].Status != model.StatusShortlisted {
		t.Fatalf("expected shortlisted report, got %+v", reports)
	}

	// Updating an unknown report does not create it.
	ghost := testutil.NewReport("ghost", "u1", "Backend Engineer", 10, 0)
	if err := repo.UpdateReport(ctx, &ghost); err != nil {
		t.Fatalf("update unknown report: %v", err)
	}
	reports, _ = repo.GetReports(ctx)
	if len(reports) != 1 {
		t.Errorf("unknown report was inserted: %d reports", len(reports))
	}
}

func TestRepository_GetStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	for _, id := range []string{"u1", "u2"} {
		u := testutil.NewUser(id)
		_ = repo.SaveUser(ctx, &u)
	}
	for i, id := range []string{"r1", "r2", "r3"} {
		r := testutil.NewReport(id, "u1", "Backend Engineer", 50, time.Duration(i)*time.Minute)
		_ = repo.SaveReport(ctx, &r)
	}

	stats, err := repo.GetStats(ctx)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats != (model.Stats{UserCount: 2, ReportCount: 3}) {
		t.Errorf("stats = %+v, want 2 users and 3 reports", stats)
	}
}

func TestRepository_SkipsUndecodableDocuments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, store := newTestRepository(t)

	raw := `[{"id":"r1","createdAt":"2025-03-14T09:00:00Z","overallScore":80},` +
		`{"id":"r2","createdAt":"not a time"}]`
	if err := store.Set(ctx, "ats_db_reports", []byte(raw)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reports, err := repo.GetReports(ctx)
	if err != nil {
		t.Fatalf("get reports: %v", err)
	}
	if len(reports) != 1 || reports[0].ID != "r1" {
		t.Errorf("expected only r1, got %+v", reports)
	}
}

type failingExecutor struct{}

func (failingExecutor) Execute(context.Context, datastore.Action, string, datastore.Payload) (datastore.Result, error) {
	return datastore.Result{}, localstore.ErrIOFailure
}

func TestRepository_PropagatesIOFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := New(failingExecutor{}, testutil.DiscardLogger())

	user := testutil.NewUser("u1")
	report := testutil.NewReport("r1", "u1", "Backend Engineer", 50, 0)

	checks := map[string]error{
		"GetUsers":     func() error { _, err := repo.GetUsers(ctx); return err }(),
		"SaveUser":     repo.SaveUser(ctx, &user),
		"GetReports":   func() error { _, err := repo.GetReports(ctx); return err }(),
		"SaveReport":   repo.SaveReport(ctx, &report),
		"UpdateReport": repo.UpdateReport(ctx, &report),
		"GetStats":     func() error { _, err := repo.GetStats(ctx); return err }(),
	}
	for name, err := range checks {
		if !errors.Is(err, localstore.ErrIOFailure) {
			t.Errorf("%s: err = %v, want ErrIOFailure", name, err)
		}
	}
}
