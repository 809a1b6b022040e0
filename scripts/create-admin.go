// Command create-admin adds a recruiter account, or promotes an existing
// user, in the configured store. It reads the same environment as the API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"

	"github.com/atspro/atspro/internal/auth"
	"github.com/atspro/atspro/internal/config"
	"github.com/atspro/atspro/internal/datastore"
	"github.com/atspro/atspro/internal/localstore"
	"github.com/atspro/atspro/internal/metrics"
	"github.com/atspro/atspro/internal/model"
	"github.com/atspro/atspro/internal/repository"
)

type output struct {
	UserID   string     `json:"user_id"`
	Email    string     `json:"email"`
	Name     string     `json:"name"`
	Role     model.Role `json:"role"`
	Promoted bool       `json:"promoted"`
}

func main() {
	_ = godotenv.Load()

	var (
		email    = flag.String("email", "", "Admin email (required)")
		name     = flag.String("name", "Recruiter", "Display name")
		password = flag.String("password", os.Getenv("ADMIN_PASSWORD"), "Password for a new account")
		format   = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if strings.TrimSpace(*email) == "" {
		fail("--email is required")
	}

	cfg, err := config.Load()
	if err != nil {
		fail("load config:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := localstore.Open(ctx, localstore.Options{
		Backend:     cfg.LocalStore,
		Dir:         cfg.LocalStoreDir,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		Table:       cfg.KVTable,
	})
	if err != nil {
		fail("open local store:", err)
	}
	defer store.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var remote *datastore.Remote
	if rc := cfg.RemoteConfig(); rc.IsConfigured() {
		remote = datastore.NewRemote(rc, datastore.NewHTTPClient(cfg.DataAPITimeout))
	}
	repo := repository.New(datastore.New(datastore.NewLocal(store, cfg.StoragePrefix), remote, logger, metrics.NewNoop()), logger)

	verifier, err := auth.NewVerifier(cfg.CredentialScheme)
	if err != nil {
		fail(err)
	}

	out, err := ensureAdmin(ctx, repo, verifier, strings.TrimSpace(*email), *name, *password)
	if err != nil {
		fail(err)
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.UserID)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fail("invalid format; use plain or json")
	}
}

// ensureAdmin promotes the user with email, or creates one when none exists.
func ensureAdmin(ctx context.Context, repo *repository.Repository, verifier auth.Verifier, email, name, password string) (output, error) {
	existing, err := repo.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		promoted := existing.Role != model.RoleAdmin
		existing.Role = model.RoleAdmin
		if err := repo.SaveUser(ctx, existing); err != nil {
			return output{}, fmt.Errorf("promote user: %w", err)
		}
		return output{UserID: existing.ID, Email: existing.Email, Name: existing.Name, Role: existing.Role, Promoted: promoted}, nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return output{}, fmt.Errorf("find user: %w", err)
	}

	if len(password) < model.MinPasswordLength {
		return output{}, fmt.Errorf("--password must be at least %d characters for a new account", model.MinPasswordLength)
	}
	stored, err := verifier.Prepare(password)
	if err != nil {
		return output{}, fmt.Errorf("prepare password: %w", err)
	}

	user := &model.User{
		ID:       "admin-" + strings.ToLower(ulid.Make().String()),
		Email:    email,
		Password: stored,
		Name:     name,
		Role:     model.RoleAdmin,
	}
	if err := repo.SaveUser(ctx, user); err != nil {
		return output{}, fmt.Errorf("create user: %w", err)
	}
	return output{UserID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}, nil
}

func fail(args ...any) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}
