package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/atspro/atspro/internal/auth"
	"github.com/atspro/atspro/internal/model"
	"github.com/atspro/atspro/internal/repository"
	"github.com/atspro/atspro/internal/session"
)

// Default admin account seeded into an empty or admin-less user collection.
const (
	DefaultAdminID       = "admin-001"
	DefaultAdminEmail    = "admin@atspro.com"
	DefaultAdminPassword = "admin123"
	DefaultAdminName     = "Principal Recruiter"
)

// UserStore persists users. *repository.Repository satisfies it.
type UserStore interface {
	GetUsers(ctx context.Context) ([]model.User, error)
	SaveUser(ctx context.Context, user *model.User) error
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// AuthService handles registration, login and profile changes.
type AuthService struct {
	users    UserStore
	verifier auth.Verifier
	logger   *slog.Logger
	newID    func() string

	// Held from the email uniqueness check until the user is saved.
	emailMu sync.Mutex
}

// NewAuthService creates an AuthService. A nil verifier compares plaintext.
func NewAuthService(users UserStore, verifier auth.Verifier, logger *slog.Logger) *AuthService {
	if verifier == nil {
		verifier = auth.PlaintextVerifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:    users,
		verifier: verifier,
		logger:   logger.With("component", "auth"),
		newID:    uuid.NewString,
	}
}

// RegisterInput defines input for creating an account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// Register validates input, saves a new user and logs them into sess.
func (s *AuthService) Register(ctx context.Context, sess *session.Session, input RegisterInput) (*model.User, error) {
	email := strings.TrimSpace(input.Email)
	name := strings.TrimSpace(input.Name)

	if err := model.ValidateName(name); err != nil {
		return nil, err
	}
	if err := model.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := model.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	stored, err := s.verifier.Prepare(input.Password)
	if err != nil {
		return nil, err
	}

	s.emailMu.Lock()
	defer s.emailMu.Unlock()

	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	user := model.User{
		ID:       s.newID(),
		Email:    email,
		Password: stored,
		Name:     name,
		Role:     model.RoleUser,
	}
	if err := sess.Register(ctx, s.users, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	return &user, nil
}

// Login checks credentials and logs the matching user into sess. Email
// matching ignores case; the password must match exactly.
func (s *AuthService) Login(ctx context.Context, sess *session.Session, email, password string) (*model.User, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, badCredentials()
		}
		return nil, err
	}
	if !s.verifier.Verify(password, user.Password) {
		return nil, badCredentials()
	}

	if err := sess.Login(ctx, *user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfile changes the name and email of the session's user.
func (s *AuthService) UpdateProfile(ctx context.Context, sess *session.Session, name, email string) (*model.User, error) {
	current, ok := sess.CurrentUser()
	if !ok {
		return nil, session.ErrSessionNotFound
	}

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if err := model.ValidateName(name); err != nil {
		return nil, err
	}
	if err := model.ValidateEmail(email); err != nil {
		return nil, err
	}

	s.emailMu.Lock()
	defer s.emailMu.Unlock()

	if err := s.ensureEmailFree(ctx, email, current.ID); err != nil {
		return nil, err
	}

	updated := current
	updated.Name = name
	updated.Email = email

	if err := s.users.SaveUser(ctx, &updated); err != nil {
		return nil, err
	}
	if err := sess.Login(ctx, updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// EnsureDefaultAdmin seeds the default admin when there are no users or
// none has the default admin email. An existing admin is never modified.
func (s *AuthService) EnsureDefaultAdmin(ctx context.Context) error {
	s.emailMu.Lock()
	defer s.emailMu.Unlock()

	users, err := s.users.GetUsers(ctx)
	if err != nil {
		return err
	}

	for _, u := range users {
		if u.Email == DefaultAdminEmail {
			return nil
		}
	}

	password, err := s.verifier.Prepare(DefaultAdminPassword)
	if err != nil {
		return err
	}
	admin := model.User{
		ID:       DefaultAdminID,
		Email:    DefaultAdminEmail,
		Password: password,
		Name:     DefaultAdminName,
		Role:     model.RoleAdmin,
	}
	if err := s.users.SaveUser(ctx, &admin); err != nil {
		return err
	}

	s.logger.Info("default admin created", slog.String("email", DefaultAdminEmail))
	return nil
}

// ensureEmailFree fails when another user (not exceptID) has email.
func (s *AuthService) ensureEmailFree(ctx context.Context, email, exceptID string) error {
	existing, err := s.users.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID == exceptID:
		return nil
	default:
		return &model.ValidationError{Field: "email", Code: model.CodeEmailTaken, Message: "an account with this email already exists"}
	}
}

func badCredentials() error {
	return &model.ValidationError{Field: "credentials", Code: model.CodeBadCredentials, Message: "invalid email or password"}
}
