// Package session holds authentication state and persists it to the local
// store so it survives restarts.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/atspro/atspro/internal/localstore"
	"github.com/atspro/atspro/internal/model"
)

// DefaultKey is the store key of a standalone session.
const DefaultKey = "auth"

// UserSaver persists users. *repository.Repository satisfies it.
type UserSaver interface {
	SaveUser(ctx context.Context, user *model.User) error
}

// Session is one client's authentication state. Every change is written
// through to the store.
type Session struct {
	store  localstore.Store
	key    string
	logger *slog.Logger

	mu    sync.RWMutex
	state model.AuthState
}

// New creates a logged-out session persisted under key.
func New(store localstore.Store, key string, logger *slog.Logger) *Session {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		store:  store,
		key:    key,
		logger: logger,
	}
}

// Key returns the store key of the session.
func (s *Session) Key() string {
	return s.key
}

// Rehydrate loads the persisted state. A missing entry leaves the session
// logged out; an unreadable one is discarded with a warning.
func (s *Session) Rehydrate(ctx context.Context) error {
	data, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		return err
	}

	var state model.AuthState
	if ok && len(data) > 0 {
		if err := json.Unmarshal(data, &state); err != nil {
			s.logger.Warn("discarding unreadable session state",
				slog.String("key", s.key),
				slog.String("error", err.Error()),
			)
			state = model.AuthState{}
		}
	}
	if state.User == nil {
		state.IsAuthenticated = false
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return nil
}

// Login marks user as the authenticated user.
func (s *Session) Login(ctx context.Context, user model.User) error {
	return s.set(ctx, model.AuthState{User: &user, IsAuthenticated: true})
}

// Logout clears the current user.
func (s *Session) Logout(ctx context.Context) error {
	return s.set(ctx, model.AuthState{})
}

// Register saves user and then logs them in.
func (s *Session) Register(ctx context.Context, users UserSaver, user model.User) error {
	if err := users.SaveUser(ctx, &user); err != nil {
		return err
	}
	return s.Login(ctx, user)
}

// State returns a copy of the current state.
func (s *Session) State() model.AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.state
	if state.User != nil {
		u := *state.User
		state.User = &u
	}
	return state
}

// CurrentUser returns the authenticated user, if any.
func (s *Session) CurrentUser() (model.User, bool) {
	state := s.State()
	if !state.IsAuthenticated || state.User == nil {
		return model.User{}, false
	}
	return *state.User, true
}

// set persists state, then makes it current. On a store failure the
// in-memory state is left unchanged.
func (s *Session) set(ctx context.Context, state model.AuthState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: encode session: %w", localstore.ErrIOFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(ctx, s.key, data); err != nil {
		return err
	}
	s.state = state
	return nil
}
