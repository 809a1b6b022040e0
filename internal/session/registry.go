package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/atspro/atspro/internal/auth"
	"github.com/atspro/atspro/internal/localstore"
	"github.com/atspro/atspro/internal/model"
)

// ErrSessionNotFound is returned for tokens without an authenticated session.
var ErrSessionNotFound = errors.New("session not found")

// KeyPrefix namespaces per-token session keys.
const KeyPrefix = DefaultKey + ":"

// IdleTTL is how long an unused session stays in memory. Evicted sessions
// remain in the store and are rehydrated on their next lookup.
const IdleTTL = 30 * time.Minute

type held struct {
	sess     *Session
	lastSeen time.Time
}

// Registry owns one Session per bearer token.
type Registry struct {
	store  localstore.Store
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	sessions  map[string]*held
	lastSweep time.Time
}

// NewRegistry creates an empty registry over store.
func NewRegistry(store localstore.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:    store,
		logger:   logger.With("component", "session"),
		now:      time.Now,
		sessions: make(map[string]*held),
	}
}

// KeyFor returns the store key of a token's session. Only a digest of the
// token is written to the store.
func KeyFor(token string) string {
	return KeyPrefix + auth.TokenDigest(token)
}

// Begin creates a session under a fresh token and passes it to fn. The
// session is kept only if fn succeeds and leaves it authenticated.
func (r *Registry) Begin(ctx context.Context, fn func(*Session) error) (string, *Session, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return "", nil, err
	}

	sess := New(r.store, KeyFor(token), r.logger)
	if err := fn(sess); err != nil {
		return "", nil, err
	}
	if _, ok := sess.CurrentUser(); !ok {
		return "", nil, ErrSessionNotFound
	}

	r.mu.Lock()
	r.keep(token, sess)
	r.mu.Unlock()
	return token, sess, nil
}

// Lookup returns the authenticated session of token, rehydrating it from
// the store on first use.
func (r *Registry) Lookup(ctx context.Context, token string) (*Session, error) {
	r.mu.Lock()
	h, ok := r.sessions[token]
	if ok {
		h.lastSeen = r.now()
	}
	r.mu.Unlock()
	if ok {
		if _, authed := h.sess.CurrentUser(); authed {
			return h.sess, nil
		}
		return nil, ErrSessionNotFound
	}

	if !auth.ValidateTokenFormat(token) {
		return nil, ErrSessionNotFound
	}

	sess := New(r.store, KeyFor(token), r.logger)
	if err := sess.Rehydrate(ctx); err != nil {
		return nil, err
	}
	if _, authed := sess.CurrentUser(); !authed {
		return nil, ErrSessionNotFound
	}

	r.mu.Lock()
	if existing, ok := r.sessions[token]; ok {
		sess = existing.sess
	} else {
		r.keep(token, sess)
	}
	r.mu.Unlock()
	return sess, nil
}

// End logs the token's session out and forgets it.
func (r *Registry) End(ctx context.Context, token string) error {
	sess, err := r.Lookup(ctx, token)
	if err != nil {
		return err
	}
	if err := sess.Logout(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
	return nil
}

// RefreshUser replaces the user of every held session signed in as
// user.ID, so a profile change shows up in the user's other sessions.
func (r *Registry) RefreshUser(ctx context.Context, user model.User) error {
	r.mu.Lock()
	var targets []*Session
	for _, h := range r.sessions {
		if current, ok := h.sess.CurrentUser(); ok && current.ID == user.ID {
			targets = append(targets, h.sess)
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, sess := range targets {
		if err := sess.Login(ctx, user); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// keep stores sess under token and evicts idle sessions at most once per
// IdleTTL. Caller holds mu.
func (r *Registry) keep(token string, sess *Session) {
	now := r.now()
	r.sessions[token] = &held{sess: sess, lastSeen: now}

	if now.Sub(r.lastSweep) < IdleTTL {
		return
	}
	r.lastSweep = now
	for t, h := range r.sessions {
		if now.Sub(h.lastSeen) > IdleTTL {
			delete(r.sessions, t)
		}
	}
}

// Len returns the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
