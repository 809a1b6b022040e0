package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/atspro/atspro/internal/datastore"
	"github.com/atspro/atspro/internal/model"
)

// ErrUserNotFound is returned when no user matches a lookup.
var ErrUserNotFound = errors.New("user not found")

// GetUsers returns every stored user in storage order.
func (r *Repository) GetUsers(ctx context.Context) ([]model.User, error) {
	users, err := find[model.User](ctx, r, CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

// SaveUser inserts the user or replaces the fields of the stored user with
// the same id.
func (r *Repository) SaveUser(ctx context.Context, user *model.User) error {
	doc, err := datastore.ToDocument(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	_, err = r.exec.Execute(ctx, datastore.ActionUpdateOne, CollectionUsers, datastore.Payload{
		Filter: &datastore.Filter{ID: user.ID},
		Update: doc,
		Upsert: true,
	})
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// FindUserByEmail returns the first user whose email matches
// case-insensitively.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	users, err := r.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if model.SameEmail(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

// GetUserByID returns the user with the given id.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	users, err := r.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, ErrUserNotFound
}
