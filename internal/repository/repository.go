// Package repository provides the domain store: typed access to the users
// and reports collections through the persistence adapter.
package repository

import (
	"context"
	"log/slog"

	"github.com/atspro/atspro/internal/datastore"
)

// Collection names.
const (
	CollectionUsers   = "users"
	CollectionReports = "reports"
)

// Executor runs a collection operation. *datastore.Adapter satisfies it.
type Executor interface {
	Execute(ctx context.Context, action datastore.Action, collection string, payload datastore.Payload) (datastore.Result, error)
}

// Repository provides domain access methods.
type Repository struct {
	exec   Executor
	logger *slog.Logger
}

// New creates a new Repository over the given executor.
func New(exec Executor, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		exec:   exec,
		logger: logger.With("component", "repository"),
	}
}

// find loads every document of a collection and decodes each into T.
// Documents that do not decode are skipped.
func find[T any](ctx context.Context, r *Repository, collection string) ([]T, error) {
	result, err := r.exec.Execute(ctx, datastore.ActionFind, collection, datastore.Payload{})
	if err != nil {
		return nil, err
	}

	items := make([]T, 0, len(result.Documents))
	for _, doc := range result.Documents {
		var item T
		if err := doc.Decode(&item); err != nil {
			r.logger.Warn("skipping undecodable document",
				slog.String("collection", collection),
				slog.String("id", doc.ID()),
				slog.String("error", err.Error()),
			)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
