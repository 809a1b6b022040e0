package repository

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/atspro/atspro/internal/datastore"
	"github.com/atspro/atspro/internal/model"
)

// GetReports returns every stored report, newest first.
func (r *Repository) GetReports(ctx context.Context) ([]model.ATSReport, error) {
	reports, err := find[model.ATSReport](ctx, r, CollectionReports)
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	return reports, nil
}

// SaveReport inserts a new report.
func (r *Repository) SaveReport(ctx context.Context, report *model.ATSReport) error {
	doc, err := datastore.ToDocument(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if _, err := r.exec.Execute(ctx, datastore.ActionInsertOne, CollectionReports, datastore.Payload{Document: doc}); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// UpdateReport overwrites the fields of an existing report. Updating a
// report that does not exist is a no-op.
func (r *Repository) UpdateReport(ctx context.Context, report *model.ATSReport) error {
	doc, err := datastore.ToDocument(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = r.exec.Execute(ctx, datastore.ActionUpdateOne, CollectionReports, datastore.Payload{
		Filter: &datastore.Filter{ID: report.ID},
		Update: doc,
	})
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	return nil
}

// GetStats returns the number of stored users and reports. Both
// collections are read concurrently.
func (r *Repository) GetStats(ctx context.Context) (model.Stats, error) {
	var users, reports datastore.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if users, err = r.exec.Execute(gctx, datastore.ActionFind, CollectionUsers, datastore.Payload{}); err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if reports, err = r.exec.Execute(gctx, datastore.ActionFind, CollectionReports, datastore.Payload{}); err != nil {
			return fmt.Errorf("failed to count reports: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Stats{}, err
	}

	return model.Stats{
		UserCount:   len(users.Documents),
		ReportCount: len(reports.Documents),
	}, nil
}
