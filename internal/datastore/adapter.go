package datastore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atspro/atspro/internal/metrics"
)

// Adapter runs collection operations remotely when a Data API is configured
// and locally otherwise or whenever the remote is unavailable.
type Adapter struct {
	remote  *Remote
	local   *Local
	logger  *slog.Logger
	metrics metrics.Recorder
}

// New creates an Adapter. Pass a nil remote to run local-only.
func New(local *Local, remote *Remote, logger *slog.Logger, recorder metrics.Recorder) *Adapter {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		remote:  remote,
		local:   local,
		logger:  logger.With("component", "datastore"),
		metrics: recorder,
	}
}

// RemoteEnabled reports whether operations try the remote first.
func (a *Adapter) RemoteEnabled() bool {
	return a.remote != nil
}

// Execute performs action on collection. Remote failures are logged and
// answered from the local store; only local failures are returned.
func (a *Adapter) Execute(ctx context.Context, action Action, collection string, payload Payload) (Result, error) {
	if !action.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	remote := a.tryRemote(ctx, action, collection, payload)
	if result, ok := remote.Result(); ok {
		a.metrics.IncRemoteSuccess(string(action))
		return result, nil
	}

	if a.remote != nil {
		a.metrics.IncRemoteFallback(string(action))
		a.logger.Warn("remote request failed, falling back to local store",
			slog.String("action", string(action)),
			slog.String("collection", collection),
			slog.String("reason", remote.Reason().Error()),
		)
	}

	a.metrics.IncLocalOperation(string(action))
	return a.local.Do(ctx, action, collection, payload)
}

// tryRemote returns Unavailable without a network call when unconfigured.
func (a *Adapter) tryRemote(ctx context.Context, action Action, collection string, payload Payload) RemoteResult {
	if a.remote == nil {
		return Unavailable(fmt.Errorf("%w: not configured", ErrRemoteUnavailable))
	}
	return a.remote.Do(ctx, action, collection, payload)
}
