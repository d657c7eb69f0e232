// Package outbox pushes queued optimistic writes to the authority and folds
// the echoes back into the replica.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcus/wsmenu/internal/db"
	"github.com/marcus/wsmenu/internal/events"
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
	"github.com/marcus/wsmenu/internal/syncclient"
)

// Store is the replica side of a flush.
type Store interface {
	GetWorkspace(id string) (*models.Workspace, error)
	PendingWrites(workspaceID string) ([]db.Write, error)
	MarkSent(writeID string) error
	ApplyEcho(e events.FeatureToggled) (db.EchoOutcome, error)
}

// Authority accepts feature writes.
type Authority interface {
	SetFeature(ctx context.Context, id string, f features.Feature, enabled bool, writeID string) (*events.FeatureToggled, error)
}

// Result counts what a flush did.
type Result struct {
	Sent       int `json:"sent"`
	Applied    int `json:"applied"`
	Superseded int `json:"superseded"`
	Stale      int `json:"stale"`
	Rejected   int `json:"rejected"`
	Remaining  int `json:"remaining"`
}

// Flush sends unsent writes for workspaceID (all workspaces when empty) in
// queue order. A retryable failure stops the flush and leaves the rest
// queued. A write the authority can never accept is settled locally as a
// rejection.
func Flush(ctx context.Context, store Store, client Authority, workspaceID string) (Result, error) {
	var res Result
	writes, err := store.PendingWrites(workspaceID)
	if err != nil {
		return res, fmt.Errorf("load pending writes: %w", err)
	}

	for i, w := range writes {
		if err := ctx.Err(); err != nil {
			res.Remaining = len(writes) - i
			return res, err
		}

		echo, err := client.SetFeature(ctx, w.WorkspaceID, w.Feature, w.Enabled, w.WriteID)
		if err != nil {
			if syncclient.IsRetryable(err) {
				res.Remaining = len(writes) - i
				return res, fmt.Errorf("send %s %s: %w", w.WorkspaceID, w.Feature.Key(), err)
			}
			slog.Warn("write refused, settling locally", "workspace", w.WorkspaceID, "feature", w.Feature.Key(), "err", err)
			if echo, err = localRejection(store, w, err); err != nil {
				res.Remaining = len(writes) - i
				return res, err
			}
		}

		// A concurrent flush may have marked or superseded the row already;
		// the echo still has to be folded in.
		if err := store.MarkSent(w.WriteID); err != nil && !errors.Is(err, db.ErrWriteGone) {
			res.Remaining = len(writes) - i
			return res, err
		}
		res.Sent++

		outcome, err := store.ApplyEcho(*echo)
		if err != nil {
			res.Remaining = len(writes) - i - 1
			return res, fmt.Errorf("apply echo %s: %w", w.WriteID, err)
		}
		if echo.Status == events.StatusRejected {
			res.Rejected++
		}
		switch outcome {
		case db.EchoApplied:
			res.Applied++
		case db.EchoSuperseded:
			res.Superseded++
		case db.EchoStale:
			res.Stale++
		}
		slog.Debug("write flushed", "workspace", w.WorkspaceID, "feature", w.Feature.Key(),
			"status", echo.Status, "outcome", outcome)
	}
	return res, nil
}

// localRejection builds the rejection for a write the authority refused
// outright. It carries the record's current version: nothing changed
// remotely, so only the write itself is settled.
func localRejection(store Store, w db.Write, cause error) (*events.FeatureToggled, error) {
	ws, err := store.GetWorkspace(w.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("settle %s: %w", w.WriteID, err)
	}
	e := events.NewRejected(w.WorkspaceID, w.Feature, w.Previous, w.WriteID, max(ws.Version, 1), "refused", cause.Error())
	return &e, nil
}

// Loop flushes every interval until ctx is done. onFlush, if set, sees each
// flush that sent something or failed.
func Loop(ctx context.Context, store Store, client Authority, workspaceID string, interval time.Duration, onFlush func(Result, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		res, err := Flush(ctx, store, client, workspaceID)
		if onFlush != nil && (err != nil || res.Sent > 0) {
			onFlush(res, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
