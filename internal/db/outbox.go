package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/marcus/wsmenu/internal/events"
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
)

// Write is one optimistic feature write. Previous is the value the
// authority last confirmed before this write and its predecessors.
type Write struct {
	Seq         int64
	WriteID     string
	WorkspaceID string
	Feature     features.Feature
	Enabled     bool
	Previous    bool
	CreatedAt   time.Time
	SentAt      *time.Time
	AckedAt     *time.Time
}

// EchoOutcome says what ApplyEcho did with an echo.
type EchoOutcome string

const (
	// EchoApplied: the record now carries the authority's value.
	EchoApplied EchoOutcome = "applied"
	// EchoSuperseded: a newer local write for the feature is outstanding,
	// so the record was left alone.
	EchoSuperseded EchoOutcome = "superseded"
	// EchoStale: the echo is not newer than the stored record.
	EchoStale EchoOutcome = "stale"
)

const writeColumns = `seq, write_id, workspace_id, feature, enabled, previous, created_at, sent_at, acked_at`

// ToggleFeature applies an optimistic write: the flag is set, the pending
// marker raised and an outbox row queued. Unsent rows for the same feature
// are superseded.
func (db *DB) ToggleFeature(workspaceID string, f features.Feature, enabled bool) (*Write, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("cannot toggle feature %v", f)
	}

	var w *Write
	err := db.inTx(func(tx *sql.Tx) error {
		ws, err := getWorkspace(tx, workspaceID)
		if err != nil {
			return err
		}

		previous := features.Enabled(ws, f)
		var oldest sql.NullBool
		err = tx.QueryRow(`SELECT previous FROM outbox WHERE workspace_id = ? AND feature = ? AND acked_at IS NULL ORDER BY seq LIMIT 1`,
			workspaceID, f.Key()).Scan(&oldest)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read outstanding write: %w", err)
		}
		if oldest.Valid {
			previous = oldest.Bool
		}

		if _, err := tx.Exec(`DELETE FROM outbox WHERE workspace_id = ? AND feature = ? AND sent_at IS NULL AND acked_at IS NULL`,
			workspaceID, f.Key()); err != nil {
			return fmt.Errorf("supersede writes: %w", err)
		}

		now := time.Now().UTC()
		w = &Write{
			WriteID:     uuid.NewString(),
			WorkspaceID: workspaceID,
			Feature:     f,
			Enabled:     enabled,
			Previous:    previous,
			CreatedAt:   now,
		}
		res, err := tx.Exec(`INSERT INTO outbox (write_id, workspace_id, feature, enabled, previous, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			w.WriteID, w.WorkspaceID, f.Key(), enabled, previous, now)
		if err != nil {
			return fmt.Errorf("queue write: %w", err)
		}
		w.Seq, _ = res.LastInsertId()

		features.Set(ws, f, enabled)
		if ws.PendingFields == nil {
			ws.PendingFields = models.PendingFields{}
		}
		ws.PendingFields[f.Key()] = models.PendingUpdate
		delete(ws.ErrorFields, f.Key())
		ws.UpdatedAt = now
		return putWorkspace(tx, ws)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// PendingWrites returns unsent writes in queue order. An empty id returns
// writes for every workspace.
func (db *DB) PendingWrites(workspaceID string) ([]Write, error) {
	return db.queryWrites(`sent_at IS NULL AND acked_at IS NULL`, workspaceID)
}

// OutstandingWrites returns writes the authority has not echoed yet, sent
// or not.
func (db *DB) OutstandingWrites(workspaceID string) ([]Write, error) {
	return db.queryWrites(`acked_at IS NULL`, workspaceID)
}

func (db *DB) queryWrites(where, workspaceID string) ([]Write, error) {
	q := `SELECT ` + writeColumns + ` FROM outbox WHERE ` + where
	var args []any
	if workspaceID != "" {
		q += ` AND workspace_id = ?`
		args = append(args, workspaceID)
	}
	q += ` ORDER BY seq`

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var out []Write
	for rows.Next() {
		w, err := scanWrite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWrite(s scanner) (*Write, error) {
	var (
		w           Write
		feature     string
		sent, acked sql.NullTime
	)
	if err := s.Scan(&w.Seq, &w.WriteID, &w.WorkspaceID, &feature, &w.Enabled, &w.Previous, &w.CreatedAt, &sent, &acked); err != nil {
		return nil, fmt.Errorf("scan write: %w", err)
	}
	f, ok := features.FromKey(feature)
	if !ok {
		return nil, fmt.Errorf("outbox row %s: unknown feature %q", w.WriteID, feature)
	}
	w.Feature = f
	if sent.Valid {
		w.SentAt = &sent.Time
	}
	if acked.Valid {
		w.AckedAt = &acked.Time
	}
	return &w, nil
}

// MarkSent records that a write reached the authority. A write another
// flush already marked is left as is.
func (db *DB) MarkSent(writeID string) error {
	return db.withWriteLock(func() error {
		res, err := db.conn.Exec(`UPDATE outbox SET sent_at = ? WHERE write_id = ? AND sent_at IS NULL`,
			time.Now().UTC(), writeID)
		if err != nil {
			return fmt.Errorf("mark sent %s: %w", writeID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		var exists int
		if err := db.conn.QueryRow(`SELECT COUNT(*) FROM outbox WHERE write_id = ?`, writeID).Scan(&exists); err != nil {
			return fmt.Errorf("mark sent %s: %w", writeID, err)
		}
		if exists == 0 {
			return fmt.Errorf("mark sent: %w: %s", ErrWriteGone, writeID)
		}
		return nil
	})
}

// latestOutstanding returns the newest unacknowledged write per feature.
func latestOutstanding(q querier, workspaceID string) (map[features.Feature]Write, error) {
	rows, err := q.Query(`SELECT `+writeColumns+` FROM outbox WHERE workspace_id = ? AND acked_at IS NULL ORDER BY seq`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	out := map[features.Feature]Write{}
	for rows.Next() {
		w, err := scanWrite(rows)
		if err != nil {
			return nil, err
		}
		out[w.Feature] = *w
	}
	return out, rows.Err()
}

// ApplyEcho folds the authority's echo of a feature write into the record.
//
// An echo for a local write settles that write and every older one for the
// same feature. If a newer local write is still outstanding the record is
// left alone, so the stale echo cannot clobber the newer optimistic value.
// Echoes whose version is not newer than the record only clear the marker
// of the write they settle. Rejections restore the value from before the
// write and record an error on the feature.
func (db *DB) ApplyEcho(e events.FeatureToggled) (EchoOutcome, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	f, _ := e.ParsedFeature()
	key := f.Key()

	var outcome EchoOutcome
	err := db.inTx(func(tx *sql.Tx) error {
		ws, err := getWorkspace(tx, e.WorkspaceID)
		if err != nil {
			return err
		}

		var own *Write
		if e.WriteID != "" {
			own, err = scanWrite(tx.QueryRow(`SELECT `+writeColumns+` FROM outbox WHERE write_id = ?`, e.WriteID))
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if own != nil && own.AckedAt != nil {
				// Already settled by a newer echo.
				own = nil
			}
		}

		now := time.Now().UTC()
		newerSeq := int64(0)
		if own != nil {
			newerSeq = own.Seq
			if _, err := tx.Exec(`UPDATE outbox SET acked_at = ?, sent_at = COALESCE(sent_at, ?)
				WHERE workspace_id = ? AND feature = ? AND seq <= ? AND acked_at IS NULL`,
				now, now, e.WorkspaceID, key, own.Seq); err != nil {
				return fmt.Errorf("ack writes: %w", err)
			}
		}

		var newer int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM outbox WHERE workspace_id = ? AND feature = ? AND seq > ? AND acked_at IS NULL`,
			e.WorkspaceID, key, newerSeq).Scan(&newer); err != nil {
			return fmt.Errorf("count newer writes: %w", err)
		}
		if newer > 0 {
			outcome = EchoSuperseded
			return nil
		}

		stale := e.Version <= ws.Version
		if stale && own == nil {
			outcome = EchoStale
			return nil
		}

		switch {
		case e.Status == events.StatusRejected && own != nil:
			features.Set(ws, f, own.Previous)
			if ws.ErrorFields == nil {
				ws.ErrorFields = models.ErrorFields{}
			}
			ws.ErrorFields[key] = models.Errors{
				strconv.FormatInt(now.UnixMicro(), 10): rejectionMessage(e),
			}
		case !stale:
			features.Set(ws, f, e.Enabled)
		}
		delete(ws.PendingFields, key)
		if stale {
			outcome = EchoStale
		} else {
			ws.Version = e.Version
			outcome = EchoApplied
		}
		ws.UpdatedAt = now
		return putWorkspace(tx, ws)
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func rejectionMessage(e events.FeatureToggled) string {
	if e.Error.Message != "" {
		return e.Error.Message
	}
	return e.Error.Code
}
