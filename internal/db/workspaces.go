package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func getWorkspace(q querier, id string) (*models.Workspace, error) {
	var data string
	err := q.QueryRow(`SELECT data FROM workspaces WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace %s: %w", id, err)
	}
	return decodeWorkspace(data)
}

func putWorkspace(q querier, ws *models.Workspace) error {
	if ws.ID == "" {
		return fmt.Errorf("workspace id is required")
	}
	if ws.UpdatedAt.IsZero() {
		ws.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("encode workspace %s: %w", ws.ID, err)
	}
	_, err = q.Exec(`INSERT INTO workspaces (id, data, version, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, version = excluded.version, updated_at = excluded.updated_at`,
		ws.ID, string(data), ws.Version, ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save workspace %s: %w", ws.ID, err)
	}
	return nil
}

func decodeWorkspace(data string) (*models.Workspace, error) {
	var ws models.Workspace
	if err := json.Unmarshal([]byte(data), &ws); err != nil {
		return nil, fmt.Errorf("decode workspace: %w", err)
	}
	return &ws, nil
}

// GetWorkspace returns the stored record.
func (db *DB) GetWorkspace(id string) (*models.Workspace, error) {
	return getWorkspace(db.conn, id)
}

// PutWorkspace replaces the stored record as is, pending markers included.
func (db *DB) PutWorkspace(ws *models.Workspace) error {
	return db.withWriteLock(func() error {
		return putWorkspace(db.conn, ws)
	})
}

// ListWorkspaces returns every stored record ordered by id.
func (db *DB) ListWorkspaces() ([]*models.Workspace, error) {
	rows, err := db.conn.Query(`SELECT data FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var out []*models.Workspace
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		ws, err := decodeWorkspace(data)
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// DeleteWorkspace removes a record, its draft and its outbox rows.
func (db *DB) DeleteWorkspace(id string) error {
	return db.inTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM workspaces WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete workspace %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if _, err := tx.Exec(`DELETE FROM drafts WHERE id = ?`, id); err != nil {
			return err
		}
		_, err = tx.Exec(`DELETE FROM outbox WHERE workspace_id = ?`, id)
		return err
	})
}

// PutDraft stores a locally created workspace.
func (db *DB) PutDraft(ws *models.Workspace) error {
	if ws.ID == "" {
		return fmt.Errorf("draft id is required")
	}
	data, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", ws.ID, err)
	}
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`INSERT OR REPLACE INTO drafts (id, data, created_at) VALUES (?, ?, ?)`,
			ws.ID, string(data), time.Now().UTC())
		return err
	})
}

// GetDraft returns the draft for id, or nil when there is none.
func (db *DB) GetDraft(id string) (*models.Workspace, error) {
	var data string
	err := db.conn.QueryRow(`SELECT data FROM drafts WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %s: %w", id, err)
	}
	return decodeWorkspace(data)
}

// DeleteDraft removes the draft for id, if any.
func (db *DB) DeleteDraft(id string) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`DELETE FROM drafts WHERE id = ?`, id)
		return err
	})
}

// LoadRecord returns the stored record and draft for id. Either may be nil,
// but not both.
func (db *DB) LoadRecord(id string) (stored, draft *models.Workspace, err error) {
	draft, err = db.GetDraft(id)
	if err != nil {
		return nil, nil, err
	}
	stored, err = db.GetWorkspace(id)
	if errors.Is(err, ErrNotFound) && draft != nil {
		return nil, draft, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return stored, draft, nil
}

// MergeFetched stores a record fetched from the authority. Features with
// outstanding local writes keep their optimistic value and pending marker.
// A fetch older than the stored version is dropped and the stored record
// returned.
func (db *DB) MergeFetched(fetched *models.Workspace) (*models.Workspace, error) {
	var merged *models.Workspace
	err := db.inTx(func(tx *sql.Tx) error {
		local, err := getWorkspace(tx, fetched.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if local != nil && fetched.Version < local.Version {
			merged = local
			return nil
		}

		merged = fetched.Clone()
		merged.PendingFields = nil
		if local != nil {
			latest, err := latestOutstanding(tx, fetched.ID)
			if err != nil {
				return err
			}
			for f, w := range latest {
				key := f.Key()
				features.Set(merged, f, w.Enabled)
				if merged.PendingFields == nil {
					merged.PendingFields = models.PendingFields{}
				}
				merged.PendingFields[key] = local.PendingFields[key]
				if merged.PendingFields[key] == "" {
					merged.PendingFields[key] = models.PendingUpdate
				}
			}
			// Rejection errors are local until the user dismisses them.
			for key, errs := range local.ErrorFields {
				if _, ok := features.FromKey(key); !ok || merged.ErrorFields[key] != nil {
					continue
				}
				if merged.ErrorFields == nil {
					merged.ErrorFields = models.ErrorFields{}
				}
				merged.ErrorFields[key] = errs
			}
		}
		merged.UpdatedAt = time.Now().UTC()
		return putWorkspace(tx, merged)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// ClearFeatureError drops the error recorded for a feature.
func (db *DB) ClearFeatureError(id string, f features.Feature) error {
	return db.inTx(func(tx *sql.Tx) error {
		ws, err := getWorkspace(tx, id)
		if err != nil {
			return err
		}
		if _, ok := ws.ErrorFields[f.Key()]; !ok {
			return nil
		}
		delete(ws.ErrorFields, f.Key())
		return putWorkspace(tx, ws)
	})
}
