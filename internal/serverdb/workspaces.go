package serverdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marcus/wsmenu/internal/events"
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
)

// Rejection codes.
const (
	CodeNotPaid            = "not_paid_group"
	CodeConnectionsPresent = "connections_present"
	CodeInvoiceBalance     = "invoice_balance"
)

// UpsertWorkspace stores ws as the canonical record. Pending markers are
// never canonical and are dropped. A zero version starts at 1.
func (db *ServerDB) UpsertWorkspace(ws *models.Workspace) error {
	if ws.ID == "" {
		return fmt.Errorf("workspace id is required")
	}
	rec := ws.Clone()
	rec.PendingFields = nil
	rec.PendingAction = ""
	if rec.Version <= 0 {
		rec.Version = 1
	}
	return putWorkspace(db.conn, rec)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

func putWorkspace(q execer, ws *models.Workspace) error {
	ws.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("encode workspace: %w", err)
	}
	_, err = q.Exec(`INSERT INTO workspaces (id, data, version, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, version = excluded.version, updated_at = excluded.updated_at`,
		ws.ID, string(data), ws.Version, ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save workspace %s: %w", ws.ID, err)
	}
	return nil
}

func getWorkspace(q execer, id string) (*models.Workspace, error) {
	var data string
	err := q.QueryRow(`SELECT data FROM workspaces WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace %s: %w", id, err)
	}
	var ws models.Workspace
	if err := json.Unmarshal([]byte(data), &ws); err != nil {
		return nil, fmt.Errorf("decode workspace %s: %w", id, err)
	}
	return &ws, nil
}

// GetWorkspace returns the canonical record.
func (db *ServerDB) GetWorkspace(id string) (*models.Workspace, error) {
	return getWorkspace(db.conn, id)
}

// ListWorkspaceIDs returns every workspace id in order.
func (db *ServerDB) ListWorkspaceIDs() ([]string, error) {
	rows, err := db.conn.Query(`SELECT id FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetFeature rules on a feature write and returns the echo. Accepted
// writes bump the record version; rejected ones report the current value.
// Repeating a write id returns the original ruling.
func (db *ServerDB) SetFeature(workspaceID string, f features.Feature, enabled bool, writeID string) (*events.FeatureToggled, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("unknown feature %v", f)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if writeID != "" {
		var prior string
		err := tx.QueryRow(`SELECT echo FROM feature_writes WHERE write_id = ?`, writeID).Scan(&prior)
		if err == nil {
			var echo events.FeatureToggled
			if err := json.Unmarshal([]byte(prior), &echo); err != nil {
				return nil, fmt.Errorf("decode prior ruling: %w", err)
			}
			return &echo, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("read prior ruling: %w", err)
		}
	}

	ws, err := getWorkspace(tx, workspaceID)
	if err != nil {
		return nil, err
	}

	var echo events.FeatureToggled
	if code, msg := rule(ws, f, enabled); code != "" {
		echo = events.NewRejected(ws.ID, f, features.Enabled(ws, f), writeID, ws.Version, code, msg)
	} else {
		features.Set(ws, f, enabled)
		ws.Version++
		if err := putWorkspace(tx, ws); err != nil {
			return nil, err
		}
		echo = events.NewAccepted(ws.ID, f, features.Enabled(ws, f), writeID, ws.Version)
	}

	if writeID != "" {
		data, err := json.Marshal(echo)
		if err != nil {
			return nil, fmt.Errorf("encode ruling: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO feature_writes (write_id, workspace_id, echo, created_at) VALUES (?, ?, ?, ?)`,
			writeID, ws.ID, string(data), time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("record ruling: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &echo, nil
}

// rule returns a rejection code and message, or "" to accept.
func rule(ws *models.Workspace, f features.Feature, enabled bool) (string, string) {
	if enabled && ws.Type == models.TypePersonal {
		return CodeNotPaid, "feature requires a paid workspace"
	}
	if enabled {
		return "", ""
	}
	switch f {
	case features.Connections:
		if len(ws.Connections) > 0 {
			return CodeConnectionsPresent, "disconnect accounting integrations first"
		}
	case features.Invoices:
		if ws.Invoice != nil && ws.Invoice.BankAccount != nil && ws.Invoice.BankAccount.StripeConnectAccountBalance != 0 {
			return CodeInvoiceBalance, "invoice balance must be zero to disable invoicing"
		}
	}
	return "", ""
}
