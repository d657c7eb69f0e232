package serverdb

import (
	"errors"
	"testing"

	"github.com/marcus/wsmenu/internal/events"
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
)

func newTestDB(t *testing.T) *ServerDB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *ServerDB, ws *models.Workspace) {
	t.Helper()
	if err := db.UpsertWorkspace(ws); err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestOpenSetsVersion(t *testing.T) {
	db := newTestDB(t)
	if v := db.schemaVersion(); v != ServerSchemaVersion {
		t.Errorf("version = %d", v)
	}
	if err := db.Ping(); err != nil {
		t.Error(err)
	}
}

func TestUpsertDropsPendingMarkers(t *testing.T) {
	db := newTestDB(t)
	seed(t, db, &models.Workspace{
		ID:            "ws-1",
		PendingFields: models.PendingFields{"areTagsEnabled": models.PendingUpdate},
	})
	ws, err := db.GetWorkspace("ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if ws.PendingFields != nil || ws.Version != 1 {
		t.Errorf("ws = %+v", ws)
	}

	if _, err := db.GetWorkspace("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	ids, _ := db.ListWorkspaceIDs()
	if len(ids) != 1 || ids[0] != "ws-1" {
		t.Errorf("ids = %v", ids)
	}
}

func TestSetFeatureAccepts(t *testing.T) {
	db := newTestDB(t)
	seed(t, db, &models.Workspace{ID: "ws-1", Type: models.TypeCorporate})

	echo, err := db.SetFeature("ws-1", features.Tags, true, "w-1")
	if err != nil {
		t.Fatal(err)
	}
	if echo.Status != events.StatusAccepted || !echo.Enabled || echo.Version != 2 || echo.WriteID != "w-1" {
		t.Errorf("echo = %+v", echo)
	}
	if err := echo.Validate(); err != nil {
		t.Errorf("echo invalid: %v", err)
	}
	ws, _ := db.GetWorkspace("ws-1")
	if !ws.AreTagsEnabled || ws.Version != 2 {
		t.Errorf("ws = %+v", ws)
	}
}

func TestSetFeatureIsIdempotentByWriteID(t *testing.T) {
	db := newTestDB(t)
	seed(t, db, &models.Workspace{ID: "ws-1", Type: models.TypeTeam})

	first, _ := db.SetFeature("ws-1", features.Rules, true, "w-1")
	again, err := db.SetFeature("ws-1", features.Rules, true, "w-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Version != first.Version {
		t.Errorf("retry bumped version: %d vs %d", again.Version, first.Version)
	}
	ws, _ := db.GetWorkspace("ws-1")
	if ws.Version != 2 {
		t.Errorf("version = %d, want 2", ws.Version)
	}
}

func TestSetFeatureRejections(t *testing.T) {
	tests := []struct {
		name    string
		ws      *models.Workspace
		feature features.Feature
		enabled bool
		code    string
	}{
		{"personal workspace", &models.Workspace{ID: "ws", Type: models.TypePersonal}, features.Tags, true, CodeNotPaid},
		{"connections present", &models.Workspace{ID: "ws", Type: models.TypeCorporate, Connections: map[string]models.Connection{"xero": {}}}, features.Connections, false, CodeConnectionsPresent},
		{"invoice balance", &models.Workspace{ID: "ws", Type: models.TypeCorporate, AreInvoicesEnabled: true,
			Invoice: &models.Invoice{BankAccount: &models.BankAccount{StripeConnectAccountBalance: 500}}}, features.Invoices, false, CodeInvoiceBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			seed(t, db, tt.ws)
			before, _ := db.GetWorkspace("ws")

			echo, err := db.SetFeature("ws", tt.feature, tt.enabled, "w")
			if err != nil {
				t.Fatal(err)
			}
			if echo.Status != events.StatusRejected || echo.Error == nil || echo.Error.Code != tt.code {
				t.Fatalf("echo = %+v", echo)
			}
			if echo.Enabled != features.Enabled(before, tt.feature) {
				t.Error("rejected echo should carry the current value")
			}
			after, _ := db.GetWorkspace("ws")
			if after.Version != before.Version {
				t.Error("rejection bumped the version")
			}
		})
	}
}

func TestSetFeatureUnknownWorkspace(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.SetFeature("nope", features.Tags, true, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	if _, err := db.SetFeature("nope", features.None, true, ""); err == nil {
		t.Error("expected error for invalid feature")
	}
}
