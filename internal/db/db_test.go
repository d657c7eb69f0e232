package db

import (
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marcus/wsmenu/internal/events"
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db, err := FromConn(conn)
	if err != nil {
		t.Fatalf("FromConn: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedWorkspace(t *testing.T, db *DB) *models.Workspace {
	t.Helper()
	ws := &models.Workspace{
		ID:             "ws-1",
		Name:           "Acme",
		Type:           models.TypeCorporate,
		Role:           models.RoleAdmin,
		AreTagsEnabled: false,
		Version:        1,
	}
	if err := db.PutWorkspace(ws); err != nil {
		t.Fatalf("PutWorkspace: %v", err)
	}
	return ws
}

func TestInitializeCreatesReplica(t *testing.T) {
	dir := t.TempDir()
	db, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(Path(dir)); err != nil {
		t.Fatalf("replica file missing: %v", err)
	}
	v, err := db.GetSchemaVersion()
	if err != nil || v != SchemaVersion {
		t.Errorf("schema version = %d, %v; want %d", v, err, SchemaVersion)
	}

	db.Close()
	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	reopened.Close()
}

func TestOpenMissingReplica(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatal("expected error for missing replica")
	}
}

func TestMigrationAddsAckColumn(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	conn.SetMaxOpenConns(1)
	// A version 1 replica predates acknowledgements.
	if _, err := conn.Exec(`CREATE TABLE schema_info (key TEXT PRIMARY KEY, value TEXT NOT NULL);
		INSERT INTO schema_info VALUES ('version', '1');
		CREATE TABLE outbox (seq INTEGER PRIMARY KEY AUTOINCREMENT, write_id TEXT UNIQUE NOT NULL,
			workspace_id TEXT NOT NULL, feature TEXT NOT NULL, enabled INTEGER NOT NULL,
			previous INTEGER NOT NULL, created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP, sent_at DATETIME);`); err != nil {
		t.Fatal(err)
	}
	db := &DB{conn: conn}
	defer db.Close()

	ran, err := db.RunMigrations()
	if err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if ran != 1 {
		t.Errorf("ran %d migrations, want 1", ran)
	}
	ok, err := db.columnExists("outbox", "acked_at")
	if err != nil || !ok {
		t.Errorf("acked_at missing after migration: %v", err)
	}
}

func TestGetWorkspaceNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetWorkspace("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutAndListWorkspaces(t *testing.T) {
	db := newTestDB(t)
	for _, id := range []string{"ws-b", "ws-a"} {
		if err := db.PutWorkspace(&models.Workspace{ID: id, Name: id}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := db.ListWorkspaces()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "ws-a" || list[1].ID != "ws-b" {
		t.Errorf("list = %+v", list)
	}

	if err := db.DeleteWorkspace("ws-a"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteWorkspace("ws-a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestLoadRecordPrefersDraft(t *testing.T) {
	db := newTestDB(t)

	if _, _, err := db.LoadRecord("ws-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty replica err = %v", err)
	}

	if err := db.PutDraft(&models.Workspace{ID: "ws-1", Name: "draft"}); err != nil {
		t.Fatal(err)
	}
	stored, draft, err := db.LoadRecord("ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if stored != nil || draft == nil || draft.Name != "draft" {
		t.Errorf("stored=%v draft=%v", stored, draft)
	}

	seedWorkspace(t, db)
	stored, draft, err = db.LoadRecord("ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if models.PickRecord(draft, stored).Name != "draft" {
		t.Error("draft should take precedence")
	}

	if err := db.DeleteDraft("ws-1"); err != nil {
		t.Fatal(err)
	}
	_, draft, _ = db.LoadRecord("ws-1")
	if draft != nil {
		t.Error("draft not deleted")
	}
}

func TestToggleFeatureIsOptimistic(t *testing.T) {
	db := newTestDB(t)
	seedWorkspace(t, db)

	w, err := db.ToggleFeature("ws-1", features.Tags, true)
	if err != nil {
		t.Fatalf("ToggleFeature: %v", err)
	}
	if w.WriteID == "" || w.Previous || !w.Enabled {
		t.Errorf("write = %+v", w)
	}

	ws, _ := db.GetWorkspace("ws-1")
	if !ws.AreTagsEnabled {
		t.Error("flag not applied optimistically")
	}
	if ws.PendingFields["areTagsEnabled"] != models.PendingUpdate {
		t.Errorf("pending = %v", ws.PendingFields)
	}

	pending, err := db.PendingWrites("ws-1")
	if err != nil || len(pending) != 1 || pending[0].Feature != features.Tags {
		t.Fatalf("pending = %+v, %v", pending, err)
	}
}

func TestToggleFeatureSupersedesUnsent(t *testing.T) {
	db := newTestDB(t)
	seedWorkspace(t, db)

	first, _ := db.ToggleFeature("ws-1", features.Tags, true)
	second, err := db.ToggleFeature("ws-1", features.Tags, false)
	if err != nil {
		t.Fatal(err)
	}
	if second.Previous != first.Previous {
		t.Errorf("previous = %v, want the pre-write value %v", second.Previous, first.Previous)
	}

	pending, _ := db.PendingWrites("")
	if len(pending) != 1 || pending[0].WriteID != second.WriteID {
		t.Errorf("pending = %+v, want only the newest write", pending)
	}
}

func TestToggleFeatureRejectsNone(t *testing.T) {
	db := newTestDB(t)
	seedWorkspace(t, db)
	if _, err := db.ToggleFeature("ws-1", features.None, true); err == nil {
		t.Fatal("expected error")
	}
	if _, err := db.ToggleFeature("missing", features.Tags, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestMarkSent(t *testing.T) {
	db := newTestDB(t)
	seedWorkspace(t, db)
	w, _ := db.ToggleFeature("ws-1", features.Rules, true)

	if err := db.MarkSent(w.WriteID); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkSent(w.WriteID); err != nil {
		t.Errorf("marking an already sent write: %v", err)
	}
	if err := db.MarkSent("no-such-write"); !errors.Is(err, ErrWriteGone) {
		t.Errorf("unknown write err = %v, want ErrWriteGone", err)
	}
	pending, _ := db.PendingWrites("ws-1")
	if len(pending) != 0 {
		t.Errorf("pending = %+v", pending)
	}
	outstanding, _ := db.OutstandingWrites("ws-1")
	if len(outstanding) != 1 || outstanding[0].SentAt == nil {
		t.Errorf("outstanding = %+v", outstanding)
	}
}

func TestApplyEchoAccepted(t *testing.T) {
	db := newTestDB(t)
	seedWorkspace(t, db)
	w, _ := db.ToggleFeature("ws-1", features.Tags, true)

	out, err := db.ApplyEcho(events.NewAccepted("ws-1", features.Tags, true, w.WriteID, 2))
	if err != nil {
		t.Fatal(err)
	}
	if out != EchoApplied {
		t.Fatalf("outcome = %s", out)
	}
	ws, _ := db.GetWorkspace("ws-1")
	if !ws.AreTagsEnabled || ws.PendingFields.Has("areTagsEnabled") || ws.Version != 2 {
		t.Errorf("ws = %+v", ws)
	}
	outstanding, _ := db.OutstandingWrites("ws-1")
	if len(outstanding) != 0 {
		t.Errorf("write not acknowledged: %+v", outstanding)
	}
}

func TestApplyEchoRejectedRestoresPrevious(t *testing.T) {
	db := newTestDB(t)
	seedWorkspace(t, db)
	w, _ := db.ToggleFeature("ws-1", features.Tags, true)

	echo := events.NewRejected("ws-1", features.Tags, false, w.WriteID, 2, "forbidden", "not allowed")
	if out, err := db.ApplyEcho(echo); err != nil || out != EchoApplied {
		t.Fatalf("outcome = %s, %v", out, err)
	}
	ws, _ := db.GetWorkspace("ws-1")
	if ws.AreTagsEnabled {
		t.Error("rejected write should restore the previous value")
	}
	if ws.PendingFields.Has("areTagsEnabled") {
		t.Error("marker should be cleared")
	}
	errs := ws.ErrorFields["areTagsEnabled"]
	if len(errs) != 1 {
		t.Fatalf("errorFields = %v", ws.ErrorFields)
	}
	for _, msg := range errs {
		if msg != "not allowed" {
			t.Errorf("message = %q", msg)
		}
	}

	if err := db.ClearFeatureError("ws-1", features.Tags); err != nil {
		t.Fatal(err)
	}
	ws, _ = db.GetWorkspace("ws-1")
	if len(ws.ErrorFields) != 0 {
		t.Errorf("error not cleared: %v", ws.ErrorFields)
	}
}

func TestApplyEchoForOlderWriteIsSuperseded(t *testing.T) {
	db := newTestDB(t)
	seedWorkspace(t, db)

	first, _ := db.ToggleFeature("ws-1", features.Tags, true)
	db.MarkSent(first.WriteID)
	second, _ := db.ToggleFeature("ws-1", features.Tags, false)

	// The echo of the first write arrives while the second is in flight.
	out, err := db.ApplyEcho(events.NewAccepted("ws-1", features.Tags, true, first.WriteID, 2))
	if err != nil {
		t.Fatal(err)
	}
	if out != EchoSuperseded {
		t.Fatalf("outcome = %s, want superseded", out)
	}
	ws, _ := db.GetWorkspace("ws-1")
	if ws.AreTagsEnabled || !ws.PendingFields.Has("areTagsEnabled") {
		t.Errorf("newer optimistic value clobbered: %+v", ws)
	}

	out, _ = db.ApplyEcho(events.NewAccepted("ws-1", features.Tags, false, second.WriteID, 3))
	if out != EchoApplied {
		t.Fatalf("outcome = %s", out)
	}
	ws, _ = db.GetWorkspace("ws-1")
	if ws.AreTagsEnabled || ws.PendingFields.Has("areTagsEnabled") || ws.Version != 3 {
		t.Errorf("ws = %+v", ws)
	}
}

func TestApplyEchoNewerSettlesOlder(t *testing.T) {
	db := newTestDB(t)
	seedWorkspace(t, db)

	first, _ := db.ToggleFeature("ws-1", features.Tags, true)
	db.MarkSent(first.WriteID)
	second, _ := db.ToggleFeature("ws-1", features.Tags, false)
	db.MarkSent(second.WriteID)

	db.ApplyEcho(events.NewAccepted("ws-1", features.Tags, false, second.WriteID, 3))
	outstanding, _ := db.OutstandingWrites("ws-1")
	if len(outstanding) != 0 {
		t.Fatalf("older write still outstanding: %+v", outstanding)
	}

	// The late echo of the first write is now stale.
	out, _ := db.ApplyEcho(events.NewAccepted("ws-1", features.Tags, true, first.WriteID, 2))
	if out != EchoStale {
		t.Errorf("outcome = %s, want stale", out)
	}
	ws, _ := db.GetWorkspace("ws-1")
	if ws.AreTagsEnabled {
		t.Error("stale echo changed the record")
	}
}

func TestApplyEchoForeign(t *testing.T) {
	db := newTestDB(t)
	seedWorkspace(t, db)

	out, _ := db.ApplyEcho(events.NewAccepted("ws-1", features.Rules, true, "", 5))
	if out != EchoApplied {
		t.Fatalf("outcome = %s", out)
	}
	ws, _ := db.GetWorkspace("ws-1")
	if !ws.AreRulesEnabled || ws.Version != 5 {
		t.Errorf("ws = %+v", ws)
	}

	out, _ = db.ApplyEcho(events.NewAccepted("ws-1", features.Rules, false, "", 4))
	if out != EchoStale {
		t.Errorf("older echo outcome = %s", out)
	}

	if _, err := db.ApplyEcho(events.FeatureToggled{WorkspaceID: "ws-1"}); err == nil {
		t.Error("invalid echo accepted")
	}
}

func TestMergeFetchedKeepsPendingWrites(t *testing.T) {
	db := newTestDB(t)
	seedWorkspace(t, db)
	db.ToggleFeature("ws-1", features.Tags, true)

	fetched := &models.Workspace{ID: "ws-1", Name: "Acme Renamed", Version: 4, AreRulesEnabled: true}
	merged, err := db.MergeFetched(fetched)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Name != "Acme Renamed" || !merged.AreRulesEnabled {
		t.Errorf("fetched fields lost: %+v", merged)
	}
	if !merged.AreTagsEnabled || merged.PendingFields["areTagsEnabled"] != models.PendingUpdate {
		t.Errorf("optimistic write lost: %+v", merged)
	}

	older := &models.Workspace{ID: "ws-1", Name: "old", Version: 2}
	kept, err := db.MergeFetched(older)
	if err != nil {
		t.Fatal(err)
	}
	if kept.Name != "Acme Renamed" {
		t.Errorf("older fetch replaced newer record: %+v", kept)
	}
}

func TestMergeFetchedNewWorkspace(t *testing.T) {
	db := newTestDB(t)
	merged, err := db.MergeFetched(&models.Workspace{ID: "ws-9", Version: 1, AreInvoicesEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	got, err := db.GetWorkspace("ws-9")
	if err != nil || !got.AreInvoicesEnabled || got.ID != merged.ID {
		t.Errorf("got = %+v, %v", got, err)
	}
}
