package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marcus/wsmenu/internal/db"
	"github.com/marcus/wsmenu/internal/events"
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
	"github.com/marcus/wsmenu/internal/syncclient"
)

type fakeAuthority struct {
	version int64
	calls   int
	failAt  int // 1-based call that fails; 0 never
	failErr error
	reject  map[features.Feature]bool
}

func (a *fakeAuthority) SetFeature(_ context.Context, id string, f features.Feature, enabled bool, writeID string) (*events.FeatureToggled, error) {
	a.calls++
	if a.calls == a.failAt {
		return nil, a.failErr
	}
	a.version++
	if a.reject[f] {
		e := events.NewRejected(id, f, !enabled, writeID, a.version, "forbidden", "no")
		return &e, nil
	}
	e := events.NewAccepted(id, f, enabled, writeID, a.version)
	return &e, nil
}

func newStore(t *testing.T) *db.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	store, err := db.FromConn(conn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.PutWorkspace(&models.Workspace{ID: "ws-1", Type: models.TypeCorporate, Version: 1}); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestFlushAppliesEchoes(t *testing.T) {
	store := newStore(t)
	store.ToggleFeature("ws-1", features.Tags, true)
	store.ToggleFeature("ws-1", features.Rules, true)

	auth := &fakeAuthority{version: 1}
	res, err := Flush(context.Background(), store, auth, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 2 || res.Applied != 2 || res.Remaining != 0 {
		t.Errorf("res = %+v", res)
	}

	ws, _ := store.GetWorkspace("ws-1")
	if !ws.AreTagsEnabled || !ws.AreRulesEnabled || len(ws.PendingFields) != 0 || ws.Version != 3 {
		t.Errorf("ws = %+v", ws)
	}
	if pending, _ := store.PendingWrites(""); len(pending) != 0 {
		t.Errorf("pending = %+v", pending)
	}
}

func TestFlushStopsOnRetryableError(t *testing.T) {
	store := newStore(t)
	store.ToggleFeature("ws-1", features.Tags, true)
	store.ToggleFeature("ws-1", features.Rules, true)

	auth := &fakeAuthority{version: 1, failAt: 2, failErr: fmt.Errorf("%w: connection refused", syncclient.ErrUnavailable)}
	res, err := Flush(context.Background(), store, auth, "")
	if !errors.Is(err, syncclient.ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if res.Sent != 1 || res.Remaining != 1 {
		t.Errorf("res = %+v", res)
	}

	pending, _ := store.PendingWrites("ws-1")
	if len(pending) != 1 || pending[0].Feature != features.Rules {
		t.Fatalf("pending = %+v", pending)
	}
	ws, _ := store.GetWorkspace("ws-1")
	if !ws.PendingFields.Has("areRulesEnabled") {
		t.Error("unsent write lost its marker")
	}
}

func TestFlushRejection(t *testing.T) {
	store := newStore(t)
	store.ToggleFeature("ws-1", features.Invoices, true)

	auth := &fakeAuthority{version: 1, reject: map[features.Feature]bool{features.Invoices: true}}
	res, err := Flush(context.Background(), store, auth, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Rejected != 1 {
		t.Errorf("res = %+v", res)
	}
	ws, _ := store.GetWorkspace("ws-1")
	if ws.AreInvoicesEnabled || ws.PendingFields.Has("areInvoicesEnabled") || len(ws.ErrorFields["areInvoicesEnabled"]) != 1 {
		t.Errorf("ws = %+v", ws)
	}
}

func TestFlushSettlesRefusedWrites(t *testing.T) {
	store := newStore(t)
	store.ToggleFeature("ws-1", features.Tags, true)

	auth := &fakeAuthority{failAt: 1, failErr: fmt.Errorf("%w: workspace not found", syncclient.ErrNotFound)}
	res, err := Flush(context.Background(), store, auth, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 1 || res.Rejected != 1 {
		t.Errorf("res = %+v", res)
	}
	ws, _ := store.GetWorkspace("ws-1")
	if ws.AreTagsEnabled || ws.PendingFields.Has("areTagsEnabled") {
		t.Errorf("refused write not rolled back: %+v", ws)
	}
	if ws.Version != 1 {
		t.Errorf("version = %d, a local settlement must not move it", ws.Version)
	}
	if len(ws.ErrorFields["areTagsEnabled"]) == 0 {
		t.Error("refusal should be recorded on the feature")
	}
}

// racingAuthority marks each write sent before answering, as a second
// flush of the same replica would.
type racingAuthority struct {
	fakeAuthority
	store *db.DB
}

func (a *racingAuthority) SetFeature(ctx context.Context, id string, f features.Feature, enabled bool, writeID string) (*events.FeatureToggled, error) {
	if err := a.store.MarkSent(writeID); err != nil {
		return nil, err
	}
	return a.fakeAuthority.SetFeature(ctx, id, f, enabled, writeID)
}

func TestFlushToleratesConcurrentFlush(t *testing.T) {
	store := newStore(t)
	store.ToggleFeature("ws-1", features.Tags, true)
	store.ToggleFeature("ws-1", features.Rules, true)

	auth := &racingAuthority{fakeAuthority: fakeAuthority{version: 1}, store: store}
	res, err := Flush(context.Background(), store, auth, "ws-1")
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if res.Sent != 2 || res.Applied != 2 {
		t.Errorf("res = %+v", res)
	}
	ws, _ := store.GetWorkspace("ws-1")
	if len(ws.PendingFields) != 0 || ws.Version != 3 {
		t.Errorf("echoes not applied: pending=%v version=%d", ws.PendingFields, ws.Version)
	}
}

func TestFlushCancelled(t *testing.T) {
	store := newStore(t)
	store.ToggleFeature("ws-1", features.Tags, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Flush(ctx, store, &fakeAuthority{}, "")
	if !errors.Is(err, context.Canceled) || res.Remaining != 1 {
		t.Errorf("res = %+v, err = %v", res, err)
	}
}
