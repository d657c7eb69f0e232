package page

import (
	"testing"
	"time"

	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/menu"
	"github.com/marcus/wsmenu/internal/models"
)

func testWorkspace() *models.Workspace {
	return &models.Workspace{
		ID:                   "ws-1",
		Name:                 "Acme",
		Type:                 models.TypeTeam,
		Role:                 models.RoleAdmin,
		AreCategoriesEnabled: true,
	}
}

func TestViewBuildsMenu(t *testing.T) {
	p := New(time.Hour, false)
	p.Update(testWorkspace(), nil)

	v := p.View()
	if _, ok := menu.Find(v.Entries, menu.ItemCategories); !ok {
		t.Error("categories entry missing")
	}
	if v.Highlight != "" || v.Offline || v.IsDraft {
		t.Errorf("view = %+v", v)
	}
}

func TestPendingToggleThenStaleEcho(t *testing.T) {
	p := New(time.Hour, false)
	ws := testWorkspace()
	p.Update(ws, nil)

	optimistic := ws.Clone()
	optimistic.AreTagsEnabled = true
	optimistic.PendingFields = models.PendingFields{"areTagsEnabled": models.PendingUpdate}
	ch := p.Update(optimistic, nil)
	if ch.Result.Highlight != features.Tags {
		t.Fatalf("highlight = %v", ch.Result.Highlight)
	}
	if v := p.View(); v.Highlight != "tags" {
		t.Errorf("view highlight = %q", v.Highlight)
	}

	stale := optimistic.Clone()
	stale.AreTagsEnabled = false
	p.Update(stale, nil)
	if _, ok := menu.Find(p.View().Entries, menu.ItemTags); !ok {
		t.Error("stale echo hid tags while the write is pending")
	}

	ch = p.SetOffline(true)
	if ch.Reconnected {
		t.Error("going offline is not a reconnect")
	}
	if _, ok := menu.Find(p.View().Entries, menu.ItemTags); ok {
		t.Error("offline should adopt canonical false")
	}

	ch = p.SetOffline(false)
	if !ch.Reconnected {
		t.Error("coming back online should request a refetch")
	}
	if ch := p.SetOffline(false); ch.Reconnected {
		t.Error("no connectivity change should be a no-op")
	}
}

func TestDraftTakesPrecedence(t *testing.T) {
	p := New(time.Hour, false)
	draft := testWorkspace()
	draft.ID = "ws-draft"
	draft.AreCategoriesEnabled = false
	p.Update(testWorkspace(), draft)

	v := p.View()
	if !v.IsDraft || v.Workspace.ID != "ws-draft" {
		t.Errorf("view should use the draft, got %+v", v.Workspace)
	}
	if p.ShouldFetch() {
		t.Error("drafts are not fetched")
	}

	p.Update(testWorkspace(), &models.Workspace{})
	if p.View().IsDraft {
		t.Error("draft without id should be ignored")
	}
	if !p.ShouldFetch() {
		t.Error("stored record online should be fetched")
	}
}

func TestSyncInProgressSuppressesIndicator(t *testing.T) {
	ws := testWorkspace()
	ws.AreConnectionsEnabled = true
	ws.Connections = map[string]models.Connection{"xero": {LastSync: &models.SyncResult{IsSuccessful: false}}}

	p := New(time.Hour, false)
	p.Update(ws, nil)
	e, _ := menu.Find(p.View().Entries, menu.ItemAccounting)
	if !e.HasError() {
		t.Error("failed sync should flag accounting")
	}
	p.SetSyncInProgress(true)
	e, _ = menu.Find(p.View().Entries, menu.ItemAccounting)
	if e.HasError() {
		t.Error("running sync should suppress the indicator")
	}
}

func TestCloseResetsState(t *testing.T) {
	p := New(time.Hour, true)
	p.Update(testWorkspace(), nil)
	p.Close()
	v := p.View()
	if v.Workspace != nil || len(v.Features.Enabled()) != 0 {
		t.Errorf("closed page view = %+v", v)
	}
	if len(v.Entries) != 2 {
		t.Errorf("closed page should only show profile and members, got %d entries", len(v.Entries))
	}
}

func TestReloadOfUnchangedRecordKeepsHighlight(t *testing.T) {
	p := New(time.Hour, false)
	ws := testWorkspace()
	p.Update(ws, nil)

	optimistic := ws.Clone()
	optimistic.AreTagsEnabled = true
	optimistic.PendingFields = models.PendingFields{"areTagsEnabled": models.PendingUpdate}
	if ch := p.Update(optimistic, nil); ch.Result.Highlight != features.Tags {
		t.Fatalf("highlight = %v", ch.Result.Highlight)
	}

	// A fresh copy of the same record, as a periodic reload produces.
	if ch := p.Update(optimistic.Clone(), nil); ch.Result.HasHighlight() || len(ch.Result.Changed) != 0 {
		t.Errorf("reload ran a pass: %+v", ch.Result)
	}
	if v := p.View(); v.Highlight != "tags" {
		t.Errorf("highlight after reload = %q, want tags", v.Highlight)
	}

	// An edit that leaves flags and markers alone still reaches the view.
	renamed := optimistic.Clone()
	renamed.Name = "Acme Ltd"
	p.Update(renamed, nil)
	if v := p.View(); v.Workspace.Name != "Acme Ltd" || v.Highlight != "tags" {
		t.Errorf("view = name %q highlight %q", v.Workspace.Name, v.Highlight)
	}

	// A changed marker is a new record and supersedes the highlight.
	confirmed := optimistic.Clone()
	confirmed.PendingFields = nil
	confirmed.Version++
	p.Update(confirmed, nil)
	if v := p.View(); v.Highlight != "" {
		t.Errorf("highlight after confirmation = %q, want none", v.Highlight)
	}
}
