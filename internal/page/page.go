// Package page owns the reconciliation state of one open workspace screen
// and produces the view the terminal renders.
package page

import (
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/menu"
	"github.com/marcus/wsmenu/internal/models"
	"github.com/marcus/wsmenu/internal/reconcile"
)

// View is the render input for one pass.
type View struct {
	Workspace *models.Workspace `json:"-"`
	Features  features.StateMap `json:"features"`
	Entries   []menu.Entry      `json:"entries"`
	Highlight string            `json:"highlight,omitempty"`
	Offline   bool              `json:"offline"`
	IsDraft   bool              `json:"is_draft,omitempty"`
}

// Change is returned by every mutation of the page.
type Change struct {
	Result reconcile.Result
	// Reconnected is set when connectivity went from offline to online and
	// the record should be fetched again.
	Reconnected bool
}

// Page serializes record and connectivity updates for one workspace.
type Page struct {
	mu             sync.Mutex
	tracker        *reconcile.Tracker
	stored         *models.Workspace
	draft          *models.Workspace
	offline        bool
	syncInProgress bool
	// seen describes the record the last pass ran against.
	seen   recordKey
	passed bool
}

// recordKey is what a pass depends on. Two loads with equal keys are the
// same record for reconciliation purposes.
type recordKey struct {
	id        string
	draft     bool
	version   int64
	updatedAt time.Time
	flags     features.StateMap
	pending   models.PendingFields
}

func keyOf(ws *models.Workspace, isDraft bool) recordKey {
	if ws == nil {
		return recordKey{}
	}
	return recordKey{
		id:        ws.ID,
		draft:     isDraft,
		version:   ws.Version,
		updatedAt: ws.UpdatedAt,
		flags:     features.Snapshot(ws),
		pending:   ws.PendingFields.Clone(),
	}
}

func (k recordKey) equal(o recordKey) bool {
	return k.id == o.id && k.draft == o.draft && k.version == o.version &&
		k.updatedAt.Equal(o.updatedAt) && k.flags == o.flags &&
		maps.Equal(k.pending, o.pending)
}

// New creates a page. highlight is how long a highlight stays visible.
func New(highlight time.Duration, offline bool) *Page {
	return &Page{
		tracker: reconcile.NewTracker(highlight),
		offline: offline,
	}
}

// Update replaces the stored record and optional draft and runs a pass.
// Reloading a record whose flags, pending markers and version are unchanged
// does not run a pass, so a live highlight survives periodic reloads.
func (p *Page) Update(stored, draft *models.Workspace) Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stored = stored
	p.draft = draft
	ws := models.PickRecord(draft, stored)
	if p.passed && keyOf(ws, ws != nil && ws == draft).equal(p.seen) {
		return Change{}
	}
	return p.runLocked(false)
}

// SetOffline records the connectivity state and runs a pass when it changed.
func (p *Page) SetOffline(offline bool) Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	if offline == p.offline {
		return Change{}
	}
	reconnected := p.offline && !offline
	p.offline = offline
	slog.Debug("connectivity changed", "offline", offline)
	return p.runLocked(reconnected)
}

// SetSyncInProgress marks an accounting sync as running, which suppresses
// the accounting error indicator.
func (p *Page) SetSyncInProgress(running bool) {
	p.mu.Lock()
	p.syncInProgress = running
	p.mu.Unlock()
}

// Offline reports the last known connectivity.
func (p *Page) Offline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offline
}

// ShouldFetch reports whether focus or reconnect should refetch the record.
// Drafts are local until confirmed and are never fetched.
func (p *Page) ShouldFetch() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.offline && (p.draft == nil || p.draft.ID == "")
}

// ClearHighlight drops the current highlight after it has been displayed.
func (p *Page) ClearHighlight() {
	p.tracker.ClearHighlight()
}

// Close forgets the reconciliation state.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker.Reset()
	p.stored, p.draft = nil, nil
	p.seen, p.passed = recordKey{}, false
}

// View builds the entries from the current state.
func (p *Page) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	ws := models.PickRecord(p.draft, p.stored)
	displayed := p.tracker.Displayed()
	highlight := p.tracker.Highlight()

	v := View{
		Workspace: ws,
		Features:  displayed,
		Entries:   menu.Build(menu.InputFor(ws, displayed, highlight, p.syncInProgress)),
		Offline:   p.offline,
		IsDraft:   ws != nil && ws == p.draft,
	}
	if highlight != features.None {
		v.Highlight = highlight.String()
	}
	return v
}

func (p *Page) runLocked(reconnected bool) Change {
	ws := models.PickRecord(p.draft, p.stored)
	res := p.tracker.Apply(ws, p.offline)
	p.seen, p.passed = keyOf(ws, ws != nil && ws == p.draft), true
	if res.HasHighlight() {
		slog.Debug("feature resolved", "feature", res.Highlight.String(), "changed", len(res.Changed))
	}
	return Change{Result: res, Reconnected: reconnected}
}
