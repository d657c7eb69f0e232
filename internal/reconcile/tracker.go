package reconcile

import (
	"sync"
	"time"

	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
)

// DefaultHighlightDuration is how long a highlight stays visible.
const DefaultHighlightDuration = 1500 * time.Millisecond

// Tracker owns a State for one open workspace and serializes passes.
// The highlight produced by a pass expires after the configured duration.
type Tracker struct {
	mu        sync.Mutex
	state     State
	highlight features.Feature
	setAt     time.Time
	ttl       time.Duration
	now       func() time.Time
}

// NewTracker creates a tracker. ttl <= 0 uses DefaultHighlightDuration.
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultHighlightDuration
	}
	return &Tracker{ttl: ttl, now: time.Now}
}

// Apply runs a pass against ws and returns its result. A pass without
// changes replaces any live highlight with none.
func (t *Tracker) Apply(ws *models.Workspace, offline bool) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, res := Reconcile(t.state, ws, offline)
	t.state = next
	t.highlight = res.Highlight
	t.setAt = t.now()
	return res
}

// State returns a copy of the current accumulator.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state
	st.PrevPending = st.PrevPending.Clone()
	return st
}

// Displayed returns the current displayed feature states.
func (t *Tracker) Displayed() features.StateMap {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Displayed
}

// Highlight returns the live highlight target, or features.None once it has
// expired or been cleared.
func (t *Tracker) Highlight() features.Feature {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.highlight == features.None {
		return features.None
	}
	if t.now().Sub(t.setAt) >= t.ttl {
		t.highlight = features.None
	}
	return t.highlight
}

// ClearHighlight drops the highlight without running a pass.
func (t *Tracker) ClearHighlight() {
	t.mu.Lock()
	t.highlight = features.None
	t.mu.Unlock()
}

// Reset forgets all state, as when the screen is closed.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.state = State{}
	t.highlight = features.None
	t.mu.Unlock()
}
