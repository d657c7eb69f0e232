// Package reconcile merges canonical feature flags with in-flight writes and
// connectivity into the state shown on the workspace menu.
//
// Online, a feature whose write is still pending keeps the value it was last
// shown with until the pending marker changes. Offline, local writes are
// authoritative and shown immediately. Callers own the State and must pass the
// output of one pass as the input of the next; passes must not overlap.
package reconcile

import (
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
)

// State is the accumulator threaded between passes.
type State struct {
	Displayed   features.StateMap    `json:"displayed"`
	PrevPending models.PendingFields `json:"prev_pending,omitempty"`
	Initialized bool                 `json:"initialized"`
}

// Result describes what changed during a pass.
type Result struct {
	// Changed lists pending features whose displayed value flipped, in menu order.
	Changed []features.Feature
	// Highlight is the first changed feature, or features.None.
	Highlight features.Feature
}

// HasHighlight reports whether the pass produced a highlight target.
func (r Result) HasHighlight() bool {
	return r.Highlight != features.None
}

// Reconcile runs one pass over ws. prev is the State returned by the previous
// pass (zero value before the first pass).
func Reconcile(prev State, ws *models.Workspace, offline bool) (State, Result) {
	canonical := features.Snapshot(ws)

	var pending models.PendingFields
	if ws != nil {
		pending = ws.PendingFields
	}

	next := State{
		Displayed:   canonical,
		PrevPending: pending.Clone(),
		Initialized: true,
	}
	if !prev.Initialized {
		return next, Result{}
	}

	var res Result
	for _, f := range features.All() {
		marker, present := pending[f.Key()]
		if !present {
			continue
		}
		value := prev.Displayed.Get(f)
		if shouldAdopt(prev.PrevPending[f.Key()], marker, offline) {
			value = canonical.Get(f)
		}
		next.Displayed = next.Displayed.With(f, value)
		if value != prev.Displayed.Get(f) {
			res.Changed = append(res.Changed, f)
		}
	}
	res.Highlight = SelectHighlight(res.Changed)
	return next, res
}

// shouldAdopt decides whether a pending feature takes its canonical value.
func shouldAdopt(before, now models.PendingAction, offline bool) bool {
	return before != now || offline || now == ""
}

// SelectHighlight picks the first changed feature. The slice order is the
// caller's explicit ordering.
func SelectHighlight(changed []features.Feature) features.Feature {
	if len(changed) == 0 {
		return features.None
	}
	return changed[0]
}
