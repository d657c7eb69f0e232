package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/marcus/wsmenu/internal/db"
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/page"
	"github.com/marcus/wsmenu/internal/signals"
)

// Explanation is the input of the explain report.
type Explanation struct {
	View    page.View
	Writes  []db.Write
	Signals signals.Signals
}

// ExplainMarkdown describes why each feature has its displayed value: the
// canonical value, the pending marker, outstanding writes and recorded
// rejections. The result is markdown for RenderMarkdown.
func ExplainMarkdown(ex Explanation) string {
	var sb strings.Builder
	ws := ex.View.Workspace
	if ws == nil {
		return "# No workspace\n"
	}

	name := ws.Name
	if name == "" {
		name = ws.ID
	}
	fmt.Fprintf(&sb, "# %s\n\n", name)
	fmt.Fprintf(&sb, "- **id**: `%s`\n", ws.ID)
	fmt.Fprintf(&sb, "- **type**: %s, **role**: %s\n", ws.Type, ws.Role)
	fmt.Fprintf(&sb, "- **version**: %d\n", ws.Version)
	if ex.View.Offline {
		sb.WriteString("- **connectivity**: offline, pending values are shown as written locally\n")
	}
	if ex.View.IsDraft {
		sb.WriteString("- **draft**: this is a local draft, not yet confirmed\n")
	}
	if ex.View.Highlight != "" {
		fmt.Fprintf(&sb, "- **highlight**: %s\n", ex.View.Highlight)
	}

	sb.WriteString("\n## Features\n\n")
	sb.WriteString("| Feature | Displayed | Record | Pending | Error |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, f := range features.All() {
		pending := ""
		if ws.PendingFields.Has(f.Key()) {
			pending = string(ws.PendingFields[f.Key()])
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			f.Title(),
			onOff(ex.View.Features.Get(f)),
			onOff(features.Enabled(ws, f)),
			pending,
			lastError(ws.ErrorFields[f.Key()]),
		)
	}

	if len(ex.Writes) > 0 {
		sb.WriteString("\n## Outstanding writes\n\n")
		for _, w := range ex.Writes {
			state := "queued"
			if w.SentAt != nil {
				state = "sent, awaiting echo"
			}
			fmt.Fprintf(&sb, "- `%s` %s → %s (%s, %s)\n",
				shortID(w.WriteID), w.Feature.Title(), onOff(w.Enabled), state, FormatTimeAgo(w.CreatedAt))
		}
	}

	if raised := raisedSignals(ex.Signals); len(raised) > 0 {
		sb.WriteString("\n## Error indicators\n\n")
		for _, s := range raised {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
	}
	return sb.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// lastError returns the newest message; keys are microsecond timestamps.
func lastError(errs map[string]string) string {
	if len(errs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.ReplaceAll(errs[keys[len(keys)-1]], "|", "/")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func raisedSignals(s signals.Signals) []string {
	var out []string
	add := func(on bool, label string) {
		if on {
			out = append(out, label)
		}
	}
	add(s.GeneralSettings, "profile fields have errors")
	add(s.EmployeeList, "members have errors")
	add(s.Reimburser, "reimburser has errors")
	add(s.BrokenCardFeed, "a company card feed is broken")
	add(s.Categories, "categories have errors")
	add(s.TaxRates, "tax rates have errors")
	add(s.Sync, "the last accounting sync failed")
	return out
}
