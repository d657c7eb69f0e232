// Package features enumerates the togglable workspace features and derives
// their canonical enabled state from a workspace record.
package features

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marcus/wsmenu/internal/models"
)

// Feature is one togglable workspace feature.
type Feature int

// Menu order. None is the zero value and never appears in All.
const (
	None Feature = iota
	DistanceRates
	ExpensifyCards
	CompanyCards
	PerDiem
	Workflows
	Rules
	Invoices
	Categories
	Tags
	Taxes
	ReportFields
	Connections

	count
)

// Count is the number of known features.
const Count = int(count) - 1

var allFeatures = []Feature{
	DistanceRates,
	ExpensifyCards,
	CompanyCards,
	PerDiem,
	Workflows,
	Rules,
	Invoices,
	Categories,
	Tags,
	Taxes,
	ReportFields,
	Connections,
}

// All returns every feature in menu order.
func All() []Feature {
	items := make([]Feature, len(allFeatures))
	copy(items, allFeatures)
	return items
}

// Key returns the record field name used for the feature in pendingFields.
func (f Feature) Key() string {
	switch f {
	case DistanceRates:
		return "areDistanceRatesEnabled"
	case ExpensifyCards:
		return "areExpensifyCardsEnabled"
	case CompanyCards:
		return "areCompanyCardsEnabled"
	case PerDiem:
		return "arePerDiemRatesEnabled"
	case Workflows:
		return "areWorkflowsEnabled"
	case Rules:
		return "areRulesEnabled"
	case Invoices:
		return "areInvoicesEnabled"
	case Categories:
		return "areCategoriesEnabled"
	case Tags:
		return "areTagsEnabled"
	case Taxes:
		return "tax"
	case ReportFields:
		return "areReportFieldsEnabled"
	case Connections:
		return "areConnectionsEnabled"
	}
	return ""
}

// String returns the short, dashed name of the feature.
func (f Feature) String() string {
	switch f {
	case DistanceRates:
		return "distance-rates"
	case ExpensifyCards:
		return "expensify-card"
	case CompanyCards:
		return "company-cards"
	case PerDiem:
		return "per-diem"
	case Workflows:
		return "workflows"
	case Rules:
		return "rules"
	case Invoices:
		return "invoices"
	case Categories:
		return "categories"
	case Tags:
		return "tags"
	case Taxes:
		return "taxes"
	case ReportFields:
		return "report-fields"
	case Connections:
		return "accounting"
	}
	return "none"
}

// Title returns a human readable label.
func (f Feature) Title() string {
	switch f {
	case DistanceRates:
		return "Distance rates"
	case ExpensifyCards:
		return "Expensify Card"
	case CompanyCards:
		return "Company cards"
	case PerDiem:
		return "Per diem"
	case Workflows:
		return "Workflows"
	case Rules:
		return "Rules"
	case Invoices:
		return "Invoices"
	case Categories:
		return "Categories"
	case Tags:
		return "Tags"
	case Taxes:
		return "Taxes"
	case ReportFields:
		return "Report fields"
	case Connections:
		return "Accounting"
	}
	return ""
}

// Valid reports whether f is a known feature.
func (f Feature) Valid() bool {
	return f > None && f < count
}

var byName = buildNameIndex()

func buildNameIndex() map[string]Feature {
	idx := make(map[string]Feature, len(allFeatures)*3)
	for _, f := range allFeatures {
		idx[normalizeName(f.Key())] = f
		idx[normalizeName(f.String())] = f
		idx[normalizeName(strings.ReplaceAll(f.String(), "-", ""))] = f
	}
	// The record stores taxes under a nested object; accept the flat name too.
	idx[normalizeName("areTaxesEnabled")] = Taxes
	idx[normalizeName("connections")] = Connections
	return idx
}

// Parse resolves a feature from its record key, short name or alias.
func Parse(name string) (Feature, error) {
	if f, ok := byName[normalizeName(name)]; ok {
		return f, nil
	}
	return None, fmt.Errorf("unknown feature %q", name)
}

// FromKey resolves a pendingFields key. It returns false for keys that do not
// belong to a togglable feature.
func FromKey(key string) (Feature, bool) {
	for _, f := range allFeatures {
		if f.Key() == key {
			return f, true
		}
	}
	return None, false
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Enabled reads the canonical flag for f from ws. A nil record is disabled.
func Enabled(ws *models.Workspace, f Feature) bool {
	if ws == nil {
		return false
	}
	switch f {
	case DistanceRates:
		return ws.AreDistanceRatesEnabled
	case ExpensifyCards:
		return ws.AreExpensifyCardsEnabled
	case CompanyCards:
		return ws.AreCompanyCardsEnabled
	case PerDiem:
		return ws.ArePerDiemRatesEnabled
	case Workflows:
		return ws.AreWorkflowsEnabled
	case Rules:
		return ws.AreRulesEnabled
	case Invoices:
		return ws.AreInvoicesEnabled
	case Categories:
		return ws.AreCategoriesEnabled
	case Tags:
		return ws.AreTagsEnabled
	case Taxes:
		return ws.Tax != nil && ws.Tax.TrackingEnabled
	case ReportFields:
		return ws.AreReportFieldsEnabled
	case Connections:
		return ws.AreConnectionsEnabled || len(ws.Connections) > 0
	}
	return false
}

// Set writes the canonical flag for f on ws.
func Set(ws *models.Workspace, f Feature, enabled bool) {
	if ws == nil {
		return
	}
	switch f {
	case DistanceRates:
		ws.AreDistanceRatesEnabled = enabled
	case ExpensifyCards:
		ws.AreExpensifyCardsEnabled = enabled
	case CompanyCards:
		ws.AreCompanyCardsEnabled = enabled
	case PerDiem:
		ws.ArePerDiemRatesEnabled = enabled
	case Workflows:
		ws.AreWorkflowsEnabled = enabled
	case Rules:
		ws.AreRulesEnabled = enabled
	case Invoices:
		ws.AreInvoicesEnabled = enabled
	case Categories:
		ws.AreCategoriesEnabled = enabled
	case Tags:
		ws.AreTagsEnabled = enabled
	case Taxes:
		if ws.Tax == nil {
			ws.Tax = &models.Tax{}
		}
		ws.Tax.TrackingEnabled = enabled
	case ReportFields:
		ws.AreReportFieldsEnabled = enabled
	case Connections:
		ws.AreConnectionsEnabled = enabled
	}
}

// StateMap holds one boolean per feature, indexed by Feature.
// It is a value type: assignment copies it.
type StateMap [count]bool

// Get returns the value for f. Unknown features read as false.
func (m StateMap) Get(f Feature) bool {
	if !f.Valid() {
		return false
	}
	return m[f]
}

// With returns a copy of m with f set to v.
func (m StateMap) With(f Feature, v bool) StateMap {
	if f.Valid() {
		m[f] = v
	}
	return m
}

// Enabled returns the enabled features in menu order.
func (m StateMap) Enabled() []Feature {
	var out []Feature
	for _, f := range allFeatures {
		if m[f] {
			out = append(out, f)
		}
	}
	return out
}

// MarshalJSON encodes the map keyed by record field name.
func (m StateMap) MarshalJSON() ([]byte, error) {
	obj := make(map[string]bool, len(allFeatures))
	for _, f := range allFeatures {
		obj[f.Key()] = m[f]
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes a map keyed by record field name. Unknown keys are ignored.
func (m *StateMap) UnmarshalJSON(data []byte) error {
	var obj map[string]bool
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	var out StateMap
	for key, v := range obj {
		if f, ok := FromKey(key); ok {
			out[f] = v
		}
	}
	*m = out
	return nil
}

// Snapshot derives the canonical state of every feature from ws.
func Snapshot(ws *models.Workspace) StateMap {
	var m StateMap
	for _, f := range allFeatures {
		m[f] = Enabled(ws, f)
	}
	return m
}
