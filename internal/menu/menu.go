// Package menu turns reconciled feature states into the ordered list of
// workspace menu entries.
package menu

import (
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
	"github.com/marcus/wsmenu/internal/signals"
)

// Item identifies a menu entry.
type Item string

const (
	ItemProfile       Item = "profile"
	ItemMembers       Item = "members"
	ItemDistanceRates Item = "distance-rates"
	ItemExpensifyCard Item = "expensify-card"
	ItemCompanyCards  Item = "company-cards"
	ItemPerDiem       Item = "per-diem"
	ItemWorkflows     Item = "workflows"
	ItemRules         Item = "rules"
	ItemInvoices      Item = "invoices"
	ItemCategories    Item = "categories"
	ItemTags          Item = "tags"
	ItemTaxes         Item = "taxes"
	ItemReportFields  Item = "report-fields"
	ItemAccounting    Item = "accounting"
	ItemMoreFeatures  Item = "more-features"
)

// Indicator is the error badge state of an entry.
type Indicator string

const (
	IndicatorNone  Indicator = ""
	IndicatorError Indicator = "error"
)

// Entry is one render-ready menu row.
type Entry struct {
	Item        Item             `json:"item"`
	Feature     features.Feature `json:"-"`
	Title       string           `json:"title"`
	Enabled     bool             `json:"enabled"`
	Indicator   Indicator        `json:"indicator,omitempty"`
	Highlighted bool             `json:"highlighted,omitempty"`
	Rank        int              `json:"rank"`
	Badge       string           `json:"badge,omitempty"`
}

// HasError reports whether the entry shows an error indicator.
func (e Entry) HasError() bool {
	return e.Indicator == IndicatorError
}

// Input is everything a build pass needs.
type Input struct {
	Features       features.StateMap
	Signals        signals.Signals
	Highlight      features.Feature
	IsAdmin        bool
	IsPaidGroup    bool
	Currency       string
	InvoiceBalance int64
}

// InputFor assembles an Input from a record and the reconciled state.
func InputFor(ws *models.Workspace, displayed features.StateMap, highlight features.Feature, syncInProgress bool) Input {
	in := Input{
		Features:    displayed,
		Signals:     signals.Compute(ws, syncInProgress),
		Highlight:   highlight,
		IsAdmin:     signals.IsAdmin(ws),
		IsPaidGroup: signals.IsPaidGroup(ws),
	}
	if ws != nil {
		in.Currency = ws.OutputCurrency
		if ws.Invoice != nil && ws.Invoice.BankAccount != nil {
			in.InvoiceBalance = ws.Invoice.BankAccount.StripeConnectAccountBalance
		}
	}
	return in
}

// gated lists the feature entries in display order with the signal that
// raises their error indicator.
var gated = []struct {
	item    Item
	feature features.Feature
	err     func(signals.Signals) bool
}{
	{ItemDistanceRates, features.DistanceRates, nil},
	{ItemExpensifyCard, features.ExpensifyCards, nil},
	{ItemCompanyCards, features.CompanyCards, func(s signals.Signals) bool { return s.BrokenCardFeed }},
	{ItemPerDiem, features.PerDiem, nil},
	{ItemWorkflows, features.Workflows, func(s signals.Signals) bool { return s.Reimburser }},
	{ItemRules, features.Rules, nil},
	{ItemInvoices, features.Invoices, nil},
	{ItemCategories, features.Categories, func(s signals.Signals) bool { return s.Categories }},
	{ItemTags, features.Tags, nil},
	{ItemTaxes, features.Taxes, func(s signals.Signals) bool { return s.TaxRates }},
	{ItemReportFields, features.ReportFields, nil},
	{ItemAccounting, features.Connections, func(s signals.Signals) bool { return s.Sync }},
}

// Build produces the entries for one pass. The list is always built from
// scratch.
func Build(in Input) []Entry {
	entries := []Entry{
		{
			Item:      ItemProfile,
			Title:     "Profile",
			Enabled:   true,
			Indicator: indicator(in.Signals.GeneralSettings),
		},
		{
			Item:      ItemMembers,
			Title:     "Members",
			Enabled:   true,
			Indicator: indicator(in.Signals.EmployeeList),
		},
	}

	if in.IsPaidGroup && in.IsAdmin {
		for _, g := range gated {
			if !in.Features.Get(g.feature) {
				continue
			}
			e := Entry{
				Item:        g.item,
				Feature:     g.feature,
				Title:       g.feature.Title(),
				Enabled:     true,
				Highlighted: in.Highlight != features.None && in.Highlight == g.feature,
			}
			if g.err != nil {
				e.Indicator = indicator(g.err(in.Signals))
			}
			if g.feature == features.Invoices {
				e.Badge = FormatAmount(in.InvoiceBalance, in.Currency)
			}
			entries = append(entries, e)
		}
		entries = append(entries, Entry{
			Item:    ItemMoreFeatures,
			Title:   "More features",
			Enabled: true,
		})
	}

	for i := range entries {
		entries[i].Rank = i
	}
	return entries
}

// Find returns the entry for item, if present.
func Find(entries []Entry, item Item) (Entry, bool) {
	for _, e := range entries {
		if e.Item == item {
			return e, true
		}
	}
	return Entry{}, false
}

// Highlighted returns the highlighted entry, if any.
func Highlighted(entries []Entry) (Entry, bool) {
	for _, e := range entries {
		if e.Highlighted {
			return e, true
		}
	}
	return Entry{}, false
}

func indicator(raised bool) Indicator {
	if raised {
		return IndicatorError
	}
	return IndicatorNone
}
