package menu

import (
	"testing"

	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
	"github.com/marcus/wsmenu/internal/signals"
)

func allEnabled() features.StateMap {
	var m features.StateMap
	for _, f := range features.All() {
		m = m.With(f, true)
	}
	return m
}

func items(entries []Entry) []Item {
	out := make([]Item, len(entries))
	for i, e := range entries {
		out[i] = e.Item
	}
	return out
}

func equalItems(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildFullOrder(t *testing.T) {
	entries := Build(Input{Features: allEnabled(), IsAdmin: true, IsPaidGroup: true})
	want := []Item{
		ItemProfile, ItemMembers,
		ItemDistanceRates, ItemExpensifyCard, ItemCompanyCards, ItemPerDiem,
		ItemWorkflows, ItemRules, ItemInvoices, ItemCategories, ItemTags,
		ItemTaxes, ItemReportFields, ItemAccounting, ItemMoreFeatures,
	}
	if got := items(entries); !equalItems(got, want) {
		t.Fatalf("order = %v\nwant   %v", got, want)
	}
	for i, e := range entries {
		if e.Rank != i {
			t.Errorf("%s rank = %d, want %d", e.Item, e.Rank, i)
		}
		if e.HasError() || e.Highlighted {
			t.Errorf("%s should carry no indicator or highlight", e.Item)
		}
	}
}

// Non-admin or non-paid workspaces only see Profile and Members.
func TestBuildGating(t *testing.T) {
	tests := []struct {
		name    string
		admin   bool
		paid    bool
		wantLen int
	}{
		{"admin paid", true, true, 2 + features.Count + 1},
		{"admin free", true, false, 2},
		{"member paid", false, true, 2},
		{"member free", false, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := Build(Input{Features: allEnabled(), IsAdmin: tt.admin, IsPaidGroup: tt.paid})
			if len(entries) != tt.wantLen {
				t.Fatalf("len = %d, want %d (%v)", len(entries), tt.wantLen, items(entries))
			}
			if entries[0].Item != ItemProfile || entries[1].Item != ItemMembers {
				t.Errorf("first entries = %v", items(entries[:2]))
			}
		})
	}
}

func TestBuildSkipsDisabledFeatures(t *testing.T) {
	m := features.StateMap{}.With(features.Categories, true)
	entries := Build(Input{Features: m, IsAdmin: true, IsPaidGroup: true})
	want := []Item{ItemProfile, ItemMembers, ItemCategories, ItemMoreFeatures}
	if got := items(entries); !equalItems(got, want) {
		t.Errorf("entries = %v, want %v", got, want)
	}
	e, ok := Find(entries, ItemCategories)
	if !ok || e.HasError() {
		t.Errorf("categories entry = %+v, %v", e, ok)
	}
}

func TestBuildIndicators(t *testing.T) {
	sig := signals.Signals{
		EmployeeList:    true,
		Categories:      true,
		TaxRates:        true,
		Sync:            true,
		GeneralSettings: true,
		Reimburser:      true,
		BrokenCardFeed:  true,
	}
	entries := Build(Input{Features: allEnabled(), Signals: sig, IsAdmin: true, IsPaidGroup: true})
	wantErr := map[Item]bool{
		ItemProfile:      true,
		ItemMembers:      true,
		ItemCategories:   true,
		ItemTaxes:        true,
		ItemAccounting:   true,
		ItemWorkflows:    true,
		ItemCompanyCards: true,
	}
	for _, e := range entries {
		if e.HasError() != wantErr[e.Item] {
			t.Errorf("%s error = %v, want %v", e.Item, e.HasError(), wantErr[e.Item])
		}
	}
}

func TestBuildHighlight(t *testing.T) {
	entries := Build(Input{Features: allEnabled(), Highlight: features.PerDiem, IsAdmin: true, IsPaidGroup: true})
	count := 0
	for _, e := range entries {
		if e.Highlighted {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("highlighted entries = %d, want 1", count)
	}
	e, ok := Highlighted(entries)
	if !ok || e.Item != ItemPerDiem {
		t.Errorf("highlighted = %+v", e)
	}

	entries = Build(Input{Features: allEnabled(), IsAdmin: true, IsPaidGroup: true})
	if _, ok := Highlighted(entries); ok {
		t.Error("no highlight target should highlight nothing")
	}
}

func TestBuildInvoiceBadge(t *testing.T) {
	m := features.StateMap{}.With(features.Invoices, true)
	entries := Build(Input{Features: m, IsAdmin: true, IsPaidGroup: true, Currency: "EUR", InvoiceBalance: 123456})
	e, ok := Find(entries, ItemInvoices)
	if !ok {
		t.Fatal("invoices entry missing")
	}
	if e.Badge != "€1,234.56" {
		t.Errorf("badge = %q", e.Badge)
	}
	for _, other := range entries {
		if other.Item != ItemInvoices && other.Badge != "" {
			t.Errorf("%s should not carry a badge", other.Item)
		}
	}
}

func TestBuildNonAdminScenario(t *testing.T) {
	ws := &models.Workspace{Type: models.TypeCorporate, Role: models.RoleUser, AreCategoriesEnabled: true}
	entries := Build(InputFor(ws, features.Snapshot(ws), features.None, false))
	if got := items(entries); !equalItems(got, []Item{ItemProfile, ItemMembers}) {
		t.Errorf("entries = %v", got)
	}
}

func TestInputFor(t *testing.T) {
	ws := &models.Workspace{
		Type:           models.TypeTeam,
		Role:           models.RoleAdmin,
		OutputCurrency: "GBP",
		Invoice:        &models.Invoice{BankAccount: &models.BankAccount{StripeConnectAccountBalance: 500}},
		ErrorFields:    models.ErrorFields{"name": {"1": "taken"}},
	}
	in := InputFor(ws, features.StateMap{}, features.Tags, false)
	if !in.IsAdmin || !in.IsPaidGroup {
		t.Error("authorization not derived")
	}
	if in.Currency != "GBP" || in.InvoiceBalance != 500 {
		t.Errorf("currency/balance = %q/%d", in.Currency, in.InvoiceBalance)
	}
	if !in.Signals.GeneralSettings || in.Highlight != features.Tags {
		t.Errorf("input = %+v", in)
	}

	empty := InputFor(nil, features.StateMap{}, features.None, false)
	if empty.IsAdmin || empty.IsPaidGroup || empty.Signals.Any() {
		t.Errorf("nil record input = %+v", empty)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		minor int64
		code  string
		want  string
	}{
		{0, "USD", "$0.00"},
		{123456, "USD", "$1,234.56"},
		{5, "usd", "$0.05"},
		{-2500, "USD", "-$25.00"},
		{1500, "JPY", "¥1,500"},
		{99, "", "$0.99"},
		{99, "not-a-code", "$0.99"},
		{100000, "CHF", "CHF 1,000.00"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.minor, tt.code); got != tt.want {
			t.Errorf("FormatAmount(%d, %q) = %q, want %q", tt.minor, tt.code, got, tt.want)
		}
	}
}
