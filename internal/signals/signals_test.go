package signals

import (
	"testing"

	"github.com/marcus/wsmenu/internal/models"
)

func TestComputeNil(t *testing.T) {
	if Compute(nil, false).Any() {
		t.Error("nil record should raise nothing")
	}
}

func TestCompute(t *testing.T) {
	ws := &models.Workspace{
		EmployeeList: map[string]models.Employee{
			"a@example.com": {Email: "a@example.com"},
			"b@example.com": {Email: "b@example.com", Errors: models.Errors{"1": "bounced"}},
		},
		Categories: map[string]models.Category{"Travel": {Name: "Travel", Errors: models.Errors{"1": "x"}}},
		TaxRates:   map[string]models.TaxRate{"VAT": {Name: "VAT"}},
		Connections: map[string]models.Connection{
			"xero": {LastSync: &models.SyncResult{IsSuccessful: false, ErrorMessage: "auth"}},
		},
		ErrorFields: models.ErrorFields{
			"avatarURL":  {"1": "too large"},
			"reimburser": {},
		},
		CompanyCards: []models.Card{{CardID: "c1", LastScrapeResult: 200}, {CardID: "c2", LastScrapeResult: 403}},
	}

	got := Compute(ws, false)
	want := Signals{
		EmployeeList:    true,
		Categories:      true,
		TaxRates:        false,
		Sync:            true,
		GeneralSettings: true,
		Reimburser:      false,
		BrokenCardFeed:  true,
	}
	if got != want {
		t.Errorf("Compute() = %+v, want %+v", got, want)
	}

	if Compute(ws, true).Sync {
		t.Error("sync error should be suppressed while syncing")
	}
}

func TestBrokenFeedIgnoresUnscraped(t *testing.T) {
	if BrokenFeedConnection([]models.Card{{CardID: "c1"}}) {
		t.Error("a card that was never scraped is not broken")
	}
}

func TestAuthorization(t *testing.T) {
	tests := []struct {
		name      string
		ws        *models.Workspace
		wantAdmin bool
		wantPaid  bool
	}{
		{"nil", nil, false, false},
		{"personal admin", &models.Workspace{Type: models.TypePersonal, Role: models.RoleAdmin}, true, false},
		{"team user", &models.Workspace{Type: models.TypeTeam, Role: models.RoleUser}, false, true},
		{"corporate admin", &models.Workspace{Type: models.TypeCorporate, Role: models.RoleAdmin}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAdmin(tt.ws); got != tt.wantAdmin {
				t.Errorf("IsAdmin = %v, want %v", got, tt.wantAdmin)
			}
			if got := IsPaidGroup(tt.ws); got != tt.wantPaid {
				t.Errorf("IsPaidGroup = %v, want %v", got, tt.wantPaid)
			}
		})
	}
}
