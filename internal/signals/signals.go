// Package signals computes the per-entry error indicators and the
// authorization checks that gate the workspace menu.
package signals

import "github.com/marcus/wsmenu/internal/models"

// Signals carries the externally computed error booleans for one pass.
type Signals struct {
	EmployeeList    bool `json:"employee_list"`
	Categories      bool `json:"categories"`
	TaxRates        bool `json:"tax_rates"`
	Sync            bool `json:"sync"`
	GeneralSettings bool `json:"general_settings"`
	Reimburser      bool `json:"reimburser"`
	BrokenCardFeed  bool `json:"broken_card_feed"`
}

// Any reports whether any signal is raised.
func (s Signals) Any() bool {
	return s.EmployeeList || s.Categories || s.TaxRates || s.Sync ||
		s.GeneralSettings || s.Reimburser || s.BrokenCardFeed
}

// generalSettingsFields are the profile fields whose errors flag the Profile entry.
var generalSettingsFields = []string{"name", "avatarURL", "outputCurrency", "address"}

// Compute derives every signal from ws. syncInProgress suppresses the sync
// error while a connection sync is running.
func Compute(ws *models.Workspace, syncInProgress bool) Signals {
	if ws == nil {
		return Signals{}
	}
	return Signals{
		EmployeeList:    EmployeeListError(ws),
		Categories:      CategoriesError(ws.Categories),
		TaxRates:        TaxRateError(ws),
		Sync:            SyncError(ws, syncInProgress),
		GeneralSettings: GeneralSettingsError(ws),
		Reimburser:      len(ws.ErrorFields["reimburser"]) > 0,
		BrokenCardFeed:  BrokenFeedConnection(ws.CompanyCards),
	}
}

// EmployeeListError reports whether any employee carries errors.
func EmployeeListError(ws *models.Workspace) bool {
	for _, e := range ws.EmployeeList {
		if len(e.Errors) > 0 {
			return true
		}
	}
	return false
}

// CategoriesError reports whether any category carries errors.
func CategoriesError(categories map[string]models.Category) bool {
	for _, c := range categories {
		if len(c.Errors) > 0 {
			return true
		}
	}
	return false
}

// TaxRateError reports whether any tax rate carries errors.
func TaxRateError(ws *models.Workspace) bool {
	for _, r := range ws.TaxRates {
		if len(r.Errors) > 0 {
			return true
		}
	}
	return false
}

// SyncError reports a failed last sync on any connection.
func SyncError(ws *models.Workspace, syncInProgress bool) bool {
	if syncInProgress {
		return false
	}
	for _, c := range ws.Connections {
		if c.LastSync != nil && !c.LastSync.IsSuccessful {
			return true
		}
	}
	return false
}

// GeneralSettingsError reports errors on any profile field.
func GeneralSettingsError(ws *models.Workspace) bool {
	for _, field := range generalSettingsFields {
		if len(ws.ErrorFields[field]) > 0 {
			return true
		}
	}
	return false
}

// BrokenFeedConnection reports a card whose last bank scrape failed.
func BrokenFeedConnection(cards []models.Card) bool {
	for _, c := range cards {
		if c.LastScrapeResult != 0 && c.LastScrapeResult != 200 {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the current user administers ws.
func IsAdmin(ws *models.Workspace) bool {
	return ws != nil && ws.Role == models.RoleAdmin
}

// IsPaidGroup reports whether ws is on a paid group tier.
func IsPaidGroup(ws *models.Workspace) bool {
	if ws == nil {
		return false
	}
	return ws.Type == models.TypeTeam || ws.Type == models.TypeCorporate
}
