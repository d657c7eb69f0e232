// Package fixtures loads seed workspaces from YAML or JSON files.
package fixtures

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
)

// File is the YAML seed format.
type File struct {
	Workspaces []Workspace `yaml:"workspaces"`
}

// Workspace is one seeded record. Features lists enabled features by any
// name features.Parse accepts.
type Workspace struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	Type           string            `yaml:"type"`
	Role           string            `yaml:"role"`
	Owner          string            `yaml:"owner"`
	OutputCurrency string            `yaml:"output_currency"`
	AvatarURL      string            `yaml:"avatar_url"`
	Version        int64             `yaml:"version"`
	Features       []string          `yaml:"features"`
	Pending        map[string]string `yaml:"pending"`
	Connections    []string          `yaml:"connections"`
	SyncFailed     bool              `yaml:"sync_failed"`
	InvoiceBalance int64             `yaml:"invoice_balance"`
	BrokenCards    []string          `yaml:"broken_cards"`
	Members        map[string]string `yaml:"members"`
	Categories     []string          `yaml:"categories"`
	Errors         map[string]string `yaml:"errors"`
}

// Load reads a seed file. The format follows the extension: .json holds a
// list of workspace records, .yaml or .yml the File format.
func Load(path string) ([]*models.Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		var out []*models.Workspace
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("parsing fixtures %s: %w", path, err)
		}
		for i, ws := range out {
			if ws.ID == "" {
				return nil, fmt.Errorf("fixtures %s: workspace %d has no id", path, i)
			}
		}
		return out, nil
	case ".yaml", ".yml":
		out, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("fixtures %s: %w", path, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("fixtures %s: unsupported extension %q", path, ext)
	}
}

// Parse decodes YAML seed data.
func Parse(data []byte) ([]*models.Workspace, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	seen := map[string]bool{}
	out := make([]*models.Workspace, 0, len(f.Workspaces))
	for i, w := range f.Workspaces {
		if w.ID == "" {
			return nil, fmt.Errorf("workspace %d has no id", i)
		}
		if seen[w.ID] {
			return nil, fmt.Errorf("duplicate workspace id %q", w.ID)
		}
		seen[w.ID] = true

		ws, err := w.Record()
		if err != nil {
			return nil, fmt.Errorf("workspace %s: %w", w.ID, err)
		}
		out = append(out, ws)
	}
	return out, nil
}

// Record converts the seed entry into a workspace record.
func (w Workspace) Record() (*models.Workspace, error) {
	ws := &models.Workspace{
		ID:             w.ID,
		Name:           w.Name,
		Type:           models.WorkspaceType(defaultString(w.Type, string(models.TypeCorporate))),
		Role:           models.Role(defaultString(w.Role, string(models.RoleAdmin))),
		Owner:          w.Owner,
		OutputCurrency: w.OutputCurrency,
		AvatarURL:      w.AvatarURL,
		Version:        w.Version,
	}
	switch ws.Type {
	case models.TypePersonal, models.TypeTeam, models.TypeCorporate:
	default:
		return nil, fmt.Errorf("unknown type %q", w.Type)
	}
	switch ws.Role {
	case models.RoleAdmin, models.RoleAuditor, models.RoleUser:
	default:
		return nil, fmt.Errorf("unknown role %q", w.Role)
	}

	for _, name := range w.Features {
		f, err := features.Parse(name)
		if err != nil {
			return nil, err
		}
		features.Set(ws, f, true)
	}

	if len(w.Pending) > 0 {
		ws.PendingFields = models.PendingFields{}
		for _, name := range sortedKeys(w.Pending) {
			f, err := features.Parse(name)
			if err != nil {
				return nil, fmt.Errorf("pending: %w", err)
			}
			ws.PendingFields[f.Key()] = models.PendingAction(w.Pending[name])
		}
	}

	if len(w.Connections) > 0 {
		ws.Connections = make(map[string]models.Connection, len(w.Connections))
		for _, name := range w.Connections {
			c := models.Connection{LastSync: &models.SyncResult{IsSuccessful: !w.SyncFailed}}
			if w.SyncFailed {
				c.LastSync.ErrorMessage = "sync failed"
			}
			ws.Connections[name] = c
		}
	}

	if w.InvoiceBalance != 0 {
		ws.Invoice = &models.Invoice{BankAccount: &models.BankAccount{StripeConnectAccountBalance: w.InvoiceBalance}}
	}

	for _, bank := range w.BrokenCards {
		ws.CompanyCards = append(ws.CompanyCards, models.Card{CardID: bank + "-1", Bank: bank, LastScrapeResult: 403})
	}

	if len(w.Members) > 0 {
		ws.EmployeeList = make(map[string]models.Employee, len(w.Members))
		for email, role := range w.Members {
			ws.EmployeeList[email] = models.Employee{Email: email, Role: models.Role(role)}
		}
	}

	if len(w.Categories) > 0 {
		ws.Categories = make(map[string]models.Category, len(w.Categories))
		for _, name := range w.Categories {
			ws.Categories[name] = models.Category{Name: name, Enabled: true}
		}
	}

	if len(w.Errors) > 0 {
		ws.Errors = models.Errors{}
		for k, v := range w.Errors {
			ws.Errors[k] = v
		}
	}
	return ws, nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
