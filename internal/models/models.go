package models

import "time"

// PendingAction marks a write that the remote authority has not confirmed yet.
// The empty value means the marker is present but cleared (a JSON null).
type PendingAction string

const (
	PendingAdd    PendingAction = "add"
	PendingUpdate PendingAction = "update"
	PendingDelete PendingAction = "delete"
)

// WorkspaceType is the billing tier of a workspace.
type WorkspaceType string

const (
	TypePersonal  WorkspaceType = "personal"
	TypeTeam      WorkspaceType = "team"
	TypeCorporate WorkspaceType = "corporate"
)

// Role is the current user's role on a workspace.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAuditor Role = "auditor"
	RoleUser    Role = "user"
)

// Errors maps a microtime key to an error message.
type Errors map[string]string

// ErrorFields maps a record field name to its errors.
type ErrorFields map[string]Errors

// PendingFields maps a record field name to its pending marker.
type PendingFields map[string]PendingAction

// Has reports whether field carries a non-empty pending marker.
func (p PendingFields) Has(field string) bool {
	return p[field] != ""
}

// Clone returns an independent copy. A nil map stays nil.
func (p PendingFields) Clone() PendingFields {
	if p == nil {
		return nil
	}
	out := make(PendingFields, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Tax holds tax tracking settings.
type Tax struct {
	TrackingEnabled bool `json:"trackingEnabled"`
}

// SyncResult is the outcome of the last accounting sync.
type SyncResult struct {
	IsSuccessful bool   `json:"isSuccessful"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	SyncedAt     string `json:"syncedAt,omitempty"`
}

// Connection is an accounting integration attached to a workspace.
type Connection struct {
	LastSync *SyncResult    `json:"lastSync,omitempty"`
	Config   map[string]any `json:"config,omitempty"`
}

// Employee is a member of the workspace employee list.
type Employee struct {
	Email         string        `json:"email"`
	Role          Role          `json:"role,omitempty"`
	Errors        Errors        `json:"errors,omitempty"`
	PendingAction PendingAction `json:"pendingAction,omitempty"`
}

// Category is a workspace expense category.
type Category struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Errors  Errors `json:"errors,omitempty"`
}

// TaxRate is a configured tax rate.
type TaxRate struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Errors Errors `json:"errors,omitempty"`
}

// Card is a company card imported from a bank feed.
type Card struct {
	CardID           string `json:"cardID"`
	Bank             string `json:"bank"`
	LastScrapeResult int    `json:"lastScrapeResult,omitempty"`
}

// BankAccount holds the invoicing bank account balance in minor units.
type BankAccount struct {
	StripeConnectAccountBalance int64 `json:"stripeConnectAccountBalance"`
}

// Invoice holds invoicing settings.
type Invoice struct {
	BankAccount *BankAccount `json:"bankAccount,omitempty"`
}

// Workspace is the replica of a remote workspace record.
type Workspace struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Type           WorkspaceType `json:"type"`
	Role           Role          `json:"role"`
	Owner          string        `json:"owner,omitempty"`
	OutputCurrency string        `json:"outputCurrency,omitempty"`
	AvatarURL      string        `json:"avatarURL,omitempty"`
	Version        int64         `json:"version"`

	AreDistanceRatesEnabled  bool                  `json:"areDistanceRatesEnabled,omitempty"`
	AreExpensifyCardsEnabled bool                  `json:"areExpensifyCardsEnabled,omitempty"`
	AreCompanyCardsEnabled   bool                  `json:"areCompanyCardsEnabled,omitempty"`
	ArePerDiemRatesEnabled   bool                  `json:"arePerDiemRatesEnabled,omitempty"`
	AreWorkflowsEnabled      bool                  `json:"areWorkflowsEnabled,omitempty"`
	AreRulesEnabled          bool                  `json:"areRulesEnabled,omitempty"`
	AreInvoicesEnabled       bool                  `json:"areInvoicesEnabled,omitempty"`
	AreCategoriesEnabled     bool                  `json:"areCategoriesEnabled,omitempty"`
	AreTagsEnabled           bool                  `json:"areTagsEnabled,omitempty"`
	AreReportFieldsEnabled   bool                  `json:"areReportFieldsEnabled,omitempty"`
	AreConnectionsEnabled    bool                  `json:"areConnectionsEnabled,omitempty"`
	Tax                      *Tax                  `json:"tax,omitempty"`
	Connections              map[string]Connection `json:"connections,omitempty"`

	IsPolicyExpenseChatEnabled bool `json:"isPolicyExpenseChatEnabled,omitempty"`

	PendingAction PendingAction `json:"pendingAction,omitempty"`
	PendingFields PendingFields `json:"pendingFields,omitempty"`
	ErrorFields   ErrorFields   `json:"errorFields,omitempty"`
	Errors        Errors        `json:"errors,omitempty"`

	EmployeeList map[string]Employee `json:"employeeList,omitempty"`
	Categories   map[string]Category `json:"categories,omitempty"`
	TaxRates     map[string]TaxRate  `json:"taxRates,omitempty"`
	CompanyCards []Card              `json:"companyCards,omitempty"`
	Invoice      *Invoice            `json:"invoice,omitempty"`

	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy of the mutable maps a caller might edit.
func (w *Workspace) Clone() *Workspace {
	if w == nil {
		return nil
	}
	out := *w
	out.PendingFields = w.PendingFields.Clone()
	if w.ErrorFields != nil {
		out.ErrorFields = make(ErrorFields, len(w.ErrorFields))
		for k, v := range w.ErrorFields {
			out.ErrorFields[k] = cloneErrors(v)
		}
	}
	out.Errors = cloneErrors(w.Errors)
	if w.Tax != nil {
		tax := *w.Tax
		out.Tax = &tax
	}
	if w.Connections != nil {
		out.Connections = make(map[string]Connection, len(w.Connections))
		for k, v := range w.Connections {
			out.Connections[k] = v
		}
	}
	return &out
}

func cloneErrors(e Errors) Errors {
	if e == nil {
		return nil
	}
	out := make(Errors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// PickRecord returns the draft when it carries an id, otherwise the stored record.
// Drafts are workspaces created locally and still awaiting confirmation.
func PickRecord(draft, stored *Workspace) *Workspace {
	if draft != nil && draft.ID != "" {
		return draft
	}
	return stored
}

// Config is the on-disk CLI configuration.
type Config struct {
	ServerURL   string `json:"server_url,omitempty"`
	AMQPURL     string `json:"amqp_url,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	Login       string `json:"login,omitempty"`
	Offline     bool   `json:"offline,omitempty"`
	HighlightMS int    `json:"highlight_ms,omitempty"`
}
