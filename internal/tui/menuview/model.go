// Package menuview is the live workspace menu: it renders the reconciled
// entries, applies optimistic toggles and flashes the feature the
// authority just confirmed.
package menuview

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/wsmenu/internal/db"
	"github.com/marcus/wsmenu/internal/events"
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/menu"
	"github.com/marcus/wsmenu/internal/models"
	"github.com/marcus/wsmenu/internal/outbox"
	"github.com/marcus/wsmenu/internal/page"
	"github.com/marcus/wsmenu/internal/reconcile"
)

// Remote is the authority as seen by the menu. A nil Remote keeps the
// menu local.
type Remote interface {
	outbox.Authority
	FetchWorkspace(ctx context.Context, id string) (*models.Workspace, error)
}

// MinWidth is the minimum terminal width for the framed view.
const MinWidth = 30

// Model is the Bubble Tea model for one workspace menu.
type Model struct {
	DB          *db.DB
	Remote      Remote
	WorkspaceID string
	Page        *page.Page
	Keys        KeyMap

	Width  int
	Height int

	Current page.View
	Cursor  int
	// InFeatures is set while the "More features" list is open.
	InFeatures    bool
	FeatureCursor int
	ShowHelp      bool
	Status        string
	Err           error

	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	// HighlightTTL is how long a confirmed feature flashes.
	HighlightTTL time.Duration
	// highlightGen numbers scheduled expiries; only the newest may clear.
	highlightGen int
}

// TickMsg triggers a replica reload; other processes may write it.
type TickMsg time.Time

// RecordMsg carries the record read from the replica.
type RecordMsg struct {
	Stored *models.Workspace
	Draft  *models.Workspace
	Err    error
}

// EchoMsg delivers an authority echo received out of band.
type EchoMsg struct {
	Echo events.FeatureToggled
}

// FlushedMsg reports a push of queued writes.
type FlushedMsg struct {
	Result outbox.Result
	Err    error
}

// FetchedMsg reports a refetch from the authority.
type FetchedMsg struct {
	Err error
}

// StatusMsg replaces the footer status line.
type StatusMsg string

type expireMsg struct{ gen int }

// NewModel creates a menu model. p carries the highlight duration and the
// initial connectivity.
func NewModel(database *db.DB, remote Remote, workspaceID string, p *page.Page, interval time.Duration) Model {
	return Model{
		DB:              database,
		Remote:          remote,
		WorkspaceID:     workspaceID,
		Page:            p,
		Keys:            DefaultKeyMap(),
		RefreshInterval: interval,
		RequestTimeout:  10 * time.Second,
		HighlightTTL:    reconcile.DefaultHighlightDuration,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadRecord(), m.scheduleTick()}
	if m.Page.ShouldFetch() && m.Remote != nil {
		cmds = append(cmds, m.fetch())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.loadRecord(), m.scheduleTick())

	case RecordMsg:
		if msg.Err != nil {
			m.Err = msg.Err
			return m, nil
		}
		m.Err = nil
		change := m.Page.Update(msg.Stored, msg.Draft)
		m.refreshView()
		if change.Result.HasHighlight() {
			m.Status = "updated: " + change.Result.Highlight.Title()
			expire := m.scheduleExpire()
			return m, expire
		}
		return m, nil

	case EchoMsg:
		if _, err := m.DB.ApplyEcho(msg.Echo); err != nil {
			m.Status = "echo: " + err.Error()
			return m, nil
		}
		return m, m.loadRecord()

	case FlushedMsg:
		switch {
		case msg.Err != nil:
			m.Status = "push: " + msg.Err.Error()
		case msg.Result.Rejected > 0:
			m.Status = "authority rejected a change"
		case msg.Result.Sent > 0:
			m.Status = "pushed"
		}
		return m, m.loadRecord()

	case FetchedMsg:
		m.Page.SetSyncInProgress(false)
		if msg.Err != nil {
			m.Status = "fetch: " + msg.Err.Error()
		}
		return m, m.loadRecord()

	case StatusMsg:
		m.Status = string(msg)
		return m, nil

	case expireMsg:
		if msg.gen != m.highlightGen {
			return m, nil
		}
		m.Page.ClearHighlight()
		m.refreshView()
		return m, nil
	}

	return m, nil
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.ToggleHelp):
		m.ShowHelp = !m.ShowHelp
		return m, nil

	case key.Matches(msg, m.Keys.Down):
		if m.InFeatures {
			if m.FeatureCursor < len(features.All())-1 {
				m.FeatureCursor++
			}
		} else if m.Cursor < len(m.Current.Entries)-1 {
			m.Cursor++
		}
		return m, nil

	case key.Matches(msg, m.Keys.Up):
		if m.InFeatures {
			if m.FeatureCursor > 0 {
				m.FeatureCursor--
			}
		} else if m.Cursor > 0 {
			m.Cursor--
		}
		return m, nil

	case key.Matches(msg, m.Keys.Back):
		m.InFeatures = false
		return m, nil

	case key.Matches(msg, m.Keys.Toggle):
		if m.InFeatures {
			f := features.All()[m.FeatureCursor]
			return m.toggle(f, !m.Current.Features.Get(f))
		}
		e, ok := m.selected()
		switch {
		case !ok:
			return m, nil
		case e.Item == menu.ItemMoreFeatures:
			m.InFeatures = true
			m.FeatureCursor = 0
			return m, nil
		case e.Feature.Valid():
			return m.toggle(e.Feature, !e.Enabled)
		}
		return m, nil

	case key.Matches(msg, m.Keys.Dismiss):
		f := m.focusedFeature()
		if !f.Valid() {
			return m, nil
		}
		if err := m.DB.ClearFeatureError(m.WorkspaceID, f); err != nil {
			m.Status = err.Error()
			return m, nil
		}
		return m, m.loadRecord()

	case key.Matches(msg, m.Keys.Offline):
		change := m.Page.SetOffline(!m.Page.Offline())
		m.refreshView()
		if m.Page.Offline() {
			m.Status = "offline"
			return m, nil
		}
		m.Status = "online"
		var cmds []tea.Cmd
		if change.Reconnected {
			cmds = append(cmds, m.flush())
			if m.Page.ShouldFetch() {
				cmds = append(cmds, m.fetch())
			}
		}
		if change.Result.HasHighlight() {
			cmds = append(cmds, m.scheduleExpire())
		}
		return m, tea.Batch(cmds...)

	case key.Matches(msg, m.Keys.Refresh):
		if m.Page.Offline() || !m.Page.ShouldFetch() {
			return m, m.loadRecord()
		}
		return m, m.fetch()

	case key.Matches(msg, m.Keys.Push):
		if m.Page.Offline() {
			m.Status = "offline: writes stay queued"
			return m, nil
		}
		return m, m.flush()
	}

	return m, nil
}

func (m Model) toggle(f features.Feature, enabled bool) (tea.Model, tea.Cmd) {
	if _, err := m.DB.ToggleFeature(m.WorkspaceID, f, enabled); err != nil {
		m.Status = err.Error()
		return m, nil
	}
	m.Status = "queued: " + f.Title()
	if m.Page.Offline() || m.Remote == nil {
		return m, m.loadRecord()
	}
	return m, tea.Sequence(m.loadRecord(), m.flush())
}

func (m Model) selected() (menu.Entry, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.Current.Entries) {
		return menu.Entry{}, false
	}
	return m.Current.Entries[m.Cursor], true
}

func (m Model) focusedFeature() features.Feature {
	if m.InFeatures {
		return features.All()[m.FeatureCursor]
	}
	e, _ := m.selected()
	return e.Feature
}

func (m *Model) refreshView() {
	m.Current = m.Page.View()
	if m.Cursor >= len(m.Current.Entries) {
		m.Cursor = max(len(m.Current.Entries)-1, 0)
	}
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

func (m Model) loadRecord() tea.Cmd {
	database, id := m.DB, m.WorkspaceID
	return func() tea.Msg {
		stored, draft, err := database.LoadRecord(id)
		return RecordMsg{Stored: stored, Draft: draft, Err: err}
	}
}

// fetch refetches the record. The accounting sync indicator is held back
// until the fetch settles.
func (m Model) fetch() tea.Cmd {
	if m.Remote == nil {
		return nil
	}
	m.Page.SetSyncInProgress(true)
	database, remote, id, timeout := m.DB, m.Remote, m.WorkspaceID, m.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ws, err := remote.FetchWorkspace(ctx, id)
		if err != nil {
			return FetchedMsg{Err: err}
		}
		_, err = database.MergeFetched(ws)
		return FetchedMsg{Err: err}
	}
}

func (m Model) flush() tea.Cmd {
	if m.Remote == nil {
		return nil
	}
	database, remote, id, timeout := m.DB, m.Remote, m.WorkspaceID, m.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := outbox.Flush(ctx, database, remote, id)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		return FlushedMsg{Result: res, Err: err}
	}
}

// scheduleTick returns a command that sends a TickMsg after the refresh interval
func (m Model) scheduleTick() tea.Cmd {
	if m.RefreshInterval <= 0 {
		return nil
	}
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m *Model) scheduleExpire() tea.Cmd {
	m.highlightGen++
	gen := m.highlightGen
	return tea.Tick(m.HighlightTTL, func(time.Time) tea.Msg { return expireMsg{gen: gen} })
}
