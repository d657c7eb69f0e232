package menuview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/menu"
)

var (
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	subtleStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	offlineStyle   = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	indicatorStyle = lipgloss.NewStyle().Foreground(errorColor)
	badgeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	cursorStyle    = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	flashStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(warningColor)
	disabledStyle  = lipgloss.NewStyle().Foreground(mutedColor).Strikethrough(true)
)

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Err != nil {
		return fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.Err)
	}
	if m.Current.Workspace == nil {
		return "Loading..."
	}
	if m.ShowHelp {
		return m.renderHelp()
	}

	width := m.Width
	if width == 0 {
		width = 60
	}
	inner := width - 4

	var s strings.Builder
	title := m.Current.Workspace.Name
	if title == "" {
		title = m.Current.Workspace.ID
	}
	if m.Current.IsDraft {
		title += " (draft)"
	}
	s.WriteString(headerStyle.Render(ansi.Truncate(title, max(inner-2, 1), "…")))
	s.WriteString("\n")
	if m.Current.Offline {
		s.WriteString(offlineStyle.Render("OFFLINE"))
		s.WriteString(subtleStyle.Render("  local changes are queued"))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	if m.InFeatures {
		s.WriteString(m.renderFeatures(inner))
	} else {
		for i, e := range m.Current.Entries {
			s.WriteString(m.renderEntry(e, i == m.Cursor, inner))
			s.WriteString("\n")
		}
	}

	body := strings.TrimRight(s.String(), "\n")
	if width >= MinWidth {
		body = frameStyle.Width(inner).Render(body)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderFooter(width))
}

// renderEntry renders one row; the line is cut to width before styling.
func (m Model) renderEntry(e menu.Entry, selected bool, width int) string {
	prefix := "  "
	if selected {
		prefix = cursorStyle.Render("> ")
	}

	suffix := ""
	if e.Badge != "" {
		suffix += "  " + badgeStyle.Render(e.Badge)
	}
	if e.HasError() {
		suffix += "  " + indicatorStyle.Render("●")
	}

	room := width - 2 - ansi.StringWidth(suffix)
	title := ansi.Truncate(e.Title, max(room, 1), "…")
	if e.Highlighted {
		title = flashStyle.Render(title)
	}
	return prefix + title + suffix
}

// renderFeatures lists every feature with its displayed state, pending
// marker and latest rejection.
func (m Model) renderFeatures(width int) string {
	var s strings.Builder
	ws := m.Current.Workspace
	s.WriteString(subtleStyle.Render("More features"))
	s.WriteString("\n")
	for i, f := range features.All() {
		prefix := "  "
		if i == m.FeatureCursor {
			prefix = cursorStyle.Render("> ")
		}
		state := "[x] "
		title := f.Title()
		if !m.Current.Features.Get(f) {
			state = "[ ] "
			title = disabledStyle.Render(title)
		}
		suffix := ""
		if ws.PendingFields.Has(f.Key()) {
			suffix += "  " + subtleStyle.Render("pending")
		}
		if len(ws.ErrorFields[f.Key()]) > 0 {
			suffix += "  " + indicatorStyle.Render("rejected")
		}
		line := prefix + state + title + suffix
		s.WriteString(ansi.Truncate(line, max(width, 1), "…"))
		s.WriteString("\n")
	}
	return s.String()
}

func (m Model) renderFooter(width int) string {
	line := m.Status
	hint := "space:toggle o:offline r:refetch p:push ?:help q:quit"
	if line == "" {
		line = hint
	}
	return subtleStyle.Render(ansi.Truncate(line, max(width, 1), "…"))
}

func (m Model) renderHelp() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Keys"))
	s.WriteString("\n\n")
	for _, b := range m.Keys.bindings() {
		h := b.Help()
		fmt.Fprintf(&s, "  %-8s %s\n", h.Key, h.Desc)
	}
	s.WriteString("\n")
	s.WriteString(subtleStyle.Render("press ? to close"))
	return s.String()
}
