// Package output provides styled terminal output helpers (success, error,
// warning, menu formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/wsmenu/internal/menu"
	"github.com/marcus/wsmenu/internal/page"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	subtleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214"))
	badgeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
)

const (
	// HighlightMarker prefixes the highlighted entry in plain output.
	HighlightMarker = "»"
	// ErrorMarker follows an entry whose indicator is raised.
	ErrorMarker = "●"
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeDatabaseError = "database_error"
	ErrCodeUnavailable   = "unavailable"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// FormatEntry renders one menu entry on a single line. Plain mode drops
// colors so the output is stable in pipes and tests.
func FormatEntry(e menu.Entry, plain bool) string {
	prefix := "  "
	if e.Highlighted {
		prefix = HighlightMarker + " "
	}

	title := e.Title
	if !plain {
		if e.Highlighted {
			title = highlightStyle.Render(title)
		} else {
			title = titleStyle.Render(title)
		}
	}

	var parts []string
	parts = append(parts, prefix+title)
	if e.Badge != "" {
		badge := e.Badge
		if !plain {
			badge = badgeStyle.Render(badge)
		}
		parts = append(parts, badge)
	}
	if e.HasError() {
		marker := ErrorMarker
		if !plain {
			marker = errorStyle.Render(marker)
		}
		parts = append(parts, marker)
	}
	return strings.Join(parts, "  ")
}

// FormatMenu renders the whole view: a header line, an offline banner when
// needed and one line per entry.
func FormatMenu(v page.View, plain bool) string {
	var sb strings.Builder

	header := "(no workspace)"
	if v.Workspace != nil {
		header = v.Workspace.Name
		if header == "" {
			header = v.Workspace.ID
		}
		if v.IsDraft {
			header += " (draft)"
		}
	}
	if !plain {
		header = titleStyle.Render(header)
	}
	sb.WriteString(header)
	sb.WriteString("\n")

	if v.Offline {
		banner := "offline: showing local state"
		if !plain {
			banner = warningStyle.Render(banner)
		}
		sb.WriteString(banner)
		sb.WriteString("\n")
	}

	for _, e := range v.Entries {
		sb.WriteString(FormatEntry(e, plain))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// Subtle renders s in the dim style.
func Subtle(s string) string {
	return subtleStyle.Render(s)
}
