package tui

import "github.com/charmbracelet/lipgloss"

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	statusStyles = map[string]lipgloss.Style{
		// Terminal states
		"done":    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"ok":      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"skipped": lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Faint(true),

		// Active states
		"downloading":     lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"verifying":       lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"extracting":      lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"post-processing": lipgloss.NewStyle().Foreground(lipgloss.Color("4")),

		// Warning
		"missing": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),

		// Error
		"failed": lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		"error":  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),

		// Pending
		"pending": lipgloss.NewStyle().Faint(true),
	}

	terminalStatuses = map[string]bool{"done": true, "skipped": true, "failed": true}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
