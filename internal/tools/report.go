package tools

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Status returns the short state label for rec.
func (rec VersionRecord) Status() string {
	switch {
	case !rec.Installed:
		return "missing"
	case rec.Satisfied:
		return "ok"
	default:
		return "error"
	}
}

// RenderTable writes the check report for records. Status cells are colored
// when color is true.
func RenderTable(w io.Writer, records []VersionRecord, color bool) error {
	headers := []string{"Tool", "Status", "Version", "Minimum", "Detail"}
	table := tablewriter.NewWriter(w)
	table.Options(
		tablewriter.WithHeader(headers),
		tablewriter.WithRendition(
			tw.Rendition{
				Borders: tw.Border{
					Left:   tw.State(1),
					Top:    tw.State(1),
					Right:  tw.State(1),
					Bottom: tw.State(1),
				},
			},
		),
		tablewriter.WithAlignment(tw.MakeAlign(len(headers), tw.AlignLeft)),
	)

	for _, rec := range records {
		status := rec.Status()
		if color {
			status = styleFor(status).Render(status)
		}
		detail := rec.Path
		if rec.Error != "" {
			detail = rec.Error
		}
		if len(rec.Notes) > 0 {
			detail = strings.TrimSpace(detail + " (" + strings.Join(rec.Notes, "; ") + ")")
		}
		if err := table.Append([]string{rec.ToolID, status, rec.Version, rec.Minimum, detail}); err != nil {
			return err
		}
	}
	return table.Render()
}

func styleFor(status string) lipgloss.Style {
	switch status {
	case "ok":
		return okStyle
	case "missing":
		return missingStyle
	default:
		return errorStyle
	}
}
