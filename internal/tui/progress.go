package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	tickInterval = 150 * time.Millisecond
	marqueeGap   = "   "
	columnGap    = "  "
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type tickMsg time.Time

// Column is one column of the provisioning table.
type Column struct {
	Header string
	Width  int
}

// Row is one tool's line in the table. Started is set when the row leaves
// pending; Elapsed is frozen once it reaches a terminal status.
type Row struct {
	Key     string
	Fields  []string
	Started time.Time
	Elapsed time.Duration
}

func (r *Row) transition(status string, now time.Time) {
	switch {
	case status == "pending":
	case terminalStatuses[status]:
		if !r.Started.IsZero() && r.Elapsed == 0 {
			r.Elapsed = now.Sub(r.Started)
		}
	case r.Started.IsZero():
		r.Started = now
	}
}

func (r Row) timing(now time.Time) string {
	switch {
	case r.Elapsed > 0:
		return formatElapsed(r.Elapsed)
	case !r.Started.IsZero():
		return formatElapsed(now.Sub(r.Started))
	}
	return ""
}

// ProgressModel renders one row per tool, the time each has been working,
// and a spinner footer that turns into a summary once the run ends.
type ProgressModel struct {
	columns   []Column
	widths    []int
	rows      []Row
	rowIndex  map[string]int
	title     string
	statusCol int
	done      bool
	err       error
	tick      int
	now       func() time.Time
}

// NewProgressModel returns an empty model. The column whose header is
// STATUS drives styling, counting and timing.
func NewProgressModel(title string, columns []Column) ProgressModel {
	m := ProgressModel{
		columns:   columns,
		widths:    make([]int, len(columns)),
		rowIndex:  make(map[string]int),
		title:     title,
		statusCol: -1,
		now:       time.Now,
	}
	for i, c := range columns {
		m.widths[i] = max(len(c.Header), c.Width)
		if m.statusCol < 0 && strings.EqualFold(c.Header, ColStatus) {
			m.statusCol = i
		}
	}
	return m
}

// AddRow appends a row before the program starts.
func (m *ProgressModel) AddRow(key string, fields []string) {
	padded := make([]string, len(m.columns))
	copy(padded, fields)
	m.rowIndex[key] = len(m.rows)
	m.rows = append(m.rows, Row{Key: key, Fields: padded})
}

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m ProgressModel) Init() tea.Cmd {
	return scheduleTick()
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tick++
		if m.done {
			return m, nil
		}
		return m, scheduleTick()
	case RowUpdateMsg:
		m.applyRowUpdate(msg)
		return m, nil
	case WorkDoneMsg:
		m.done = true
		return m, tea.Quit
	case ErrorMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if s := msg.String(); s == "ctrl+c" || s == "q" {
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *ProgressModel) applyRowUpdate(msg RowUpdateMsg) {
	idx, ok := m.rowIndex[msg.Key]
	if !ok {
		return
	}
	row := &m.rows[idx]
	for j, col := range m.columns {
		if val, exists := msg.Fields[col.Header]; exists {
			row.Fields[j] = val
			if j == m.statusCol {
				row.transition(strings.TrimSpace(val), m.now())
			}
		}
	}
}

func (m ProgressModel) View() string {
	if m.done && m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}

	var b strings.Builder
	header := make([]string, len(m.columns))
	for i, col := range m.columns {
		header[i] = HeaderStyle.Render(pad(col.Header, m.widths[i]))
	}
	b.WriteString(strings.Join(header, columnGap))
	b.WriteByte('\n')

	now := m.now()
	for _, row := range m.rows {
		b.WriteString(m.renderRow(row))
		if t := row.timing(now); t != "" {
			b.WriteString(columnGap)
			b.WriteString(t)
		}
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.WriteString(m.footer())
	b.WriteByte('\n')
	return b.String()
}

func (m ProgressModel) renderRow(row Row) string {
	parts := make([]string, len(m.columns))
	for i := range m.columns {
		val := row.Fields[i]
		width := m.widths[i]
		if !m.done && len(strings.TrimSpace(val)) > width {
			val = marqueeText(val, width, m.tick)
		} else {
			val = TruncateWithEllipsis(val, width)
		}
		if i == m.statusCol {
			parts[i] = StatusStyle(val).Render(pad(val, width))
		} else {
			parts[i] = pad(val, width)
		}
	}
	return strings.Join(parts, columnGap)
}

func (m ProgressModel) footer() string {
	if m.done {
		return m.summary()
	}
	finished, total := m.progressCounts()
	title := m.title
	if title == "" {
		title = "Provisioning"
	}
	return fmt.Sprintf("%s %s %d/%d...", spinnerFrames[m.tick%len(spinnerFrames)], title, finished, total)
}

// summary lists how many rows ended in each terminal status, in a fixed order.
func (m ProgressModel) summary() string {
	counts := map[string]int{}
	for _, row := range m.rows {
		counts[m.status(row)]++
	}
	var parts []string
	for _, status := range []string{"done", "skipped", "failed"} {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	if left := len(m.rows) - counts["done"] - counts["skipped"] - counts["failed"]; left > 0 {
		parts = append(parts, fmt.Sprintf("%d not started", left))
	}
	if len(parts) == 0 {
		return "nothing to do"
	}
	return strings.Join(parts, ", ")
}

func (m ProgressModel) status(row Row) string {
	if m.statusCol < 0 {
		return ""
	}
	return strings.TrimSpace(row.Fields[m.statusCol])
}

// progressCounts returns the number of rows in a terminal status and the
// total number of rows.
func (m ProgressModel) progressCounts() (int, int) {
	finished := 0
	for _, row := range m.rows {
		if terminalStatuses[m.status(row)] {
			finished++
		}
	}
	return finished, len(m.rows)
}

func (m ProgressModel) Done() bool { return m.done }

func (m ProgressModel) Err() error { return m.err }

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// marqueeText slides a width-wide window over text, one byte per tick.
func marqueeText(text string, width, tick int) string {
	text = strings.TrimSpace(text)
	if width <= 0 {
		return ""
	}
	if len(text) <= width {
		return text
	}
	cycle := text + marqueeGap
	offset := tick % len(cycle)
	out := make([]byte, width)
	for i := range out {
		out[i] = cycle[(offset+i)%len(cycle)]
	}
	return string(out)
}

// NonEmptyOrDash returns "-" for blank values.
func NonEmptyOrDash(value string) string {
	if value = strings.TrimSpace(value); value == "" {
		return "-"
	}
	return value
}

// TruncateWithEllipsis shortens value to max bytes, ending in "..." when
// there is room for it.
func TruncateWithEllipsis(value string, max int) string {
	if max <= 0 {
		return ""
	}
	value = strings.TrimSpace(value)
	switch {
	case len(value) <= max:
		return value
	case max <= 3:
		return value[:max]
	}
	return value[:max-3] + "..."
}
