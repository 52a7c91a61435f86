package tui

import (
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"hostkit/internal/provision"
)

// Column headers shared by the interactive and plain reporters.
const (
	ColTool   = "TOOL"
	ColStatus = "STATUS"
	ColDetail = "DETAIL"
)

// ToolColumns is the column layout of the provisioning table.
func ToolColumns() []Column {
	return []Column{
		{Header: ColTool, Width: 16},
		{Header: ColStatus, Width: 15},
		{Header: ColDetail, Width: 48},
	}
}

// NewToolModel returns a progress model with one pending row per tool id.
func NewToolModel(title string, ids []string) ProgressModel {
	m := NewProgressModel(title, ToolColumns())
	for _, id := range ids {
		m.AddRow(id, []string{id, string(provision.PhasePending), ""})
	}
	return m
}

// Reporter turns orchestrator events into row updates for ProgressModel.
type Reporter struct {
	send func(tea.Msg)
}

// NewReporter returns a Reporter that delivers updates through send.
func NewReporter(send func(tea.Msg)) *Reporter {
	return &Reporter{send: send}
}

func (r *Reporter) ToolStarted(string) {}

func (r *Reporter) PhaseChanged(id string, phase provision.Phase) {
	if phase == provision.PhaseFailed {
		return
	}
	r.send(RowUpdateMsg{Key: id, Fields: map[string]string{ColStatus: string(phase), ColDetail: ""}})
}

func (r *Reporter) ToolFinished(id string, err error) {
	if err == nil {
		return
	}
	r.send(RowUpdateMsg{Key: id, Fields: map[string]string{
		ColStatus: string(provision.PhaseFailed),
		ColDetail: err.Error(),
	}})
}

var _ provision.Reporter = (*Reporter)(nil)

// LineReporter writes one line per phase change. It is used when the
// output is not a terminal.
type LineReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineReporter returns a LineReporter writing to w.
func NewLineReporter(w io.Writer) *LineReporter {
	return &LineReporter{w: w}
}

func (r *LineReporter) ToolStarted(string) {}

func (r *LineReporter) PhaseChanged(id string, phase provision.Phase) {
	switch phase {
	case provision.PhasePending, provision.PhaseFailed:
		return
	}
	r.printf("%-16s %s\n", id, phase)
}

func (r *LineReporter) ToolFinished(id string, err error) {
	if err != nil {
		r.printf("%-16s %s: %v\n", id, provision.PhaseFailed, err)
	}
}

func (r *LineReporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, format, args...)
}

var _ provision.Reporter = (*LineReporter)(nil)
