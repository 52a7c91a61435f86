package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"hostkit/internal/provision"
)

// StepSpinner renders a single status line for work that has no per-tool
// table, such as rebuilding the python environment. It counts steps as they
// start and shows the elapsed time of the current one.
type StepSpinner struct {
	w       io.Writer
	mu      sync.Mutex
	label   string
	step    string
	count   int
	started time.Time
	done    chan struct{}
	exited  chan struct{}
	stopped bool
}

// NewStepSpinner starts redrawing the status line on w every 100ms.
func NewStepSpinner(w io.Writer, label string) *StepSpinner {
	s := &StepSpinner{
		w:       w,
		label:   label,
		started: time.Now(),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go s.loop()
	return s
}

// StepStarted replaces the current step and restarts its timer.
func (s *StepSpinner) StepStarted(step string) {
	s.mu.Lock()
	s.step = step
	s.count++
	s.started = time.Now()
	s.mu.Unlock()
}

func (s *StepSpinner) ToolStarted(id string)                { s.StepStarted(id) }
func (s *StepSpinner) PhaseChanged(string, provision.Phase) {}
func (s *StepSpinner) ToolFinished(string, error)           {}

// Stop clears the status line. It is safe to call more than once.
func (s *StepSpinner) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.done)
	<-s.exited
	fmt.Fprint(s.w, "\r\033[K")
}

func (s *StepSpinner) line(tick int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := spinnerFrames[tick%len(spinnerFrames)]
	if s.step == "" {
		return fmt.Sprintf("%s %s", frame, s.label)
	}
	return fmt.Sprintf("%s %s [%d] %s (%s)", frame, s.label, s.count, s.step, formatElapsed(time.Since(s.started)))
}

func (s *StepSpinner) loop() {
	defer close(s.exited)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for tick := 0; ; tick++ {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			fmt.Fprintf(s.w, "\r\033[K%s", s.line(tick))
		}
	}
}

var (
	_ provision.Reporter     = (*StepSpinner)(nil)
	_ provision.StepReporter = (*StepSpinner)(nil)
)

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
