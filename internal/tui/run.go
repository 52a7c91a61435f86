package tui

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// RunWithWork creates a bubbletea program, launches workFn in a goroutine,
// and blocks until both have finished. workFn receives the program's Send.
// If the user quits the program first, cancel is called so workFn can
// unwind. The error returned by workFn is reported after the final frame.
func RunWithWork(out io.Writer, model ProgressModel, cancel context.CancelFunc, workFn func(send func(tea.Msg)) error) error {
	p := tea.NewProgram(model, tea.WithOutput(out))

	var workErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Let bubbletea start its event loop and render the initial frame.
		time.Sleep(50 * time.Millisecond)
		workErr = workFn(p.Send)
		p.Send(WorkDoneMsg{})
	}()

	finalModel, err := p.Run()
	if cancel != nil {
		cancel()
	}
	<-done
	if err != nil {
		return err
	}
	if m, ok := finalModel.(ProgressModel); ok && m.Err() != nil {
		return m.Err()
	}
	return workErr
}
