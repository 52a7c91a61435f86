package provision

import (
	"errors"
	"fmt"
)

var (
	// ErrLocked is returned when another process holds the installation lock.
	ErrLocked = errors.New("installation is locked by another hostkit process")
	// ErrInterpreterMissing is returned when no usable Python interpreter
	// exists for the isolated environment.
	ErrInterpreterMissing = errors.New("python interpreter not available")
)

// UnknownToolError reports a tool id that cannot be installed on this
// platform because the registry or the manifest does not know it.
type UnknownToolError struct {
	ID       string
	Platform string
	// Registered is false when the id is not part of the tool registry at all.
	Registered bool
}

func (e *UnknownToolError) Error() string {
	if !e.Registered {
		return fmt.Sprintf("unknown tool %q", e.ID)
	}
	return fmt.Sprintf("unknown tool %q: manifest has no entry for %s", e.ID, e.Platform)
}

// PhaseError ties a failure to the tool and phase it happened in.
type PhaseError struct {
	Tool  string
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Tool, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
