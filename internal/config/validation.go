package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Interpreter {
	case InterpreterAuto, InterpreterPortable, InterpreterSystem:
	default:
		errs = append(errs, fmt.Errorf("interpreter %q must be one of auto, portable, system", c.Interpreter))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout must be positive (got %s)", c.Fetch.Timeout))
	}
	if c.Fetch.Attempts <= 0 {
		errs = append(errs, fmt.Errorf("fetch.attempts must be positive (got %d)", c.Fetch.Attempts))
	}
	if c.Exec.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("exec.timeout must be positive (got %s)", c.Exec.Timeout))
	}
	if c.LockTimeout < 0 {
		errs = append(errs, fmt.Errorf("lock_timeout must not be negative (got %s)", c.LockTimeout))
	}
	for i, fx := range c.Fixups {
		if strings.TrimSpace(fx.From) == "" || strings.TrimSpace(fx.To) == "" {
			errs = append(errs, fmt.Errorf("fixups[%d]: from and to are required", i))
		}
		if len(fx.Files) == 0 {
			errs = append(errs, fmt.Errorf("fixups[%d]: files must not be empty", i))
		}
	}
	for i, req := range c.PyEnv.Requirements {
		if !strings.HasPrefix(req, "http://") && !strings.HasPrefix(req, "https://") {
			errs = append(errs, fmt.Errorf("pyenv.requirements[%d]: %q is not an http(s) URL", i, req))
		}
	}
	return errors.Join(errs...)
}
