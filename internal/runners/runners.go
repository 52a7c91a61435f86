// Package runners describes debug-probe utilities as data and drives them
// through one generic detector and argument builder.
package runners

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"text/template"

	"hostkit/internal/proc"
)

// Capability is an operation a probe utility supports.
type Capability string

const (
	Flash Capability = "flash"
	Debug Capability = "debug"
)

// Target carries the values substituted into argument templates.
type Target struct {
	Device    string
	Interface string
	Speed     string
	File      string
	Serial    string
	GDBPort   int
}

// Spec is one debug-probe utility.
type Spec struct {
	ID    string
	Label string
	// Executables maps GOOS (or "*") to the executable name.
	Executables    map[string]string
	VersionArgs    []string
	VersionPattern *regexp.Regexp
	// Args maps each supported capability to an argument template. Each line
	// of the rendered template is one argument; blank lines are dropped.
	Args map[Capability]string
}

// Supports reports whether the utility implements c.
func (s Spec) Supports(c Capability) bool {
	_, ok := s.Args[c]
	return ok
}

// Capabilities lists the supported capabilities in a stable order.
func (s Spec) Capabilities() []Capability {
	var out []Capability
	for _, c := range []Capability{Flash, Debug} {
		if s.Supports(c) {
			out = append(out, c)
		}
	}
	return out
}

// Executable returns the executable name for goos.
func (s Spec) Executable(goos string) string {
	if exe, ok := s.Executables[goos]; ok {
		return exe
	}
	return s.Executables["*"]
}

// Status is the detection result for one utility.
type Status struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Detector locates utilities. LookPath defaults to exec.LookPath.
type Detector struct {
	Runner   proc.Runner
	LookPath func(string) (string, error)
	GOOS     string
}

// Detect looks for spec in searchDirs first and then on PATH, and reads its
// version when found.
func (d Detector) Detect(ctx context.Context, spec Spec, searchDirs []string) Status {
	st := Status{ID: spec.ID, Label: spec.Label}
	goos := d.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	exe := spec.Executable(goos)
	if exe == "" {
		st.Error = "not available on " + goos
		return st
	}

	for _, dir := range searchDirs {
		candidate := filepath.Join(dir, exe)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			st.Path = candidate
			break
		}
	}
	if st.Path == "" {
		lookPath := d.LookPath
		if lookPath == nil {
			lookPath = exec.LookPath
		}
		path, err := lookPath(exe)
		if err != nil {
			return st
		}
		st.Path = path
	}
	st.Found = true

	if len(spec.VersionArgs) == 0 || spec.VersionPattern == nil {
		return st
	}
	res, err := d.Runner.Run(ctx, st.Path, spec.VersionArgs, proc.Options{})
	if match := spec.VersionPattern.FindStringSubmatch(res.Combined()); len(match) > 1 {
		st.Version = match[1]
	} else if err != nil {
		st.Error = err.Error()
	}
	return st
}

// DetectAll runs Detect for each spec.
func (d Detector) DetectAll(ctx context.Context, specs []Spec, searchDirs []string) []Status {
	out := make([]Status, 0, len(specs))
	for _, spec := range specs {
		out = append(out, d.Detect(ctx, spec, searchDirs))
	}
	return out
}

// Args renders the argument list for capability c against target.
func Args(spec Spec, c Capability, target Target) ([]string, error) {
	text, ok := spec.Args[c]
	if !ok {
		return nil, fmt.Errorf("%s does not support %s", spec.ID, c)
	}
	tmpl, err := template.New(spec.ID + "-" + string(c)).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%s %s template: %w", spec.ID, c, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, target); err != nil {
		return nil, fmt.Errorf("%s %s args: %w", spec.ID, c, err)
	}

	var args []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			args = append(args, line)
		}
	}
	return args, nil
}
