package tools

import (
	"path/filepath"
	"regexp"
)

// Hook names the post-extraction step applied to a tool.
type Hook string

const (
	HookNone        Hook = ""
	HookSevenZip    Hook = "seven-zip"
	HookFlatten     Hook = "flatten"
	HookZstd        Hook = "zstd"
	HookInterpreter Hook = "interpreter"
)

// anyOS keys the executable used on every platform without its own entry.
const anyOS = "*"

// ToolSpec describes one provisioned tool.
type ToolSpec struct {
	ID string
	// Dir is the directory under the tools root. It usually equals ID.
	Dir string
	// Executable maps GOOS (or "*") to a slash-separated path inside Dir.
	Executable     map[string]string
	VersionArgs    []string
	VersionPattern *regexp.Regexp
	Minimum        string
	// PathDirs are the directories inside Dir added to the search path, in
	// precedence order. "" is Dir itself.
	PathDirs []string
	Hook     Hook
}

// ExecutableFor returns the executable path inside Dir for goos.
func (s ToolSpec) ExecutableFor(goos string) string {
	if exe, ok := s.Executable[goos]; ok {
		return exe
	}
	return s.Executable[anyOS]
}

// ExecutablePath returns the absolute executable location under toolsDir.
func (s ToolSpec) ExecutablePath(toolsDir, goos string) string {
	return filepath.Join(toolsDir, s.Dir, filepath.FromSlash(s.ExecutableFor(goos)))
}

var registry = []ToolSpec{
	{
		ID:             "7zip",
		Dir:            "7zip",
		Executable:     map[string]string{"windows": "7zr.exe", anyOS: "7zz"},
		VersionArgs:    []string{"i"},
		VersionPattern: regexp.MustCompile(`7-Zip(?: \([a-z]\))? ([0-9][0-9.]*)`),
		PathDirs:       []string{""},
		Hook:           HookSevenZip,
	},
	{
		ID:             "cmake",
		Dir:            "cmake",
		Executable:     map[string]string{"windows": "bin/cmake.exe", anyOS: "bin/cmake"},
		VersionArgs:    []string{"--version"},
		VersionPattern: regexp.MustCompile(`cmake version (\S+)`),
		Minimum:        "3.20.5",
		PathDirs:       []string{"bin"},
		Hook:           HookFlatten,
	},
	{
		ID:             "ninja",
		Dir:            "ninja",
		Executable:     map[string]string{"windows": "ninja.exe", anyOS: "ninja"},
		VersionArgs:    []string{"--version"},
		VersionPattern: regexp.MustCompile(`(?m)^(\d+\.\d+\.\d+)`),
		PathDirs:       []string{""},
	},
	{
		ID:             "zstd",
		Dir:            "zstd",
		Executable:     map[string]string{"windows": "zstd.exe", anyOS: "zstd"},
		VersionArgs:    []string{"-V"},
		VersionPattern: regexp.MustCompile(`v(\d+\.\d+\.\d+)`),
		PathDirs:       []string{""},
		Hook:           HookZstd,
	},
	{
		ID:             "gperf",
		Dir:            "gperf",
		Executable:     map[string]string{"windows": "bin/gperf.exe", anyOS: "bin/gperf"},
		VersionArgs:    []string{"--version"},
		VersionPattern: regexp.MustCompile(`GNU gperf (\S+)`),
		PathDirs:       []string{"bin"},
	},
	{
		ID:             "dtc",
		Dir:            "dtc",
		Executable:     map[string]string{"windows": "usr/bin/dtc.exe", anyOS: "usr/bin/dtc"},
		VersionArgs:    []string{"--version"},
		VersionPattern: regexp.MustCompile(`Version: DTC (\S+)`),
		Minimum:        "1.4.6",
		PathDirs:       []string{"usr/bin"},
	},
	{
		ID:             "wget",
		Dir:            "wget",
		Executable:     map[string]string{"windows": "wget.exe", anyOS: "wget"},
		VersionArgs:    []string{"--version"},
		VersionPattern: regexp.MustCompile(`GNU Wget (\S+)`),
		PathDirs:       []string{""},
	},
	{
		ID:             "git",
		Dir:            "git",
		Executable:     map[string]string{"windows": "cmd/git.exe", anyOS: "bin/git"},
		VersionArgs:    []string{"--version"},
		VersionPattern: regexp.MustCompile(`git version (\S+)`),
		PathDirs:       []string{"cmd", "bin", "usr/bin"},
	},
	{
		// The portable interpreter always lives in tools/python.
		ID:             "python-portable",
		Dir:            "python",
		Executable:     map[string]string{"windows": "python.exe", anyOS: "bin/python3"},
		VersionArgs:    []string{"--version"},
		VersionPattern: regexp.MustCompile(`Python (\S+)`),
		Minimum:        "3.10",
		PathDirs:       []string{"", "Scripts", "bin"},
		Hook:           HookInterpreter,
	},
}

// Order returns the tools in installation order.
func Order() []ToolSpec {
	return append([]ToolSpec(nil), registry...)
}

// IDs returns the tool ids in installation order.
func IDs() []string {
	ids := make([]string, len(registry))
	for i, spec := range registry {
		ids[i] = spec.ID
	}
	return ids
}

// Lookup returns the ToolSpec registered under id.
func Lookup(id string) (ToolSpec, bool) {
	for _, spec := range registry {
		if spec.ID == id {
			return spec, true
		}
	}
	return ToolSpec{}, false
}

// Select returns the entries of specs named by ids, keeping the order of
// specs. An empty ids selects everything. Ids missing from specs are returned
// separately, in the order given.
func Select(specs []ToolSpec, ids []string) ([]ToolSpec, []string) {
	if len(ids) == 0 {
		return append([]ToolSpec(nil), specs...), nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var selected []ToolSpec
	for _, spec := range specs {
		if want[spec.ID] {
			selected = append(selected, spec)
			delete(want, spec.ID)
		}
	}
	var unknown []string
	for _, id := range ids {
		if want[id] {
			unknown = append(unknown, id)
			delete(want, id)
		}
	}
	return selected, unknown
}
