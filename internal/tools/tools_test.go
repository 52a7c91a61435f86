package tools

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"hostkit/internal/proc"
	"hostkit/internal/proc/proctest"
)

func TestOrder(t *testing.T) {
	want := []string{"7zip", "cmake", "ninja", "zstd", "gperf", "dtc", "wget", "git", "python-portable"}
	if diff := cmp.Diff(want, IDs()); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	py, ok := Lookup("python-portable")
	if !ok || py.Dir != "python" {
		t.Fatalf("python-portable should live in tools/python, got %+v", py)
	}
}

func TestSelect(t *testing.T) {
	specs, unknown := Select(Order(), []string{"git", "cmake", "nope", "git"})
	if len(specs) != 2 || specs[0].ID != "cmake" || specs[1].ID != "git" {
		t.Fatalf("unexpected selection %+v", specs)
	}
	if diff := cmp.Diff([]string{"nope"}, unknown); diff != "" {
		t.Fatalf("unknown (-want +got):\n%s", diff)
	}
	if all, unknown := Select(Order(), nil); len(all) != len(Order()) || unknown != nil {
		t.Fatalf("empty selection should return every spec, got %d and %v", len(all), unknown)
	}
}

func TestMeetsMinimum(t *testing.T) {
	cases := []struct {
		version, minimum string
		want             bool
	}{
		{"3.28.1", "3.20.5", true},
		{"3.20.5", "3.20.5", true},
		{"3.20", "3.20.5", false},
		{"1.7.0", "1.4.6", true},
		{"3.9.18", "3.10", false},
		{"", "1.0", false},
		{"anything", "", true},
	}
	for _, tc := range cases {
		if got := MeetsMinimum(tc.version, tc.minimum); got != tc.want {
			t.Errorf("MeetsMinimum(%q, %q) = %v, want %v", tc.version, tc.minimum, got, tc.want)
		}
	}
}

func TestVersionPatterns(t *testing.T) {
	cases := map[string]string{
		"7zip":            "\n7-Zip (r) 23.01 (x64) : Copyright (c) 1999-2023 Igor Pavlov : 2023-06-20\n",
		"cmake":           "cmake version 3.28.1\n\nCMake suite maintained and supported by Kitware (kitware.com/cmake).\n",
		"ninja":           "1.11.1\n",
		"zstd":            "*** Zstandard CLI (64-bit) v1.5.5, by Yann Collet ***\n",
		"gperf":           "GNU gperf 3.1\nCopyright (C) 2017 Free Software Foundation, Inc.\n",
		"dtc":             "Version: DTC 1.7.0\n",
		"wget":            "GNU Wget 1.21.4 built on mingw32.\n",
		"git":             "git version 2.43.0.windows.1\n",
		"python-portable": "Python 3.11.5\n",
	}
	want := map[string]string{
		"7zip": "23.01", "cmake": "3.28.1", "ninja": "1.11.1", "zstd": "1.5.5", "gperf": "3.1",
		"dtc": "1.7.0", "wget": "1.21.4", "git": "2.43.0.windows.1", "python-portable": "3.11.5",
	}
	for id, output := range cases {
		spec, _ := Lookup(id)
		if got := parseVersion(spec.VersionPattern, output); got != want[id] {
			t.Errorf("%s: parsed %q, want %q", id, got, want[id])
		}
	}
}

func installFake(t *testing.T, toolsDir string, spec ToolSpec, goos string) {
	t.Helper()
	path := spec.ExecutablePath(toolsDir, goos)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestProbeReportsMissingAndInstalled(t *testing.T) {
	toolsDir := t.TempDir()
	specs := Order()
	for _, spec := range specs {
		if spec.ID == "gperf" {
			continue
		}
		installFake(t, toolsDir, spec, "windows")
	}

	banners := map[string]string{
		"7zr.exe":   "7-Zip (r) 23.01",
		"cmake.exe": "cmake version 3.28.1",
		"ninja.exe": "1.11.1",
		"zstd.exe":  "v1.5.5",
		"dtc.exe":   "Version: DTC 1.7.0",
		"wget.exe":  "GNU Wget 1.21.4",
		"git.exe":   "git version 2.43.0",
	}
	runner := &proctest.Runner{Handler: func(call proctest.Call) (proc.Result, error) {
		if filepath.Base(call.Command) == "python.exe" {
			return proc.Result{Stderr: []byte("Python 3.9.1")}, nil
		}
		return proc.Result{Stdout: []byte(banners[filepath.Base(call.Command)])}, nil
	}}

	records := ProbePlatform(context.Background(), runner, toolsDir, specs, "windows")
	if len(records) != len(specs) {
		t.Fatalf("got %d records", len(records))
	}
	if diff := cmp.Diff([]string{"gperf"}, Missing(records)); diff != "" {
		t.Fatalf("missing (-want +got):\n%s", diff)
	}
	for i, rec := range records {
		if rec.ToolID != specs[i].ID {
			t.Fatalf("record %d out of order: %s", i, rec.ToolID)
		}
		switch rec.ToolID {
		case "gperf":
			if rec.Installed || rec.Status() != "missing" {
				t.Errorf("gperf should be missing: %+v", rec)
			}
		case "python-portable":
			if rec.Satisfied || !strings.Contains(rec.Error, "below minimum") {
				t.Errorf("python 3.9 should fail the minimum: %+v", rec)
			}
		default:
			if !rec.Installed || !rec.Satisfied {
				t.Errorf("%s should be satisfied: %+v", rec.ToolID, rec)
			}
		}
	}
	if len(runner.Calls()) != len(specs)-1 {
		t.Fatalf("expected %d version calls, got %d", len(specs)-1, len(runner.Calls()))
	}
}

func TestProbeRunFailure(t *testing.T) {
	toolsDir := t.TempDir()
	spec, _ := Lookup("ninja")
	installFake(t, toolsDir, spec, "linux")
	runner := &proctest.Runner{Handler: func(proctest.Call) (proc.Result, error) {
		return proc.Result{ExitCode: -1}, errors.New("exec format error")
	}}

	records := ProbePlatform(context.Background(), runner, toolsDir, []ToolSpec{spec}, "linux")
	rec := records[0]
	if !rec.Installed || rec.Satisfied || rec.Error != "exec format error" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestProbeMinimumOverride(t *testing.T) {
	toolsDir := t.TempDir()
	spec, _ := Lookup("cmake")
	installFake(t, toolsDir, spec, "linux")
	runner := &proctest.Runner{Handler: func(proctest.Call) (proc.Result, error) {
		return proc.Result{Stdout: []byte("cmake version 3.24.0")}, nil
	}}

	ctx := WithMinimums(context.Background(), map[string]string{"CMake": "3.28"})
	rec := ProbePlatform(ctx, runner, toolsDir, []ToolSpec{spec}, "linux")[0]
	if rec.Satisfied || rec.Minimum != "3.28" {
		t.Fatalf("override not applied: %+v", rec)
	}

	ctx = WithMinimums(context.Background(), map[string]string{"cmake": "3.0"})
	rec = ProbePlatform(ctx, runner, toolsDir, []ToolSpec{spec}, "linux")[0]
	if !rec.Satisfied || rec.Minimum != "3.20.5" || len(rec.Notes) != 1 {
		t.Fatalf("lower override should be ignored with a note: %+v", rec)
	}
}

func TestRenderTable(t *testing.T) {
	records := []VersionRecord{
		{ToolID: "cmake", Version: "3.28.1", Installed: true, Satisfied: true, Path: "/t/cmake/bin/cmake"},
		{ToolID: "gperf"},
	}
	var buf bytes.Buffer
	if err := RenderTable(&buf, records, false); err != nil {
		t.Fatalf("RenderTable: %v", err)
	}
	out := buf.String()
	for _, fragment := range []string{"cmake", "3.28.1", "ok", "gperf", "missing"} {
		if !strings.Contains(out, fragment) {
			t.Errorf("table missing %q:\n%s", fragment, out)
		}
	}
}
