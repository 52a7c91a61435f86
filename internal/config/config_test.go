package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hostkit.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.Interpreter != want.Interpreter || cfg.Fetch.Attempts != want.Fetch.Attempts {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if diff := cmp.Diff(DefaultFixups(), cfg.Fixups); diff != "" {
		t.Fatalf("fixups mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
install_dir: /opt/hostkit
interpreter: system
builtin_zstd: true
lock_timeout: 1s
fetch:
  timeout: 30s
  attempts: 5
pyenv:
  packages: [west]
  requirements:
    - https://example.com/requirements.txt
fixups:
  - from: a/bin
    to: b/bin
    files: [x.dll]
minimums:
  cmake: 3.28.0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.InstallDir != "/opt/hostkit" {
		t.Errorf("install_dir = %s", cfg.InstallDir)
	}
	if cfg.Interpreter != InterpreterSystem || !cfg.BuiltinZstd {
		t.Errorf("unexpected interpreter/builtin: %+v", cfg)
	}
	if cfg.LockTimeout != time.Second || cfg.Fetch.Timeout != 30*time.Second || cfg.Fetch.Attempts != 5 {
		t.Errorf("unexpected durations: %+v", cfg)
	}
	if cfg.Fetch.UserAgent != "hostkit/1.0" {
		t.Errorf("user agent default lost: %q", cfg.Fetch.UserAgent)
	}
	if diff := cmp.Diff([]string{"west"}, cfg.PyEnv.Packages); diff != "" {
		t.Errorf("packages (-want +got):\n%s", diff)
	}
	wantFixups := []Fixup{{From: "a/bin", To: "b/bin", Files: []string{"x.dll"}}}
	if diff := cmp.Diff(wantFixups, cfg.Fixups); diff != "" {
		t.Errorf("fixups (-want +got):\n%s", diff)
	}
	if cfg.Minimums["cmake"] != "3.28.0" {
		t.Errorf("minimums = %v", cfg.Minimums)
	}
}

func TestLoadExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	path := writeConfig(t, "install_dir: ~/hostkit\nlogs_dir: ~/hostkit-logs\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := filepath.Join(home, "hostkit"); cfg.InstallDir != want {
		t.Errorf("install dir = %s, want %s", cfg.InstallDir, want)
	}
	if want := filepath.Join(home, "hostkit-logs"); cfg.LogsDir != want {
		t.Errorf("logs dir = %s, want %s", cfg.LogsDir, want)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "interpreter: portable\n")
	t.Setenv("HOSTKIT_INTERPRETER", "system")
	t.Setenv("HOSTKIT_FETCH_ATTEMPTS", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Interpreter != InterpreterSystem {
		t.Errorf("interpreter = %s, want system", cfg.Interpreter)
	}
	if cfg.Fetch.Attempts != 7 {
		t.Errorf("attempts = %d, want 7", cfg.Fetch.Attempts)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "fetch: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Interpreter = "conda"
	cfg.Fetch.Timeout = 0
	cfg.Fixups = []Fixup{{From: "a"}}
	cfg.PyEnv.Requirements = []string{"file:///etc/passwd"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, fragment := range []string{"interpreter", "fetch.timeout", "fixups[0]", "pyenv.requirements[0]"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q missing %q", err, fragment)
		}
	}
}
