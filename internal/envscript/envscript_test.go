package envscript

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"hostkit/internal/paths"
	"hostkit/internal/tools"
)

func layoutWith(t *testing.T, dirs ...string) paths.Layout {
	t.Helper()
	root := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	layout, err := paths.Resolve(root)
	require.NoError(t, err)
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(layout.ToolsDir, filepath.FromSlash(d)), 0o755))
	}
	return layout
}

// shellEnv returns the process environment without any inherited
// HOSTKIT_* settings, plus extra.
func shellEnv(extra ...string) []string {
	var env []string
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "HOSTKIT_") {
			env = append(env, kv)
		}
	}
	return append(env, extra...)
}

func TestActivationDirsFollowToolOrder(t *testing.T) {
	layout := layoutWith(t, "git/cmd", "git/usr/bin", "ninja", "cmake/bin")

	dirs, err := ActivationDirs(layout, tools.Order())
	require.NoError(t, err)
	want := []string{"tools/cmake/bin", "tools/ninja", "tools/git/cmd", "tools/git/usr/bin"}
	if diff := cmp.Diff(want, dirs); diff != "" {
		t.Fatalf("dirs (-want +got):\n%s", diff)
	}
}

func TestPosixScriptIsValidAndOrdersPath(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	layout := layoutWith(t, "cmake/bin", "ninja", "git/cmd")
	dirs, err := ActivationDirs(layout, tools.Order())
	require.NoError(t, err)

	_, err = Generate(layout.Root, dirs, NewStamp("sha256:manifest"))
	require.NoError(t, err)
	script := filepath.Join(layout.Root, "env.sh")

	out, err := exec.Command(sh, "-n", script).CombinedOutput()
	require.NoError(t, err, "syntax check: %s", out)

	cmd := exec.Command(sh, "-c", `. ./env.sh 2>/dev/null; printf '%s' "$PATH"`)
	cmd.Dir = layout.Root
	cmd.Env = shellEnv("HOSTKIT_ROOT="+layout.Root, "HOSTKIT_VENV="+filepath.Join(layout.Root, "novenv"))
	pathOut, err := cmd.Output()
	require.NoError(t, err)

	entries := strings.Split(string(pathOut), ":")
	require.GreaterOrEqual(t, len(entries), 3)
	want := []string{
		filepath.Join(layout.ToolsDir, "cmake", "bin"),
		filepath.Join(layout.ToolsDir, "ninja"),
		filepath.Join(layout.ToolsDir, "git", "cmd"),
	}
	if diff := cmp.Diff(want, entries[:3]); diff != "" {
		t.Fatalf("PATH prefix (-want +got):\n%s", diff)
	}
}

func TestPosixScriptReportsMissingVenv(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	layout := layoutWith(t)
	_, err = Generate(layout.Root, nil, NewStamp("sha256:m"))
	require.NoError(t, err)

	cmd := exec.Command(sh, "-c", ". ./env.sh")
	cmd.Dir = layout.Root
	cmd.Env = shellEnv("HOSTKIT_ROOT=" + layout.Root)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	require.NoError(t, cmd.Run())
	require.Contains(t, stderr.String(), "hostkit: python environment not found at "+filepath.Join(layout.Root, ".venv"))
}

func TestPosixScriptActivatesVenvOverride(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	layout := layoutWith(t)
	_, err = Generate(layout.Root, nil, NewStamp("sha256:m"))
	require.NoError(t, err)

	venv := filepath.Join(t.TempDir(), "venv")
	require.NoError(t, os.MkdirAll(filepath.Join(venv, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(venv, "bin", "activate"), []byte("HOSTKIT_TEST_ACTIVATED=yes\n"), 0o644))

	cmd := exec.Command(sh, "-c", `. ./env.sh; printf '%s' "$HOSTKIT_TEST_ACTIVATED"`)
	cmd.Dir = layout.Root
	cmd.Env = shellEnv("HOSTKIT_ROOT="+layout.Root, "HOSTKIT_VENV="+venv)
	out, err := cmd.Output()
	require.NoError(t, err)
	require.Equal(t, "yes", string(out))
}

func TestPosixScriptSourcedFromAnotherDirectory(t *testing.T) {
	layout := layoutWith(t)
	_, err := Generate(layout.Root, nil, NewStamp("sha256:m"))
	require.NoError(t, err)
	script := filepath.Join(layout.Root, "env.sh")
	elsewhere := t.TempDir()
	line := `. "` + script + `" 2>/dev/null || exit 3; printf '%s' "$HOSTKIT_ROOT"`

	for _, shell := range []string{"sh", "dash", "bash"} {
		exe, err := exec.LookPath(shell)
		if err != nil {
			continue
		}
		t.Run(shell, func(t *testing.T) {
			cmd := exec.Command(exe, "-c", line)
			cmd.Dir = elsewhere
			cmd.Env = shellEnv("HOSTKIT_VENV=" + filepath.Join(elsewhere, "novenv"))
			out, err := cmd.Output()
			if err != nil {
				// Shells that cannot name the sourced file must refuse
				// rather than guess the working directory.
				var exitErr *exec.ExitError
				require.ErrorAs(t, err, &exitErr)
				require.Equal(t, 3, exitErr.ExitCode())
				require.NotEqual(t, "bash", shell, "bash reports BASH_SOURCE")
				return
			}
			require.Equal(t, layout.Root, string(out))

			cmd = exec.Command(exe, "-c", line)
			cmd.Dir = elsewhere
			cmd.Env = shellEnv("HOSTKIT_ROOT="+layout.Root, "HOSTKIT_VENV="+filepath.Join(elsewhere, "novenv"))
			out, err = cmd.Output()
			require.NoError(t, err)
			require.Equal(t, layout.Root, string(out))
		})
	}
}

func TestPosixScriptRefusesUnknownRoot(t *testing.T) {
	dash, err := exec.LookPath("dash")
	if err != nil {
		t.Skip("dash not available")
	}
	layout := layoutWith(t)
	_, err = Generate(layout.Root, nil, NewStamp("sha256:m"))
	require.NoError(t, err)

	bogus := t.TempDir()
	cmd := exec.Command(dash, "-c", `. "`+filepath.Join(layout.Root, "env.sh")+`" || echo refused; printf '%s' "$PATH" | grep -c "`+bogus+`/tools" || true`)
	cmd.Dir = bogus
	cmd.Env = shellEnv("HOSTKIT_ROOT=" + bogus)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	_ = cmd.Run()
	require.Contains(t, stderr.String(), "hostkit: cannot locate env.sh in this shell; set HOSTKIT_ROOT")
	require.Equal(t, "refused\n0\n", stdout.String(), "PATH must not point into the wrong tree")
}

// unquotedBlockExpansions returns the %VAR% expansions that cmd.exe would
// substitute unquoted inside a parenthesized block, where a ")" in the value
// closes the block early.
func unquotedBlockExpansions(script string) []string {
	var found []string
	depth := 0
	for _, line := range strings.Split(strings.ReplaceAll(script, "\r\n", "\n"), "\n") {
		quoted := false
		for i := 0; i < len(line); i++ {
			switch c := line[i]; {
			case c == '"':
				quoted = !quoted
			case quoted:
			case c == '(':
				depth++
			case c == ')':
				depth--
			case c == '%' && depth > 0:
				if end := strings.IndexByte(line[i+1:], '%'); end > 0 {
					found = append(found, line[i:i+end+2])
					i += end + 1
				}
			}
		}
	}
	return found
}

func TestBatchScriptSurvivesParenthesesInPaths(t *testing.T) {
	layout := layoutWith(t, "cmake/bin")
	dirs, err := ActivationDirs(layout, tools.Order())
	require.NoError(t, err)
	_, err = Generate(layout.Root, dirs, NewStamp("sha256:abc"))
	require.NoError(t, err)

	bat, err := os.ReadFile(filepath.Join(layout.Root, "env.bat"))
	require.NoError(t, err)
	require.Empty(t, unquotedBlockExpansions(string(bat)))
	require.Contains(t, string(bat), ">&2 echo hostkit: python environment not found at %_HOSTKIT_VENV%")

	require.Equal(t, []string{"%X%"}, unquotedBlockExpansions("if a (\r\n  echo %X% \"%Y%\"\r\n)\r\necho %Z%\r\n"))
}

func TestGenerateWritesAllDialects(t *testing.T) {
	layout := layoutWith(t, "cmake/bin", "git/cmd")
	dirs, err := ActivationDirs(layout, tools.Order())
	require.NoError(t, err)

	written, err := Generate(layout.Root, dirs, NewStamp("sha256:abc"))
	require.NoError(t, err)
	require.Len(t, written, 3)

	bat, err := os.ReadFile(filepath.Join(layout.Root, "env.bat"))
	require.NoError(t, err)
	require.Contains(t, string(bat), `%HOSTKIT_ROOT%\tools\cmake\bin;%HOSTKIT_ROOT%\tools\git\cmd;%PATH%`)
	require.Contains(t, string(bat), "%~dp0")
	require.NotContains(t, strings.ReplaceAll(string(bat), "\r\n", ""), "\n", "batch file must use CRLF")

	ps1, err := os.ReadFile(filepath.Join(layout.Root, "env.ps1"))
	require.NoError(t, err)
	require.Contains(t, string(ps1), `(Join-Path $PSScriptRoot 'tools\cmake\bin')`)
	require.Contains(t, string(ps1), "$env:HOSTKIT_VENV")

	for _, name := range []string{"env.sh", "env.bat", "env.ps1"} {
		data, err := os.ReadFile(filepath.Join(layout.Root, name))
		require.NoError(t, err)
		require.NotContains(t, string(data), layout.Root, "%s must not embed the install path", name)
	}

	stamp, err := ReadStamp(layout.StampFile)
	require.NoError(t, err)
	require.Equal(t, NewStamp("sha256:abc"), stamp)
	require.True(t, stamp.Drifted(NewStamp("sha256:other")))
}

func TestRegenerateDropsRemovedTools(t *testing.T) {
	layout := layoutWith(t, "cmake/bin", "ninja")
	dirs, _ := ActivationDirs(layout, tools.Order())
	_, err := Generate(layout.Root, dirs, NewStamp("sha256:a"))
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(layout.ToolsDir, "ninja")))
	dirs, _ = ActivationDirs(layout, tools.Order())
	_, err = Generate(layout.Root, dirs, NewStamp("sha256:a"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(layout.Root, "env.sh"))
	require.NoError(t, err)
	require.NotContains(t, string(data), "tools/ninja")
	require.Contains(t, string(data), "tools/cmake/bin")
}

func TestParseStampRejectsGarbage(t *testing.T) {
	_, err := ParseStamp([]byte("1\nonly-two\n"))
	require.Error(t, err)
	_, err = ParseStamp([]byte("x\na\nb\n"))
	require.Error(t, err)
}

func TestProfiles(t *testing.T) {
	bash, err := ProfileFor("bash")
	require.NoError(t, err)
	require.Equal(t, POSIX, bash)
	require.Equal(t, `. "/opt/hk/env.sh" && west build`, bash.Wrap("/opt/hk/env.sh", "west build"))
	require.Equal(t, "$ZEPHYR_BASE", bash.EnvVar("ZEPHYR_BASE"))

	require.Equal(t, `call "C:\hk\env.bat" && west build`, Cmd.Wrap(`C:\hk\env.bat`, "west build"))
	require.Equal(t, "%ZEPHYR_BASE%", Cmd.EnvVar("ZEPHYR_BASE"))
	require.Equal(t, "west build > NUL 2>&1", Cmd.Silence("west build"))

	require.Equal(t, `. "C:\hk\env.ps1" ; west build`, PowerShell.Wrap(`C:\hk\env.ps1`, "west build"))
	require.Equal(t, "$env:ZEPHYR_BASE", PowerShell.EnvVar("ZEPHYR_BASE"))

	_, err = ProfileFor("fish")
	require.Error(t, err)
}

func TestDetectProfile(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	require.Equal(t, POSIX.Name, DetectProfile("linux", env(nil)).Name)
	require.Equal(t, POSIX.Name, DetectProfile("windows", env(map[string]string{"SHELL": "/usr/bin/bash"})).Name)
	require.Equal(t, Cmd.Name, DetectProfile("windows", env(map[string]string{"PROMPT": "$P$G"})).Name)
	require.Equal(t, PowerShell.Name, DetectProfile("windows", env(nil)).Name)
}
