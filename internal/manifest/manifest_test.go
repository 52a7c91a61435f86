package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var windows = Platform{OS: "windows", Arch: "amd64"}

func hexOf(c string) string { return strings.Repeat(c, 64) }

const sample = `
- tool: cmake
  os:
    win32:
      source: https://example.com/cmake.zip
      sha256: AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA
    linux:
      source:
        - https://primary.example.com/cmake.tar.gz
        - https://mirror.example.com/cmake.tar.gz
      sha256: cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc
- tool: ninja
  os:
    windows:
      source: [https://example.com/ninja.zip]
      sha256: eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee
    windows-arm64:
      source: https://example.com/ninja-arm.zip
      sha256: bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb
- tool: gperf
  os:
    linux:
      source: https://example.com/gperf.tar.gz
      sha256: dddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd
`

func TestLoadFiltersByPlatform(t *testing.T) {
	m, err := Load(strings.NewReader(sample), windows)
	require.NoError(t, err)

	require.Equal(t, []string{"cmake", "ninja"}, m.IDs())

	cmake, ok := m.Lookup("cmake")
	require.True(t, ok)
	require.Equal(t, Entry{ID: "cmake", URLs: []string{"https://example.com/cmake.zip"}, Digest: hexOf("A")}, cmake)

	_, ok = m.Lookup("gperf")
	require.False(t, ok, "gperf has no windows entry")
}

func TestLoadMirrors(t *testing.T) {
	m, err := Load(strings.NewReader(sample), Platform{OS: "linux", Arch: "amd64"})
	require.NoError(t, err)

	cmake, ok := m.Lookup("cmake")
	require.True(t, ok)
	want := []string{"https://primary.example.com/cmake.tar.gz", "https://mirror.example.com/cmake.tar.gz"}
	if diff := cmp.Diff(want, cmake.URLs); diff != "" {
		t.Fatalf("mirrors (-want +got):\n%s", diff)
	}
}

func TestArchQualifiedKeyWins(t *testing.T) {
	m, err := Load(strings.NewReader(sample), Platform{OS: "windows", Arch: "arm64"})
	require.NoError(t, err)

	ninja, ok := m.Lookup("ninja")
	require.True(t, ok)
	require.Equal(t, []string{"https://example.com/ninja-arm.zip"}, ninja.URLs)
}

func TestScalarAndSingleSequenceResolveAlike(t *testing.T) {
	scalar := "- tool: x\n  os:\n    linux:\n      source: https://e.com/x.zip\n      sha256: sha256:" + hexOf("a") + "\n"
	seq := "- tool: x\n  os:\n    linux:\n      source:\n        - https://e.com/x.zip\n      sha256: " + hexOf("a") + "\n"
	linux := Platform{OS: "linux"}

	a, err := Load(strings.NewReader(scalar), linux)
	require.NoError(t, err)
	b, err := Load(strings.NewReader(seq), linux)
	require.NoError(t, err)

	ea, _ := a.Lookup("x")
	eb, _ := b.Lookup("x")
	if diff := cmp.Diff(ea, eb); diff != "" {
		t.Fatalf("entries differ (-scalar +seq):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"not a list":  "tool: x\n",
		"bad source":  "- tool: x\n  os:\n    windows:\n      source: {a: b}\n",
		"no id":       "- os:\n    windows:\n      source: https://e.com/x.zip\n",
		"duplicate":   "- tool: x\n- tool: x\n",
		"no urls":     "- tool: x\n  os:\n    windows:\n      source: []\n",
		"short hex":   "- tool: x\n  os:\n    windows:\n      source: https://e.com/x.zip\n      sha256: \"abc\"\n",
		"not hex":     "- tool: x\n  os:\n    linux:\n      source: https://e.com/x.zip\n      sha256: " + hexOf("z") + "\n",
		"md5 prefix":  "- tool: x\n  os:\n    windows:\n      source: https://e.com/x.zip\n      sha256: md5:0123\n",
		"alias twice": "- tool: x\n  os:\n    win32:\n      source: https://e.com/a.zip\n    windows:\n      source: https://e.com/b.zip\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc), windows)
			require.Error(t, err)
			var merr *Error
			require.True(t, errors.As(err, &merr), "expected *manifest.Error, got %T", err)
		})
	}
}

func TestLoadFileAndSum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	m, err := LoadFile(path, windows)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(m.Sum(), "sha256:"))
	require.Len(t, m.Sum(), len("sha256:")+64)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yml"), windows)
	var merr *Error
	require.ErrorAs(t, err, &merr)
	require.Contains(t, merr.Error(), "missing.yml")
}

func TestPlatformKeys(t *testing.T) {
	require.Equal(t, []string{"darwin-arm64", "darwin"}, Platform{OS: "macos", Arch: "aarch64"}.Keys())
	require.Equal(t, "windows-amd64", normalizeKey("win32-x64"))
	require.Equal(t, []string{"linux"}, Platform{OS: "linux"}.Keys())
}
