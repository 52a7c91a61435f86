package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func mkfiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(f), 0o644))
	}
}

func TestCollapseDoubleFolder(t *testing.T) {
	dir := t.TempDir()
	mkfiles(t, dir, "Gperf/bin/gperf.exe", "Gperf/share/doc.txt", "Gperf/gperf/nested.txt")

	moved, err := CollapseDoubleFolder(dir, "gperf")
	require.NoError(t, err)
	require.True(t, moved)
	want := []string{"bin/gperf.exe", "gperf/nested.txt", "share/doc.txt"}
	require.Equal(t, want, listFiles(t, dir))

	moved, err = CollapseDoubleFolder(dir, "gperf")
	require.NoError(t, err)
	require.False(t, moved)
	if diff := cmp.Diff(want, listFiles(t, dir)); diff != "" {
		t.Fatalf("second run changed files (-want +got):\n%s", diff)
	}
}

func TestCollapseDoubleFolderIgnoresOtherNames(t *testing.T) {
	dir := t.TempDir()
	mkfiles(t, dir, "cmake-3.28.1-windows-x86_64/bin/cmake.exe")

	moved, err := CollapseDoubleFolder(dir, "cmake")
	require.NoError(t, err)
	require.False(t, moved)
	require.Equal(t, []string{"cmake-3.28.1-windows-x86_64/bin/cmake.exe"}, listFiles(t, dir))
}

func TestFlattenSingleDir(t *testing.T) {
	dir := t.TempDir()
	mkfiles(t, dir, "cmake-3.28.1-windows-x86_64/bin/cmake.exe", "cmake-3.28.1-windows-x86_64/share/x")

	moved, err := FlattenSingleDir(dir)
	require.NoError(t, err)
	require.True(t, moved)
	require.Equal(t, []string{"bin/cmake.exe", "share/x"}, listFiles(t, dir))

	moved, err = FlattenSingleDir(dir)
	require.NoError(t, err)
	require.False(t, moved)
}

func TestFindFile(t *testing.T) {
	dir := t.TempDir()
	mkfiles(t, dir, "a/readme", "b/x/7za.exe", "b/x/7z.exe", "c/7zr.exe")

	got, err := FindFile(dir, "7z.exe", "7za.exe", "7zr.exe")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "b", "x", "7z.exe"), got)

	got, err = FindFile(dir, "missing")
	require.NoError(t, err)
	require.Empty(t, got)
}
