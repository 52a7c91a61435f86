package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const (
	toolsDirName   = "tools"
	scratchDirName = "tmp"
	binDirName     = "bin"
	venvDirName    = ".venv"
	lockFileName   = ".hostkit.lock"
	stampFileName  = "env.stamp"
	receiptsName   = "receipts.json"
)

// Layout captures canonical locations inside a hostkit installation.
type Layout struct {
	Root       string
	ToolsDir   string
	ScratchDir string
	BinDir     string
	VenvDir    string
	LockFile   string
	StampFile  string
	// Receipts records what was installed into each tool directory.
	Receipts   string
}

// Resolve builds the layout for installDir. An empty installDir selects
// DefaultInstallDir.
func Resolve(installDir string) (Layout, error) {
	if strings.TrimSpace(installDir) == "" {
		installDir = DefaultInstallDir()
	}
	expanded, err := ExpandHome(installDir)
	if err != nil {
		return Layout{}, err
	}
	root, err := filepath.Abs(expanded)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve install dir: %w", err)
	}
	return newLayout(root), nil
}

func newLayout(root string) Layout {
	return Layout{
		Root:       root,
		ToolsDir:   filepath.Join(root, toolsDirName),
		ScratchDir: filepath.Join(root, scratchDirName),
		BinDir:     filepath.Join(root, binDirName),
		VenvDir:    filepath.Join(root, venvDirName),
		LockFile:   filepath.Join(root, lockFileName),
		StampFile:  filepath.Join(root, stampFileName),
		Receipts:   filepath.Join(root, toolsDirName, receiptsName),
	}
}

// ToolDir returns the directory holding the tool installed under name.
func (l Layout) ToolDir(name string) string {
	return filepath.Join(l.ToolsDir, name)
}

// Script returns the path of a generated activation script.
func (l Layout) Script(name string) string {
	return filepath.Join(l.Root, name)
}

// ResolveFile resolves value relative to the install root unless absolute.
func (l Layout) ResolveFile(value string) string {
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(l.Root, value)
}

// EnsureDirs creates the tools, scratch and bin directories.
func (l Layout) EnsureDirs() error {
	for _, dir := range []string{l.Root, l.ToolsDir, l.ScratchDir, l.BinDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DefaultInstallDir returns the per-user installation directory.
func DefaultInstallDir() string {
	return filepath.Join(xdg.DataHome, "hostkit")
}

// DefaultLogsDir returns the per-user log directory. Logs live outside the
// installation so read-only commands leave it untouched.
func DefaultLogsDir() string {
	return filepath.Join(xdg.StateHome, "hostkit", "logs")
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(value string) (string, error) {
	if value != "~" && !strings.HasPrefix(value, "~/") && !strings.HasPrefix(value, `~\`) {
		return value, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}
	if value == "~" {
		return home, nil
	}
	return filepath.Join(home, value[2:]), nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
