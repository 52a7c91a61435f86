// Package envscript renders the shell activation scripts for a hostkit
// installation.
package envscript

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"hostkit/internal/paths"
	"hostkit/internal/tools"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var scripts = template.Must(template.New("env").Funcs(template.FuncMap{
	"win": func(p string) string { return strings.ReplaceAll(p, "/", `\`) },
}).ParseFS(templateFS, "templates/*.tmpl"))

type scriptData struct {
	Dirs []string
}

// ActivationDirs returns the search-path entries for specs, relative to the
// installation root and slash-separated. Only directories present on disk
// are listed, so tools that were removed drop out on regeneration.
func ActivationDirs(layout paths.Layout, specs []tools.ToolSpec) ([]string, error) {
	rel, err := filepath.Rel(layout.Root, layout.ToolsDir)
	if err != nil {
		return nil, err
	}
	toolsRel := filepath.ToSlash(rel)

	var dirs []string
	for _, spec := range specs {
		for _, sub := range spec.PathDirs {
			abs := filepath.Join(layout.ToolDir(spec.Dir), filepath.FromSlash(sub))
			ok, err := paths.DirExists(abs)
			if err != nil {
				return nil, err
			}
			if ok {
				dirs = append(dirs, path.Join(toolsRel, spec.Dir, sub))
			}
		}
	}
	return dirs, nil
}

// Render returns the script for profile with dirs prepended to the search
// path, earliest first.
func Render(profile ShellProfile, dirs []string) ([]byte, error) {
	var buf bytes.Buffer
	if err := scripts.ExecuteTemplate(&buf, profile.ScriptName+".tmpl", scriptData{Dirs: dirs}); err != nil {
		return nil, fmt.Errorf("render %s: %w", profile.ScriptName, err)
	}
	out := buf.Bytes()
	if profile.Name == Cmd.Name {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	return out, nil
}

// Generate writes every activation script and the stamp into root,
// replacing previous versions in full. It returns the script paths.
func Generate(root string, dirs []string, stamp Stamp) ([]string, error) {
	var written []string
	for _, profile := range Profiles() {
		content, err := Render(profile, dirs)
		if err != nil {
			return written, err
		}
		mode := os.FileMode(0o644)
		if profile.Name == POSIX.Name {
			mode = 0o755
		}
		target := filepath.Join(root, profile.ScriptName)
		if err := writeAtomic(target, content, mode); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	if err := writeAtomic(filepath.Join(root, "env.stamp"), []byte(stamp.String()), 0o644); err != nil {
		return written, err
	}
	return written, nil
}

// TemplatesSum hashes the embedded templates in name order.
func TemplatesSum() string {
	names, _ := fs.Glob(templateFS, "templates/*.tmpl")
	sort.Strings(names)
	h := sha256.New()
	for _, name := range names {
		data, _ := templateFS.ReadFile(name)
		h.Write(data)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func writeAtomic(target string, content []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+"-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(target), err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(target), err)
	}
	return nil
}
