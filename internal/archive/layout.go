package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CollapseDoubleFolder hoists the children of dir/<toolName> into dir when
// that folder is the only entry, compared case-insensitively. It reports
// whether anything moved. Running it on an already collapsed tree is a no-op.
func CollapseDoubleFolder(dir, toolName string) (bool, error) {
	inner, ok, err := soleDir(dir)
	if err != nil || !ok {
		return false, err
	}
	if !strings.EqualFold(inner, toolName) {
		return false, nil
	}
	return true, hoist(dir, inner)
}

// FlattenSingleDir hoists the children of the only entry of dir when that
// entry is a directory, whatever its name.
func FlattenSingleDir(dir string) (bool, error) {
	inner, ok, err := soleDir(dir)
	if err != nil || !ok {
		return false, err
	}
	return true, hoist(dir, inner)
}

func soleDir(dir string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", dir, err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return "", false, nil
	}
	return entries[0].Name(), true, nil
}

// hoist moves every child of dir/inner up one level with one rename per
// child. The inner folder is renamed aside first so a child sharing its
// name does not collide.
func hoist(dir, inner string) error {
	staged := filepath.Join(dir, ".collapse-"+inner)
	if err := os.Rename(filepath.Join(dir, inner), staged); err != nil {
		return fmt.Errorf("collapse %s: %w", inner, err)
	}
	children, err := os.ReadDir(staged)
	if err != nil {
		return fmt.Errorf("collapse %s: %w", inner, err)
	}
	for _, child := range children {
		if err := os.Rename(filepath.Join(staged, child.Name()), filepath.Join(dir, child.Name())); err != nil {
			return fmt.Errorf("collapse %s: move %s: %w", inner, child.Name(), err)
		}
	}
	if err := os.Remove(staged); err != nil {
		return fmt.Errorf("collapse %s: %w", inner, err)
	}
	return nil
}

var errFound = errors.New("found")

// FindFile walks root in lexical order and returns the first file whose name
// matches one of names, case-insensitively. Within that file's directory a
// name earlier in names is preferred. It returns "" when nothing matches.
func FindFile(root string, names ...string) (string, error) {
	var match string
	rank := len(names)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for i, name := range names {
			if i < rank && strings.EqualFold(d.Name(), name) {
				if match == "" || filepath.Dir(path) == filepath.Dir(match) {
					match, rank = path, i
				}
				if rank == 0 {
					return errFound
				}
				break
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", err
	}
	return match, nil
}
