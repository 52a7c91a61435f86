// Package receipts persists what was installed into each tool directory so
// later runs can tell a stale installation from a current one.
package receipts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const ledgerVersion = 1

// Ledger is the receipts file: one entry per tool id.
type Ledger struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// Entry describes one committed installation.
type Entry struct {
	Tool        string    `json:"tool"`
	Dir         string    `json:"dir"`
	URL         string    `json:"url"`
	SHA256      string    `json:"sha256,omitempty"`
	Kind        string    `json:"kind"`
	InstalledAt time.Time `json:"installed_at"`
}

// Load reads the ledger at path, returning an empty ledger when the file is
// missing.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("read receipts: %w", err)
	}

	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode receipts %s: %w", path, err)
	}
	if l.Version > ledgerVersion {
		return nil, fmt.Errorf("receipts %s: unsupported version %d", path, l.Version)
	}
	l.normalize()
	return &l, nil
}

// Save writes the ledger atomically, creating the containing directory if
// needed.
func Save(path string, l *Ledger) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure receipts dir: %w", err)
	}
	if l == nil {
		l = New()
	}
	l.normalize()

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encode receipts: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp receipts: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace receipts: %w", err)
	}
	return nil
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{Version: ledgerVersion, Entries: map[string]Entry{}}
}

// Get returns the entry for tool when present.
func (l *Ledger) Get(tool string) (Entry, bool) {
	if l == nil || l.Entries == nil {
		return Entry{}, false
	}
	entry, ok := l.Entries[tool]
	return entry, ok
}

// Set stores entry under entry.Tool.
func (l *Ledger) Set(entry Entry) {
	if l == nil {
		return
	}
	if l.Entries == nil {
		l.Entries = map[string]Entry{}
	}
	entry.SHA256 = strings.ToLower(entry.SHA256)
	l.Entries[entry.Tool] = entry
}

// Delete removes the entry for tool.
func (l *Ledger) Delete(tool string) {
	if l == nil || l.Entries == nil {
		return
	}
	delete(l.Entries, tool)
}

// Tools lists the recorded tool ids in sorted order.
func (l *Ledger) Tools() []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.Entries))
	for id := range l.Entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Stale reports whether the recorded installation of tool was made from a
// different artifact than digest. A missing entry or an empty digest is
// never stale.
func (l *Ledger) Stale(tool, digest string) bool {
	entry, ok := l.Get(tool)
	if !ok || digest == "" || entry.SHA256 == "" {
		return false
	}
	return !strings.EqualFold(entry.SHA256, digest)
}

func (l *Ledger) normalize() {
	if l.Version == 0 {
		l.Version = ledgerVersion
	}
	if l.Entries == nil {
		l.Entries = map[string]Entry{}
	}
}
