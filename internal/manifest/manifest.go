package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"hostkit/internal/integrity"
)

// Entry is a tool resolved for one platform.
type Entry struct {
	ID     string
	URLs   []string
	Digest string
}

// Manifest is an immutable lookup of tool entries for a single platform.
type Manifest struct {
	platform Platform
	entries  map[string]Entry
	ids      []string
	sum      string
}

// Error reports a manifest that cannot be used.
type Error struct {
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("manifest")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

type record struct {
	Tool string                 `yaml:"tool"`
	OS   map[string]osSourceDoc `yaml:"os"`
}

type osSourceDoc struct {
	Source Sources `yaml:"source"`
	SHA256 string  `yaml:"sha256"`
}

// Sources accepts either a single URL or a sequence of mirror URLs.
type Sources []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Sources) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*s = Sources{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*s = many
		return nil
	default:
		return fmt.Errorf("line %d: source must be a string or a list of strings", node.Line)
	}
}

// LoadFile reads the manifest at path.
func LoadFile(path string, platform Platform) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, &Error{Path: path, Msg: "open", Err: err}
	}
	defer f.Close()

	m, err := Load(f, platform)
	if err != nil {
		if merr, ok := err.(*Error); ok && merr.Path == "" {
			merr.Path = path
		}
		return Manifest{}, err
	}
	return m, nil
}

// Load parses a manifest document and keeps the tools that have an entry for
// platform. Tools without one are omitted.
func Load(r io.Reader, platform Platform) (Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Manifest{}, &Error{Msg: "read", Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Manifest{}, &Error{Msg: "document is empty"}
	}

	var records []record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return Manifest{}, &Error{Msg: "parse", Err: err}
	}

	sum := sha256.Sum256(data)
	m := Manifest{
		platform: platform,
		entries:  make(map[string]Entry, len(records)),
		sum:      "sha256:" + hex.EncodeToString(sum[:]),
	}

	seen := make(map[string]struct{}, len(records))
	keys := platform.Keys()
	for i, rec := range records {
		id := strings.TrimSpace(rec.Tool)
		if id == "" {
			return Manifest{}, &Error{Msg: fmt.Sprintf("record %d has no tool id", i)}
		}
		if _, dup := seen[id]; dup {
			return Manifest{}, &Error{Msg: fmt.Sprintf("tool %q declared more than once", id)}
		}
		seen[id] = struct{}{}

		byKey := make(map[string]osSourceDoc, len(rec.OS))
		for raw, src := range rec.OS {
			key := normalizeKey(raw)
			if _, dup := byKey[key]; dup {
				return Manifest{}, &Error{Msg: fmt.Sprintf("tool %q declares platform %s more than once", id, key)}
			}
			if digest := strings.TrimSpace(src.SHA256); digest != "" {
				normalized, err := integrity.Normalize(digest)
				if err != nil {
					return Manifest{}, &Error{Msg: fmt.Sprintf("tool %q has an invalid sha256 for %s", id, raw), Err: err}
				}
				src.SHA256 = normalized
			}
			byKey[key] = src
		}

		for _, key := range keys {
			src, ok := byKey[key]
			if !ok {
				continue
			}
			urls := cleanURLs(src.Source)
			if len(urls) == 0 {
				return Manifest{}, &Error{Msg: fmt.Sprintf("tool %q has no source for %s", id, key)}
			}
			m.entries[id] = Entry{ID: id, URLs: urls, Digest: src.SHA256}
			m.ids = append(m.ids, id)
			break
		}
	}
	return m, nil
}

func cleanURLs(in Sources) []string {
	out := make([]string, 0, len(in))
	for _, u := range in {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Lookup returns the entry for id.
func (m Manifest) Lookup(id string) (Entry, bool) {
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, false
	}
	e.URLs = append([]string(nil), e.URLs...)
	return e, true
}

// IDs lists the tools available on this platform in document order.
func (m Manifest) IDs() []string {
	return append([]string(nil), m.ids...)
}

// Len reports how many tools resolved for this platform.
func (m Manifest) Len() int { return len(m.entries) }

// Platform returns the platform the manifest was resolved for.
func (m Manifest) Platform() Platform { return m.platform }

// Sum returns the sha256 of the raw manifest bytes, prefixed "sha256:".
func (m Manifest) Sum() string { return m.sum }
