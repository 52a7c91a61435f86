// Package integrity verifies downloaded artifacts against manifest digests.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

const prefix = "sha256:"

// Error reports a digest mismatch. It is always fatal for the tool.
type Error struct {
	Tool     string
	Path     string
	Expected string
	Actual   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("integrity check failed for %s: expected sha256 %s, got %s", e.Tool, e.Expected, e.Actual)
}

// Digest returns the hex sha256 of the file at path, read as a stream.
func Digest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Normalize strips an optional "sha256:" prefix and surrounding whitespace.
// Any other algorithm prefix is rejected.
func Normalize(expected string) (string, error) {
	value := strings.TrimSpace(expected)
	if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		value = value[len(prefix):]
	}
	if algo, _, found := strings.Cut(value, ":"); found {
		return "", fmt.Errorf("unsupported digest algorithm %q", algo)
	}
	if len(value) != sha256.Size*2 {
		return "", fmt.Errorf("sha256 digest must be %d hex characters, got %d", sha256.Size*2, len(value))
	}
	if _, err := hex.DecodeString(value); err != nil {
		return "", fmt.Errorf("sha256 digest is not hex: %w", err)
	}
	return value, nil
}

// Verify compares the sha256 of path against expected, ignoring case.
func Verify(tool, path, expected string) error {
	want, err := Normalize(expected)
	if err != nil {
		return fmt.Errorf("%s: %w", tool, err)
	}
	actual, err := Digest(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, want) {
		return &Error{Tool: tool, Path: path, Expected: strings.ToLower(want), Actual: actual}
	}
	return nil
}
