package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, content string) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.bin")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sum := sha256.Sum256([]byte(content))
	return path, hex.EncodeToString(sum[:])
}

func TestDigest(t *testing.T) {
	path, want := writeFile(t, strings.Repeat("hostkit", 100000))
	got, err := Digest(path)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if got != want {
		t.Fatalf("digest = %s, want %s", got, want)
	}
}

func TestVerifyCaseInsensitive(t *testing.T) {
	path, sum := writeFile(t, "payload")
	for _, expected := range []string{sum, strings.ToUpper(sum), "sha256:" + sum, "SHA256:" + strings.ToUpper(sum)} {
		if err := Verify("x", path, expected); err != nil {
			t.Errorf("Verify(%q): %v", expected, err)
		}
	}
}

func TestVerifyMismatch(t *testing.T) {
	path, _ := writeFile(t, "payload")
	other := sha256.Sum256([]byte("other"))

	err := Verify("cmake", path, hex.EncodeToString(other[:]))
	var ierr *Error
	if !errors.As(err, &ierr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ierr.Tool != "cmake" || ierr.Expected != hex.EncodeToString(other[:]) {
		t.Fatalf("unexpected error fields: %+v", ierr)
	}
}

func TestNormalizeRejectsOtherAlgorithms(t *testing.T) {
	cases := []string{"md5:d41d8cd98f00b204e9800998ecf8427e", "abc", strings.Repeat("z", 64)}
	for _, value := range cases {
		if _, err := Normalize(value); err == nil {
			t.Errorf("Normalize(%q) should fail", value)
		}
	}
}
