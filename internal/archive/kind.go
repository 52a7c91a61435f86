// Package archive unpacks downloaded tool artifacts and normalizes the
// resulting directory layout.
package archive

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Kind is the extraction strategy chosen for an artifact.
type Kind int

const (
	KindUnknown Kind = iota
	KindZip
	KindSevenZip
	KindSelfExtracting
	KindSevenZipInstaller
	KindTarZstd
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindZip:
		return "zip"
	case KindSevenZip:
		return "7z"
	case KindSelfExtracting:
		return "7z-sfx"
	case KindSevenZipInstaller:
		return "7z-installer"
	case KindTarZstd:
		return "tar.zst"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// NeedsZstd reports whether extraction requires a zstd decompressor.
func (k Kind) NeedsZstd() bool { return k == KindTarZstd }

// NeedsSevenZip reports whether extraction requires an external 7-Zip binary.
func (k Kind) NeedsSevenZip() bool {
	return k == KindSevenZip || k == KindSelfExtracting
}

var (
	sfxPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\.7z\.exe$`),
		regexp.MustCompile(`(?i)^portablegit-.*\.exe$`),
		regexp.MustCompile(`(?i)^winpython.*\.exe$`),
	}
	sevenZipInstaller = regexp.MustCompile(`(?i)^7-zip-[\w.]+\.exe$`)

	zipMagic      = []byte("PK\x03\x04")
	sevenZipMagic = []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}
)

// HeadSize is how many leading bytes Classify inspects.
const HeadSize = 512

// Classify picks the extraction strategy for name. head holds the first
// bytes of the file and is only consulted for bare .exe artifacts: one that
// starts with a zip or 7z signature is an archive with the wrong extension.
// The first matching rule wins.
func Classify(name string, head []byte) Kind {
	base := filepath.Base(name)
	lower := strings.ToLower(base)

	switch {
	case strings.HasSuffix(lower, ".zip"):
		return KindZip
	case strings.HasSuffix(lower, ".7z"):
		return KindSevenZip
	}
	for _, re := range sfxPatterns {
		if re.MatchString(base) {
			return KindSelfExtracting
		}
	}
	if sevenZipInstaller.MatchString(base) {
		return KindSevenZipInstaller
	}
	if strings.HasSuffix(lower, ".tar.zst") {
		return KindTarZstd
	}
	if strings.HasSuffix(lower, ".exe") {
		switch {
		case bytes.HasPrefix(head, zipMagic):
			return KindZip
		case bytes.HasPrefix(head, sevenZipMagic):
			return KindSevenZip
		default:
			return KindBinary
		}
	}
	return KindUnknown
}

// UnknownTypeError reports an artifact no strategy can handle.
type UnknownTypeError struct {
	Path string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown archive type: %s", filepath.Base(e.Path))
}
