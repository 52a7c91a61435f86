package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"hostkit/internal/proc"
)

var (
	// ErrDecompressorNotReady is returned when a zstd-compressed artifact is
	// extracted before any zstd decompressor has been registered.
	ErrDecompressorNotReady = errors.New("zstd decompressor not ready")
	// ErrSevenZipNotReady is returned when a 7z-family artifact is extracted
	// before a 7-Zip binary has been registered.
	ErrSevenZipNotReady = errors.New("7-zip extractor not ready")
)

// Extractor dispatches an artifact to the right unpacking strategy.
type Extractor struct {
	Runner proc.Runner
	// SevenZip is the path of a 7-Zip compatible binary. It is empty until
	// one has been provisioned.
	SevenZip string
	// Zstd is nil until a decompressor is available.
	Zstd   Decompressor
	Logger *zap.Logger
}

// Ready reports whether the extractor can currently handle kind.
func (e *Extractor) Ready(kind Kind) error {
	switch {
	case kind.NeedsZstd() && e.Zstd == nil:
		return ErrDecompressorNotReady
	case kind.NeedsSevenZip() && e.SevenZip == "":
		return ErrSevenZipNotReady
	}
	return nil
}

// Extract unpacks archivePath into destDir and returns the strategy used.
// Nothing is written when the extractor is not ready for the artifact.
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir string) (Kind, error) {
	head, err := readHead(archivePath)
	if err != nil {
		return KindUnknown, err
	}
	kind := Classify(archivePath, head)
	if kind == KindUnknown {
		return kind, &UnknownTypeError{Path: archivePath}
	}
	if err := e.Ready(kind); err != nil {
		return kind, err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return kind, fmt.Errorf("prepare extract dir: %w", err)
	}
	e.logger().Debug("extracting",
		zap.String("archive", filepath.Base(archivePath)),
		zap.String("kind", kind.String()),
		zap.String("dest", destDir))

	switch kind {
	case KindZip:
		err = extractZip(archivePath, destDir)
	case KindSevenZip, KindSelfExtracting:
		err = e.sevenZip(ctx, archivePath, destDir)
	case KindSevenZipInstaller:
		err = e.runInstaller(ctx, archivePath, destDir)
	case KindTarZstd:
		err = e.tarZstd(ctx, archivePath, destDir)
	case KindBinary:
		err = copyBinary(archivePath, destDir)
	}
	return kind, err
}

func (e *Extractor) sevenZip(ctx context.Context, archivePath, destDir string) error {
	_, err := e.Runner.Run(ctx, e.SevenZip, []string{"x", "-y", "-o" + destDir, archivePath}, proc.Options{})
	if err != nil {
		return fmt.Errorf("7z extract %s: %w", filepath.Base(archivePath), err)
	}
	return nil
}

// runInstaller runs an NSIS 7-Zip installer silently into destDir.
func (e *Extractor) runInstaller(ctx context.Context, archivePath, destDir string) error {
	_, err := e.Runner.Run(ctx, archivePath, []string{"/S", "/D=" + destDir}, proc.Options{})
	if err != nil {
		return fmt.Errorf("run installer %s: %w", filepath.Base(archivePath), err)
	}
	return nil
}

func (e *Extractor) tarZstd(ctx context.Context, archivePath, destDir string) error {
	tarPath := strings.TrimSuffix(archivePath, filepath.Ext(archivePath))
	if tarPath == archivePath || !strings.HasSuffix(strings.ToLower(tarPath), ".tar") {
		tarPath = archivePath + ".tar"
	}
	defer func() { _ = os.Remove(tarPath) }()

	if err := e.Zstd.Decompress(ctx, archivePath, tarPath); err != nil {
		return fmt.Errorf("%s decompress %s: %w", e.Zstd.Name(), filepath.Base(archivePath), err)
	}
	if e.SevenZip != "" {
		return e.sevenZip(ctx, tarPath, destDir)
	}
	return extractTar(tarPath, destDir)
}

func copyBinary(src, destDir string) error {
	dst := filepath.Join(destDir, filepath.Base(src))
	if err := CopyFile(src, dst); err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return os.Chmod(dst, 0o755)
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	buf := make([]byte, HeadSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read archive header: %w", err)
	}
	return buf[:n], nil
}

func (e *Extractor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
