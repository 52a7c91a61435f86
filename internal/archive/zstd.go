package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"hostkit/internal/proc"
)

// Decompressor expands a single zstd stream from src into dst.
type Decompressor interface {
	Name() string
	Decompress(ctx context.Context, src, dst string) error
}

// ExternalZstd shells out to a provisioned zstd binary.
type ExternalZstd struct {
	Runner proc.Runner
	Path   string
}

func (z ExternalZstd) Name() string { return filepath.Base(z.Path) }

func (z ExternalZstd) Decompress(ctx context.Context, src, dst string) error {
	_, err := z.Runner.Run(ctx, z.Path, []string{"-d", "-f", src, "-o", dst}, proc.Options{})
	return err
}

// BuiltinZstd decompresses in process.
type BuiltinZstd struct{}

func (BuiltinZstd) Name() string { return "builtin zstd" }

func (BuiltinZstd) Decompress(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, &ctxReader{ctx: ctx, r: dec}); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
