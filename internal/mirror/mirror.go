package mirror

import (
	"context"
	"fmt"
	"github.com/spf13/afero"
	"io"
	"log/slog"
)

// Stdin copies src into a freshly created file on fs until src is exhausted
// or ctx ends. An existing file is truncated.
func Stdin(ctx context.Context, fs afero.Fs, src io.Reader, fileName string) (int64, error) {
	file, err := fs.Create(fileName)
	if err != nil {
		return 0, fmt.Errorf("failed to create mirror file %s: %w", fileName, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("Error closing mirror file", "file", fileName, slog.Any("error", err))
		}
	}()

	n, err := io.Copy(file, &ctxReader{ctx: ctx, r: src})
	if err != nil && ctx.Err() == nil {
		return n, fmt.Errorf("stdin -> %s copy failed: %w", fileName, err)
	}
	return n, nil
}

// ctxReader stops a copy between reads once ctx is done. A read already
// blocked on src is not interrupted.
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
