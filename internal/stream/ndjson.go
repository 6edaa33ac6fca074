package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
)

const maxLineSize = 4 << 20

// NDJSON walks newline-delimited JSON objects from body, calling fn for each
// non-blank line. The walk ends at end of body or when fn returns ErrStop.
// The body is closed before NDJSON returns.
func NDJSON(ctx context.Context, body io.ReadCloser, fn func(line []byte) error) error {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return Classify(ctx, err)
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if err := fn(line); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return Classify(ctx, err)
		}
	}

	return Classify(ctx, scanner.Err())
}
