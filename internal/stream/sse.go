package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go/packages/ssestream"

	"github.com/davidbz/sidecar/internal/domain"
)

// Event is one server-sent event. Data has its trailing newline removed.
type Event struct {
	Type string
	Data []byte
}

var doneMarker = []byte("[DONE]")

// Truncated reports a stream whose body ended before the provider's end
// marker arrived.
func Truncated(marker string) error {
	return fmt.Errorf("%w: stream ended before %s", domain.ErrNetwork, marker)
}

// terminatedBody appends a blank line at end of body so a final event
// without its closing blank line is still dispatched.
type terminatedBody struct {
	io.Reader
	io.Closer
}

func terminate(resp *http.Response) *http.Response {
	if resp == nil || resp.Body == nil {
		return resp
	}
	out := *resp
	out.Body = terminatedBody{
		Reader: io.MultiReader(resp.Body, strings.NewReader("\n\n")),
		Closer: resp.Body,
	}
	return &out
}

// SSE walks the server-sent events of resp, calling fn for each event that
// carries data. The walk ends at a [DONE] marker, at end of body, or when fn
// returns ErrStop. The body is closed before SSE returns.
func SSE(ctx context.Context, resp *http.Response, fn func(Event) error) error {
	decoder := ssestream.NewDecoder(terminate(resp))
	if decoder == nil {
		return Classify(ctx, errors.New("response has no body"))
	}
	defer decoder.Close()

	for decoder.Next() {
		if err := ctx.Err(); err != nil {
			return Classify(ctx, err)
		}

		raw := decoder.Event()
		data := bytes.TrimRight(raw.Data, "\n")
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(data), doneMarker) {
			return nil
		}

		if err := fn(Event{Type: raw.Type, Data: data}); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return Classify(ctx, err)
		}
	}

	return Classify(ctx, decoder.Err())
}
