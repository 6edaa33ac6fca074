package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/davidbz/sidecar/internal/domain"
)

// ErrStop ends a stream walk early without an error.
var ErrStop = errors.New("stop stream")

// Classify maps a failure raised while talking to a provider onto the domain
// error kinds. Errors that already carry a kind are returned unchanged.
func Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		if errors.Is(err, domain.ErrCancelled) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}

	switch {
	case errors.Is(err, domain.ErrDecode),
		errors.Is(err, domain.ErrNetwork),
		errors.Is(err, domain.ErrProvider),
		errors.Is(err, domain.ErrSinkClosed),
		errors.Is(err, domain.ErrCancelled),
		errors.Is(err, domain.ErrUnsupportedModel):
		return err
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}

	return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
}

// DecodeError wraps a payload that could not be parsed.
func DecodeError(payload []byte, err error) error {
	const maxPayload = 256
	if len(payload) > maxPayload {
		payload = payload[:maxPayload]
	}
	if err == nil {
		return fmt.Errorf("%w: unexpected payload %q", domain.ErrDecode, payload)
	}
	return fmt.Errorf("%w: %q: %w", domain.ErrDecode, payload, err)
}
