package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnsupportedProvider means no client is registered for the credential identity.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrUnsupportedModel means the provider has no wire name for the model, or
	// does not accept the request shape for it.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrWrongCredentialKind means credentials were routed to a client of another identity.
	ErrWrongCredentialKind = errors.New("wrong credential kind")

	// ErrUnsupportedForMessages means no prompt formatter exists to count a message list.
	ErrUnsupportedForMessages = errors.New("token counting for messages unsupported")

	ErrNetwork  = errors.New("network error")
	ErrDecode   = errors.New("decode error")
	ErrProvider = errors.New("provider error")

	ErrCancelled  = errors.New("request cancelled")
	ErrSinkClosed = errors.New("delta sink closed")

	ErrUnknownFimModel = errors.New("unknown fim model")

	ErrInvalidRequest = errors.New("invalid request")
)

// ProviderError is a non-2xx response from a provider.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}

// Is lets errors.Is(err, ErrProvider) match any ProviderError.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// IsRetryable reports whether a failed request may be re-sent to a secondary
// provider. Decode errors are deterministic and never retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrDecode) {
		return false
	}
	if errors.Is(err, ErrNetwork) {
		return true
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Status >= http.StatusInternalServerError
	}
	return false
}
