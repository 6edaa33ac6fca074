package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/sidecar/internal/domain"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "network", err: fmt.Errorf("dial: %w", domain.ErrNetwork), want: true},
		{name: "server error", err: &domain.ProviderError{Status: 503}, want: true},
		{name: "overloaded", err: fmt.Errorf("anthropic: %w", &domain.ProviderError{Status: 529}), want: true},
		{name: "rate limited", err: &domain.ProviderError{Status: 429}, want: false},
		{name: "decode", err: fmt.Errorf("%w: bad json", domain.ErrDecode), want: false},
		{name: "cancelled", err: domain.ErrCancelled, want: false},
		{name: "unsupported model", err: domain.ErrUnsupportedModel, want: false},
	}

	for _, tt := range tests {
		t.Run("should classify "+tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, domain.IsRetryable(tt.err))
		})
	}
}

func TestProviderError(t *testing.T) {
	t.Run("should match ErrProvider and expose its status", func(t *testing.T) {
		err := fmt.Errorf("openai: %w", &domain.ProviderError{Status: 401, Body: "bad key"})

		require.ErrorIs(t, err, domain.ErrProvider)
		var perr *domain.ProviderError
		require.True(t, errors.As(err, &perr))
		require.Equal(t, 401, perr.Status)
		require.Contains(t, err.Error(), "bad key")
	})
}

func TestCheckCredentials(t *testing.T) {
	t.Run("should accept matching credentials", func(t *testing.T) {
		require.NoError(t, domain.CheckCredentials(domain.ProviderGroq, domain.GroqCredentials{APIKey: "k"}))
	})

	t.Run("should reject mismatched or missing credentials", func(t *testing.T) {
		err := domain.CheckCredentials(domain.ProviderAnthropic, domain.OpenAICredentials{})
		require.ErrorIs(t, err, domain.ErrWrongCredentialKind)

		err = domain.CheckCredentials(domain.ProviderAnthropic, nil)
		require.ErrorIs(t, err, domain.ErrWrongCredentialKind)
	})

	t.Run("should extract bearer secrets", func(t *testing.T) {
		require.Equal(t, "tok", domain.APIKeyOf(domain.GeminiVertexCredentials{AccessToken: "tok"}))
		require.Empty(t, domain.APIKeyOf(domain.OllamaCredentials{Endpoint: "http://x"}))
	})
}

func TestModelID(t *testing.T) {
	t.Run("should tell custom models from known ones", func(t *testing.T) {
		require.False(t, domain.ModelGPT4O.IsCustom())
		require.True(t, domain.Custom("my-finetune").IsCustom())
		require.True(t, domain.ModelGPT4OMini.IsOpenAI())
		require.True(t, domain.ModelClaudeHaiku.IsAnthropic())
	})
}
