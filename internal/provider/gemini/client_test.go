package gemini_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/sidecar/internal/config"
	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/provider/gemini"
	"github.com/davidbz/sidecar/internal/provider/transport"
)

type captured struct {
	path   string
	query  string
	header http.Header
	body   string
}

func newServer(t *testing.T, payload string) (*config.ProvidersConfig, *http.Client, *captured) {
	t.Helper()
	got := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		got.body = string(raw)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(server.Close)

	cfg := &config.ProvidersConfig{
		GeminiStudioBaseURL: server.URL + "/v1beta",
		GeminiVertexBaseURL: server.URL + "/v1",
		GeminiVertexRegion:  "us-central1",
	}
	httpClient := transport.NewHTTPClient(&config.HTTPClientConfig{ConnectTimeout: time.Second, ReadIdleTimeout: 5 * time.Second})
	return cfg, httpClient, got
}

const twoChunks = `data: {"candidates":[{"content":{"role":"model","parts":[{"text":"Hel"},{"text":"lo"}]}}],"modelVersion":"gemini-1.5-pro-002"}` + "\n\n" +
	`data: {"candidates":[{"content":{"role":"model","parts":[{"text":" world"}]},"finishReason":"STOP"}]}` + "\n\n"

func TestStudio_StreamCompletion(t *testing.T) {
	t.Run("should concatenate parts in order", func(t *testing.T) {
		cfg, httpClient, got := newServer(t, twoChunks)
		client := gemini.NewStudio(httpClient, cfg)
		var deltas []domain.Delta

		text, err := client.StreamCompletion(context.Background(), domain.GeminiStudioCredentials{APIKey: "g-key"},
			&domain.CompletionRequest{
				Model: domain.ModelGeminiPro,
				Messages: []domain.Message{
					domain.SystemMessage("sys"),
					domain.UserMessage("hi"),
					domain.AssistantMessage("hello"),
					domain.UserMessage("again"),
				},
				Temperature: 0.2,
			},
			domain.SinkFunc(func(d domain.Delta) error {
				deltas = append(deltas, d)
				return nil
			}))

		require.NoError(t, err)
		require.Equal(t, "Hello world", text)
		require.Len(t, deltas, 3)
		require.Equal(t, "Hello", deltas[1].TextSoFar)
		require.Equal(t, "gemini-1.5-pro-002", deltas[2].ModelEcho)

		require.Equal(t, "/v1beta/models/gemini-1.5-pro:streamGenerateContent", got.path)
		require.Equal(t, "alt=sse&key=g-key", got.query)
		require.JSONEq(t, `{
			"contents": [
				{"role": "user", "parts": [{"text": "hi"}]},
				{"role": "model", "parts": [{"text": "hello"}]},
				{"role": "user", "parts": [{"text": "again"}]}
			],
			"systemInstruction": {"parts": [{"text": "sys"}]},
			"generationConfig": {"temperature": 0.2}
		}`, got.body)
	})

	t.Run("should accept array payloads", func(t *testing.T) {
		cfg, httpClient, _ := newServer(t,
			`data: [{"candidates":[{"content":{"parts":[{"text":"a"}]}}]},{"candidates":[{"content":{"parts":[{"text":"b"}]}}]}]`+"\n\n")
		client := gemini.NewStudio(httpClient, cfg)

		text, err := client.Completion(context.Background(), domain.GeminiStudioCredentials{APIKey: "k"},
			&domain.CompletionRequest{Model: domain.ModelGemini2Flash, Messages: []domain.Message{domain.UserMessage("x")}})

		require.NoError(t, err)
		require.Equal(t, "ab", text)
	})

	t.Run("should surface error payloads", func(t *testing.T) {
		cfg, httpClient, _ := newServer(t, `data: {"error":{"code":503,"message":"unavailable"}}`+"\n\n")
		client := gemini.NewStudio(httpClient, cfg)

		_, err := client.Completion(context.Background(), domain.GeminiStudioCredentials{APIKey: "k"},
			&domain.CompletionRequest{Model: domain.ModelGemini2Flash, Messages: []domain.Message{domain.UserMessage("x")}})

		var perr *domain.ProviderError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, 503, perr.Status)
	})

	t.Run("should ignore a null error field", func(t *testing.T) {
		cfg, httpClient, _ := newServer(t, `data: {"candidates":[{"content":{"parts":[{"text":"a"}]}}],"error":null}`+"\n\n")
		client := gemini.NewStudio(httpClient, cfg)

		text, err := client.Completion(context.Background(), domain.GeminiStudioCredentials{APIKey: "k"},
			&domain.CompletionRequest{Model: domain.ModelGemini2Flash, Messages: []domain.Message{domain.UserMessage("x")}})

		require.NoError(t, err)
		require.Equal(t, "a", text)
	})

	t.Run("should reject unknown models", func(t *testing.T) {
		cfg, httpClient, _ := newServer(t, "")
		client := gemini.NewStudio(httpClient, cfg)

		_, err := client.ModelName(domain.ModelGPT4)
		require.ErrorIs(t, err, domain.ErrUnsupportedModel)
	})
}

func TestVertex_StreamCompletion(t *testing.T) {
	t.Run("should address the project model with a bearer token", func(t *testing.T) {
		cfg, httpClient, got := newServer(t, twoChunks)
		client := gemini.NewVertex(httpClient, cfg)

		text, err := client.Completion(context.Background(), domain.GeminiVertexCredentials{
			AccessToken: "ya29", ProjectID: "proj",
		}, &domain.CompletionRequest{Model: domain.ModelGeminiProFlash, Messages: []domain.Message{domain.UserMessage("x")}})

		require.NoError(t, err)
		require.Equal(t, "Hello world", text)
		require.Equal(t, "/v1/projects/proj/locations/us-central1/publishers/google/models/gemini-1.5-flash:streamGenerateContent", got.path)
		require.Equal(t, "alt=sse", got.query)
		require.Equal(t, "Bearer ya29", got.header.Get("Authorization"))
	})

	t.Run("should reject studio credentials", func(t *testing.T) {
		cfg, httpClient, _ := newServer(t, "")
		client := gemini.NewVertex(httpClient, cfg)

		_, err := client.Completion(context.Background(), domain.GeminiStudioCredentials{APIKey: "k"},
			&domain.CompletionRequest{Model: domain.ModelGeminiPro, Messages: []domain.Message{domain.UserMessage("x")}})

		require.ErrorIs(t, err, domain.ErrWrongCredentialKind)
	})

	t.Run("should reject raw prompts", func(t *testing.T) {
		cfg, httpClient, _ := newServer(t, "")
		client := gemini.NewVertex(httpClient, cfg)

		_, err := client.StreamPromptCompletion(context.Background(), domain.GeminiVertexCredentials{ProjectID: "p"},
			&domain.StringCompletionRequest{Model: domain.ModelGeminiPro, Prompt: "x"}, nil)

		require.ErrorIs(t, err, domain.ErrUnsupportedModel)
	})
}
