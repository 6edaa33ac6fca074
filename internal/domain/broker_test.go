package domain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/observability"
)

func TestBroker_StreamCompletion(t *testing.T) {
	t.Run("should route to the client matching the credential identity", func(t *testing.T) {
		openaiClient := &mockClient{identity: domain.ProviderOpenAI, fragments: []string{"H", "I"}}
		anthropicClient := &mockClient{identity: domain.ProviderAnthropic, fragments: []string{"nope"}}
		broker := domain.NewBroker(newMockRegistry(openaiClient, anthropicClient), nil)
		sink := &recordingSink{}

		text, err := broker.StreamCompletion(context.Background(),
			domain.OpenAICredentials{APIKey: "k"}, chatRequest(domain.ModelGPT4), sink)

		require.NoError(t, err)
		require.Equal(t, "HI", text)
		require.Equal(t, 1, openaiClient.Calls())
		require.Zero(t, anthropicClient.Calls())
		require.Len(t, sink.deltas, 2)
		require.Equal(t, "H", sink.deltas[0].TextSoFar)
		require.Equal(t, "HI", sink.deltas[1].TextSoFar)
		require.Equal(t, "I", sink.deltas[1].Increment())
	})

	t.Run("should fail with UnsupportedProvider when no client is registered", func(t *testing.T) {
		broker := domain.NewBroker(newMockRegistry(), nil)

		_, err := broker.StreamCompletion(context.Background(),
			domain.GroqCredentials{APIKey: "k"}, chatRequest(domain.ModelMixtral), nil)

		require.ErrorIs(t, err, domain.ErrUnsupportedProvider)
	})

	t.Run("should fail with WrongCredentialKind when the registry returns another client", func(t *testing.T) {
		registry := newMockRegistry()
		registry.clients[domain.ProviderOpenAI] = &mockClient{identity: domain.ProviderAzure}
		broker := domain.NewBroker(registry, nil)

		_, err := broker.StreamCompletion(context.Background(),
			domain.OpenAICredentials{APIKey: "k"}, chatRequest(domain.ModelGPT4), nil)

		require.ErrorIs(t, err, domain.ErrWrongCredentialKind)
	})

	t.Run("should reject invalid requests before calling a client", func(t *testing.T) {
		client := &mockClient{identity: domain.ProviderOpenAI}
		broker := domain.NewBroker(newMockRegistry(client), nil)
		creds := domain.OpenAICredentials{APIKey: "k"}

		_, err := broker.StreamCompletion(context.Background(), creds, nil, nil)
		require.ErrorIs(t, err, domain.ErrInvalidRequest)

		_, err = broker.StreamCompletion(context.Background(), creds,
			&domain.CompletionRequest{Model: domain.ModelGPT4}, nil)
		require.ErrorIs(t, err, domain.ErrInvalidRequest)

		hot := chatRequest(domain.ModelGPT4)
		hot.Temperature = 2.5
		_, err = broker.StreamCompletion(context.Background(), creds, hot, nil)
		require.ErrorIs(t, err, domain.ErrInvalidRequest)

		_, err = broker.StreamCompletion(context.Background(), nil, chatRequest(domain.ModelGPT4), nil)
		require.ErrorIs(t, err, domain.ErrInvalidRequest)

		require.Zero(t, client.Calls())
	})

	t.Run("should publish one request event with the caller metadata", func(t *testing.T) {
		publisher := &mockPublisher{}
		broker := domain.NewBroker(newMockRegistry(&mockClient{identity: domain.ProviderOpenAI}), publisher)
		req := chatRequest(domain.ModelGPT4)
		req.Metadata = map[string]string{
			domain.MetadataEventType: "agent_chat",
			domain.MetadataRootID:    "root-1",
		}

		_, err := broker.StreamCompletion(context.Background(), domain.OpenAICredentials{}, req, nil)
		require.NoError(t, err)

		events := publisher.Events()
		require.Len(t, events, 1)
		require.Equal(t, domain.EventLLMRequest, events[0].eventType)
		require.Equal(t, "openai", events[0].data["provider_identity"])
		require.Equal(t, "gpt-4", events[0].data["model"])
		require.Equal(t, "agent_chat", events[0].data["event_type"])
		require.Equal(t, "root-1", events[0].data["root_id"])
	})

	t.Run("should keep the root id already on the context", func(t *testing.T) {
		publisher := &mockPublisher{}
		broker := domain.NewBroker(newMockRegistry(&mockClient{identity: domain.ProviderOpenAI}), publisher)
		ctx := observability.WithRootID(context.Background(), "header-root")

		_, err := broker.StreamCompletion(ctx, domain.OpenAICredentials{}, chatRequest(domain.ModelGPT4), nil)
		require.NoError(t, err)

		events := publisher.Events()
		require.Len(t, events, 1)
		require.Equal(t, "header-root", events[0].data["root_id"])
	})

	t.Run("should generate a root id when the caller gives none", func(t *testing.T) {
		publisher := &mockPublisher{}
		broker := domain.NewBroker(newMockRegistry(&mockClient{identity: domain.ProviderOpenAI}), publisher)

		_, err := broker.StreamCompletion(context.Background(), domain.OpenAICredentials{}, chatRequest(domain.ModelGPT4), nil)
		require.NoError(t, err)

		events := publisher.Events()
		require.Len(t, events, 1)
		require.NotEmpty(t, events[0].data["root_id"])
	})
}

func TestBroker_StreamAnswer(t *testing.T) {
	t.Run("should dispatch raw prompts to the prompt path", func(t *testing.T) {
		client := &mockClient{identity: domain.ProviderTogether, fragments: []string{"ok"}}
		broker := domain.NewBroker(newMockRegistry(client), nil)

		text, err := broker.StreamAnswer(context.Background(), domain.TogetherCredentials{APIKey: "k"},
			domain.PromptAnswer(&domain.StringCompletionRequest{Model: domain.ModelMixtral, Prompt: "[INST] hi [/INST]"}), nil)

		require.NoError(t, err)
		require.Equal(t, "ok", text)
	})

	t.Run("should reject requests carrying neither or both variants", func(t *testing.T) {
		broker := domain.NewBroker(newMockRegistry(), nil)
		creds := domain.OpenAICredentials{}

		_, err := broker.StreamAnswer(context.Background(), creds, domain.AnswerRequest{}, nil)
		require.ErrorIs(t, err, domain.ErrInvalidRequest)

		_, err = broker.StreamAnswer(context.Background(), creds, domain.AnswerRequest{
			Chat:   chatRequest(domain.ModelGPT4),
			Prompt: &domain.StringCompletionRequest{Model: domain.ModelGPT4},
		}, nil)
		require.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestBroker_Completion(t *testing.T) {
	t.Run("should return the full text without a sink", func(t *testing.T) {
		broker := domain.NewBroker(newMockRegistry(&mockClient{identity: domain.ProviderOllama, fragments: []string{"Hel", "lo"}}), nil)

		text, err := broker.Completion(context.Background(), domain.OllamaCredentials{}, chatRequest(domain.ModelLlama3_8bInstruct))

		require.NoError(t, err)
		require.Equal(t, "Hello", text)
	})
}
