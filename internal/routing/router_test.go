package routing_test

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/routing"
)

// mockRegistry is a mock implementation of ClientRegistry for testing.
type mockRegistry struct {
	clients map[domain.ProviderIdentity]domain.Client
}

func newMockRegistry(clients ...domain.Client) *mockRegistry {
	registry := &mockRegistry{clients: make(map[domain.ProviderIdentity]domain.Client)}
	for _, client := range clients {
		registry.clients[client.Identity()] = client
	}
	return registry
}

func (m *mockRegistry) Register(_ context.Context, client domain.Client) error {
	m.clients[client.Identity()] = client
	return nil
}

func (m *mockRegistry) Get(_ context.Context, identity domain.ProviderIdentity) (domain.Client, error) {
	client, exists := m.clients[identity]
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, identity)
	}
	return client, nil
}

func (m *mockRegistry) List(_ context.Context) ([]domain.ProviderIdentity, error) {
	identities := make([]domain.ProviderIdentity, 0, len(m.clients))
	for identity := range m.clients {
		identities = append(identities, identity)
	}
	return identities, nil
}

// mockClient serves a fixed set of models.
type mockClient struct {
	identity domain.ProviderIdentity
	models   map[domain.ModelID]string
}

func (m *mockClient) Identity() domain.ProviderIdentity { return m.identity }

func (m *mockClient) ModelName(model domain.ModelID) (string, error) {
	name, ok := m.models[model]
	if !ok {
		return "", domain.ErrUnsupportedModel
	}
	return name, nil
}

func (m *mockClient) StreamCompletion(
	context.Context, domain.ProviderCredentials, *domain.CompletionRequest, domain.Sink,
) (string, error) {
	return "", nil
}

func (m *mockClient) Completion(context.Context, domain.ProviderCredentials, *domain.CompletionRequest) (string, error) {
	return "", nil
}

func (m *mockClient) StreamPromptCompletion(
	context.Context, domain.ProviderCredentials, *domain.StringCompletionRequest, domain.Sink,
) (string, error) {
	return "", nil
}

type mockProfiles map[string]domain.ProviderCredentials

func (m mockProfiles) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m mockProfiles) Get(name string) (domain.ProviderCredentials, error) {
	creds, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("profile %s not found", name)
	}
	return creds, nil
}

func TestRouter_Route(t *testing.T) {
	registry := newMockRegistry(
		&mockClient{identity: domain.ProviderAnthropic, models: map[domain.ModelID]string{
			domain.ModelClaudeSonnet: "claude-3-5-sonnet-20241022",
		}},
		&mockClient{identity: domain.ProviderOpenAI, models: map[domain.ModelID]string{
			domain.ModelGPT4O: "gpt-4o",
		}},
	)
	profiles := mockProfiles{
		"a-claude": domain.AnthropicCredentials{APIKey: "ant"},
		"b-openai": domain.OpenAICredentials{APIKey: "oai"},
		"c-groq":   domain.GroqCredentials{APIKey: "groq"},
	}

	t.Run("should route to the profile whose provider serves the model", func(t *testing.T) {
		router := routing.NewRouter(registry, profiles)

		name, creds, err := router.Route(context.Background(), domain.ModelGPT4O)
		require.NoError(t, err)
		require.Equal(t, "b-openai", name)
		require.Equal(t, domain.OpenAICredentials{APIKey: "oai"}, creds)
	})

	t.Run("should fail when no profile serves the model", func(t *testing.T) {
		router := routing.NewRouter(registry, profiles)

		_, _, err := router.Route(context.Background(), domain.ModelMixtral)
		require.ErrorIs(t, err, routing.ErrNoProfile)
	})

	t.Run("should require a model", func(t *testing.T) {
		router := routing.NewRouter(registry, profiles)

		_, _, err := router.Route(context.Background(), "")
		require.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestRouter_Resolve(t *testing.T) {
	registry := newMockRegistry(&mockClient{identity: domain.ProviderOpenAI, models: map[domain.ModelID]string{
		domain.ModelGPT4: "gpt-4",
	}})
	profiles := mockProfiles{
		"work": domain.OpenAICredentials{APIKey: "w"},
		"home": domain.OpenAICredentials{APIKey: "h"},
	}

	t.Run("should return the named profile", func(t *testing.T) {
		router := routing.NewRouter(registry, profiles)

		name, creds, err := router.Resolve(context.Background(), "work", domain.ModelGPT4)
		require.NoError(t, err)
		require.Equal(t, "work", name)
		require.Equal(t, domain.OpenAICredentials{APIKey: "w"}, creds)
	})

	t.Run("should route when no profile is named", func(t *testing.T) {
		router := routing.NewRouter(registry, profiles)

		name, _, err := router.Resolve(context.Background(), "", domain.ModelGPT4)
		require.NoError(t, err)
		require.Equal(t, "home", name)
	})

	t.Run("should surface unknown profile names", func(t *testing.T) {
		router := routing.NewRouter(registry, profiles)

		_, _, err := router.Resolve(context.Background(), "missing", domain.ModelGPT4)
		require.Error(t, err)
	})
}
