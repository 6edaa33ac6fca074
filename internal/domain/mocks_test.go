package domain_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/provider/transport"
)

// mockRegistry maps identities to clients without checking them, so tests can
// register a client under the wrong identity.
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
		return nil, fmt.Errorf("provider %s not found", identity)
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

// mockClient pushes fragments through an accumulator and then returns err.
// It records the request state it was entered in.
type mockClient struct {
	identity  domain.ProviderIdentity
	fragments []string
	err       error

	mu      sync.Mutex
	calls   int
	entered []domain.RequestState
}

func (m *mockClient) Identity() domain.ProviderIdentity { return m.identity }

func (m *mockClient) ModelName(model domain.ModelID) (string, error) {
	return string(model), nil
}

func (m *mockClient) StreamCompletion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	_ *domain.CompletionRequest,
	sink domain.Sink,
) (string, error) {
	return m.stream(ctx, creds, sink)
}

func (m *mockClient) Completion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	req *domain.CompletionRequest,
) (string, error) {
	return m.StreamCompletion(ctx, creds, req, domain.DiscardSink)
}

func (m *mockClient) StreamPromptCompletion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	_ *domain.StringCompletionRequest,
	sink domain.Sink,
) (string, error) {
	return m.stream(ctx, creds, sink)
}

func (m *mockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockClient) Entered() []domain.RequestState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RequestState(nil), m.entered...)
}

func (m *mockClient) stream(ctx context.Context, creds domain.ProviderCredentials, sink domain.Sink) (string, error) {
	m.mu.Lock()
	m.calls++
	if tracker, ok := domain.StateTrackerFrom(ctx); ok {
		m.entered = append(m.entered, tracker.State())
	}
	m.mu.Unlock()

	if err := domain.CheckCredentials(m.identity, creds); err != nil {
		return "", err
	}

	return transport.Call(ctx,
		func(context.Context) (struct{}, error) { return struct{}{}, nil },
		func(ctx context.Context, _ struct{}) (string, error) {
			acc := domain.NewAccumulator(sink, string(m.identity))
			for _, fragment := range m.fragments {
				if err := acc.Push(ctx, fragment); err != nil {
					return acc.Text(), err
				}
			}
			return acc.Text(), m.err
		})
}

type publishedEvent struct {
	eventType string
	data      map[string]interface{}
}

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (m *mockPublisher) Publish(_ context.Context, eventType string, data map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{eventType: eventType, data: data})
}

func (m *mockPublisher) Events() []publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedEvent(nil), m.events...)
}

// recordingSink keeps every delta it accepts.
type recordingSink struct {
	deltas []domain.Delta
}

func (r *recordingSink) Send(delta domain.Delta) error {
	r.deltas = append(r.deltas, delta)
	return nil
}

func chatRequest(model domain.ModelID) *domain.CompletionRequest {
	return &domain.CompletionRequest{
		Model:       model,
		Messages:    []domain.Message{domain.UserMessage("hello")},
		Temperature: 0.2,
	}
}
