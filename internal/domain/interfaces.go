package domain

import "context"

// Client is one provider adapter. Clients are stateless apart from their HTTP
// connection pool and are shared across concurrent requests.
type Client interface {
	// Identity returns the provider this client serves.
	Identity() ProviderIdentity

	// ModelName maps a ModelID to the provider's wire name.
	ModelName(model ModelID) (string, error)

	// StreamCompletion streams a chat completion into sink and returns the full text.
	StreamCompletion(ctx context.Context, creds ProviderCredentials, req *CompletionRequest, sink Sink) (string, error)

	// Completion is StreamCompletion with the deltas discarded.
	Completion(ctx context.Context, creds ProviderCredentials, req *CompletionRequest) (string, error)

	// StreamPromptCompletion streams a raw-prompt completion into sink.
	StreamPromptCompletion(
		ctx context.Context,
		creds ProviderCredentials,
		req *StringCompletionRequest,
		sink Sink,
	) (string, error)
}

// ClientRegistry maps provider identities to clients.
type ClientRegistry interface {
	// Register adds a client to the registry.
	Register(ctx context.Context, client Client) error

	// Get retrieves the client for a provider identity.
	Get(ctx context.Context, identity ProviderIdentity) (Client, error)

	// List returns every registered identity.
	List(ctx context.Context) ([]ProviderIdentity, error)
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data. It must not block.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}

// Sink receives deltas in arrival order. Send fails with ErrSinkClosed once the
// consumer has gone away.
type Sink interface {
	Send(delta Delta) error
}
