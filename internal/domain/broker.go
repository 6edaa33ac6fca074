package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/davidbz/sidecar/internal/observability"
)

const (
	// MetadataEventType names the caller's event in the request metadata bag.
	MetadataEventType = "event_type"

	// MetadataRootID groups every request of one user action.
	MetadataRootID = "root_id"

	// EventLLMRequest is published once per broker call.
	EventLLMRequest = "llm.request"

	maxTemperature = 2.0
)

// Broker is the single entry point for completions. It routes each request to
// the client registered for the credential identity.
type Broker struct {
	registry  ClientRegistry
	publisher EventPublisher
}

// NewBroker creates a new broker (DI constructor).
func NewBroker(registry ClientRegistry, publisher EventPublisher) *Broker {
	return &Broker{
		registry:  registry,
		publisher: publisher,
	}
}

// StreamCompletion streams a chat completion.
func (b *Broker) StreamCompletion(
	ctx context.Context,
	creds ProviderCredentials,
	req *CompletionRequest,
	sink Sink,
) (string, error) {
	if err := validateChat(req); err != nil {
		return "", err
	}

	ctx, client, err := b.resolve(ctx, creds, req.Model, req.Metadata)
	if err != nil {
		return "", err
	}

	return dispatch(ctx, creds, "chat completion", func(ctx context.Context) (string, error) {
		return client.StreamCompletion(ctx, creds, req, sinkOrDiscard(sink))
	})
}

// StreamStringCompletion streams a raw-prompt completion.
func (b *Broker) StreamStringCompletion(
	ctx context.Context,
	creds ProviderCredentials,
	req *StringCompletionRequest,
	sink Sink,
) (string, error) {
	if err := validatePrompt(req); err != nil {
		return "", err
	}

	ctx, client, err := b.resolve(ctx, creds, req.Model, req.Metadata)
	if err != nil {
		return "", err
	}

	return dispatch(ctx, creds, "prompt completion", func(ctx context.Context) (string, error) {
		return client.StreamPromptCompletion(ctx, creds, req, sinkOrDiscard(sink))
	})
}

// dispatch runs call under the request's state tracker. A request that has
// not started enters Formatting before the client formats it; a retry keeps
// the errored tracker so the client re-enters Connecting.
func dispatch(
	ctx context.Context,
	creds ProviderCredentials,
	kind string,
	call func(ctx context.Context) (string, error),
) (string, error) {
	tracker, ok := StateTrackerFrom(ctx)
	if !ok {
		tracker = NewStateTracker()
		ctx = WithStateTracker(ctx, tracker)
	}
	if tracker.State() == StateIdle {
		if err := tracker.Transition(ctx, StateFormatting); err != nil {
			return "", err
		}
	}

	text, err := call(ctx)
	if !tracker.State().Terminal() {
		tracker.Finish(ctx, err)
	}
	if err != nil {
		observability.FromContext(ctx).Debug(kind+" failed", observability.Error(err))
		return text, fmt.Errorf("%s: %w", creds.Identity(), err)
	}
	return text, nil
}

// StreamAnswer dispatches on whichever variant of req is set.
func (b *Broker) StreamAnswer(ctx context.Context, creds ProviderCredentials, req AnswerRequest, sink Sink) (string, error) {
	switch {
	case req.Chat != nil && req.Prompt != nil:
		return "", fmt.Errorf("%w: answer request carries both chat and prompt", ErrInvalidRequest)
	case req.Chat != nil:
		return b.StreamCompletion(ctx, creds, req.Chat, sink)
	case req.Prompt != nil:
		return b.StreamStringCompletion(ctx, creds, req.Prompt, sink)
	default:
		return "", fmt.Errorf("%w: request cannot be nil", ErrInvalidRequest)
	}
}

// Completion returns the full chat completion text without streaming.
func (b *Broker) Completion(ctx context.Context, creds ProviderCredentials, req *CompletionRequest) (string, error) {
	return b.StreamCompletion(ctx, creds, req, DiscardSink)
}

// resolve finds the client for creds and enriches ctx for logging.
func (b *Broker) resolve(
	ctx context.Context,
	creds ProviderCredentials,
	model ModelID,
	metadata map[string]string,
) (context.Context, Client, error) {
	if creds == nil {
		return ctx, nil, fmt.Errorf("%w: credentials cannot be nil", ErrInvalidRequest)
	}
	identity := creds.Identity()

	client, err := b.registry.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrUnsupportedProvider) {
			return ctx, nil, err
		}
		return ctx, nil, fmt.Errorf("%w: %w", ErrUnsupportedProvider, err)
	}
	if client.Identity() != identity {
		return ctx, nil, fmt.Errorf("%w: %s credentials resolved to %s client",
			ErrWrongCredentialKind, identity, client.Identity())
	}

	rootID := metadata[MetadataRootID]
	if rootID == "" {
		rootID = observability.GetRootID(ctx)
	}
	if rootID == "" {
		rootID = uuid.NewString()
	}
	eventType := metadata[MetadataEventType]

	ctx = observability.WithProvider(ctx, string(identity))
	ctx = observability.WithModel(ctx, string(model))
	ctx = observability.WithRootID(ctx, rootID)
	ctx = observability.WithEventType(ctx, eventType)

	if b.publisher != nil {
		b.publisher.Publish(ctx, EventLLMRequest, map[string]interface{}{
			"provider_identity": string(identity),
			"model":             string(model),
			"event_type":        eventType,
			"root_id":           rootID,
		})
	}

	return ctx, client, nil
}

func validateChat(req *CompletionRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request cannot be nil", ErrInvalidRequest)
	}
	if req.Model == "" {
		return fmt.Errorf("%w: model cannot be empty", ErrInvalidRequest)
	}
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages cannot be empty", ErrInvalidRequest)
	}
	return validateSampling(req.Temperature, req.MaxTokens)
}

func validatePrompt(req *StringCompletionRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request cannot be nil", ErrInvalidRequest)
	}
	if req.Model == "" {
		return fmt.Errorf("%w: model cannot be empty", ErrInvalidRequest)
	}
	return validateSampling(req.Temperature, req.MaxTokens)
}

func validateSampling(temperature float64, maxTokens int) error {
	if temperature < 0 || temperature > maxTemperature {
		return fmt.Errorf("%w: temperature %.2f outside [0, 2]", ErrInvalidRequest, temperature)
	}
	if maxTokens < 0 {
		return fmt.Errorf("%w: max tokens cannot be negative", ErrInvalidRequest)
	}
	return nil
}

func sinkOrDiscard(sink Sink) Sink {
	if sink == nil {
		return DiscardSink
	}
	return sink
}
