package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/davidbz/sidecar/internal/domain"
)

// Registry implements the ClientRegistry interface.
type Registry struct {
	mu      sync.RWMutex
	clients map[domain.ProviderIdentity]domain.Client
}

// NewRegistry creates a new client registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:      sync.RWMutex{},
		clients: make(map[domain.ProviderIdentity]domain.Client),
	}
}

// Register adds a client to the registry.
func (r *Registry) Register(_ context.Context, client domain.Client) error {
	if client == nil {
		return errors.New("client cannot be nil")
	}

	identity := client.Identity()
	if identity == "" {
		return errors.New("client identity cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[identity]; exists {
		return fmt.Errorf("client %s already registered", identity)
	}

	r.clients[identity] = client
	return nil
}

// Get retrieves the client for a provider identity.
func (r *Registry) Get(_ context.Context, identity domain.ProviderIdentity) (domain.Client, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: provider identity cannot be empty", domain.ErrUnsupportedProvider)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[identity]
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, identity)
	}

	return client, nil
}

// List returns every registered identity, sorted.
func (r *Registry) List(_ context.Context) ([]domain.ProviderIdentity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identities := make([]domain.ProviderIdentity, 0, len(r.clients))
	for identity := range r.clients {
		identities = append(identities, identity)
	}
	sort.Slice(identities, func(i, j int) bool { return identities[i] < identities[j] })

	return identities, nil
}

// WireName pairs a provider with its name for a model.
type WireName struct {
	Provider domain.ProviderIdentity `json:"provider"`
	Name     string                  `json:"name"`
}

// ProvidersFor returns every registered client that has a wire name for model.
func (r *Registry) ProvidersFor(ctx context.Context, model domain.ModelID) ([]WireName, error) {
	if model == "" {
		return nil, errors.New("model cannot be empty")
	}

	identities, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]WireName, 0, len(identities))
	for _, identity := range identities {
		name, nameErr := r.clients[identity].ModelName(model)
		if nameErr != nil {
			continue
		}
		names = append(names, WireName{Provider: identity, Name: name})
	}

	return names, nil
}
