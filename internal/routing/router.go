// Package routing picks the credential profile that serves a request.
package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/observability"
)

// ErrNoProfile means no stored profile targets a provider serving the model.
var ErrNoProfile = errors.New("no credential profile serves model")

// ProfileSource is the read side of the credential store.
type ProfileSource interface {
	Names() []string
	Get(name string) (domain.ProviderCredentials, error)
}

// Router resolves credential profiles against the client registry.
type Router struct {
	registry domain.ClientRegistry
	profiles ProfileSource
}

// NewRouter creates a new router.
func NewRouter(registry domain.ClientRegistry, profiles ProfileSource) *Router {
	return &Router{
		registry: registry,
		profiles: profiles,
	}
}

// Resolve returns the named profile, or routes by model when name is empty.
func (r *Router) Resolve(ctx context.Context, name string, model domain.ModelID) (string, domain.ProviderCredentials, error) {
	if name == "" {
		return r.Route(ctx, model)
	}

	creds, err := r.profiles.Get(name)
	if err != nil {
		return "", nil, err
	}
	return name, creds, nil
}

// Route selects the first profile, in name order, whose provider has a wire
// name for model.
func (r *Router) Route(ctx context.Context, model domain.ModelID) (string, domain.ProviderCredentials, error) {
	if model == "" {
		return "", nil, fmt.Errorf("%w: model name is required", domain.ErrInvalidRequest)
	}

	for _, name := range r.profiles.Names() {
		creds, err := r.profiles.Get(name)
		if err != nil {
			continue
		}

		client, err := r.registry.Get(ctx, creds.Identity())
		if err != nil {
			continue
		}

		if _, err := client.ModelName(model); err == nil {
			observability.FromContext(ctx).Debug("routed request to profile",
				observability.String("profile", name),
				observability.String("provider", string(creds.Identity())))
			return name, creds, nil
		}
	}

	return "", nil, fmt.Errorf("%w: %s", ErrNoProfile, model)
}
