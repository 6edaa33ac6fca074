// Package credstore loads named credential profiles from a YAML file. Each
// profile names a provider and carries the secrets that provider needs.
package credstore

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/davidbz/sidecar/internal/domain"
)

// EnvPrefix marks environment overrides. SIDECAR_CREDS_WORK__API_KEY sets
// the api_key of profile "work".
const EnvPrefix = "SIDECAR_CREDS_"

// ErrProfileNotFound is returned for unknown profile names.
var ErrProfileNotFound = errors.New("credential profile not found")

// Profile is one named credential entry.
type Profile struct {
	Provider     string `koanf:"provider"`
	APIKey       string `koanf:"api_key"`
	Endpoint     string `koanf:"endpoint"`
	DeploymentID string `koanf:"deployment_id"`
	APIVersion   string `koanf:"api_version"`
	AccessToken  string `koanf:"access_token"`
	ProjectID    string `koanf:"project_id"`
	Region       string `koanf:"region"`
}

type credentialsFile struct {
	Profiles map[string]Profile `koanf:"profiles"`
}

// Store holds parsed credentials by profile name. It is read-only after Load.
type Store struct {
	credentials map[string]domain.ProviderCredentials
}

// Load reads path and layers SIDECAR_CREDS_ environment overrides on top.
// A missing file yields a store built from the environment alone.
func Load(path string) (*Store, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading credentials file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading credential env vars: %w", err)
	}

	var parsed credentialsFile
	if err := k.Unmarshal("", &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling credentials: %w", err)
	}

	credentials := make(map[string]domain.ProviderCredentials, len(parsed.Profiles))
	for name, profile := range parsed.Profiles {
		creds, err := profile.expand().Credentials()
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		credentials[name] = creds
	}

	return &Store{credentials: credentials}, nil
}

// New builds a store from already parsed credentials.
func New(credentials map[string]domain.ProviderCredentials) *Store {
	copied := make(map[string]domain.ProviderCredentials, len(credentials))
	for name, creds := range credentials {
		copied[name] = creds
	}
	return &Store{credentials: copied}
}

// Get returns the credentials of profile name.
func (s *Store) Get(name string) (domain.ProviderCredentials, error) {
	creds, ok := s.credentials[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return creds, nil
}

// Names returns every profile name, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.credentials))
	for name := range s.credentials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Credentials converts the profile to the credential variant of its provider.
func (p Profile) Credentials() (domain.ProviderCredentials, error) {
	switch domain.ProviderIdentity(p.Provider) {
	case domain.ProviderOpenAI:
		return domain.OpenAICredentials{APIKey: p.APIKey}, nil
	case domain.ProviderAzure:
		return domain.AzureCredentials{
			APIKey: p.APIKey, Endpoint: p.Endpoint, DeploymentID: p.DeploymentID, APIVersion: p.APIVersion,
		}, nil
	case domain.ProviderAnthropic:
		return domain.AnthropicCredentials{APIKey: p.APIKey}, nil
	case domain.ProviderGeminiStudio:
		return domain.GeminiStudioCredentials{APIKey: p.APIKey}, nil
	case domain.ProviderGeminiVertex:
		return domain.GeminiVertexCredentials{AccessToken: p.AccessToken, ProjectID: p.ProjectID, Region: p.Region}, nil
	case domain.ProviderTogether:
		return domain.TogetherCredentials{APIKey: p.APIKey}, nil
	case domain.ProviderFireworks:
		return domain.FireworksCredentials{APIKey: p.APIKey}, nil
	case domain.ProviderOllama:
		return domain.OllamaCredentials{Endpoint: p.Endpoint}, nil
	case domain.ProviderOpenRouter:
		return domain.OpenRouterCredentials{APIKey: p.APIKey}, nil
	case domain.ProviderGroq:
		return domain.GroqCredentials{APIKey: p.APIKey}, nil
	case domain.ProviderOpenAICompatible:
		return domain.OpenAICompatibleCredentials{APIKey: p.APIKey, Endpoint: p.Endpoint}, nil
	case domain.ProviderCodeStory:
		return domain.CodeStoryCredentials{APIKey: p.APIKey}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, p.Provider)
	}
}

// expand resolves ${VAR} placeholders against the environment.
func (p Profile) expand() Profile {
	p.APIKey = os.ExpandEnv(p.APIKey)
	p.Endpoint = os.ExpandEnv(p.Endpoint)
	p.DeploymentID = os.ExpandEnv(p.DeploymentID)
	p.APIVersion = os.ExpandEnv(p.APIVersion)
	p.AccessToken = os.ExpandEnv(p.AccessToken)
	p.ProjectID = os.ExpandEnv(p.ProjectID)
	p.Region = os.ExpandEnv(p.Region)
	return p
}

// envKey maps SIDECAR_CREDS_WORK__API_KEY to profiles.work.api_key.
func envKey(name string) string {
	parts := strings.SplitN(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "__", 2)
	return "profiles." + strings.Join(parts, ".")
}
