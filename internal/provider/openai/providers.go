package openai

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/davidbz/sidecar/internal/config"
	"github.com/davidbz/sidecar/internal/domain"
)

func bearer(key string) http.Header {
	headers := http.Header{}
	if key != "" {
		headers.Set("Authorization", "Bearer "+key)
	}
	return headers
}

func identityModels() map[domain.ModelID]string {
	models := make(map[domain.ModelID]string, len(openAIModels))
	for id := range openAIModels {
		models[id] = string(id)
	}
	return models
}

// NewOpenAI creates the OpenAI client. Chat only.
func NewOpenAI(httpClient *http.Client, cfg *config.ProvidersConfig) *Client {
	return &Client{
		identity:   domain.ProviderOpenAI,
		models:     openAIModels,
		httpClient: httpClient,
		resolve: func(creds domain.ProviderCredentials) (endpoint, error) {
			return endpoint{baseURL: strings.TrimRight(cfg.OpenAIBaseURL, "/"), headers: bearer(domain.APIKeyOf(creds))}, nil
		},
	}
}

// NewAzure creates the Azure OpenAI client. The deployment named in the
// credentials decides the model; the request model only has to be an
// OpenAI model.
func NewAzure(httpClient *http.Client, cfg *config.ProvidersConfig) *Client {
	return &Client{
		identity:   domain.ProviderAzure,
		models:     openAIModels,
		httpClient: httpClient,
		resolve: func(creds domain.ProviderCredentials) (endpoint, error) {
			azure, _ := creds.(domain.AzureCredentials)
			if azure.Endpoint == "" || azure.DeploymentID == "" {
				return endpoint{}, fmt.Errorf("%w: azure credentials need endpoint and deployment", domain.ErrInvalidRequest)
			}
			version := azure.APIVersion
			if version == "" {
				version = cfg.AzureAPIVersion
			}
			headers := http.Header{}
			headers.Set("api-key", azure.APIKey)
			return endpoint{
				baseURL: strings.TrimRight(azure.Endpoint, "/") + "/openai/deployments/" + url.PathEscape(azure.DeploymentID),
				headers: headers,
				model:   azure.DeploymentID,
				query:   "?api-version=" + url.QueryEscape(version),
			}, nil
		},
	}
}

// NewFireworks creates the Fireworks client. It serves both chat and raw prompts.
func NewFireworks(httpClient *http.Client, cfg *config.ProvidersConfig) *Client {
	return &Client{
		identity:      domain.ProviderFireworks,
		models:        fireworksModels,
		acceptsPrompt: true,
		httpClient:    httpClient,
		resolve: func(creds domain.ProviderCredentials) (endpoint, error) {
			return endpoint{baseURL: strings.TrimRight(cfg.FireworksBaseURL, "/"), headers: bearer(domain.APIKeyOf(creds))}, nil
		},
	}
}

// NewGroq creates the Groq client. Chat only.
func NewGroq(httpClient *http.Client, cfg *config.ProvidersConfig) *Client {
	return &Client{
		identity:   domain.ProviderGroq,
		models:     groqModels,
		httpClient: httpClient,
		resolve: func(creds domain.ProviderCredentials) (endpoint, error) {
			return endpoint{baseURL: strings.TrimRight(cfg.GroqBaseURL, "/"), headers: bearer(domain.APIKeyOf(creds))}, nil
		},
	}
}

// NewOpenRouter creates the OpenRouter client. OpenRouter requires the
// referer and title headers; custom model names pass through unchanged.
func NewOpenRouter(httpClient *http.Client, cfg *config.ProvidersConfig) *Client {
	return &Client{
		identity:    domain.ProviderOpenRouter,
		models:      openRouterModels,
		allowCustom: true,
		httpClient:  httpClient,
		resolve: func(creds domain.ProviderCredentials) (endpoint, error) {
			headers := bearer(domain.APIKeyOf(creds))
			headers.Set("HTTP-Referer", cfg.OpenRouterReferer)
			headers.Set("X-Title", cfg.OpenRouterTitle)
			return endpoint{baseURL: strings.TrimRight(cfg.OpenRouterBaseURL, "/"), headers: headers}, nil
		},
	}
}

// NewCompatible creates the client for self-hosted OpenAI-compatible servers.
// Every model name is passed through as-is.
func NewCompatible(httpClient *http.Client) *Client {
	return &Client{
		identity:      domain.ProviderOpenAICompatible,
		models:        identityModels(),
		allowCustom:   true,
		acceptsPrompt: true,
		httpClient:    httpClient,
		resolve: func(creds domain.ProviderCredentials) (endpoint, error) {
			compatible, _ := creds.(domain.OpenAICompatibleCredentials)
			if compatible.Endpoint == "" {
				return endpoint{}, fmt.Errorf("%w: openai-compatible credentials need an endpoint", domain.ErrInvalidRequest)
			}
			return endpoint{baseURL: strings.TrimRight(compatible.Endpoint, "/"), headers: bearer(compatible.APIKey)}, nil
		},
	}
}

// NewCodeStory creates the client for the hosted CodeStory proxy, which
// fronts the OpenAI models.
func NewCodeStory(httpClient *http.Client, cfg *config.ProvidersConfig) *Client {
	return &Client{
		identity:   domain.ProviderCodeStory,
		models:     identityModels(),
		httpClient: httpClient,
		resolve: func(creds domain.ProviderCredentials) (endpoint, error) {
			if cfg.CodeStoryBaseURL == "" {
				return endpoint{}, errors.New("codestory base url is not configured")
			}
			return endpoint{baseURL: strings.TrimRight(cfg.CodeStoryBaseURL, "/"), headers: bearer(domain.APIKeyOf(creds))}, nil
		},
	}
}
