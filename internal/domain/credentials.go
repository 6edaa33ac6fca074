package domain

import "fmt"

// ProviderIdentity names a remote LLM vendor. It carries no secrets.
type ProviderIdentity string

const (
	ProviderOpenAI           ProviderIdentity = "openai"
	ProviderAnthropic        ProviderIdentity = "anthropic"
	ProviderGeminiStudio     ProviderIdentity = "gemini-studio"
	ProviderGeminiVertex     ProviderIdentity = "gemini-vertex"
	ProviderTogether         ProviderIdentity = "together"
	ProviderFireworks        ProviderIdentity = "fireworks"
	ProviderOllama           ProviderIdentity = "ollama"
	ProviderOpenRouter       ProviderIdentity = "openrouter"
	ProviderGroq             ProviderIdentity = "groq"
	ProviderOpenAICompatible ProviderIdentity = "openai-compatible"
	ProviderAzure            ProviderIdentity = "azure"
	ProviderCodeStory        ProviderIdentity = "codestory"
)

// Identities lists every provider identity.
func Identities() []ProviderIdentity {
	return []ProviderIdentity{
		ProviderOpenAI, ProviderAnthropic, ProviderGeminiStudio, ProviderGeminiVertex,
		ProviderTogether, ProviderFireworks, ProviderOllama, ProviderOpenRouter,
		ProviderGroq, ProviderOpenAICompatible, ProviderAzure, ProviderCodeStory,
	}
}

// Accepts reports whether creds is a valid credential variant for this identity.
func (p ProviderIdentity) Accepts(creds ProviderCredentials) bool {
	return creds != nil && creds.Identity() == p
}

// ProviderCredentials pairs a ProviderIdentity with the secret material needed
// to call it. The set of implementations is closed to this package.
type ProviderCredentials interface {
	Identity() ProviderIdentity
	sealed()
}

type OpenAICredentials struct {
	APIKey string
}

type AzureCredentials struct {
	APIKey       string
	Endpoint     string
	DeploymentID string
	APIVersion   string
}

type AnthropicCredentials struct {
	APIKey string
}

type GeminiStudioCredentials struct {
	APIKey string
}

// GeminiVertexCredentials authenticate with an OAuth access token against a
// Vertex AI project.
type GeminiVertexCredentials struct {
	AccessToken string
	ProjectID   string
	Region      string
}

type TogetherCredentials struct {
	APIKey string
}

type FireworksCredentials struct {
	APIKey string
}

// OllamaCredentials only carry an optional endpoint; Ollama has no auth.
type OllamaCredentials struct {
	Endpoint string
}

type OpenRouterCredentials struct {
	APIKey string
}

type GroqCredentials struct {
	APIKey string
}

// OpenAICompatibleCredentials target any server speaking the OpenAI chat protocol.
type OpenAICompatibleCredentials struct {
	APIKey   string
	Endpoint string
}

type CodeStoryCredentials struct {
	APIKey string
}

func (OpenAICredentials) Identity() ProviderIdentity           { return ProviderOpenAI }
func (AzureCredentials) Identity() ProviderIdentity            { return ProviderAzure }
func (AnthropicCredentials) Identity() ProviderIdentity        { return ProviderAnthropic }
func (GeminiStudioCredentials) Identity() ProviderIdentity     { return ProviderGeminiStudio }
func (GeminiVertexCredentials) Identity() ProviderIdentity     { return ProviderGeminiVertex }
func (TogetherCredentials) Identity() ProviderIdentity         { return ProviderTogether }
func (FireworksCredentials) Identity() ProviderIdentity        { return ProviderFireworks }
func (OllamaCredentials) Identity() ProviderIdentity           { return ProviderOllama }
func (OpenRouterCredentials) Identity() ProviderIdentity       { return ProviderOpenRouter }
func (GroqCredentials) Identity() ProviderIdentity             { return ProviderGroq }
func (OpenAICompatibleCredentials) Identity() ProviderIdentity { return ProviderOpenAICompatible }
func (CodeStoryCredentials) Identity() ProviderIdentity        { return ProviderCodeStory }

func (OpenAICredentials) sealed()           {}
func (AzureCredentials) sealed()            {}
func (AnthropicCredentials) sealed()        {}
func (GeminiStudioCredentials) sealed()     {}
func (GeminiVertexCredentials) sealed()     {}
func (TogetherCredentials) sealed()         {}
func (FireworksCredentials) sealed()        {}
func (OllamaCredentials) sealed()           {}
func (OpenRouterCredentials) sealed()       {}
func (GroqCredentials) sealed()             {}
func (OpenAICompatibleCredentials) sealed() {}
func (CodeStoryCredentials) sealed()        {}

// CheckCredentials returns ErrWrongCredentialKind when creds do not belong to want.
func CheckCredentials(want ProviderIdentity, creds ProviderCredentials) error {
	if creds == nil {
		return fmt.Errorf("%w: %s client received no credentials", ErrWrongCredentialKind, want)
	}
	if !want.Accepts(creds) {
		return fmt.Errorf("%w: %s client received %s credentials", ErrWrongCredentialKind, want, creds.Identity())
	}
	return nil
}

// APIKeyOf extracts the bearer secret from credentials that carry one.
func APIKeyOf(creds ProviderCredentials) string {
	switch c := creds.(type) {
	case OpenAICredentials:
		return c.APIKey
	case AzureCredentials:
		return c.APIKey
	case AnthropicCredentials:
		return c.APIKey
	case GeminiStudioCredentials:
		return c.APIKey
	case GeminiVertexCredentials:
		return c.AccessToken
	case TogetherCredentials:
		return c.APIKey
	case FireworksCredentials:
		return c.APIKey
	case OpenRouterCredentials:
		return c.APIKey
	case GroqCredentials:
		return c.APIKey
	case OpenAICompatibleCredentials:
		return c.APIKey
	case CodeStoryCredentials:
		return c.APIKey
	default:
		return ""
	}
}
