package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"
)

// Config represents the sidecar configuration.
type Config struct {
	Server      ServerConfig
	CORS        CORSConfig
	HTTPClient  HTTPClientConfig
	Providers   ProvidersConfig
	Log         LogConfig
	Credentials CredentialsConfig
	Events      EventsConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"42424"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"0"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization,X-Credentials"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// HTTPClientConfig bounds provider connections. There is no overall deadline;
// callers impose one through the context if they want it.
type HTTPClientConfig struct {
	ConnectTimeout  time.Duration `env:"LLM_CONNECT_TIMEOUT"   envDefault:"30s"`
	ReadIdleTimeout time.Duration `env:"LLM_READ_IDLE_TIMEOUT" envDefault:"60s"`
	MaxIdleConns    int           `env:"LLM_MAX_IDLE_CONNS"    envDefault:"64"`
}

// ProvidersConfig holds the default endpoint of every provider. Credentials
// may override the endpoint per request where the provider allows it.
type ProvidersConfig struct {
	OpenAIBaseURL       string `env:"OPENAI_BASE_URL"        envDefault:"https://api.openai.com/v1"`
	AzureAPIVersion     string `env:"AZURE_API_VERSION"      envDefault:"2024-02-01"`
	AnthropicBaseURL    string `env:"ANTHROPIC_BASE_URL"     envDefault:"https://api.anthropic.com/v1"`
	AnthropicMaxTokens  int    `env:"ANTHROPIC_MAX_TOKENS"   envDefault:"4096"`
	GeminiStudioBaseURL string `env:"GEMINI_STUDIO_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiVertexRegion  string `env:"GEMINI_VERTEX_REGION"   envDefault:"us-central1"`
	GeminiVertexBaseURL string `env:"GEMINI_VERTEX_BASE_URL"`
	TogetherBaseURL     string `env:"TOGETHER_BASE_URL"      envDefault:"https://api.together.xyz"`
	FireworksBaseURL    string `env:"FIREWORKS_BASE_URL"     envDefault:"https://api.fireworks.ai/inference/v1"`
	OllamaBaseURL       string `env:"OLLAMA_BASE_URL"        envDefault:"http://localhost:11434"`
	OpenRouterBaseURL   string `env:"OPENROUTER_BASE_URL"    envDefault:"https://openrouter.ai/api/v1"`
	OpenRouterReferer   string `env:"OPENROUTER_REFERER"     envDefault:"https://aide.dev"`
	OpenRouterTitle     string `env:"OPENROUTER_TITLE"       envDefault:"aide"`
	GroqBaseURL         string `env:"GROQ_BASE_URL"          envDefault:"https://api.groq.com/openai/v1"`
	CodeStoryBaseURL    string `env:"CODESTORY_BASE_URL"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL"       envDefault:"info"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// CredentialsConfig locates the credential store file.
type CredentialsConfig struct {
	File string `env:"SIDECAR_CREDENTIALS_FILE" envDefault:"credentials.yaml"`
}

// EventsConfig sizes the asynchronous event bus.
type EventsConfig struct {
	Buffer int `env:"EVENT_BUS_BUFFER" envDefault:"256"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*HTTPClientConfig
	*ProvidersConfig
	*LogConfig
	*CredentialsConfig
	*EventsConfig
}

// Load loads environment files and parses configuration.
func Load(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.HTTPClient,
		&cfg.Providers,
		&cfg.Log,
		&cfg.Credentials,
		&cfg.Events,
	}
}
