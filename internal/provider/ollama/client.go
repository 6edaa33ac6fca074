// Package ollama implements the client for a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/davidbz/sidecar/internal/config"
	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/provider/transport"
	"github.com/davidbz/sidecar/internal/stream"
)

//nolint:gochecknoglobals // wire name table
var models = map[domain.ModelID]string{
	domain.ModelMixtral:                  "mixtral",
	domain.ModelMistralInstruct:          "mistral",
	domain.ModelCodeLlama7BInstruct:      "codellama:7b-instruct",
	domain.ModelCodeLlama13BInstruct:     "codellama:13b-instruct",
	domain.ModelCodeLlama13B:             "codellama:13b-code",
	domain.ModelCodeLlama70BInstruct:     "codellama:70b-instruct",
	domain.ModelDeepSeekCoder1_3BBase:    "deepseek-coder:1.3b-base",
	domain.ModelDeepSeekCoder6BInstruct:  "deepseek-coder:6.7b-instruct",
	domain.ModelDeepSeekCoder33BInstruct: "deepseek-coder:33b-instruct",
	domain.ModelDeepSeekCoderV2:          "deepseek-coder-v2",
	domain.ModelLlama3_8bInstruct:        "llama3:8b",
	domain.ModelLlama3_1_8bInstruct:      "llama3.1:8b",
	domain.ModelLlama3_1_70bInstruct:     "llama3.1:70b",
	domain.ModelStarCoder2:               "starcoder2",
}

// Client streams completions from Ollama. Custom model names pass through.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Ollama client.
func NewClient(httpClient *http.Client, cfg *config.ProvidersConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.OllamaBaseURL, "/"),
		httpClient: httpClient,
	}
}

// Ollama API request/response structures.
type chatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  options         `json:"options"`
}

type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Raw     bool    `json:"raw"`
	Stream  bool    `json:"stream"`
	Options options `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	Temperature      float64  `json:"temperature"`
	NumPredict       int      `json:"num_predict,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
}

type streamLine struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Identity returns the provider this client serves.
func (c *Client) Identity() domain.ProviderIdentity {
	return domain.ProviderOllama
}

// ModelName maps a ModelID to the Ollama model tag.
func (c *Client) ModelName(model domain.ModelID) (string, error) {
	if name, ok := models[model]; ok {
		return name, nil
	}
	if model.IsCustom() && model != "" {
		return string(model), nil
	}
	return "", fmt.Errorf("%w: ollama has no model %s", domain.ErrUnsupportedModel, model)
}

// StreamCompletion streams a chat completion from /api/chat.
func (c *Client) StreamCompletion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	req *domain.CompletionRequest,
	sink domain.Sink,
) (string, error) {
	if err := domain.CheckCredentials(domain.ProviderOllama, creds); err != nil {
		return "", err
	}
	modelName, err := c.ModelName(req.Model)
	if err != nil {
		return "", err
	}

	messages := make([]ollamaMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := msg.Role
		if role == domain.RoleFunction {
			role = domain.RoleUser
		}
		messages = append(messages, ollamaMessage{Role: string(role), Content: msg.Content})
	}

	body := chatRequest{
		Model:    modelName,
		Messages: messages,
		Stream:   true,
		Options: options{
			Temperature:      req.Temperature,
			NumPredict:       req.MaxTokens,
			Stop:             req.StopWords,
			FrequencyPenalty: req.FrequencyPenalty,
		},
	}
	return c.stream(ctx, c.endpoint(creds)+"/api/chat", body, modelName, sink)
}

// Completion returns the full chat completion text.
func (c *Client) Completion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	req *domain.CompletionRequest,
) (string, error) {
	return c.StreamCompletion(ctx, creds, req, domain.DiscardSink)
}

// StreamPromptCompletion streams a raw-prompt completion from /api/generate.
// The prompt is sent raw so Ollama applies no template of its own.
func (c *Client) StreamPromptCompletion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	req *domain.StringCompletionRequest,
	sink domain.Sink,
) (string, error) {
	if err := domain.CheckCredentials(domain.ProviderOllama, creds); err != nil {
		return "", err
	}
	modelName, err := c.ModelName(req.Model)
	if err != nil {
		return "", err
	}

	body := generateRequest{
		Model:  modelName,
		Prompt: req.Prompt,
		Raw:    true,
		Stream: true,
		Options: options{
			Temperature:      req.Temperature,
			NumPredict:       req.MaxTokens,
			Stop:             req.StopWords,
			FrequencyPenalty: req.FrequencyPenalty,
		},
	}
	return c.stream(ctx, c.endpoint(creds)+"/api/generate", body, modelName, sink)
}

func (c *Client) endpoint(creds domain.ProviderCredentials) string {
	if ollama, ok := creds.(domain.OllamaCredentials); ok && ollama.Endpoint != "" {
		return strings.TrimRight(ollama.Endpoint, "/")
	}
	return c.baseURL
}

func (c *Client) stream(ctx context.Context, url string, body any, modelName string, sink domain.Sink) (string, error) {
	acc := domain.NewAccumulator(sink, modelName)

	return transport.Call(ctx,
		func(ctx context.Context) (*http.Response, error) {
			return transport.PostJSON(ctx, c.httpClient, url, nil, body)
		},
		func(ctx context.Context, resp *http.Response) (string, error) {
			done := false
			err := stream.NDJSON(ctx, resp.Body, func(raw []byte) error {
				var line streamLine
				if err := json.Unmarshal(raw, &line); err != nil {
					return stream.DecodeError(raw, err)
				}
				if line.Error != "" {
					return &domain.ProviderError{Status: http.StatusBadGateway, Body: line.Error}
				}
				acc.SetModelEcho(line.Model)

				fragment := line.Message.Content
				if fragment == "" {
					fragment = line.Response
				}
				if err := acc.Push(ctx, fragment); err != nil {
					return err
				}
				if line.Done {
					done = true
					return stream.ErrStop
				}
				return nil
			})
			if err == nil && !done {
				err = stream.Truncated(`{"done":true}`)
			}
			return acc.Text(), err
		})
}
