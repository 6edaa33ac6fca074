// Package together implements the Together inference client. Together takes
// raw prompts only, so chat requests are rendered by the prompt formatter
// registered for the model first.
package together

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/davidbz/sidecar/internal/config"
	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/prompt"
	"github.com/davidbz/sidecar/internal/provider/transport"
	"github.com/davidbz/sidecar/internal/stream"
)

//nolint:gochecknoglobals // wire name table
var models = map[domain.ModelID]string{
	domain.ModelMixtral:                  "mistralai/Mixtral-8x7B-Instruct-v0.1",
	domain.ModelMistralInstruct:          "mistralai/Mistral-7B-Instruct-v0.1",
	domain.ModelCodeLlama7BInstruct:      "codellama/CodeLlama-7b-Instruct-hf",
	domain.ModelCodeLlama13BInstruct:     "codellama/CodeLlama-13b-Instruct-hf",
	domain.ModelCodeLlama13B:             "codellama/CodeLlama-13b-hf",
	domain.ModelCodeLlama70BInstruct:     "codellama/CodeLlama-70b-Instruct-hf",
	domain.ModelDeepSeekCoder33BInstruct: "deepseek-ai/deepseek-coder-33b-instruct",
	domain.ModelLlama3_8bInstruct:        "meta-llama/Llama-3-8b-chat-hf",
	domain.ModelLlama3_1_8bInstruct:      "meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo",
	domain.ModelLlama3_1_70bInstruct:     "meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo",
}

// Client streams completions from Together.
type Client struct {
	baseURL    string
	httpClient *http.Client
	formatters *prompt.Registry
}

// NewClient creates a new Together client.
func NewClient(httpClient *http.Client, cfg *config.ProvidersConfig, formatters *prompt.Registry) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.TogetherBaseURL, "/"),
		httpClient: httpClient,
		formatters: formatters,
	}
}

type inferenceRequest struct {
	Model            string   `json:"model"`
	Prompt           string   `json:"prompt"`
	Temperature      float64  `json:"temperature"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	StreamTokens     bool     `json:"stream_tokens"`
}

// Identity returns the provider this client serves.
func (c *Client) Identity() domain.ProviderIdentity {
	return domain.ProviderTogether
}

// ModelName maps a ModelID to the Together model name.
func (c *Client) ModelName(model domain.ModelID) (string, error) {
	name, ok := models[model]
	if !ok {
		return "", fmt.Errorf("%w: together has no model %s", domain.ErrUnsupportedModel, model)
	}
	return name, nil
}

// StreamCompletion renders the messages to a prompt and streams it.
func (c *Client) StreamCompletion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	req *domain.CompletionRequest,
	sink domain.Sink,
) (string, error) {
	if err := domain.CheckCredentials(domain.ProviderTogether, creds); err != nil {
		return "", err
	}
	rendered, err := c.formatters.Format(req.Model, req.Messages)
	if err != nil {
		return "", err
	}

	return c.StreamPromptCompletion(ctx, creds, &domain.StringCompletionRequest{
		Model:            req.Model,
		Prompt:           rendered,
		Temperature:      req.Temperature,
		FrequencyPenalty: req.FrequencyPenalty,
		MaxTokens:        req.MaxTokens,
		StopWords:        req.StopWords,
		Metadata:         req.Metadata,
	}, sink)
}

// Completion returns the full chat completion text.
func (c *Client) Completion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	req *domain.CompletionRequest,
) (string, error) {
	return c.StreamCompletion(ctx, creds, req, domain.DiscardSink)
}

// StreamPromptCompletion streams a raw-prompt completion.
func (c *Client) StreamPromptCompletion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	req *domain.StringCompletionRequest,
	sink domain.Sink,
) (string, error) {
	if err := domain.CheckCredentials(domain.ProviderTogether, creds); err != nil {
		return "", err
	}
	modelName, err := c.ModelName(req.Model)
	if err != nil {
		return "", err
	}

	body := inferenceRequest{
		Model:            modelName,
		Prompt:           req.Prompt,
		Temperature:      req.Temperature,
		FrequencyPenalty: req.FrequencyPenalty,
		MaxTokens:        req.MaxTokens,
		Stop:             req.StopWords,
		StreamTokens:     true,
	}
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+domain.APIKeyOf(creds))
	headers.Set("Accept", "text/event-stream")

	acc := domain.NewAccumulator(sink, modelName)

	return transport.Call(ctx,
		func(ctx context.Context) (*http.Response, error) {
			return transport.PostJSON(ctx, c.httpClient, c.baseURL+"/inference", headers, body)
		},
		func(ctx context.Context, resp *http.Response) (string, error) {
			err := stream.SSE(ctx, resp, func(evt stream.Event) error {
				return handleEvent(ctx, acc, evt.Data)
			})
			return acc.Text(), err
		})
}

func handleEvent(ctx context.Context, acc *domain.Accumulator, data []byte) error {
	if !gjson.ValidBytes(data) {
		return stream.DecodeError(data, nil)
	}
	payload := gjson.ParseBytes(data)

	if errPayload := payload.Get("error"); errPayload.Exists() && errPayload.Type != gjson.Null {
		return &domain.ProviderError{Status: http.StatusBadGateway, Body: errPayload.Raw}
	}

	text := payload.Get("choices.0.text")
	if !text.Exists() {
		text = payload.Get("token.text")
	}
	return acc.Push(ctx, text.String())
}
