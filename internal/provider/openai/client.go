// Package openai implements every provider that speaks the OpenAI chat
// completions wire format. Each provider is one Client configured with its
// own endpoint resolution, model table and capabilities.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/observability"
	"github.com/davidbz/sidecar/internal/provider/transport"
	"github.com/davidbz/sidecar/internal/stream"
)

// endpoint is where, and as whom, one request is sent.
type endpoint struct {
	baseURL string
	headers http.Header
	// model replaces the wire model name when set (Azure deployments).
	model string
	// query is appended to every URL.
	query string
}

// Client is an OpenAI-compatible provider client.
type Client struct {
	identity      domain.ProviderIdentity
	models        map[domain.ModelID]string
	allowCustom   bool
	acceptsPrompt bool
	httpClient    *http.Client
	resolve       func(creds domain.ProviderCredentials) (endpoint, error)
}

// OpenAI API request/response structures.
type chatRequest struct {
	Model            string          `json:"model"`
	Messages         []openAIMessage `json:"messages"`
	Temperature      float64         `json:"temperature"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	MaxTokens        int             `json:"max_tokens,omitempty"`
	Stop             []string        `json:"stop,omitempty"`
	Stream           bool            `json:"stream"`
}

type promptRequest struct {
	Model            string   `json:"model"`
	Prompt           string   `json:"prompt"`
	Temperature      float64  `json:"temperature"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	Stream           bool     `json:"stream"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text         string  `json:"text"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Identity returns the provider this client serves.
func (c *Client) Identity() domain.ProviderIdentity {
	return c.identity
}

// ModelName maps a ModelID to the provider's wire name.
func (c *Client) ModelName(model domain.ModelID) (string, error) {
	if name, ok := c.models[model]; ok {
		return name, nil
	}
	if c.allowCustom && model.IsCustom() && model != "" {
		return string(model), nil
	}
	return "", fmt.Errorf("%w: %s has no model %s", domain.ErrUnsupportedModel, c.identity, model)
}

// StreamCompletion streams a chat completion.
func (c *Client) StreamCompletion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	req *domain.CompletionRequest,
	sink domain.Sink,
) (string, error) {
	if err := domain.CheckCredentials(c.identity, creds); err != nil {
		return "", err
	}
	modelName, err := c.ModelName(req.Model)
	if err != nil {
		return "", err
	}
	target, err := c.resolve(creds)
	if err != nil {
		return "", err
	}
	if target.model != "" {
		modelName = target.model
	}

	body := chatRequest{
		Model:            modelName,
		Messages:         toOpenAIMessages(req.Messages),
		Temperature:      req.Temperature,
		FrequencyPenalty: req.FrequencyPenalty,
		MaxTokens:        req.MaxTokens,
		Stop:             req.StopWords,
		Stream:           true,
	}

	return c.stream(ctx, target.baseURL+"/chat/completions"+target.query, target.headers, body, modelName, sink)
}

// Completion returns the full chat completion text.
func (c *Client) Completion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	req *domain.CompletionRequest,
) (string, error) {
	return c.StreamCompletion(ctx, creds, req, domain.DiscardSink)
}

// StreamPromptCompletion streams a raw-prompt completion through the legacy
// completions endpoint. Chat-only providers reject it.
func (c *Client) StreamPromptCompletion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	req *domain.StringCompletionRequest,
	sink domain.Sink,
) (string, error) {
	if err := domain.CheckCredentials(c.identity, creds); err != nil {
		return "", err
	}
	if !c.acceptsPrompt {
		return "", fmt.Errorf("%w: %s does not accept raw prompts", domain.ErrUnsupportedModel, c.identity)
	}
	modelName, err := c.ModelName(req.Model)
	if err != nil {
		return "", err
	}
	target, err := c.resolve(creds)
	if err != nil {
		return "", err
	}
	if target.model != "" {
		modelName = target.model
	}

	body := promptRequest{
		Model:            modelName,
		Prompt:           req.Prompt,
		Temperature:      req.Temperature,
		FrequencyPenalty: req.FrequencyPenalty,
		MaxTokens:        req.MaxTokens,
		Stop:             req.StopWords,
		Stream:           true,
	}

	return c.stream(ctx, target.baseURL+"/completions"+target.query, target.headers, body, modelName, sink)
}

func (c *Client) stream(
	ctx context.Context,
	url string,
	headers http.Header,
	body any,
	modelName string,
	sink domain.Sink,
) (string, error) {
	headers = headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	headers.Set("Accept", "text/event-stream")

	acc := domain.NewAccumulator(sink, modelName)

	return transport.Call(ctx,
		func(ctx context.Context) (*http.Response, error) {
			return transport.PostJSON(ctx, c.httpClient, url, headers, body)
		},
		func(ctx context.Context, resp *http.Response) (string, error) {
			err := stream.SSE(ctx, resp, func(evt stream.Event) error {
				return c.handleChunk(ctx, acc, evt.Data)
			})
			if err != nil {
				observability.FromContext(ctx).Debug("openai-compatible stream ended with error",
					observability.Int("deltas", acc.Sent()), observability.Error(err))
				return acc.Text(), err
			}
			return acc.Text(), nil
		})
}

func (c *Client) handleChunk(ctx context.Context, acc *domain.Accumulator, data []byte) error {
	if errPayload := gjson.GetBytes(data, "error"); errPayload.Exists() && errPayload.Type != gjson.Null {
		status := int(gjson.GetBytes(data, "error.code").Int())
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return &domain.ProviderError{Status: status, Body: errPayload.Raw}
	}

	var chunk streamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return stream.DecodeError(data, err)
	}
	acc.SetModelEcho(chunk.Model)

	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]
	fragment := choice.Delta.Content
	if fragment == "" {
		fragment = choice.Text
	}
	return acc.Push(ctx, fragment)
}

func toOpenAIMessages(messages []domain.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		wire := openAIMessage{Role: string(msg.Role), Content: msg.Content}
		if msg.Role == domain.RoleFunction && msg.FunctionCall != nil {
			wire.Name = msg.FunctionCall.Name
		}
		out = append(out, wire)
	}
	return out
}
