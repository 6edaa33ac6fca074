// Package anthropic implements the Anthropic messages API client.
package anthropic

import (
	"context"
	"errors"
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

// APIVersion is sent as the anthropic-version header.
const APIVersion = "2023-06-01"

//nolint:gochecknoglobals // wire name table
var models = map[domain.ModelID]string{
	domain.ModelClaudeOpus:   "claude-3-opus-20240229",
	domain.ModelClaudeSonnet: "claude-3-5-sonnet-20241022",
	domain.ModelClaudeHaiku:  "claude-3-haiku-20240307",
}

// Client streams chat completions from Anthropic.
type Client struct {
	baseURL          string
	defaultMaxTokens int
	httpClient       *http.Client
}

// NewClient creates a new Anthropic client.
func NewClient(httpClient *http.Client, cfg *config.ProvidersConfig) *Client {
	return &Client{
		baseURL:          strings.TrimRight(cfg.AnthropicBaseURL, "/"),
		defaultMaxTokens: cfg.AnthropicMaxTokens,
		httpClient:       httpClient,
	}
}

// Anthropic API request structures.
type messagesRequest struct {
	Model         string         `json:"model"`
	System        []contentBlock `json:"system,omitempty"`
	Messages      []message      `json:"messages"`
	MaxTokens     int            `json:"max_tokens"`
	Temperature   float64        `json:"temperature"`
	StopSequences []string       `json:"stop_sequences,omitempty"`
	Stream        bool           `json:"stream"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"`
}

// Identity returns the provider this client serves.
func (c *Client) Identity() domain.ProviderIdentity {
	return domain.ProviderAnthropic
}

// ModelName maps a ModelID to the Anthropic model name.
func (c *Client) ModelName(model domain.ModelID) (string, error) {
	name, ok := models[model]
	if !ok {
		return "", fmt.Errorf("%w: anthropic has no model %s", domain.ErrUnsupportedModel, model)
	}
	return name, nil
}

// StreamCompletion streams a chat completion.
func (c *Client) StreamCompletion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	req *domain.CompletionRequest,
	sink domain.Sink,
) (string, error) {
	if err := domain.CheckCredentials(domain.ProviderAnthropic, creds); err != nil {
		return "", err
	}
	modelName, err := c.ModelName(req.Model)
	if err != nil {
		return "", err
	}

	body := c.toMessagesRequest(modelName, req)
	headers := http.Header{}
	headers.Set("x-api-key", domain.APIKeyOf(creds))
	headers.Set("anthropic-version", APIVersion)
	headers.Set("Accept", "text/event-stream")

	acc := domain.NewAccumulator(sink, modelName)

	return transport.Call(ctx,
		func(ctx context.Context) (*http.Response, error) {
			return transport.PostJSON(ctx, c.httpClient, c.baseURL+"/messages", headers, body)
		},
		func(ctx context.Context, resp *http.Response) (string, error) {
			stopped := false
			err := stream.SSE(ctx, resp, func(evt stream.Event) error {
				err := handleEvent(ctx, acc, evt)
				stopped = errors.Is(err, stream.ErrStop)
				return err
			})
			if err == nil && !stopped {
				err = stream.Truncated("message_stop")
			}
			return acc.Text(), err
		})
}

// Completion returns the full chat completion text.
func (c *Client) Completion(
	ctx context.Context,
	creds domain.ProviderCredentials,
	req *domain.CompletionRequest,
) (string, error) {
	return c.StreamCompletion(ctx, creds, req, domain.DiscardSink)
}

// StreamPromptCompletion is not supported: the messages API has no raw prompt input.
func (c *Client) StreamPromptCompletion(
	_ context.Context,
	creds domain.ProviderCredentials,
	_ *domain.StringCompletionRequest,
	_ domain.Sink,
) (string, error) {
	if err := domain.CheckCredentials(domain.ProviderAnthropic, creds); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: anthropic does not accept raw prompts", domain.ErrUnsupportedModel)
}

func (c *Client) toMessagesRequest(modelName string, req *domain.CompletionRequest) messagesRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.defaultMaxTokens
	}

	out := messagesRequest{
		Model:         modelName,
		MaxTokens:     maxTokens,
		Temperature:   req.Temperature,
		StopSequences: req.StopWords,
		Stream:        true,
	}

	conversation := make([]domain.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case domain.RoleSystem:
			out.System = append(out.System, block(msg.Content, msg.CacheHint))
		case domain.RoleFunction:
			conversation = append(conversation, domain.Message{
				Role: domain.RoleUser, Content: msg.Content, CacheHint: msg.CacheHint,
			})
		default:
			conversation = append(conversation, msg)
		}
	}

	for _, msg := range prompt.CoalesceSameRole(conversation) {
		out.Messages = append(out.Messages, message{
			Role:    string(msg.Role),
			Content: []contentBlock{block(msg.Content, msg.CacheHint)},
		})
	}
	return out
}

func block(text string, cacheHint bool) contentBlock {
	b := contentBlock{Type: "text", Text: text}
	if cacheHint {
		b.CacheControl = &cacheControl{Type: "ephemeral"}
	}
	return b
}

func handleEvent(ctx context.Context, acc *domain.Accumulator, evt stream.Event) error {
	if !gjson.ValidBytes(evt.Data) {
		return stream.DecodeError(evt.Data, nil)
	}
	payload := gjson.ParseBytes(evt.Data)

	eventType := evt.Type
	if eventType == "" {
		eventType = payload.Get("type").String()
	}

	switch eventType {
	case "message_start":
		acc.SetModelEcho(payload.Get("message.model").String())
	case "content_block_delta":
		if payload.Get("delta.type").String() != "text_delta" {
			return nil
		}
		return acc.Push(ctx, payload.Get("delta.text").String())
	case "message_stop":
		return stream.ErrStop
	case "error":
		status := http.StatusBadGateway
		if payload.Get("error.type").String() == "overloaded_error" {
			status = statusOverloaded
		}
		return &domain.ProviderError{Status: status, Body: payload.Get("error").Raw}
	}
	return nil
}

const statusOverloaded = 529
