// Package gemini implements the Gemini streamGenerateContent client for both
// Google AI Studio and Vertex AI.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
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
	domain.ModelGeminiPro:      "gemini-1.5-pro",
	domain.ModelGeminiProFlash: "gemini-1.5-flash",
	domain.ModelGemini2Flash:   "gemini-2.0-flash",
}

// Client streams chat completions from Gemini.
type Client struct {
	identity   domain.ProviderIdentity
	httpClient *http.Client
	target     func(creds domain.ProviderCredentials, model string) (string, http.Header, error)
}

// NewStudio creates the Google AI Studio client. The key travels in the query string.
func NewStudio(httpClient *http.Client, cfg *config.ProvidersConfig) *Client {
	base := strings.TrimRight(cfg.GeminiStudioBaseURL, "/")
	return &Client{
		identity:   domain.ProviderGeminiStudio,
		httpClient: httpClient,
		target: func(creds domain.ProviderCredentials, model string) (string, http.Header, error) {
			endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s",
				base, model, url.QueryEscape(domain.APIKeyOf(creds)))
			return endpoint, http.Header{}, nil
		},
	}
}

// NewVertex creates the Vertex AI client, authenticated with a bearer access token.
func NewVertex(httpClient *http.Client, cfg *config.ProvidersConfig) *Client {
	return &Client{
		identity:   domain.ProviderGeminiVertex,
		httpClient: httpClient,
		target: func(creds domain.ProviderCredentials, model string) (string, http.Header, error) {
			vertex, _ := creds.(domain.GeminiVertexCredentials)
			if vertex.ProjectID == "" {
				return "", nil, fmt.Errorf("%w: vertex credentials need a project id", domain.ErrInvalidRequest)
			}
			region := vertex.Region
			if region == "" {
				region = cfg.GeminiVertexRegion
			}
			base := strings.TrimRight(cfg.GeminiVertexBaseURL, "/")
			if base == "" {
				base = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", region)
			}

			endpoint := fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:streamGenerateContent?alt=sse",
				base, url.PathEscape(vertex.ProjectID), url.PathEscape(region), model)
			headers := http.Header{}
			headers.Set("Authorization", "Bearer "+vertex.AccessToken)
			return endpoint, headers, nil
		},
	}
}

// Gemini API request structures.
type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64  `json:"temperature"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// Identity returns the provider this client serves.
func (c *Client) Identity() domain.ProviderIdentity {
	return c.identity
}

// ModelName maps a ModelID to the Gemini model name.
func (c *Client) ModelName(model domain.ModelID) (string, error) {
	name, ok := models[model]
	if !ok {
		return "", fmt.Errorf("%w: %s has no model %s", domain.ErrUnsupportedModel, c.identity, model)
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
	if err := domain.CheckCredentials(c.identity, creds); err != nil {
		return "", err
	}
	modelName, err := c.ModelName(req.Model)
	if err != nil {
		return "", err
	}
	endpoint, headers, err := c.target(creds, modelName)
	if err != nil {
		return "", err
	}
	headers.Set("Accept", "text/event-stream")

	body := toGenerateRequest(req)
	acc := domain.NewAccumulator(sink, modelName)

	return transport.Call(ctx,
		func(ctx context.Context) (*http.Response, error) {
			return transport.PostJSON(ctx, c.httpClient, endpoint, headers, body)
		},
		func(ctx context.Context, resp *http.Response) (string, error) {
			err := stream.SSE(ctx, resp, func(evt stream.Event) error {
				return handlePayload(ctx, acc, evt.Data)
			})
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

// StreamPromptCompletion is not supported by Gemini.
func (c *Client) StreamPromptCompletion(
	_ context.Context,
	creds domain.ProviderCredentials,
	_ *domain.StringCompletionRequest,
	_ domain.Sink,
) (string, error) {
	if err := domain.CheckCredentials(c.identity, creds); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: %s does not accept raw prompts", domain.ErrUnsupportedModel, c.identity)
}

func toGenerateRequest(req *domain.CompletionRequest) generateRequest {
	out := generateRequest{
		GenerationConfig: generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.StopWords,
		},
	}

	var system []part
	conversation := make([]domain.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case domain.RoleSystem:
			system = append(system, part{Text: msg.Content})
		case domain.RoleAssistant:
			conversation = append(conversation, domain.Message{Role: "model", Content: msg.Content})
		default:
			conversation = append(conversation, domain.Message{Role: domain.RoleUser, Content: msg.Content})
		}
	}
	if len(system) > 0 {
		out.SystemInstruction = &content{Parts: system}
	}

	for _, msg := range prompt.CoalesceSameRole(conversation) {
		out.Contents = append(out.Contents, content{Role: string(msg.Role), Parts: []part{{Text: msg.Content}}})
	}
	return out
}

// handlePayload accepts a single response object or an array of them.
func handlePayload(ctx context.Context, acc *domain.Accumulator, data []byte) error {
	if !gjson.ValidBytes(data) {
		return stream.DecodeError(data, nil)
	}

	payload := gjson.ParseBytes(data)
	responses := []gjson.Result{payload}
	if payload.IsArray() {
		responses = payload.Array()
	}

	for _, response := range responses {
		if errPayload := response.Get("error"); errPayload.Exists() && errPayload.Type != gjson.Null {
			status := int(errPayload.Get("code").Int())
			if status < http.StatusBadRequest {
				status = http.StatusBadGateway
			}
			return &domain.ProviderError{Status: status, Body: errPayload.Raw}
		}
		if !response.IsObject() {
			return stream.DecodeError(data, nil)
		}

		acc.SetModelEcho(response.Get("modelVersion").String())
		for _, text := range response.Get("candidates.0.content.parts.#.text").Array() {
			if err := acc.Push(ctx, text.String()); err != nil {
				return err
			}
		}
	}
	return nil
}
