// Package fim formats fill-in-the-middle requests for the model that will
// serve them and streams the result through the domain broker.
package fim

import (
	"context"
	"fmt"

	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/observability"
)

// Request asks for the text between Prefix and Suffix.
type Request struct {
	Model       domain.ModelID    `json:"model"`
	Prefix      string            `json:"prefix"`
	Suffix      string            `json:"suffix"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	StopWords   []string          `json:"stop_words,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Streamer is the part of the domain broker the FIM broker needs.
type Streamer interface {
	StreamAnswer(
		ctx context.Context,
		creds domain.ProviderCredentials,
		req domain.AnswerRequest,
		sink domain.Sink,
	) (string, error)
}

// Broker formats FIM requests per model.
type Broker struct {
	answerModels *domain.AnswerModels
	formatters   map[domain.ModelID]formatter
	streamer     Streamer
}

// NewBroker creates a new FIM broker.
func NewBroker(answerModels *domain.AnswerModels, streamer Streamer) *Broker {
	return &Broker{
		answerModels: answerModels,
		formatters:   defaultFormatters(),
		streamer:     streamer,
	}
}

// Supports reports whether model has a FIM formatter.
func (b *Broker) Supports(model domain.ModelID) bool {
	_, ok := b.formatters[model]
	return ok
}

// Format renders req as the chat or raw-prompt request its model expects.
// max_tokens is the model's inline completion budget, lowered to the
// request's own cap when that is smaller.
func (b *Broker) Format(req Request) (domain.AnswerRequest, error) {
	f, ok := b.formatters[req.Model]
	if !ok {
		return domain.AnswerRequest{}, fmt.Errorf("%w: %s", domain.ErrUnknownFimModel, req.Model)
	}
	answerModel, ok := b.answerModels.Lookup(req.Model)
	if !ok || answerModel.InlineCompletionTokens == 0 {
		return domain.AnswerRequest{}, fmt.Errorf("%w: %s has no inline completion budget", domain.ErrUnknownFimModel, req.Model)
	}

	maxTokens := answerModel.InlineCompletionTokens
	if req.MaxTokens > 0 && req.MaxTokens < maxTokens {
		maxTokens = req.MaxTokens
	}

	stopWords := make([]string, 0, len(f.stopWords)+len(req.StopWords))
	stopWords = append(stopWords, f.stopWords...)
	stopWords = append(stopWords, req.StopWords...)

	rendered := f.render(f.scrub(req.Prefix), f.scrub(req.Suffix))

	if f.chat {
		return domain.ChatAnswer(&domain.CompletionRequest{
			Model:       req.Model,
			Messages:    []domain.Message{domain.SystemMessage(chatInstruction), domain.UserMessage(rendered)},
			Temperature: req.Temperature,
			MaxTokens:   maxTokens,
			StopWords:   nilIfEmpty(stopWords),
			Metadata:    req.Metadata,
		}), nil
	}

	return domain.PromptAnswer(&domain.StringCompletionRequest{
		Model:       req.Model,
		Prompt:      rendered,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
		StopWords:   nilIfEmpty(stopWords),
		Metadata:    req.Metadata,
	}), nil
}

// Stream formats req and streams the completion. Deltas reach sink as the
// model produced them, while the returned text is cleaned of echoed stop words
// and sentinels. The returned text can therefore be shorter than the last
// delta's TextSoFar; callers that need the final answer must use the return
// value.
func (b *Broker) Stream(
	ctx context.Context,
	creds domain.ProviderCredentials,
	req Request,
	sink domain.Sink,
) (string, error) {
	answer, err := b.Format(req)
	if err != nil {
		return "", err
	}

	observability.FromContext(ctx).Debug("fim request formatted",
		observability.String("model", string(req.Model)),
		observability.Int("prefix_len", len(req.Prefix)),
		observability.Int("suffix_len", len(req.Suffix)))

	text, err := b.streamer.StreamAnswer(ctx, creds, answer, sink)
	if err != nil {
		return text, err
	}
	return b.CleanCompletion(req.Model, text), nil
}

// CleanCompletion strips stop words and sentinels the model echoed back.
func (b *Broker) CleanCompletion(model domain.ModelID, text string) string {
	f, ok := b.formatters[model]
	if !ok {
		return text
	}
	return f.clean(text)
}

func nilIfEmpty(words []string) []string {
	if len(words) == 0 {
		return nil
	}
	return words
}
