// Package tokenizer counts tokens for prompts and message lists.
package tokenizer

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/observability"
	"github.com/davidbz/sidecar/internal/prompt"
)

// OpenAI chat framing: every message costs a fixed overhead, a name costs
// one more token and the reply is primed with three.
const (
	tokensPerMessage = 3
	tokensPerName    = 1
	tokensReplyPrime = 3
)

//nolint:gochecknoinits // the vocabularies ship with the binary
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Input is either a raw prompt or a message list.
type Input struct {
	prompt   string
	messages []domain.Message
	chat     bool
}

// Prompt wraps a raw prompt.
func Prompt(text string) Input {
	return Input{prompt: text}
}

// Messages wraps a message list.
func Messages(messages []domain.Message) Input {
	return Input{messages: messages, chat: true}
}

type encoding struct {
	family string
	bpe    *tiktoken.Tiktoken
	chat   bool
}

// Service counts tokens. Encodings are loaded once and shared; the service
// is safe for concurrent use.
type Service struct {
	encodings    map[domain.ModelID]encoding
	formatters   *prompt.Registry
	answerModels *domain.AnswerModels
}

// NewService loads every family encoding. A family whose encoding cannot be
// loaded is left out with a warning.
func NewService(
	ctx context.Context,
	families []Family,
	formatters *prompt.Registry,
	answerModels *domain.AnswerModels,
) *Service {
	logger := observability.FromContext(ctx)
	loaded := make(map[string]*tiktoken.Tiktoken)
	encodings := make(map[domain.ModelID]encoding)

	for _, family := range families {
		bpe, ok := loaded[family.Encoding]
		if !ok {
			var err error
			bpe, err = tiktoken.GetEncoding(family.Encoding)
			if err != nil {
				logger.Warn("tokenizer family disabled",
					observability.String("family", family.Name),
					observability.String("encoding", family.Encoding),
					observability.Error(err))
				continue
			}
			loaded[family.Encoding] = bpe
		}
		for _, model := range family.Models {
			encodings[model] = encoding{family: family.Name, bpe: bpe, chat: family.ChatOverhead}
		}
	}

	return &Service{
		encodings:    encodings,
		formatters:   formatters,
		answerModels: answerModels,
	}
}

// Count returns the token count of input for model.
func (s *Service) Count(model domain.ModelID, input Input) (int, error) {
	enc, ok := s.encodings[model]
	if !ok {
		return 0, fmt.Errorf("%w: no tokenizer for %s", domain.ErrUnsupportedModel, model)
	}

	if !input.chat {
		return enc.count(input.prompt), nil
	}
	if enc.chat {
		return enc.countChat(input.messages), nil
	}

	formatter, ok := s.formatters.Lookup(model)
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnsupportedForMessages, model)
	}
	return enc.count(formatter.ToPrompt(input.messages)), nil
}

// Budget reports how many tokens of the model's window remain once a prompt
// of promptTokens and the answer reservation are placed, and whether the
// prompt fits at all.
func (s *Service) Budget(model domain.ModelID, promptTokens int) (int, bool, error) {
	answerModel, ok := s.answerModels.Lookup(model)
	if !ok {
		return 0, false, fmt.Errorf("%w: no answer model for %s", domain.ErrUnsupportedModel, model)
	}
	remaining, fits := answerModel.Fits(promptTokens)
	return remaining, fits, nil
}

// Family returns the tokenizer family serving model.
func (s *Service) Family(model domain.ModelID) (string, bool) {
	enc, ok := s.encodings[model]
	return enc.family, ok
}

func (e encoding) count(text string) int {
	return len(e.bpe.Encode(text, nil, nil))
}

func (e encoding) countChat(messages []domain.Message) int {
	total := tokensReplyPrime
	for _, msg := range messages {
		total += tokensPerMessage
		total += e.count(string(msg.Role))
		total += e.count(msg.Content)
		if msg.FunctionCall != nil && msg.FunctionCall.Name != "" {
			total += tokensPerName + e.count(msg.FunctionCall.Name)
		}
	}
	return total
}
