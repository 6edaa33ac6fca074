// Package prompt turns chat message lists into the flat prompt strings that
// prompt-shaped models expect. Formatters are pure functions keyed by model.
package prompt

import (
	"fmt"

	"github.com/davidbz/sidecar/internal/domain"
)

// Formatter converts a message list into a prompt.
type Formatter interface {
	ToPrompt(messages []domain.Message) string
}

// FormatterFunc adapts a function to the Formatter interface.
type FormatterFunc func(messages []domain.Message) string

// ToPrompt calls f(messages).
func (f FormatterFunc) ToPrompt(messages []domain.Message) string {
	return f(messages)
}

// Registry maps models to their formatter. It is read-only after construction.
type Registry struct {
	formatters map[domain.ModelID]Formatter
}

// NewRegistry returns a registry holding every built-in formatter.
func NewRegistry() *Registry {
	llama2 := FormatterFunc(LlamaInstruct)
	deepseek := FormatterFunc(DeepSeekInstruct)
	llama3 := FormatterFunc(Llama3Instruct)

	return &Registry{
		formatters: map[domain.ModelID]Formatter{
			domain.ModelMistralInstruct:          llama2,
			domain.ModelCodeLlama7BInstruct:      llama2,
			domain.ModelCodeLlama13BInstruct:     llama2,
			domain.ModelCodeLlama13B:             llama2,
			domain.ModelMixtral:                  FormatterFunc(MixtralInstruct),
			domain.ModelCodeLlama70BInstruct:     FormatterFunc(CodeLlama70BInstruct),
			domain.ModelDeepSeekCoder1_3BBase:    deepseek,
			domain.ModelDeepSeekCoder6BInstruct:  deepseek,
			domain.ModelDeepSeekCoder33BInstruct: deepseek,
			domain.ModelDeepSeekCoderV2:          deepseek,
			domain.ModelLlama3_8bInstruct:        llama3,
			domain.ModelLlama3_1_8bInstruct:      llama3,
			domain.ModelLlama3_1_70bInstruct:     llama3,
		},
	}
}

// Lookup returns the formatter for model.
func (r *Registry) Lookup(model domain.ModelID) (Formatter, bool) {
	formatter, ok := r.formatters[model]
	return formatter, ok
}

// Format renders messages for model.
func (r *Registry) Format(model domain.ModelID, messages []domain.Message) (string, error) {
	formatter, ok := r.Lookup(model)
	if !ok {
		return "", fmt.Errorf("%w: no prompt formatter for %s", domain.ErrUnsupportedModel, model)
	}
	return formatter.ToPrompt(messages), nil
}
