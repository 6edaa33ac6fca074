package domain

import (
	"errors"
	"fmt"
)

// AnswerModel is the token capacity record of one model.
// InlineCompletionTokens is zero for models that do not serve inline completion.
type AnswerModel struct {
	Model                  ModelID `json:"model"`
	TotalTokens            int     `json:"total_tokens"`
	AnswerTokens           int     `json:"answer_tokens"`
	PromptTokensBudget     int     `json:"prompt_tokens_budget"`
	HistoryTokensBudget    int     `json:"history_tokens_budget"`
	InlineCompletionTokens int     `json:"inline_completion_tokens,omitempty"`
}

// Validate checks that the budgets fit in the context window.
func (a AnswerModel) Validate() error {
	if a.Model == "" {
		return errors.New("model cannot be empty")
	}
	if a.AnswerTokens < 0 || a.PromptTokensBudget < 0 || a.HistoryTokensBudget < 0 || a.InlineCompletionTokens < 0 {
		return fmt.Errorf("answer model %s has negative budget", a.Model)
	}
	if a.AnswerTokens+a.PromptTokensBudget+a.HistoryTokensBudget > a.TotalTokens {
		return fmt.Errorf("answer model %s budgets exceed %d total tokens", a.Model, a.TotalTokens)
	}
	return nil
}

// Fits reports whether a prompt of promptTokens leaves room for the answer,
// and how many tokens of the window remain after both.
func (a AnswerModel) Fits(promptTokens int) (int, bool) {
	remaining := a.TotalTokens - a.AnswerTokens - promptTokens
	return remaining, remaining >= 0
}

// AnswerModels is the read-only answer-model table.
type AnswerModels struct {
	models map[ModelID]AnswerModel
}

// NewAnswerModels builds the table, rejecting invalid or duplicate entries.
func NewAnswerModels(models ...AnswerModel) (*AnswerModels, error) {
	table := make(map[ModelID]AnswerModel, len(models))
	for _, model := range models {
		if err := model.Validate(); err != nil {
			return nil, err
		}
		if _, exists := table[model.Model]; exists {
			return nil, fmt.Errorf("answer model %s already registered", model.Model)
		}
		table[model.Model] = model
	}
	return &AnswerModels{models: table}, nil
}

// DefaultAnswerModels returns the built-in table.
func DefaultAnswerModels() *AnswerModels {
	models, err := NewAnswerModels(defaultAnswerModels()...)
	if err != nil {
		panic(err)
	}
	return models
}

// Lookup returns the record for model.
func (r *AnswerModels) Lookup(model ModelID) (AnswerModel, bool) {
	answerModel, ok := r.models[model]
	return answerModel, ok
}

// Models returns every model in the table.
func (r *AnswerModels) Models() []ModelID {
	ids := make([]ModelID, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	return ids
}

const (
	inlineTokens = 256

	window4k   = 4096
	window8k   = 8192
	window16k  = 16384
	window32k  = 32768
	window128k = 128000
	window200k = 200000
	window1m   = 1048576
)

func defaultAnswerModels() []AnswerModel {
	long := func(model ModelID, inline int) AnswerModel {
		return AnswerModel{
			Model: model, TotalTokens: window128k, AnswerTokens: 4096,
			PromptTokensBudget: 80000, HistoryTokensBudget: 20000, InlineCompletionTokens: inline,
		}
	}
	mid := func(model ModelID, answer, inline int) AnswerModel {
		return AnswerModel{
			Model: model, TotalTokens: window16k, AnswerTokens: answer,
			PromptTokensBudget: 8192, HistoryTokensBudget: 4096, InlineCompletionTokens: inline,
		}
	}
	claude := func(model ModelID) AnswerModel {
		return AnswerModel{
			Model: model, TotalTokens: window200k, AnswerTokens: 8192,
			PromptTokensBudget: 150000, HistoryTokensBudget: 20000, InlineCompletionTokens: inlineTokens,
		}
	}
	gemini := func(model ModelID) AnswerModel {
		return AnswerModel{
			Model: model, TotalTokens: window1m, AnswerTokens: 8192,
			PromptTokensBudget: 800000, HistoryTokensBudget: 100000,
		}
	}

	return []AnswerModel{
		{
			Model: ModelGPT35Turbo16k, TotalTokens: window16k, AnswerTokens: 2048,
			PromptTokensBudget: 4096, HistoryTokensBudget: 2048,
		},
		{
			Model: ModelGPT4, TotalTokens: window8k, AnswerTokens: 1024,
			PromptTokensBudget: 2500, HistoryTokensBudget: 2048,
		},
		{
			Model: ModelGPT4_32k, TotalTokens: window32k, AnswerTokens: 8192,
			PromptTokensBudget: 16384, HistoryTokensBudget: 8192,
		},
		long(ModelGPT4Turbo, 0),
		long(ModelGPT4O, inlineTokens),
		long(ModelGPT4OMini, inlineTokens),
		claude(ModelClaudeOpus),
		claude(ModelClaudeSonnet),
		claude(ModelClaudeHaiku),
		gemini(ModelGeminiPro),
		gemini(ModelGeminiProFlash),
		gemini(ModelGemini2Flash),
		{
			Model: ModelMixtral, TotalTokens: window32k, AnswerTokens: 1024,
			PromptTokensBudget: 16000, HistoryTokensBudget: 8000,
		},
		{
			Model: ModelMistralInstruct, TotalTokens: window8k, AnswerTokens: 1024,
			PromptTokensBudget: 4096, HistoryTokensBudget: 2048,
		},
		mid(ModelCodeLlama7BInstruct, 1024, inlineTokens),
		mid(ModelCodeLlama13BInstruct, 1024, inlineTokens),
		mid(ModelCodeLlama13B, 1024, inlineTokens),
		{
			Model: ModelCodeLlama70BInstruct, TotalTokens: window4k, AnswerTokens: 1024,
			PromptTokensBudget: 2048, HistoryTokensBudget: 1024,
		},
		mid(ModelDeepSeekCoder1_3BBase, 1024, inlineTokens),
		mid(ModelDeepSeekCoder6BInstruct, 2048, inlineTokens),
		mid(ModelDeepSeekCoder33BInstruct, 2048, inlineTokens),
		long(ModelDeepSeekCoderV2, inlineTokens),
		{
			Model: ModelLlama3_8bInstruct, TotalTokens: window8k, AnswerTokens: 1024,
			PromptTokensBudget: 4096, HistoryTokensBudget: 2048,
		},
		long(ModelLlama3_1_8bInstruct, 0),
		long(ModelLlama3_1_70bInstruct, 0),
		mid(ModelStarCoder2, 1024, inlineTokens),
	}
}
