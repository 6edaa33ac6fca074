package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/sidecar/internal/domain"
)

func TestDefaultAnswerModels(t *testing.T) {
	t.Run("should keep every budget inside the context window", func(t *testing.T) {
		models := domain.DefaultAnswerModels()
		require.NotEmpty(t, models.Models())

		for _, id := range models.Models() {
			model, ok := models.Lookup(id)
			require.True(t, ok)
			require.LessOrEqual(t, model.AnswerTokens+model.PromptTokensBudget+model.HistoryTokensBudget,
				model.TotalTokens, id)
		}
	})

	t.Run("should give inline completion budgets to infill models only", func(t *testing.T) {
		models := domain.DefaultAnswerModels()

		codeLlama, ok := models.Lookup(domain.ModelCodeLlama13B)
		require.True(t, ok)
		require.Positive(t, codeLlama.InlineCompletionTokens)

		gpt4, ok := models.Lookup(domain.ModelGPT4)
		require.True(t, ok)
		require.Zero(t, gpt4.InlineCompletionTokens)
	})
}

func TestNewAnswerModels(t *testing.T) {
	t.Run("should reject budgets larger than the window", func(t *testing.T) {
		_, err := domain.NewAnswerModels(domain.AnswerModel{
			Model: "tiny", TotalTokens: 100, AnswerTokens: 50, PromptTokensBudget: 40, HistoryTokensBudget: 20,
		})
		require.Error(t, err)
	})

	t.Run("should reject duplicate models", func(t *testing.T) {
		entry := domain.AnswerModel{Model: "m", TotalTokens: 10}
		_, err := domain.NewAnswerModels(entry, entry)
		require.Error(t, err)
	})
}

func TestAnswerModel_Fits(t *testing.T) {
	t.Run("should report the remaining window", func(t *testing.T) {
		model := domain.AnswerModel{Model: "m", TotalTokens: 1000, AnswerTokens: 200}

		remaining, fits := model.Fits(700)
		require.True(t, fits)
		require.Equal(t, 100, remaining)

		remaining, fits = model.Fits(900)
		require.False(t, fits)
		require.Equal(t, -100, remaining)
	})
}
