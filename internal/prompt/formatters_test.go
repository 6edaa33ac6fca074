package prompt_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/prompt"
)

func TestLlamaInstruct(t *testing.T) {
	t.Run("should skip leading assistant turns and join user turns", func(t *testing.T) {
		out := prompt.LlamaInstruct([]domain.Message{
			domain.AssistantMessage("hello there"),
			domain.SystemMessage("be brief"),
			domain.UserMessage("hi"),
			domain.AssistantMessage("hey"),
			domain.UserMessage("bye"),
		})

		require.Equal(t, "<s>[INST] be brief\nhi [/INST]hey</s><s>[INST] bye [/INST]", out)
	})

	t.Run("should leave a trailing assistant turn open", func(t *testing.T) {
		out := prompt.LlamaInstruct([]domain.Message{
			domain.UserMessage("write a loop"),
			domain.AssistantMessage("for i :="),
		})

		require.Equal(t, "<s>[INST] write a loop [/INST]for i :=", out)
	})

	t.Run("should render nothing for assistant-only input", func(t *testing.T) {
		require.Empty(t, prompt.LlamaInstruct([]domain.Message{domain.AssistantMessage("x")}))
	})
}

func TestMixtralInstruct(t *testing.T) {
	t.Run("should fold system into the first user turn and alternate", func(t *testing.T) {
		out := prompt.MixtralInstruct([]domain.Message{
			domain.SystemMessage("sys"),
			domain.UserMessage("a"),
			domain.AssistantMessage("b"),
			domain.AssistantMessage("c"),
			domain.UserMessage("d"),
		})

		require.Equal(t, "<s>[INST] sys\n\na [/INST] b\n\nc</s>[INST] d [/INST]", out)
	})
}

func TestCodeLlama70BInstruct(t *testing.T) {
	t.Run("should use source headers and the destination trailer", func(t *testing.T) {
		out := prompt.CodeLlama70BInstruct([]domain.Message{
			domain.SystemMessage("sys"),
			domain.UserMessage("q"),
		})

		require.Equal(t,
			"Source: system\n\n sys <step> Source: user\n\n q <step> Source: assistant\nDestination: user\n\n ",
			out)
	})
}

func TestLlama3Instruct(t *testing.T) {
	t.Run("should wrap every turn in headers", func(t *testing.T) {
		out := prompt.Llama3Instruct([]domain.Message{domain.UserMessage("hi")})

		require.Equal(t,
			"<|begin_of_text|><|start_header_id|>user<|end_header_id|>\n\nhi<|eot_id|>"+
				"<|start_header_id|>assistant<|end_header_id|>\n\n",
			out)
	})
}

func TestDeepSeekInstruct(t *testing.T) {
	t.Run("should render instruction and response blocks", func(t *testing.T) {
		out := prompt.DeepSeekInstruct([]domain.Message{
			domain.SystemMessage("sys"),
			domain.UserMessage("q"),
			domain.AssistantMessage("a"),
			domain.UserMessage("q2"),
		})

		require.Equal(t, "sys\n### Instruction:\nq\n### Response:\na\n<|EOT|>\n### Instruction:\nq2\n### Response:\n", out)
	})
}

func TestCoalesceSameRole(t *testing.T) {
	t.Run("should merge adjacent same-role messages", func(t *testing.T) {
		out := prompt.CoalesceSameRole([]domain.Message{
			domain.UserMessage("a"),
			domain.UserMessage("b"),
			domain.AssistantMessage("c"),
			domain.UserMessage("d"),
		})

		require.Equal(t, []domain.Message{
			domain.UserMessage("a\n\nb"),
			domain.AssistantMessage("c"),
			domain.UserMessage("d"),
		}, out)
	})

	t.Run("should keep cache hints of merged messages", func(t *testing.T) {
		hinted := domain.UserMessage("b")
		hinted.CacheHint = true

		out := prompt.CoalesceSameRole([]domain.Message{domain.UserMessage("a"), hinted})

		require.Len(t, out, 1)
		require.True(t, out[0].CacheHint)
	})

	t.Run("should not modify its input", func(t *testing.T) {
		in := []domain.Message{domain.UserMessage("a"), domain.UserMessage("b")}

		_ = prompt.CoalesceSameRole(in)

		require.Equal(t, "a", in[0].Content)
	})
}

func TestRegistry(t *testing.T) {
	messages := []domain.Message{
		domain.SystemMessage("sys"),
		domain.UserMessage("one"),
		domain.AssistantMessage("two"),
		domain.UserMessage("three"),
	}

	t.Run("should produce byte-identical output for identical input", func(t *testing.T) {
		registry := prompt.NewRegistry()
		for _, model := range []domain.ModelID{
			domain.ModelMistralInstruct, domain.ModelMixtral, domain.ModelCodeLlama70BInstruct,
			domain.ModelDeepSeekCoder33BInstruct, domain.ModelLlama3_1_70bInstruct,
		} {
			first, err := registry.Format(model, messages)
			require.NoError(t, err)
			second, err := prompt.NewRegistry().Format(model, messages)
			require.NoError(t, err)
			require.Equal(t, first, second, model)
		}
	})

	t.Run("should reject models without a formatter", func(t *testing.T) {
		_, err := prompt.NewRegistry().Format(domain.ModelGPT4, messages)
		require.ErrorIs(t, err, domain.ErrUnsupportedModel)

		_, ok := prompt.NewRegistry().Lookup(domain.ModelClaudeSonnet)
		require.False(t, ok)
	})
}
