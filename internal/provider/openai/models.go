package openai

import "github.com/davidbz/sidecar/internal/domain"

//nolint:gochecknoglobals // wire name tables
var (
	openAIModels = map[domain.ModelID]string{
		domain.ModelGPT4:          "gpt-4",
		domain.ModelGPT4_32k:      "gpt-4-32k",
		domain.ModelGPT35Turbo16k: "gpt-3.5-turbo-16k",
		domain.ModelGPT4Turbo:     "gpt-4-turbo",
		domain.ModelGPT4O:         "gpt-4o",
		domain.ModelGPT4OMini:     "gpt-4o-mini",
	}

	fireworksModels = map[domain.ModelID]string{
		domain.ModelMixtral:                  "accounts/fireworks/models/mixtral-8x7b-instruct",
		domain.ModelMistralInstruct:          "accounts/fireworks/models/mistral-7b-instruct-4k",
		domain.ModelCodeLlama13BInstruct:     "accounts/fireworks/models/llama-v2-13b-code-instruct",
		domain.ModelCodeLlama13B:             "accounts/fireworks/models/llama-v2-13b-code",
		domain.ModelCodeLlama70BInstruct:     "accounts/fireworks/models/llama-v2-70b-code-instruct",
		domain.ModelDeepSeekCoder33BInstruct: "accounts/fireworks/models/deepseek-coder-33b-instruct",
		domain.ModelDeepSeekCoder1_3BBase:    "accounts/fireworks/models/deepseek-coder-1b-base",
		domain.ModelDeepSeekCoderV2:          "accounts/fireworks/models/deepseek-coder-v2-instruct",
		domain.ModelLlama3_8bInstruct:        "accounts/fireworks/models/llama-v3-8b-instruct",
		domain.ModelLlama3_1_8bInstruct:      "accounts/fireworks/models/llama-v3p1-8b-instruct",
		domain.ModelLlama3_1_70bInstruct:     "accounts/fireworks/models/llama-v3p1-70b-instruct",
		domain.ModelStarCoder2:               "accounts/fireworks/models/starcoder-16b",
	}

	groqModels = map[domain.ModelID]string{
		domain.ModelLlama3_8bInstruct:    "llama3-8b-8192",
		domain.ModelLlama3_1_70bInstruct: "llama-3.1-70b-versatile",
		domain.ModelLlama3_1_8bInstruct:  "llama-3.1-8b-instant",
		domain.ModelMixtral:              "mixtral-8x7b-32768",
	}

	openRouterModels = map[domain.ModelID]string{
		domain.ModelGPT4:                 "openai/gpt-4",
		domain.ModelGPT4Turbo:            "openai/gpt-4-turbo",
		domain.ModelGPT4O:                "openai/gpt-4o",
		domain.ModelGPT4OMini:            "openai/gpt-4o-mini",
		domain.ModelClaudeOpus:           "anthropic/claude-3-opus",
		domain.ModelClaudeSonnet:         "anthropic/claude-3.5-sonnet",
		domain.ModelClaudeHaiku:          "anthropic/claude-3-haiku",
		domain.ModelGeminiPro:            "google/gemini-pro-1.5",
		domain.ModelGeminiProFlash:       "google/gemini-flash-1.5",
		domain.ModelMixtral:              "mistralai/mixtral-8x7b-instruct",
		domain.ModelDeepSeekCoderV2:      "deepseek/deepseek-coder",
		domain.ModelLlama3_1_70bInstruct: "meta-llama/llama-3.1-70b-instruct",
		domain.ModelLlama3_1_8bInstruct:  "meta-llama/llama-3.1-8b-instruct",
	}
)
