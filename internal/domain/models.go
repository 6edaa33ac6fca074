package domain

// ModelID identifies a model across the whole sidecar. Known models are the
// constants below; any other value is a custom model created with Custom.
type ModelID string

const (
	ModelGPT35Turbo16k ModelID = "gpt-3.5-turbo-16k"
	ModelGPT4          ModelID = "gpt-4"
	ModelGPT4_32k      ModelID = "gpt-4-32k"
	ModelGPT4Turbo     ModelID = "gpt-4-turbo"
	ModelGPT4O         ModelID = "gpt-4o"
	ModelGPT4OMini     ModelID = "gpt-4o-mini"

	ModelClaudeOpus   ModelID = "claude-opus"
	ModelClaudeSonnet ModelID = "claude-sonnet"
	ModelClaudeHaiku  ModelID = "claude-haiku"

	ModelGeminiPro      ModelID = "gemini-pro"
	ModelGeminiProFlash ModelID = "gemini-pro-flash"
	ModelGemini2Flash   ModelID = "gemini-2.0-flash"

	ModelMixtral         ModelID = "mixtral"
	ModelMistralInstruct ModelID = "mistral-instruct"

	ModelCodeLlama7BInstruct  ModelID = "codellama-7b-instruct"
	ModelCodeLlama13BInstruct ModelID = "codellama-13b-instruct"
	ModelCodeLlama13B         ModelID = "codellama-13b"
	ModelCodeLlama70BInstruct ModelID = "codellama-70b-instruct"

	ModelDeepSeekCoder1_3BBase    ModelID = "deepseek-coder-1.3b-base"
	ModelDeepSeekCoder6BInstruct  ModelID = "deepseek-coder-6b-instruct"
	ModelDeepSeekCoder33BInstruct ModelID = "deepseek-coder-33b-instruct"
	ModelDeepSeekCoderV2          ModelID = "deepseek-coder-v2"

	ModelLlama3_8bInstruct    ModelID = "llama3-8b-instruct"
	ModelLlama3_1_8bInstruct  ModelID = "llama3.1-8b-instruct"
	ModelLlama3_1_70bInstruct ModelID = "llama3.1-70b-instruct"

	ModelStarCoder2 ModelID = "starcoder2"
)

//nolint:gochecknoglobals // closed catalogue
var knownModels = map[ModelID]struct{}{
	ModelGPT35Turbo16k: {}, ModelGPT4: {}, ModelGPT4_32k: {}, ModelGPT4Turbo: {},
	ModelGPT4O: {}, ModelGPT4OMini: {},
	ModelClaudeOpus: {}, ModelClaudeSonnet: {}, ModelClaudeHaiku: {},
	ModelGeminiPro: {}, ModelGeminiProFlash: {}, ModelGemini2Flash: {},
	ModelMixtral: {}, ModelMistralInstruct: {},
	ModelCodeLlama7BInstruct: {}, ModelCodeLlama13BInstruct: {}, ModelCodeLlama13B: {},
	ModelCodeLlama70BInstruct: {},
	ModelDeepSeekCoder1_3BBase: {}, ModelDeepSeekCoder6BInstruct: {},
	ModelDeepSeekCoder33BInstruct: {}, ModelDeepSeekCoderV2: {},
	ModelLlama3_8bInstruct: {}, ModelLlama3_1_8bInstruct: {}, ModelLlama3_1_70bInstruct: {},
	ModelStarCoder2: {},
}

// Custom returns a ModelID for a model outside the known catalogue.
func Custom(name string) ModelID {
	return ModelID(name)
}

// IsCustom reports whether the model is outside the known catalogue.
func (m ModelID) IsCustom() bool {
	_, known := knownModels[m]
	return !known
}

// IsOpenAI reports whether the model belongs to the OpenAI GPT family.
func (m ModelID) IsOpenAI() bool {
	switch m {
	case ModelGPT35Turbo16k, ModelGPT4, ModelGPT4_32k, ModelGPT4Turbo, ModelGPT4O, ModelGPT4OMini:
		return true
	default:
		return false
	}
}

// IsAnthropic reports whether the model belongs to the Claude family.
func (m ModelID) IsAnthropic() bool {
	return m == ModelClaudeOpus || m == ModelClaudeSonnet || m == ModelClaudeHaiku
}

func (m ModelID) String() string {
	return string(m)
}

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// FunctionCall carries the metadata of a function message.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Message is a single chat message. Ordering within a request is significant.
type Message struct {
	Role         Role          `json:"role"`
	Content      string        `json:"content"`
	CacheHint    bool          `json:"cache_hint,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// FunctionMessage builds a function result message.
func FunctionMessage(name, content string) Message {
	return Message{Role: RoleFunction, Content: content, FunctionCall: &FunctionCall{Name: name}}
}

// CompletionRequest is a provider-neutral chat completion request.
type CompletionRequest struct {
	Model            ModelID           `json:"model"`
	Messages         []Message         `json:"messages"`
	Temperature      float64           `json:"temperature"`
	FrequencyPenalty *float64          `json:"frequency_penalty,omitempty"`
	MaxTokens        int               `json:"max_tokens,omitempty"`
	StopWords        []string          `json:"stop_words,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// StringCompletionRequest is a raw-prompt completion request.
type StringCompletionRequest struct {
	Model            ModelID           `json:"model"`
	Prompt           string            `json:"prompt"`
	Temperature      float64           `json:"temperature"`
	FrequencyPenalty *float64          `json:"frequency_penalty,omitempty"`
	MaxTokens        int               `json:"max_tokens,omitempty"`
	StopWords        []string          `json:"stop_words,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// AnswerRequest holds exactly one of a chat or a raw-prompt request.
type AnswerRequest struct {
	Chat   *CompletionRequest
	Prompt *StringCompletionRequest
}

// ChatAnswer wraps a chat request.
func ChatAnswer(req *CompletionRequest) AnswerRequest {
	return AnswerRequest{Chat: req}
}

// PromptAnswer wraps a raw-prompt request.
func PromptAnswer(req *StringCompletionRequest) AnswerRequest {
	return AnswerRequest{Prompt: req}
}

// Model returns the model of whichever variant is set.
func (a AnswerRequest) Model() ModelID {
	switch {
	case a.Chat != nil:
		return a.Chat.Model
	case a.Prompt != nil:
		return a.Prompt.Model
	default:
		return ""
	}
}

// Metadata returns the metadata bag of whichever variant is set.
func (a AnswerRequest) Metadata() map[string]string {
	switch {
	case a.Chat != nil:
		return a.Chat.Metadata
	case a.Prompt != nil:
		return a.Prompt.Metadata
	default:
		return nil
	}
}

// Delta is one incremental update pushed to a Sink. TextSoFar always equals
// the concatenation of every delta delivered so far, this one included.
type Delta struct {
	TextSoFar string  `json:"text_so_far"`
	Delta     *string `json:"delta,omitempty"`
	ModelEcho string  `json:"model"`
}

// Increment returns the delta text, or "" when the delta carries none.
func (d Delta) Increment() string {
	if d.Delta == nil {
		return ""
	}
	return *d.Delta
}
