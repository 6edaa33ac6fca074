package fim

import (
	"strings"

	"github.com/davidbz/sidecar/internal/domain"
)

// Cursor marks the insertion point in chat-shaped FIM prompts.
const Cursor = "<<CURSOR>>"

const chatInstruction = "You are a code completion engine. The user sends a code file inside <prompt> tags. " +
	"The insertion point is marked by the word CURSOR wrapped in double angle brackets. " +
	"Reply with only the code that belongs at the insertion point: no explanation, no code fences, " +
	"and no repetition of the surrounding code."

// formatter renders one FIM request shape.
type formatter struct {
	// sentinels are scrubbed out of the prefix and suffix before rendering.
	sentinels []string
	// stopWords are appended to the caller's stop words.
	stopWords []string
	render    func(prefix, suffix string) string
	chat      bool
}

func sentinelFormatter(begin, hole, end string, stopWords ...string) formatter {
	return formatter{
		sentinels: []string{begin, hole, end},
		stopWords: stopWords,
		render: func(prefix, suffix string) string {
			return begin + prefix + hole + suffix + end
		},
	}
}

//nolint:gochecknoglobals // stateless formatter values
var (
	codeLlama = formatter{
		sentinels: []string{"<PRE>", "<SUF>", "<MID>"},
		stopWords: []string{"<EOT>"},
		render: func(prefix, suffix string) string {
			return "<PRE> " + prefix + " <SUF>" + suffix + " <MID>"
		},
	}

	deepSeek = sentinelFormatter("<｜fim▁begin｜>", "<｜fim▁hole｜>", "<｜fim▁end｜>",
		"<｜end▁of▁sentence｜>", "<|EOT|>")

	starCoder = sentinelFormatter("<fim_prefix>", "<fim_suffix>", "<fim_middle>",
		"<|endoftext|>", "<file_sep>")

	chatFIM = formatter{
		sentinels: []string{Cursor},
		render: func(prefix, suffix string) string {
			return "<prompt>\n" + prefix + Cursor + suffix + "\n</prompt>"
		},
		chat: true,
	}
)

func defaultFormatters() map[domain.ModelID]formatter {
	return map[domain.ModelID]formatter{
		domain.ModelCodeLlama7BInstruct:      codeLlama,
		domain.ModelCodeLlama13BInstruct:     codeLlama,
		domain.ModelCodeLlama13B:             codeLlama,
		domain.ModelDeepSeekCoder1_3BBase:    deepSeek,
		domain.ModelDeepSeekCoder6BInstruct:  deepSeek,
		domain.ModelDeepSeekCoder33BInstruct: deepSeek,
		domain.ModelDeepSeekCoderV2:          deepSeek,
		domain.ModelStarCoder2:               starCoder,
		domain.ModelClaudeOpus:               chatFIM,
		domain.ModelClaudeSonnet:             chatFIM,
		domain.ModelClaudeHaiku:              chatFIM,
		domain.ModelGPT4O:                    chatFIM,
		domain.ModelGPT4OMini:                chatFIM,
	}
}

func (f formatter) scrub(text string) string {
	for _, sentinel := range f.sentinels {
		text = strings.ReplaceAll(text, sentinel, "")
	}
	return text
}

// clean cuts text at the first stop word or sentinel the model echoed back.
func (f formatter) clean(text string) string {
	for _, marker := range append(append([]string{}, f.stopWords...), f.sentinels...) {
		if i := strings.Index(text, marker); i >= 0 {
			text = text[:i]
		}
	}
	if f.chat {
		text = strings.TrimSuffix(strings.TrimPrefix(text, "<prompt>\n"), "\n</prompt>")
	}
	return text
}
