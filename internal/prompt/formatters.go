package prompt

import (
	"strings"

	"github.com/davidbz/sidecar/internal/domain"
)

// LlamaInstruct renders the Llama-2 / Mistral instruct format. Leading
// assistant turns are dropped and consecutive user or system turns share
// one [INST] block. A trailing assistant turn is left open for the model
// to continue.
func LlamaInstruct(messages []domain.Message) string {
	var b strings.Builder
	var user, assistant []string

	emit := func(closed bool) {
		b.WriteString("<s>[INST] ")
		b.WriteString(strings.Join(user, "\n"))
		b.WriteString(" [/INST]")
		b.WriteString(strings.Join(assistant, "\n"))
		if closed {
			b.WriteString("</s>")
		}
		user, assistant = nil, nil
	}

	for _, msg := range messages {
		if msg.Role == domain.RoleAssistant {
			if len(user) == 0 && len(assistant) == 0 {
				continue
			}
			assistant = append(assistant, msg.Content)
			continue
		}
		if len(assistant) > 0 {
			emit(true)
		}
		user = append(user, msg.Content)
	}
	if len(user) > 0 {
		emit(false)
	}

	return b.String()
}

// MixtralInstruct renders the Mixtral instruct format. The system prompt is
// folded into the first user turn and the remaining turns are coalesced into
// strict user/assistant alternation.
func MixtralInstruct(messages []domain.Message) string {
	turns := alternate(messages)

	var b strings.Builder
	b.WriteString("<s>")
	for i, turn := range turns {
		if turn.Role == domain.RoleUser {
			b.WriteString("[INST] ")
			b.WriteString(turn.Content)
			b.WriteString(" [/INST]")
			continue
		}
		b.WriteString(" ")
		b.WriteString(turn.Content)
		if i < len(turns)-1 {
			b.WriteString("</s>")
		}
	}
	return b.String()
}

// CodeLlama70BInstruct renders the sentinel-free "Source:" format.
func CodeLlama70BInstruct(messages []domain.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString("Source: ")
		b.WriteString(sourceRole(msg.Role))
		b.WriteString("\n\n ")
		b.WriteString(strings.TrimSpace(msg.Content))
		b.WriteString(" <step> ")
	}
	b.WriteString("Source: assistant\nDestination: user\n\n ")
	return b.String()
}

// Llama3Instruct renders the Llama-3 header format.
func Llama3Instruct(messages []domain.Message) string {
	var b strings.Builder
	b.WriteString("<|begin_of_text|>")
	for _, msg := range messages {
		b.WriteString("<|start_header_id|>")
		b.WriteString(sourceRole(msg.Role))
		b.WriteString("<|end_header_id|>\n\n")
		b.WriteString(msg.Content)
		b.WriteString("<|eot_id|>")
	}
	b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	return b.String()
}

// DeepSeekInstruct renders the DeepSeek-Coder instruct format.
func DeepSeekInstruct(messages []domain.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			b.WriteString(msg.Content)
			b.WriteString("\n")
		case domain.RoleAssistant:
			b.WriteString("### Response:\n")
			b.WriteString(msg.Content)
			b.WriteString("\n<|EOT|>\n")
		default:
			b.WriteString("### Instruction:\n")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("### Response:\n")
	return b.String()
}

// CoalesceSameRole merges runs of messages with the same role, joining their
// contents with a blank line. A merged message keeps the cache hint of any
// message in its run.
func CoalesceSameRole(messages []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(messages))
	for _, msg := range messages {
		last := len(out) - 1
		if last >= 0 && out[last].Role == msg.Role {
			out[last].Content += "\n\n" + msg.Content
			out[last].CacheHint = out[last].CacheHint || msg.CacheHint
			continue
		}
		out = append(out, domain.Message{Role: msg.Role, Content: msg.Content, CacheHint: msg.CacheHint})
	}
	return out
}

// alternate normalises messages to user/assistant turns starting with a user
// turn: system and function content becomes user content, leading assistant
// turns are dropped and same-role runs are coalesced.
func alternate(messages []domain.Message) []domain.Message {
	normalised := make([]domain.Message, 0, len(messages))
	for _, msg := range messages {
		role := domain.RoleUser
		if msg.Role == domain.RoleAssistant {
			if len(normalised) == 0 {
				continue
			}
			role = domain.RoleAssistant
		}
		normalised = append(normalised, domain.Message{Role: role, Content: msg.Content})
	}
	return CoalesceSameRole(normalised)
}

func sourceRole(role domain.Role) string {
	switch role {
	case domain.RoleSystem, domain.RoleAssistant:
		return string(role)
	default:
		return string(domain.RoleUser)
	}
}
