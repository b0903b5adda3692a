package llm

import "strings"

// MemoriesPlaceholder marks where retrieved memories go in a system prompt.
// MemoriesSectionPlaceholder is accepted as an alias.
const (
	MemoriesPlaceholder        = "{memories}"
	MemoriesSectionPlaceholder = "{memories_section}"
)

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = `You are a helpful assistant with access to the user's long-term memory.
Use the relevant memories below when they help answer the question.
If the memories do not cover the question, answer from general knowledge and say so.

{memories}`

// Turn is one message in a conversation.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SystemPrompt places the memory block into system. When system has no
// placeholder the block is appended after a blank line. An empty system
// means DefaultSystemPrompt.
func SystemPrompt(system, memories string) string {
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemPrompt
	}
	if strings.Contains(system, MemoriesPlaceholder) || strings.Contains(system, MemoriesSectionPlaceholder) {
		return strings.NewReplacer(
			MemoriesSectionPlaceholder, memories,
			MemoriesPlaceholder, memories,
		).Replace(system)
	}
	if memories == "" {
		return system
	}
	return strings.TrimRight(system, "\n") + "\n\n" + memories
}

// ChatPrompt renders a single-string prompt: the system text, prior turns
// as User:/Assistant: lines, the new question and an open Assistant: turn.
func ChatPrompt(system string, history []Turn, query string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(system, "\n"))
	b.WriteString("\n\n")
	for _, t := range history {
		if t.Role == RoleAssistant {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(query)
	b.WriteString("\nAssistant:")
	return b.String()
}
