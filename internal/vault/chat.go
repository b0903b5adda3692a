package vault

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lazypower/memvault/internal/llm"
	"github.com/lazypower/memvault/internal/memory"
)

const (
	contextHeader = "## Relevant Memories:"
	ellipsis      = "…"
	// minTruncatedRunes is the smallest remaining budget worth filling
	// with a truncated line.
	minTruncatedRunes = 32
)

// ChatOptions configures one Chat call. An empty SystemPrompt means the
// engine's configured prompt. History, when set, supplies prior turns and
// receives the new exchange.
type ChatOptions struct {
	TopK         int
	MinScore     *float64
	SystemPrompt string
	History      *History
}

// Chat answers query with the most relevant memories as context. Nothing is
// written to the store.
func (e *Engine) Chat(ctx context.Context, query string, opts ChatOptions) (answer string, err error) {
	ctx, done := e.begin(ctx, "chat")
	defer done(&err)

	if e.chat == nil {
		return "", fmt.Errorf("%w: no chat provider configured", memory.ErrProvider)
	}
	results, err := e.Search(ctx, query, SearchOptions{TopK: opts.TopK, MinScore: opts.MinScore})
	if err != nil {
		return "", err
	}

	system := opts.SystemPrompt
	if system == "" {
		system = e.cfg.SystemPrompt
	}
	system = llm.SystemPrompt(system, BuildContext(results, e.cfg.MaxContextChars))

	var history []llm.Turn
	if opts.History != nil {
		history = opts.History.Turns(0)
	}
	prompt := llm.ChatPrompt(system, history, query)

	resp, err := e.chat.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: chat: %w", memory.ErrProvider, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: chat: empty response", memory.ErrProvider)
	}

	if opts.History != nil {
		opts.History.Append(
			llm.Turn{Role: llm.RoleUser, Content: query},
			llm.Turn{Role: llm.RoleAssistant, Content: resp.Content},
		)
	}
	e.logger.DebugContext(ctx, "chat answered", "memories", len(results), "provider", resp.Provider)
	return resp.Content, nil
}

// BuildContext renders results as a "## Relevant Memories:" block of at
// most maxChars runes. Lines are added whole in order; the first line that
// does not fit is cut with an ellipsis if at least minTruncatedRunes remain
// and dropped otherwise, and nothing follows it. With no lines the block is
// empty.
func BuildContext(results []memory.SearchResult, maxChars int) string {
	remaining := maxChars - utf8.RuneCountInString(contextHeader)
	var b strings.Builder
	b.WriteString(contextHeader)
	lines := 0
	for _, r := range results {
		if r.Record == nil {
			continue
		}
		line := "\n- " + r.Record.Text
		n := utf8.RuneCountInString(line)
		if n <= remaining {
			b.WriteString(line)
			remaining -= n
			lines++
			continue
		}
		if remaining >= minTruncatedRunes {
			runes := []rune(line)
			b.WriteString(string(runes[:remaining-1]))
			b.WriteString(ellipsis)
			lines++
		}
		break
	}
	if lines == 0 {
		return ""
	}
	return b.String()
}
