package vault

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/memvault/internal/index"
	"github.com/lazypower/memvault/internal/llm"
	"github.com/lazypower/memvault/internal/memory"
	"github.com/lazypower/memvault/internal/store"
)

func results(texts ...string) []memory.SearchResult {
	out := make([]memory.SearchResult, len(texts))
	for i, text := range texts {
		out[i] = memory.SearchResult{Record: &memory.Record{ID: text, Text: text}, Score: 1 - float64(i)/10}
	}
	return out
}

func TestBuildContext(t *testing.T) {
	got := BuildContext(results("likes tea", "lives in Oslo"), 4000)
	assert.Equal(t, "## Relevant Memories:\n- likes tea\n- lives in Oslo", got)

	assert.Empty(t, BuildContext(nil, 4000))
}

func TestBuildContextTruncatesWithinBudget(t *testing.T) {
	long := strings.Repeat("é", 200)
	budget := utf8.RuneCountInString(contextHeader) + len("\n- short") + 50

	got := BuildContext(results("short", long, "never reached"), budget)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), budget)
	assert.True(t, strings.HasPrefix(got, "## Relevant Memories:\n- short\n- éé"))
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.NotContains(t, got, "never reached")
	assert.Equal(t, budget, utf8.RuneCountInString(got))
}

func TestBuildContextDropsLineWhenLittleRoomRemains(t *testing.T) {
	budget := utf8.RuneCountInString(contextHeader) + len("\n- short") + minTruncatedRunes - 1

	got := BuildContext(results("short", strings.Repeat("x", 100), "tiny"), budget)
	assert.Equal(t, "## Relevant Memories:\n- short", got)
}

func TestBuildContextBudgetSmallerThanHeader(t *testing.T) {
	assert.Empty(t, BuildContext(results("anything"), 5))
}

func TestChatBuildsPromptFromMemories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.add(t, "I prefer Python for backend development")
	f.add(t, "My project deadline is March 15th")

	answer, err := f.engine.Chat(ctx, "Which language should I use?", ChatOptions{TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)

	prompt := f.chat.LastPrompt()
	assert.Contains(t, prompt, "## Relevant Memories:\n- I prefer Python for backend development")
	assert.NotContains(t, prompt, "deadline")
	assert.NotContains(t, prompt, llm.MemoriesPlaceholder)
	assert.True(t, strings.HasSuffix(prompt, "User: Which language should I use?\nAssistant:"))

	n, err := f.engine.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "chat must not persist anything")
}

func TestChatCustomSystemPrompt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.add(t, "coffee every morning")

	_, err := f.engine.Chat(ctx, "coffee?", ChatOptions{SystemPrompt: "Known:\n{memories}\nBe terse."})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.chat.LastPrompt(), "Known:\n## Relevant Memories:\n- coffee every morning\nBe terse."))

	_, err = f.engine.Chat(ctx, "coffee?", ChatOptions{SystemPrompt: "No placeholder here."})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.chat.LastPrompt(), "No placeholder here.\n\n## Relevant Memories:"))
}

func TestChatUsesConfiguredSystemPrompt(t *testing.T) {
	chat := &llm.MockClient{Response: &llm.Response{Content: "ok"}}
	e, err := New(Config{SystemPrompt: "CONFIGURED {memories}"}, store.NewMemory(), index.NewBruteForce(testDims), newConceptEmbedder(), chat)
	require.NoError(t, err)

	_, err = e.Chat(context.Background(), "hello", ChatOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(chat.LastPrompt(), "CONFIGURED "))
}

func TestChatHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := NewHistory(10)

	_, err := f.engine.Chat(ctx, "first question", ChatOptions{History: h})
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())

	_, err = f.engine.Chat(ctx, "second question", ChatOptions{History: h})
	require.NoError(t, err)
	assert.Contains(t, f.chat.LastPrompt(), "User: first question\nAssistant: answer\nUser: second question\nAssistant:")
	assert.Equal(t, 4, h.Len())
}

func TestChatWithoutProvider(t *testing.T) {
	e, err := New(Config{}, store.NewMemory(), index.NewBruteForce(testDims), newConceptEmbedder(), nil)
	require.NoError(t, err)
	assert.False(t, e.ChatEnabled())

	_, err = e.Chat(context.Background(), "hello", ChatOptions{})
	assert.ErrorIs(t, err, memory.ErrProvider)
}

func TestChatProviderError(t *testing.T) {
	f := newFixture(t)
	f.chat.Err = errors.New("overloaded")
	h := NewHistory(4)

	_, err := f.engine.Chat(context.Background(), "hello", ChatOptions{History: h})
	require.ErrorIs(t, err, memory.ErrProvider)
	assert.Zero(t, h.Len(), "failed exchanges are not recorded")
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(3)
	for _, c := range []string{"a", "b", "c", "d"} {
		h.Append(llm.Turn{Role: llm.RoleUser, Content: c})
	}
	turns := h.Turns(0)
	require.Len(t, turns, 3)
	assert.Equal(t, "b", turns[0].Content)
	assert.Equal(t, "d", turns[2].Content)

	last := h.Turns(1)
	require.Len(t, last, 1)
	assert.Equal(t, "d", last[0].Content)

	last[0].Content = "mutated"
	assert.Equal(t, "d", h.Turns(1)[0].Content)

	h.Reset()
	assert.Zero(t, h.Len())
	assert.Equal(t, DefaultHistoryTurns, NewHistory(0).max)
}
