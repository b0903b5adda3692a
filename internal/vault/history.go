package vault

import (
	"sync"

	"github.com/lazypower/memvault/internal/llm"
)

// DefaultHistoryTurns bounds a History created with a non-positive size.
const DefaultHistoryTurns = 20

// History is an in-process conversation buffer. It keeps the most recent
// turns up to its size and is never persisted.
type History struct {
	mu    sync.Mutex
	turns []llm.Turn
	max   int
}

// NewHistory creates a History holding at most maxTurns turns.
func NewHistory(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = DefaultHistoryTurns
	}
	return &History{max: maxTurns}
}

// Append adds turns, dropping the oldest beyond the size limit.
func (h *History) Append(turns ...llm.Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
	if over := len(h.turns) - h.max; over > 0 {
		h.turns = append([]llm.Turn(nil), h.turns[over:]...)
	}
}

// Turns returns a copy of the last limit turns, or all of them when
// limit <= 0.
func (h *History) Turns(limit int) []llm.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	turns := h.turns
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]llm.Turn{}, turns...)
}

// Len returns the number of buffered turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Reset drops every turn.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}
