package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/memvault/internal/memory"
	"github.com/lazypower/memvault/internal/vault"
)

// memoryJSON is the API view of a record. Embeddings are not exposed.
type memoryJSON struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Metadata  memory.Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toJSON(rec *memory.Record) memoryJSON {
	return memoryJSON{
		ID:        rec.ID,
		Text:      rec.Text,
		Metadata:  rec.Metadata,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string          `json:"text"`
		Metadata memory.Metadata `json:"metadata"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := s.engine.Add(r.Context(), req.Text, req.Metadata)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	var opts memory.ListOptions
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			s.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest))
			return
		}
		opts.Limit = n
	}
	order, err := memory.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	opts.Order = order

	recs, err := s.engine.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]memoryJSON, len(recs))
	for i, rec := range recs {
		out[i] = toJSON(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": out, "count": len(out)})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(rec))
}

func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Text     *string         `json:"text"`
		Metadata memory.Metadata `json:"metadata"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		rec *memory.Record
		err error
	)
	switch {
	case req.Text != nil:
		rec, err = s.engine.Update(r.Context(), id, *req.Text, req.Metadata)
	case req.Metadata != nil:
		rec, err = s.engine.UpdateMetadata(r.Context(), id, req.Metadata)
	default:
		err = fmt.Errorf("%w: text or metadata required", errBadRequest)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(rec))
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (s *Server) handleClearMemories(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.Clear(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query    string   `json:"query"`
		TopK     int      `json:"top_k"`
		MinScore *float64 `json:"min_score"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	results, err := s.engine.Search(r.Context(), req.Query, vault.SearchOptions{TopK: req.TopK, MinScore: req.MinScore})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	type resultJSON struct {
		Memory memoryJSON `json:"memory"`
		Score  float64    `json:"score"`
	}
	out := make([]resultJSON, len(results))
	for i, res := range results {
		out[i] = resultJSON{Memory: toJSON(res.Record), Score: res.Score}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out, "count": len(out)})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query          string   `json:"query"`
		TopK           int      `json:"top_k"`
		MinScore       *float64 `json:"min_score"`
		SystemPrompt   string   `json:"system_prompt"`
		IncludeHistory *bool    `json:"include_history"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := vault.ChatOptions{TopK: req.TopK, MinScore: req.MinScore, SystemPrompt: req.SystemPrompt}
	if req.IncludeHistory == nil || *req.IncludeHistory {
		opts.History = s.history
	}
	answer, err := s.engine.Chat(r.Context(), req.Query, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": answer})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	turns := s.history.Turns(0)
	writeJSON(w, http.StatusOK, map[string]any{"messages": turns, "count": len(turns)})
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	s.history.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reembed bool `json:"reembed"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	n, err := s.engine.Reindex(r.Context(), vault.ReindexOptions{Reembed: req.Reembed})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"indexed": n})
}
