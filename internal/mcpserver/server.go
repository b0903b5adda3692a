// Package mcpserver exposes the memory engine as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lazypower/memvault/internal/memory"
	"github.com/lazypower/memvault/internal/vault"
)

// listPreviewRunes bounds the text shown per record by list_memories.
const listPreviewRunes = 100

type handlerFunc func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error)

// Server wraps an mcp-go server bound to a memory engine.
type Server struct {
	engine    *vault.Engine
	history   *vault.History
	logger    *slog.Logger
	mcpServer *server.MCPServer
	handlers  map[string]handlerFunc
}

// New creates the MCP server and registers the memory tools. history may
// be nil, in which case chat_with_memory keeps no conversation state.
func New(engine *vault.Engine, version string, history *vault.History, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:    engine,
		history:   history,
		logger:    logger,
		mcpServer: server.NewMCPServer("memvault", version, server.WithToolCapabilities(false)),
		handlers:  make(map[string]handlerFunc),
	}
	s.registerTools()
	return s
}

// ServeStdio serves MCP over stdin and stdout until the stream closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) register(tool mcp.Tool, h handlerFunc) {
	s.handlers[tool.Name] = h
	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		return h(ctx, args)
	})
}

// call invokes a registered tool directly.
func (s *Server) call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	h, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return h(ctx, args)
}

func (s *Server) registerTools() {
	s.register(mcp.NewTool("add_memory",
		mcp.WithDescription("Store new information in memory. Use this to remember facts, preferences, events, or anything the user wants kept across sessions."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The information to remember")),
		mcp.WithString("memory_type", mcp.Description("Optional type: fact, preference, event, opinion, procedure, personal")),
		mcp.WithString("tags", mcp.Description("Optional comma-separated tags")),
	), s.addMemory)

	s.register(mcp.NewTool("search_memories",
		mcp.WithDescription("Search for memories relevant to a topic or question."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What to search for")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of results (default 5)")),
	), s.searchMemories)

	s.register(mcp.NewTool("chat_with_memory",
		mcp.WithDescription("Answer a question using stored memories as context."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The user's question or message")),
		mcp.WithNumber("top_k", mcp.Description("Number of memories to use as context (default 5)")),
	), s.chatWithMemory)

	s.register(mcp.NewTool("get_memory",
		mcp.WithDescription("Retrieve a specific memory by ID."),
		mcp.WithString("memory_id", mcp.Required(), mcp.Description("The memory ID")),
	), s.getMemory)

	s.register(mcp.NewTool("delete_memory",
		mcp.WithDescription("Remove a specific memory."),
		mcp.WithString("memory_id", mcp.Required(), mcp.Description("The memory ID to delete")),
	), s.deleteMemory)

	s.register(mcp.NewTool("list_memories",
		mcp.WithDescription("Show the most recent memories."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of memories to return (default 10)")),
	), s.listMemories)

	s.register(mcp.NewTool("clear_memories",
		mcp.WithDescription("Permanently delete all stored memories."),
	), s.clearMemories)

	s.register(mcp.NewTool("memory_status",
		mcp.WithDescription("Report the record count, index size and embedding model."),
	), s.memoryStatus)
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg reads a JSON number argument, falling back to def.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return def
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError reports err to the client as a tool failure rather than a
// protocol error.
func (s *Server) toolError(ctx context.Context, tool string, err error) (*mcp.CallToolResult, error) {
	if memory.IsInconsistency(err) {
		s.logger.ErrorContext(ctx, "mcp tool failed", "tool", tool, "error", err)
	} else {
		s.logger.WarnContext(ctx, "mcp tool failed", "tool", tool, "error", err)
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= listPreviewRunes {
		return text
	}
	return string(r[:listPreviewRunes]) + "..."
}

func (s *Server) addMemory(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	meta := memory.Metadata{memory.MetaSource: "conversation"}
	if t := stringArg(args, "memory_type"); t != "" {
		meta[memory.MetaType] = t
	}
	if tags := stringArg(args, "tags"); tags != "" {
		meta[memory.MetaTags] = tags
	}
	id, err := s.engine.Add(ctx, stringArg(args, "content"), meta)
	if err != nil {
		return s.toolError(ctx, "add_memory", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Memory stored successfully (ID: %s)", id)), nil
}

type memorySummary struct {
	ID     string  `json:"id"`
	Memory string  `json:"memory"`
	Type   string  `json:"type,omitempty"`
	Score  float64 `json:"score,omitempty"`
}

func summarize(rec *memory.Record) memorySummary {
	t, _ := rec.Metadata[memory.MetaType].(string)
	return memorySummary{ID: rec.ID, Memory: rec.Text, Type: t}
}

func (s *Server) searchMemories(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	results, err := s.engine.Search(ctx, stringArg(args, "query"), vault.SearchOptions{TopK: intArg(args, "top_k", 0)})
	if err != nil {
		return s.toolError(ctx, "search_memories", err)
	}
	out := make([]memorySummary, len(results))
	for i, r := range results {
		out[i] = summarize(r.Record)
		out[i].Score = r.Score
	}
	return jsonResult(map[string]any{"memories": out, "total": len(out)})
}

func (s *Server) chatWithMemory(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	answer, err := s.engine.Chat(ctx, stringArg(args, "query"), vault.ChatOptions{
		TopK:    intArg(args, "top_k", 0),
		History: s.history,
	})
	if err != nil {
		return s.toolError(ctx, "chat_with_memory", err)
	}
	return mcp.NewToolResultText(answer), nil
}

func (s *Server) getMemory(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	rec, err := s.engine.Get(ctx, stringArg(args, "memory_id"))
	if err != nil {
		return s.toolError(ctx, "get_memory", err)
	}
	return jsonResult(map[string]any{
		"id":         rec.ID,
		"memory":     rec.Text,
		"metadata":   rec.Metadata,
		"created_at": rec.CreatedAt,
		"updated_at": rec.UpdatedAt,
	})
}

func (s *Server) deleteMemory(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	id := stringArg(args, "memory_id")
	if err := s.engine.Delete(ctx, id); err != nil {
		return s.toolError(ctx, "delete_memory", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Memory deleted successfully (ID: %s)", id)), nil
}

func (s *Server) listMemories(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	limit := intArg(args, "limit", 10)
	recs, err := s.engine.List(ctx, memory.ListOptions{Limit: limit, Order: memory.OrderNewest})
	if err != nil {
		return s.toolError(ctx, "list_memories", err)
	}
	total, err := s.engine.Count(ctx)
	if err != nil {
		return s.toolError(ctx, "list_memories", err)
	}
	out := make([]memorySummary, len(recs))
	for i, rec := range recs {
		out[i] = summarize(rec)
		out[i].Memory = preview(rec.Text)
	}
	return jsonResult(map[string]any{
		"memories":       out,
		"total_in_vault": total,
		"returned":       len(out),
	})
}

func (s *Server) clearMemories(ctx context.Context, _ map[string]any) (*mcp.CallToolResult, error) {
	n, err := s.engine.Clear(ctx)
	if err != nil {
		return s.toolError(ctx, "clear_memories", err)
	}
	if s.history != nil {
		s.history.Reset()
	}
	return mcp.NewToolResultText(fmt.Sprintf("All %d memories have been deleted", n)), nil
}

func (s *Server) memoryStatus(ctx context.Context, _ map[string]any) (*mcp.CallToolResult, error) {
	st, err := s.engine.Stats(ctx)
	if err != nil {
		return s.toolError(ctx, "memory_status", err)
	}
	return jsonResult(map[string]any{
		"status":       "active",
		"memory_count": st.Records,
		"indexed":      st.Indexed,
		"model":        st.Model,
		"dimensions":   st.Dimensions,
		"chat":         s.engine.ChatEnabled(),
	})
}
