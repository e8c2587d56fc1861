// Package mcpserver exposes imported review sessions to MCP clients as a set
// of read-only tools: which theme or utterance is playing at a position,
// what comes next, and where a citation points.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jwulff/vibeo/internal/citation"
	"github.com/jwulff/vibeo/internal/db"
	"github.com/jwulff/vibeo/internal/observe"
	"github.com/jwulff/vibeo/internal/timeline"
)

// Source is the read side of the session store.
type Source interface {
	Sessions() ([]db.Session, error)
	Session(id string) (*db.Session, error)
	Index(sessionID string) (*timeline.Index, error)
	Citations(sessionID string) (citation.Table, error)
}

// Server wires tool handlers to a Source. Indexes are built once per session
// and reused across calls.
type Server struct {
	src     Source
	metrics *observe.Metrics

	mu      sync.Mutex
	indexes map[string]*timeline.Index
}

// New returns a Server reading from src. m may be nil.
func New(src Source, m *observe.Metrics) *Server {
	return &Server{src: src, metrics: m, indexes: make(map[string]*timeline.Index)}
}

// MCP builds the MCP server with every tool registered.
func (s *Server) MCP(version string) *server.MCPServer {
	srv := server.NewMCPServer("vibeo", version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List imported review sessions with their media URL and duration."),
	), s.instrument("list_sessions", s.listSessions))

	srv.AddTool(mcp.NewTool("theme_at",
		mcp.WithDescription("Return the theme segment active at a playback position, or null."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id from list_sessions")),
		mcp.WithNumber("seconds", mcp.Required(), mcp.Description("Playback position in seconds")),
	), s.instrument("theme_at", s.themeAt))

	srv.AddTool(mcp.NewTool("transcript_at",
		mcp.WithDescription("Return the transcript utterance active at a playback position, or null."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id from list_sessions")),
		mcp.WithNumber("seconds", mcp.Required(), mcp.Description("Playback position in seconds")),
	), s.instrument("transcript_at", s.transcriptAt))

	srv.AddTool(mcp.NewTool("next_theme",
		mcp.WithDescription("Return the first theme segment starting after a position, or null at the end."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id from list_sessions")),
		mcp.WithNumber("seconds", mcp.Required(), mcp.Description("Playback position in seconds")),
	), s.instrument("next_theme", s.nextTheme))

	srv.AddTool(mcp.NewTool("resolve_citation",
		mcp.WithDescription("Resolve an insight citation id (#id=N#) to a playback position."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id from list_sessions")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Citation id, the N in #id=N#")),
	), s.instrument("resolve_citation", s.resolveCitation))

	return srv
}

// ServeStdio serves the tools over stdin/stdout until the client goes away.
func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCP(version))
}

type handler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

func (s *Server) instrument(name string, h handler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := h(ctx, req)
		if s.metrics != nil {
			status := "ok"
			if err != nil || (res != nil && res.IsError) {
				status = "error"
			}
			s.metrics.RecordToolCall(ctx, name, status)
		}
		return res, err
	}
}

type sessionInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title,omitempty"`
	VideoURL string  `json:"video_url,omitempty"`
	Duration float64 `json:"duration"`
}

type segmentInfo struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"label"`
}

type entryInfo struct {
	ID      string  `json:"id"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Label   string  `json:"label"`
}

func (s *Server) listSessions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.src.Sessions()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]sessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionInfo{
			ID:       sess.ID,
			Title:    sess.Title,
			VideoURL: sess.VideoURL,
			Duration: sess.Duration,
		})
	}
	return jsonResult(out)
}

func (s *Server) themeAt(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idx, sec, errRes := s.positionArgs(req)
	if errRes != nil {
		return errRes, nil
	}
	return jsonResult(segment(idx.ActiveSegmentAt(sec)))
}

func (s *Server) transcriptAt(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idx, sec, errRes := s.positionArgs(req)
	if errRes != nil {
		return errRes, nil
	}
	e := idx.ActiveTranscriptEntryAt(sec)
	if e == nil {
		return jsonResult(nil)
	}
	return jsonResult(entryInfo{
		ID:      e.ID,
		Speaker: e.Speaker,
		Text:    e.Text,
		Start:   e.Start,
		End:     e.End,
		Label:   timeline.FormatTime(e.Start),
	})
}

func (s *Server) nextTheme(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idx, sec, errRes := s.positionArgs(req)
	if errRes != nil {
		return errRes, nil
	}
	return jsonResult(segment(idx.NextSegmentAfter(sec)))
}

func (s *Server) resolveCitation(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sid, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	table, err := s.src.Citations(sid)
	if err != nil {
		return nil, fmt.Errorf("load citations: %w", err)
	}
	sec, ok := table.Lookup(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("citation %q not found in session %q", id, sid)), nil
	}
	return jsonResult(map[string]any{
		"id":      id,
		"seconds": sec,
		"label":   timeline.FormatTime(sec),
	})
}

// positionArgs reads session_id and seconds and loads the session index. A
// non-nil result is a tool error to return as-is.
func (s *Server) positionArgs(req mcp.CallToolRequest) (*timeline.Index, float64, *mcp.CallToolResult) {
	sid, err := req.RequireString("session_id")
	if err != nil {
		return nil, 0, mcp.NewToolResultError(err.Error())
	}
	sec, err := req.RequireFloat("seconds")
	if err != nil {
		return nil, 0, mcp.NewToolResultError(err.Error())
	}
	if sec < 0 {
		return nil, 0, mcp.NewToolResultError("seconds must not be negative")
	}
	idx, err := s.index(sid)
	if err != nil {
		return nil, 0, mcp.NewToolResultError(err.Error())
	}
	return idx, sec, nil
}

func (s *Server) index(sessionID string) (*timeline.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[sessionID]; ok {
		return idx, nil
	}
	if _, err := s.src.Session(sessionID); err != nil {
		return nil, err
	}
	idx, err := s.src.Index(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", sessionID, err)
	}
	s.indexes[sessionID] = idx
	return idx, nil
}

func segment(seg *timeline.Segment) any {
	if seg == nil {
		return nil
	}
	return segmentInfo{
		ID:    seg.ID,
		Name:  seg.Name,
		Start: seg.Start,
		End:   seg.End,
		Label: timeline.FormatTime(seg.Start),
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
