package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/kirillkom/case-study-search/internal/core/ports"
)

const (
	serverName    = "case-study-search"
	serverVersion = "1.0.0"

	askToolName     = "ask_case_studies"
	resolveToolName = "resolve_case_study"
)

// Server exposes the answer and resolve flows as MCP tools.
type Server struct {
	answerer ports.QuestionAnswerer
	resolver ports.CaseStudyResolver
	logger   *slog.Logger
	mcp      *server.MCPServer
}

func NewServer(answerer ports.QuestionAnswerer, resolver ports.CaseStudyResolver, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		answerer: answerer,
		resolver: resolver,
		logger:   logger,
		mcp:      server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool(askToolName,
		mcp.WithDescription("Answer a question from the case study database, falling back to web search when the corpus has no good match."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Natural language question")),
	), s.handleAsk)

	s.mcp.AddTool(mcp.NewTool(resolveToolName,
		mcp.WithDescription("Rebuild the full text of a case study from its id or from any of its chunk ids."),
		mcp.WithString("case_id", mcp.Description("Case study identifier (id, case_id, uuid or slug)")),
		mcp.WithString("chunk_id", mcp.Description("Identifier of any chunk of the case study")),
	), s.handleResolve)

	return s
}

// ServeStdio blocks serving JSON-RPC over the given streams until ctx ends
// or the client disconnects. Nothing else may write to stdout.
func (s *Server) ServeStdio(ctx context.Context, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(stderr, "mcp: ", log.LstdFlags))
	return stdio.Listen(ctx, stdin, stdout)
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := s.answerer.Ask(ctx, question)
	if err != nil {
		s.logger.Warn("mcp_tool_failed", "tool", askToolName, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(answer)
}

func (s *Server) handleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID := strings.TrimSpace(req.GetString("case_id", ""))
	chunkID := strings.TrimSpace(req.GetString("chunk_id", ""))

	doc, err := s.resolver.Resolve(ctx, caseID, chunkID)
	if err != nil {
		s.logger.Warn("mcp_tool_failed", "tool", resolveToolName, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	if doc == nil {
		return mcp.NewToolResultError(domain.WrapError(domain.ErrCaseStudyNotFound, "resolve",
			fmt.Errorf("case_id=%q chunk_id=%q", caseID, chunkID)).Error()), nil
	}
	return jsonResult(doc)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
