// Package server exposes codesense over the Model Context Protocol.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"codesense/internal/analysis"
	"codesense/internal/apperr"
	"codesense/internal/assistant"
	"codesense/internal/index"
	"codesense/internal/knowledge"
	"codesense/internal/service"
	"codesense/internal/storage"
	"codesense/internal/vectorstore"
)

const (
	serverName    = "codesense"
	serverVersion = "0.1.0"
)

// Backend is the subset of the service the tools call into.
type Backend interface {
	ListProjects(ctx context.Context) ([]*storage.Project, error)
	Status(ctx context.Context, id int64) (*service.ProjectStatus, error)
	IndexProject(ctx context.Context, id int64) (*index.Result, error)
	Usage(ctx context.Context, id int64, name, filePath string) (*analysis.UsageReport, error)
	Impact(ctx context.Context, id int64, name, filePath, change string) (*analysis.ImpactReport, error)
	Search(ctx context.Context, id int64, text string, k int) ([]vectorstore.Match, error)
	Chat(ctx context.Context, id int64, message string) (*assistant.ChatResponse, error)
	Explain(ctx context.Context, req assistant.ExplainRequest) (*assistant.ExplainResponse, error)
}

type Server struct {
	backend   Backend
	mcpServer *mcp.Server
	logger    *slog.Logger
}

func New(backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		backend:   backend,
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil),
		logger:    logger.With("component", "mcp"),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to encode result: %v", err))
	}
	return textResult(string(data))
}

// failure turns a service error into a tool error the client can act on.
func (s *Server) failure(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("tool failed", "tool", tool, "kind", apperr.Kind(err), "error", err)
	switch {
	case errors.Is(err, knowledge.ErrNoGenerator):
		return errorResult("No language model is configured: " + err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return errorResult("Not found (has the project been indexed?): " + err.Error())
	case errors.Is(err, apperr.ErrInvalidState):
		return errorResult("Stored index data is corrupt, re-index the project: " + err.Error())
	case errors.Is(err, apperr.ErrInputMismatch):
		return errorResult("Invalid input: " + err.Error())
	case errors.Is(err, apperr.ErrProviderFailure):
		return errorResult("Model provider failed: " + err.Error())
	default:
		return errorResult(fmt.Sprintf("%s failed: %v", tool, err))
	}
}
