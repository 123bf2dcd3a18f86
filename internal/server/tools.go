package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"codesense/internal/assistant"
)

const defaultSearchK = 5

type ListProjectsArgs struct{}

type ProjectStatusArgs struct {
	ProjectID int64 `json:"project_id" jsonschema:"ID of a registered project"`
}

type IndexProjectArgs struct {
	ProjectID int64 `json:"project_id" jsonschema:"ID of the project whose imported source should be indexed"`
}

type SymbolArgs struct {
	ProjectID  int64  `json:"project_id" jsonschema:"ID of an indexed project"`
	SymbolName string `json:"symbol_name" jsonschema:"Name of the symbol, e.g. save or Repo.save"`
	FilePath   string `json:"file_path" jsonschema:"Project-relative path of the file defining the symbol"`
}

type ImpactArgs struct {
	ProjectID         int64  `json:"project_id" jsonschema:"ID of an indexed project"`
	SymbolName        string `json:"symbol_name" jsonschema:"Name of the symbol, e.g. save or Repo.save"`
	FilePath          string `json:"file_path" jsonschema:"Project-relative path of the file defining the symbol"`
	ChangeDescription string `json:"change_description,omitempty" jsonschema:"Optional description of the planned change"`
}

type SearchArgs struct {
	ProjectID int64  `json:"project_id" jsonschema:"ID of an indexed project"`
	Query     string `json:"query" jsonschema:"Natural language or code query"`
	K         int    `json:"k,omitempty" jsonschema:"Maximum number of results, default 5"`
}

type ChatArgs struct {
	ProjectID int64  `json:"project_id" jsonschema:"ID of an indexed project"`
	Message   string `json:"message" jsonschema:"Question about the project"`
}

type ExplainArgs struct {
	Code     string `json:"code" jsonschema:"Source code to explain"`
	FilePath string `json:"file_path,omitempty" jsonschema:"Optional file the code comes from"`
	Language string `json:"language,omitempty" jsonschema:"Optional language name"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_projects",
		Description: "Lists every registered project with its ID and indexed file count",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListProjectsArgs) (*mcp.CallToolResult, any, error) {
		projects, err := s.backend.ListProjects(ctx)
		if err != nil {
			return s.failure("list_projects", err), nil, nil
		}
		return jsonResult(projects), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "project_status",
		Description: "Reports whether a project has been indexed and how many symbols, edges and vectors it holds",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ProjectStatusArgs) (*mcp.CallToolResult, any, error) {
		st, err := s.backend.Status(ctx, args.ProjectID)
		if err != nil {
			return s.failure("project_status", err), nil, nil
		}
		return jsonResult(st), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "index_project",
		Description: "Extracts symbols, rebuilds the call graph and embeds the project's source",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args IndexProjectArgs) (*mcp.CallToolResult, any, error) {
		res, err := s.backend.IndexProject(ctx, args.ProjectID)
		if err != nil {
			return s.failure("index_project", err), nil, nil
		}
		return jsonResult(res), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "usage",
		Description: "Returns the direct callees and callers of a symbol",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SymbolArgs) (*mcp.CallToolResult, any, error) {
		if args.SymbolName == "" || args.FilePath == "" {
			return errorResult("symbol_name and file_path are required"), nil, nil
		}
		report, err := s.backend.Usage(ctx, args.ProjectID, args.SymbolName, args.FilePath)
		if err != nil {
			return s.failure("usage", err), nil, nil
		}
		return jsonResult(report), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "impact",
		Description: "Finds every symbol that transitively calls the target and rates the risk of changing it",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ImpactArgs) (*mcp.CallToolResult, any, error) {
		if args.SymbolName == "" || args.FilePath == "" {
			return errorResult("symbol_name and file_path are required"), nil, nil
		}
		report, err := s.backend.Impact(ctx, args.ProjectID, args.SymbolName, args.FilePath, args.ChangeDescription)
		if err != nil {
			return s.failure("impact", err), nil, nil
		}
		return jsonResult(report), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search over the project's indexed symbols",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
		k := args.K
		if k <= 0 {
			k = defaultSearchK
		}
		matches, err := s.backend.Search(ctx, args.ProjectID, args.Query, k)
		if err != nil {
			return s.failure("search", err), nil, nil
		}
		return jsonResult(matches), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "chat",
		Description: "Answers a question about the project using its most relevant code as context",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ChatArgs) (*mcp.CallToolResult, any, error) {
		resp, err := s.backend.Chat(ctx, args.ProjectID, args.Message)
		if err != nil {
			return s.failure("chat", err), nil, nil
		}
		return jsonResult(resp), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "explain",
		Description: "Explains a code snippet",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ExplainArgs) (*mcp.CallToolResult, any, error) {
		resp, err := s.backend.Explain(ctx, assistant.ExplainRequest{
			Code:     args.Code,
			FilePath: args.FilePath,
			Language: args.Language,
		})
		if err != nil {
			return s.failure("explain", err), nil, nil
		}
		return jsonResult(resp), nil, nil
	})
}
