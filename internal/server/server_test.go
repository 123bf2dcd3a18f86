package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codesense/internal/analysis"
	"codesense/internal/apperr"
	"codesense/internal/assistant"
	"codesense/internal/graph"
	"codesense/internal/index"
	"codesense/internal/knowledge"
	"codesense/internal/service"
	"codesense/internal/storage"
	"codesense/internal/vectorstore"
)

type fakeBackend struct {
	lastK      int
	lastChange string
	usageErr   error
	impactErr  error
	chatErr    error
}

func (f *fakeBackend) ListProjects(context.Context) ([]*storage.Project, error) {
	return []*storage.Project{{ID: 1, Name: "demo", FileCount: 2}}, nil
}

func (f *fakeBackend) Status(_ context.Context, id int64) (*service.ProjectStatus, error) {
	return &service.ProjectStatus{
		Project: &storage.Project{ID: id, Name: "demo"},
		Indexed: true, GraphSymbols: 2, GraphEdges: 1, Vectors: 2,
	}, nil
}

func (f *fakeBackend) IndexProject(_ context.Context, id int64) (*index.Result, error) {
	if id != 1 {
		return nil, fmt.Errorf("%w: %d", storage.ErrProjectNotFound, id)
	}
	return &index.Result{FileCount: 2, SymbolsExtracted: 2, GraphSymbols: 2, GraphEdges: 1}, nil
}

func (f *fakeBackend) Usage(_ context.Context, _ int64, name, file string) (*analysis.UsageReport, error) {
	if f.usageErr != nil {
		return nil, f.usageErr
	}
	return &analysis.UsageReport{
		Symbol:   graph.Symbol{ID: 2, Name: name, FilePath: file},
		Calls:    []graph.Symbol{},
		CalledBy: []graph.Symbol{{ID: 1, Name: "foo", FilePath: "a.py"}},
	}, nil
}

func (f *fakeBackend) Impact(_ context.Context, _ int64, name, file, change string) (*analysis.ImpactReport, error) {
	if f.impactErr != nil {
		return nil, f.impactErr
	}
	f.lastChange = change
	return &analysis.ImpactReport{
		Symbol:        graph.Symbol{ID: 2, Name: name, FilePath: file},
		Affected:      []graph.Symbol{{ID: 1, Name: "foo", FilePath: "a.py"}},
		AffectedCount: 1,
		Dependencies:  []graph.Symbol{},
		RiskLevel:     analysis.RiskLow,
		Analysis:      "fine",
	}, nil
}

func (f *fakeBackend) Search(_ context.Context, _ int64, _ string, k int) ([]vectorstore.Match, error) {
	f.lastK = k
	return []vectorstore.Match{{Record: vectorstore.Record{FilePath: "b.py", Name: "bar"}, Distance: 0.5}}, nil
}

func (f *fakeBackend) Chat(context.Context, int64, string) (*assistant.ChatResponse, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &assistant.ChatResponse{Answer: "bar returns 42", References: []assistant.Reference{}}, nil
}

func (f *fakeBackend) Explain(_ context.Context, req assistant.ExplainRequest) (*assistant.ExplainResponse, error) {
	return &assistant.ExplainResponse{Explanation: "adds", Complexity: "low", Issues: []string{}}, nil
}

func connect(t *testing.T, backend Backend) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	s := New(backend, slog.New(slog.NewTextHandler(io.Discard, nil)))

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := s.mcpServer.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, tool string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: tool, Arguments: args})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text, res.IsError
}

func TestTools_ListsAllTools(t *testing.T) {
	cs := connect(t, &fakeBackend{})

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t,
		[]string{"list_projects", "project_status", "index_project", "usage", "impact", "search", "chat", "explain"},
		names)
}

func TestTools_Usage(t *testing.T) {
	cs := connect(t, &fakeBackend{})

	text, isErr := call(t, cs, "usage", map[string]any{"project_id": 1, "symbol_name": "bar", "file_path": "b.py"})
	require.False(t, isErr, text)

	var report analysis.UsageReport
	require.NoError(t, json.Unmarshal([]byte(text), &report))
	assert.Equal(t, "bar", report.Symbol.Name)
	require.Len(t, report.CalledBy, 1)
	assert.Equal(t, "foo", report.CalledBy[0].Name)
}

func TestTools_UsageRequiresSymbolAndFile(t *testing.T) {
	cs := connect(t, &fakeBackend{})

	text, isErr := call(t, cs, "usage", map[string]any{"project_id": 1, "symbol_name": "", "file_path": "b.py"})
	assert.True(t, isErr)
	assert.Contains(t, text, "required")
}

func TestTools_ImpactPassesChangeDescription(t *testing.T) {
	b := &fakeBackend{}
	cs := connect(t, b)

	text, isErr := call(t, cs, "impact", map[string]any{
		"project_id":         1,
		"symbol_name":        "bar",
		"file_path":          "b.py",
		"change_description": "rename",
	})
	require.False(t, isErr, text)
	assert.Equal(t, "rename", b.lastChange)
	assert.Contains(t, text, `"risk_level": "low"`)
	assert.Contains(t, text, `"affected_symbols"`)
}

func TestTools_SearchDefaultsK(t *testing.T) {
	b := &fakeBackend{}
	cs := connect(t, b)

	_, isErr := call(t, cs, "search", map[string]any{"project_id": 1, "query": "bar"})
	require.False(t, isErr)
	assert.Equal(t, defaultSearchK, b.lastK)

	_, isErr = call(t, cs, "search", map[string]any{"project_id": 1, "query": "bar", "k": 2})
	require.False(t, isErr)
	assert.Equal(t, 2, b.lastK)
}

func TestTools_IndexAndList(t *testing.T) {
	cs := connect(t, &fakeBackend{})

	text, isErr := call(t, cs, "index_project", map[string]any{"project_id": 1})
	require.False(t, isErr, text)
	assert.Contains(t, text, `"graph_edges": 1`)

	text, isErr = call(t, cs, "index_project", map[string]any{"project_id": 9})
	assert.True(t, isErr)
	assert.Contains(t, text, "Not found")

	text, isErr = call(t, cs, "list_projects", map[string]any{})
	require.False(t, isErr, text)
	assert.Contains(t, text, `"demo"`)

	text, isErr = call(t, cs, "project_status", map[string]any{"project_id": 1})
	require.False(t, isErr, text)
	assert.Contains(t, text, `"indexed": true`)
	assert.Contains(t, text, `"vectors": 2`)
}

func TestTools_ErrorKindsAreDistinguishable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not indexed", fmt.Errorf("%w: project 1", graph.ErrGraphNotFound), "has the project been indexed"},
		{"corrupt", fmt.Errorf("%w: bad json", apperr.ErrInvalidState), "corrupt"},
		{"provider", fmt.Errorf("%w: timeout", apperr.ErrProviderFailure), "provider failed"},
		{"internal", fmt.Errorf("disk full"), "impact failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := connect(t, &fakeBackend{impactErr: tt.err})
			text, isErr := call(t, cs, "impact", map[string]any{"project_id": 1, "symbol_name": "bar", "file_path": "b.py"})
			assert.True(t, isErr)
			assert.Contains(t, text, tt.want)
		})
	}
}

func TestTools_ChatWithoutModel(t *testing.T) {
	cs := connect(t, &fakeBackend{chatErr: knowledge.ErrNoGenerator})

	text, isErr := call(t, cs, "chat", map[string]any{"project_id": 1, "message": "what does bar do?"})
	assert.True(t, isErr)
	assert.Contains(t, text, "No language model")
}

func TestTools_Explain(t *testing.T) {
	cs := connect(t, &fakeBackend{})

	text, isErr := call(t, cs, "explain", map[string]any{"code": "def add(a, b): return a + b"})
	require.False(t, isErr, text)
	assert.Contains(t, text, `"complexity": "low"`)
}
