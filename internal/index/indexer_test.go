package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"codesense/internal/apperr"
	"codesense/internal/crawler"
	"codesense/internal/extractor"
	"codesense/internal/graph"
	"codesense/internal/knowledge"
	"codesense/internal/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func sampleProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "a.py", "def foo():\n    return bar()\n")
	writeFile(t, root, "b.py", "def bar():\n    return 1\n\n\nclass Repo:\n    def save(self):\n        bar()\n")
	writeFile(t, root, "broken.py", "def broken(:\n")
	writeFile(t, root, "web/app.js", "function x() {}\n")
	writeFile(t, root, "notes.txt", "ignored\n")
	writeFile(t, root, "node_modules/lib/index.js", "function y() {}\n")
	return root
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func (failingEmbedder) Dimension() int { return 8 }

type failingSaver struct{}

func (failingSaver) Save(int64, *graph.CallGraph) error { return errors.New("disk full") }

type fixture struct {
	graphs  *graph.Store
	vectors *vectorstore.Store
}

func newIndexer(t *testing.T, emb knowledge.Embedder, saver GraphSaver) (*Indexer, fixture) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fx := fixture{
		graphs:  graph.NewStore(filepath.Join(dir, "graph")),
		vectors: vectorstore.NewStore(filepath.Join(dir, "vectors"), logger),
	}
	if saver == nil {
		saver = fx.graphs
	}
	ext := extractor.NewExtractor()
	ix := NewIndexer(crawler.NewCrawler(ext), ext, emb, saver, fx.vectors,
		WithWorkers(2), WithLogger(logger))
	return ix, fx
}

func TestIndexer_IndexProject(t *testing.T) {
	ix, fx := newIndexer(t, knowledge.NewHashingEmbedder(32), nil)
	ctx := context.Background()

	res, err := ix.IndexProject(ctx, 7, sampleProject(t))
	require.NoError(t, err)

	assert.Equal(t, 4, res.FileCount)
	assert.Equal(t, []FileResult{
		{Path: "a.py", Symbols: 1},
		{Path: "b.py", Symbols: 3},
		{Path: "broken.py", Symbols: 0},
		{Path: "web/app.js", Symbols: 0},
	}, res.Files)
	assert.Equal(t, 4, res.SymbolsExtracted)
	assert.Equal(t, []string{"broken.py"}, res.Failed)
	assert.Equal(t, 4, res.GraphSymbols)
	assert.Equal(t, 2, res.GraphEdges)

	g, err := fx.graphs.Load(7)
	require.NoError(t, err)
	bar, ok := g.Find("bar", "b.py")
	require.True(t, ok)
	var callers []string
	for _, s := range g.Callers(bar.ID) {
		callers = append(callers, s.Name)
	}
	assert.Equal(t, []string{"foo", "Repo.save"}, callers)

	n, err := fx.vectors.Count(7)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	q, err := knowledge.NewHashingEmbedder(32).Embed(ctx, []string{EmbeddingText("a.py", extractor.Symbol{
		Name: "foo", Type: extractor.Function, Code: "def foo():\n    return bar()",
	})})
	require.NoError(t, err)
	matches, err := fx.vectors.Search(ctx, 7, q[0], 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "foo", matches[0].Record.Name)
	assert.Equal(t, "a.py", matches[0].Record.FilePath)
}

func TestIndexer_Deterministic(t *testing.T) {
	root := sampleProject(t)
	ix, fx := newIndexer(t, knowledge.NewHashingEmbedder(16), nil)

	_, err := ix.IndexProject(context.Background(), 1, root)
	require.NoError(t, err)
	_, err = ix.IndexProject(context.Background(), 2, root)
	require.NoError(t, err)

	g1, err := fx.graphs.Load(1)
	require.NoError(t, err)
	g2, err := fx.graphs.Load(2)
	require.NoError(t, err)
	assert.Equal(t, g1, g2)
}

func TestIndexer_EmbeddingFailureAborts(t *testing.T) {
	ix, fx := newIndexer(t, failingEmbedder{}, nil)

	_, err := ix.IndexProject(context.Background(), 3, sampleProject(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrProviderFailure)

	_, err = fx.graphs.Load(3)
	assert.ErrorIs(t, err, graph.ErrGraphNotFound, "nothing persisted")
	n, err := fx.vectors.Count(3)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndexer_GraphSaveFailureKeepsVectors(t *testing.T) {
	ix, fx := newIndexer(t, knowledge.NewHashingEmbedder(16), failingSaver{})

	res, err := ix.IndexProject(context.Background(), 4, sampleProject(t))
	require.NoError(t, err)
	assert.Equal(t, 4, res.SymbolsExtracted)

	n, err := fx.vectors.Count(4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestIndexer_MissingRoot(t *testing.T) {
	ix, _ := newIndexer(t, knowledge.NewHashingEmbedder(16), nil)
	_, err := ix.IndexProject(context.Background(), 5, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestEmbeddingText(t *testing.T) {
	s := extractor.Symbol{Name: "Repo.save", Type: extractor.Method, Code: "def save(self): ..."}
	assert.Equal(t, "File: b.py\nSymbol: Repo.save\nType: method\nCode:\ndef save(self): ...", EmbeddingText("b.py", s))
}
