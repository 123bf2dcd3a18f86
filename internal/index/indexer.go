// Package index drives a full indexing run: crawl, extract, embed, then
// commit the call graph and the vector index.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"codesense/internal/apperr"
	"codesense/internal/crawler"
	"codesense/internal/extractor"
	"codesense/internal/graph"
	"codesense/internal/knowledge"
	"codesense/internal/vectorstore"
)

// GraphSaver persists a project's call graph, replacing any previous one.
type GraphSaver interface {
	Save(projectID int64, g *graph.CallGraph) error
}

// VectorAppender appends aligned vectors and metadata for a project.
type VectorAppender interface {
	Append(ctx context.Context, projectID int64, vectors [][]float32, records []vectorstore.Record) error
}

type FileResult struct {
	Path    string `json:"path"`
	Symbols int    `json:"symbols"`
}

type Result struct {
	FileCount        int          `json:"file_count"`
	SymbolsExtracted int          `json:"symbols_extracted"`
	Files            []FileResult `json:"files"`
	GraphSymbols     int          `json:"graph_symbols"`
	GraphEdges       int          `json:"graph_edges"`
	Failed           []string     `json:"failed,omitempty"`
}

// Indexer orchestrates one project's indexing run.
type Indexer struct {
	crawler   *crawler.Crawler
	extractor *extractor.Extractor
	embedder  knowledge.Embedder
	graphs    GraphSaver
	vectors   VectorAppender
	workers   int
	logger    *slog.Logger
}

type Option func(*Indexer)

// WithWorkers bounds how many files are extracted and embedded at once.
func WithWorkers(n int) Option {
	return func(i *Indexer) {
		if n > 0 {
			i.workers = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(i *Indexer) { i.logger = l }
}

func NewIndexer(c *crawler.Crawler, ext *extractor.Extractor, emb knowledge.Embedder, graphs GraphSaver, vectors VectorAppender, opts ...Option) *Indexer {
	i := &Indexer{
		crawler:   c,
		extractor: ext,
		embedder:  emb,
		graphs:    graphs,
		vectors:   vectors,
		workers:   4,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "indexer")
	return i
}

type fileOutcome struct {
	symbols []extractor.Symbol
	vectors [][]float32
	err     error
}

// IndexProject indexes every supported file under root.
//
// Files are processed concurrently but committed in crawl order, so symbol
// IDs and vector positions are the same on every run over the same tree.
// A file that fails to parse counts as zero symbols. An embedding failure
// aborts the run before anything is persisted. Graph and vector persistence
// are independent: a graph write failure is logged and the vectors are still
// appended.
func (ix *Indexer) IndexProject(ctx context.Context, projectID int64, root string) (*Result, error) {
	start := time.Now()
	log := ix.logger.With("project_id", projectID)

	files, err := ix.crawler.Collect(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	log.Info("indexing started", "files", len(files), "workers", ix.workers)

	outcomes := make([]fileOutcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i, f := range files {
		g.Go(func() error {
			return ix.processFile(gctx, f, &outcomes[i])
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("indexing aborted", "error", err)
		return nil, err
	}

	result := &Result{
		FileCount: len(files),
		Files:     make([]FileResult, 0, len(files)),
	}
	var (
		graphInput []graph.Symbol
		vectors    [][]float32
		records    []vectorstore.Record
	)
	for i, f := range files {
		out := outcomes[i]
		if out.err != nil {
			log.Warn("skipping file", "path", f.RelPath, "error", out.err)
			result.Failed = append(result.Failed, f.RelPath)
			result.Files = append(result.Files, FileResult{Path: f.RelPath, Symbols: 0})
			continue
		}

		result.Files = append(result.Files, FileResult{Path: f.RelPath, Symbols: len(out.symbols)})
		result.SymbolsExtracted += len(out.symbols)
		for j, s := range out.symbols {
			graphInput = append(graphInput, graph.Symbol{
				Name:      s.Name,
				FilePath:  f.RelPath,
				Type:      s.Type,
				LineStart: s.LineStart,
				LineEnd:   s.LineEnd,
				Code:      s.Code,
				Calls:     s.Calls,
			})
			vectors = append(vectors, out.vectors[j])
			records = append(records, vectorstore.Record{
				FilePath:  f.RelPath,
				Name:      s.Name,
				Type:      s.Type,
				LineStart: s.LineStart,
				LineEnd:   s.LineEnd,
				Code:      s.Code,
			})
		}
	}

	cg := graph.Build(graphInput)
	result.GraphSymbols = len(cg.Symbols)
	result.GraphEdges = len(cg.Edges)
	if top := cg.TopUnresolved(5); len(top) > 0 {
		log.Debug("unresolved calls", "distinct", len(top), "top", top)
	}
	if err := ix.graphs.Save(projectID, cg); err != nil {
		log.Error("failed to save call graph", "error", err)
	}

	if err := ix.vectors.Append(ctx, projectID, vectors, records); err != nil {
		return nil, fmt.Errorf("failed to store vectors: %w", err)
	}

	log.Info("indexing finished",
		"files", result.FileCount,
		"symbols", result.SymbolsExtracted,
		"edges", result.GraphEdges,
		"failed", len(result.Failed),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// processFile extracts and embeds one file. Extraction errors are recorded
// on out; only embedding failures and cancellation are returned.
func (ix *Indexer) processFile(ctx context.Context, f crawler.File, out *fileOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	symbols, err := ix.extractor.ExtractFromFile(f.Path, f.Language)
	if err != nil {
		out.err = err
		return nil
	}
	if len(symbols) == 0 {
		return nil
	}

	texts := make([]string, len(symbols))
	for i, s := range symbols {
		texts[i] = EmbeddingText(f.RelPath, s)
	}
	vecs, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embedding %s: %v", apperr.ErrProviderFailure, f.RelPath, err)
	}
	if len(vecs) != len(symbols) {
		return fmt.Errorf("%w: embedding %s: got %d vectors for %d symbols",
			apperr.ErrProviderFailure, f.RelPath, len(vecs), len(symbols))
	}

	out.symbols = symbols
	out.vectors = vecs
	return nil
}

// EmbeddingText is the retrieval representation of one symbol.
func EmbeddingText(relPath string, s extractor.Symbol) string {
	return fmt.Sprintf("File: %s\nSymbol: %s\nType: %s\nCode:\n%s", relPath, s.Name, s.Type, s.Code)
}
