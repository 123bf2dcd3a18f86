// Package service wires every codesense component into one process-scoped
// object shared by the CLI and the MCP server.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"codesense/internal/analysis"
	"codesense/internal/apperr"
	"codesense/internal/assistant"
	"codesense/internal/config"
	"codesense/internal/crawler"
	"codesense/internal/extractor"
	"codesense/internal/graph"
	"codesense/internal/index"
	"codesense/internal/knowledge"
	"codesense/internal/storage"
	"codesense/internal/vectorstore"
	"codesense/internal/workspace"
)

// ErrNoSource is returned when a project is indexed before any source was imported.
var ErrNoSource = fmt.Errorf("project source %w", apperr.ErrNotFound)

type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	projects  storage.ProjectStore
	graphs    *graph.Store
	vectors   *vectorstore.Store
	embedder  knowledge.Embedder
	generator knowledge.Generator

	indexer   *index.Indexer
	analysis  *analysis.Engine
	assistant *assistant.Assistant
}

type Option func(*options)

type options struct {
	embedder  knowledge.Embedder
	generator knowledge.Generator
	logger    *slog.Logger
}

// WithEmbedder overrides the embedding provider built from config.
func WithEmbedder(e knowledge.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithGenerator overrides the language model provider built from config.
func WithGenerator(g knowledge.Generator) Option {
	return func(o *options) { o.generator = g }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds every component up front. An embedding provider that cannot be
// constructed is fatal. A language model that cannot be constructed is logged
// and leaves chat, explain and impact returning knowledge.ErrNoGenerator.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	embedder := o.embedder
	if embedder == nil {
		e, err := knowledge.NewEmbedder(ctx, knowledge.EmbedderOptions{
			Provider:  cfg.Embed.Provider,
			APIKey:    cfg.Embed.APIKey,
			Model:     cfg.Embed.Model,
			Dimension: cfg.Embed.Dimension,
			BaseURL:   cfg.Embed.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init embedder: %w", err)
		}
		embedder = e
	}

	generator := o.generator
	if generator == nil {
		g, err := knowledge.NewGenerator(ctx, knowledge.GeneratorOptions{
			Provider:    cfg.LLM.Provider,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		})
		if err != nil {
			logger.Warn("language model unavailable, chat/explain/impact disabled",
				"provider", cfg.LLM.Provider, "error", err)
		} else {
			generator = g
		}
	}

	projects, err := storage.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open project store: %w", err)
	}

	ext := extractor.NewExtractor()
	graphs := graph.NewStore(cfg.GraphDir())
	vectors := vectorstore.NewStore(cfg.VectorDir(), logger)
	cr := crawler.NewCrawler(ext,
		crawler.WithGitignore(cfg.Index.RespectGitignore),
		crawler.WithLogger(logger))

	s := &Service{
		cfg:       cfg,
		logger:    logger,
		projects:  projects,
		graphs:    graphs,
		vectors:   vectors,
		embedder:  embedder,
		generator: generator,
		indexer: index.NewIndexer(cr, ext, embedder, graphs, vectors,
			index.WithWorkers(cfg.Index.Workers),
			index.WithLogger(logger)),
		analysis:  analysis.NewEngine(graphs, generator, logger),
		assistant: assistant.New(embedder, vectors, generator, logger),
	}
	return s, nil
}

func (s *Service) Logger() *slog.Logger {
	return s.logger
}

func (s *Service) Close() error {
	return s.projects.Close()
}

func (s *Service) CreateProject(ctx context.Context, name, description string) (*storage.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", apperr.ErrInputMismatch)
	}
	p, err := s.projects.Create(ctx, name, description, s.cfg.ProjectsDir())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.ProjectPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create project dir: %w", err)
	}
	s.logger.Info("project created", "project_id", p.ID, "name", p.Name)
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id int64) (*storage.Project, error) {
	return s.projects.Get(ctx, id)
}

func (s *Service) ListProjects(ctx context.Context) ([]*storage.Project, error) {
	return s.projects.List(ctx)
}

// ImportArchive replaces the project's source tree with a zip archive.
func (s *Service) ImportArchive(ctx context.Context, id int64, zipPath string) error {
	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return err
	}
	return workspace.ImportArchive(p.ProjectPath, zipPath)
}

// ImportDir replaces the project's source tree with a copy of a local directory.
func (s *Service) ImportDir(ctx context.Context, id int64, dir string) error {
	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return err
	}
	return workspace.ImportDir(p.ProjectPath, dir)
}

// IndexProject indexes the project's imported source and records its file count.
func (s *Service) IndexProject(ctx context.Context, id int64) (*index.Result, error) {
	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	root := workspace.SourceRoot(p.ProjectPath)
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: project %d", ErrNoSource, id)
	}

	res, err := s.indexer.IndexProject(ctx, id, root)
	if err != nil {
		return nil, err
	}
	if err := s.projects.UpdateFileCount(ctx, id, res.FileCount); err != nil {
		return nil, err
	}
	return res, nil
}

// ProjectStatus summarizes what has been indexed for a project.
type ProjectStatus struct {
	Project      *storage.Project `json:"project"`
	Indexed      bool             `json:"indexed"`
	GraphSymbols int              `json:"graph_symbols"`
	GraphEdges   int              `json:"graph_edges"`
	Vectors      int              `json:"vectors"`
}

// Status reports the project's registry entry with its graph and vector
// counts. A project that was never indexed is not an error.
func (s *Service) Status(ctx context.Context, id int64) (*ProjectStatus, error) {
	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	st := &ProjectStatus{Project: p}

	g, err := s.graphs.Load(id)
	switch {
	case err == nil:
		st.Indexed = true
		st.GraphSymbols = len(g.Symbols)
		st.GraphEdges = len(g.Edges)
	case !errors.Is(err, graph.ErrGraphNotFound):
		return nil, err
	}

	if st.Vectors, err = s.vectors.Count(id); err != nil {
		return nil, err
	}
	return st, nil
}

// UploadAndIndex imports a zip archive and indexes it in one step.
func (s *Service) UploadAndIndex(ctx context.Context, id int64, zipPath string) (*index.Result, error) {
	if err := s.ImportArchive(ctx, id, zipPath); err != nil {
		return nil, err
	}
	return s.IndexProject(ctx, id)
}

func (s *Service) ListFiles(ctx context.Context, id int64) ([]string, error) {
	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return workspace.ListFiles(p.ProjectPath)
}

func (s *Service) ReadFile(ctx context.Context, id int64, relPath string) (string, error) {
	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return workspace.ReadFile(p.ProjectPath, relPath)
}

func (s *Service) Usage(ctx context.Context, id int64, name, filePath string) (*analysis.UsageReport, error) {
	if _, err := s.projects.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.analysis.Usage(ctx, id, name, filePath)
}

func (s *Service) Impact(ctx context.Context, id int64, name, filePath, change string) (*analysis.ImpactReport, error) {
	if _, err := s.projects.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.analysis.Impact(ctx, id, name, filePath, change)
}

// Search embeds text and returns the k nearest indexed symbols.
func (s *Service) Search(ctx context.Context, id int64, text string, k int) ([]vectorstore.Match, error) {
	if _, err := s.projects.Get(ctx, id); err != nil {
		return nil, err
	}
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", apperr.ErrProviderFailure, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: embedding query: got %d vectors", apperr.ErrProviderFailure, len(vecs))
	}
	return s.vectors.Search(ctx, id, vecs[0], k)
}

func (s *Service) Chat(ctx context.Context, id int64, message string) (*assistant.ChatResponse, error) {
	if _, err := s.projects.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.assistant.Chat(ctx, id, message)
}

func (s *Service) Explain(ctx context.Context, req assistant.ExplainRequest) (*assistant.ExplainResponse, error) {
	return s.assistant.Explain(ctx, req)
}
