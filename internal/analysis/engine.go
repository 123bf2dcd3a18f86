// Package analysis answers usage and change-impact questions over a
// project's persisted call graph.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codesense/internal/apperr"
	"codesense/internal/graph"
	"codesense/internal/knowledge"
)

// ErrSymbolNotFound means no symbol matches the requested name and file.
var ErrSymbolNotFound = fmt.Errorf("symbol %w", apperr.ErrNotFound)

// GraphLoader loads a project's call graph.
type GraphLoader interface {
	Load(projectID int64) (*graph.CallGraph, error)
}

type UsageReport struct {
	Symbol   graph.Symbol   `json:"symbol"`
	Calls    []graph.Symbol `json:"calls"`
	CalledBy []graph.Symbol `json:"called_by"`
}

type ImpactReport struct {
	Symbol          graph.Symbol   `json:"symbol"`
	Affected        []graph.Symbol `json:"affected_symbols"`
	AffectedCount   int            `json:"affected_count"`
	Dependencies    []graph.Symbol `json:"dependencies"`
	DependencyCount int            `json:"dependency_count"`
	RiskLevel       Risk           `json:"risk_level"`
	Analysis        string         `json:"analysis"`
}

// Engine runs graph queries. The generator may be nil, in which case Usage
// still works and Impact fails with knowledge.ErrNoGenerator.
type Engine struct {
	graphs GraphLoader
	llm    knowledge.Generator
	logger *slog.Logger
}

func NewEngine(graphs GraphLoader, llm knowledge.Generator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{graphs: graphs, llm: llm, logger: logger.With("component", "analysis")}
}

func (e *Engine) locate(projectID int64, name, filePath string) (*graph.CallGraph, graph.Symbol, error) {
	g, err := e.graphs.Load(projectID)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidState) {
			e.logger.Error("call graph unreadable", "project_id", projectID, "error", err)
		}
		return nil, graph.Symbol{}, err
	}
	sym, ok := g.Find(name, filePath)
	if !ok {
		return nil, graph.Symbol{}, fmt.Errorf("%w: %q in %q", ErrSymbolNotFound, name, filePath)
	}
	return g, sym, nil
}

// Usage lists the direct callees and callers of one symbol.
func (e *Engine) Usage(ctx context.Context, projectID int64, name, filePath string) (*UsageReport, error) {
	g, sym, err := e.locate(projectID, name, filePath)
	if err != nil {
		return nil, err
	}
	return &UsageReport{
		Symbol:   sym,
		Calls:    g.Callees(sym.ID),
		CalledBy: g.Callers(sym.ID),
	}, nil
}

// Impact computes every transitive caller of the symbol and its direct
// callees, classifies the risk and asks the language model for an analysis.
func (e *Engine) Impact(ctx context.Context, projectID int64, name, filePath, change string) (*ImpactReport, error) {
	g, sym, err := e.locate(projectID, name, filePath)
	if err != nil {
		return nil, err
	}

	affected := g.Select(g.TransitiveCallers(sym.ID))
	deps := g.Callees(sym.ID)

	report := &ImpactReport{
		Symbol:          sym,
		Affected:        affected,
		AffectedCount:   len(affected),
		Dependencies:    deps,
		DependencyCount: len(deps),
		RiskLevel:       RiskLevel(len(affected) + len(deps)),
	}

	if e.llm == nil {
		return nil, knowledge.ErrNoGenerator
	}
	analysis, err := e.llm.Generate(ctx, impactSystemPrompt, BuildImpactPrompt(sym, affected, deps, change))
	if err != nil {
		e.logger.Error("impact analysis generation failed", "project_id", projectID, "symbol", name, "error", err)
		return nil, fmt.Errorf("%w: impact analysis: %v", apperr.ErrProviderFailure, err)
	}
	report.Analysis = analysis

	e.logger.Debug("impact computed", "project_id", projectID, "symbol", name,
		"affected", report.AffectedCount, "dependencies", report.DependencyCount, "risk", report.RiskLevel)
	return report, nil
}
