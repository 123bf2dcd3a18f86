package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"codesense/internal/apperr"
	"codesense/internal/atomicfile"
)

var (
	// ErrGraphNotFound means the project has never been indexed.
	ErrGraphNotFound = fmt.Errorf("call graph %w", apperr.ErrNotFound)

	// ErrInvalidGraph means a persisted graph exists but cannot be used.
	ErrInvalidGraph = fmt.Errorf("call graph: %w", apperr.ErrInvalidState)
)

// Store persists one JSON graph file per project under dir.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(projectID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.json", projectID))
}

// Save replaces the project's graph atomically.
func (s *Store) Save(projectID int64, g *CallGraph) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create graph dir: %w", err)
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	if err := atomicfile.WriteFile(s.path(projectID), data); err != nil {
		return fmt.Errorf("failed to write graph for %d: %w", projectID, err)
	}
	return nil
}

// Load reads the project's graph. It returns ErrGraphNotFound when no graph was
// saved and ErrInvalidGraph when the file is unreadable as a graph.
func (s *Store) Load(projectID int64) (*CallGraph, error) {
	data, err := os.ReadFile(s.path(projectID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: project %d", ErrGraphNotFound, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read graph for %d: %w", projectID, err)
	}

	var g CallGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	if g.Edges == nil {
		g.Edges = []Edge{}
	}
	return &g, nil
}
