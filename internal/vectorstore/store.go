// Package vectorstore keeps one flat nearest-neighbor index per project
// together with an aligned metadata log.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"codesense/internal/apperr"
	"codesense/internal/atomicfile"
)

// Store persists <dir>/<project>.index and <dir>/<project>.json.
// Appends for one project are serialized; searches take the same lock for
// reading, so they never observe one artifact rewritten without the other.
type Store struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.RWMutex
}

func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:    dir,
		logger: logger.With("component", "vectorstore"),
		locks:  make(map[int64]*sync.RWMutex),
	}
}

func (s *Store) lockFor(projectID int64) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[projectID] = l
	}
	return l
}

func (s *Store) indexPath(projectID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.index", projectID))
}

func (s *Store) metaPath(projectID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.json", projectID))
}

// Ensure loads the project's index, or returns an empty one fixed to dim when
// none exists. An unreadable index is logged and replaced by an empty one.
func (s *Store) Ensure(projectID int64, dim int) *Index {
	l := s.lockFor(projectID)
	l.RLock()
	defer l.RUnlock()
	return s.ensure(projectID, dim)
}

func (s *Store) ensure(projectID int64, dim int) *Index {
	idx, err := s.readIndex(projectID)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return NewIndex(dim)
	case err != nil:
		s.logger.Warn("discarding unreadable vector index", "project_id", projectID, "error", err)
		return NewIndex(dim)
	}
	return idx
}

// Append adds vectors and their records in order and rewrites both artifacts.
// vectors and records must have equal length; otherwise nothing is touched.
func (s *Store) Append(ctx context.Context, projectID int64, vectors [][]float32, records []Record) error {
	if len(vectors) != len(records) {
		return fmt.Errorf("%w: %d vectors, %d metadata records", apperr.ErrInputMismatch, len(vectors), len(records))
	}
	if len(vectors) == 0 {
		return nil
	}
	if len(vectors[0]) == 0 {
		return fmt.Errorf("%w: zero-length vectors", apperr.ErrInputMismatch)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l := s.lockFor(projectID)
	l.Lock()
	defer l.Unlock()

	idx := s.ensure(projectID, len(vectors[0]))
	meta, err := s.readMeta(projectID)
	switch {
	case errors.Is(err, os.ErrNotExist):
		meta = []Record{}
	case err != nil:
		s.logger.Warn("discarding unreadable vector metadata", "project_id", projectID, "error", err)
		meta = []Record{}
		idx = NewIndex(idx.Dim())
	}

	if len(meta) != idx.Len() {
		s.logger.Warn("vector index and metadata out of step, resetting both",
			"project_id", projectID, "vectors", idx.Len(), "records", len(meta))
		meta = []Record{}
		idx = NewIndex(idx.Dim())
	}

	if err := idx.Add(vectors); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInputMismatch, err)
	}
	meta = append(meta, records...)

	if err := s.writeArtifacts(projectID, idx, meta); err != nil {
		return err
	}

	s.logger.Debug("appended vectors", "project_id", projectID, "added", len(vectors), "total", idx.Len())
	return nil
}

// Search returns the min(k, n) records nearest to query. A project that was
// never indexed, or whose index is empty, yields no matches and no error.
func (s *Store) Search(ctx context.Context, projectID int64, query []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := s.lockFor(projectID)
	l.RLock()
	defer l.RUnlock()

	idx, err := s.readIndex(projectID)
	if errors.Is(err, os.ErrNotExist) {
		return []Match{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: project %d: %v", apperr.ErrInvalidState, projectID, err)
	}

	meta, err := s.readMeta(projectID)
	if errors.Is(err, os.ErrNotExist) {
		return []Match{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: project %d: %v", apperr.ErrInvalidState, projectID, err)
	}

	if idx.Len() == 0 || len(meta) == 0 {
		return []Match{}, nil
	}
	if len(meta) != idx.Len() {
		return nil, fmt.Errorf("%w: project %d has %d vectors but %d records",
			apperr.ErrInvalidState, projectID, idx.Len(), len(meta))
	}

	positions, dists, err := idx.Search(query, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInputMismatch, err)
	}

	matches := make([]Match, 0, len(positions))
	for i, pos := range positions {
		matches = append(matches, Match{Record: meta[pos], Distance: dists[i]})
	}
	return matches, nil
}

// Count returns the number of stored vectors for the project.
func (s *Store) Count(projectID int64) (int, error) {
	l := s.lockFor(projectID)
	l.RLock()
	defer l.RUnlock()

	idx, err := s.readIndex(projectID)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrInvalidState, err)
	}
	return idx.Len(), nil
}

func (s *Store) readIndex(projectID int64) (*Index, error) {
	data, err := os.ReadFile(s.indexPath(projectID))
	if err != nil {
		return nil, err
	}
	return DecodeIndex(data)
}

func (s *Store) readMeta(projectID int64) ([]Record, error) {
	data, err := os.ReadFile(s.metaPath(projectID))
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return records, nil
}

// writeArtifacts stages both files before renaming either. If the metadata
// rename fails after the index was replaced, the previous index is put back.
func (s *Store) writeArtifacts(projectID int64, idx *Index, meta []Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create vector dir: %w", err)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode vector metadata: %w", err)
	}

	indexPath := s.indexPath(projectID)
	pendingIndex, err := atomicfile.Stage(indexPath, func(w io.Writer) error {
		_, err := idx.WriteTo(w)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write vector index for project %d: %w", projectID, err)
	}
	pendingMeta, err := atomicfile.Stage(s.metaPath(projectID), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		pendingIndex.Abort()
		return fmt.Errorf("failed to write vector metadata for project %d: %w", projectID, err)
	}

	previous, readErr := os.ReadFile(indexPath)
	if err := pendingIndex.Commit(); err != nil {
		pendingMeta.Abort()
		return fmt.Errorf("failed to write vector index for project %d: %w", projectID, err)
	}
	if err := pendingMeta.Commit(); err != nil {
		s.restoreIndex(projectID, previous, readErr)
		return fmt.Errorf("failed to write vector metadata for project %d: %w", projectID, err)
	}
	return nil
}

func (s *Store) restoreIndex(projectID int64, previous []byte, readErr error) {
	path := s.indexPath(projectID)
	var err error
	switch {
	case readErr == nil:
		err = atomicfile.WriteFile(path, previous)
	case errors.Is(readErr, os.ErrNotExist):
		err = os.Remove(path)
	default:
		err = readErr
	}
	if err != nil {
		s.logger.Error("could not restore vector index after failed metadata write",
			"project_id", projectID, "error", err)
	}
}
