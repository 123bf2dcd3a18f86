package storage

import (
	"context"
	"fmt"
	"time"

	"codesense/internal/apperr"
)

// ErrProjectNotFound is returned for unknown project IDs.
var ErrProjectNotFound = fmt.Errorf("project %w", apperr.ErrNotFound)

// Project is a registered code base. ProjectPath is the directory that holds
// its imported source tree.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	FileCount   int       `json:"file_count"`
	ProjectPath string    `json:"project_path"`
}

// ProjectStore persists the project registry.
type ProjectStore interface {
	// Create registers a project whose directory is <projectsRoot>/<id>.
	Create(ctx context.Context, name, description, projectsRoot string) (*Project, error)

	Get(ctx context.Context, id int64) (*Project, error)

	// List returns all projects ordered by ID.
	List(ctx context.Context) ([]*Project, error)

	UpdateFileCount(ctx context.Context, id int64, count int) error

	Close() error
}
