package crawler

import (
	"io/fs"
	"log/slog"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"

	"codesense/internal/extractor"
)

// ExcludedDirs are directory names never descended into.
var ExcludedDirs = map[string]struct{}{
	".git":          {},
	"__pycache__":   {},
	"node_modules":  {},
	".venv":         {},
	".pytest_cache": {},
}

// IsExcludedDir reports whether a directory with this base name is skipped.
func IsExcludedDir(name string) bool {
	_, ok := ExcludedDirs[name]
	return ok
}

// File is a source file selected for indexing.
type File struct {
	Path     string // absolute or root-joined path on disk
	RelPath  string // slash-separated, relative to the project root
	Language extractor.Language
}

// Crawler scans a directory for source files.
type Crawler struct {
	extractor        *extractor.Extractor
	respectGitignore bool
	logger           *slog.Logger
}

type Option func(*Crawler)

// WithGitignore makes the crawler skip paths matched by the root .gitignore.
func WithGitignore(enabled bool) Option {
	return func(c *Crawler) { c.respectGitignore = enabled }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

// NewCrawler creates a crawler that keeps files ext can handle.
func NewCrawler(ext *extractor.Extractor, opts ...Option) *Crawler {
	c := &Crawler{extractor: ext, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ScanProject walks root in lexical order and calls onFile for every file
// whose extension maps to a registered language. Unknown extensions are skipped.
func (c *Crawler) ScanProject(root string, onFile func(File) error) error {
	var gi *ignore.GitIgnore
	if c.respectGitignore {
		if compiled, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
			gi = compiled
		}
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && IsExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		lang, ok := extractor.LanguageForPath(d.Name())
		if !ok || !c.extractor.Supports(lang) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if gi != nil && gi.MatchesPath(rel) {
			c.logger.Debug("crawler.ignored", "path", rel)
			return nil
		}

		return onFile(File{Path: path, RelPath: rel, Language: lang})
	})
}

// Collect returns every file ScanProject would visit, in walk order.
func (c *Crawler) Collect(root string) ([]File, error) {
	var files []File
	err := c.ScanProject(root, func(f File) error {
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
