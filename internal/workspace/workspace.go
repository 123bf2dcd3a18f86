// Package workspace manages the on-disk source tree of each project.
package workspace

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"codesense/internal/apperr"
	"codesense/internal/crawler"
)

const sourceDir = "source"

var (
	// ErrFileNotFound is returned by ReadFile for paths that do not exist.
	ErrFileNotFound = fmt.Errorf("file %w", apperr.ErrNotFound)

	// ErrInvalidPath is returned for paths that escape the source root.
	ErrInvalidPath = fmt.Errorf("%w: path escapes project source", apperr.ErrInputMismatch)
)

// SourceRoot is the directory holding a project's imported files.
func SourceRoot(projectDir string) string {
	return filepath.Join(projectDir, sourceDir)
}

// ImportArchive replaces the project's source tree with the contents of the
// zip archive at zipPath. Entries that would land outside the tree are rejected
// and nothing is left half-extracted.
func ImportArchive(projectDir, zipPath string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	return replaceSource(projectDir, func(dst string) error {
		for _, f := range r.File {
			if err := extractEntry(dst, f); err != nil {
				return err
			}
		}
		return nil
	})
}

// ImportDir replaces the project's source tree with a copy of srcDir,
// skipping the directories the indexer never visits.
func ImportDir(projectDir, srcDir string) error {
	info, err := os.Stat(srcDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", srcDir)
	}

	return replaceSource(projectDir, func(dst string) error {
		return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && path != srcDir && crawler.IsExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			rel, err := filepath.Rel(srcDir, path)
			if err != nil {
				return err
			}
			target := filepath.Join(dst, rel)
			if d.IsDir() {
				return os.MkdirAll(target, 0o755)
			}
			if !d.Type().IsRegular() {
				return nil
			}
			return copyFile(path, target)
		})
	})
}

// replaceSource fills a staging directory and swaps it in for the current
// source tree only once fill succeeds.
func replaceSource(projectDir string, fill func(dst string) error) error {
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(projectDir, ".import-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	if err := fill(staging); err != nil {
		return err
	}

	root := SourceRoot(projectDir)
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("failed to clear source tree: %w", err)
	}
	return os.Rename(staging, root)
}

func extractEntry(dst string, f *zip.File) error {
	target, err := within(dst, f.Name)
	if err != nil {
		return fmt.Errorf("archive entry %q: %w", f.Name, err)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if !f.Mode().IsRegular() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// within joins rel onto root and fails if the result leaves root.
func within(root, rel string) (string, error) {
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", ErrInvalidPath
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	r, err := filepath.Rel(root, target)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return target, nil
}

// ListFiles returns every file in the project's source tree as sorted,
// slash-separated relative paths. A project with no imported source has no files.
func ListFiles(projectDir string) ([]string, error) {
	root := SourceRoot(projectDir)
	files := []string{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if path != root && crawler.IsExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// ReadFile returns the text of one file in the source tree. Content that is
// not valid UTF-8 is decoded as Latin-1.
func ReadFile(projectDir, relPath string) (string, error) {
	root := SourceRoot(projectDir)
	target, err := within(root, relPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, relPath)
	}

	// Resolve symlinks so a link inside the tree cannot point outside it.
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		rootResolved, rerr := filepath.EvalSymlinks(root)
		if rerr == nil {
			if _, err := within(rootResolved, mustRel(rootResolved, resolved)); err != nil {
				return "", fmt.Errorf("%w: %s", ErrInvalidPath, relPath)
			}
		}
	}

	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, relPath)
	}
	if err != nil {
		return "", err
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", relPath, err)
	}
	return string(decoded), nil
}

func mustRel(base, target string) string {
	r, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}
	return r
}
