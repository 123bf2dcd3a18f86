// Package atomicfile replaces files through a temp file and rename so readers
// never observe a partially written artifact.
package atomicfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Write streams fn's output into a temp file next to path, syncs it, and
// renames it over path. On any error the temp file is removed and path is untouched.
func Write(path string, fn func(w io.Writer) error) error {
	p, err := Stage(path, fn)
	if err != nil {
		return err
	}
	return p.Commit()
}

// Pending is a fully written temp file waiting to be renamed over its target.
type Pending struct {
	path string
	tmp  string
}

// Stage writes fn's output to a synced temp file next to path without
// touching path. The caller must Commit or Abort the result.
func Stage(path string, fn func(w io.Writer) error) (_ *Pending, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = fn(tmp); err != nil {
		return nil, err
	}
	if err = tmp.Sync(); err != nil {
		return nil, err
	}
	if err = tmp.Close(); err != nil {
		return nil, err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return nil, err
	}
	return &Pending{path: path, tmp: tmp.Name()}, nil
}

// Commit renames the temp file over the target. A failed rename removes the temp file.
func (p *Pending) Commit() error {
	if err := os.Rename(p.tmp, p.path); err != nil {
		os.Remove(p.tmp)
		return err
	}
	return nil
}

// Abort discards the temp file.
func (p *Pending) Abort() {
	os.Remove(p.tmp)
}

// WriteFile is Write for an in-memory payload.
func WriteFile(path string, data []byte) error {
	return Write(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
