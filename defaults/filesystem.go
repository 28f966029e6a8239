// Package defaults provides the os-backed Filesystem and archive/zip-backed
// ArchiveExtractor collaborators the download orchestrator uses when the
// caller doesn't supply its own.
package defaults

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Filesystem implements core.Filesystem against the local disk.
type Filesystem struct{}

// NewFilesystem returns an os-backed Filesystem.
func NewFilesystem() *Filesystem {
	return &Filesystem{}
}

func (Filesystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (Filesystem) CreateDirectory(_ context.Context, path string, recursive bool) error {
	if recursive {
		return os.MkdirAll(path, 0o755)
	}
	return os.Mkdir(path, 0o755)
}

func (Filesystem) RemoveFileTree(_ context.Context, path string) error {
	return os.RemoveAll(path)
}

func (Filesystem) ReadFileContents(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (Filesystem) WriteFileContents(_ context.Context, path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

// StripFirstLevel moves every entry one level up out of dir's single
// top-level subdirectory, then removes the now-empty subdirectory. If dir
// contains anything other than exactly one subdirectory, it is a no-op.
func (Filesystem) StripFirstLevel(_ context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	top := filepath.Join(dir, entries[0].Name())
	children, err := os.ReadDir(top)
	if err != nil {
		return err
	}

	for _, child := range children {
		oldPath := filepath.Join(top, child.Name())
		newPath := filepath.Join(dir, child.Name())
		if err := os.Rename(oldPath, newPath); err != nil {
			return fmt.Errorf("moving %s to %s: %w", oldPath, newPath, err)
		}
	}

	return os.Remove(top)
}
