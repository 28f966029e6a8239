package defaults

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ZipExtractor implements core.ArchiveExtractor using archive/zip.
type ZipExtractor struct{}

// NewZipExtractor returns an archive/zip-backed ArchiveExtractor.
func NewZipExtractor() *ZipExtractor {
	return &ZipExtractor{}
}

// Extract unpacks the zip archive at from into directory to, which must
// already exist. Every entry's destination is validated to stay within
// to, guarding against a "../" path traversal inside the archive.
func (ZipExtractor) Extract(ctx context.Context, from, to string) error {
	reader, err := zip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() { _ = reader.Close() }()

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		destPath := filepath.Join(to, filepath.FromSlash(file.Name))
		rel, err := filepath.Rel(to, destPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("archive entry %q escapes destination", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, file.Mode()); err != nil {
				return fmt.Errorf("creating directory %s: %w", destPath, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return fmt.Errorf("creating parent directory for %s: %w", destPath, err)
		}

		if err := extractEntry(file, destPath); err != nil {
			return fmt.Errorf("extracting %s: %w", file.Name, err)
		}
	}

	return nil
}

func extractEntry(file *zip.File, destPath string) (err error) {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	mode := file.Mode()
	if mode == 0 {
		mode = 0o644
	}
	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(dst, src)
	return err
}
