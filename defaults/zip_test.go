package defaults

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTestZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestZipExtractorExtractsFiles(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "archive.zip")
	writeTestZip(t, archivePath, map[string]string{
		"widget-1.0.0/Package.swift": "// swift-tools-version:5.0",
		"widget-1.0.0/Sources/a.swift": "let x = 1",
	})

	destDir := filepath.Join(dir, "dest")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		t.Fatal(err)
	}

	extractor := NewZipExtractor()
	if err := extractor.Extract(context.Background(), archivePath, destDir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "widget-1.0.0", "Package.swift"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains(data, []byte("swift-tools-version")) {
		t.Errorf("unexpected content: %s", data)
	}
}

func TestZipExtractorRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "archive.zip")

	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	entry, err := w.CreateHeader(&zip.FileHeader{Name: "../escape.txt"})
	if err != nil {
		t.Fatal(err)
	}
	_, _ = entry.Write([]byte("malicious"))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	destDir := filepath.Join(dir, "dest")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		t.Fatal(err)
	}

	extractor := NewZipExtractor()
	if err := extractor.Extract(context.Background(), archivePath, destDir); err == nil {
		t.Fatal("expected path traversal to be rejected")
	}
}
