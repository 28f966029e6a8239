package pkgregistry_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	pkgregistry "github.com/git-pkgs/pkgregistry"
	"github.com/git-pkgs/pkgregistry/defaults"
	"github.com/git-pkgs/pkgregistry/internal/core"
)

type alwaysValidPrimitive struct{}

func (alwaysValidPrimitive) Status(context.Context, []byte, []byte, string, core.VerifierConfig) (core.SignatureStatus, error) {
	return core.SignatureStatus{Kind: core.SignatureValid, Entity: core.SigningEntity{Name: "Acme Corp"}}, nil
}

type memFingerprints struct{ values map[string]core.Fingerprint }

func (m *memFingerprints) Get(_ context.Context, pkg core.PackageIdentity, version string, kind core.FingerprintKind) (core.Fingerprint, bool, error) {
	fp, ok := m.values[string(pkg)+"@"+version]
	return fp, ok, nil
}

func (m *memFingerprints) Put(_ context.Context, fp core.Fingerprint) error {
	m.values[string(fp.Package)+"@"+fp.Version] = fp
	return nil
}

type memSigningEntities struct {
	byPackage map[core.PackageIdentity]core.SigningEntity
	byRelease map[string]core.SigningEntity
}

func (m *memSigningEntities) GetForPackage(_ context.Context, pkg core.PackageIdentity) (core.SigningEntity, bool, error) {
	e, ok := m.byPackage[pkg]
	return e, ok, nil
}

func (m *memSigningEntities) PutForPackage(_ context.Context, pkg core.PackageIdentity, e core.SigningEntity) error {
	m.byPackage[pkg] = e
	return nil
}

func (m *memSigningEntities) GetForRelease(_ context.Context, pkg core.PackageIdentity, version string) (core.SigningEntity, bool, error) {
	e, ok := m.byRelease[string(pkg)+"@"+version]
	return e, ok, nil
}

func (m *memSigningEntities) PutForRelease(_ context.Context, pkg core.PackageIdentity, version string, e core.SigningEntity) error {
	m.byRelease[string(pkg)+"@"+version] = e
	return nil
}

func TestClientGetPackageMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acme/widget" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Version", "1")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"releases": map[string]any{
				"1.0.0": map[string]any{"url": r.Host + "/acme/widget/1.0.0"},
			},
		})
	}))
	defer srv.Close()

	cl := pkgregistry.NewClient(pkgregistry.WithRegistry("acme", core.Registry{URL: srv.URL}))
	defer cl.Close()

	metadata, err := cl.GetPackageMetadata(context.Background(), "acme", "widget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(metadata.Versions) != 1 || metadata.Versions[0].String() != "1.0.0" {
		t.Errorf("unexpected versions: %+v", metadata.Versions)
	}
}

func TestClientGetPackageMetadataNotConfigured(t *testing.T) {
	cl := pkgregistry.NewClient()
	defer cl.Close()

	_, err := cl.GetPackageMetadata(context.Background(), "acme", "widget")
	if !pkgregistry.IsCode(err, pkgregistry.CodeRegistryNotConfigured) {
		t.Fatalf("expected RegistryNotConfigured, got %v", err)
	}
}

func TestClientDownloadSourceArchiveEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/acme/widget/1.0.0":
			w.Header().Set("Content-Version", "1")
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"author": "Jane",
				"resources": []map[string]any{{
					"name": "source-archive",
					"type": "application/zip",
					"signing": map[string]any{
						"signature":       "c2ln",
						"signatureFormat": "cms-1.0.0",
					},
				}},
			})
		case "/acme/widget/1.0.0.zip":
			w.Header().Set("Content-Type", "application/zip")
			w.Header().Set("Content-Version", "1")
			_, _ = w.Write(buildMinimalZip())
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	cl := pkgregistry.NewClient(
		pkgregistry.WithRegistry("acme", core.Registry{URL: srv.URL}),
		pkgregistry.WithFilesystem(defaults.NewFilesystem()),
		pkgregistry.WithArchiveExtractor(defaults.NewZipExtractor()),
		pkgregistry.WithSignaturePrimitive(alwaysValidPrimitive{}),
		pkgregistry.WithFingerprintStore(&memFingerprints{values: map[string]core.Fingerprint{}}),
		pkgregistry.WithSigningEntityStore(&memSigningEntities{
			byPackage: map[core.PackageIdentity]core.SigningEntity{},
			byRelease: map[string]core.SigningEntity{},
		}),
	)
	defer cl.Close()

	dest := filepath.Join(dir, "widget")
	outcome, err := cl.DownloadSourceArchive(context.Background(), "acme", "widget", "1.0.0", dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.SigningEntity == nil || outcome.SigningEntity.Name != "Acme Corp" {
		t.Errorf("unexpected signing entity: %+v", outcome.SigningEntity)
	}
}

func TestClientDownloadSourceArchiveAsync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/acme/widget/1.0.0":
			w.Header().Set("Content-Version", "1")
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"resources": []map[string]any{{
					"name": "source-archive",
					"type": "application/zip",
					"signing": map[string]any{
						"signature":       "c2ln",
						"signatureFormat": "cms-1.0.0",
					},
				}},
			})
		case "/acme/widget/1.0.0.zip":
			w.Header().Set("Content-Type", "application/zip")
			w.Header().Set("Content-Version", "1")
			_, _ = w.Write(buildMinimalZip())
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	cl := pkgregistry.NewClient(
		pkgregistry.WithRegistry("acme", core.Registry{URL: srv.URL}),
		pkgregistry.WithFilesystem(defaults.NewFilesystem()),
		pkgregistry.WithArchiveExtractor(defaults.NewZipExtractor()),
		pkgregistry.WithSignaturePrimitive(alwaysValidPrimitive{}),
		pkgregistry.WithFingerprintStore(&memFingerprints{values: map[string]core.Fingerprint{}}),
		pkgregistry.WithSigningEntityStore(&memSigningEntities{
			byPackage: map[core.PackageIdentity]core.SigningEntity{},
			byRelease: map[string]core.SigningEntity{},
		}),
	)
	defer cl.Close()

	dest := filepath.Join(dir, "widget")
	done := make(chan struct{})

	cl.DownloadSourceArchiveAsync(context.Background(), "acme", "widget", "1.0.0", dest, func(outcome pkgregistry.DownloadOutcome, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("async download did not complete")
	}
}

func buildMinimalZip() []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, err := w.Create("widget-1.0.0/Package.swift")
	if err != nil {
		panic(err)
	}
	if _, err := entry.Write([]byte("// swift-tools-version:5.0")); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
