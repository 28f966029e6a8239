package download

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/facebookgo/clock"

	pclient "github.com/git-pkgs/pkgregistry/client"
	"github.com/git-pkgs/pkgregistry/defaults"
	"github.com/git-pkgs/pkgregistry/fetch"
	"github.com/git-pkgs/pkgregistry/internal/availability"
	"github.com/git-pkgs/pkgregistry/internal/core"
	"github.com/git-pkgs/pkgregistry/internal/metadatacache"
	"github.com/git-pkgs/pkgregistry/internal/protocol"
	"github.com/git-pkgs/pkgregistry/internal/registryops"
	"github.com/git-pkgs/pkgregistry/internal/signing"
	"github.com/git-pkgs/pkgregistry/internal/tofu"
)

type staticRegistries struct{ registry core.Registry }

func (s staticRegistries) Resolve(scope string) (core.Registry, bool) {
	if scope != "acme" {
		return core.Registry{}, false
	}
	return s.registry, true
}

type memFingerprints struct{ values map[string]core.Fingerprint }

func (m *memFingerprints) key(pkg core.PackageIdentity, version string, kind core.FingerprintKind) string {
	return fmt.Sprintf("%s@%s#%d", pkg, version, kind)
}

func (m *memFingerprints) Get(_ context.Context, pkg core.PackageIdentity, version string, kind core.FingerprintKind) (core.Fingerprint, bool, error) {
	fp, ok := m.values[m.key(pkg, version, kind)]
	return fp, ok, nil
}

func (m *memFingerprints) Put(_ context.Context, fp core.Fingerprint) error {
	m.values[m.key(fp.Package, fp.Version, fp.Kind)] = fp
	return nil
}

type memSigningEntities struct {
	byPackage map[core.PackageIdentity]core.SigningEntity
	byRelease map[string]core.SigningEntity
}

func newMemSigningEntities() *memSigningEntities {
	return &memSigningEntities{byPackage: map[core.PackageIdentity]core.SigningEntity{}, byRelease: map[string]core.SigningEntity{}}
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

type alwaysValidPrimitive struct{}

func (alwaysValidPrimitive) Status(context.Context, []byte, []byte, string, core.VerifierConfig) (core.SignatureStatus, error) {
	return core.SignatureStatus{Kind: core.SignatureValid, Entity: core.SigningEntity{Name: "Acme Corp"}}, nil
}

func buildTestZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, err := w.Create("widget-1.0.0/Package.swift")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := entry.Write([]byte("// swift-tools-version:5.0")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestOrchestrator(t *testing.T, registryURL string) *Orchestrator {
	t.Helper()
	reg := core.Registry{URL: registryURL}
	ops := &registryops.Ops{
		HTTP:       pclient.NewClient(),
		Gate:       availability.New(pclient.NewClient(), clock.NewMock(), availability.DefaultTTL),
		Cache:      metadatacache.New(clock.NewMock(), metadatacache.DefaultTTL),
		Negotiator: protocol.NewNegotiator("acme-vendor", "1"),
		Registries: staticRegistries{registry: reg},
	}

	return &Orchestrator{
		Ops:        ops,
		Filesystem: defaults.NewFilesystem(),
		Extractor:  defaults.NewZipExtractor(),
		Fetcher:    fetch.NewFetcher(),
		SignatureValidator: &signing.Validator{
			Primitive: alwaysValidPrimitive{},
			Config:    signing.Config{OnUnsigned: signing.PolicyError, OnUntrustedCertificate: signing.PolicyError},
		},
		ChecksumValidator: &tofu.ChecksumValidator{
			Store:      &memFingerprints{values: map[string]core.Fingerprint{}},
			Mode:       tofu.ChecksumStrict,
			Enablement: tofu.ChecksumEnabled,
		},
		SigningEntityValidator: &tofu.SigningEntityValidator{Store: newMemSigningEntities()},
	}
}

func serveRegistry(t *testing.T, zipBytes []byte, signed bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/acme/widget/1.0.0":
			w.Header().Set("Content-Version", "1")
			w.Header().Set("Content-Type", "application/json")
			body := map[string]any{"author": "Jane"}
			if signed {
				body["resources"] = []map[string]any{{
					"name": "source-archive",
					"type": "application/zip",
					"signing": map[string]any{
						"signature":       "c2ln", // base64 "sig"
						"signatureFormat": "cms-1.0.0",
					},
				}}
			}
			_ = json.NewEncoder(w).Encode(body)
		case r.URL.Path == "/acme/widget/1.0.0.zip":
			w.Header().Set("Content-Type", "application/zip")
			w.Header().Set("Content-Version", "1")
			_, _ = w.Write(zipBytes)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestDownloadSucceeds(t *testing.T) {
	zipBytes := buildTestZip(t)
	srv := serveRegistry(t, zipBytes, true)
	defer srv.Close()

	orch := newTestOrchestrator(t, srv.URL)
	dir := t.TempDir()
	dest := filepath.Join(dir, "widget")

	outcome, err := orch.Download(context.Background(), Request{
		Identity:    core.RegistryIdentity{Scope: "acme", Name: "widget"},
		Version:     "1.0.0",
		Destination: dest,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.SigningEntity == nil || outcome.SigningEntity.Name != "Acme Corp" {
		t.Errorf("expected signing entity Acme Corp, got %+v", outcome.SigningEntity)
	}
	if outcome.Checksum == "" {
		t.Error("expected non-empty checksum")
	}

	if _, err := os.Stat(filepath.Join(dest, "Package.swift")); err != nil {
		t.Errorf("expected extracted+stripped Package.swift: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, SidecarFilename)); err != nil {
		t.Errorf("expected metadata sidecar: %v", err)
	}
	if _, err := os.Stat(dest + ".zip"); !os.IsNotExist(err) {
		t.Errorf("expected temp zip to be removed, stat err = %v", err)
	}
}

func TestDownloadFailsWhenDestinationExists(t *testing.T) {
	zipBytes := buildTestZip(t)
	srv := serveRegistry(t, zipBytes, true)
	defer srv.Close()

	orch := newTestOrchestrator(t, srv.URL)
	dir := t.TempDir()
	dest := filepath.Join(dir, "widget")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := orch.Download(context.Background(), Request{
		Identity:    core.RegistryIdentity{Scope: "acme", Name: "widget"},
		Version:     "1.0.0",
		Destination: dest,
	})
	if !core.IsCode(err, core.CodePathAlreadyExists) {
		t.Fatalf("expected PathAlreadyExists, got %v", err)
	}
}

func TestDownloadUnsignedArchiveFailsAndLeavesNoDestination(t *testing.T) {
	zipBytes := buildTestZip(t)
	srv := serveRegistry(t, zipBytes, false)
	defer srv.Close()

	orch := newTestOrchestrator(t, srv.URL)
	dir := t.TempDir()
	dest := filepath.Join(dir, "widget")

	_, err := orch.Download(context.Background(), Request{
		Identity:    core.RegistryIdentity{Scope: "acme", Name: "widget"},
		Version:     "1.0.0",
		Destination: dest,
	})
	if !core.IsCode(err, core.CodeFailedDownloadingSourceArchive) {
		t.Fatalf("expected FailedDownloadingSourceArchive, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Errorf("expected destination to not exist after failed validation, stat err = %v", statErr)
	}
}

func TestDownloadProgressCallbackObservesBytes(t *testing.T) {
	zipBytes := buildTestZip(t)
	srv := serveRegistry(t, zipBytes, true)
	defer srv.Close()

	orch := newTestOrchestrator(t, srv.URL)
	dir := t.TempDir()
	dest := filepath.Join(dir, "widget")

	var lastDownloaded int64
	_, err := orch.Download(context.Background(), Request{
		Identity:    core.RegistryIdentity{Scope: "acme", Name: "widget"},
		Version:     "1.0.0",
		Destination: dest,
		Progress: func(downloaded, total int64) {
			lastDownloaded = downloaded
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lastDownloaded != int64(len(zipBytes)) {
		t.Errorf("expected progress to reach %d bytes, last reported %d", len(zipBytes), lastDownloaded)
	}
}

