// Package download implements the source-archive download pipeline: fetch
// the zip, validate it against the negotiated protocol, verify its
// signature and checksum, extract it to its final destination, and leave
// a metadata sidecar behind.
package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"path/filepath"

	pclient "github.com/git-pkgs/pkgregistry/client"
	"github.com/git-pkgs/pkgregistry/fetch"
	"github.com/git-pkgs/pkgregistry/internal/core"
	"github.com/git-pkgs/pkgregistry/internal/protocol"
	"github.com/git-pkgs/pkgregistry/internal/registryops"
	"github.com/git-pkgs/pkgregistry/internal/signing"
	"github.com/git-pkgs/pkgregistry/internal/tofu"
)

// SidecarFilename is the name of the metadata file written alongside an
// extracted source archive.
const SidecarFilename = ".registry-metadata"

// Request is the input to Orchestrator.Download.
type Request struct {
	Identity     core.RegistryIdentity
	Version      string
	Destination  string // must not exist yet
	NewHash      func() hash.Hash // defaults to sha256.New
	Progress     func(downloaded, total int64)

	// AlternateLocations, when set, is consulted if the primary download
	// URL fails — typically the Link header alternates returned by a
	// prior GetPackageMetadata call for the same package.
	AlternateLocations []core.AlternateLocation
}

// Outcome is the result of a successful Download.
type Outcome struct {
	Metadata      core.VersionMetadata
	SigningEntity *core.SigningEntity
	Checksum      string
}

// Orchestrator wires the registry operations, fetch, signing, and TOFU
// collaborators into the eleven-step download pipeline.
type Orchestrator struct {
	Ops                    *registryops.Ops
	Filesystem             core.Filesystem
	Extractor              core.ArchiveExtractor
	Fetcher                fetch.FetcherInterface
	SignatureValidator     *signing.Validator
	ChecksumValidator      *tofu.ChecksumValidator
	SigningEntityValidator *tofu.SigningEntityValidator
}

// Download runs the full pipeline and returns the version metadata and
// signing-entity outcome of a successful download. Every failure is
// wrapped as a *core.DownloadError with CodeFailedDownloadingSourceArchive,
// except destination-already-exists which is surfaced as-is so callers
// can distinguish it from a genuine download failure.
func (o *Orchestrator) Download(ctx context.Context, req Request) (Outcome, error) {
	zipPath := req.Destination + ".zip"

	outcome, err := o.run(ctx, req, zipPath)
	_ = o.Filesystem.RemoveFileTree(ctx, zipPath) // step 11: always clean up the temp zip

	if err != nil && !core.IsCode(err, core.CodePathAlreadyExists) {
		reg, _ := o.Ops.Registries.Resolve(req.Identity.Scope)
		return Outcome{}, core.Wrap(core.CodeFailedDownloadingSourceArchive, "",
			&core.DownloadError{Registry: reg, Package: core.PackageIdentity(req.Identity.String()), Version: req.Version, Cause: err})
	}
	return outcome, err
}

func (o *Orchestrator) run(ctx context.Context, req Request, zipPath string) (Outcome, error) {
	pkg := core.PackageIdentity(req.Identity.String())

	// 1. Fetch version metadata.
	metadata, err := o.Ops.GetPackageVersionMetadata(ctx, req.Identity, req.Version)
	if err != nil {
		return Outcome{}, err
	}

	// 2. Prepare filesystem.
	if err := o.Filesystem.CreateDirectory(ctx, filepath.Dir(req.Destination), true); err != nil {
		return Outcome{}, err
	}
	if o.Filesystem.Exists(zipPath) {
		if err := o.Filesystem.RemoveFileTree(ctx, zipPath); err != nil {
			return Outcome{}, err
		}
	}
	if o.Filesystem.Exists(req.Destination) {
		return Outcome{}, core.ErrPathAlreadyExists
	}

	// 3. Download the source archive, trying alternate locations on failure.
	path := pclient.NewPathBuilder(metadata.Registry.URL).SourceArchive(req.Identity.Scope, req.Identity.Name, req.Version)
	accept := o.Ops.Negotiator.Accept(protocol.MediaZip)

	artifact, err := o.fetchArchive(ctx, path, accept, req.AlternateLocations)
	if err != nil {
		return Outcome{}, err
	}
	defer func() { _ = artifact.Body.Close() }()

	archiveBytes, err := readWithProgress(artifact, req.Progress)
	if err != nil {
		return Outcome{}, err
	}
	if err := o.Filesystem.WriteFileContents(ctx, zipPath, archiveBytes); err != nil {
		return Outcome{}, err
	}

	// 4. Validate content version and type.
	if err := o.Ops.Negotiator.ValidateContentVersion(artifact.Header.Get("Content-Version"), true); err != nil {
		return Outcome{}, err
	}
	if err := protocol.ValidateContentType(artifact.ContentType, protocol.MediaZip); err != nil {
		return Outcome{}, err
	}

	// 5. Compute the checksum.
	newHash := req.NewHash
	if newHash == nil {
		newHash = sha256.New
	}
	h := newHash()
	h.Write(archiveBytes)
	checksum := hex.EncodeToString(h.Sum(nil))

	// 6. Validate the signature.
	entity, err := o.SignatureValidator.Validate(ctx, pkg, req.Version, archiveBytes, metadata.Resources)
	if err != nil {
		return Outcome{}, err
	}

	// 7. Validate TOFU: checksum, then signing entity at both granularities.
	if err := o.ChecksumValidator.Validate(ctx, pkg, req.Version, checksum); err != nil {
		return Outcome{}, err
	}
	if err := o.SigningEntityValidator.ValidatePackage(ctx, pkg, entity); err != nil {
		return Outcome{}, err
	}
	if err := o.SigningEntityValidator.ValidateRelease(ctx, pkg, req.Version, entity); err != nil {
		return Outcome{}, err
	}

	// 8. Re-check, create the destination, and extract.
	if o.Filesystem.Exists(req.Destination) {
		return Outcome{}, core.ErrPathAlreadyExists
	}
	if err := o.Filesystem.CreateDirectory(ctx, req.Destination, true); err != nil {
		return Outcome{}, err
	}
	if err := o.Extractor.Extract(ctx, zipPath, req.Destination); err != nil {
		return Outcome{}, err
	}

	// 9. Strip the first top-level directory.
	if err := o.Filesystem.StripFirstLevel(ctx, req.Destination); err != nil {
		return Outcome{}, err
	}

	// 10. Write the metadata sidecar.
	sidecar, err := encodeSidecar(metadata, entity)
	if err != nil {
		return Outcome{}, err
	}
	if err := o.Filesystem.WriteFileContents(ctx, filepath.Join(req.Destination, SidecarFilename), sidecar); err != nil {
		return Outcome{}, err
	}

	return Outcome{Metadata: metadata, SigningEntity: entity, Checksum: checksum}, nil
}

func (o *Orchestrator) fetchArchive(ctx context.Context, path, accept string, alternates []core.AlternateLocation) (*fetch.Artifact, error) {
	headers := map[string]string{"Accept": accept}

	if len(alternates) == 0 {
		return o.Fetcher.FetchWithHeaders(ctx, path, headers)
	}
	resolver := fetch.NewLocationResolver(o.Fetcher)
	return resolver.Fetch(ctx, path, headers, alternates)
}

func readWithProgress(artifact *fetch.Artifact, progress func(downloaded, total int64)) ([]byte, error) {
	if progress == nil {
		return io.ReadAll(artifact.Body)
	}

	var buf bytes.Buffer
	var downloaded int64
	chunk := make([]byte, 32*1024)
	for {
		n, err := artifact.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			downloaded += int64(n)
			progress(downloaded, artifact.Size)
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive body: %w", err)
		}
	}
}

type sidecarBody struct {
	Metadata      core.VersionMetadata `json:"metadata"`
	SigningEntity *core.SigningEntity  `json:"signingEntity,omitempty"`
}

func encodeSidecar(metadata core.VersionMetadata, entity *core.SigningEntity) ([]byte, error) {
	return json.Marshal(sidecarBody{Metadata: metadata, SigningEntity: entity})
}
