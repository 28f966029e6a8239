package pkgregistry

import (
	"context"

	"github.com/git-pkgs/pkgregistry/internal/core"
	"github.com/git-pkgs/pkgregistry/internal/download"
)

// GetPackageMetadata returns the package's release list and alternate
// download locations.
func (c *Client) GetPackageMetadata(ctx context.Context, scope, name string) (PackageMetadata, error) {
	id, err := core.NewRegistryIdentity(scope, name)
	if err != nil {
		return PackageMetadata{}, core.New(core.CodeInvalidPackageIdentity, scope+"."+name)
	}
	return c.ops.GetPackageMetadata(ctx, id)
}

// GetPackageVersionMetadata returns a single release's metadata.
func (c *Client) GetPackageVersionMetadata(ctx context.Context, scope, name, version string) (VersionMetadata, error) {
	id, err := core.NewRegistryIdentity(scope, name)
	if err != nil {
		return VersionMetadata{}, core.New(core.CodeInvalidPackageIdentity, scope+"."+name)
	}
	return c.ops.GetPackageVersionMetadata(ctx, id, version)
}

// GetAvailableManifests returns the primary manifest and any alternates
// advertised for a release.
func (c *Client) GetAvailableManifests(ctx context.Context, scope, name, version string) ([]Manifest, error) {
	id, err := core.NewRegistryIdentity(scope, name)
	if err != nil {
		return nil, core.New(core.CodeInvalidPackageIdentity, scope+"."+name)
	}
	return c.ops.GetAvailableManifests(ctx, id, version)
}

// GetManifestContent returns the manifest body for a release, optionally
// for a specific tools-version.
func (c *Client) GetManifestContent(ctx context.Context, scope, name, version, swiftVersion string) (string, error) {
	id, err := core.NewRegistryIdentity(scope, name)
	if err != nil {
		return "", core.New(core.CodeInvalidPackageIdentity, scope+"."+name)
	}
	return c.ops.GetManifestContent(ctx, id, version, swiftVersion)
}

// LookupIdentities resolves a source-control URL to the set of registry
// identities known to carry it.
func (c *Client) LookupIdentities(ctx context.Context, scope, scmURL string) (map[core.PackageIdentity]struct{}, error) {
	reg, ok := c.ops.Registries.(registryMap)[scope]
	if !ok {
		return nil, core.New(core.CodeRegistryNotConfigured, scope)
	}
	return c.ops.LookupIdentities(ctx, reg, scmURL)
}

// Login authenticates against loginURL, optionally bearing token.
func (c *Client) Login(ctx context.Context, loginURL, token string) error {
	return c.ops.Login(ctx, loginURL, token)
}

// Publish uploads a new release.
func (c *Client) Publish(ctx context.Context, scope, name, version string, req PublishRequest) (PublishOutcome, error) {
	id, err := core.NewRegistryIdentity(scope, name)
	if err != nil {
		return PublishOutcome{}, core.New(core.CodeInvalidPackageIdentity, scope+"."+name)
	}
	return c.ops.Publish(ctx, id, version, req)
}

// DownloadSourceArchive runs the full download pipeline — fetch,
// validate, verify signature and checksum, extract, and write the
// metadata sidecar — for one release. WithFilesystem, WithArchiveExtractor,
// and WithSignaturePrimitive must have been supplied to NewClient.
func (c *Client) DownloadSourceArchive(ctx context.Context, scope, name, version, destination string, opts ...func(*DownloadRequest)) (DownloadOutcome, error) {
	id, err := core.NewRegistryIdentity(scope, name)
	if err != nil {
		return DownloadOutcome{}, core.New(core.CodeInvalidPackageIdentity, scope+"."+name)
	}

	req := download.Request{Identity: id, Version: version, Destination: destination}
	for _, opt := range opts {
		opt(&req)
	}
	return c.download.Download(ctx, req)
}

// WithProgress sets the download progress callback on a DownloadRequest,
// for use with DownloadSourceArchive's variadic options.
func WithProgress(fn func(downloaded, total int64)) func(*DownloadRequest) {
	return func(r *DownloadRequest) { r.Progress = fn }
}

// WithAlternateLocations sets the alternate download locations (typically
// from a prior GetPackageMetadata call) consulted if the primary URL
// fails.
func WithAlternateLocations(locations []core.AlternateLocation) func(*DownloadRequest) {
	return func(r *DownloadRequest) { r.AlternateLocations = locations }
}

// EnrichMetadata fetches (or returns from cache) GitHub-sourced metadata
// for the repository at scmURL, keyed by identity. WithConfiguration's
// EnrichmentCacheDir and WithFilesystem must have been supplied to
// NewClient.
func (c *Client) EnrichMetadata(ctx context.Context, identity, scmURL string) (EnrichmentRecord, error) {
	if c.enrichment == nil {
		return EnrichmentRecord{}, core.New(core.CodeMissingConfiguration, "enrichment cache dir and filesystem not configured")
	}
	return c.enrichment.Get(ctx, identity, scmURL)
}
