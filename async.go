package pkgregistry

import (
	"context"

	"github.com/git-pkgs/pkgregistry/internal/core"
)

// GetPackageMetadataAsync runs GetPackageMetadata on the client's
// internal worker pool and delivers the result to done, which is never
// invoked on the calling goroutine.
func (c *Client) GetPackageMetadataAsync(ctx context.Context, scope, name string, done func(PackageMetadata, error)) {
	c.pool.Submit(func() {
		result, err := c.GetPackageMetadata(ctx, scope, name)
		done(result, err)
	})
}

// GetPackageVersionMetadataAsync is the asynchronous counterpart of
// GetPackageVersionMetadata.
func (c *Client) GetPackageVersionMetadataAsync(ctx context.Context, scope, name, version string, done func(VersionMetadata, error)) {
	c.pool.Submit(func() {
		result, err := c.GetPackageVersionMetadata(ctx, scope, name, version)
		done(result, err)
	})
}

// DownloadSourceArchiveAsync is the asynchronous counterpart of
// DownloadSourceArchive.
func (c *Client) DownloadSourceArchiveAsync(ctx context.Context, scope, name, version, destination string, done func(DownloadOutcome, error), opts ...func(*DownloadRequest)) {
	c.pool.Submit(func() {
		result, err := c.DownloadSourceArchive(ctx, scope, name, version, destination, opts...)
		done(result, err)
	})
}

// LookupIdentitiesAsync is the asynchronous counterpart of
// LookupIdentities.
func (c *Client) LookupIdentitiesAsync(ctx context.Context, scope, scmURL string, done func(map[core.PackageIdentity]struct{}, error)) {
	c.pool.Submit(func() {
		result, err := c.LookupIdentities(ctx, scope, scmURL)
		done(result, err)
	})
}

// PublishAsync is the asynchronous counterpart of Publish.
func (c *Client) PublishAsync(ctx context.Context, scope, name, version string, req PublishRequest, done func(PublishOutcome, error)) {
	c.pool.Submit(func() {
		result, err := c.Publish(ctx, scope, name, version, req)
		done(result, err)
	})
}

// EnrichMetadataAsync is the asynchronous counterpart of EnrichMetadata.
func (c *Client) EnrichMetadataAsync(ctx context.Context, identity, scmURL string, done func(EnrichmentRecord, error)) {
	c.pool.Submit(func() {
		result, err := c.EnrichMetadata(ctx, identity, scmURL)
		done(result, err)
	})
}
