package pkgregistry

import (
	"context"

	"github.com/git-pkgs/purl"

	"github.com/git-pkgs/pkgregistry/internal/core"
)

// PURL is a parsed Package URL (pkg:swift/scope/name@version), the
// cross-registry identity format some callers already carry when they
// arrive at this client from a multi-ecosystem tool.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components.
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}

// identityFromPURL maps a parsed PURL onto this registry's (scope, name,
// version) identity grammar: namespace is the scope, name is the name.
func identityFromPURL(p *PURL) (scope, name, version string, err error) {
	if p.Namespace == "" {
		return "", "", "", core.New(core.CodeInvalidPackageIdentity, p.Name)
	}
	return p.Namespace, p.Name, p.Version, nil
}

// GetPackageMetadataFromPURL is GetPackageMetadata taking a Package URL
// (pkg:swift/scope/name) instead of separate scope/name arguments.
func (c *Client) GetPackageMetadataFromPURL(ctx context.Context, purlStr string) (PackageMetadata, error) {
	p, err := ParsePURL(purlStr)
	if err != nil {
		return PackageMetadata{}, core.Wrap(core.CodeInvalidPackageIdentity, purlStr, err)
	}
	scope, name, _, err := identityFromPURL(p)
	if err != nil {
		return PackageMetadata{}, err
	}
	return c.GetPackageMetadata(ctx, scope, name)
}

// DownloadSourceArchiveFromPURL is DownloadSourceArchive taking a
// versioned Package URL (pkg:swift/scope/name@version) instead of
// separate scope/name/version arguments.
func (c *Client) DownloadSourceArchiveFromPURL(ctx context.Context, purlStr, destination string, opts ...func(*DownloadRequest)) (DownloadOutcome, error) {
	p, err := ParsePURL(purlStr)
	if err != nil {
		return DownloadOutcome{}, core.Wrap(core.CodeInvalidPackageIdentity, purlStr, err)
	}
	scope, name, version, err := identityFromPURL(p)
	if err != nil {
		return DownloadOutcome{}, err
	}
	if version == "" {
		return DownloadOutcome{}, core.New(core.CodeInvalidPackageIdentity, purlStr+": missing version")
	}
	return c.DownloadSourceArchive(ctx, scope, name, version, destination, opts...)
}
