package client

import (
	"fmt"
	"net/url"
	"strings"
)

// PathBuilder constructs the nine registry endpoint URLs from a registry
// base URL plus a package identity. It generalizes the per-ecosystem
// URLBuilder pattern to the single fixed protocol this client speaks.
type PathBuilder struct {
	BaseURL string
}

// NewPathBuilder returns a PathBuilder rooted at baseURL (trailing slash
// tolerated and stripped).
func NewPathBuilder(baseURL string) *PathBuilder {
	return &PathBuilder{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

func (b *PathBuilder) PackageMetadata(scope, name string) string {
	return fmt.Sprintf("%s/%s/%s", b.BaseURL, scope, name)
}

func (b *PathBuilder) VersionMetadata(scope, name, version string) string {
	return fmt.Sprintf("%s/%s/%s/%s", b.BaseURL, scope, name, version)
}

func (b *PathBuilder) Manifest(scope, name, version string) string {
	return fmt.Sprintf("%s/%s/%s/%s/Package.swift", b.BaseURL, scope, name, version)
}

// ManifestWithToolsVersion builds the manifest URL with an optional
// swift-version query parameter.
func (b *PathBuilder) ManifestWithToolsVersion(scope, name, version, swiftVersion string) string {
	base := b.Manifest(scope, name, version)
	if swiftVersion == "" {
		return base
	}
	q := url.Values{}
	q.Set("swift-version", swiftVersion)
	return base + "?" + q.Encode()
}

func (b *PathBuilder) SourceArchive(scope, name, version string) string {
	return fmt.Sprintf("%s/%s/%s/%s.zip", b.BaseURL, scope, name, version)
}

// IdentifierLookup builds the identifier-lookup URL for a source-control URL.
func (b *PathBuilder) IdentifierLookup(scmURL string) string {
	q := url.Values{}
	q.Set("url", scmURL)
	return fmt.Sprintf("%s/identifiers?%s", b.BaseURL, q.Encode())
}

func (b *PathBuilder) Publish(scope, name, version string) string {
	return fmt.Sprintf("%s/%s/%s/%s", b.BaseURL, scope, name, version)
}

func (b *PathBuilder) Availability() string {
	return fmt.Sprintf("%s/availability", b.BaseURL)
}
