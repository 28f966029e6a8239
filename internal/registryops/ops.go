// Package registryops implements the registry operations, except the
// source-archive download (see internal/download), and the shared
// error-mapping table used by all of them.
package registryops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/google/uuid"

	pclient "github.com/git-pkgs/pkgregistry/client"
	"github.com/git-pkgs/pkgregistry/internal/availability"
	"github.com/git-pkgs/pkgregistry/internal/core"
	"github.com/git-pkgs/pkgregistry/internal/linkheader"
	"github.com/git-pkgs/pkgregistry/internal/metadatacache"
	"github.com/git-pkgs/pkgregistry/internal/protocol"
)

// Registries resolves a (scope) to its configured core.Registry.
type Registries interface {
	Resolve(scope string) (core.Registry, bool)
}

// Ops bundles the collaborators every operation needs: the HTTP client,
// the availability gate, the metadata cache, the content negotiator, and
// the configured registries.
type Ops struct {
	HTTP       *pclient.Client
	Gate       *availability.Gate
	Cache      *metadatacache.Cache
	Negotiator *protocol.Negotiator
	Registries Registries
}

// resolve validates the identity and looks up its registry, applying the
// availability gate. It is the common prologue of every operation.
func (o *Ops) resolve(ctx context.Context, id core.RegistryIdentity) (core.Registry, error) {
	if !core.ValidateComponent(id.Scope) || !core.ValidateComponent(id.Name) {
		return core.Registry{}, core.New(core.CodeInvalidPackageIdentity, id.String())
	}

	reg, ok := o.Registries.Resolve(id.Scope)
	if !ok {
		return core.Registry{}, core.New(core.CodeRegistryNotConfigured, id.Scope)
	}

	status, err := o.Gate.Check(ctx, reg)
	if err != nil {
		return core.Registry{}, err
	}
	if err := availability.Apply(status); err != nil {
		return core.Registry{}, err
	}

	return reg, nil
}

// MapStatus applies the shared status-code mapping table to a response
// that didn't match the operation's expected 200/404 set.
func MapStatus(resp *http.Response) error {
	if problem, ok := pclient.DecodeProblem(resp); ok {
		return core.Wrap(core.CodeServerError, "", &core.ServerErrorDetail{StatusCode: resp.StatusCode, Detail: problem.Detail})
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return core.New(core.CodeUnauthorized, "")
	case http.StatusForbidden:
		return core.New(core.CodeForbidden, "")
	case http.StatusNotImplemented:
		return core.New(core.CodeAuthenticationMethodNotSupported, "")
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return core.Wrap(core.CodeServerError, "", &core.ServerErrorDetail{StatusCode: resp.StatusCode})
	default:
		return core.New(core.CodeInvalidResponseStatus, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
}

// --- getPackageMetadata ---

type releaseEnvelope struct {
	Releases map[string]releaseEntry `json:"releases"`
}

type releaseEntry struct {
	URL     string          `json:"url"`
	Problem json.RawMessage `json:"problem"`
}

// GetPackageMetadata implements GET /{scope}/{name}.
func (o *Ops) GetPackageMetadata(ctx context.Context, id core.RegistryIdentity) (core.PackageMetadata, error) {
	reg, err := o.resolve(ctx, id)
	if err != nil {
		return core.PackageMetadata{}, err
	}

	path := pclient.NewPathBuilder(reg.URL).PackageMetadata(id.Scope, id.Name)
	var envelope releaseEnvelope
	resp, err := o.HTTP.GetJSON(ctx, path, o.Negotiator.Accept(protocol.MediaJSON), &envelope)
	if err != nil {
		return core.PackageMetadata{}, core.Wrap(core.CodeFailedRetrievingReleases, "", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return core.PackageMetadata{}, core.New(core.CodePackageNotFound, id.String())
	}
	if resp.StatusCode != http.StatusOK {
		return core.PackageMetadata{}, MapStatus(resp)
	}

	if err := o.Negotiator.ValidateContentVersion(resp.Header.Get("Content-Version"), false); err != nil {
		return core.PackageMetadata{}, err
	}
	if err := protocol.ValidateContentType(resp.Header.Get("Content-Type"), protocol.MediaJSON); err != nil {
		return core.PackageMetadata{}, err
	}

	var versions []core.Version
	for raw, entry := range envelope.Releases {
		if len(entry.Problem) > 0 && string(entry.Problem) != "null" {
			continue
		}
		v, err := core.ParseVersion(raw)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	core.SortVersionsDescending(versions)

	locations := linkheader.ParseAlternativeLocations(resp.Header.Get("Link"))

	return core.PackageMetadata{Registry: reg, Versions: versions, AlternateLocations: locations}, nil
}

// --- getPackageVersionMetadata ---

type versionMetadataBody struct {
	LicenseURL     string   `json:"license_url"`
	ReadmeURL      string   `json:"readme_url"`
	RepositoryURLs []string `json:"repository_urls"`
	Author         string   `json:"author"`
	Description    string   `json:"description"`
	Resources      []struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Checksum string `json:"checksum"`
		Signing  *struct {
			Signature       string `json:"signature"`
			SignatureFormat string `json:"signatureFormat"`
		} `json:"signing"`
	} `json:"resources"`
}

func (b versionMetadataBody) toMetadata(reg core.Registry) core.VersionMetadata {
	vm := core.VersionMetadata{
		Registry:       reg,
		LicenseURL:     b.LicenseURL,
		ReadmeURL:      b.ReadmeURL,
		RepositoryURLs: b.RepositoryURLs,
		Author:         b.Author,
		Description:    b.Description,
	}
	for _, r := range b.Resources {
		res := core.Resource{Name: r.Name, Type: r.Type, Checksum: r.Checksum}
		if r.Signing != nil {
			res.Signing = &core.SigningInfo{SignatureBase64: r.Signing.Signature, SignatureFormat: r.Signing.SignatureFormat}
		}
		vm.Resources = append(vm.Resources, res)
	}
	return vm
}

// GetPackageVersionMetadata implements GET /{scope}/{name}/{version},
// reading and populating the version metadata cache.
func (o *Ops) GetPackageVersionMetadata(ctx context.Context, id core.RegistryIdentity, version string) (core.VersionMetadata, error) {
	reg, err := o.resolve(ctx, id)
	if err != nil {
		return core.VersionMetadata{}, err
	}

	if cached, ok := o.Cache.Get(reg.URL, id, version); ok {
		return cached, nil
	}

	path := pclient.NewPathBuilder(reg.URL).VersionMetadata(id.Scope, id.Name, version)
	var body versionMetadataBody
	resp, err := o.HTTP.GetJSON(ctx, path, o.Negotiator.Accept(protocol.MediaJSON), &body)
	if err != nil {
		return core.VersionMetadata{}, core.Wrap(core.CodeFailedRetrievingReleaseInfo, "", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return core.VersionMetadata{}, core.New(core.CodePackageVersionNotFound, id.String()+"@"+version)
	}
	if resp.StatusCode != http.StatusOK {
		return core.VersionMetadata{}, MapStatus(resp)
	}

	if err := o.Negotiator.ValidateContentVersion(resp.Header.Get("Content-Version"), false); err != nil {
		return core.VersionMetadata{}, err
	}
	if err := protocol.ValidateContentType(resp.Header.Get("Content-Type"), protocol.MediaJSON); err != nil {
		return core.VersionMetadata{}, err
	}

	metadata := body.toMetadata(reg)
	o.Cache.Put(reg.URL, id, version, metadata)
	return metadata, nil
}

// --- getAvailableManifests ---

// Manifest pairs a manifest's content (nil for alternates) with its
// tools-version and, for alternates, filename.
type Manifest struct {
	Content      []byte // nil for alternates
	Filename     string
	ToolsVersion string
}

// toolsVersionFromSource extracts "// swift-tools-version:X.Y" from the
// head of a manifest body, the way Package.swift declares it.
func toolsVersionFromSource(body []byte) string {
	const marker = "swift-tools-version:"
	idx := bytes.Index(body, []byte(marker))
	if idx < 0 {
		return ""
	}
	rest := body[idx+len(marker):]
	end := bytes.IndexAny(rest, "\n\r ")
	if end < 0 {
		end = len(rest)
	}
	return string(bytes.TrimSpace(rest[:end]))
}

// GetAvailableManifests implements GET /{scope}/{name}/{version}/Package.swift
// with no swift-version query, returning the primary manifest plus any
// alternates advertised via the Link header.
func (o *Ops) GetAvailableManifests(ctx context.Context, id core.RegistryIdentity, version string) ([]Manifest, error) {
	reg, err := o.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	path := pclient.NewPathBuilder(reg.URL).Manifest(id.Scope, id.Name, version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", o.Negotiator.Accept(protocol.MediaSwift))

	resp, err := o.HTTP.Do(req)
	if err != nil {
		return nil, core.Wrap(core.CodeFailedRetrievingReleaseInfo, "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, core.New(core.CodePackageVersionNotFound, id.String()+"@"+version)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, MapStatus(resp)
	}

	if err := protocol.ValidateContentType(resp.Header.Get("Content-Type"), protocol.MediaSwift); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.Wrap(core.CodeInvalidResponse, "", err)
	}
	if len(body) == 0 {
		return nil, core.New(core.CodeInvalidResponse, "empty manifest body")
	}

	manifests := []Manifest{{Content: body, ToolsVersion: toolsVersionFromSource(body)}}

	alternates, err := linkheader.ParseAlternateManifests(resp.Header.Get("Link"))
	if err != nil {
		return nil, err
	}
	for _, alt := range alternates {
		manifests = append(manifests, Manifest{Filename: alt.Filename, ToolsVersion: alt.ToolsVersion})
	}

	return manifests, nil
}

// --- getManifestContent ---

// GetManifestContent implements GET /{scope}/{name}/{version}/Package.swift
// with an optional swift-version query parameter.
func (o *Ops) GetManifestContent(ctx context.Context, id core.RegistryIdentity, version, swiftVersion string) (string, error) {
	reg, err := o.resolve(ctx, id)
	if err != nil {
		return "", err
	}

	path := pclient.NewPathBuilder(reg.URL).ManifestWithToolsVersion(id.Scope, id.Name, version, swiftVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", o.Negotiator.Accept(protocol.MediaSwift))

	resp, err := o.HTTP.Do(req)
	if err != nil {
		return "", core.Wrap(core.CodeFailedRetrievingReleaseInfo, "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", core.New(core.CodePackageVersionNotFound, id.String()+"@"+version)
	}
	if resp.StatusCode != http.StatusOK {
		return "", MapStatus(resp)
	}
	if err := protocol.ValidateContentType(resp.Header.Get("Content-Type"), protocol.MediaSwift); err != nil {
		return "", err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", core.Wrap(core.CodeInvalidResponse, "", err)
	}
	return string(body), nil
}

// --- lookupIdentities ---

// LookupIdentities implements GET /identifiers?url=<scmURL>. A 404 maps
// to a valid empty result rather than an error, since "no identifiers
// found" and "lookup not supported" are indistinguishable here; any
// other non-200 status is an error.
func (o *Ops) LookupIdentities(ctx context.Context, reg core.Registry, scmURL string) (map[core.PackageIdentity]struct{}, error) {
	status, err := o.Gate.Check(ctx, reg)
	if err != nil {
		return nil, err
	}
	if err := availability.Apply(status); err != nil {
		return nil, err
	}

	path := pclient.NewPathBuilder(reg.URL).IdentifierLookup(scmURL)
	var body struct {
		Identifiers []string `json:"identifiers"`
	}
	resp, err := o.HTTP.GetJSON(ctx, path, o.Negotiator.Accept(protocol.MediaJSON), &body)
	if err != nil {
		return nil, core.Wrap(core.CodeFailedIdentityLookup, "", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return map[core.PackageIdentity]struct{}{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, MapStatus(resp)
	}

	out := make(map[core.PackageIdentity]struct{}, len(body.Identifiers))
	for _, id := range body.Identifiers {
		out[core.PackageIdentity(id)] = struct{}{}
	}
	return out, nil
}

// --- login ---

// Login implements POST <loginURL>.
func (o *Ops) Login(ctx context.Context, loginURL string, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := o.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return MapStatus(resp)
}

// --- publish ---

// PublishRequest is the input to Publish.
type PublishRequest struct {
	Archive         []byte
	SignatureBytes  []byte // optional
	SignatureFormat string // required if SignatureBytes is set
	Metadata        []byte // optional, JSON
}

// PublishOutcomeKind distinguishes the two successful publish outcomes.
type PublishOutcomeKind int

const (
	PublishedOutcome PublishOutcomeKind = iota
	ProcessingOutcome
)

// PublishOutcome is the result of a successful Publish call.
type PublishOutcome struct {
	Kind       PublishOutcomeKind
	Location   string // set for PublishedOutcome, may be empty
	StatusURL  string // set for ProcessingOutcome
	RetryAfter time.Duration
}

// encodePublishBody builds the multipart/form-data publish body, with
// boundary = a random UUID and parts in declared order: source-archive,
// optional source-archive-signature, optional metadata.
func encodePublishBody(req PublishRequest) (body *bytes.Buffer, boundary string, err error) {
	if len(req.SignatureBytes) > 0 && req.SignatureFormat == "" {
		return nil, "", core.New(core.CodeMissingSignatureFormat, "")
	}

	boundary = uuid.NewString()
	body = &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.SetBoundary(boundary); err != nil {
		return nil, "", err
	}

	archivePart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="source-archive"; filename="source-archive.zip"`},
		"Content-Type":        {"application/zip"},
		"Content-Transfer-Encoding": {"binary"},
	})
	if err != nil {
		return nil, "", err
	}
	if _, err := archivePart.Write(req.Archive); err != nil {
		return nil, "", err
	}

	if len(req.SignatureBytes) > 0 {
		sigPart, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {`form-data; name="source-archive-signature"; filename="source-archive.sig"`},
			"Content-Type":        {"application/octet-stream"},
			"Content-Transfer-Encoding": {"binary"},
		})
		if err != nil {
			return nil, "", err
		}
		if _, err := sigPart.Write(req.SignatureBytes); err != nil {
			return nil, "", err
		}
	}

	if len(req.Metadata) > 0 {
		metaPart, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {`form-data; name="metadata"`},
			"Content-Type":        {"application/json"},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, "", err
		}
		if _, err := metaPart.Write(req.Metadata); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, boundary, nil
}

// Publish implements PUT /{scope}/{name}/{version}.
func (o *Ops) Publish(ctx context.Context, id core.RegistryIdentity, version string, publishReq PublishRequest) (PublishOutcome, error) {
	reg, err := o.resolve(ctx, id)
	if err != nil {
		return PublishOutcome{}, err
	}

	body, boundary, err := encodePublishBody(publishReq)
	if err != nil {
		return PublishOutcome{}, err
	}

	path := pclient.NewPathBuilder(reg.URL).Publish(id.Scope, id.Name, version)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, path, body)
	if err != nil {
		return PublishOutcome{}, err
	}
	req.Header.Set("Content-Type", fmt.Sprintf(`multipart/form-data;boundary="%s"`, boundary))
	req.Header.Set("Expect", "100-continue")
	req.Header.Set("Prefer", "respond-async")
	if len(publishReq.SignatureBytes) > 0 {
		req.Header.Set("X-Swift-Package-Signature-Format", publishReq.SignatureFormat)
	}

	resp, err := o.HTTP.Do(req)
	if err != nil {
		return PublishOutcome{}, core.Wrap(core.CodeFailedPublishing, "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusCreated:
		return PublishOutcome{Kind: PublishedOutcome, Location: resp.Header.Get("Location")}, nil
	case http.StatusAccepted:
		statusURL := resp.Header.Get("Location")
		if statusURL == "" {
			return PublishOutcome{}, core.New(core.CodeMissingPublishingLocation, "")
		}
		outcome := PublishOutcome{Kind: ProcessingOutcome, StatusURL: statusURL}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				outcome.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return outcome, nil
	default:
		return PublishOutcome{}, MapStatus(resp)
	}
}
