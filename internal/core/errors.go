package core

import (
	"errors"
	"fmt"
)

// Code identifies one member of the client's closed error taxonomy.
type Code int

const (
	// Input errors
	CodeInvalidPackageIdentity Code = iota
	CodeInvalidURL
	CodeInvalidGitURL
	CodeRegistryNotConfigured
	CodePathAlreadyExists

	// Transport containers
	CodeFailedRetrievingReleases
	CodeFailedRetrievingReleaseInfo
	CodeFailedDownloadingSourceArchive
	CodeFailedIdentityLookup
	CodeFailedPublishing

	// Protocol errors
	CodeInvalidResponse
	CodeInvalidResponseStatus
	CodeInvalidContentVersion
	CodeInvalidContentType

	// Availability errors
	CodeRegistryNotAvailable
	CodeUnauthorized
	CodeForbidden
	CodeAuthenticationMethodNotSupported
	CodeServerError

	// Trust errors
	CodeMissingSourceArchive
	CodeSourceArchiveMissingChecksum
	CodeSourceArchiveNotSigned
	CodeMissingSignatureFormat
	CodeUnknownSignatureFormat
	CodeInvalidSignature
	CodeInvalidSigningCertificate
	CodeSignerNotTrusted
	CodeFailedLoadingSignature
	CodeFailedToValidateSignature
	CodeChecksumChanged
	CodeInvalidChecksum
	CodeSigningEntityForPackageChanged
	CodeSigningEntityForReleaseChanged
	CodeMissingConfiguration

	// Not-found errors
	CodePackageNotFound
	CodePackageVersionNotFound

	// Publish-specific
	CodeMissingPublishingLocation

	// Metadata enrichment errors
	CodeAPILimitsExceeded
	CodeInvalidAuthToken
	CodePermissionDenied
	CodeEnrichmentNotFound
)

var codeNames = map[Code]string{
	CodeInvalidPackageIdentity:            "InvalidPackageIdentity",
	CodeInvalidURL:                        "InvalidURL",
	CodeInvalidGitURL:                     "InvalidGitURL",
	CodeRegistryNotConfigured:             "RegistryNotConfigured",
	CodePathAlreadyExists:                 "PathAlreadyExists",
	CodeFailedRetrievingReleases:          "FailedRetrievingReleases",
	CodeFailedRetrievingReleaseInfo:       "FailedRetrievingReleaseInfo",
	CodeFailedDownloadingSourceArchive:    "FailedDownloadingSourceArchive",
	CodeFailedIdentityLookup:              "FailedIdentityLookup",
	CodeFailedPublishing:                  "FailedPublishing",
	CodeInvalidResponse:                  "InvalidResponse",
	CodeInvalidResponseStatus:            "InvalidResponseStatus",
	CodeInvalidContentVersion:            "InvalidContentVersion",
	CodeInvalidContentType:               "InvalidContentType",
	CodeRegistryNotAvailable:             "RegistryNotAvailable",
	CodeUnauthorized:                     "Unauthorized",
	CodeForbidden:                        "Forbidden",
	CodeAuthenticationMethodNotSupported: "AuthenticationMethodNotSupported",
	CodeServerError:                      "ServerError",
	CodeMissingSourceArchive:             "MissingSourceArchive",
	CodeSourceArchiveMissingChecksum:     "SourceArchiveMissingChecksum",
	CodeSourceArchiveNotSigned:           "SourceArchiveNotSigned",
	CodeMissingSignatureFormat:           "MissingSignatureFormat",
	CodeUnknownSignatureFormat:           "UnknownSignatureFormat",
	CodeInvalidSignature:                 "InvalidSignature",
	CodeInvalidSigningCertificate:        "InvalidSigningCertificate",
	CodeSignerNotTrusted:                 "SignerNotTrusted",
	CodeFailedLoadingSignature:           "FailedLoadingSignature",
	CodeFailedToValidateSignature:        "FailedToValidateSignature",
	CodeChecksumChanged:                  "ChecksumChanged",
	CodeInvalidChecksum:                  "InvalidChecksum",
	CodeSigningEntityForPackageChanged:   "SigningEntityForPackageChanged",
	CodeSigningEntityForReleaseChanged:   "SigningEntityForReleaseChanged",
	CodeMissingConfiguration:             "MissingConfiguration",
	CodePackageNotFound:                  "PackageNotFound",
	CodePackageVersionNotFound:           "PackageVersionNotFound",
	CodeMissingPublishingLocation:        "MissingPublishingLocation",
	CodeAPILimitsExceeded:                "APILimitsExceeded",
	CodeInvalidAuthToken:                 "InvalidAuthToken",
	CodePermissionDenied:                 "PermissionDenied",
	CodeEnrichmentNotFound:               "EnrichmentNotFound",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is the closed sum type for the client's error taxonomy. Detail
// carries a human-readable message; Cause, when non-nil, is the
// underlying error this one wraps.
type Error struct {
	Code    Code
	Detail  string
	Cause   error
}

func New(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

func Wrap(code Code, detail string, cause error) *Error {
	return &Error{Code: code, Detail: detail, Cause: cause}
}

func (e *Error) Error() string {
	if e.Detail == "" && e.Cause == nil {
		return e.Code.String()
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, core.New(code, "")) to match on Code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// DownloadError wraps any failure during the download pipeline with the
// (registry, package, version) it happened for.
type DownloadError struct {
	Registry Registry
	Package  PackageIdentity
	Version  string
	Cause    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading source archive for %s@%s from %s: %v", e.Package, e.Version, e.Registry.URL, e.Cause)
}

func (e *DownloadError) Unwrap() error { return e.Cause }

// ServerErrorDetail carries a server-reported status code plus an
// optional application/problem+json detail string.
type ServerErrorDetail struct {
	StatusCode int
	Detail     string
}

func (e *ServerErrorDetail) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Detail)
}

// ChecksumChangedError reports a checksum TOFU mismatch.
type ChecksumChangedError struct {
	Latest   string
	Previous string
}

func (e *ChecksumChangedError) Error() string {
	return fmt.Sprintf("checksum changed: expected %s, got %s", e.Previous, e.Latest)
}

// SigningEntityChangedError reports a signing-entity TOFU mismatch, at
// either package or per-release granularity.
type SigningEntityChangedError struct {
	PerRelease bool
	Latest     SigningEntity
	Previous   SigningEntity
}

func (e *SigningEntityChangedError) Error() string {
	scope := "package"
	if e.PerRelease {
		scope = "release"
	}
	return fmt.Sprintf("signing entity for %s changed from %q to %q", scope, e.Previous.Name, e.Latest.Name)
}

// InvalidResponseStatusError reports an HTTP status outside the set the
// caller's operation expected.
type InvalidResponseStatusError struct {
	Expected []int
	Actual   int
}

func (e *InvalidResponseStatusError) Error() string {
	return fmt.Sprintf("unexpected response status %d, expected one of %v", e.Actual, e.Expected)
}

// InvalidContentVersionError reports a Content-Version header mismatch.
type InvalidContentVersionError struct {
	Expected string
	Actual   string
}

func (e *InvalidContentVersionError) Error() string {
	return fmt.Sprintf("invalid content version: expected %q, got %q", e.Expected, e.Actual)
}

// InvalidContentTypeError reports a Content-Type header mismatch.
type InvalidContentTypeError struct {
	Expected string
	Actual   string
}

func (e *InvalidContentTypeError) Error() string {
	return fmt.Sprintf("invalid content type: expected %q, got %q", e.Expected, e.Actual)
}

// ErrPathAlreadyExists is a sentinel usable with errors.Is for the
// PathAlreadyExists input error.
var ErrPathAlreadyExists = New(CodePathAlreadyExists, "destination already exists")

// IsCode reports whether err (or anything it wraps) carries the given Code.
func IsCode(err error, code Code) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
