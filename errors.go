package pkgregistry

import "github.com/git-pkgs/pkgregistry/internal/core"

// Re-exported error taxonomy, so callers can inspect failures without
// importing the internal core package directly.
type (
	Code               = core.Code
	Error              = core.Error
	DownloadError      = core.DownloadError
	ServerErrorDetail  = core.ServerErrorDetail
	ChecksumChangedError     = core.ChecksumChangedError
	SigningEntityChangedError = core.SigningEntityChangedError
)

// IsCode reports whether err is (or wraps) a *Error with the given Code.
func IsCode(err error, code Code) bool {
	return core.IsCode(err, code)
}

const (
	CodeInvalidPackageIdentity = core.CodeInvalidPackageIdentity
	CodeRegistryNotConfigured  = core.CodeRegistryNotConfigured
	CodePathAlreadyExists      = core.CodePathAlreadyExists
	CodePackageNotFound        = core.CodePackageNotFound
	CodePackageVersionNotFound = core.CodePackageVersionNotFound
)
