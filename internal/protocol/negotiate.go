// Package protocol builds and validates the versioned vendor media type
// the registry protocol negotiates over: Accept request headers and
// Content-Version/Content-Type response validation.
package protocol

import (
	"fmt"
	"strings"

	"github.com/git-pkgs/pkgregistry/internal/core"
)

// MediaType enumerates the wire representations the registry speaks.
type MediaType string

const (
	MediaJSON MediaType = "json"
	MediaSwift MediaType = "swift"
	MediaZip  MediaType = "zip"
)

// expectedContentType maps a MediaType to the base Content-Type the
// response must carry.
var expectedContentType = map[MediaType]string{
	MediaJSON: "application/json",
	MediaSwift: "text/x-swift",
	MediaZip:  "application/zip",
}

// ProblemContentType is the Content-Type used for application/problem+json
// error bodies; it is also an acceptable response type everywhere.
const ProblemContentType = "application/problem+json"

// Negotiator builds Accept headers and validates response headers
// against a configured vendor token and API version.
type Negotiator struct {
	Vendor     string // e.g. "swift"
	APIVersion string // e.g. "1"
}

// NewNegotiator returns a Negotiator with the given vendor token and
// API version; both are configuration, not compiled-in constants.
func NewNegotiator(vendor, apiVersion string) *Negotiator {
	return &Negotiator{Vendor: vendor, APIVersion: apiVersion}
}

// Accept builds "application/vnd.<vendor>.registry.v<version>+<mediaType>".
func (n *Negotiator) Accept(media MediaType) string {
	return fmt.Sprintf("application/vnd.%s.registry.v%s+%s", n.Vendor, n.APIVersion, media)
}

// ValidateContentVersion checks the Content-Version response header. When
// isOptional is true, a missing header is not an error.
func (n *Negotiator) ValidateContentVersion(header string, isOptional bool) error {
	if header == "" {
		if isOptional {
			return nil
		}
		return core.Wrap(core.CodeInvalidContentVersion, "missing Content-Version header",
			&core.InvalidContentVersionError{Expected: n.APIVersion, Actual: ""})
	}
	if header != n.APIVersion {
		return core.Wrap(core.CodeInvalidContentVersion, "",
			&core.InvalidContentVersionError{Expected: n.APIVersion, Actual: header})
	}
	return nil
}

// ValidateContentType checks the Content-Type response header against the
// expected media type: it must equal expectedType or begin with
// "expectedType;". application/problem+json is always accepted, since
// error bodies are negotiated independently.
func ValidateContentType(header string, media MediaType) error {
	expected, ok := expectedContentType[media]
	if !ok {
		return fmt.Errorf("unknown media type %q", media)
	}

	if header == expected || strings.HasPrefix(header, expected+";") {
		return nil
	}
	if header == ProblemContentType || strings.HasPrefix(header, ProblemContentType+";") {
		return nil
	}

	return core.Wrap(core.CodeInvalidContentType, "",
		&core.InvalidContentTypeError{Expected: expected, Actual: header})
}
