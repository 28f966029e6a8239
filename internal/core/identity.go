// Package core holds the shared record types, identity rules, and
// collaborator interfaces used across the registry client: the registry
// identity grammar, package/version metadata shapes, availability and
// trust records, and the Filesystem/ArchiveExtractor/SignaturePrimitive/
// store interfaces the rest of the client is built against.
package core

import (
	"fmt"
	"regexp"
)

// componentPattern matches a single scope or name component: an
// alphanumeric, optionally hyphen/underscore-separated, 1-40 char slug.
var componentPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9_-]{0,38}[A-Za-z0-9])?$`)

// RegistryIdentity identifies a package by scope and name within a
// registry. Both components must match componentPattern.
type RegistryIdentity struct {
	Scope string
	Name  string
}

// String renders the identity as "scope.name", the conventional opaque
// form used in logs and cache keys.
func (id RegistryIdentity) String() string {
	return id.Scope + "." + id.Name
}

// ValidateComponent reports whether s is a legal scope or name component.
func ValidateComponent(s string) bool {
	return componentPattern.MatchString(s)
}

// NewRegistryIdentity validates scope and name and returns a RegistryIdentity.
func NewRegistryIdentity(scope, name string) (RegistryIdentity, error) {
	if !ValidateComponent(scope) {
		return RegistryIdentity{}, fmt.Errorf("invalid scope %q", scope)
	}
	if !ValidateComponent(name) {
		return RegistryIdentity{}, fmt.Errorf("invalid name %q", name)
	}
	return RegistryIdentity{Scope: scope, Name: name}, nil
}

// PackageIdentity is the opaque free-form identity shape; only
// RegistryIdentity can be used with this client, but callers may carry an
// opaque identity (e.g. from a manifest) and resolve it separately.
type PackageIdentity string
