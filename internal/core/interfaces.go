package core

import (
	"context"

	"github.com/facebookgo/clock"
)

// Filesystem is the collaborator interface the download orchestrator uses
// for every filesystem operation. Implementations are expected outside
// the core; defaults.Filesystem provides an os-backed one.
type Filesystem interface {
	Exists(path string) bool
	CreateDirectory(ctx context.Context, path string, recursive bool) error
	RemoveFileTree(ctx context.Context, path string) error
	ReadFileContents(ctx context.Context, path string) ([]byte, error)
	WriteFileContents(ctx context.Context, path string, data []byte) error
	StripFirstLevel(ctx context.Context, dir string) error
}

// ArchiveExtractor extracts a zip archive at `from` into directory `to`.
type ArchiveExtractor interface {
	Extract(ctx context.Context, from, to string) error
}

// SignatureStatusKind enumerates the outcomes of SignaturePrimitive.Status.
type SignatureStatusKind int

const (
	SignatureValid SignatureStatusKind = iota
	SignatureInvalid
	SignatureCertificateInvalid
	SignatureCertificateNotTrusted
)

// SignatureStatus is the result of verifying a detached signature.
type SignatureStatus struct {
	Kind   SignatureStatusKind
	Entity SigningEntity // valid only when Kind == SignatureValid
	Reason string        // set for Invalid / CertificateInvalid
}

// VerifierConfig carries whatever trust-store configuration the external
// signature primitive needs (trusted roots, revocation policy, etc). The
// core treats it opaquely.
type VerifierConfig any

// SignaturePrimitive verifies a detached signature over content.
type SignaturePrimitive interface {
	Status(ctx context.Context, signature, content []byte, format string, cfg VerifierConfig) (SignatureStatus, error)
}

// FingerprintStore is the persistent CRUD interface over Fingerprint
// records, keyed by (package, version, kind).
type FingerprintStore interface {
	Get(ctx context.Context, pkg PackageIdentity, version string, kind FingerprintKind) (Fingerprint, bool, error)
	Put(ctx context.Context, fp Fingerprint) error
}

// SigningEntityStore is the persistent CRUD interface over first-observed
// signing entities, at both package and per-release granularity.
type SigningEntityStore interface {
	GetForPackage(ctx context.Context, pkg PackageIdentity) (SigningEntity, bool, error)
	PutForPackage(ctx context.Context, pkg PackageIdentity, entity SigningEntity) error
	GetForRelease(ctx context.Context, pkg PackageIdentity, version string) (SigningEntity, bool, error)
	PutForRelease(ctx context.Context, pkg PackageIdentity, version string, entity SigningEntity) error
}

// Delegate is consulted when a trust policy is Prompt. Implementations
// should surface the question to a human and return their answer.
type Delegate interface {
	OnUnsigned(ctx context.Context, pkg PackageIdentity, version string) (bool, error)
	OnUntrusted(ctx context.Context, pkg PackageIdentity, version string, reason string) (bool, error)
}

// Clock abstracts wall-clock time so the availability and metadata TTL
// caches can be tested deterministically. It is an alias of
// facebookgo/clock.Clock (already pulled in transitively by
// rubyist/circuitbreaker), so tests drive the caches with clock.NewMock().
// The circuit breaker in package fetch does not take a Clock.
type Clock = clock.Clock

// RealClock is the production clock backed by time.Now.
func RealClock() Clock {
	return clock.New()
}
