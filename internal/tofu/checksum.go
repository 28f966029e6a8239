// Package tofu implements the trust-on-first-use validators: checksum
// consistency for downloaded archives and signing-entity consistency
// across releases of the same package.
package tofu

import (
	"context"

	"github.com/git-pkgs/pkgregistry/internal/core"
)

// ChecksumMode controls how a mismatch is handled.
type ChecksumMode int

const (
	ChecksumStrict ChecksumMode = iota
	ChecksumWarn
)

// ChecksumEnablement allows disabling checksum TOFU entirely.
type ChecksumEnablement int

const (
	ChecksumEnabled ChecksumEnablement = iota
	ChecksumDisabled
)

// Warner receives non-fatal warnings raised while applying a Warn policy.
type Warner interface {
	Warn(message string)
}

// ChecksumValidator enforces first-use recording and subsequent equality
// of a package version's source-archive checksum.
type ChecksumValidator struct {
	Store       core.FingerprintStore
	Mode        ChecksumMode
	Enablement  ChecksumEnablement
	Warner      Warner
}

// Validate records checksum on first observation of (pkg, version); on
// subsequent observations it compares against the stored value. A
// mismatch under ChecksumStrict returns *core.ChecksumChangedError
// wrapped with CodeChecksumChanged; under ChecksumWarn it warns and
// returns nil. ChecksumDisabled skips validation entirely.
func (v *ChecksumValidator) Validate(ctx context.Context, pkg core.PackageIdentity, version, checksum string) error {
	if v.Enablement == ChecksumDisabled {
		return nil
	}

	prev, ok, err := v.Store.Get(ctx, pkg, version, core.FingerprintSourceArchive)
	if err != nil {
		return err
	}

	if !ok {
		return v.Store.Put(ctx, core.Fingerprint{
			Package: pkg,
			Version: version,
			Kind:    core.FingerprintSourceArchive,
			Value:   checksum,
		})
	}

	if prev.Value == checksum {
		return nil
	}

	mismatch := &core.ChecksumChangedError{Latest: checksum, Previous: prev.Value}
	if v.Mode == ChecksumWarn {
		if v.Warner != nil {
			v.Warner.Warn(mismatch.Error())
		}
		return nil
	}
	return core.Wrap(core.CodeChecksumChanged, "", mismatch)
}
