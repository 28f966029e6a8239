package tofu

import (
	"context"

	"github.com/git-pkgs/pkgregistry/internal/core"
)

// SigningEntityValidator enforces first-use recording and subsequent
// equality of a package's (and, separately, a release's) signing entity.
// A nil observation is treated as absence and never overwrites a prior
// recorded value.
type SigningEntityValidator struct {
	Store core.SigningEntityStore
}

// ValidatePackage checks observed against the first signing entity ever
// seen for pkg (across all releases). observed == nil means no signature
// was available for this observation and is not an error.
func (v *SigningEntityValidator) ValidatePackage(ctx context.Context, pkg core.PackageIdentity, observed *core.SigningEntity) error {
	if observed == nil {
		return nil
	}

	prev, ok, err := v.Store.GetForPackage(ctx, pkg)
	if err != nil {
		return err
	}
	if !ok {
		return v.Store.PutForPackage(ctx, pkg, *observed)
	}
	if prev.Equal(*observed) {
		return nil
	}
	return core.Wrap(core.CodeSigningEntityForPackageChanged, "",
		&core.SigningEntityChangedError{PerRelease: false, Latest: *observed, Previous: prev})
}

// ValidateRelease is the per-version flavour of the same check.
func (v *SigningEntityValidator) ValidateRelease(ctx context.Context, pkg core.PackageIdentity, version string, observed *core.SigningEntity) error {
	if observed == nil {
		return nil
	}

	prev, ok, err := v.Store.GetForRelease(ctx, pkg, version)
	if err != nil {
		return err
	}
	if !ok {
		return v.Store.PutForRelease(ctx, pkg, version, *observed)
	}
	if prev.Equal(*observed) {
		return nil
	}
	return core.Wrap(core.CodeSigningEntityForReleaseChanged, "",
		&core.SigningEntityChangedError{PerRelease: true, Latest: *observed, Previous: prev})
}
