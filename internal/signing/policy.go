// Package signing implements the signature validator: retrieving the
// signing block from version metadata, invoking the external
// signature-verification primitive, and applying the unsigned/untrusted
// policies.
package signing

import (
	"context"
	"encoding/base64"

	"github.com/git-pkgs/pkgregistry/internal/core"
)

// Policy controls how a trust decision that can be overridden is handled.
type Policy int

const (
	PolicyPrompt Policy = iota
	PolicyError
	PolicyWarn
	PolicySilentAllow
)

// Config bundles the two independently configurable policies.
type Config struct {
	OnUnsigned             Policy
	OnUntrustedCertificate Policy
}

// Warner receives non-fatal warnings raised while applying a Warn policy.
type Warner interface {
	Warn(message string)
}

// Validator verifies a version's source-archive signature against its
// content and applies the configured policy for unsigned/untrusted cases.
type Validator struct {
	Primitive      core.SignaturePrimitive
	Config         Config
	Delegate       core.Delegate // may be nil; absence means "don't continue"
	Warner         Warner
	VerifierConfig core.VerifierConfig
}

// Validate runs the signature verification flow against content and the
// resources list from a version's metadata. It returns the verified
// signing entity, or nil if the archive was legitimately allowed through
// without one.
func (v *Validator) Validate(ctx context.Context, pkg core.PackageIdentity, version string, content []byte, resources []core.Resource) (*core.SigningEntity, error) {
	resource := findSourceArchive(resources)
	if resource == nil {
		return nil, core.New(core.CodeMissingSourceArchive, "")
	}

	if resource.Signing == nil {
		return v.applyPolicy(ctx, pkg, version, v.Config.OnUnsigned,
			core.New(core.CodeSourceArchiveNotSigned, ""))
	}

	signing := resource.Signing
	if signing.SignatureBase64 == "" {
		return nil, core.New(core.CodeMissingSignatureFormat, "")
	}

	sigBytes, err := base64.StdEncoding.DecodeString(signing.SignatureBase64)
	if err != nil {
		return nil, core.Wrap(core.CodeFailedLoadingSignature, "", err)
	}

	if signing.SignatureFormat == "" {
		return nil, core.New(core.CodeUnknownSignatureFormat, "")
	}

	status, err := v.Primitive.Status(ctx, sigBytes, content, signing.SignatureFormat, v.VerifierConfig)
	if err != nil {
		return nil, core.Wrap(core.CodeFailedToValidateSignature, "", err)
	}

	switch status.Kind {
	case core.SignatureValid:
		entity := status.Entity
		return &entity, nil
	case core.SignatureInvalid:
		return nil, core.New(core.CodeInvalidSignature, status.Reason)
	case core.SignatureCertificateInvalid:
		return nil, core.New(core.CodeInvalidSigningCertificate, status.Reason)
	case core.SignatureCertificateNotTrusted:
		return v.applyPolicy(ctx, pkg, version, v.Config.OnUntrustedCertificate,
			core.New(core.CodeSignerNotTrusted, status.Reason))
	default:
		return nil, core.New(core.CodeFailedToValidateSignature, "unknown signature status")
	}
}

func findSourceArchive(resources []core.Resource) *core.Resource {
	for i := range resources {
		if resources[i].Name == core.SourceArchiveResourceName {
			return &resources[i]
		}
	}
	return nil
}

// applyPolicy implements the shared policy table for SourceArchiveNotSigned
// and CertificateNotTrusted: Prompt consults the delegate, Error returns
// failure, Warn emits a warning and allows, SilentAllow allows silently.
func (v *Validator) applyPolicy(ctx context.Context, pkg core.PackageIdentity, version string, policy Policy, failure error) (*core.SigningEntity, error) {
	switch policy {
	case PolicyError:
		return nil, failure
	case PolicyWarn:
		if v.Warner != nil {
			v.Warner.Warn(failure.Error())
		}
		return nil, nil
	case PolicySilentAllow:
		return nil, nil
	case PolicyPrompt:
		if v.Delegate == nil {
			return nil, failure
		}
		var (
			allowed bool
			err     error
		)
		if core.IsCode(failure, core.CodeSourceArchiveNotSigned) {
			allowed, err = v.Delegate.OnUnsigned(ctx, pkg, version)
		} else {
			allowed, err = v.Delegate.OnUntrusted(ctx, pkg, version, failure.Error())
		}
		if err != nil {
			return nil, err
		}
		if allowed {
			return nil, nil
		}
		return nil, failure
	default:
		return nil, core.New(core.CodeMissingConfiguration, "unknown policy")
	}
}
