package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/git-pkgs/pkgregistry/internal/core"
)

// LocationResolver retries a source-archive download against the
// alternate locations advertised in a package's Link header when the
// primary URL fails, rather than resolving per-ecosystem download URL
// conventions.
type LocationResolver struct {
	fetcher FetcherInterface
}

// NewLocationResolver returns a LocationResolver driving fetcher for both
// the primary and alternate download attempts.
func NewLocationResolver(fetcher FetcherInterface) *LocationResolver {
	return &LocationResolver{fetcher: fetcher}
}

// Fetch tries primaryURL first, with headers attached. If that fails for
// any reason other than context cancellation, it tries each alternate
// location in turn (skipping canonical entries, which just restate the
// primary), returning the first successful artifact. If every attempt
// fails, it returns the primary attempt's error, annotated with how many
// alternates were also tried.
func (r *LocationResolver) Fetch(ctx context.Context, primaryURL string, headers map[string]string, alternates []core.AlternateLocation) (*Artifact, error) {
	artifact, primaryErr := r.fetcher.FetchWithHeaders(ctx, primaryURL, headers)
	if primaryErr == nil {
		return artifact, nil
	}
	if errors.Is(primaryErr, context.Canceled) || errors.Is(primaryErr, context.DeadlineExceeded) {
		return nil, primaryErr
	}

	tried := 0
	for _, alt := range alternates {
		if alt.Kind != core.LocationAlternate {
			continue
		}
		tried++
		artifact, err := r.fetcher.FetchWithHeaders(ctx, alt.URL, headers)
		if err == nil {
			return artifact, nil
		}
	}

	if tried == 0 {
		return nil, primaryErr
	}
	return nil, fmt.Errorf("fetching %s (and %d alternate location(s) also failed): %w", primaryURL, tried, primaryErr)
}
