// Package enrichment implements the metadata enrichment provider: it
// derives a code-hosting service's REST API URL from a source-control URL,
// fans out to its releases/contributors/readme/license/languages endpoints,
// and caches the aggregate result on disk.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"golang.org/x/sync/errgroup"

	pclient "github.com/git-pkgs/pkgregistry/client"
	"github.com/git-pkgs/pkgregistry/fetch"
	"github.com/git-pkgs/pkgregistry/internal/core"
	"github.com/git-pkgs/pkgregistry/internal/enrichment/diskcache"
)

const (
	mediaPreview = "application/vnd.github.mercy-preview+json"
	mediaV3      = "application/vnd.github.v3+json"

	// DefaultRateLimitWarnThreshold is the remaining-request count below
	// which Get warns rather than failing outright.
	DefaultRateLimitWarnThreshold = 5
)

// gitURLPattern matches "host:owner/repo[.git]" or "host/owner/repo[.git]".
var gitURLPattern = regexp.MustCompile(`^([a-zA-Z0-9.-]+)[:/]([\w.-]+)/([\w.-]+?)(?:\.git)?$`)

// APIURL derives the code-hosting service's REST API URL for a
// source-control URL, e.g. "github.com:acme/widget" or
// "github.com/acme/widget.git" both become
// "https://api.github.com/repos/acme/widget".
func APIURL(scmURL string) (string, error) {
	m := gitURLPattern.FindStringSubmatch(scmURL)
	if m == nil {
		return "", core.New(core.CodeInvalidGitURL, scmURL)
	}
	host, owner, repo := m[1], m[2], m[3]
	return fmt.Sprintf("https://api.%s/repos/%s/%s", host, owner, repo), nil
}

// Release is a single parsed release whose tag parsed as semver.
type Release struct {
	TagName string
	Version core.Version
}

// Record is the aggregate enrichment result for one repository.
type Record struct {
	Releases     []Release
	Contributors []string
	ReadmeURL    string
	LicenseURL   string
	Languages    map[string]int
}

// Warner receives non-fatal warnings, such as a low API rate-limit budget.
type Warner interface {
	Warn(message string)
}

// Provider implements the metadata enrichment fetch-and-cache flow.
type Provider struct {
	HTTP                   *pclient.Client
	Fetcher                fetch.FetcherInterface
	Cache                  *diskcache.Cache[Record]
	AuthToken              string // empty means unauthenticated
	RateLimitWarnThreshold int    // <= 0 means DefaultRateLimitWarnThreshold
	Warner                 Warner
}

// Get returns the enrichment record for the repository identified by
// scmURL, using identity as the cache key. A cache hit within TTL skips
// the network entirely.
func (p *Provider) Get(ctx context.Context, identity, scmURL string) (Record, error) {
	if cached, ok, err := p.Cache.Get(ctx, identity); err == nil && ok {
		return cached, nil
	}

	apiURL, err := APIURL(scmURL)
	if err != nil {
		return Record{}, err
	}

	if err := p.checkPrimary(ctx, apiURL); err != nil {
		return Record{}, err
	}

	record := p.fanOut(ctx, apiURL)

	_ = p.Cache.Put(ctx, identity, record)
	return record, nil
}

// checkPrimary issues the primary GET, inspects rate-limit headers, and
// maps the response status into the enrichment error taxonomy.
func (p *Provider) checkPrimary(ctx context.Context, apiURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", mediaPreview)
	if p.AuthToken != "" {
		req.Header.Set("Authorization", "token "+p.AuthToken)
	}

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("checking repository availability: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := p.checkRateLimit(resp.Header); err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		if p.AuthToken != "" {
			return core.New(core.CodeInvalidAuthToken, "")
		}
		return core.New(core.CodePermissionDenied, "")
	case http.StatusForbidden:
		return core.New(core.CodePermissionDenied, "")
	case http.StatusNotFound:
		return core.New(core.CodeEnrichmentNotFound, apiURL)
	default:
		return core.New(core.CodeInvalidResponseStatus, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
}

// checkRateLimit inspects the rate-limit headers of a primary-GET
// response, failing outright when the budget is exhausted and warning
// when it is merely low.
func (p *Provider) checkRateLimit(header http.Header) error {
	remaining := header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}
	n, err := strconv.Atoi(remaining)
	if err != nil {
		return nil
	}
	if n == 0 {
		return core.New(core.CodeAPILimitsExceeded, "")
	}

	threshold := p.RateLimitWarnThreshold
	if threshold <= 0 {
		threshold = DefaultRateLimitWarnThreshold
	}
	if n < threshold && p.Warner != nil {
		p.Warner.Warn(fmt.Sprintf("GitHub API rate limit low: %s/%s remaining", remaining, header.Get("X-RateLimit-Limit")))
	}
	return nil
}

// fanOut issues the five secondary requests in parallel. Each absorbs its
// own failure as "no data" rather than propagating it.
func (p *Provider) fanOut(ctx context.Context, apiURL string) Record {
	var record Record

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		record.Releases = p.fetchReleases(gctx, apiURL+"/releases?per_page=20")
		return nil
	})
	g.Go(func() error {
		record.Contributors = p.fetchContributors(gctx, apiURL+"/contributors")
		return nil
	})
	g.Go(func() error {
		record.ReadmeURL = p.fetchDownloadURL(gctx, apiURL+"/readme")
		return nil
	})
	g.Go(func() error {
		record.LicenseURL = p.fetchDownloadURL(gctx, apiURL+"/license")
		return nil
	})
	g.Go(func() error {
		record.Languages = p.fetchLanguages(gctx, apiURL+"/languages")
		return nil
	})

	_ = g.Wait() // every goroutine above always returns nil; errors are absorbed internally

	return record
}

func (p *Provider) get(ctx context.Context, url string, out any) bool {
	artifact, err := p.Fetcher.FetchWithHeaders(ctx, url, map[string]string{"Accept": mediaV3})
	if err != nil {
		return false
	}
	defer func() { _ = artifact.Body.Close() }()

	if err := json.NewDecoder(artifact.Body).Decode(out); err != nil {
		return false
	}
	return true
}

func (p *Provider) fetchReleases(ctx context.Context, url string) []Release {
	var raw []struct {
		TagName string `json:"tag_name"`
	}
	if !p.get(ctx, url, &raw) {
		return nil
	}

	releases := make([]Release, 0, len(raw))
	for _, r := range raw {
		v, err := core.ParseVersion(r.TagName)
		if err != nil {
			continue
		}
		releases = append(releases, Release{TagName: r.TagName, Version: v})
	}
	return releases
}

func (p *Provider) fetchContributors(ctx context.Context, url string) []string {
	var raw []struct {
		Login string `json:"login"`
	}
	if !p.get(ctx, url, &raw) {
		return nil
	}

	logins := make([]string, 0, len(raw))
	for _, c := range raw {
		logins = append(logins, c.Login)
	}
	return logins
}

func (p *Provider) fetchDownloadURL(ctx context.Context, url string) string {
	var raw struct {
		DownloadURL string `json:"download_url"`
	}
	if !p.get(ctx, url, &raw) {
		return ""
	}
	return raw.DownloadURL
}

func (p *Provider) fetchLanguages(ctx context.Context, url string) map[string]int {
	var raw map[string]int
	if !p.get(ctx, url, &raw) {
		return nil
	}
	return raw
}
