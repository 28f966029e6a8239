// Package pkgregistry is the public facade over the registry protocol
// engine: content negotiation, availability gating, the nine registry
// operations, the download pipeline, trust validation, and metadata
// enrichment.
//
// Basic usage:
//
//	cl := pkgregistry.NewClient(
//		pkgregistry.WithRegistry("acme", core.Registry{URL: "https://registry.acme.example"}),
//		pkgregistry.WithFilesystem(defaults.NewFilesystem()),
//		pkgregistry.WithArchiveExtractor(defaults.NewZipExtractor()),
//	)
//	metadata, err := cl.GetPackageMetadata(ctx, "acme", "widget")
package pkgregistry

import (
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/git-pkgs/pkgregistry/client"
	"github.com/git-pkgs/pkgregistry/fetch"
	"github.com/git-pkgs/pkgregistry/internal/availability"
	"github.com/git-pkgs/pkgregistry/internal/core"
	"github.com/git-pkgs/pkgregistry/internal/download"
	"github.com/git-pkgs/pkgregistry/internal/enrichment"
	"github.com/git-pkgs/pkgregistry/internal/enrichment/diskcache"
	"github.com/git-pkgs/pkgregistry/internal/metadatacache"
	"github.com/git-pkgs/pkgregistry/internal/protocol"
	"github.com/git-pkgs/pkgregistry/internal/registryops"
	"github.com/git-pkgs/pkgregistry/internal/signing"
	"github.com/git-pkgs/pkgregistry/internal/taskpool"
	"github.com/git-pkgs/pkgregistry/internal/tofu"
)

// Re-exported types, so callers only need to import the root package for
// the shapes they pass and receive.
type (
	Registry         = core.Registry
	PackageMetadata  = core.PackageMetadata
	VersionMetadata  = core.VersionMetadata
	SigningEntity    = core.SigningEntity
	Fingerprint      = core.Fingerprint
	FingerprintStore = core.FingerprintStore
	SigningEntityStore = core.SigningEntityStore
	SignaturePrimitive = core.SignaturePrimitive
	Filesystem       = core.Filesystem
	ArchiveExtractor = core.ArchiveExtractor
	Delegate         = core.Delegate
	Clock            = core.Clock

	Manifest       = registryops.Manifest
	PublishRequest = registryops.PublishRequest
	PublishOutcome = registryops.PublishOutcome

	DownloadRequest = download.Request
	DownloadOutcome = download.Outcome

	EnrichmentRecord = enrichment.Record
)

// warnerAdapter satisfies signing.Warner, tofu.Warner, and
// enrichment.Warner with a single charmbracelet/log sink.
type warnerAdapter struct{ logger *log.Logger }

func (w warnerAdapter) Warn(message string) { w.logger.Warn(message) }

// Configuration aggregates every tunable knob of the client: TTLs, trust
// policy, and the enrichment provider's limits. Zero-value fields fall
// back to the package defaults noted alongside each.
type Configuration struct {
	// Vendor and APIVersion feed the Accept-header content negotiator.
	// Default "swift" / "1".
	Vendor     string
	APIVersion string

	AvailabilityTTL time.Duration // default availability.DefaultTTL
	MetadataTTL     time.Duration // default metadatacache.DefaultTTL

	SigningConfig  signing.Config
	VerifierConfig core.VerifierConfig

	ChecksumMode       tofu.ChecksumMode
	ChecksumEnablement tofu.ChecksumEnablement

	EnrichmentRateLimitWarnThreshold int           // default enrichment.DefaultRateLimitWarnThreshold
	EnrichmentCacheTTL               time.Duration // default diskcache.DefaultTTL
	EnrichmentCacheDir               string        // required to use EnrichMetadata
	EnrichmentAuthToken              string

	Clock core.Clock // default core.RealClock()

	AsyncWorkers       int // default 4
	AsyncQueueCapacity int // default 64
}

// Client is the public entry point: a configured, ready-to-use registry
// client wrapping the nine operations, the download pipeline, and
// metadata enrichment.
type Client struct {
	ops         *registryops.Ops
	download    *download.Orchestrator
	enrichment  *enrichment.Provider
	pool        *taskpool.Pool
	logger      *log.Logger
}

// Option configures a Client at construction time.
type Option func(*clientBuild)

type clientBuild struct {
	cfg        Configuration
	registries map[string]core.Registry
	fs         core.Filesystem
	extractor  core.ArchiveExtractor
	primitive  core.SignaturePrimitive
	fingerprints core.FingerprintStore
	signingEntities core.SigningEntityStore
	delegate   core.Delegate
	httpClient *client.Client
	logger     *log.Logger
}

// WithConfiguration overrides the default Configuration wholesale.
func WithConfiguration(cfg Configuration) Option {
	return func(b *clientBuild) { b.cfg = cfg }
}

// WithRegistry registers a scope's backing registry.
func WithRegistry(scope string, reg core.Registry) Option {
	return func(b *clientBuild) { b.registries[scope] = reg }
}

// WithFilesystem sets the filesystem collaborator used by the download
// pipeline. Required to use DownloadSourceArchive.
func WithFilesystem(fs core.Filesystem) Option {
	return func(b *clientBuild) { b.fs = fs }
}

// WithArchiveExtractor sets the archive-extractor collaborator used by
// the download pipeline. Required to use DownloadSourceArchive.
func WithArchiveExtractor(ex core.ArchiveExtractor) Option {
	return func(b *clientBuild) { b.extractor = ex }
}

// WithSignaturePrimitive sets the external signature-verification
// primitive. Required to use DownloadSourceArchive.
func WithSignaturePrimitive(p core.SignaturePrimitive) Option {
	return func(b *clientBuild) { b.primitive = p }
}

// WithFingerprintStore sets the checksum TOFU persistence collaborator.
func WithFingerprintStore(s core.FingerprintStore) Option {
	return func(b *clientBuild) { b.fingerprints = s }
}

// WithSigningEntityStore sets the signing-entity TOFU persistence
// collaborator.
func WithSigningEntityStore(s core.SigningEntityStore) Option {
	return func(b *clientBuild) { b.signingEntities = s }
}

// WithDelegate sets the prompt delegate consulted by Policy.Prompt.
func WithDelegate(d core.Delegate) Option {
	return func(b *clientBuild) { b.delegate = d }
}

// WithHTTPClient overrides the underlying transport client.
func WithHTTPClient(c *client.Client) Option {
	return func(b *clientBuild) { b.httpClient = c }
}

// WithLogger overrides the default charmbracelet/log sink used to warn
// on Warn-policy and low-rate-limit conditions.
func WithLogger(l *log.Logger) Option {
	return func(b *clientBuild) { b.logger = l }
}

// NewClient builds a Client from the given options, applying the
// documented defaults for any Configuration field left at its zero
// value.
func NewClient(opts ...Option) *Client {
	b := &clientBuild{registries: make(map[string]core.Registry)}
	for _, opt := range opts {
		opt(b)
	}

	cfg := b.cfg
	if cfg.Vendor == "" {
		cfg.Vendor = "swift"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "1"
	}
	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = availability.DefaultTTL
	}
	if cfg.MetadataTTL <= 0 {
		cfg.MetadataTTL = metadatacache.DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = core.RealClock()
	}
	if cfg.AsyncWorkers <= 0 {
		cfg.AsyncWorkers = 4
	}
	if cfg.AsyncQueueCapacity <= 0 {
		cfg.AsyncQueueCapacity = 64
	}

	logger := b.logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "pkgregistry"})
	}
	warner := warnerAdapter{logger: logger}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = client.NewClient()
	}

	ops := &registryops.Ops{
		HTTP:       httpClient,
		Gate:       availability.New(httpClient, cfg.Clock, cfg.AvailabilityTTL),
		Cache:      metadatacache.New(cfg.Clock, cfg.MetadataTTL),
		Negotiator: protocol.NewNegotiator(cfg.Vendor, cfg.APIVersion),
		Registries: registryMap(b.registries),
	}

	orch := &download.Orchestrator{
		Ops:        ops,
		Filesystem: b.fs,
		Extractor:  b.extractor,
		Fetcher:    fetch.NewCircuitBreakerFetcher(fetch.NewFetcher()),
		SignatureValidator: &signing.Validator{
			Primitive:      b.primitive,
			Config:         cfg.SigningConfig,
			Delegate:       b.delegate,
			Warner:         warner,
			VerifierConfig: cfg.VerifierConfig,
		},
		ChecksumValidator: &tofu.ChecksumValidator{
			Store:      b.fingerprints,
			Mode:       cfg.ChecksumMode,
			Enablement: cfg.ChecksumEnablement,
			Warner:     warner,
		},
		SigningEntityValidator: &tofu.SigningEntityValidator{Store: b.signingEntities},
	}

	var provider *enrichment.Provider
	if cfg.EnrichmentCacheDir != "" && b.fs != nil {
		breakerFetcher := fetch.NewCircuitBreakerFetcher(
			fetch.NewFetcher(fetch.WithMaxRetries(3), fetch.WithBaseDelay(50*time.Millisecond)),
			fetch.WithTripThreshold(50),
			fetch.WithBreakerBackoff(30*time.Second, 30*time.Second),
		)
		provider = &enrichment.Provider{
			HTTP:                   client.NewClient(client.WithTimeout(time.Second)),
			Fetcher:                breakerFetcher,
			Cache:                  diskcache.New[enrichment.Record](b.fs, cfg.EnrichmentCacheDir, cfg.Clock, cfg.EnrichmentCacheTTL),
			AuthToken:              cfg.EnrichmentAuthToken,
			RateLimitWarnThreshold: cfg.EnrichmentRateLimitWarnThreshold,
			Warner:                 warner,
		}
	}

	return &Client{
		ops:        ops,
		download:   orch,
		enrichment: provider,
		pool:       taskpool.New(cfg.AsyncWorkers, cfg.AsyncQueueCapacity),
		logger:     logger,
	}
}

// Close stops the client's internal task pool, waiting for any in-flight
// Async call to finish. It does not close collaborators supplied via
// Option — those remain owned by the caller.
func (c *Client) Close() {
	c.pool.Close()
}

// registryMap adapts a plain map to registryops.Registries.
type registryMap map[string]core.Registry

func (m registryMap) Resolve(scope string) (core.Registry, bool) {
	reg, ok := m[scope]
	return reg, ok
}
