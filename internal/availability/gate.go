// Package availability implements the per-registry health probe: a
// cached GET to /availability whose result short-circuits every
// downstream registry operation.
package availability

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/git-pkgs/pkgregistry/client"
	"github.com/git-pkgs/pkgregistry/internal/core"
)

// DefaultTTL is the default cache lifetime for an availability result.
const DefaultTTL = 5 * time.Minute

type entry struct {
	status core.AvailabilityStatus
	expiry time.Time
}

// Gate caches availability probes per registry URL and exposes Check,
// which every registry operation consults before issuing a request.
type Gate struct {
	http  *client.Client
	clock core.Clock
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]entry
}

// New returns a Gate backed by httpClient, using clk for TTL comparisons
// (core.RealClock() in production) and ttl as the cache lifetime.
func New(httpClient *client.Client, clk core.Clock, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{
		http:  httpClient,
		clock: clk,
		ttl:   ttl,
		cache: make(map[string]entry),
	}
}

// Check returns the registry's availability status, consulting the cache
// first. For registries that don't support the availability endpoint,
// Check is a no-op pass-through returning Available.
func (g *Gate) Check(ctx context.Context, reg core.Registry) (core.AvailabilityStatus, error) {
	if !reg.SupportsAvailability {
		return core.AvailabilityStatus{Kind: core.AvailabilityAvailable}, nil
	}

	now := g.clock.Now()

	g.mu.Lock()
	if e, ok := g.cache[reg.URL]; ok && now.Before(e.expiry) {
		status := e.status
		g.mu.Unlock()
		return status, nil
	}
	g.mu.Unlock()

	status, err := g.probe(ctx, reg)
	if err != nil {
		return core.AvailabilityStatus{}, err
	}

	g.mu.Lock()
	g.cache[reg.URL] = entry{status: status, expiry: g.clock.Now().Add(g.ttl)}
	g.mu.Unlock()

	return status, nil
}

func (g *Gate) probe(ctx context.Context, reg core.Registry) (core.AvailabilityStatus, error) {
	path := client.NewPathBuilder(reg.URL).Availability()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return core.AvailabilityStatus{}, err
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return core.AvailabilityStatus{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return core.AvailabilityStatus{Kind: core.AvailabilityAvailable}, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNotImplemented:
		return core.AvailabilityStatus{Kind: core.AvailabilityUnavailable}, nil
	default:
		if problem, ok := client.DecodeProblem(resp); ok && problem.Detail != "" {
			return core.AvailabilityStatus{Kind: core.AvailabilityError, Message: problem.Detail}, nil
		}
		return core.AvailabilityStatus{
			Kind:    core.AvailabilityError,
			Message: fmt.Sprintf("unknown server error (%d)", resp.StatusCode),
		}, nil
	}
}

// Apply composes a Check result with a registry operation: Available
// proceeds (returns nil), Unavailable fails RegistryNotAvailable,
// Error(msg) fails with the wrapped message.
func Apply(status core.AvailabilityStatus) error {
	switch status.Kind {
	case core.AvailabilityAvailable:
		return nil
	case core.AvailabilityUnavailable:
		return core.New(core.CodeRegistryNotAvailable, "registry reported unavailable")
	default:
		return core.New(core.CodeRegistryNotAvailable, status.Message)
	}
}
