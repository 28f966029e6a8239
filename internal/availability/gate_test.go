package availability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/git-pkgs/pkgregistry/client"
	"github.com/git-pkgs/pkgregistry/internal/core"
)

func TestCheckCachesResult(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mock := clock.NewMock()
	gate := New(client.DefaultClient(), mock, 5*time.Minute)
	reg := core.Registry{URL: server.URL, SupportsAvailability: true}

	for i := 0; i < 3; i++ {
		status, err := gate.Check(context.Background(), reg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.Kind != core.AvailabilityAvailable {
			t.Fatalf("unexpected status kind: %v", status.Kind)
		}
	}

	if hits != 1 {
		t.Errorf("expected exactly 1 HTTP request within TTL, got %d", hits)
	}
}

func TestCheckRefetchesAfterExpiry(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mock := clock.NewMock()
	gate := New(client.DefaultClient(), mock, 5*time.Minute)
	reg := core.Registry{URL: server.URL, SupportsAvailability: true}

	if _, err := gate.Check(context.Background(), reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mock.Add(6 * time.Minute)
	if _, err := gate.Check(context.Background(), reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if hits != 2 {
		t.Errorf("expected 2 requests after expiry, got %d", hits)
	}
}

func TestCheckMapsStatusCodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	gate := New(client.DefaultClient(), clock.NewMock(), time.Minute)
	reg := core.Registry{URL: server.URL, SupportsAvailability: true}

	status, err := gate.Check(context.Background(), reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Kind != core.AvailabilityUnavailable {
		t.Errorf("expected Unavailable for 404, got %v", status.Kind)
	}
}

func TestCheckNoOpWhenUnsupported(t *testing.T) {
	gate := New(client.DefaultClient(), clock.NewMock(), time.Minute)
	reg := core.Registry{URL: "https://example.invalid", SupportsAvailability: false}

	status, err := gate.Check(context.Background(), reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Kind != core.AvailabilityAvailable {
		t.Errorf("expected pass-through Available, got %v", status.Kind)
	}
}

func TestApply(t *testing.T) {
	if err := Apply(core.AvailabilityStatus{Kind: core.AvailabilityAvailable}); err != nil {
		t.Errorf("unexpected error for Available: %v", err)
	}
	if err := Apply(core.AvailabilityStatus{Kind: core.AvailabilityUnavailable}); err == nil {
		t.Error("expected error for Unavailable")
	} else if !core.IsCode(err, core.CodeRegistryNotAvailable) {
		t.Errorf("expected RegistryNotAvailable, got %v", err)
	}
}
