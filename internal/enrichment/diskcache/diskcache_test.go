package diskcache

import (
	"context"
	"testing"
	"time"

	"github.com/facebookgo/clock"

	"github.com/git-pkgs/pkgregistry/defaults"
)

type record struct {
	Stars int
	Name  string
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	cache := New[record](defaults.NewFilesystem(), dir, mock, time.Hour)

	if _, ok, err := cache.Get(context.Background(), "acme/widget"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := cache.Put(context.Background(), "acme/widget", record{Stars: 42, Name: "widget"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := cache.Get(context.Background(), "acme/widget")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Stars != 42 || got.Name != "widget" {
		t.Errorf("unexpected value: %+v", got)
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	cache := New[record](defaults.NewFilesystem(), dir, mock, time.Hour)

	if err := cache.Put(context.Background(), "acme/widget", record{Stars: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.Add(2 * time.Hour)

	if _, ok, err := cache.Get(context.Background(), "acme/widget"); err != nil || ok {
		t.Fatalf("expected expired entry to miss, got ok=%v err=%v", ok, err)
	}
}
