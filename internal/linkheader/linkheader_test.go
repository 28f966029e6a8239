package linkheader

import (
	"testing"

	"github.com/git-pkgs/pkgregistry/internal/core"
)

func TestParseAlternativeLocations(t *testing.T) {
	raw := `<https://a>; rel="canonical", <ssh://b>; rel="alternate"`
	got := ParseAlternativeLocations(raw)

	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].URL != "https://a" || got[0].Kind != core.LocationCanonical {
		t.Errorf("unexpected first entry: %+v", got[0])
	}
	if got[1].URL != "ssh://b" || got[1].Kind != core.LocationAlternate {
		t.Errorf("unexpected second entry: %+v", got[1])
	}
}

func TestParseAlternativeLocationsSkipsUnknownRel(t *testing.T) {
	raw := `<https://a>; rel="canonical", <https://b>; rel="mirror", malformed-entry`
	got := ParseAlternativeLocations(raw)
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d: %+v", len(got), got)
	}
}

func TestParseAlternateManifests(t *testing.T) {
	raw := `<https://example.com/Package@swift-5.7.swift>; rel="alternate"; filename="Package@swift-5.7.swift"; swift-tools-version="5.7"`
	got, err := ParseAlternateManifests(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].Filename != "Package@swift-5.7.swift" || got[0].ToolsVersion != "5.7" {
		t.Errorf("unexpected entry: %+v", got[0])
	}
}

func TestParseAlternateManifestsDropsNonAlternateRel(t *testing.T) {
	raw := `<https://x>; rel="canonical"; filename="f"; swift-tools-version="5.0"`
	got, err := ParseAlternateManifests(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 entries, got %d", len(got))
	}
}

func TestParseAlternateManifestsDropsMissingField(t *testing.T) {
	raw := `<https://x>; rel="alternate"; swift-tools-version="5.0"`
	got, err := ParseAlternateManifests(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 entries for missing filename, got %d", len(got))
	}
}

func TestParseAlternateManifestsInvalidToolsVersion(t *testing.T) {
	raw := `<https://x>; rel="alternate"; filename="f"; swift-tools-version="not-a-version"`
	_, err := ParseAlternateManifests(raw)
	if err == nil {
		t.Fatal("expected error for invalid swift-tools-version")
	}
	if !core.IsCode(err, core.CodeInvalidResponse) {
		t.Errorf("expected InvalidResponse code, got %v", err)
	}
}
