package core

import "testing"

func TestVersionCompareAndSort(t *testing.T) {
	raw := []string{"1.0.0", "2.0.0-beta", "1.5.0", "2.0.0"}
	versions := make([]Version, len(raw))
	for i, s := range raw {
		v, err := ParseVersion(s)
		if err != nil {
			t.Fatalf("ParseVersion(%q): %v", s, err)
		}
		versions[i] = v
	}

	SortVersionsDescending(versions)

	want := []string{"2.0.0", "2.0.0-beta", "1.5.0", "1.0.0"}
	for i, w := range want {
		if versions[i].String() != w {
			t.Errorf("position %d: got %q, want %q", i, versions[i].String(), w)
		}
	}
}

func TestParseVersionRejectsGarbage(t *testing.T) {
	if _, err := ParseVersion("not-a-version!!"); err == nil {
		t.Error("expected error parsing invalid semver")
	}
}
