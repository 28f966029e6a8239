package core

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Version is a semver triple with optional pre-release and build
// metadata, totally ordered by semver precedence.
type Version struct {
	raw string
	sv  *semver.Version
}

// ParseVersion parses a semver string into a Version.
func ParseVersion(s string) (Version, error) {
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, err
	}
	return Version{raw: s, sv: sv}, nil
}

// String returns the original version string as supplied.
func (v Version) String() string {
	return v.raw
}

// Compare returns -1, 0, or 1 if v is less than, equal to, or greater
// than other, per semver precedence (pre-release sorts before release,
// build metadata is ignored for ordering).
func (v Version) Compare(other Version) int {
	return v.sv.Compare(other.sv)
}

// GobEncode encodes the version as its original string, so records that
// embed a Version can be gob-encoded.
func (v Version) GobEncode() ([]byte, error) {
	return []byte(v.raw), nil
}

// GobDecode parses a version written by GobEncode.
func (v *Version) GobDecode(data []byte) error {
	if len(data) == 0 {
		*v = Version{}
		return nil
	}
	parsed, err := ParseVersion(string(data))
	*v = parsed
	return err
}

// SortVersionsDescending sorts versions from newest to oldest in place.
func SortVersionsDescending(versions []Version) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Compare(versions[j]) > 0
	})
}
