// Package linkheader parses the two Link header flavours the registry
// protocol uses: alternative-location entries (canonical/alternate URLs
// for a package) and alternate-manifest entries (alternate Package.swift
// manifests for a specific tools version).
package linkheader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/git-pkgs/pkgregistry/internal/core"
)

// splitEntries splits a raw, possibly comma-joined multi-line Link header
// value into its individual entries, respecting commas inside the
// angle-bracketed URL and inside quoted parameter values.
func splitEntries(raw string) []string {
	var entries []string
	depth := 0
	inQuotes := false
	start := 0
	for i, r := range raw {
		switch r {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case '"':
			inQuotes = !inQuotes
		case ',':
			if depth == 0 && !inQuotes {
				entries = append(entries, raw[start:i])
				start = i + 1
			}
		}
	}
	entries = append(entries, raw[start:])

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// splitFields splits one entry on top-level semicolons.
func splitFields(entry string) []string {
	var fields []string
	depth := 0
	inQuotes := false
	start := 0
	for i, r := range entry {
		switch r {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case '"':
			inQuotes = !inQuotes
		case ';':
			if depth == 0 && !inQuotes {
				fields = append(fields, entry[start:i])
				start = i + 1
			}
		}
	}
	fields = append(fields, entry[start:])

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// parseURLField extracts the URL from a "<...>" field. Returns ok=false
// if the field isn't an angle-bracketed URL.
func parseURLField(field string) (string, bool) {
	if len(field) < 2 || field[0] != '<' || field[len(field)-1] != '>' {
		return "", false
	}
	return field[1 : len(field)-1], true
}

// parseParam parses a "key=value" or `key="value"` field, stripping
// surrounding quotes from the value.
func parseParam(field string) (key, value string, ok bool) {
	idx := strings.IndexByte(field, '=')
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(field[:idx])
	value = strings.TrimSpace(field[idx+1:])
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}
	return key, value, true
}

// ParseAlternativeLocations parses the alternative-location flavour of
// the Link header: each entry is "<URL>; rel=\"canonical\"" or
// "<URL>; rel=\"alternate\"". Unknown rel values and malformed entries
// are skipped, not fatal.
func ParseAlternativeLocations(raw string) []core.AlternateLocation {
	var out []core.AlternateLocation

	for _, entry := range splitEntries(raw) {
		fields := splitFields(entry)
		if len(fields) != 2 {
			continue
		}

		url, ok := parseURLField(fields[0])
		if !ok {
			continue
		}

		key, value, ok := parseParam(fields[1])
		if !ok || key != "rel" {
			continue
		}

		var kind core.AlternateLocationKind
		switch value {
		case "canonical":
			kind = core.LocationCanonical
		case "alternate":
			kind = core.LocationAlternate
		default:
			continue
		}

		out = append(out, core.AlternateLocation{URL: url, Kind: kind})
	}

	return out
}

// validToolsVersion is intentionally permissive: one or more dot
// separated non-negative integers (e.g. "5", "5.7", "5.7.1").
func validToolsVersion(v string) bool {
	if v == "" {
		return false
	}
	for _, part := range strings.Split(v, ".") {
		if part == "" {
			return false
		}
		if _, err := strconv.Atoi(part); err != nil {
			return false
		}
	}
	return true
}

// ParseAlternateManifests parses the alternate-manifest flavour of the
// Link header: four semicolon-separated fields in any order -
// "<URL>", rel="alternate", filename="...", swift-tools-version="X.Y".
// Entries whose rel isn't "alternate", or that are missing a required
// field, are dropped silently. A syntactically invalid
// swift-tools-version is a hard failure.
func ParseAlternateManifests(raw string) ([]core.AlternateManifest, error) {
	var out []core.AlternateManifest

	for _, entry := range splitEntries(raw) {
		fields := splitFields(entry)

		var (
			url          string
			haveURL      bool
			rel          string
			filename     string
			toolsVersion string
		)

		for _, f := range fields {
			if u, ok := parseURLField(f); ok {
				url = u
				haveURL = true
				continue
			}
			key, value, ok := parseParam(f)
			if !ok {
				continue
			}
			switch key {
			case "rel":
				rel = value
			case "filename":
				filename = value
			case "swift-tools-version":
				toolsVersion = value
			}
		}

		if rel != "alternate" {
			continue
		}
		if !haveURL || filename == "" || toolsVersion == "" {
			continue
		}
		if !validToolsVersion(toolsVersion) {
			return nil, core.New(core.CodeInvalidResponse, fmt.Sprintf("invalid swift-tools-version %q in Link header", toolsVersion))
		}

		out = append(out, core.AlternateManifest{URL: url, Filename: filename, ToolsVersion: toolsVersion})
	}

	return out, nil
}
