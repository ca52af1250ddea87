// Package version implements parsing and comparison of engine and
// collection version strings, including the range specifiers accepted by
// galaxy-style collection requirements.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MinEngineVersion is the oldest ansible-core release the compatibility
// runtime supports.
const MinEngineVersion = "2.16"

// Version represents a parsed version.
type Version struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string
	Original   string
}

// versionRegex matches version strings such as "2.16", "2.16.3" or
// "11.0.0b2" style prereleases normalized as "11.0.0-b2".
var versionRegex = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:[-.]?([0-9A-Za-z][0-9A-Za-z\-\.]*))?$`)

// engineVersionRegex extracts the version from `ansible --version` output.
// ansible-core 2.11+ prints 'ansible [core 2.11.3]'; older builds used
// 'ansible [base ...]'. Debug mode can emit extra lines before it.
var engineVersionRegex = regexp.MustCompile(`(?m)^ansible \[(?:core|base) (?P<version>[^\]]+)\]`)

// rangeVersionRegex extracts the first version from a collection range
// specifier such as "foo.bar:>=1.2.3,<2.0".
var rangeVersionRegex = regexp.MustCompile(`:[>=<]*([^,]*)`)

// Parse parses a version string. The wildcard "*" is accepted and compares
// as the zero version, matching galaxy requirement semantics.
func Parse(s string) (*Version, error) {
	original := s
	if s == "*" {
		s = "0"
	}
	matches := versionRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return nil, fmt.Errorf("invalid version format: %s", s)
	}

	v := &Version{Original: original}

	var err error
	v.Major, err = strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid major version: %w", err)
	}
	if matches[2] != "" {
		v.Minor, err = strconv.Atoi(matches[2])
		if err != nil {
			return nil, fmt.Errorf("invalid minor version: %w", err)
		}
	}
	if matches[3] != "" {
		v.Patch, err = strconv.Atoi(matches[3])
		if err != nil {
			return nil, fmt.Errorf("invalid patch version: %w", err)
		}
	}
	if matches[4] != "" {
		v.Prerelease = matches[4]
	}

	return v, nil
}

// MustParse parses a version string and panics on failure. Intended for
// package-level constants.
func MustParse(s string) *Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as a string.
func (v *Version) String() string {
	return v.Original
}

// IsPrerelease reports whether the version carries a prerelease tag.
func (v *Version) IsPrerelease() bool {
	return v.Prerelease != ""
}

// Compare compares two versions.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v *Version) Compare(other *Version) int {
	if v.Major != other.Major {
		if v.Major < other.Major {
			return -1
		}
		return 1
	}
	if v.Minor != other.Minor {
		if v.Minor < other.Minor {
			return -1
		}
		return 1
	}
	if v.Patch != other.Patch {
		if v.Patch < other.Patch {
			return -1
		}
		return 1
	}

	// Prerelease versions have lower precedence than the release.
	if v.Prerelease == "" && other.Prerelease != "" {
		return 1
	}
	if v.Prerelease != "" && other.Prerelease == "" {
		return -1
	}
	if v.Prerelease != other.Prerelease {
		if v.Prerelease < other.Prerelease {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether v sorts before other.
func (v *Version) Less(other *Version) bool {
	return v.Compare(other) < 0
}

// ParseEngineVersion extracts the engine version from the output of
// `ansible --version`.
func ParseEngineVersion(stdout string) (*Version, error) {
	matches := engineVersionRegex.FindStringSubmatch(stdout)
	if matches == nil {
		return nil, fmt.Errorf(
			"unable to parse engine cli version from %q: only ansible-core %s or newer is supported",
			strings.TrimSpace(stdout), MinEngineVersion)
	}
	return Parse(matches[1])
}

// FromRange extracts the first version named by a collection range
// specifier such as "community.docker:>=3.0.0-a2". It returns nil when the
// specifier carries no version at all.
func FromRange(spec string) *Version {
	matches := rangeVersionRegex.FindStringSubmatch(spec)
	if matches == nil || matches[1] == "" {
		return nil
	}
	v, err := Parse(matches[1])
	if err != nil {
		return nil
	}
	return v
}
