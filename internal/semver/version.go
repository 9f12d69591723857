// SPDX-License-Identifier: MPL-2.0

// Package semver implements the versioning core: a three-component semantic
// version, the bump magnitudes derived from conventional-commit subjects, and
// the resolver that turns a commit range into the next release version.
package semver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	xsemver "golang.org/x/mod/semver"
)

// ErrInvalidVersion indicates a tag or flag value that is not a vMAJOR.MINOR.PATCH string.
var ErrInvalidVersion = errors.New("invalid semantic version")

type (
	// Version is a release version. The zero value (v0.0.0) is the lineage
	// origin used when no release tag exists yet.
	Version struct {
		Major int
		Minor int
		Patch int
	}

	// Bump is the magnitude of a version increment. Ordering matters:
	// larger values win when aggregating a commit range.
	Bump int
)

const (
	// BumpNone means no release-worthy change.
	BumpNone Bump = iota
	// BumpPatch increments the patch component.
	BumpPatch
	// BumpMinor increments the minor component and resets patch.
	BumpMinor
	// BumpMajor increments the major component and resets minor and patch.
	BumpMajor
)

// ParseBump converts a user-supplied bump name ("major", "minor", "patch",
// "none") into a Bump. The empty string maps to BumpNone so an unset
// override flag needs no special casing by callers.
func ParseBump(s string) (Bump, error) {
	switch s {
	case "", "none":
		return BumpNone, nil
	case "patch":
		return BumpPatch, nil
	case "minor":
		return BumpMinor, nil
	case "major":
		return BumpMajor, nil
	default:
		return BumpNone, fmt.Errorf("unknown bump %q (expected major, minor, patch or none)", s)
	}
}

// String returns the bump name used in config files and CLI flags.
func (b Bump) String() string {
	switch b {
	case BumpPatch:
		return "patch"
	case BumpMinor:
		return "minor"
	case BumpMajor:
		return "major"
	default:
		return "none"
	}
}

// Parse reads a canonical version string. A leading "v" is accepted and
// optional; prerelease or build suffixes are rejected because release tags
// are always plain vMAJOR.MINOR.PATCH.
func Parse(s string) (Version, error) {
	trimmed := strings.TrimPrefix(s, "v")

	parts := strings.Split(trimmed, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String returns the canonical form, e.g. "v1.4.2". This form is also the
// release tag name.
func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare orders two versions: -1 if v < other, 0 if equal, +1 if v > other.
// Delegates to golang.org/x/mod/semver so ordering matches what the rest of
// the Go ecosystem (and the release hosts) consider canonical.
func (v Version) Compare(other Version) int {
	return xsemver.Compare(v.String(), other.String())
}

// Bumped returns the version after applying b. BumpNone returns the receiver
// unchanged; callers use IsZero-style comparison against the previous version
// to detect "no release needed".
func (v Version) Bumped(b Bump) Version {
	switch b {
	case BumpMajor:
		return Version{Major: v.Major + 1}
	case BumpMinor:
		return Version{Major: v.Major, Minor: v.Minor + 1}
	case BumpPatch:
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	default:
		return v
	}
}
