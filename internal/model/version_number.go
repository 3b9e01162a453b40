package model

import (
	"fmt"
	"strconv"
	"strings"
)

// VersionNumber is a major.minor version. Major 0 is the draft lineage;
// major >= 1 is released. The minor component increments by exactly one per
// new version within a lineage (0.1 -> 0.2, 1.0 -> 1.1).
type VersionNumber struct {
	Major int
	Minor int
}

// String renders the number as "major.minor".
func (n VersionNumber) String() string {
	return fmt.Sprintf("%d.%d", n.Major, n.Minor)
}

// Released reports whether the number denotes released content.
func (n VersionNumber) Released() bool {
	return n.Major >= 1
}

// BumpMinor returns the next minor version in the same major lineage.
func (n VersionNumber) BumpMinor() VersionNumber {
	return VersionNumber{Major: n.Major, Minor: n.Minor + 1}
}

// Less orders version numbers by major, then minor.
func (n VersionNumber) Less(other VersionNumber) bool {
	if n.Major != other.Major {
		return n.Major < other.Major
	}
	return n.Minor < other.Minor
}

// InitialDraft is the version number every methodology starts at.
func InitialDraft() VersionNumber {
	return VersionNumber{Major: 0, Minor: 1}
}

// FirstRelease is the number a draft lineage is promoted to on release.
func FirstRelease() VersionNumber {
	return VersionNumber{Major: 1, Minor: 0}
}

// ParseVersionNumber parses "major.minor" into a VersionNumber.
func ParseVersionNumber(s string) (VersionNumber, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return VersionNumber{}, fmt.Errorf("invalid version number %q: want major.minor", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return VersionNumber{}, fmt.Errorf("invalid version number %q: %w", s, err)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return VersionNumber{}, fmt.Errorf("invalid version number %q: %w", s, err)
	}
	if major < 0 || minor < 0 {
		return VersionNumber{}, fmt.Errorf("invalid version number %q: components must be non-negative", s)
	}
	return VersionNumber{Major: major, Minor: minor}, nil
}
