// Package version parses and compares the two-part version identifiers
// embedded in artifact filenames and catalog server responses.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a version string does not have the
// expected "MM.mm" shape.
var ErrMalformed = errors.New("malformed version")

// Version is an ordered (major, minor) pair. Versions are compared
// lexicographically: major first, then minor.
type Version struct {
	Major int
	Minor int
}

// Parse parses a "MM.mm" version string. Exactly two dot-separated
// numeric components are required; anything else fails with
// ErrMalformed.
func Parse(text string) (Version, error) {
	parts := strings.Split(text, ".")
	if len(parts) != 2 {
		return Version{}, fmt.Errorf("%w: %q: expected two components", ErrMalformed, text)
	}

	major, err := parseComponent(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: bad major component", ErrMalformed, text)
	}

	minor, err := parseComponent(parts[1])
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: bad minor component", ErrMalformed, text)
	}

	return Version{Major: major, Minor: minor}, nil
}

func parseComponent(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty component")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative component")
	}
	return n, nil
}

// String formats the version as zero-padded "MM.mm". This is the
// inverse of Parse: Parse(v.String()) always returns v.
func (v Version) String() string {
	return fmt.Sprintf("%02d.%02d", v.Major, v.Minor)
}

// Compare returns -1 if a < b, 0 if a == b, and +1 if a > b.
func Compare(a, b Version) int {
	if a.Major != b.Major {
		if a.Major < b.Major {
			return -1
		}
		return 1
	}
	if a.Minor != b.Minor {
		if a.Minor < b.Minor {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether a orders strictly before b.
func Less(a, b Version) bool {
	return Compare(a, b) < 0
}
