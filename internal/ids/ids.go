// Package ids orders the opaque identifiers handed out by the remote feed.
//
// Remote ids are unsigned decimal integers encoded as strings. They routinely
// exceed 64 bits, so they are never parsed: a shorter string is a smaller
// number, and strings of equal length compare byte-wise. That rule only holds
// for well-formed ids (non-empty, digits only, no leading zeros), which is
// what Valid checks.
//
// "No prior position" is not an id. Callers that need a floor below every
// real id use Zero.
package ids

import (
	"slices"
	"strings"
)

// Zero is the smallest well-formed id. Callers use it as the "absent" marker.
const Zero = "0"

// Valid reports whether s is a well-formed id.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Compare returns -1, 0 or +1 depending on whether a is numerically less than,
// equal to, or greater than b.
func Compare(a, b string) int {
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return strings.Compare(a, b)
}

// Less reports whether a < b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Max returns the larger of a and b.
func Max(a, b string) string {
	if Compare(a, b) >= 0 {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b string) string {
	if Compare(a, b) <= 0 {
		return a
	}
	return b
}

// Increment returns s+1.
//
// The remote's max_id bound is exclusive, so paging "up to and including X"
// asks for everything below Increment(X).
func Increment(s string) string {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < '9' {
			b[i]++
			return string(b)
		}
		b[i] = '0'
	}
	return "1" + string(b)
}

// SortDesc sorts ids newest-first in place.
func SortDesc(s []string) {
	slices.SortFunc(s, func(a, b string) int { return Compare(b, a) })
}

// SortAsc sorts ids oldest-first in place.
func SortAsc(s []string) {
	slices.SortFunc(s, Compare)
}
