// Package version compares dotted numeric version strings.
//
// Versions are not required to be valid SemVer. Each dot-separated segment
// is read as an integer from its leading digits; a segment without leading
// digits counts as 0, and segments missing from the shorter operand count
// as 0 as well. Comparison never fails.
package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Unbounded compares every segment present in either operand.
const Unbounded = 0

// Strategy selects how two versions are ordered.
type Strategy int

const (
	// StrategyDotted is the lenient dotted-numeric ordering used for store versions.
	StrategyDotted Strategy = iota
	// StrategySemVer orders by SemVer 2.0 precedence, including pre-release tags.
	StrategySemVer
)

// Compare returns -1, 0 or 1 depending on whether a is older than, equal to,
// or newer than b. Only the first depth segments take part; depth <= 0
// means Unbounded.
func Compare(a, b string, depth int) int {
	ap := segments(a)
	bp := segments(b)

	n := len(ap)
	if len(bp) > n {
		n = len(bp)
	}
	if depth > 0 && depth < n {
		n = depth
	}

	for i := 0; i < n; i++ {
		av := at(ap, i)
		bv := at(bp, i)
		if av > bv {
			return 1
		}
		if av < bv {
			return -1
		}
	}
	return 0
}

// IsNewer reports whether latest is strictly newer than current.
func IsNewer(current, latest string, depth int) bool {
	return Compare(latest, current, depth) > 0
}

// CompareStrategy compares a and b with the given strategy. The SemVer
// strategy accepts versions with or without a leading "v"; an invalid
// SemVer string sorts below every valid one, matching semver.Compare.
// depth only applies to StrategyDotted.
func CompareStrategy(s Strategy, a, b string, depth int) int {
	if s == StrategySemVer {
		return semver.Compare(canonical(a), canonical(b))
	}
	return Compare(a, b, depth)
}

// IsValidSemVer reports whether v (with or without "v") is valid SemVer.
func IsValidSemVer(v string) bool {
	return semver.IsValid(canonical(v))
}

func canonical(v string) string {
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func at(parts []int64, i int) int64 {
	if i < len(parts) {
		return parts[i]
	}
	return 0
}

// segments splits v on "." and parses each part. An empty string yields a
// single zero segment.
func segments(v string) []int64 {
	raw := strings.Split(v, ".")
	out := make([]int64, len(raw))
	for i, s := range raw {
		out[i] = leadingInt(s)
	}
	return out
}

// leadingInt parses an optional sign followed by decimal digits at the start
// of s, after leading spaces. Anything unparsable is 0; values that would
// overflow saturate.
func leadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\r")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	const limit = int64(1<<63-1) / 10
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		if n > limit {
			n = 1<<63 - 1
			break
		}
		n = n*10 + int64(c-'0')
		if n < 0 {
			n = 1<<63 - 1
			break
		}
	}
	if neg {
		return -n
	}
	return n
}
