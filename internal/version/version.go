// Package version implements the Version Algebra (C1): parsing version
// strings into a comparable triple and evaluating Satisfies against
// five disjoint range grammars. This package is pure and synchronous —
// no I/O, no suspension points.
package version

import (
	"regexp"
	"strconv"
	"strings"
)

// Version is a parsed (major, minor, patch) triple. The original string
// is kept only for display; all comparisons use the triple.
type Version struct {
	Major, Minor, Patch int
	Raw                 string
}

// Parse normalizes s: take the substring before the first
// '+', drop everything outside [0-9.], split on '.', and read each segment
// as a non-negative int (missing/non-numeric -> 0). Parse never fails —
// an unparsable string simply yields (0,0,0) with Raw preserved, matching
// a grammar with no error path for malformed versions.
func Parse(s string) Version {
	v := Version{Raw: s}

	head := s
	if i := strings.IndexByte(s, '+'); i >= 0 {
		head = s[:i]
	}

	var cleaned strings.Builder
	for _, r := range head {
		if (r >= '0' && r <= '9') || r == '.' {
			cleaned.WriteRune(r)
		}
	}

	parts := strings.Split(cleaned.String(), ".")
	nums := make([]int, 0, 3)
	for _, p := range parts {
		if p == "" {
			nums = append(nums, 0)
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			n = 0
		}
		nums = append(nums, n)
	}
	for len(nums) < 3 {
		nums = append(nums, 0)
	}

	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	return v
}

// Compare returns the sign of the first non-zero difference across
// (Major, Minor, Patch): -1 if a < b, 0 if equal, 1 if a > b.
func Compare(a, b Version) int {
	if a.Major != b.Major {
		return sign(a.Major - b.Major)
	}
	if a.Minor != b.Minor {
		return sign(a.Minor - b.Minor)
	}
	if a.Patch != b.Patch {
		return sign(a.Patch - b.Patch)
	}
	return 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// nextMinor computes (M, m+1, 0), used by the "~" prefix rule.
func nextMinor(v Version) Version {
	return Version{Major: v.Major, Minor: v.Minor + 1, Patch: 0}
}

// Satisfies evaluates versionStr against rangeExpr using the first
// matching rule of an ordered eight-rule cascade.
func Satisfies(versionStr, rangeExpr string) bool {
	rangeExpr = strings.TrimSpace(rangeExpr)

	// Rule 1: empty / * / any
	if rangeExpr == "" || rangeExpr == "*" || strings.EqualFold(rangeExpr, "any") {
		return true
	}

	// Rule 2: space-separated range (not bracketed) is an AND of parts.
	if !strings.ContainsAny(rangeExpr, "[]()") && strings.ContainsAny(rangeExpr, " \t") {
		parts := strings.Fields(rangeExpr)
		if len(parts) > 1 {
			for _, p := range parts {
				if !Satisfies(versionStr, p) {
					return false
				}
			}
			return true
		}
	}

	hasWildcard := strings.ContainsAny(rangeExpr, "x*")
	startsWithOperator := hasComparisonPrefix(rangeExpr)

	// Rule 3: wildcard without a leading comparator -> regex match.
	if hasWildcard && !startsWithOperator {
		return wildcardMatch(versionStr, rangeExpr)
	}

	// Rule 4: wildcard with a leading operator -> replace x/* with 0, fall through.
	if hasWildcard && startsWithOperator {
		rangeExpr = strings.NewReplacer("x", "0", "X", "0", "*", "0").Replace(rangeExpr)
	}

	// Rule 5: "~v" prefix -> v <= version < next-minor(v)
	if strings.HasPrefix(rangeExpr, "~") {
		base := Parse(strings.TrimPrefix(rangeExpr, "~"))
		v := Parse(versionStr)
		return Compare(v, base) >= 0 && Compare(v, nextMinor(base)) < 0
	}

	// Rule 6: >=, >, <=, < comparators
	for _, op := range []string{">=", "<=", ">", "<"} {
		if strings.HasPrefix(rangeExpr, op) {
			bound := Parse(strings.TrimPrefix(rangeExpr, op))
			v := Parse(versionStr)
			c := Compare(v, bound)
			switch op {
			case ">=":
				return c >= 0
			case "<=":
				return c <= 0
			case ">":
				return c > 0
			case "<":
				return c < 0
			}
		}
	}

	// Rule 7: interval notation [..], (..], [..), (..)
	if ok, result := tryInterval(versionStr, rangeExpr); ok {
		return result
	}

	// Rule 8: exact equality after parse.
	return Compare(Parse(versionStr), Parse(rangeExpr)) == 0
}

func hasComparisonPrefix(s string) bool {
	for _, op := range []string{">=", "<=", ">", "<", "~"} {
		if strings.HasPrefix(s, op) {
			return true
		}
	}
	return false
}

var dotEscape = strings.NewReplacer(".", `\.`)

// wildcardMatch compiles rangeExpr into an anchored regular expression:
// escape '.', replace each 'x'/'*' segment with '.*', and allow an
// optional trailing "+metadata" suffix.
func wildcardMatch(versionStr, rangeExpr string) bool {
	escaped := dotEscape.Replace(rangeExpr)
	escaped = strings.NewReplacer("x", ".*", "X", ".*", "*", ".*").Replace(escaped)
	pattern := "^" + escaped + `(\+.*)?$`

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(versionStr)
}

// tryInterval recognizes [..], (..], [..) and (..) with a single comma,
// returning ok=false if rangeExpr isn't interval notation at all.
func tryInterval(versionStr, rangeExpr string) (ok bool, result bool) {
	if len(rangeExpr) < 2 {
		return false, false
	}
	first := rangeExpr[0]
	last := rangeExpr[len(rangeExpr)-1]
	if (first != '[' && first != '(') || (last != ']' && last != ')') {
		return false, false
	}

	body := rangeExpr[1 : len(rangeExpr)-1]
	comma := strings.Index(body, ",")
	if comma < 0 {
		return false, false
	}

	lowStr := strings.TrimSpace(body[:comma])
	highStr := strings.TrimSpace(body[comma+1:])

	v := Parse(versionStr)

	if lowStr != "" {
		low := Parse(lowStr)
		c := Compare(v, low)
		if first == '[' {
			if c < 0 {
				return true, false
			}
		} else if c <= 0 {
			return true, false
		}
	}

	if highStr != "" {
		high := Parse(highStr)
		c := Compare(v, high)
		if last == ']' {
			if c > 0 {
				return true, false
			}
		} else if c >= 0 {
			return true, false
		}
	}

	return true, true
}
