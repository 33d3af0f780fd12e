// Package timeparsing resolves the window expressions accepted by
// --since flags on the changes commands. An expression is tried as a
// compact duration (-1d, -6h), then as an absolute timestamp (RFC3339
// or date-only), then as natural language ("yesterday", "3 days ago").
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// compactRe matches [+-]?<digits><unit> with unit one of h, d, w, m, y.
var compactRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// ParseCompactDuration shifts now by a compact duration such as "-1d"
// or "+6h". A missing sign means forward. Months and years go through
// AddDate, so overflow normalizes the way the standard library does.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	m := compactRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}

	n, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount: %q", m[2])
	}
	if m[1] == "-" {
		n = -n
	}
	return shift(now, n, m[3]), nil
}

func shift(base time.Time, n int, unit string) time.Time {
	switch unit {
	case "h":
		return base.Add(time.Duration(n) * time.Hour)
	case "d":
		return base.AddDate(0, 0, n)
	case "w":
		return base.AddDate(0, 0, n*7)
	case "m":
		return base.AddDate(0, n, 0)
	case "y":
		return base.AddDate(n, 0, 0)
	default:
		return base
	}
}

// IsCompactDuration reports whether s matches the compact duration form.
func IsCompactDuration(s string) bool {
	return compactRe.MatchString(s)
}
