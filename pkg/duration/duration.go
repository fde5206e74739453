// Package duration provides human-readable duration parsing.
// It extends Go's standard time.ParseDuration with support for days and
// weeks, which poll periods and retention windows are usually written in.
//
// Examples:
//   - "2w" = 2 weeks
//   - "30d" = 30 days
//   - "1w2d12h" = 1 week, 2 days, 12 hours
//   - "90s" = 90 seconds (standard Go format)
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Day represents 24 hours.
	Day = 24 * time.Hour
	// Week represents 7 days.
	Week = 7 * Day
)

// extendedUnits maps the units Go's parser lacks to their hour multiplier.
var extendedUnits = map[string]int64{
	"w":     7 * 24,
	"wk":    7 * 24,
	"week":  7 * 24,
	"weeks": 7 * 24,
	"d":     24,
	"day":   24,
	"days":  24,
}

var segmentPattern = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*([a-zµ]+)`)

// Parse parses a duration string, accepting everything time.ParseDuration
// accepts plus day and week units.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	// Bare numbers are seconds; config values like "120" read naturally.
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(v * float64(time.Second)), nil
	}

	// Fast path: the standard parser handles it directly.
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	segments := segmentPattern.FindAllStringSubmatch(s, -1)
	if segments == nil {
		return 0, fmt.Errorf("duration: invalid format %q", s)
	}

	// Verify the segments cover the whole input, so "5x3d" is rejected.
	if segmentPattern.ReplaceAllString(strings.ToLower(s), "") != "" {
		return 0, fmt.Errorf("duration: invalid format %q", s)
	}

	var total time.Duration
	for _, seg := range segments {
		value, err := strconv.ParseFloat(seg[1], 64)
		if err != nil {
			return 0, fmt.Errorf("duration: invalid number %q: %w", seg[1], err)
		}
		unit := strings.ToLower(seg[2])

		if hours, ok := extendedUnits[unit]; ok {
			total += time.Duration(value * float64(hours) * float64(time.Hour))
			continue
		}

		d, err := time.ParseDuration(seg[1] + unit)
		if err != nil {
			return 0, fmt.Errorf("duration: unknown unit %q", unit)
		}
		total += d
	}

	return total, nil
}

// Format renders a duration compactly using the largest exact units,
// e.g. "1w2d" or "90s".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}

	if weeks := d / Week; weeks > 0 {
		fmt.Fprintf(&b, "%dw", weeks)
		d -= weeks * Week
	}
	if days := d / Day; days > 0 {
		fmt.Fprintf(&b, "%dd", days)
		d -= days * Day
	}
	if d > 0 {
		b.WriteString(d.String())
	}
	return b.String()
}
