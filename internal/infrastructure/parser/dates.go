package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Brasília time; Brazil has not observed daylight saving since 2019.
var brasilia = time.FixedZone("BRT", -3*60*60)

var (
	dateTimeExpr = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})\s+(\d{2})[:hH](\d{2})`)
	dateExpr     = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})`)
)

// parseDate finds the first dd/mm/yyyy [hh:mm|hhhmm] timestamp in text.
func parseDate(text string) (time.Time, bool) {
	if m := dateTimeExpr.FindStringSubmatch(text); m != nil {
		if t, ok := buildDate(m[3], m[2], m[1], m[4], m[5]); ok {
			return t, true
		}
	}
	if m := dateExpr.FindStringSubmatch(text); m != nil {
		return buildDate(m[3], m[2], m[1], "0", "0")
	}
	return time.Time{}, false
}

// dateFromPath reads year, month and optional day captured by expr from an article URL.
func dateFromPath(expr *regexp.Regexp, href string) (time.Time, bool) {
	if expr == nil {
		return time.Time{}, false
	}
	m := expr.FindStringSubmatch(href)
	if m == nil {
		return time.Time{}, false
	}
	day := "1"
	if len(m) > 3 && m[3] != "" {
		day = m[3]
	}
	return buildDate(m[1], m[2], day, "0", "0")
}

func buildDate(year, month, day, hour, minute string) (time.Time, bool) {
	parts := make([]int, 0, 5)
	for _, raw := range []string{year, month, day, hour, minute} {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return time.Time{}, false
		}
		parts = append(parts, v)
	}
	y, mo, d, h, mi := parts[0], parts[1], parts[2], parts[3], parts[4]
	if mo < 1 || mo > 12 || d < 1 || d > 31 || h > 23 || mi > 59 {
		return time.Time{}, false
	}

	t := time.Date(y, time.Month(mo), d, h, mi, 0, 0, brasilia)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
