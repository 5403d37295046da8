package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	amountNoise = regexp.MustCompile(`[€$£¥,\s]`)

	dayFirstPattern   = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})$`)
	monthFirstPattern = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2}|\d{4})$`)
)

// nativeLayouts are the unambiguous layouts tried before positional patterns.
var nativeLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
}

// ParseAmount strips currency symbols, thousands separators and whitespace and
// returns the value. Non-positive and unparseable amounts are errors.
func ParseAmount(raw string) (float64, error) {
	cleaned := amountNoise.ReplaceAllString(raw, "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, fmt.Errorf("invalid amount: %s", raw)
	}
	return value, nil
}

// ParseDate tries a native calendar parse, then DD/MM/YYYY, then MM/DD/YYYY
// (2-digit years are 2000+yy). The first successful pattern wins.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("invalid date: %q", raw)
	}

	for _, layout := range nativeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), nil
		}
	}

	if m := dayFirstPattern.FindStringSubmatch(s); m != nil {
		if t, ok := calendarDate(m[3], m[2], m[1]); ok {
			return t, nil
		}
	}

	if m := monthFirstPattern.FindStringSubmatch(s); m != nil {
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		if t, ok := calendarDate(year, m[1], m[2]); ok {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date: %s", raw)
}

// calendarDate builds a UTC date and rejects components time.Date would normalize.
func calendarDate(year, month, day string) (time.Time, bool) {
	y, errY := strconv.Atoi(year)
	m, errM := strconv.Atoi(month)
	d, errD := strconv.Atoi(day)
	if errY != nil || errM != nil || errD != nil {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
