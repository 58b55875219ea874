package core

import (
	"fmt"
	"strings"
	"time"
)

// dayFirstLayouts are tried in order. Single-digit layout fields also accept
// two digits, so "1/3/2024" and "01/03/2024" both match the first entry.
var dayFirstLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2006-01-02",
}

// ParseDayFirst parses a statement date as day/month/year. ISO dates are
// accepted too since they cannot be misread. Impossible calendar dates such
// as 31/02/2024 are rejected, and so are two-digit years.
func ParseDayFirst(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// FormatDayFirst renders d as DD/MM/YYYY, the statement's own format.
func FormatDayFirst(d Date) string {
	return d.Format("02/01/2006")
}
