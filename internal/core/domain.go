package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	GroupByCategory    GroupBy = "category"
	GroupBySubCategory GroupBy = "sub_category"
)

type (
	GroupBy string

	Date struct {
		time.Time
	}

	// RawRow is one statement line as read from the CSV, before any parsing.
	RawRow struct {
		Line        int
		Date        string
		Category    string
		SubCategory string
		Charges     string
		Credits     string
	}

	// Transaction is a normalised statement line. It only exists when both
	// the date and the charge amount parsed.
	Transaction struct {
		Date         Date
		Category     string
		SubCategory  string
		ChargeAmount decimal.Decimal
		CreditAmount decimal.Decimal
	}

	DateRange struct {
		Start Date
		End   Date
	}

	CategoryFilter map[string]struct{}

	// Query bundles the caller-supplied filter parameters.
	Query struct {
		Range      DateRange
		Categories CategoryFilter
		GroupBy    GroupBy
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrMissingAmount   = errors.New("missing amount")
	ErrDatasetNotFound = errors.New("dataset not found")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// ParseISODate parses a YYYY-MM-DD date, the format used by query parameters.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// ParseGroupBy accepts "category" or "sub_category" (and the header
// spelling "sub-category"). Empty input selects GroupBySubCategory, the
// dashboard's chart default.
func ParseGroupBy(s string) (GroupBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sub_category", "sub-category", "subcategory":
		return GroupBySubCategory, nil
	case "category":
		return GroupByCategory, nil
	default:
		return "", &ValidationError{Field: "group_by", Message: fmt.Sprintf("unknown grouping %q", s)}
	}
}

// Key returns the grouping key of t for g.
func (g GroupBy) Key(t Transaction) string {
	if g == GroupByCategory {
		return t.Category
	}
	return t.SubCategory
}

// Validate checks that the range is non-empty and ordered.
func (r DateRange) Validate() error {
	if r.Start.IsZero() {
		return &ValidationError{Field: "start", Message: "start date is required"}
	}
	if r.End.IsZero() {
		return &ValidationError{Field: "end", Message: "end date is required"}
	}
	if !r.Start.Before(r.End.Time) {
		return &ValidationError{Field: "end", Message: "end date must be after start date"}
	}
	return nil
}

// Contains reports whether d falls within the range, bounds included.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start.Time) && !d.After(r.End.Time)
}

// NewCategoryFilter builds a filter from names. Blank names are ignored.
func NewCategoryFilter(names ...string) CategoryFilter {
	f := make(CategoryFilter, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		f[n] = struct{}{}
	}
	return f
}

func (f CategoryFilter) Contains(category string) bool {
	_, ok := f[category]
	return ok
}

func (f CategoryFilter) Validate() error {
	if len(f) == 0 {
		return &ValidationError{Field: "category", Message: "select at least one category"}
	}
	return nil
}

// Validate runs every caller-side check. The pipeline must not run when it
// returns an error.
func (q Query) Validate() error {
	if err := q.Range.Validate(); err != nil {
		return err
	}
	if err := q.Categories.Validate(); err != nil {
		return err
	}
	if q.GroupBy != "" && q.GroupBy != GroupByCategory && q.GroupBy != GroupBySubCategory {
		return &ValidationError{Field: "group_by", Message: fmt.Sprintf("unknown grouping %q", q.GroupBy)}
	}
	return nil
}
