package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDayFirst(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"01/03/2024", NewDate(2024, 3, 1), true},
		{"1/3/2024", NewDate(2024, 3, 1), true},
		{"13/12/2023", NewDate(2023, 12, 13), true},
		{"29/02/2024", NewDate(2024, 2, 29), true},
		{"05-06-2024", NewDate(2024, 6, 5), true},
		{"05.06.2024", NewDate(2024, 6, 5), true},
		{"2024-06-05", NewDate(2024, 6, 5), true},
		{" 07/08/2024 ", NewDate(2024, 8, 7), true},
		{"31/02/2024", Date{}, false},
		{"29/02/2023", Date{}, false},
		{"12/13/2024", Date{}, false},
		{"1/3/24", Date{}, false},
		{"March 1 2024", Date{}, false},
		{"", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDayFirst(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want.Time) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestDateRangeValidate(t *testing.T) {
	cases := []struct {
		name  string
		r     DateRange
		field string
	}{
		{"ordered", DateRange{Start: NewDate(2024, 1, 1), End: NewDate(2024, 12, 31)}, ""},
		{"equal bounds", DateRange{Start: NewDate(2024, 1, 1), End: NewDate(2024, 1, 1)}, "end"},
		{"reversed", DateRange{Start: NewDate(2024, 2, 1), End: NewDate(2024, 1, 1)}, "end"},
		{"missing start", DateRange{End: NewDate(2024, 1, 1)}, "start"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.r.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected ok, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected validation error on %q, got %v", tc.field, err)
			}
		})
	}
}

func TestQueryValidateRejectsEmptyCategories(t *testing.T) {
	q := Query{
		Range:      DateRange{Start: NewDate(2024, 1, 1), End: NewDate(2024, 2, 1)},
		Categories: NewCategoryFilter("", "  "),
	}
	var verr *ValidationError
	if err := q.Validate(); !errors.As(err, &verr) || verr.Field != "category" {
		t.Fatalf("expected category validation error, got %v", err)
	}
}

func TestParseGroupBy(t *testing.T) {
	for in, want := range map[string]GroupBy{
		"":             GroupBySubCategory,
		"category":     GroupByCategory,
		"Category":     GroupByCategory,
		"sub_category": GroupBySubCategory,
		"Sub-Category": GroupBySubCategory,
	} {
		got, err := ParseGroupBy(in)
		if err != nil || got != want {
			t.Fatalf("ParseGroupBy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseGroupBy("merchant"); err == nil {
		t.Fatalf("expected error for unknown grouping")
	}
}
