// Package statement reads card statement CSV exports into raw rows and
// normalises them into transactions, either in one pass or in fixed-size
// chunks.
package statement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"yearend/internal/core"
)

// Standard column names of the year-end export.
const (
	ColDate        = "Date"
	ColCategory    = "Category"
	ColSubCategory = "Sub-Category"
	ColCharges     = "Charges $"
	ColCredits     = "Credits $"
)

var requiredColumns = []string{ColDate, ColCategory, ColSubCategory, ColCharges}

// columnAliases maps lower-cased header spellings to standard names.
var columnAliases = map[string]string{
	"date":             ColDate,
	"transaction date": ColDate,
	"category":         ColCategory,
	"sub-category":     ColSubCategory,
	"sub category":     ColSubCategory,
	"subcategory":      ColSubCategory,
	"sub_category":     ColSubCategory,
	"charges $":        ColCharges,
	"charges":          ColCharges,
	"charges ($)":      ColCharges,
	"credits $":        ColCredits,
	"credits":          ColCredits,
	"credits ($)":      ColCredits,
}

// normalizeColumnName maps an export header to its standard name.
func normalizeColumnName(col string) string {
	col = strings.TrimPrefix(col, "\ufeff")
	col = strings.TrimSpace(col)
	if std, ok := columnAliases[strings.ToLower(col)]; ok {
		return std
	}
	return col
}

// buildColumnIndex creates a normalized column index from CSV headers.
// The first occurrence of a column wins.
func buildColumnIndex(header []string) map[string]int {
	colIndex := make(map[string]int)
	for i, col := range header {
		normalized := normalizeColumnName(col)
		if _, exists := colIndex[normalized]; !exists {
			colIndex[normalized] = i
		}
	}
	return colIndex
}

// Reader yields RawRows from a statement CSV.
type Reader struct {
	csv      *csv.Reader
	header   []string
	colIndex map[string]int
	line     int

	// Malformed counts records the CSV parser rejected.
	Malformed int
}

// NewReader reads the header of r and checks the required columns. A
// missing column returns *core.StructuralError.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // Allow variable number of fields
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &core.StructuralError{Missing: append([]string(nil), requiredColumns...)}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	colIndex := buildColumnIndex(header)
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &core.StructuralError{Missing: missing, Header: header}
	}

	return &Reader{csv: cr, header: header, colIndex: colIndex, line: 1}, nil
}

// Header returns the header row as read.
func (r *Reader) Header() []string {
	return r.header
}

// HasCredits reports whether the optional credits column is present.
func (r *Reader) HasCredits() bool {
	_, ok := r.colIndex[ColCredits]
	return ok
}

// Read returns the next row. It returns io.EOF at the end of input.
// Records the CSV parser cannot decode are skipped and counted in Malformed.
func (r *Reader) Read() (core.RawRow, error) {
	for {
		record, err := r.csv.Read()
		r.line++
		if err == io.EOF {
			return core.RawRow{}, io.EOF
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				r.Malformed++
				continue
			}
			return core.RawRow{}, fmt.Errorf("read line %d: %w", r.line, err)
		}
		if isBlank(record) {
			continue
		}
		r.line, _ = r.csv.FieldPos(0)
		return core.RawRow{
			Line:        r.line,
			Date:        r.field(record, ColDate),
			Category:    r.field(record, ColCategory),
			SubCategory: r.field(record, ColSubCategory),
			Charges:     r.field(record, ColCharges),
			Credits:     r.field(record, ColCredits),
		}, nil
	}
}

// ReadN reads up to n rows. A short slice together with io.EOF marks the
// end of input.
func (r *Reader) ReadN(n int) ([]core.RawRow, error) {
	rows := make([]core.RawRow, 0, n)
	for len(rows) < n {
		row, err := r.Read()
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadAll reads every remaining row.
func (r *Reader) ReadAll() ([]core.RawRow, error) {
	var rows []core.RawRow
	for {
		row, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

// field returns the trimmed value of col, or "" when the column is absent
// or the record is short.
func (r *Reader) field(record []string, col string) string {
	idx, ok := r.colIndex[col]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
