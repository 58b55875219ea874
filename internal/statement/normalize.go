package statement

import (
	"errors"
	"io"

	"github.com/shopspring/decimal"

	"yearend/internal/core"
)

// RowStats counts what happened to the rows of one ingestion. A row is
// counted under the first rule it fails: date before charge.
type RowStats struct {
	Read      int `json:"read"`
	Kept      int `json:"kept"`
	BadDate   int `json:"bad_date"`
	BadCharge int `json:"bad_charge"`
	Malformed int `json:"malformed"`
}

// Dropped returns the number of rows that did not become transactions.
func (s RowStats) Dropped() int {
	return s.BadDate + s.BadCharge + s.Malformed
}

// Add accumulates o into s.
func (s *RowStats) Add(o RowStats) {
	s.Read += o.Read
	s.Kept += o.Kept
	s.BadDate += o.BadDate
	s.BadCharge += o.BadCharge
	s.Malformed += o.Malformed
}

// Result is the output of a normalisation pass.
type Result struct {
	Transactions []core.Transaction
	Stats        RowStats
}

var (
	errRejectDate   = errors.New("unparseable date")
	errRejectCharge = errors.New("missing or invalid charge")
)

// NormalizeRow turns one raw row into a transaction. The returned error
// names the rejection reason; it is never worth surfacing per row.
func NormalizeRow(row core.RawRow) (core.Transaction, error) {
	date, err := core.ParseDayFirst(row.Date)
	if err != nil {
		return core.Transaction{}, errRejectDate
	}
	charge, err := core.ParseCurrency(row.Charges)
	if err != nil {
		return core.Transaction{}, errRejectCharge
	}
	// Credits that are blank or unparseable count as zero while charges drop
	// the row. This mirrors the statement dashboard's behaviour.
	credit, err := core.ParseCurrency(row.Credits)
	if err != nil {
		credit = decimal.Zero
	}
	return core.Transaction{
		Date:         date,
		Category:     row.Category,
		SubCategory:  row.SubCategory,
		ChargeAmount: charge,
		CreditAmount: credit,
	}, nil
}

// Normalize converts rows into transactions, silently dropping rows with a
// bad date or a missing charge. Surviving rows keep their input order.
func Normalize(rows []core.RawRow) Result {
	res := Result{Transactions: make([]core.Transaction, 0, len(rows))}
	for _, row := range rows {
		res.Stats.Read++
		t, err := NormalizeRow(row)
		switch {
		case errors.Is(err, errRejectDate):
			res.Stats.BadDate++
			continue
		case errors.Is(err, errRejectCharge):
			res.Stats.BadCharge++
			continue
		}
		res.Stats.Kept++
		res.Transactions = append(res.Transactions, t)
	}
	return res
}

// Decode reads a whole statement from r and normalises it. Only structural
// problems (missing columns, unreadable input) are returned as errors.
func Decode(r io.Reader) (Result, error) {
	sr, err := NewReader(r)
	if err != nil {
		return Result{}, err
	}
	rows, err := sr.ReadAll()
	if err != nil {
		return Result{}, err
	}
	res := Normalize(rows)
	res.Stats.Malformed = sr.Malformed
	return res, nil
}
