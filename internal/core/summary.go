package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// GroupTotal represents charges aggregated under one category or sub-category.
type GroupTotal struct {
	Key     string
	Charges decimal.Decimal
}

// Totals summarises a filtered set. Net is charges minus credits.
type Totals struct {
	Charges decimal.Decimal
	Credits decimal.Decimal
	Net     decimal.Decimal
}

// AggregateResult holds group sums ranked by descending charges. Ties keep
// the order in which the groups were first seen.
type AggregateResult struct {
	GroupBy GroupBy
	Groups  []GroupTotal
}

// Report is the output of one filter-and-aggregate run.
type Report struct {
	Transactions []Transaction
	Aggregate    AggregateResult
	Totals       Totals
}

// ByKey returns the group sums as a map.
func (a AggregateResult) ByKey() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(a.Groups))
	for _, g := range a.Groups {
		out[g.Key] = g.Charges
	}
	return out
}

// Aggregate sums charges per group and computes the overall totals. Credits
// only contribute to Totals. An empty input yields no groups and zero totals.
func Aggregate(txs []Transaction, by GroupBy) Report {
	if by == "" {
		by = GroupBySubCategory
	}
	index := make(map[string]int)
	groups := make([]GroupTotal, 0)
	charges, credits := decimal.Zero, decimal.Zero

	for _, t := range txs {
		charges = charges.Add(t.ChargeAmount)
		credits = credits.Add(t.CreditAmount)

		key := by.Key(t)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, GroupTotal{Key: key, Charges: decimal.Zero})
		}
		groups[i].Charges = groups[i].Charges.Add(t.ChargeAmount)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Charges.GreaterThan(groups[j].Charges)
	})

	return Report{
		Transactions: txs,
		Aggregate:    AggregateResult{GroupBy: by, Groups: groups},
		Totals: Totals{
			Charges: charges,
			Credits: credits,
			Net:     charges.Sub(credits),
		},
	}
}
