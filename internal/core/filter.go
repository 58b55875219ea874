package core

// Filter returns the transactions dated within r (bounds included) whose
// category is in cats, preserving order. The query must already be valid.
func Filter(txs []Transaction, r DateRange, cats CategoryFilter) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if !r.Contains(t.Date) {
			continue
		}
		if !cats.Contains(t.Category) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Run validates q, filters txs and aggregates the survivors.
func Run(txs []Transaction, q Query) (Report, error) {
	if err := q.Validate(); err != nil {
		return Report{}, err
	}
	return Aggregate(Filter(txs, q.Range, q.Categories), q.GroupBy), nil
}

// Bounds returns the earliest and latest transaction dates. ok is false for
// an empty slice.
func Bounds(txs []Transaction) (minDate, maxDate Date, ok bool) {
	if len(txs) == 0 {
		return Date{}, Date{}, false
	}
	minDate, maxDate = txs[0].Date, txs[0].Date
	for _, t := range txs[1:] {
		if t.Date.Before(minDate.Time) {
			minDate = t.Date
		}
		if t.Date.After(maxDate.Time) {
			maxDate = t.Date
		}
	}
	return minDate, maxDate, true
}

// Distinct returns the distinct values of key over txs in first-seen order.
func Distinct(txs []Transaction, key func(Transaction) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, t := range txs {
		v := key(t)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
