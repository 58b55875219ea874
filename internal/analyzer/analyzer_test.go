package analyzer

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yearend/internal/core"
	"yearend/internal/log"
	"yearend/internal/metrics"
)

const statementCSV = "Date,Category,Sub-Category,Charges $,Credits $\n" +
	"01/01/2024,Food,Dining,100.00,\n" +
	"15/01/2024,Food,Groceries,200.00,\n" +
	"20/01/2024,Food,Dining,50.00,10.00\n" +
	"02/02/2024,Travel,Air,\"$1,200.00\",\n" +
	"31/02/2024,Travel,Air,99.00,\n" +
	"03/02/2024,Travel,Hotel,,\n" +
	"10/03/2024,Shopping,Books,30.00,\n"

func newService(t *testing.T) (*Service, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	return New(DefaultOptions(), log.Discard(), m), m
}

func january() core.DateRange {
	return core.DateRange{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 31)}
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	svc, m := newService(t)

	ds, err := svc.Ingest(ctx, Upload{Name: "2024.csv", Data: []byte(statementCSV)})
	require.NoError(t, err)

	assert.Equal(t, DatasetID([]byte(statementCSV)), ds.ID)
	assert.Equal(t, "2024.csv", ds.FileName)
	assert.Equal(t, 7, ds.Stats.Read)
	assert.Equal(t, 5, ds.Stats.Kept)
	assert.Equal(t, 1, ds.Stats.BadDate)
	assert.Equal(t, 1, ds.Stats.BadCharge)
	assert.True(t, ds.HasCredits)
	assert.Equal(t, []string{"Food", "Travel", "Shopping"}, ds.Categories)
	assert.Equal(t, []string{"Dining", "Groceries", "Air", "Books"}, ds.SubCategories)
	assert.Equal(t, core.NewDate(2024, 1, 1), ds.MinDate)
	assert.Equal(t, core.NewDate(2024, 3, 10), ds.MaxDate)

	again, err := svc.Ingest(ctx, Upload{Name: "copy.csv", Data: []byte(statementCSV)})
	require.NoError(t, err)
	assert.Same(t, ds, again, "identical bytes must reuse the memoised dataset")

	snap := m.Snapshot(cacheDatasets)
	assert.Equal(t, float64(1), snap.CacheHits[cacheDatasets])
	assert.Equal(t, float64(7), snap.RowsRead)
}

func TestIngestStructuralError(t *testing.T) {
	svc, m := newService(t)

	_, err := svc.Ingest(context.Background(), Upload{Name: "bad.csv", Data: []byte("Date,Category,Charges $\n")})

	var serr *core.StructuralError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, []string{"Sub-Category"}, serr.Missing)
	assert.Equal(t, float64(1), m.ErrorCount(log.OpIngest, log.ErrorTypeStructural))

	_, err = svc.Dataset(DatasetID([]byte("Date,Category,Charges $\n")))
	assert.ErrorIs(t, err, core.ErrDatasetNotFound)
}

func TestIngestConcurrentCallsShareResult(t *testing.T) {
	svc, _ := newService(t)

	var wg sync.WaitGroup
	results := make([]*Dataset, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ds, err := svc.Ingest(context.Background(), Upload{Name: "s.csv", Data: []byte(statementCSV)})
			if err == nil {
				results[i] = ds
			}
		}(i)
	}
	wg.Wait()

	for _, ds := range results {
		require.NotNil(t, ds)
		assert.Equal(t, results[0].ID, ds.ID)
		assert.Equal(t, results[0].Stats, ds.Stats)
	}
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()
	svc, m := newService(t)
	ds, err := svc.Ingest(ctx, Upload{Name: "s.csv", Data: []byte(statementCSV)})
	require.NoError(t, err)

	t.Run("food in january by category", func(t *testing.T) {
		report, err := svc.Analyze(ctx, ds.ID, core.Query{
			Range:      january(),
			Categories: core.NewCategoryFilter("Food"),
			GroupBy:    core.GroupByCategory,
		})
		require.NoError(t, err)

		require.Len(t, report.Aggregate.Groups, 1)
		assert.True(t, decimal.NewFromInt(350).Equal(report.Aggregate.Groups[0].Charges))
		assert.True(t, decimal.NewFromInt(10).Equal(report.Totals.Credits))
		assert.True(t, decimal.NewFromInt(340).Equal(report.Totals.Net))
	})

	t.Run("identical query is served from cache", func(t *testing.T) {
		q := core.Query{Range: january(), Categories: core.NewCategoryFilter("Food", "Travel")}
		first, err := svc.Analyze(ctx, ds.ID, q)
		require.NoError(t, err)
		second, err := svc.Analyze(ctx, ds.ID, core.Query{Range: january(), Categories: core.NewCategoryFilter("Travel", "Food")})
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, core.GroupBySubCategory, first.Aggregate.GroupBy)
		assert.GreaterOrEqual(t, m.Snapshot(cacheReports).CacheHits[cacheReports], float64(1))
	})

	t.Run("full range over every category keeps every transaction", func(t *testing.T) {
		full, ok := ds.FullRange()
		require.True(t, ok)

		report, err := svc.Analyze(ctx, ds.ID, core.Query{Range: full, Categories: core.NewCategoryFilter(ds.Categories...)})
		require.NoError(t, err)
		assert.Equal(t, ds.Transactions, report.Transactions)
	})

	t.Run("invalid range is rejected before lookup", func(t *testing.T) {
		_, err := svc.Analyze(ctx, "unknown", core.Query{
			Range:      core.DateRange{Start: core.NewDate(2024, 2, 1), End: core.NewDate(2024, 1, 1)},
			Categories: core.NewCategoryFilter("Food"),
		})

		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "end", verr.Field)
		assert.Equal(t, log.ErrorTypeValidation, ErrorType(err))
	})

	t.Run("unknown dataset", func(t *testing.T) {
		_, err := svc.Analyze(ctx, "unknown", core.Query{Range: january(), Categories: core.NewCategoryFilter("Food")})

		assert.ErrorIs(t, err, core.ErrDatasetNotFound)
		assert.Equal(t, log.ErrorTypeNotFound, ErrorType(err))
	})
}

func TestSampleAndStream(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	data := []byte("Date,Category,Sub-Category,Charges $,Credits $\n" +
		"01/01/2024,A,a,1.00,\n" +
		"02/01/2024,B,b,2.00,\n" +
		"03/01/2024,A,a,3.00,\n" +
		"04/01/2024,B,b,4.00,\n" +
		"05/01/2024,C,c,5.00,\n")

	offered, err := svc.Sample(ctx, bytes.NewReader(data), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, offered)

	year := core.DateRange{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 12, 31)}
	res, err := svc.AnalyzeStream(ctx, bytes.NewReader(data), core.Query{Range: year, Categories: core.NewCategoryFilter(offered...), GroupBy: core.GroupByCategory}, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 5, res.Stats.Read)
	assert.NotContains(t, res.Report.Aggregate.ByKey(), "C")
	assert.True(t, decimal.NewFromInt(10).Equal(res.Report.Totals.Charges))
	assert.Equal(t, []string{"B", "A"}, []string{res.Report.Aggregate.Groups[0].Key, res.Report.Aggregate.Groups[1].Key})

	res, err = svc.AnalyzeStream(ctx, bytes.NewReader(data), core.Query{Range: year, Categories: core.NewCategoryFilter("A", "B", "C")}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chunks)
	assert.True(t, decimal.NewFromInt(15).Equal(res.Report.Totals.Charges))
}

func TestCachesAreExposedForCleanup(t *testing.T) {
	svc, _ := newService(t)

	names := make([]string, 0, 2)
	for _, c := range svc.Caches() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{cacheDatasets, cacheReports}, names)
}

func TestDatasetGaugeFollowsExpiry(t *testing.T) {
	ctx := context.Background()
	newShortLived := func() (*Service, *metrics.Metrics) {
		m := metrics.New()
		opts := DefaultOptions()
		opts.CacheTTL = time.Millisecond
		return New(opts, log.Discard(), m), m
	}

	t.Run("expiry pass", func(t *testing.T) {
		svc, m := newShortLived()
		_, err := svc.Ingest(ctx, Upload{Name: "s.csv", Data: []byte(statementCSV)})
		require.NoError(t, err)
		assert.Equal(t, float64(1), m.Datasets())

		time.Sleep(5 * time.Millisecond)
		removed := 0
		for _, c := range svc.Caches() {
			removed += c.CleanExpired()
		}

		assert.Equal(t, 1, removed)
		assert.Equal(t, float64(0), m.Datasets())
	})

	t.Run("lookup of an expired dataset", func(t *testing.T) {
		svc, m := newShortLived()
		ds, err := svc.Ingest(ctx, Upload{Name: "s.csv", Data: []byte(statementCSV)})
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		_, err = svc.Dataset(ds.ID)

		assert.ErrorIs(t, err, core.ErrDatasetNotFound)
		assert.Equal(t, float64(0), m.Datasets())
	})
}
