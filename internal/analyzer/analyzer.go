// Package analyzer runs the statement pipeline for callers and memoises its
// results. A dataset is identified by the SHA-256 of its bytes: ingesting the
// same bytes twice normalises them once.
package analyzer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"yearend/internal/cache"
	"yearend/internal/core"
	"yearend/internal/log"
	"yearend/internal/metrics"
	"yearend/internal/statement"
)

const (
	cacheDatasets = "datasets"
	cacheReports  = "reports"
)

// Upload is a statement file as received from the caller.
type Upload struct {
	Name string
	Data []byte
}

// Dataset is a normalised statement held in memory. It must be treated as
// read-only once returned.
type Dataset struct {
	ID            string
	FileName      string
	Size          int
	Stats         statement.RowStats
	HasCredits    bool
	Transactions  []core.Transaction
	Categories    []string
	SubCategories []string
	MinDate       core.Date
	MaxDate       core.Date
	IngestedAt    time.Time
}

// FullRange returns the range spanning every transaction. ok is false when
// the dataset holds none.
func (d *Dataset) FullRange() (core.DateRange, bool) {
	if len(d.Transactions) == 0 {
		return core.DateRange{}, false
	}
	return core.DateRange{Start: d.MinDate, End: d.MaxDate}, true
}

// StreamReport is the outcome of a chunked analysis.
type StreamReport struct {
	Report core.Report
	Stats  statement.RowStats
	Chunks int
}

type Options struct {
	ChunkSize  int
	SampleSize int
	CacheSize  int
	CacheTTL   time.Duration
}

func DefaultOptions() Options {
	return Options{
		ChunkSize:  statement.DefaultChunkSize,
		SampleSize: statement.DefaultSampleSize,
		CacheSize:  32,
		CacheTTL:   30 * time.Minute,
	}
}

type Service struct {
	opts     Options
	logger   *log.Logger
	metrics  *metrics.Metrics
	datasets cache.Cache[*Dataset]
	reports  cache.Cache[*core.Report]
	cleaners []cache.Cleaner
	inflight singleflight.Group
	now      func() time.Time
}

// New builds a Service. logger and m may be nil.
func New(opts Options, logger *log.Logger, m *metrics.Metrics) *Service {
	def := DefaultOptions()
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = def.SampleSize
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = def.CacheSize
	}
	if logger == nil {
		logger = log.Discard()
	}
	if m == nil {
		m = metrics.New()
	}
	datasets := cache.NewLRUCache[*Dataset](cacheDatasets, opts.CacheSize, opts.CacheTTL)
	// Each dataset can carry a handful of cached reports.
	reports := cache.NewLRUCache[*core.Report](cacheReports, opts.CacheSize*8, opts.CacheTTL)

	s := &Service{
		opts:     opts,
		logger:   logger.WithComponent(log.ComponentAnalyzer),
		metrics:  m,
		datasets: datasets,
		reports:  reports,
		now:      time.Now,
	}
	s.cleaners = []cache.Cleaner{
		gaugedCleaner{Cleaner: datasets, after: s.refreshDatasets},
		reports,
	}
	return s
}

// gaugedCleaner runs after once every expiry pass of the wrapped cache.
type gaugedCleaner struct {
	cache.Cleaner
	after func()
}

func (c gaugedCleaner) CleanExpired() int {
	n := c.Cleaner.CleanExpired()
	c.after()
	return n
}

// Caches returns the memo caches so a cache.Manager can expire them.
func (s *Service) Caches() []cache.Cleaner {
	return s.cleaners
}

func (s *Service) refreshDatasets() {
	s.metrics.SetDatasets(s.datasets.Size())
}

// DatasetID is the identity of an input: the hex SHA-256 of its bytes.
func DatasetID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Ingest normalises an upload, or returns the dataset already built from
// identical bytes. Concurrent calls for the same bytes share one run.
func (s *Service) Ingest(ctx context.Context, up Upload) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := DatasetID(up.Data)

	if ds, ok := s.datasets.Get(id); ok {
		s.metrics.IncrCacheHit(cacheDatasets)
		s.logger.DebugContext(ctx, "Dataset served from cache", log.FieldDatasetID, id)
		return ds, nil
	}
	s.metrics.IncrCacheMiss(cacheDatasets)

	v, err, shared := s.inflight.Do(id, func() (any, error) {
		return s.ingest(ctx, id, up)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.DebugContext(ctx, "Ingestion shared with a concurrent caller", log.FieldDatasetID, id)
	}
	return v.(*Dataset), nil
}

func (s *Service) ingest(ctx context.Context, id string, up Upload) (*Dataset, error) {
	start := s.now()
	defer func() { s.metrics.ObserveDuration(log.OpIngest, s.now().Sub(start)) }()

	sr, err := statement.NewReader(bytes.NewReader(up.Data))
	if err != nil {
		s.fail(ctx, log.OpIngest, err, log.FieldFileName, up.Name)
		return nil, err
	}
	rows, err := sr.ReadAll()
	if err != nil {
		s.fail(ctx, log.OpIngest, err, log.FieldFileName, up.Name)
		return nil, fmt.Errorf("read statement: %w", err)
	}
	res := statement.Normalize(rows)
	res.Stats.Malformed = sr.Malformed

	ds := &Dataset{
		ID:            id,
		FileName:      up.Name,
		Size:          len(up.Data),
		Stats:         res.Stats,
		HasCredits:    sr.HasCredits(),
		Transactions:  res.Transactions,
		Categories:    core.Distinct(res.Transactions, func(t core.Transaction) string { return t.Category }),
		SubCategories: core.Distinct(res.Transactions, func(t core.Transaction) string { return t.SubCategory }),
		IngestedAt:    s.now(),
	}
	if minDate, maxDate, ok := core.Bounds(res.Transactions); ok {
		ds.MinDate, ds.MaxDate = minDate, maxDate
	}

	s.datasets.Set(id, ds)
	s.refreshDatasets()
	st := res.Stats
	s.metrics.RecordRows(st.Read, st.Kept, st.BadDate, st.BadCharge, st.Malformed)

	fields := log.NewFields().
		WithOperation(log.OpIngest).
		WithRows(st.Read, st.Kept, st.BadDate, st.BadCharge, st.Malformed)
	fields[log.FieldDatasetID] = id
	fields[log.FieldFileName] = up.Name
	fields[log.FieldBytes] = len(up.Data)
	s.logger.InfoContext(ctx, "Statement ingested", fields.ToSlice()...)

	return ds, nil
}

// Dataset returns a previously ingested dataset.
func (s *Service) Dataset(id string) (*Dataset, error) {
	ds, ok := s.datasets.Get(id)
	if !ok {
		// Get drops an expired entry on the way.
		s.refreshDatasets()
		return nil, fmt.Errorf("%w: %s", core.ErrDatasetNotFound, id)
	}
	return ds, nil
}

// Analyze filters and aggregates a dataset. The query is validated before
// anything else; identical queries on the same dataset are served from the
// report cache.
func (s *Service) Analyze(ctx context.Context, datasetID string, q core.Query) (*core.Report, error) {
	if err := q.Validate(); err != nil {
		s.fail(ctx, log.OpAnalyze, err, log.FieldDatasetID, datasetID)
		return nil, err
	}
	if q.GroupBy == "" {
		q.GroupBy = core.GroupBySubCategory
	}

	ds, err := s.Dataset(datasetID)
	if err != nil {
		s.fail(ctx, log.OpAnalyze, err, log.FieldDatasetID, datasetID)
		return nil, err
	}

	key := reportKey(datasetID, q)
	if r, ok := s.reports.Get(key); ok {
		s.metrics.IncrCacheHit(cacheReports)
		return r, nil
	}
	s.metrics.IncrCacheMiss(cacheReports)

	start := s.now()
	report, err := core.Run(ds.Transactions, q)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveDuration(log.OpAnalyze, s.now().Sub(start))
	s.reports.Set(key, &report)

	s.logger.DebugContext(ctx, "Report computed",
		log.FieldDatasetID, datasetID,
		log.FieldRangeStart, q.Range.Start.String(),
		log.FieldRangeEnd, q.Range.End.String(),
		log.FieldGroupBy, string(q.GroupBy),
		log.FieldMatched, len(report.Transactions),
	)
	return &report, nil
}

// Sample returns the categories found in the first n rows of r. n <= 0
// uses the configured sample size.
func (s *Service) Sample(ctx context.Context, r io.Reader, n int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = s.opts.SampleSize
	}
	cats, err := statement.SampleCategories(r, n)
	if err != nil {
		s.fail(ctx, log.OpSample, err)
		return nil, err
	}
	return cats, nil
}

// AnalyzeStream runs the chunked pipeline over r and aggregates the
// survivors. Nothing is cached. chunkSize <= 0 uses the configured size.
func (s *Service) AnalyzeStream(ctx context.Context, r io.Reader, q core.Query, chunkSize int) (*StreamReport, error) {
	if chunkSize <= 0 {
		chunkSize = s.opts.ChunkSize
	}
	start := s.now()

	res, err := statement.StreamFunc(ctx, r, q, chunkSize, func(i int, st statement.RowStats, kept int) {
		s.logger.DebugContext(ctx, "Chunk processed",
			log.FieldChunk, i,
			log.FieldRowsRead, st.Read,
			log.FieldRowsDropped, st.Dropped(),
			log.FieldMatched, kept,
		)
	})
	if err != nil {
		s.fail(ctx, log.OpStream, err)
		return nil, err
	}

	st := res.Stats
	s.metrics.RecordRows(st.Read, st.Kept, st.BadDate, st.BadCharge, st.Malformed)
	s.metrics.ObserveDuration(log.OpStream, s.now().Sub(start))
	s.logger.InfoContext(ctx, "Statement streamed",
		append(log.NewFields().
			WithOperation(log.OpStream).
			WithRows(st.Read, st.Kept, st.BadDate, st.BadCharge, st.Malformed).
			ToSlice(), log.FieldChunkSize, chunkSize, "chunks", res.Chunks)...,
	)

	return &StreamReport{
		Report: core.Aggregate(res.Transactions, q.GroupBy),
		Stats:  st,
		Chunks: res.Chunks,
	}, nil
}

// fail counts and logs a failed operation. Caller mistakes are logged at
// Warn, everything else at Error.
func (s *Service) fail(ctx context.Context, op string, err error, args ...any) {
	kind := ErrorType(err)
	s.metrics.IncrError(op, kind)

	fields := append([]any{log.FieldOperation, op, log.FieldErrorType, kind, log.FieldError, err.Error()}, args...)
	switch kind {
	case log.ErrorTypeInternal:
		s.logger.ErrorContext(ctx, "Pipeline operation failed", fields...)
	default:
		s.logger.WarnContext(ctx, "Pipeline operation rejected", fields...)
	}
}

// ErrorType classifies err for logs and metrics.
func ErrorType(err error) string {
	var serr *core.StructuralError
	var verr *core.ValidationError
	switch {
	case errors.As(err, &serr):
		return log.ErrorTypeStructural
	case errors.As(err, &verr):
		return log.ErrorTypeValidation
	case errors.Is(err, core.ErrDatasetNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return log.ErrorTypeTimeout
	default:
		return log.ErrorTypeInternal
	}
}

func reportKey(datasetID string, q core.Query) string {
	cats := make([]string, 0, len(q.Categories))
	for c := range q.Categories {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return strings.Join([]string{
		datasetID,
		q.Range.Start.String(),
		q.Range.End.String(),
		string(q.GroupBy),
		strings.Join(cats, "\x1f"),
	}, "\x1e")
}
