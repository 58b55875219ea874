package statement

import (
	"context"
	"errors"
	"io"
	"strings"

	"yearend/internal/core"
)

const (
	DefaultChunkSize  = 10000
	DefaultSampleSize = 500
)

// StreamResult holds the survivors of a chunked pass in input order.
type StreamResult struct {
	Transactions []core.Transaction
	Stats        RowStats
	Chunks       int
}

// ChunkFunc observes each chunk after it has been normalised and filtered.
// kept is the number of rows that survived both steps.
type ChunkFunc func(index int, stats RowStats, kept int)

// Stream reads r in chunks of chunkSize rows, normalising and filtering each
// chunk on its own, and concatenates the survivors. q is validated before
// any row is read. A non-positive chunkSize selects DefaultChunkSize.
func Stream(ctx context.Context, r io.Reader, q core.Query, chunkSize int) (StreamResult, error) {
	return StreamFunc(ctx, r, q, chunkSize, nil)
}

// StreamFunc is Stream with a per-chunk callback. fn may be nil.
func StreamFunc(ctx context.Context, r io.Reader, q core.Query, chunkSize int, fn ChunkFunc) (StreamResult, error) {
	if err := q.Validate(); err != nil {
		return StreamResult{}, err
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	sr, err := NewReader(r)
	if err != nil {
		return StreamResult{}, err
	}

	var res StreamResult
	for {
		if err := ctx.Err(); err != nil {
			return StreamResult{}, err
		}

		malformed := sr.Malformed
		rows, readErr := sr.ReadN(chunkSize)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return StreamResult{}, readErr
		}

		if len(rows) > 0 || sr.Malformed > malformed {
			chunk := Normalize(rows)
			chunk.Stats.Malformed = sr.Malformed - malformed
			kept := core.Filter(chunk.Transactions, q.Range, q.Categories)
			res.Transactions = append(res.Transactions, kept...)
			res.Stats.Add(chunk.Stats)
			if fn != nil {
				fn(res.Chunks, chunk.Stats, len(kept))
			}
			res.Chunks++
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
	}
	if res.Transactions == nil {
		res.Transactions = []core.Transaction{}
	}
	return res, nil
}

// SampleCategories returns the distinct non-empty categories among the
// first n data rows, in first-seen order. Categories that only appear later
// in the file are not returned. A non-positive n selects DefaultSampleSize.
func SampleCategories(r io.Reader, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultSampleSize
	}
	sr, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	rows, err := sr.ReadN(n)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, row := range rows {
		c := strings.TrimSpace(row.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}
