package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yearend/internal/core"
)

const statementCSV = "Date,Category,Sub-Category,Charges $,Credits $\n" +
	"01/01/2024,Food,Dining,100.00,\n" +
	"15/01/2024,Food,Groceries,200.00,\n" +
	"20/01/2024,Food,Dining,50.00,10.00\n" +
	"02/02/2024,Travel,Air,\"$1,200.00\",\n" +
	"31/02/2024,Travel,Air,99.00,\n" +
	"10/03/2024,Shopping,Books,30.00,\n"

func writeStatement(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "2024.csv")
	require.NoError(t, os.WriteFile(path, []byte(statementCSV), 0o600))
	return path
}

func runJSON(t *testing.T, args ...string) summary {
	t.Helper()
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), append(args, "-json"), &stdout, &stderr), stderr.String())

	var s summary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &s))
	return s
}

func TestRunWholeFile(t *testing.T) {
	path := writeStatement(t)

	s := runJSON(t, "-file", path, "-start", "2024-01-01", "-end", "2024-01-31", "-category", "Food", "-group-by", "category")

	assert.Equal(t, 6, s.Stats.Read)
	assert.Equal(t, 1, s.Stats.BadDate)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, []summaryGroup{{Key: "Food", Charges: "350.00"}}, s.Groups)
	assert.Equal(t, "340.00", s.Net)
}

func TestRunDefaultsToEverything(t *testing.T) {
	path := writeStatement(t)

	s := runJSON(t, "-file", path)

	assert.Equal(t, "2024-01-01", s.Start)
	assert.Equal(t, "2024-03-10", s.End)
	assert.Equal(t, "sub_category", s.GroupBy)
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, "1580.00", s.Charges)
}

func TestRunStream(t *testing.T) {
	path := writeStatement(t)

	s := runJSON(t, "-file", path, "-stream", "-chunk-size", "2", "-start", "2024-01-01", "-end", "2024-12-31", "-group-by", "category")

	assert.Equal(t, 3, s.Chunks)
	assert.Equal(t, 5, s.Stats.Kept)
	assert.Equal(t, "Travel", s.Groups[0].Key)
	assert.Equal(t, "1580.00", s.Charges)
}

func TestRunTable(t *testing.T) {
	path := writeStatement(t)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"-file", path, "-group-by", "category"}, &stdout, &stderr)
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "6 rows read, 5 kept")
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "$1,200.00")
	assert.Contains(t, out, "$1,570.00")
}

func TestRunErrors(t *testing.T) {
	path := writeStatement(t)
	var verr *core.ValidationError

	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"missing file flag", []string{}, "file"},
		{"stream needs a start", []string{"-file", path, "-stream", "-end", "2024-12-31"}, "start"},
		{"reversed range", []string{"-file", path, "-start", "2024-02-01", "-end", "2024-01-01"}, "end"},
		{"bad grouping", []string{"-file", path, "-group-by", "month"}, "group_by"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, &stdout, &stderr)

			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	t.Run("unreadable file", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		err := run(context.Background(), []string{"-file", filepath.Join(t.TempDir(), "nope.csv")}, &stdout, &stderr)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
