package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"yearend/internal/analyzer"
	"yearend/internal/core"
)

// errUploadTooLarge marks a body over the configured upload limit.
var errUploadTooLarge = errors.New("upload exceeds size limit")

// QueryDefaults supplies values for omitted query parameters.
type QueryDefaults struct {
	// Range is used when both start and end are omitted.
	Range *core.DateRange
	// AllCategories is selected by all_categories=true.
	AllCategories []string
}

// ParseQuery builds a core.Query from URL parameters: start and end as
// YYYY-MM-DD, repeated category values, all_categories and group_by. The
// result is validated.
func ParseQuery(values url.Values, defaults QueryDefaults) (core.Query, error) {
	var q core.Query

	start := strings.TrimSpace(values.Get("start"))
	end := strings.TrimSpace(values.Get("end"))
	if start == "" && end == "" && defaults.Range != nil {
		q.Range = *defaults.Range
	} else {
		var err error
		if q.Range.Start, err = parseDateParam("start", start); err != nil {
			return core.Query{}, err
		}
		if q.Range.End, err = parseDateParam("end", end); err != nil {
			return core.Query{}, err
		}
	}

	names := values["category"]
	if all, _ := strconv.ParseBool(values.Get("all_categories")); all {
		names = append(names, defaults.AllCategories...)
	}
	q.Categories = core.NewCategoryFilter(names...)

	groupBy, err := core.ParseGroupBy(values.Get("group_by"))
	if err != nil {
		return core.Query{}, err
	}
	q.GroupBy = groupBy

	if err := q.Validate(); err != nil {
		return core.Query{}, err
	}
	return q, nil
}

func parseDateParam(field, v string) (core.Date, error) {
	if v == "" {
		return core.Date{}, &core.ValidationError{Field: field, Message: field + " date is required"}
	}
	d, err := core.ParseISODate(v)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: field, Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", v)}
	}
	return d, nil
}

// parsePositiveInt reads an optional integer parameter. Missing yields 0.
func parsePositiveInt(values url.Values, field string) (int, error) {
	v := strings.TrimSpace(values.Get(field))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, &core.ValidationError{Field: field, Message: "must be a positive integer"}
	}
	return n, nil
}

// ReadUpload reads the multipart "file" field into memory, enforcing
// maxBytes on the whole body. Ingestion needs every byte to derive the
// dataset identity.
func ReadUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (analyzer.Upload, error) {
	name, part, err := OpenUpload(w, r, maxBytes)
	if err != nil {
		return analyzer.Upload{}, err
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		if isTooLarge(err) {
			return analyzer.Upload{}, errUploadTooLarge
		}
		return analyzer.Upload{}, fmt.Errorf("read upload: %w", err)
	}
	return analyzer.Upload{Name: name, Data: data}, nil
}

// OpenUpload positions the request body on the multipart "file" part and
// returns it unread, so callers can consume the statement as it arrives.
// The body is capped at maxBytes; reading past the cap fails with
// *http.MaxBytesError. The caller closes the part.
func OpenUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (string, *multipart.Part, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		return "", nil, &core.ValidationError{Field: "file", Message: "expected a multipart/form-data upload"}
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, &core.ValidationError{Field: "file", Message: "file field is required"}
		}
		if err != nil {
			if isTooLarge(err) {
				return "", nil, errUploadTooLarge
			}
			return "", nil, &core.ValidationError{Field: "file", Message: "malformed multipart body"}
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		name := filepath.Base(part.FileName())
		if ext := strings.ToLower(filepath.Ext(name)); ext != ".csv" && ext != ".txt" {
			part.Close()
			return "", nil, &core.ValidationError{Field: "file", Message: "only CSV files are accepted"}
		}
		return name, part, nil
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.Is(err, errUploadTooLarge) || errors.As(err, &maxErr) ||
		strings.Contains(err.Error(), "request body too large")
}
