package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"yearend/internal/analyzer"
	"yearend/internal/core"
	"yearend/internal/log"
	"yearend/internal/statement"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Field   string   `json:"field,omitempty"`
	Missing []string `json:"missing,omitempty"`
	Header  []string `json:"header,omitempty"`
}

type datasetResponse struct {
	DatasetID     string             `json:"dataset_id"`
	FileName      string             `json:"file_name"`
	Bytes         int                `json:"bytes"`
	Stats         statement.RowStats `json:"stats"`
	HasCredits    bool               `json:"has_credits"`
	Categories    []string           `json:"categories"`
	SubCategories []string           `json:"sub_categories"`
	MinDate       *string            `json:"min_date"`
	MaxDate       *string            `json:"max_date"`
}

type groupResponse struct {
	Key     string `json:"key"`
	Charges string `json:"charges"`
}

type totalsResponse struct {
	Charges string `json:"charges"`
	Credits string `json:"credits"`
	Net     string `json:"net"`
}

type transactionResponse struct {
	Date        string `json:"date"`
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
	Charges     string `json:"charges"`
	Credits     string `json:"credits"`
}

type reportResponse struct {
	DatasetID    string                `json:"dataset_id,omitempty"`
	Start        string                `json:"start"`
	End          string                `json:"end"`
	Categories   []string              `json:"categories"`
	GroupBy      string                `json:"group_by"`
	Count        int                   `json:"count"`
	Totals       totalsResponse        `json:"totals"`
	Groups       []groupResponse       `json:"groups"`
	Transactions []transactionResponse `json:"transactions"`

	// Set by the chunked endpoint only.
	Stats  *statement.RowStats `json:"stats,omitempty"`
	Chunks int                 `json:"chunks,omitempty"`
}

type sampleResponse struct {
	Categories []string `json:"categories"`
	SampleSize int      `json:"sample_size"`
}

func newDatasetResponse(ds *analyzer.Dataset) datasetResponse {
	resp := datasetResponse{
		DatasetID:     ds.ID,
		FileName:      ds.FileName,
		Bytes:         ds.Size,
		Stats:         ds.Stats,
		HasCredits:    ds.HasCredits,
		Categories:    ds.Categories,
		SubCategories: ds.SubCategories,
	}
	if full, ok := ds.FullRange(); ok {
		minDate, maxDate := full.Start.String(), full.End.String()
		resp.MinDate, resp.MaxDate = &minDate, &maxDate
	}
	return resp
}

func newReportResponse(q core.Query, report *core.Report) reportResponse {
	cats := make([]string, 0, len(q.Categories))
	for c := range q.Categories {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	groups := make([]groupResponse, 0, len(report.Aggregate.Groups))
	for _, g := range report.Aggregate.Groups {
		groups = append(groups, groupResponse{Key: g.Key, Charges: core.FormatAmount(g.Charges)})
	}

	txs := make([]transactionResponse, 0, len(report.Transactions))
	for _, t := range report.Transactions {
		txs = append(txs, transactionResponse{
			Date:        t.Date.String(),
			Category:    t.Category,
			SubCategory: t.SubCategory,
			Charges:     core.FormatAmount(t.ChargeAmount),
			Credits:     core.FormatAmount(t.CreditAmount),
		})
	}

	return reportResponse{
		Start:      q.Range.Start.String(),
		End:        q.Range.End.String(),
		Categories: cats,
		GroupBy:    string(report.Aggregate.GroupBy),
		Count:      len(report.Transactions),
		Totals: totalsResponse{
			Charges: core.FormatAmount(report.Totals.Charges),
			Credits: core.FormatAmount(report.Totals.Credits),
			Net:     core.FormatAmount(report.Totals.Net),
		},
		Groups:       groups,
		Transactions: txs,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and JSON body. Unexpected errors
// are logged and hidden from the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var serr *core.StructuralError
	var verr *core.ValidationError
	switch {
	case errors.As(err, &serr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: serr.Error(), Missing: serr.Missing, Header: serr.Header})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, core.ErrDatasetNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "dataset not found; upload the statement again"})
	case isTooLarge(err):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: errUploadTooLarge.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "request cancelled"})
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeInternal,
			log.FieldPath, r.URL.Path,
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
