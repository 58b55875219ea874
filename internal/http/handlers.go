package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleUpload ingests a statement and describes the resulting dataset.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	up, err := ReadUpload(w, r, s.opts.MaxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ds, err := s.svc.Ingest(r.Context(), up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newDatasetResponse(ds))
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.svc.Dataset(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDatasetResponse(ds))
}

// handleReport filters and aggregates an ingested dataset. Omitting both
// start and end selects the dataset's full range.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ds, err := s.svc.Dataset(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	defaults := QueryDefaults{AllCategories: ds.Categories}
	if full, ok := ds.FullRange(); ok {
		defaults.Range = &full
	}
	q, err := ParseQuery(r.URL.Query(), defaults)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.svc.Analyze(r.Context(), id, q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := newReportResponse(q, report)
	resp.DatasetID = id
	writeJSON(w, http.StatusOK, resp)
}

// handleSample lists the categories found in the first rows of an upload.
// The rest of the body is never read.
func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	size, err := parsePositiveInt(r.URL.Query(), "size")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if size == 0 {
		size = s.opts.SampleSize
	}
	_, part, err := OpenUpload(w, r, s.opts.MaxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer part.Close()

	cats, err := s.svc.Sample(r.Context(), part, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sampleResponse{Categories: cats, SampleSize: size})
}

// handleStream runs the chunked pipeline over an upload as it is received.
// The query is checked before the body is read.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q, err := ParseQuery(params, QueryDefaults{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	chunkSize, err := parsePositiveInt(params, "chunk_size")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if chunkSize == 0 {
		chunkSize = s.opts.ChunkSize
	}

	_, part, err := OpenUpload(w, r, s.opts.MaxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer part.Close()

	res, err := s.svc.AnalyzeStream(r.Context(), part, q, chunkSize)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := newReportResponse(q, &res.Report)
	resp.Stats = &res.Stats
	resp.Chunks = res.Chunks
	writeJSON(w, http.StatusOK, resp)
}
