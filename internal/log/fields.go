package log

// Field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"

	FieldDatasetID     = "dataset_id"
	FieldFileName      = "file_name"
	FieldBytes         = "bytes"
	FieldRowsRead      = "rows_read"
	FieldRowsKept      = "rows_kept"
	FieldRowsBadDate   = "rows_bad_date"
	FieldRowsBadCharge = "rows_bad_charge"
	FieldRowsMalformed = "rows_malformed"
	FieldRowsDropped   = "rows_dropped"
	FieldChunk         = "chunk"
	FieldChunkSize     = "chunk_size"
	FieldMatched       = "matched"
	FieldCategories    = "categories"
	FieldGroupBy       = "group_by"
	FieldRangeStart    = "start"
	FieldRangeEnd      = "end"
	FieldCached        = "cached"
)

// Component names.
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentAnalyzer = "analyzer"
	ComponentCache    = "cache"
	ComponentCLI      = "cli"
)

// Operation names.
const (
	OpIngest   = "ingest"
	OpAnalyze  = "analyze"
	OpSample   = "sample"
	OpStream   = "stream"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// Error type categories.
const (
	ErrorTypeStructural = "structural_error"
	ErrorTypeValidation = "validation_error"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeTimeout    = "timeout_error"
	ErrorTypeInternal   = "internal_error"
)

// LogFields builds a set of attributes fluently.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRows adds the row counters of one ingestion.
func (f LogFields) WithRows(read, kept, badDate, badCharge, malformed int) LogFields {
	f[FieldRowsRead] = read
	f[FieldRowsKept] = kept
	f[FieldRowsBadDate] = badDate
	f[FieldRowsBadCharge] = badCharge
	f[FieldRowsMalformed] = malformed
	return f
}

// WithHTTPRequest adds HTTP request fields.
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields.
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts the fields to slog's alternating key/value form.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
