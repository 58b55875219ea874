package core

import (
	"fmt"
	"strings"
)

// StructuralError reports required columns absent from a statement header.
// It aborts the whole ingestion.
type StructuralError struct {
	Missing []string
	Header  []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("statement is missing required columns: %s (got headers=%v)", strings.Join(e.Missing, ", "), e.Header)
}

// ValidationError indicates caller-supplied filter parameters are unusable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}
