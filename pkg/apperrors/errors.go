package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrConflict                = errors.New("conflict")
	ErrDuplicateQuery          = errors.New("query already registered")
	ErrUnknownQuery            = errors.New("unknown query")
	ErrNotSingleRow            = errors.New("query returned more than one row")
	ErrSingleLookupUnsupported = errors.New("query has no single-row lookup criteria")
	ErrMetadataUnavailable     = errors.New("column metadata unavailable")
)

// DefinitionError reports every problem found while registering a query definition.
type DefinitionError struct {
	Query    string
	Problems []string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("invalid query definition %q: %s", e.Query, strings.Join(e.Problems, "; "))
}

// Violation codes reported by request validation.
const (
	CodeMissingParameter    = "missing_parameter"
	CodeInvalidParameter    = "invalid_parameter"
	CodeUnknownAttribute    = "unknown_attribute"
	CodeNotFilterable       = "not_filterable"
	CodeUnsupportedOperator = "unsupported_operator"
	CodeNotSortable         = "not_sortable"
	CodeInvalidSort         = "invalid_sort"
	CodePageSizeExceeded    = "page_size_exceeded"
	CodeInvalidWindow       = "invalid_window"
	CodeInvalidFilter       = "invalid_filter"
	CodeSuspiciousValue     = "suspicious_value"
)

// Violation is a single problem with an execution request.
type Violation struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every violation found for one execution request.
type ValidationError struct {
	Query      string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return fmt.Sprintf("validation failed for query %q (%d violations): %s",
		e.Query, len(e.Violations), strings.Join(msgs, "; "))
}

// Execution failure codes.
const (
	CodeValidationFailed = "validation_failed"
	CodeBuildFailed      = "build_failed"
	CodeMetadataFailed   = "metadata_failed"
	CodeExecutionFailed  = "execution_failed"
	CodeProcessorFailed  = "processor_failed"
	CodeTimeout          = "timeout"
)

// ExecutionError wraps a failure that happened while running a named query.
type ExecutionError struct {
	Query string
	Code  string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query %q failed (%s): %v", e.Query, e.Code, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
