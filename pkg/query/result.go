package query

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/logging"
)

// Result is the outcome of one execution. A failed execution is reported
// through Failure, never as a Go error crossing into the caller.
type Result struct {
	Success  bool            `json:"success"`
	Rows     []*Row          `json:"rows"`
	Failure  *Failure        `json:"failure,omitempty"`
	Metadata *ResultMetadata `json:"metadata,omitempty"`

	err error
}

// Failure describes why an execution did not succeed.
type Failure struct {
	Code       string                `json:"code"`
	Message    string                `json:"message"`
	Query      string                `json:"query"`
	Violations []apperrors.Violation `json:"violations,omitempty"`
}

// ResultMetadata describes how a result was produced. Timing and the
// execution ID are always present; the rest only when metadata was requested.
type ResultMetadata struct {
	Query       string    `json:"query"`
	ExecutionID uuid.UUID `json:"execution_id"`
	StartedAt   time.Time `json:"started_at"`
	ElapsedMS   int64     `json:"elapsed_ms"`
	RowCount    int       `json:"row_count"`

	TotalCount      *int64            `json:"total_count,omitempty"`
	Window          *Window           `json:"window,omitempty"`
	AppliedCriteria []AppliedCriteria `json:"applied_criteria,omitempty"`
	Filters         []Filter          `json:"filters,omitempty"`
	Sorts           []Sort            `json:"sorts,omitempty"`
	Schema          []AttributeSchema `json:"schema,omitempty"`
}

// Err returns the failure as an error: an *apperrors.ExecutionError wrapping
// the cause, or nil on success.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	return r.err
}

// Len returns the number of rows.
func (r *Result) Len() int { return len(r.Rows) }

func failed(query, code string, err error) *Result {
	f := &Failure{Code: code, Message: logging.SanitizeError(err), Query: query}
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		f.Violations = verr.Violations
	}
	return &Result{
		Failure: f,
		err:     &apperrors.ExecutionError{Query: query, Code: code, Err: err},
	}
}
