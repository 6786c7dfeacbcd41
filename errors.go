package raggo

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when the engine is used after Close.
	ErrClosed = errors.New("engine is closed")

	// ErrEmptyQuery is returned when the query text is empty.
	ErrEmptyQuery = errors.New("query text must not be empty")

	// ErrIndexUnavailable is returned when both retrieval signals failed.
	// A single failing signal degrades to single-signal retrieval instead.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrGenerationFailure is returned when the generation capability
	// failed after the configured retry.
	ErrGenerationFailure = errors.New("generation failure")

	// ErrStageTimeout is returned when a mandatory stage exceeded its
	// time budget. Optional stages degrade instead.
	ErrStageTimeout = errors.New("stage timeout")
)

// Stable error codes surfaced on user-visible failures.
const (
	CodeIndexUnavailable  = "INDEX_UNAVAILABLE"
	CodeGenerationFailure = "GENERATION_FAILURE"
	CodeTimeout           = "TIMEOUT"
	CodeCanceled          = "CANCELED"
	CodeInvalidQuery      = "INVALID_QUERY"
	CodeInternal          = "INTERNAL"
)

// QueryError is the user-visible failure of a query. It names the stage that
// failed and carries a stable code for programmatic handling.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type QueryError struct {
	Code  string
	Stage Stage
	cause error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed in stage %s (%s): %v", e.Stage, e.Code, e.cause)
}

func (e *QueryError) Unwrap() error { return e.cause }

// translateError normalizes a stage failure into a QueryError with a stable
// code. Context errors map to TIMEOUT/CANCELED regardless of stage.
func translateError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}

	code := CodeInternal
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrStageTimeout):
		code = CodeTimeout
	case errors.Is(err, context.Canceled):
		code = CodeCanceled
	case errors.Is(err, ErrIndexUnavailable):
		code = CodeIndexUnavailable
	case errors.Is(err, ErrGenerationFailure):
		code = CodeGenerationFailure
	case errors.Is(err, ErrEmptyQuery):
		code = CodeInvalidQuery
	case stage == StageAwaitingGeneration:
		code = CodeGenerationFailure
		err = fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	case stage == StageRetrieving:
		code = CodeIndexUnavailable
		err = fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}

	return &QueryError{Code: code, Stage: stage, cause: err}
}
