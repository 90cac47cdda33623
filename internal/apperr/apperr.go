// Package apperr models the closed error taxonomy spec.md §7 requires:
// InvalidInput, Conflict, NotFound, PipelineFailure, Dependency, Transient.
// It is the single boundary the HTTP layer and the orchestrator both
// switch on to map an error to an HTTP status or a Job error state.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a coarse error-kind tag.
type Code string

const (
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeConflict        Code = "CONFLICT"
	CodeNotFound        Code = "NOT_FOUND"
	CodePipelineFailure Code = "PIPELINE_ERROR"
	CodeDependency      Code = "DEPENDENCY_MISSING"
	CodeTransient       Code = "TRANSIENT"
)

// Error wraps an underlying cause with a taxonomy Code.
type Error struct {
	code Code
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func newErr(code Code, err error, format string, args ...any) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...), err: err}
}

// InvalidInput builds a 400-mapped error: schema/constraint violation.
func InvalidInput(format string, args ...any) error {
	return newErr(CodeInvalidInput, nil, format, args...)
}

// Conflict builds a 409-mapped error: operation attempted in an
// incompatible state.
func Conflict(format string, args ...any) error {
	return newErr(CodeConflict, nil, format, args...)
}

// NotFound builds a 404-mapped error: unknown id or missing file.
func NotFound(format string, args ...any) error {
	return newErr(CodeNotFound, nil, format, args...)
}

// Pipeline wraps a stage failure. The orchestrator is the only consumer;
// it never propagates to the request surface.
func Pipeline(err error, format string, args ...any) error {
	return newErr(CodePipelineFailure, err, format, args...)
}

// Dependency wraps a missing optional runtime component (e.g. the neural
// upscale backend). Callers who explicitly requested the dependent
// feature see this; otherwise it is demoted to a log warning.
func Dependency(err error, format string, args ...any) error {
	return newErr(CodeDependency, err, format, args...)
}

// Transient wraps a subprocess/engine failure another engine in a
// fallback chain can cover.
func Transient(err error, format string, args ...any) error {
	return newErr(CodeTransient, err, format, args...)
}

// CodeOf returns the taxonomy tag carried by err, defaulting to
// CodePipelineFailure for untyped errors (any stage that throws without a
// typed error is treated as a generic pipeline failure, per spec.md §7's
// propagation policy).
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.code
	}
	return CodePipelineFailure
}
