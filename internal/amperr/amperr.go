// Package amperr defines the abstract error kinds shared across the agent,
// grounded in the teacher's per-package typed-error idiom (commbus.CommBusError
// and friends): one Error type carrying a Kind, a message and an optional
// cause, so callers can use Is (or errors.As and the Kind field) to branch
// on kind instead of matching strings.
package amperr

import "fmt"

// Kind is one of the abstract error categories from spec section 7.
type Kind string

const (
	KindUsage            Kind = "usage"
	KindTransport         Kind = "transport"
	KindCbor              Kind = "cbor"
	KindVersion           Kind = "version"
	KindNotFound          Kind = "not_found"
	KindTypeMismatch      Kind = "type_mismatch"
	KindCoercion          Kind = "coercion"
	KindInvalidArguments  Kind = "invalid_arguments"
	KindConstraintViolation Kind = "constraint_violation"
	KindEval              Kind = "eval"
	KindAccessDenied      Kind = "access_denied"
	KindBuildCapability   Kind = "build_capability"
	KindInternal          Kind = "internal"
)

// Error is the base error type for all agent errors.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind, wrapping a cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is an *Error of the given kind, unwrapping as
// needed.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// AggregateError aggregates multiple errors, grounded in the teacher's
// kernel.ShutdownError (collect per-item failures, report a summary,
// support errors.Unwrap to the first failure).
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors, first: %v", len(e.Errors), e.Errors[0])
}

func (e *AggregateError) Unwrap() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}
