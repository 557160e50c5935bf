package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs)
	Metadata map[string]string // Offending field, expected and actual values
	Cause    error             // Wrapped underlying error
}

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrConfigInvalid       = New(CodeConfigInvalid, "invalid configuration")
	ErrAllocationInvalid   = New(CodeAllocationInvalid, "invalid allocation")
	ErrUnallocatableBudget = New(CodeUnallocatableBudget, "budget cannot be allocated")
	ErrInsufficientPool    = New(CodeInsufficientPool, "pool too small for draw")
	ErrInvalidState        = New(CodeInvalidState, "operation not allowed in current state")
	ErrSessionExists       = New(CodeSessionExists, "session already exists")
	ErrSessionNotFound     = New(CodeSessionNotFound, "session not found")
	ErrSessionAbandoned    = New(CodeSessionAbandoned, "session abandoned")
	ErrYearCeiling         = New(CodeYearCeiling, "year ceiling reached")
)

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Metadata) == 0 {
		if e.Cause != nil {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}

	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(e.Message)
	b.WriteString(" (")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%s", k, e.Metadata[k])
	}
	b.WriteString(")")
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata describing the failure.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the code of the first domain error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
