// Package errors provides the structured error taxonomy shared by the
// simulation core.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Content and rule errors
	CodeConfigInvalid Code = "CONFIG_INVALID"

	// Allocation errors
	CodeAllocationInvalid   Code = "ALLOCATION_INVALID"
	CodeUnallocatableBudget Code = "UNALLOCATABLE_BUDGET"

	// Draw errors
	CodeInsufficientPool Code = "INSUFFICIENT_POOL"

	// Session errors
	CodeInvalidState     Code = "INVALID_STATE"
	CodeSessionExists    Code = "SESSION_EXISTS"
	CodeSessionNotFound  Code = "SESSION_NOT_FOUND"
	CodeSessionAbandoned Code = "SESSION_ABANDONED"
	CodeYearCeiling      Code = "YEAR_CEILING"
)

// Fatal reports whether errors with this code must abort the current
// session rather than prompt the caller again.
func (c Code) Fatal() bool {
	switch c {
	case CodeConfigInvalid, CodeUnallocatableBudget, CodeInsufficientPool, CodeYearCeiling:
		return true
	default:
		return false
	}
}
