package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := WithMetadata(CodeInvalidState, "advance not allowed", map[string]string{"phase": "terminated"})

	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("errors.Is(%v, ErrInvalidState) = false, want true", err)
	}
	if errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("errors.Is(%v, ErrSessionNotFound) = true, want false", err)
	}

	wrapped := fmt.Errorf("run: %w", err)
	if !errors.Is(wrapped, ErrInvalidState) {
		t.Fatal("expected wrapped error to match by code")
	}
	if got := CodeOf(wrapped); got != CodeInvalidState {
		t.Fatalf("CodeOf() = %s, want %s", got, CodeInvalidState)
	}
}

func TestErrorMessageIncludesSortedMetadata(t *testing.T) {
	err := WithMetadata(CodeConfigInvalid, "bad table", map[string]string{"table": "SUM", "index": "3"})
	want := "bad table (index=3, table=SUM)"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk gone")
	err := Wrap(CodeConfigInvalid, "load rules", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if got, want := err.Error(), "load rules: disk gone"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestCodeFatal(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{CodeConfigInvalid, true},
		{CodeInsufficientPool, true},
		{CodeUnallocatableBudget, true},
		{CodeYearCeiling, true},
		{CodeAllocationInvalid, false},
		{CodeInvalidState, false},
		{CodeSessionNotFound, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Fatal(); got != tt.want {
				t.Errorf("Fatal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeOfNonDomainError(t *testing.T) {
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf() = %s, want UNKNOWN", got)
	}
}
