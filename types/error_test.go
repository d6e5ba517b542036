package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	e := NewError(ErrQueryFailed, "query execution failed")
	if e.Error() != "[QUERY_FAILED] query execution failed" {
		t.Errorf("unexpected error string: %s", e.Error())
	}

	cause := errors.New("connection refused")
	e = e.WithCause(cause)
	if e.Error() != "[QUERY_FAILED] query execution failed: connection refused" {
		t.Errorf("unexpected error string with cause: %s", e.Error())
	}
	if !errors.Is(e, cause) {
		t.Error("expected errors.Is to match the cause")
	}
}

func TestIsRetryable(t *testing.T) {
	e := NewError(ErrCompletionUnavailable, "upstream 503").WithRetryable(true)
	if !IsRetryable(e) {
		t.Error("expected retryable")
	}

	wrapped := fmt.Errorf("chat step: %w", e)
	if !IsRetryable(wrapped) {
		t.Error("expected retryable through wrapping")
	}

	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors are not retryable")
	}
}

func TestGetErrorCode(t *testing.T) {
	e := NewError(ErrUnknownStep, "no executor for step classify")
	if GetErrorCode(e) != ErrUnknownStep {
		t.Errorf("unexpected code: %s", GetErrorCode(e))
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Error("plain errors have no code")
	}
}

func TestIsDefinitionError(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want bool
	}{
		{ErrDuplicateWorkflow, true},
		{ErrUnknownWorkflow, true},
		{ErrUnknownStep, true},
		{ErrUnroutableDecision, true},
		{ErrStepBudgetExceeded, true},
		{ErrQueryFailed, false},
		{ErrCompletionUnavailable, false},
	}
	for _, tc := range cases {
		e := NewError(tc.code, "x")
		if got := IsDefinitionError(e); got != tc.want {
			t.Errorf("IsDefinitionError(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
}
