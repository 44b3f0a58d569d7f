package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		exit      int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, exit: 2, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, exit: 1, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, exit: 1, publicMsg: "conflict detected"},
		{code: CodeIO, status: http.StatusInternalServerError, exit: 1, publicMsg: "i/o failure", detailsOK: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, exit: 3, publicMsg: "dependency error", retryable: true, detailsOK: true},
		{code: CodeUnavailable, status: http.StatusServiceUnavailable, exit: 4, publicMsg: "dependency unreachable", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, exit: 1, publicMsg: "internal error", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.ExitStatus != tt.exit {
			t.Fatalf("code %s expected exit %d got %d", tt.code, tt.exit, meta.ExitStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
	if meta.ExitStatus != 1 {
		t.Fatalf("expected exit 1, got %d", meta.ExitStatus)
	}
}

func TestExitStatusFor(t *testing.T) {
	if got := ExitStatusFor(nil); got != 0 {
		t.Fatalf("nil error should exit 0, got %d", got)
	}
	if got := ExitStatusFor(stdErrors.New("boom")); got != 1 {
		t.Fatalf("untyped error should exit 1, got %d", got)
	}
	if got := ExitStatusFor(New(CodeValidation, "bad plate")); got != 2 {
		t.Fatalf("validation error should exit 2, got %d", got)
	}
	if got := ExitStatusFor(Wrap(CodeUnavailable, stdErrors.New("refused"), "rdw fetch")); got != 4 {
		t.Fatalf("unavailable error should exit 4, got %d", got)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing watermark")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing watermark" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "watermark"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeIO, cause, "read trips file")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeIO {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeConflict, "run already in progress")
	if got := As(err); got == nil || got.Code() != CodeConflict {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}
