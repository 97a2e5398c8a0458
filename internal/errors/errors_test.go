package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	plain := NewValidationError("bad input")
	if plain.Error() != "VALIDATION_FAILED: bad input" {
		t.Errorf("Error() = %q", plain.Error())
	}

	cause := errors.New("connection refused")
	wrapped := NewOCRFailedError("job-1", cause)
	if wrapped.Error() != "OCR_FAILED: OCR extraction failed (caused by: connection refused)" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error does not unwrap to its cause")
	}
}

func TestCodeOf(t *testing.T) {
	if code := CodeOf(NewNotFoundError("job", "j-1")); code != ErrorNotFound {
		t.Errorf("CodeOf = %s", code)
	}
	if code := CodeOf(errors.New("plain")); code != "" {
		t.Errorf("CodeOf(plain) = %s, want empty", code)
	}
	// Codes survive fmt wrapping
	wrapped := fmt.Errorf("context: %w", NewDatabaseFailedError("j-1", errors.New("down")))
	if code := CodeOf(wrapped); code != ErrorDatabaseFailed {
		t.Errorf("CodeOf(wrapped) = %s", code)
	}
}

func TestIsRetryable(t *testing.T) {
	testCases := []struct {
		err  error
		want bool
	}{
		{NewValidationError("bad"), false},
		{NewUnsupportedFormatError("file.bmp"), false},
		{NewNotFoundError("job", "j-1"), false},
		{NewOCRFailedError("j-1", errors.New("timeout")), true},
		{NewEmbeddingFailedError(errors.New("timeout")), true},
		{NewRenderFailedError("j-1", errors.New("bad xref")), true},
		{NewStorageFailedError("j-1", errors.New("disk full")), true},
		{NewDatabaseFailedError("j-1", errors.New("down")), true},
		{errors.New("plain"), true},
	}

	for _, tc := range testCases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestToMap(t *testing.T) {
	err := NewChecksumMismatchError("/files/a.pdf", "aaa", "bbb")
	m := err.ToMap()

	if m["error_code"] != "CHECKSUM_MISMATCH" {
		t.Errorf("error_code = %v", m["error_code"])
	}
	if m["path"] != "/files/a.pdf" || m["expected"] != "aaa" || m["actual"] != "bbb" {
		t.Errorf("details = %v", m)
	}
	if _, ok := m["cause"]; ok {
		t.Error("cause present without an underlying error")
	}
}
