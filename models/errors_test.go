package models

import (
	"errors"
	"strings"
	"testing"
)

func TestCaptureErrorFormatting(t *testing.T) {
	inner := errors.New("net::ERR_NAME_NOT_RESOLVED")
	err := NewCaptureError(ErrCodeConnection, "could not connect", inner)

	msg := err.Error()
	if !strings.Contains(msg, ErrCodeConnection) || !strings.Contains(msg, "could not connect") {
		t.Errorf("unexpected error string: %q", msg)
	}
	if !errors.Is(err, inner) {
		t.Error("wrapped error not reachable via errors.Is")
	}

	bare := NewCaptureError(ErrCodeInvalidInput, "missing url", nil)
	if strings.Contains(bare.Error(), "<nil>") {
		t.Errorf("nil inner error leaked into message: %q", bare.Error())
	}
}

func TestCaptureErrorToDetail(t *testing.T) {
	err := NewCaptureError(ErrCodeTimeout, "page load exceeded deadline", errors.New("context deadline exceeded"))
	detail := err.ToDetail()

	if detail.Code != ErrCodeTimeout {
		t.Errorf("detail code = %q, want %q", detail.Code, ErrCodeTimeout)
	}
	if detail.Message != "page load exceeded deadline" {
		t.Errorf("detail message = %q", detail.Message)
	}
}
