package errno

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWithMessageKeepsIdentity(t *testing.T) {
	err := ErrTargetNotSmaller.WithMessage("File size is lower than target size: %dMB", 9)
	if !errors.Is(err, ErrTargetNotSmaller) {
		t.Fatalf("copy should match the base value")
	}
	if errors.Is(err, ErrCodecInvalid) {
		t.Fatalf("copy must not match other codes")
	}
	if err.HTTPStatus != http.StatusBadRequest || err.Error() != "File size is lower than target size: 9MB" {
		t.Fatalf("unexpected copy %+v", err)
	}
}

func TestFrom(t *testing.T) {
	wrapped := fmt.Errorf("ffprobe /tmp/x: exit status 1: %w", ErrProbeFailed)
	if got := From(wrapped); got != ErrProbeFailed {
		t.Fatalf("expected ErrProbeFailed, got %v", got)
	}
	if got := From(errors.New("plain")); got != ErrInternalServer {
		t.Fatalf("expected internal error fallback, got %v", got)
	}
	if got := From(nil); got != OK {
		t.Fatalf("expected OK for nil, got %v", got)
	}
}
