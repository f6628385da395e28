package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind_AuthExpired(t *testing.T) {
	err := NewAuthExpiredError("tenant-1", errors.New("token rejected"))
	if got := Kind(err); got != "auth_expired" {
		t.Errorf("Kind() = %q, want auth_expired", got)
	}
}

func TestKind_QuotaExceeded(t *testing.T) {
	err := NewQuotaExceededError(errors.New("rate limited"), "60")
	if got := Kind(err); got != "quota_exceeded" {
		t.Errorf("Kind() = %q, want quota_exceeded", got)
	}
}

func TestKind_NotFound(t *testing.T) {
	err := NewNotFoundError(errors.New("product gone"))
	if got := Kind(err); got != "not_found" {
		t.Errorf("Kind() = %q, want not_found", got)
	}
}

func TestKind_Validation(t *testing.T) {
	err := NewValidationError("tenant_id", errors.New("missing required field"))
	if got := Kind(err); got != "validation" {
		t.Errorf("Kind() = %q, want validation", got)
	}
}

func TestKind_Fatal(t *testing.T) {
	err := NewFatalError(errors.New("store unreachable"))
	if got := Kind(err); got != "fatal" {
		t.Errorf("Kind() = %q, want fatal", got)
	}
}

func TestKind_Transient(t *testing.T) {
	err := NewTransientError(errors.New("503"), 503)
	if got := Kind(err); got != "transient" {
		t.Errorf("Kind() = %q, want transient", got)
	}
}

func TestKind_WrappedPreservesKind(t *testing.T) {
	inner := NewNotFoundError(errors.New("campaign missing"))
	wrapped := fmt.Errorf("adplatform: %w", inner)
	if got := Kind(wrapped); got != "not_found" {
		t.Errorf("Kind() = %q, want not_found", got)
	}
}

func TestKind_Unknown(t *testing.T) {
	err := errors.New("something weird")
	if got := Kind(err); got != "unknown" {
		t.Errorf("Kind() = %q, want unknown", got)
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(NewFatalError(errors.New("boom"))) {
		t.Error("expected FatalError to be fatal")
	}
	if IsFatal(errors.New("boom")) {
		t.Error("expected plain error to not be fatal")
	}
}
