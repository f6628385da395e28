package resilience

import "errors"

// The fleet's external-call error taxonomy. Every client package returns
// one of these wrapper kinds (or a plain TransientError) rather than a bare
// error, so pipelines can decide retry/skip/abort behavior uniformly.

// AuthExpiredError indicates a tenant's OAuth token was rejected and needs
// a refresh before the call can be retried.
type AuthExpiredError struct {
	Err      error
	TenantID string
}

func (e *AuthExpiredError) Error() string { return e.Err.Error() }
func (e *AuthExpiredError) Unwrap() error { return e.Err }

func NewAuthExpiredError(tenantID string, err error) *AuthExpiredError {
	return &AuthExpiredError{Err: err, TenantID: tenantID}
}

// QuotaExceededError indicates an API quota or rate ceiling was hit that a
// simple retry will not clear within the run; the caller should skip the
// remaining work for that host/tenant this invocation.
type QuotaExceededError struct {
	Err     error
	RetryAt string // opaque hint from the upstream Retry-After-style header, if present
}

func (e *QuotaExceededError) Error() string { return e.Err.Error() }
func (e *QuotaExceededError) Unwrap() error { return e.Err }

func NewQuotaExceededError(err error, retryAt string) *QuotaExceededError {
	return &QuotaExceededError{Err: err, RetryAt: retryAt}
}

// NotFoundError indicates the referenced remote entity (product, campaign,
// collection) no longer exists; callers generally treat this as "skip and
// log" rather than "retry".
type NotFoundError struct {
	Err error
}

func (e *NotFoundError) Error() string { return e.Err.Error() }
func (e *NotFoundError) Unwrap() error { return e.Err }

func NewNotFoundError(err error) *NotFoundError {
	return &NotFoundError{Err: err}
}

// ValidationError indicates a locally-hydrated record failed a required
// field check before any remote call was made.
type ValidationError struct {
	Err   error
	Field string
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Err: err, Field: field}
}

// FatalError indicates the run cannot make further progress and the
// invoking pipeline should abort immediately rather than continue to the
// next tenant/item.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

func NewFatalError(err error) *FatalError {
	return &FatalError{Err: err}
}

// Kind classifies an error into one of the six named kinds for logging
// and metadata purposes. Unrecognized errors classify as "unknown".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var te *TransientError
	var ae *AuthExpiredError
	var qe *QuotaExceededError
	var ne *NotFoundError
	var ve *ValidationError
	var fe *FatalError
	switch {
	case errors.As(err, &ae):
		return "auth_expired"
	case errors.As(err, &qe):
		return "quota_exceeded"
	case errors.As(err, &ne):
		return "not_found"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &fe):
		return "fatal"
	case errors.As(err, &te):
		return "transient"
	case IsTransient(err):
		return "transient"
	default:
		return "unknown"
	}
}

// IsFatal reports whether the run should abort entirely rather than skip
// the current item and continue.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
