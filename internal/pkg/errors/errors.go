package errors

import "errors"

// Common application errors shared across repositories and services.
var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrValidation is returned for invalid input data.
	ErrValidation = errors.New("validation failed")

	// ErrStorage wraps persistence failures. Transient; callers may retry,
	// but it is never exposed verbatim to external clients.
	ErrStorage = errors.New("storage failure")

	// ErrDelivery wraps notifier transport failures. Logged and swallowed
	// into the generic accepted response on the issuance path.
	ErrDelivery = errors.New("delivery failure")

	// ErrDirectory wraps user-directory failures. Surfaced externally only
	// as a generic failure, never revealing whether the subject existed.
	ErrDirectory = errors.New("user directory failure")

	// ErrInvalidOrExpired is the single verification-path error exposed to
	// clients. Wrong, expired, consumed and superseded secrets all collapse
	// into it.
	ErrInvalidOrExpired = errors.New("challenge invalid or expired")

	// ErrThrottled is returned when issuance for a subject exceeds the
	// resend window. Internal only; the external response stays "accepted".
	ErrThrottled = errors.New("issuance throttled")
)
