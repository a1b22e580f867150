package usecase

import "fmt"

type ErrorCode string

const (
	ErrorUnauthenticated     ErrorCode = "UNAUTHENTICATED"
	ErrorValidation          ErrorCode = "VALIDATION_ERROR"
	ErrorNotFoundOrForbidden ErrorCode = "NOT_FOUND_OR_FORBIDDEN"
	ErrorGeneration          ErrorCode = "GENERATION_ERROR"
	ErrorDelivery            ErrorCode = "DELIVERY_ERROR"
	ErrorInternal            ErrorCode = "INTERNAL_ERROR"
)

// Error is the classified outcome of a failed operation. Code is stable and
// safe to show a client; Err carries the underlying cause for logs only.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
