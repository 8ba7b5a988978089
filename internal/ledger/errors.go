package ledger

import (
	"errors"
	"fmt"

	"lunchbot-api/internal/common"
)

// Sentinel errors surfaced to callers as user-visible conditions. Repeat
// confirmations and repeat registrations are not errors: Confirm reports
// them on the result and Register returns the existing user.
var (
	// ErrNotConfirmed means a cancellation targeted a day the user never
	// confirmed.
	ErrNotConfirmed = errors.New("attendance not confirmed for this day")
	// ErrCutoffPassed means a same-day cancellation arrived at or after
	// the local cutoff hour.
	ErrCutoffPassed = errors.New("cancellation cutoff has passed")
	// ErrPastDay means the operation targeted a day that already ended.
	ErrPastDay = errors.New("day is in the past")
)

// LedgerError wraps a failed ledger operation with the operation name and
// the user it targeted.
type LedgerError struct {
	Op         string
	TelegramID int64
	Err        error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s for user %d: %v", e.Op, e.TelegramID, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// NewLedgerError wraps err with operation context.
func NewLedgerError(op string, telegramID int64, err error) error {
	return &LedgerError{Op: op, TelegramID: telegramID, Err: err}
}

// WrapRepositoryError wraps a store failure with the operation that hit it.
func WrapRepositoryError(err error, operation string) error {
	return common.InternalError{
		Message: fmt.Sprintf("repository operation failed: %s", operation),
		Cause:   err,
	}
}

// IsUserVisible reports whether err maps to a message shown to the user
// rather than an internal failure.
func IsUserVisible(err error) bool {
	switch {
	case errors.Is(err, ErrNotConfirmed),
		errors.Is(err, ErrCutoffPassed),
		errors.Is(err, ErrPastDay):
		return true
	}
	var validation common.ValidationError
	var notFound common.NotFoundError
	return errors.As(err, &validation) || errors.As(err, &notFound)
}
