package booking

import (
	"errors"
	"fmt"
)

// Sentinel errors, use with errors.Is. The first eight are the base kinds.
// ErrDateNotBookable, ErrOutsideWindow and ErrLedgerCorrupted are kinds of
// their own; ErrDateInPast, ErrDayClosed and ErrInvalidTransition refine
// another sentinel.
var (
	ErrNotApproved         = errors.New("account is not approved")
	ErrBlackoutConflict    = errors.New("date falls within a blackout period")
	ErrSlotUnavailable     = errors.New("slot is already booked")
	ErrInsufficientCredits = errors.New("insufficient session credits")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("concurrent modification, retry")
	ErrForbidden           = errors.New("caller may not act on this booking")

	// ErrDateNotBookable covers past dates and closed weekdays.
	ErrDateNotBookable = errors.New("date is not bookable")
	ErrDateInPast      = fmt.Errorf("%w: date is in the past", ErrDateNotBookable)
	ErrDayClosed       = fmt.Errorf("%w: weekday is closed", ErrDateNotBookable)

	// ErrInvalidTransition is a move missing from a transition table.
	ErrInvalidTransition = fmt.Errorf("%w: transition not allowed", ErrInvalidInput)

	// ErrOutsideWindow is returned by the booking/cancellation window rules.
	ErrOutsideWindow = errors.New("outside the allowed booking window")

	// ErrLedgerCorrupted marks a credit row that violates the ledger
	// invariants. It is never repaired in place.
	ErrLedgerCorrupted = errors.New("session ledger invariant violated")
)

// invalidInput wraps ErrInvalidInput with a description of the bad field.
func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// InsufficientCreditsError carries the balance that failed a credit check.
type InsufficientCreditsError struct {
	UserID    int
	Available int
	Requested int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient session credits: user %d has %d, needs %d",
		e.UserID, e.Available, e.Requested)
}

func (e *InsufficientCreditsError) Unwrap() error { return ErrInsufficientCredits }

// BlackoutError names the blackout period that closed a date.
type BlackoutError struct {
	Date     string
	PeriodID int
	Reason   string
}

func (e *BlackoutError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is blacked out (period %d)", e.Date, e.PeriodID)
	}
	return fmt.Sprintf("%s is blacked out (period %d): %s", e.Date, e.PeriodID, e.Reason)
}

func (e *BlackoutError) Unwrap() error { return ErrBlackoutConflict }

// SeriesError reports the first occurrence of a recurring series that failed
// its checks. Index is zero-based, matching Booking.SeriesIndex. Nothing from
// the series was persisted.
type SeriesError struct {
	Index int
	Date  string
	Err   error
}

func (e *SeriesError) Error() string {
	return fmt.Sprintf("series occurrence %d (%s): %v", e.Index, e.Date, e.Err)
}

func (e *SeriesError) Unwrap() error { return e.Err }

// RescheduleError is returned when the original booking was cancelled (and
// refunded) but the replacement could not be created. The caller must retry
// the create on its own; the original slot is not restored.
type RescheduleError struct {
	CancelledID int
	Err         error
}

func (e *RescheduleError) Error() string {
	return fmt.Sprintf("booking %d was cancelled but the new booking failed: %v", e.CancelledID, e.Err)
}

func (e *RescheduleError) Unwrap() error { return e.Err }

// LedgerCorruptionError describes which invariant a credit row broke.
type LedgerCorruptionError struct {
	UserID int
	Credits
	Detail string
}

func (e *LedgerCorruptionError) Error() string {
	return fmt.Sprintf("ledger corrupted for user %d (granted=%d remaining=%d consumed=%d): %s",
		e.UserID, e.Granted, e.Remaining, e.Consumed, e.Detail)
}

func (e *LedgerCorruptionError) Unwrap() error { return ErrLedgerCorrupted }

// IsRetryable reports whether repeating the same call may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError reports whether the failure is caused by the request itself
// and will keep failing until the input or account state changes.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotApproved) ||
		errors.Is(err, ErrBlackoutConflict) ||
		errors.Is(err, ErrSlotUnavailable) ||
		errors.Is(err, ErrInsufficientCredits) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrDateNotBookable) ||
		errors.Is(err, ErrOutsideWindow)
}
