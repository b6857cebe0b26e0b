package booking

import (
	"fmt"
	"time"
)

// Validator holds the advance-booking and cancellation-notice predicates.
// Both are pure: they see only the clock and the slot start.
type Validator interface {
	AllowBooking(now, slotStart time.Time) error
	AllowCancel(now, slotStart time.Time) error
}

// Rules is the configurable Validator. A zero Rules only refuses slots that
// have already started.
type Rules struct {
	MinLeadTime  time.Duration // earliest a slot may be booked before it starts
	MaxAdvance   time.Duration // 0 means unlimited
	CancelNotice time.Duration // minimum notice to cancel
}

func (r Rules) AllowBooking(now, slotStart time.Time) error {
	until := slotStart.Sub(now)
	if until < r.MinLeadTime {
		return fmt.Errorf("%w: slot starts in %s, bookings close %s before", ErrOutsideWindow, until.Round(time.Minute), r.MinLeadTime)
	}
	if r.MaxAdvance > 0 && until > r.MaxAdvance {
		return fmt.Errorf("%w: slot is more than %s ahead", ErrOutsideWindow, r.MaxAdvance)
	}
	return nil
}

func (r Rules) AllowCancel(now, slotStart time.Time) error {
	if until := slotStart.Sub(now); until < r.CancelNotice {
		return fmt.Errorf("%w: cancellations need %s notice", ErrOutsideWindow, r.CancelNotice)
	}
	return nil
}
