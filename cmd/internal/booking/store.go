package booking

import (
	"context"

	"selfbooking/cmd/internal/domain/entity"
)

// Credits is the ledger view of a user row.
type Credits struct {
	Granted   int
	Remaining int
	Consumed  int
}

// CreditsOf extracts the ledger fields from a user.
func CreditsOf(u *entity.User) Credits {
	return Credits{Granted: u.SessionsGranted, Remaining: u.RemainingCredits, Consumed: u.ConsumedCredits}
}

// Repository is everything the engine needs from persistent storage.
//
// Finders return (nil, nil) when the record does not exist. Writes that
// depend on a previous read are conditional: they report false instead of
// overwriting a row that changed underneath the caller.
type Repository interface {
	// Transaction runs fn against a repository bound to one storage
	// transaction. fn returning an error rolls everything back.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	FindUser(ctx context.Context, id int) (*entity.User, error)

	// SwapCredits writes next only if the row still holds prev's approval
	// state and credit fields.
	SwapCredits(ctx context.Context, prev *entity.User, next Credits, now int64) (bool, error)

	// SwapApproval moves the row from one approval state to another.
	SwapApproval(ctx context.Context, userID int, from, to entity.ApprovalState, now int64) (bool, error)

	FindBooking(ctx context.Context, id int) (*entity.Booking, error)
	FindBookingsByUser(ctx context.Context, userID int) ([]*entity.Booking, error)
	FindAllBookings(ctx context.Context) ([]*entity.Booking, error)
	FindSeries(ctx context.Context, groupID string) ([]*entity.Booking, error)

	// ConfirmedSlots returns the slot of every confirmed booking on date.
	ConfirmedSlots(ctx context.Context, date string) ([]string, error)
	CountConfirmed(ctx context.Context, userID int) (int, error)

	// InsertBookings stores all bookings or none. A confirmed (date, slot)
	// collision is reported as ErrSlotUnavailable.
	InsertBookings(ctx context.Context, bookings []*entity.Booking) error

	// CancelBooking flips a confirmed booking to cancelled. It reports false
	// when the booking was not confirmed anymore.
	CancelBooking(ctx context.Context, id int, now int64) (bool, error)

	// BlackoutsBetween returns periods overlapping [from, to].
	BlackoutsBetween(ctx context.Context, from, to string) ([]*entity.BlackoutPeriod, error)
}
