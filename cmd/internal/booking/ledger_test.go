package booking_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfbooking/cmd/internal/booking"
	"selfbooking/cmd/internal/domain/entity"
	"selfbooking/cmd/internal/testfixtures"
)

func TestLedger_CheckCredit(t *testing.T) {
	f := newFixture(t)
	user := f.h.SeedUser(t, testfixtures.Approved(2))
	ledger := f.engine.Ledger()
	ctx := context.Background()

	assert.NoError(t, ledger.CheckCredit(ctx, user.ID, 2))

	err := ledger.CheckCredit(ctx, user.ID, 3)
	var short *booking.InsufficientCreditsError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 2, short.Available)
	assert.Equal(t, 3, short.Requested)
	assert.ErrorIs(t, err, booking.ErrInsufficientCredits)

	assert.ErrorIs(t, ledger.CheckCredit(ctx, 9999, 1), booking.ErrNotFound)
}

func TestLedger_Debit(t *testing.T) {
	f := newFixture(t)
	user := f.h.SeedUser(t, testfixtures.Approved(3))
	ledger := f.engine.Ledger()
	repo := f.h.Bookings
	ctx := context.Background()

	// The ledger trusts the booking table for consumption, so debit against
	// real bookings to keep Verify meaningful.
	f.book(t, user, tuesday, "9:00 AM")
	f.book(t, user, tuesday, "10:00 AM")
	assert.Equal(t, 1, f.h.User(t, user.ID).RemainingCredits)

	err := repo.Transaction(ctx, func(tx booking.Repository) error {
		return ledger.Debit(ctx, tx, user.ID, 2)
	})
	assert.ErrorIs(t, err, booking.ErrInsufficientCredits)
	assert.Equal(t, 1, f.h.User(t, user.ID).RemainingCredits)

	err = repo.Transaction(ctx, func(tx booking.Repository) error {
		return ledger.Debit(ctx, tx, user.ID, 0)
	})
	assert.ErrorIs(t, err, booking.ErrInvalidInput)
}

func TestLedger_RefundCappedAtGrant(t *testing.T) {
	f := newFixture(t)
	user := f.h.SeedUser(t, testfixtures.Approved(2))
	ctx := context.Background()

	// Refunding with nothing consumed would push remaining past the grant.
	err := f.h.Bookings.Transaction(ctx, func(tx booking.Repository) error {
		return f.engine.Ledger().Refund(ctx, tx, user.ID, 1)
	})
	assert.ErrorIs(t, err, booking.ErrLedgerCorrupted)

	u := f.h.User(t, user.ID)
	assert.Equal(t, 2, u.RemainingCredits)
	assert.LessOrEqual(t, u.RemainingCredits, u.SessionsGranted)
}

func TestLedger_SetGrant(t *testing.T) {
	f := newFixture(t)
	user := f.h.SeedUser(t, testfixtures.Approved(2))
	ctx := context.Background()

	f.book(t, user, tuesday, "9:00 AM")

	u, err := f.engine.Ledger().SetGrant(ctx, user.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, u.SessionsGranted)
	assert.Equal(t, 1, u.ConsumedCredits)
	assert.Equal(t, 4, u.RemainingCredits)
	f.requireLedgerConsistent(t, user.ID)

	// Cutting the grant under current use clamps instead of going negative.
	u, err = f.engine.Ledger().SetGrant(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, u.SessionsGranted)
	assert.Equal(t, 0, u.RemainingCredits)
	f.requireLedgerConsistent(t, user.ID)

	_, err = f.engine.Ledger().SetGrant(ctx, user.ID, -1)
	assert.ErrorIs(t, err, booking.ErrInvalidInput)
}

func TestLedger_SetGrant_NotApprovedHoldsNothing(t *testing.T) {
	f := newFixture(t)
	user := f.h.SeedUser(t, testfixtures.Pending(0))

	u, err := f.engine.Ledger().SetGrant(context.Background(), user.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, u.SessionsGranted)
	assert.Equal(t, 0, u.RemainingCredits)
}

func TestLedger_ClampedGrantThenRefund(t *testing.T) {
	f := newFixture(t)
	user := f.h.SeedUser(t, testfixtures.Approved(3))
	ctx := context.Background()

	a := f.book(t, user, tuesday, "9:00 AM")
	f.book(t, user, tuesday, "10:00 AM")
	f.book(t, user, tuesday, "11:00 AM")

	_, err := f.engine.Ledger().SetGrant(ctx, user.ID, 1)
	require.NoError(t, err)

	// Three held against a grant of one: a single refund still leaves the
	// user over their grant, so nothing becomes spendable.
	_, err = f.engine.Cancel(ctx, booking.CancelRequest{BookingID: a.ID, ActorID: user.ID})
	require.NoError(t, err)

	u := f.h.User(t, user.ID)
	assert.Equal(t, 0, u.RemainingCredits)
	assert.Equal(t, 2, u.ConsumedCredits)
	f.requireLedgerConsistent(t, user.ID)
}

func TestLedger_CorruptedRowRejected(t *testing.T) {
	f := newFixture(t)
	user := f.h.SeedUser(t, testfixtures.Approved(2))
	ctx := context.Background()

	require.NoError(t, f.h.DB.Model(&entity.User{}).Where("id = ?", user.ID).
		Update("remaining_credits", 5).Error)

	err := f.engine.Ledger().CheckCredit(ctx, user.ID, 1)
	var corrupt *booking.LedgerCorruptionError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, user.ID, corrupt.UserID)
	assert.Equal(t, 5, corrupt.Remaining)

	_, err = f.engine.Create(ctx, booking.CreateRequest{UserID: user.ID, Date: tuesday, Slot: "9:00 AM"})
	assert.ErrorIs(t, err, booking.ErrLedgerCorrupted)

	// The row is left as found, not clamped.
	assert.Equal(t, 5, f.h.User(t, user.ID).RemainingCredits)

	// SetGrant is the repair path.
	u, err := f.engine.Ledger().SetGrant(ctx, user.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, u.RemainingCredits)
}

func TestLedger_Verify_DetectsDrift(t *testing.T) {
	f := newFixture(t)
	user := f.h.SeedUser(t, testfixtures.Approved(2))
	ctx := context.Background()

	b := f.book(t, user, tuesday, "9:00 AM")
	f.requireLedgerConsistent(t, user.ID)

	// Cancel behind the engine's back.
	require.NoError(t, f.h.DB.Model(&entity.Booking{}).Where("id = ?", b.ID).
		Updates(map[string]any{"status": entity.BookingCancelled, "active_key": nil}).Error)

	report, err := f.engine.Ledger().Verify(ctx, user.ID)
	assert.ErrorIs(t, err, booking.ErrLedgerCorrupted)
	require.NotNil(t, report)
	assert.Equal(t, 0, report.ConfirmedBookings)
	assert.Equal(t, 1, report.Credits.Consumed)
}

func TestLedger_Balance(t *testing.T) {
	f := newFixture(t)
	user := f.h.SeedUser(t, testfixtures.Approved(4))

	f.book(t, user, tuesday, "9:00 AM")

	credits, err := f.engine.Ledger().Balance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.Credits{Granted: 4, Remaining: 3, Consumed: 1}, credits)
}
