package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"selfbooking/cmd/internal/booking"
	"selfbooking/cmd/internal/domain/entity"
	"selfbooking/cmd/internal/testfixtures"
)

// The reference clock is Monday 2025-03-03 08:00 UTC.
const (
	today    = "2025-03-03"
	tuesday  = "2025-03-04"
	saturday = "2025-03-08"
	lastWeek = "2025-02-24"
)

type fixture struct {
	engine   *booking.Engine
	h        *testfixtures.Harness
	clock    *testfixtures.Clock
	notifier *testfixtures.Recorder
}

func newFixture(t *testing.T, mutate ...func(*booking.Config)) *fixture {
	t.Helper()

	h := testfixtures.NewHarness(t)
	clock := testfixtures.NewClock(time.Time{})
	rec := &testfixtures.Recorder{}
	cfg := booking.Config{
		Location:     time.UTC,
		Notifier:     rec,
		DefaultGrant: 4,
		Now:          clock.Now,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	engine, err := booking.New(h.Bookings, cfg)
	require.NoError(t, err)
	return &fixture{engine: engine, h: h, clock: clock, notifier: rec}
}

func (f *fixture) book(t *testing.T, user *entity.User, date, slot string) *entity.Booking {
	t.Helper()
	b, err := f.engine.Create(context.Background(), booking.CreateRequest{UserID: user.ID, Date: date, Slot: slot})
	require.NoError(t, err)
	return b
}

// requireLedgerConsistent checks remaining = granted - confirmed for an
// approved user, and that the engine's own checker agrees.
func (f *fixture) requireLedgerConsistent(t *testing.T, userID int) {
	t.Helper()

	report, err := f.engine.Ledger().Verify(context.Background(), userID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, report.Credits.Remaining, 0)
	require.LessOrEqual(t, report.Credits.Remaining, report.Credits.Granted)
	require.Equal(t, report.ConfirmedBookings, report.Credits.Consumed)
	if report.ApprovalState == entity.ApprovalApproved {
		require.Equal(t, max(0, report.Credits.Granted-report.ConfirmedBookings), report.Credits.Remaining)
	}
}

func weekAfter(date string, weeks int) string {
	d, _ := time.Parse(booking.DateLayout, date)
	return d.AddDate(0, 0, 7*weeks).Format(booking.DateLayout)
}

// engineOver builds a second engine sharing the fixture's clock and notifier
// on top of repo.
func (f *fixture) engineOver(t *testing.T, repo booking.Repository) *booking.Engine {
	t.Helper()
	engine, err := booking.New(repo, booking.Config{
		Location:     time.UTC,
		Notifier:     f.notifier,
		DefaultGrant: 4,
		Now:          f.clock.Now,
	})
	require.NoError(t, err)
	return engine
}

// staleReads answers slot and blackout lookups outside a transaction with
// nothing, as if another writer committed right after the caller looked.
// Transactions see the real rows.
type staleReads struct {
	booking.Repository
}

func (staleReads) ConfirmedSlots(context.Context, string) ([]string, error) {
	return nil, nil
}

func (staleReads) BlackoutsBetween(context.Context, string, string) ([]*entity.BlackoutPeriod, error) {
	return nil, nil
}

// blindSlots never reports a booked slot, not even inside a transaction, so
// only the storage unique key stops a double booking.
type blindSlots struct {
	booking.Repository
}

func (blindSlots) ConfirmedSlots(context.Context, string) ([]string, error) {
	return nil, nil
}

func (r blindSlots) Transaction(ctx context.Context, fn func(tx booking.Repository) error) error {
	return r.Repository.Transaction(ctx, func(tx booking.Repository) error {
		return fn(blindSlots{tx})
	})
}
