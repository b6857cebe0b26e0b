package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfbooking/cmd/internal/booking"
	"selfbooking/cmd/internal/domain/entity"
	"selfbooking/cmd/internal/testfixtures"
	"selfbooking/cmd/internal/utils/apierror"
	"selfbooking/cmd/internal/utils/validators"
)

// Monday 2025-03-03 08:00 UTC is the fixture clock.
const tuesday = "2025-03-04"

type env struct {
	h        *testfixtures.Harness
	bookings *DefaultBookingService
	admin    *DefaultAdminService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	h := testfixtures.NewHarness(t)
	clock := testfixtures.NewClock(time.Time{})
	engine, err := booking.New(h.Bookings, booking.Config{
		Location:     time.UTC,
		DefaultGrant: 2,
		Now:          clock.Now,
	})
	require.NoError(t, err)

	validate := validator.New()
	require.NoError(t, validators.Register(validate, engine.Slots()))
	return &env{
		h:        h,
		bookings: NewBookingService(engine, validate, 3),
		admin:    NewAdminService(engine, h.Blackouts, validate),
	}
}

func details(t *testing.T, apierr apierror.ErrorResponse) map[string]any {
	t.Helper()
	simple, ok := apierr.(*apierror.SimpleError)
	require.True(t, ok, "unexpected error type %T", apierr)
	return simple.Details
}

func TestCreateBooking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.h.SeedUser(t, testfixtures.Approved(1))
	bob := e.h.SeedUser(t, testfixtures.Approved(1))

	resp, apierr := e.bookings.CreateBooking(ctx, &BookingRequest{Date: " " + tuesday, Slot: "10:00 AM "}, alice.ID)
	require.Nil(t, apierr)
	assert.Equal(t, tuesday, resp.Date)
	assert.Equal(t, "confirmed", resp.Status)

	_, apierr = e.bookings.CreateBooking(ctx, &BookingRequest{Date: tuesday, Slot: "10:00 AM"}, bob.ID)
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusConflict, apierr.Code())
	assert.Equal(t, apierror.SlotUnavailableError.Message, apierr.Error())

	_, apierr = e.bookings.CreateBooking(ctx, &BookingRequest{Date: tuesday, Slot: "11:00 AM"}, alice.ID)
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusPaymentRequired, apierr.Code())
	assert.Equal(t, 0, details(t, apierr)["available"])
}

func TestCreateBooking_Validation(t *testing.T) {
	e := newEnv(t)
	user := e.h.SeedUser(t, testfixtures.Approved(1))

	_, apierr := e.bookings.CreateBooking(context.Background(), &BookingRequest{Date: "04/03/2025", Slot: "10:15 AM"}, user.ID)
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusBadRequest, apierr.Code())

	verr, ok := apierr.(*apierror.ValidationError)
	require.True(t, ok)
	assert.Len(t, verr.Fields, 2)
}

func TestCreateSeries_ReportsOccurrence(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.h.SeedUser(t, testfixtures.Approved(4))
	e.h.SeedBlackout(t, "2025-03-18", "2025-03-18", "closed")

	_, apierr := e.bookings.CreateSeries(ctx, &SeriesRequest{StartDate: tuesday, Slot: "9:00 AM", Occurrences: 4}, user.ID)
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusConflict, apierr.Code())
	d := details(t, apierr)
	assert.Equal(t, 2, d["occurrence_index"])
	assert.Equal(t, "2025-03-18", d["occurrence_date"])
	assert.Equal(t, "closed", d["blackout_reason"])

	resp, apierr := e.bookings.CreateSeries(ctx, &SeriesRequest{StartDate: tuesday, Slot: "9:00 AM", Occurrences: 2}, user.ID)
	require.Nil(t, apierr)
	assert.NotEmpty(t, resp.RecurringGroupID)
	assert.Len(t, resp.Bookings, 2)

	cancelled, apierr := e.bookings.CancelSeries(ctx, resp.RecurringGroupID, user.ID)
	require.Nil(t, apierr)
	assert.Len(t, cancelled, 2)
}

func TestRescheduleBooking_ReportsCancelledOriginal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.h.SeedUser(t, testfixtures.Approved(1))
	other := e.h.SeedUser(t, testfixtures.Approved(1))

	orig, apierr := e.bookings.CreateBooking(ctx, &BookingRequest{Date: tuesday, Slot: "9:00 AM"}, user.ID)
	require.Nil(t, apierr)
	_, apierr = e.bookings.CreateBooking(ctx, &BookingRequest{Date: tuesday, Slot: "1:00 PM"}, other.ID)
	require.Nil(t, apierr)

	_, apierr = e.bookings.RescheduleBooking(ctx, orig.ID, &BookingRequest{Date: tuesday, Slot: "1:00 PM"}, user.ID)
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusConflict, apierr.Code())
	assert.Equal(t, orig.ID, details(t, apierr)["cancelled_booking_id"])
}

func TestCancelBooking_Forbidden(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.h.SeedUser(t, testfixtures.Approved(1))
	other := e.h.SeedUser(t, testfixtures.Approved(1))

	b, apierr := e.bookings.CreateBooking(ctx, &BookingRequest{Date: tuesday, Slot: "9:00 AM"}, owner.ID)
	require.Nil(t, apierr)

	_, apierr = e.bookings.CancelBooking(ctx, b.ID, other.ID)
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusForbidden, apierr.Code())

	_, apierr = e.bookings.CancelBooking(ctx, 777, owner.ID)
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusNotFound, apierr.Code())
}

func TestGetDay(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.h.SeedUser(t, testfixtures.Approved(1))
	_, apierr := e.bookings.CreateBooking(ctx, &BookingRequest{Date: tuesday, Slot: "9:00 AM"}, user.ID)
	require.Nil(t, apierr)

	day, apierr := e.bookings.GetDay(ctx, tuesday)
	require.Nil(t, apierr)
	assert.True(t, day.Bookable)
	require.Len(t, day.Slots, 8)
	assert.Equal(t, SlotStatus{Slot: "9:00 AM", Booked: true}, day.Slots[0])
	assert.False(t, day.Slots[1].Booked)

	weekend, apierr := e.bookings.GetDay(ctx, "2025-03-08")
	require.Nil(t, apierr)
	assert.False(t, weekend.Bookable)
	assert.NotEmpty(t, weekend.Reason)

	_, apierr = e.bookings.GetDay(ctx, "tomorrow")
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusBadRequest, apierr.Code())

	month, apierr := e.bookings.GetMonth(ctx, "2025-03")
	require.Nil(t, apierr)
	assert.Len(t, month.BookableDays, 21)
}

func TestCommit_RetriesConflicts(t *testing.T) {
	ctx := context.Background()

	calls := 0
	got, err := commit(ctx, 3, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, fmt.Errorf("%w: lost race", booking.ErrConflict)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)

	calls = 0
	_, err = commit(ctx, 2, func() (int, error) {
		calls++
		return 0, booking.ErrConflict
	})
	assert.ErrorIs(t, err, booking.ErrConflict)
	assert.Equal(t, 2, calls)

	calls = 0
	_, err = commit(ctx, 5, func() (int, error) {
		calls++
		return 0, booking.ErrSlotUnavailable
	})
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)
	assert.Equal(t, 1, calls)

	calls = 0
	_, err = commit(ctx, 5, func() (int, error) {
		calls++
		return 0, &booking.RescheduleError{CancelledID: 1, Err: booking.ErrConflict}
	})
	var rerr *booking.RescheduleError
	assert.ErrorAs(t, err, &rerr)
	assert.Equal(t, 1, calls)
}

func TestFromEngineError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{booking.ErrNotApproved, http.StatusForbidden},
		{&booking.BlackoutError{Date: tuesday}, http.StatusConflict},
		{booking.ErrDateInPast, http.StatusUnprocessableEntity},
		{booking.ErrOutsideWindow, http.StatusUnprocessableEntity},
		{booking.ErrInvalidTransition, http.StatusConflict},
		{fmt.Errorf("%w: bad slot", booking.ErrInvalidInput), http.StatusBadRequest},
		{booking.ErrNotFound, http.StatusNotFound},
		{booking.ErrConflict, http.StatusConflict},
		{&booking.LedgerCorruptionError{UserID: 1}, http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fromEngineError(tt.err).Code(), "%v", tt.err)
	}
}

func TestAdmin_ApprovalAndLedger(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.h.SeedUser(t)

	five := 5
	_, apierr := e.admin.SetApproval(ctx, user.ID, &ApprovalRequest{State: "rejected", Sessions: &five})
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusBadRequest, apierr.Code())

	resp, apierr := e.admin.SetApproval(ctx, user.ID, &ApprovalRequest{State: "approved", Sessions: &five})
	require.Nil(t, apierr)
	assert.Equal(t, "approved", resp.ApprovalState)
	assert.Equal(t, 5, resp.RemainingCredits)

	_, apierr = e.admin.SetApproval(ctx, user.ID, &ApprovalRequest{State: "rejected"})
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusConflict, apierr.Code())

	two := 2
	resp, apierr = e.admin.SetSessions(ctx, user.ID, &SessionsRequest{Sessions: &two})
	require.Nil(t, apierr)
	assert.Equal(t, 2, resp.RemainingCredits)

	ledger, apierr := e.admin.VerifyLedger(ctx, user.ID)
	require.Nil(t, apierr)
	assert.True(t, ledger.Consistent)

	require.NoError(t, e.h.DB.Model(&entity.User{}).Where("id = ?", user.ID).Update("remaining_credits", 7).Error)
	ledger, apierr = e.admin.VerifyLedger(ctx, user.ID)
	require.Nil(t, apierr)
	assert.False(t, ledger.Consistent)
	assert.NotEmpty(t, ledger.Problem)

	_, apierr = e.admin.VerifyLedger(ctx, 31337)
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusNotFound, apierr.Code())
}

func TestAdmin_Blackouts(t *testing.T) {
	e := newEnv(t)

	_, apierr := e.admin.CreateBlackout(&BlackoutRequest{StartDate: "2025-03-10", EndDate: "2025-03-07"})
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusBadRequest, apierr.Code())

	created, apierr := e.admin.CreateBlackout(&BlackoutRequest{StartDate: "2025-03-10", EndDate: "2025-03-12", Reason: "conference"})
	require.Nil(t, apierr)
	assert.NotZero(t, created.ID)

	day, apierr := e.bookings.GetDay(context.Background(), "2025-03-11")
	require.Nil(t, apierr)
	assert.False(t, day.Bookable)
	assert.Contains(t, day.Reason, "conference")

	list, apierr := e.admin.GetBlackouts()
	require.Nil(t, apierr)
	assert.Len(t, list, 1)

	require.Nil(t, e.admin.DeleteBlackout(created.ID))
	apierr = e.admin.DeleteBlackout(created.ID)
	require.NotNil(t, apierr)
	assert.Equal(t, http.StatusNotFound, apierr.Code())
}
