package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfbooking/cmd/internal/booking"
)

func TestParseDate(t *testing.T) {
	d, err := booking.ParseDate("2025-03-04")
	require.NoError(t, err)
	assert.Equal(t, time.Tuesday, d.Weekday())

	for _, bad := range []string{"", "2025-3-4", "04/03/2025", "2025-02-30"} {
		_, err := booking.ParseDate(bad)
		assert.ErrorIs(t, err, booking.ErrInvalidInput, bad)
	}
}

func TestCalendar_IsBookable(t *testing.T) {
	f := newFixture(t)
	f.h.SeedBlackout(t, "2025-03-10", "2025-03-12", "Spring break")
	cal := f.engine.Calendar()
	ctx := context.Background()

	tests := []struct {
		name string
		date string
		want bool
	}{
		{"today is bookable", today, true},
		{"future weekday", tuesday, true},
		{"past date", lastWeek, false},
		{"yesterday", "2025-03-02", false},
		{"weekend", saturday, false},
		{"first day of blackout", "2025-03-10", false},
		{"inside blackout", "2025-03-11", false},
		{"last day of blackout", "2025-03-12", false},
		{"day after blackout", "2025-03-13", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.IsBookable(ctx, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := cal.IsBookable(ctx, "next tuesday")
	assert.ErrorIs(t, err, booking.ErrInvalidInput)
}

func TestCalendar_Check_Reasons(t *testing.T) {
	f := newFixture(t)
	period := f.h.SeedBlackout(t, "2025-03-05", "2025-03-05", "Maintenance")
	cal := f.engine.Calendar()
	ctx := context.Background()

	assert.ErrorIs(t, cal.Check(ctx, lastWeek), booking.ErrDateInPast)
	assert.ErrorIs(t, cal.Check(ctx, saturday), booking.ErrDayClosed)
	assert.ErrorIs(t, cal.Check(ctx, saturday), booking.ErrDateNotBookable)

	err := cal.Check(ctx, "2025-03-05")
	var blackout *booking.BlackoutError
	require.ErrorAs(t, err, &blackout)
	assert.Equal(t, period.ID, blackout.PeriodID)
	assert.Equal(t, "Maintenance", blackout.Reason)
	assert.ErrorIs(t, err, booking.ErrBlackoutConflict)
}

func TestCalendar_OverlappingBlackouts(t *testing.T) {
	f := newFixture(t)
	f.h.SeedBlackout(t, "2025-03-10", "2025-03-14", "Conference")
	f.h.SeedBlackout(t, "2025-03-13", "2025-03-18", "Holiday")

	for _, date := range []string{"2025-03-10", "2025-03-13", "2025-03-14", "2025-03-18"} {
		ok, err := f.engine.Calendar().IsBookable(context.Background(), date)
		require.NoError(t, err)
		assert.False(t, ok, date)
	}
}

func TestCalendar_OpenWeekdays(t *testing.T) {
	f := newFixture(t, func(c *booking.Config) {
		c.OpenWeekdays = []time.Weekday{time.Saturday}
	})

	ok, err := f.engine.Calendar().IsBookable(context.Background(), saturday)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.engine.Calendar().IsBookable(context.Background(), tuesday)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCalendar_BookableDays(t *testing.T) {
	f := newFixture(t)
	f.h.SeedBlackout(t, "2025-03-10", "2025-03-12", "Spring break")

	days, err := f.engine.Calendar().BookableDays(context.Background(), "2025-03")
	require.NoError(t, err)

	// 21 weekdays from the 3rd to the 31st, minus three blacked out.
	assert.Len(t, days, 18)
	assert.Equal(t, today, days[0])
	assert.NotContains(t, days, "2025-03-11")
	assert.NotContains(t, days, saturday)
	assert.Equal(t, "2025-03-31", days[len(days)-1])

	_, err = f.engine.Calendar().BookableDays(context.Background(), "March")
	assert.ErrorIs(t, err, booking.ErrInvalidInput)
}

func TestSlotSet(t *testing.T) {
	slots, err := booking.NewSlotSet(booking.DefaultSlots())
	require.NoError(t, err)

	assert.True(t, slots.Valid("10:00 AM"))
	assert.False(t, slots.Valid("10:00"))
	assert.False(t, slots.Valid("6:00 PM"))
	assert.Equal(t, booking.DefaultSlots(), slots.Labels())

	day, _ := booking.ParseDate(tuesday)
	start := slots.Start(day, "2:00 PM", time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 4, 14, 0, 0, 0, time.UTC), start)

	_, err = booking.NewSlotSet([]string{"9:00 AM", "9:00 AM"})
	assert.ErrorIs(t, err, booking.ErrInvalidInput)
	_, err = booking.NewSlotSet([]string{"nine"})
	assert.ErrorIs(t, err, booking.ErrInvalidInput)
	_, err = booking.NewSlotSet(nil)
	assert.ErrorIs(t, err, booking.ErrInvalidInput)
}

func TestRules(t *testing.T) {
	now := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)
	rules := booking.Rules{MinLeadTime: time.Hour, MaxAdvance: 30 * 24 * time.Hour, CancelNotice: 24 * time.Hour}

	assert.NoError(t, rules.AllowBooking(now, now.Add(2*time.Hour)))
	assert.ErrorIs(t, rules.AllowBooking(now, now.Add(30*time.Minute)), booking.ErrOutsideWindow)
	assert.ErrorIs(t, rules.AllowBooking(now, now.Add(31*24*time.Hour)), booking.ErrOutsideWindow)

	assert.NoError(t, rules.AllowCancel(now, now.Add(25*time.Hour)))
	assert.ErrorIs(t, rules.AllowCancel(now, now.Add(23*time.Hour)), booking.ErrOutsideWindow)

	var zero booking.Rules
	assert.NoError(t, zero.AllowBooking(now, now.Add(time.Minute)))
	assert.ErrorIs(t, zero.AllowBooking(now, now.Add(-time.Minute)), booking.ErrOutsideWindow)
}
