package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"selfbooking/cmd/internal/domain/entity"
)

type SeriesRequest struct {
	UserID      int
	StartDate   string
	Slot        string
	Occurrences int
}

// PlanSeries returns the weekly dates of a series starting at start.
func PlanSeries(start time.Time, occurrences int) []string {
	dates := make([]string, occurrences)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, 7*i).Format(DateLayout)
	}
	return dates
}

// CreateSeries books the same slot once a week for req.Occurrences weeks.
//
// The series is all-or-nothing. Approval and the full credit amount are
// checked first, then every occurrence is checked in order; the first failing
// occurrence is returned as a *SeriesError and nothing is written. Otherwise
// all bookings are inserted and the credits debited in one transaction.
func (e *Engine) CreateSeries(ctx context.Context, req SeriesRequest) (bookings []*entity.Booking, err error) {
	ctx, span := startSpan(ctx, "booking.CreateSeries",
		attribute.Int("user.id", req.UserID), attribute.String("series.start", req.StartDate),
		attribute.String("booking.slot", req.Slot), attribute.Int("series.occurrences", req.Occurrences))
	defer func() { endSpan(span, err) }()

	if req.Occurrences < 1 || req.Occurrences > e.maxOccurrences {
		return nil, invalidInput("occurrences must be between 1 and %d, got %d", e.maxOccurrences, req.Occurrences)
	}
	start, err := e.parseSlot(req.StartDate, req.Slot)
	if err != nil {
		return nil, err
	}
	if _, err := e.gate.require(ctx, e.repo, req.UserID); err != nil {
		return nil, err
	}
	if err := e.ledger.CheckCredit(ctx, req.UserID, req.Occurrences); err != nil {
		return nil, err
	}

	dates := PlanSeries(start, req.Occurrences)
	for i, date := range dates {
		if err := e.calendar.check(ctx, e.repo, date); err != nil {
			return nil, &SeriesError{Index: i, Date: date, Err: err}
		}
		if i == 0 {
			// The window applies to when the series is requested, not to
			// each later week.
			if err := e.validator.AllowBooking(e.now(), start); err != nil {
				return nil, &SeriesError{Index: i, Date: date, Err: err}
			}
		}
		if err := e.availability.ensureFree(ctx, e.repo, date, req.Slot); err != nil {
			return nil, &SeriesError{Index: i, Date: date, Err: err}
		}
	}

	now := e.stamp()
	group := uuid.NewString()
	length := req.Occurrences
	bookings = make([]*entity.Booking, len(dates))
	for i, date := range dates {
		key := entity.SlotKey(date, req.Slot)
		index := i
		bookings[i] = &entity.Booking{
			UserID:           req.UserID,
			Date:             date,
			Slot:             req.Slot,
			Status:           entity.BookingConfirmed,
			ActiveKey:        &key,
			RecurringGroupID: &group,
			SeriesIndex:      &index,
			SeriesLength:     &length,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	}

	var remaining int
	err = e.repo.Transaction(ctx, func(tx Repository) error {
		if _, err := e.gate.require(ctx, tx, req.UserID); err != nil {
			return err
		}
		for i, date := range dates {
			if err := e.calendar.check(ctx, tx, date); err != nil {
				return &SeriesError{Index: i, Date: date, Err: err}
			}
			if err := e.availability.ensureFree(ctx, tx, date, req.Slot); err != nil {
				return &SeriesError{Index: i, Date: date, Err: err}
			}
		}
		// One insert per occurrence so a slot taken since the checks above is
		// reported against its own week.
		for i, b := range bookings {
			if err := tx.InsertBookings(ctx, bookings[i:i+1]); err != nil {
				if errors.Is(err, ErrSlotUnavailable) {
					return &SeriesError{Index: i, Date: b.Date, Err: err}
				}
				return err
			}
		}
		if err := e.ledger.Debit(ctx, tx, req.UserID, req.Occurrences); err != nil {
			return err
		}
		u, err := tx.FindUser(ctx, req.UserID)
		if err == nil && u != nil {
			remaining = u.RemainingCredits
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	emit(ctx, e.notifier, Event{
		Type:       EventSeriesConfirmed,
		UserID:     req.UserID,
		BookingIDs: ids,
		Date:       req.StartDate,
		Slot:       req.Slot,
		GroupID:    group,
		Remaining:  remaining,
		OccurredAt: now,
	})
	return bookings, nil
}

// Series returns the occurrences of a recurring group in series order.
func (e *Engine) Series(ctx context.Context, groupID string, actorID int) ([]*entity.Booking, error) {
	bookings, err := e.repo.FindSeries(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, notFound("series", groupID)
	}
	actor, err := e.repo.FindUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil || (actor.ID != bookings[0].UserID && !actor.IsAdmin) {
		return nil, fmt.Errorf("%w: series %s", ErrForbidden, groupID)
	}
	return bookings, nil
}

// CancelSeries cancels every confirmed occurrence of a series that is still
// inside the cancellation window, refunding one credit each, in a single
// transaction. Occurrences already cancelled or too close to start are left
// alone. It returns the occurrences it cancelled.
func (e *Engine) CancelSeries(ctx context.Context, groupID string, actorID int) (cancelled []*entity.Booking, err error) {
	ctx, span := startSpan(ctx, "booking.CancelSeries",
		attribute.String("series.group", groupID), attribute.Int("actor.id", actorID))
	defer func() { endSpan(span, err) }()

	bookings, err := e.Series(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	actor, err := e.repo.FindUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	candidates := make([]*entity.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Status != entity.BookingConfirmed {
			continue
		}
		if !actor.IsAdmin {
			start, err := e.parseSlot(b.Date, b.Slot)
			if err != nil {
				return nil, err
			}
			if err := e.validator.AllowCancel(e.now(), start); err != nil {
				if errors.Is(err, ErrOutsideWindow) {
					continue
				}
				return nil, err
			}
		}
		candidates = append(candidates, b)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	owner := bookings[0].UserID
	now := e.stamp()
	var remaining int
	err = e.repo.Transaction(ctx, func(tx Repository) error {
		cancelled = cancelled[:0]
		for _, b := range candidates {
			ok, err := tx.CancelBooking(ctx, b.ID, now)
			if err != nil {
				return err
			}
			if ok {
				cancelled = append(cancelled, b)
			}
		}
		if len(cancelled) == 0 {
			return nil
		}
		if err := e.ledger.Refund(ctx, tx, owner, len(cancelled)); err != nil {
			return err
		}
		u, err := tx.FindUser(ctx, owner)
		if err == nil && u != nil {
			remaining = u.RemainingCredits
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int, len(cancelled))
	for i, b := range cancelled {
		b.Status = entity.BookingCancelled
		b.ActiveKey = nil
		b.UpdatedAt = now
		ids[i] = b.ID
	}
	if len(ids) > 0 {
		emit(ctx, e.notifier, Event{
			Type:       EventBookingCancelled,
			UserID:     owner,
			BookingIDs: ids,
			GroupID:    groupID,
			Remaining:  remaining,
			OccurredAt: now,
		})
	}
	return cancelled, nil
}
