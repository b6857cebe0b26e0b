package booking

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"selfbooking/cmd/internal/domain/entity"
)

type CreateRequest struct {
	UserID int
	Date   string
	Slot   string
}

type CancelRequest struct {
	BookingID int
	ActorID   int
}

type RescheduleRequest struct {
	BookingID int
	ActorID   int
	Date      string
	Slot      string
}

// Create books one slot for one credit.
//
// Checks run in a fixed order and the first failure is returned: input,
// approval, calendar, booking window, slot availability, credit. The commit
// repeats the approval, calendar, slot and credit checks inside one
// transaction.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (b *entity.Booking, err error) {
	ctx, span := startSpan(ctx, "booking.Create",
		attribute.Int("user.id", req.UserID), attribute.String("booking.date", req.Date), attribute.String("booking.slot", req.Slot))
	defer func() { endSpan(span, err) }()

	start, err := e.parseSlot(req.Date, req.Slot)
	if err != nil {
		return nil, err
	}
	if _, err := e.gate.require(ctx, e.repo, req.UserID); err != nil {
		return nil, err
	}
	if err := e.calendar.check(ctx, e.repo, req.Date); err != nil {
		return nil, err
	}
	if err := e.validator.AllowBooking(e.now(), start); err != nil {
		return nil, err
	}
	if err := e.availability.ensureFree(ctx, e.repo, req.Date, req.Slot); err != nil {
		return nil, err
	}
	if err := e.ledger.CheckCredit(ctx, req.UserID, 1); err != nil {
		return nil, err
	}

	now := e.stamp()
	key := entity.SlotKey(req.Date, req.Slot)
	b = &entity.Booking{
		UserID:    req.UserID,
		Date:      req.Date,
		Slot:      req.Slot,
		Status:    entity.BookingConfirmed,
		ActiveKey: &key,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var remaining int
	err = e.repo.Transaction(ctx, func(tx Repository) error {
		if _, err := e.gate.require(ctx, tx, req.UserID); err != nil {
			return err
		}
		if err := e.calendar.check(ctx, tx, req.Date); err != nil {
			return err
		}
		if err := e.availability.ensureFree(ctx, tx, req.Date, req.Slot); err != nil {
			return err
		}
		if err := tx.InsertBookings(ctx, []*entity.Booking{b}); err != nil {
			return err
		}
		if err := e.ledger.Debit(ctx, tx, req.UserID, 1); err != nil {
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

	emit(ctx, e.notifier, Event{
		Type:       EventBookingConfirmed,
		UserID:     b.UserID,
		BookingIDs: []int{b.ID},
		Date:       b.Date,
		Slot:       b.Slot,
		Remaining:  remaining,
		OccurredAt: now,
	})
	return b, nil
}

// Cancel releases a confirmed booking and refunds its credit. Cancelling a
// booking that is already cancelled succeeds without a second refund.
// Administrators may cancel any booking and are not bound by the notice rule.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (b *entity.Booking, err error) {
	ctx, span := startSpan(ctx, "booking.Cancel",
		attribute.Int("booking.id", req.BookingID), attribute.Int("actor.id", req.ActorID))
	defer func() { endSpan(span, err) }()

	b, actor, err := e.loadForActor(ctx, req.BookingID, req.ActorID)
	if err != nil {
		return nil, err
	}
	if b.Status == entity.BookingCancelled {
		return b, nil
	}
	if !canMove(b.Status, entity.BookingCancelled) {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, b.ID, b.Status)
	}
	if !actor.IsAdmin {
		start, err := e.parseSlot(b.Date, b.Slot)
		if err != nil {
			return nil, err
		}
		if err := e.validator.AllowCancel(e.now(), start); err != nil {
			return nil, err
		}
	}

	refunded := false
	var remaining int
	err = e.repo.Transaction(ctx, func(tx Repository) error {
		refunded = false
		ok, err := tx.CancelBooking(ctx, b.ID, e.stamp())
		if err != nil {
			return err
		}
		if !ok {
			// Lost to a concurrent cancel; that one refunded.
			return nil
		}
		if err := e.ledger.Refund(ctx, tx, b.UserID, 1); err != nil {
			return err
		}
		refunded = true
		u, err := tx.FindUser(ctx, b.UserID)
		if err == nil && u != nil {
			remaining = u.RemainingCredits
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if b, err = e.repo.FindBooking(ctx, b.ID); err != nil {
		return nil, err
	}
	if refunded {
		emit(ctx, e.notifier, Event{
			Type:       EventBookingCancelled,
			UserID:     b.UserID,
			BookingIDs: []int{b.ID},
			Date:       b.Date,
			Slot:       b.Slot,
			Remaining:  remaining,
			OccurredAt: b.UpdatedAt,
		})
	}
	return b, nil
}

// Reschedule cancels the booking and then creates the replacement. The two
// steps are separate commits: when the create fails the original stays
// cancelled, its credit stays refunded, and a *RescheduleError is returned.
func (e *Engine) Reschedule(ctx context.Context, req RescheduleRequest) (*entity.Booking, error) {
	if _, err := e.parseSlot(req.Date, req.Slot); err != nil {
		return nil, err
	}
	orig, _, err := e.loadForActor(ctx, req.BookingID, req.ActorID)
	if err != nil {
		return nil, err
	}
	if orig.Status != entity.BookingConfirmed {
		return nil, invalidInput("booking %d is %s and cannot be rescheduled", orig.ID, orig.Status)
	}

	cancelled, err := e.Cancel(ctx, CancelRequest{BookingID: req.BookingID, ActorID: req.ActorID})
	if err != nil {
		return nil, err
	}
	created, err := e.Create(ctx, CreateRequest{UserID: cancelled.UserID, Date: req.Date, Slot: req.Slot})
	if err != nil {
		return nil, &RescheduleError{CancelledID: cancelled.ID, Err: err}
	}
	return created, nil
}

// Get returns a booking visible to the actor.
func (e *Engine) Get(ctx context.Context, bookingID, actorID int) (*entity.Booking, error) {
	b, _, err := e.loadForActor(ctx, bookingID, actorID)
	return b, err
}

// List returns the actor's own bookings, or every booking for an administrator.
func (e *Engine) List(ctx context.Context, actorID int) ([]*entity.Booking, error) {
	actor, err := e.repo.FindUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, notFound("user", actorID)
	}
	if actor.IsAdmin {
		return e.repo.FindAllBookings(ctx)
	}
	return e.repo.FindBookingsByUser(ctx, actor.ID)
}

func (e *Engine) loadForActor(ctx context.Context, bookingID, actorID int) (*entity.Booking, *entity.User, error) {
	b, err := e.repo.FindBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if b == nil {
		return nil, nil, notFound("booking", bookingID)
	}
	actor, err := e.repo.FindUser(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	if actor == nil || (actor.ID != b.UserID && !actor.IsAdmin) {
		return nil, nil, fmt.Errorf("%w: booking %d", ErrForbidden, bookingID)
	}
	return b, actor, nil
}
