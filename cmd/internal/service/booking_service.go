package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"

	"selfbooking/cmd/internal/booking"
	"selfbooking/cmd/internal/domain/entity"
	"selfbooking/cmd/internal/utils"
	"selfbooking/cmd/internal/utils/apierror"
)

type BookingRequest struct {
	Date string `json:"date" validate:"required,isodate"`
	Slot string `json:"slot" validate:"required,slotlabel"`
}

type SeriesRequest struct {
	StartDate   string `json:"start_date" validate:"required,isodate"`
	Slot        string `json:"slot" validate:"required,slotlabel"`
	Occurrences int    `json:"occurrences" validate:"required,min=1"`
}

type BookingResponse struct {
	ID               int     `json:"id"`
	UserID           int     `json:"user_id"`
	Date             string  `json:"date"`
	Slot             string  `json:"slot"`
	Status           string  `json:"status"`
	RecurringGroupID *string `json:"recurring_group_id,omitempty"`
	SeriesIndex      *int    `json:"series_index,omitempty"`
	SeriesLength     *int    `json:"series_length,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

type SeriesResponse struct {
	RecurringGroupID string             `json:"recurring_group_id"`
	Bookings         []*BookingResponse `json:"bookings"`
}

type SlotStatus struct {
	Slot   string `json:"slot"`
	Booked bool   `json:"booked"`
}

type DayResponse struct {
	Date     string       `json:"date"`
	Bookable bool         `json:"bookable"`
	Reason   string       `json:"reason,omitempty"`
	Slots    []SlotStatus `json:"slots"`
}

type MonthResponse struct {
	Month        string   `json:"month"`
	BookableDays []string `json:"bookable_days"`
}

type DefaultBookingService struct {
	Engine   *booking.Engine
	Validate *validator.Validate
	// Attempts bounds how often a commit that lost a race is repeated.
	Attempts uint
}

func NewBookingService(engine *booking.Engine, validate *validator.Validate, attempts uint) *DefaultBookingService {
	return &DefaultBookingService{Engine: engine, Validate: validate, Attempts: attempts}
}

func (b *DefaultBookingService) GetBookings(ctx context.Context, userID int) ([]*BookingResponse, apierror.ErrorResponse) {
	bookings, err := b.Engine.List(ctx, userID)
	if err != nil {
		return nil, fromEngineError(err)
	}
	return toBookingResponses(bookings), nil
}

func (b *DefaultBookingService) CreateBooking(ctx context.Context, req *BookingRequest, userID int) (*BookingResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if err := b.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	created, err := commit(ctx, b.Attempts, func() (*entity.Booking, error) {
		return b.Engine.Create(ctx, booking.CreateRequest{UserID: userID, Date: req.Date, Slot: req.Slot})
	})
	if err != nil {
		return nil, fromEngineError(err)
	}
	return toBookingResponse(created), nil
}

func (b *DefaultBookingService) CreateSeries(ctx context.Context, req *SeriesRequest, userID int) (*SeriesResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if err := b.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	bookings, err := commit(ctx, b.Attempts, func() ([]*entity.Booking, error) {
		return b.Engine.CreateSeries(ctx, booking.SeriesRequest{
			UserID:      userID,
			StartDate:   req.StartDate,
			Slot:        req.Slot,
			Occurrences: req.Occurrences,
		})
	})
	if err != nil {
		return nil, fromEngineError(err)
	}
	return toSeriesResponse(bookings), nil
}

func (b *DefaultBookingService) GetSeries(ctx context.Context, groupID string, userID int) (*SeriesResponse, apierror.ErrorResponse) {
	bookings, err := b.Engine.Series(ctx, groupID, userID)
	if err != nil {
		return nil, fromEngineError(err)
	}
	return toSeriesResponse(bookings), nil
}

func (b *DefaultBookingService) CancelBooking(ctx context.Context, id, userID int) (*BookingResponse, apierror.ErrorResponse) {
	cancelled, err := commit(ctx, b.Attempts, func() (*entity.Booking, error) {
		return b.Engine.Cancel(ctx, booking.CancelRequest{BookingID: id, ActorID: userID})
	})
	if err != nil {
		return nil, fromEngineError(err)
	}
	return toBookingResponse(cancelled), nil
}

func (b *DefaultBookingService) CancelSeries(ctx context.Context, groupID string, userID int) ([]*BookingResponse, apierror.ErrorResponse) {
	cancelled, err := commit(ctx, b.Attempts, func() ([]*entity.Booking, error) {
		return b.Engine.CancelSeries(ctx, groupID, userID)
	})
	if err != nil {
		return nil, fromEngineError(err)
	}
	return toBookingResponses(cancelled), nil
}

func (b *DefaultBookingService) RescheduleBooking(ctx context.Context, id int, req *BookingRequest, userID int) (*BookingResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if err := b.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	moved, err := commit(ctx, b.Attempts, func() (*entity.Booking, error) {
		return b.Engine.Reschedule(ctx, booking.RescheduleRequest{
			BookingID: id,
			ActorID:   userID,
			Date:      req.Date,
			Slot:      req.Slot,
		})
	})
	if err != nil {
		return nil, fromEngineError(err)
	}
	return toBookingResponse(moved), nil
}

func (b *DefaultBookingService) GetDay(ctx context.Context, date string) (*DayResponse, apierror.ErrorResponse) {
	if err := b.Validate.Var(date, "isodate"); err != nil {
		return nil, apierror.NewInvalidParamTypeError("date", "YYYY-MM-DD")
	}

	day := &DayResponse{Date: date, Bookable: true}
	switch err := b.Engine.Calendar().Check(ctx, date); {
	case err == nil:
	case errors.Is(err, booking.ErrDateNotBookable), errors.Is(err, booking.ErrBlackoutConflict):
		day.Bookable = false
		day.Reason = err.Error()
	default:
		return nil, fromEngineError(err)
	}

	booked, err := b.Engine.Availability().BookedSlots(ctx, date)
	if err != nil {
		return nil, fromEngineError(err)
	}
	for _, slot := range b.Engine.Slots().Labels() {
		day.Slots = append(day.Slots, SlotStatus{Slot: slot, Booked: booked[slot]})
	}
	return day, nil
}

func (b *DefaultBookingService) GetMonth(ctx context.Context, month string) (*MonthResponse, apierror.ErrorResponse) {
	days, err := b.Engine.Calendar().BookableDays(ctx, month)
	if err != nil {
		return nil, fromEngineError(err)
	}
	return &MonthResponse{Month: month, BookableDays: days}, nil
}

// commit runs op, repeating it with exponential backoff while it loses
// concurrent-modification races. A reschedule that already cancelled the
// original is never repeated.
func commit[T any](ctx context.Context, attempts uint, op func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond

	return backoff.Retry(ctx, func() (T, error) {
		res, err := op()
		if err == nil {
			return res, nil
		}
		var partial *booking.RescheduleError
		if !booking.IsRetryable(err) || errors.As(err, &partial) {
			return res, backoff.Permanent(err)
		}
		log.Warnf("retrying commit after conflict: %v", err)
		return res, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(max(attempts, 1)))
}

// fromEngineError maps a booking engine failure onto its API error, carrying
// the structured details callers act on.
func fromEngineError(err error) apierror.ErrorResponse {
	var resp *apierror.SimpleError
	switch {
	case errors.Is(err, booking.ErrNotApproved):
		resp = apierror.NotApprovedError
	case errors.Is(err, booking.ErrBlackoutConflict):
		resp = apierror.BlackoutConflictError
	case errors.Is(err, booking.ErrSlotUnavailable):
		resp = apierror.SlotUnavailableError
	case errors.Is(err, booking.ErrInsufficientCredits):
		resp = apierror.InsufficientCreditsError
	case errors.Is(err, booking.ErrDateNotBookable):
		resp = apierror.DateNotBookableError.With("reason", err.Error())
	case errors.Is(err, booking.ErrOutsideWindow):
		resp = apierror.OutsideWindowError.With("reason", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		resp = apierror.InvalidTransitionError
	case errors.Is(err, booking.ErrInvalidInput):
		resp = apierror.NewSimple(http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrNotFound):
		resp = apierror.NotFoundError
	case errors.Is(err, booking.ErrForbidden):
		resp = apierror.ForbiddenError
	case errors.Is(err, booking.ErrConflict):
		resp = apierror.ConcurrentUpdateError
	case errors.Is(err, booking.ErrLedgerCorrupted):
		log.Errorf("refusing request on corrupted ledger: %v", err)
		return apierror.LedgerCorruptedError
	default:
		log.Errorf("booking engine failure: %v", err)
		return apierror.InternalServerError
	}

	var credits *booking.InsufficientCreditsError
	if errors.As(err, &credits) {
		resp = resp.With("available", credits.Available).With("requested", credits.Requested)
	}
	var blackout *booking.BlackoutError
	if errors.As(err, &blackout) {
		resp = resp.With("blackout_date", blackout.Date).With("blackout_reason", blackout.Reason)
	}
	var series *booking.SeriesError
	if errors.As(err, &series) {
		resp = resp.With("occurrence_index", series.Index).With("occurrence_date", series.Date)
	}
	var reschedule *booking.RescheduleError
	if errors.As(err, &reschedule) {
		resp = resp.With("cancelled_booking_id", reschedule.CancelledID)
	}
	return resp
}

func toSeriesResponse(bookings []*entity.Booking) *SeriesResponse {
	resp := &SeriesResponse{Bookings: toBookingResponses(bookings)}
	if len(bookings) > 0 && bookings[0].RecurringGroupID != nil {
		resp.RecurringGroupID = *bookings[0].RecurringGroupID
	}
	return resp
}

func toBookingResponses(bookings []*entity.Booking) []*BookingResponse {
	resp := make([]*BookingResponse, len(bookings))
	for i, bk := range bookings {
		resp[i] = toBookingResponse(bk)
	}
	return resp
}

func toBookingResponse(bk *entity.Booking) *BookingResponse {
	return &BookingResponse{
		ID:               bk.ID,
		UserID:           bk.UserID,
		Date:             bk.Date,
		Slot:             bk.Slot,
		Status:           string(bk.Status),
		RecurringGroupID: bk.RecurringGroupID,
		SeriesIndex:      bk.SeriesIndex,
		SeriesLength:     bk.SeriesLength,
		CreatedAt:        utils.FormatEpoch(bk.CreatedAt),
		UpdatedAt:        utils.FormatEpoch(bk.UpdatedAt),
	}
}
