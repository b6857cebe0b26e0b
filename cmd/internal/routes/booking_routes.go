package routes

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"selfbooking/cmd/internal/service"
	"selfbooking/cmd/internal/utils"
	"selfbooking/cmd/internal/utils/apierror"
)

type BookingService interface {
	GetBookings(ctx context.Context, userID int) ([]*service.BookingResponse, apierror.ErrorResponse)
	CreateBooking(ctx context.Context, req *service.BookingRequest, userID int) (*service.BookingResponse, apierror.ErrorResponse)
	CreateSeries(ctx context.Context, req *service.SeriesRequest, userID int) (*service.SeriesResponse, apierror.ErrorResponse)
	GetSeries(ctx context.Context, groupID string, userID int) (*service.SeriesResponse, apierror.ErrorResponse)
	CancelBooking(ctx context.Context, id, userID int) (*service.BookingResponse, apierror.ErrorResponse)
	CancelSeries(ctx context.Context, groupID string, userID int) ([]*service.BookingResponse, apierror.ErrorResponse)
	RescheduleBooking(ctx context.Context, id int, req *service.BookingRequest, userID int) (*service.BookingResponse, apierror.ErrorResponse)
	GetDay(ctx context.Context, date string) (*service.DayResponse, apierror.ErrorResponse)
	GetMonth(ctx context.Context, month string) (*service.MonthResponse, apierror.ErrorResponse)
}

type DefaultBookingRoute struct {
	BookingService BookingService
}

func NewBookingDefault(bookingService BookingService) *DefaultBookingRoute {
	return &DefaultBookingRoute{BookingService: bookingService}
}

func (b *DefaultBookingRoute) GetBookings(c echo.Context) error {
	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	bookings, apierr := b.BookingService.GetBookings(c.Request().Context(), data.UserID)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"bookings": bookings}
	return c.JSON(http.StatusOK, &resp)
}

func (b *DefaultBookingRoute) CreateBooking(c echo.Context) error {
	var req service.BookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	created, apierr := b.BookingService.CreateBooking(c.Request().Context(), &req, data.UserID)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusCreated, created)
}

func (b *DefaultBookingRoute) CreateSeries(c echo.Context) error {
	var req service.SeriesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	series, apierr := b.BookingService.CreateSeries(c.Request().Context(), &req, data.UserID)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusCreated, series)
}

func (b *DefaultBookingRoute) GetSeries(c echo.Context) error {
	group := strings.TrimSpace(c.Param("group"))
	if group == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewMissingParamError("group"))
	}

	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	series, apierr := b.BookingService.GetSeries(c.Request().Context(), group, data.UserID)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, series)
}

func (b *DefaultBookingRoute) DeleteBooking(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}

	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	cancelled, apierr := b.BookingService.CancelBooking(c.Request().Context(), id, data.UserID)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, cancelled)
}

func (b *DefaultBookingRoute) DeleteSeries(c echo.Context) error {
	group := strings.TrimSpace(c.Param("group"))
	if group == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewMissingParamError("group"))
	}

	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	cancelled, apierr := b.BookingService.CancelSeries(c.Request().Context(), group, data.UserID)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"cancelled": cancelled}
	return c.JSON(http.StatusOK, &resp)
}

func (b *DefaultBookingRoute) RescheduleBooking(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}

	var req service.BookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	data, err := utils.ParseTokenDataCtx(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
	}

	moved, apierr := b.BookingService.RescheduleBooking(c.Request().Context(), id, &req, data.UserID)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, moved)
}

// GetCalendar shows one day's slots and whether the day takes bookings.
func (b *DefaultBookingRoute) GetCalendar(c echo.Context) error {
	date := strings.TrimSpace(c.QueryParam("date"))
	if date == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewMissingParamError("date"))
	}

	day, apierr := b.BookingService.GetDay(c.Request().Context(), date)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, day)
}

func (b *DefaultBookingRoute) GetCalendarMonth(c echo.Context) error {
	month := strings.TrimSpace(c.QueryParam("month")) // "2025-08"
	if month == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewMissingParamError("month"))
	}

	days, apierr := b.BookingService.GetMonth(c.Request().Context(), month)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, days)
}
