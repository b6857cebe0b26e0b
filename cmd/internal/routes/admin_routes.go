package routes

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"selfbooking/cmd/internal/service"
	"selfbooking/cmd/internal/utils/apierror"
)

type AdminService interface {
	SetApproval(ctx context.Context, userID int, req *service.ApprovalRequest) (*service.UserResponse, apierror.ErrorResponse)
	SetSessions(ctx context.Context, userID int, req *service.SessionsRequest) (*service.UserResponse, apierror.ErrorResponse)
	VerifyLedger(ctx context.Context, userID int) (*service.LedgerResponse, apierror.ErrorResponse)
	GetBlackouts() ([]*service.BlackoutResponse, apierror.ErrorResponse)
	CreateBlackout(req *service.BlackoutRequest) (*service.BlackoutResponse, apierror.ErrorResponse)
	DeleteBlackout(id int) apierror.ErrorResponse
}

// DefaultAdminRoute handlers sit behind middleware.RequireAdmin.
type DefaultAdminRoute struct {
	AdminService AdminService
}

func NewAdminDefault(adminService AdminService) *DefaultAdminRoute {
	return &DefaultAdminRoute{AdminService: adminService}
}

func (a *DefaultAdminRoute) SetApproval(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}

	var req service.ApprovalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	user, apierr := a.AdminService.SetApproval(c.Request().Context(), id, &req)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, user)
}

func (a *DefaultAdminRoute) SetSessions(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}

	var req service.SessionsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	user, apierr := a.AdminService.SetSessions(c.Request().Context(), id, &req)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, user)
}

func (a *DefaultAdminRoute) GetLedger(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}

	report, apierr := a.AdminService.VerifyLedger(c.Request().Context(), id)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, report)
}

func (a *DefaultAdminRoute) GetBlackouts(c echo.Context) error {
	periods, apierr := a.AdminService.GetBlackouts()
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"blackouts": periods}
	return c.JSON(http.StatusOK, &resp)
}

func (a *DefaultAdminRoute) CreateBlackout(c echo.Context) error {
	var req service.BlackoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	period, apierr := a.AdminService.CreateBlackout(&req)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusCreated, period)
}

func (a *DefaultAdminRoute) DeleteBlackout(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("id", "int"))
	}

	if apierr := a.AdminService.DeleteBlackout(id); apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.NoContent(http.StatusNoContent)
}
