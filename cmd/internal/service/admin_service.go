package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"

	"selfbooking/cmd/internal/booking"
	"selfbooking/cmd/internal/domain/entity"
	"selfbooking/cmd/internal/utils"
	"selfbooking/cmd/internal/utils/apierror"
)

type BlackoutRepository interface {
	FindByID(id int) (*entity.BlackoutPeriod, error)
	FindAll() ([]*entity.BlackoutPeriod, error)
	Create(period *entity.BlackoutPeriod) error
	Delete(period *entity.BlackoutPeriod) error
}

type ApprovalRequest struct {
	State    string `json:"state" validate:"required,oneof=pending approved rejected"`
	Sessions *int   `json:"sessions" validate:"omitempty,min=0"`
}

type SessionsRequest struct {
	Sessions *int `json:"sessions" validate:"required,min=0"`
}

type BlackoutRequest struct {
	StartDate string `json:"start_date" validate:"required,isodate"`
	EndDate   string `json:"end_date" validate:"required,isodate"`
	Reason    string `json:"reason" validate:"max=256"`
}

type BlackoutResponse struct {
	ID        int    `json:"id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

type LedgerResponse struct {
	UserID            int    `json:"user_id"`
	ApprovalState     string `json:"approval_state"`
	SessionsGranted   int    `json:"sessions_granted"`
	RemainingCredits  int    `json:"remaining_credits"`
	ConsumedCredits   int    `json:"consumed_credits"`
	ConfirmedBookings int    `json:"confirmed_bookings"`
	Consistent        bool   `json:"consistent"`
	Problem           string `json:"problem,omitempty"`
}

var errSessionsOnlyOnApprove = apierror.NewSimple(http.StatusBadRequest, "Sessions can only be set when approving")
var errBlackoutRange = apierror.NewSimple(http.StatusBadRequest, "Blackout end date is before its start date")

type DefaultAdminService struct {
	Engine    *booking.Engine
	Blackouts BlackoutRepository
	Validate  *validator.Validate
}

func NewAdminService(engine *booking.Engine, blackouts BlackoutRepository, validate *validator.Validate) *DefaultAdminService {
	return &DefaultAdminService{Engine: engine, Blackouts: blackouts, Validate: validate}
}

// SetApproval moves a user through the approval table. Approving may carry a
// new session grant; every other move keeps the grant as it is.
func (a *DefaultAdminService) SetApproval(ctx context.Context, userID int, req *ApprovalRequest) (*UserResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if err := a.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	state := entity.ApprovalState(req.State)
	if req.Sessions != nil && state != entity.ApprovalApproved {
		return nil, errSessionsOnlyOnApprove
	}

	user, err := a.Engine.Gate().Transition(ctx, userID, state, req.Sessions)
	if err != nil {
		return nil, fromEngineError(err)
	}
	log.Infof("user %d approval is now %s with %d remaining credits", user.ID, user.ApprovalState, user.RemainingCredits)
	return toUserResponse(user), nil
}

func (a *DefaultAdminService) SetSessions(ctx context.Context, userID int, req *SessionsRequest) (*UserResponse, apierror.ErrorResponse) {
	if err := a.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	user, err := a.Engine.Ledger().SetGrant(ctx, userID, *req.Sessions)
	if err != nil {
		return nil, fromEngineError(err)
	}
	return toUserResponse(user), nil
}

// VerifyLedger reports a broken ledger as data rather than as a failure.
func (a *DefaultAdminService) VerifyLedger(ctx context.Context, userID int) (*LedgerResponse, apierror.ErrorResponse) {
	report, err := a.Engine.Ledger().Verify(ctx, userID)
	if err != nil && (report == nil || !errors.Is(err, booking.ErrLedgerCorrupted)) {
		return nil, fromEngineError(err)
	}

	resp := &LedgerResponse{
		UserID:            report.UserID,
		ApprovalState:     string(report.ApprovalState),
		SessionsGranted:   report.Credits.Granted,
		RemainingCredits:  report.Credits.Remaining,
		ConsumedCredits:   report.Credits.Consumed,
		ConfirmedBookings: report.ConfirmedBookings,
		Consistent:        err == nil,
	}
	if err != nil {
		resp.Problem = err.Error()
	}
	return resp, nil
}

func (a *DefaultAdminService) GetBlackouts() ([]*BlackoutResponse, apierror.ErrorResponse) {
	periods, err := a.Blackouts.FindAll()
	if err != nil {
		log.Errorf("failed to fetch blackout periods: %v", err)
		return nil, apierror.InternalServerError
	}

	resp := make([]*BlackoutResponse, len(periods))
	for i, p := range periods {
		resp[i] = toBlackoutResponse(p)
	}
	return resp, nil
}

// CreateBlackout closes a date range for new bookings. Bookings already
// confirmed inside the range are kept.
func (a *DefaultAdminService) CreateBlackout(req *BlackoutRequest) (*BlackoutResponse, apierror.ErrorResponse) {
	utils.Sanitize(req)
	if err := a.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}
	if req.EndDate < req.StartDate {
		return nil, errBlackoutRange
	}

	period := &entity.BlackoutPeriod{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Reason:    req.Reason,
		CreatedAt: utils.NowUTC(),
	}
	if err := a.Blackouts.Create(period); err != nil {
		log.Errorf("failed to save blackout %s..%s: %v", req.StartDate, req.EndDate, err)
		return nil, apierror.InternalServerError
	}
	return toBlackoutResponse(period), nil
}

func (a *DefaultAdminService) DeleteBlackout(id int) apierror.ErrorResponse {
	period, err := a.Blackouts.FindByID(id)
	if err != nil {
		log.Errorf("failed to fetch blackout %d: %v", id, err)
		return apierror.InternalServerError
	}
	if period == nil {
		return apierror.NotFoundError
	}

	if err := a.Blackouts.Delete(period); err != nil {
		log.Errorf("failed to delete blackout %d: %v", id, err)
		return apierror.InternalServerError
	}
	return nil
}

func toBlackoutResponse(p *entity.BlackoutPeriod) *BlackoutResponse {
	return &BlackoutResponse{
		ID:        p.ID,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		Reason:    p.Reason,
		CreatedAt: utils.FormatEpoch(p.CreatedAt),
	}
}
