package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is what services hand back to routes; routes write it with
// c.JSON(err.Code(), err).
type ErrorResponse interface {
	error
	Code() int
}

type SimpleError struct {
	Status  int            `json:"-"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func NewSimple(code int, message string) *SimpleError {
	return &SimpleError{Status: code, Message: message}
}

func (s *SimpleError) Code() int     { return s.Status }
func (s *SimpleError) Error() string { return s.Message }

// With returns a copy carrying extra details; the shared values stay untouched.
func (s *SimpleError) With(key string, value any) *SimpleError {
	details := make(map[string]any, len(s.Details)+1)
	for k, v := range s.Details {
		details[k] = v
	}
	details[key] = value
	return &SimpleError{Status: s.Status, Message: s.Message, Details: details}
}

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

type ValidationError struct {
	Status  int          `json:"-"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields"`
}

func (v *ValidationError) Code() int     { return v.Status }
func (v *ValidationError) Error() string { return v.Message }

// FromValidationError turns validator output into a 400 listing each failed
// field. Anything else becomes a plain malformed body error.
func FromValidationError(err error) ErrorResponse {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return MalformedBodyError
	}

	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()}
	}
	return &ValidationError{
		Status:  http.StatusBadRequest,
		Message: "Request body failed validation",
		Fields:  fields,
	}
}

func NewMissingParamError(param string) *SimpleError {
	return NewSimple(http.StatusBadRequest, fmt.Sprintf("Missing required parameter '%s'", param))
}

func NewInvalidParamTypeError(param, kind string) *SimpleError {
	return NewSimple(http.StatusBadRequest, fmt.Sprintf("Parameter '%s' must be of type %s", param, kind))
}

var (
	InternalServerError   = NewSimple(http.StatusInternalServerError, "Internal server error")
	NotFoundError         = NewSimple(http.StatusNotFound, "Resource not found")
	MalformedBodyError    = NewSimple(http.StatusBadRequest, "Malformed request body")
	InvalidAuthTokenError = NewSimple(http.StatusUnauthorized, "Invalid or missing authentication token")
	AdminOnlyError        = NewSimple(http.StatusForbidden, "Administrator privileges required")
	TooManyRequestsError  = NewSimple(http.StatusTooManyRequests, "Rate limit exceeded")

	UserAlreadyExistsError    = NewSimple(http.StatusConflict, "A user with this email already exists")
	UserAlreadyConfirmedError = NewSimple(http.StatusConflict, "User is already confirmed")

	IDPInvalidPasswordError     = NewSimple(http.StatusBadRequest, "Password does not meet the identity provider policy")
	IDPExistingEmailError       = NewSimple(http.StatusConflict, "Email is already registered with the identity provider")
	IDPUserNotFoundError        = NewSimple(http.StatusNotFound, "User not found")
	IDPUserNotConfirmedError    = NewSimple(http.StatusForbidden, "User has not confirmed the email address")
	IDPCredentialsMismatchError = NewSimple(http.StatusUnauthorized, "Email or password is incorrect")
	IDPConfirmCodeMismatchError = NewSimple(http.StatusBadRequest, "Confirmation code does not match")
	IDPConfirmCodeExpiredError  = NewSimple(http.StatusBadRequest, "Confirmation code has expired")

	// Booking engine outcomes.
	NotApprovedError         = NewSimple(http.StatusForbidden, "Account is not approved for booking")
	BlackoutConflictError    = NewSimple(http.StatusConflict, "Date falls within a blackout period")
	SlotUnavailableError     = NewSimple(http.StatusConflict, "Slot is already booked")
	InsufficientCreditsError = NewSimple(http.StatusPaymentRequired, "Not enough session credits")
	DateNotBookableError     = NewSimple(http.StatusUnprocessableEntity, "Date is not bookable")
	OutsideWindowError       = NewSimple(http.StatusUnprocessableEntity, "Outside the allowed booking window")
	InvalidTransitionError   = NewSimple(http.StatusConflict, "Transition not allowed from the current state")
	ForbiddenError           = NewSimple(http.StatusForbidden, "Not allowed to act on this booking")
	ConcurrentUpdateError    = NewSimple(http.StatusConflict, "Concurrent update, please retry")
	LedgerCorruptedError     = NewSimple(http.StatusInternalServerError, "Session ledger is inconsistent")
)
