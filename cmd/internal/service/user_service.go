package service

import (
	"errors"
	"strconv"

	"github.com/aws/smithy-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"

	"selfbooking/cmd/internal/domain/entity"
	cognitoclient "selfbooking/cmd/internal/integration/aws/cognito"
	"selfbooking/cmd/internal/utils"
	"selfbooking/cmd/internal/utils/apierror"
)

type UserRepository interface {
	FindByID(id int) (*entity.User, error)
	FindBySub(sub string) (*entity.User, error)
	FindAll() ([]*entity.User, error)
	FindByEmail(email string) (*entity.User, error)
	ExistsByEmail(email string) (bool, error)
	Save(user *entity.User) error
}

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=2,max=80,nospaces"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=64,hasspecial,hasdigit,hasupper,haslower" sanitize:"-"`
}

type UserLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=64"`
}

type ConfirmSignupRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,min=1,max=6"`
}

type UserResponse struct {
	ID               int    `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	Label            string `json:"label,omitempty"`
	IsAdmin          bool   `json:"is_admin"`
	ApprovalState    string `json:"approval_state"`
	SessionsGranted  int    `json:"sessions_granted"`
	RemainingCredits int    `json:"remaining_credits"`
	ConsumedCredits  int    `json:"consumed_credits"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type UserLoginResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

type DefaultUserService struct {
	UserRepo UserRepository
	Validate *validator.Validate
	Cognito  cognitoclient.CognitoInterface
}

func NewUserService(userRepo UserRepository, validate *validator.Validate, cogClient cognitoclient.CognitoInterface) *DefaultUserService {
	return &DefaultUserService{UserRepo: userRepo, Validate: validate, Cognito: cogClient}
}

func (u *DefaultUserService) GetUsers() ([]*UserResponse, apierror.ErrorResponse) {
	users, err := u.UserRepo.FindAll()
	if err != nil {
		log.Errorf("failed to fetch all users: %v", err)
		return nil, apierror.InternalServerError
	}

	resp := make([]*UserResponse, len(users))
	for i, user := range users {
		resp[i] = toUserResponse(user)
	}
	return resp, nil
}

// GetUser resolves "@me" to the caller. Other users are visible to
// administrators only.
func (u *DefaultUserService) GetUser(rawId string, caller *utils.TokenData) (*UserResponse, apierror.ErrorResponse) {
	user, apierr := u.fetchUser(rawId, caller.Sub)
	if apierr != nil {
		return nil, apierr
	}

	if user == nil || (user.SubUUID != caller.Sub && !caller.IsAdmin) {
		return nil, apierror.NotFoundError
	}

	resp := toUserResponse(user)
	return resp, nil
}

// EnsureUser returns the local row for an authenticated caller, enrolling a
// pending account with no credits the first time the subject is seen.
// Membership in the identity provider's admin group is mirrored onto the row,
// so leaving the group also drops the admin flag.
func (u *DefaultUserService) EnsureUser(data *utils.TokenData) (*entity.User, apierror.ErrorResponse) {
	user, err := u.UserRepo.FindBySub(data.Sub)
	if err != nil {
		log.Errorf("failed to find user (%s) by sub: %v", data.Sub, err)
		return nil, apierror.InternalServerError
	}

	now := utils.NowUTC()
	if user == nil {
		user = &entity.User{
			SubUUID:       data.Sub,
			Username:      data.Username,
			Email:         data.Email,
			EmailVerified: true,
			IsAdmin:       data.InAdminGroup(),
			ApprovalState: entity.ApprovalPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := u.UserRepo.Save(user); err != nil {
			// Lost the race against a parallel first request.
			existing, ferr := u.UserRepo.FindBySub(data.Sub)
			if ferr != nil || existing == nil {
				log.Errorf("failed to enroll user (%s): %v", data.Sub, err)
				return nil, apierror.InternalServerError
			}
			return existing, nil
		}
		log.Infof("enrolled user %d (%s) as pending", user.ID, data.Sub)
		return user, nil
	}

	if admin := data.InAdminGroup(); user.IsAdmin != admin {
		user.IsAdmin = admin
		user.UpdatedAt = now
		if err := u.UserRepo.Save(user); err != nil {
			log.Errorf("failed to set admin=%t on user %d: %v", admin, user.ID, err)
			return nil, apierror.InternalServerError
		}
		log.Infof("user %d admin flag now %t from identity provider groups", user.ID, admin)
	}
	return user, nil
}

// CreateUser registers the account with Cognito, which mails a confirmation
// code, and stores it locally as pending. The Cognito account is removed
// again if the local insert fails.
func (u *DefaultUserService) CreateUser(req *CreateUserRequest) apierror.ErrorResponse {
	utils.Sanitize(req)
	if err := u.Validate.Struct(req); err != nil {
		return apierror.FromValidationError(err)
	}

	taken, err := u.UserRepo.ExistsByEmail(req.Email)
	if err != nil {
		log.Errorf("failed to look up email %s: %v", req.Email, err)
		return apierror.InternalServerError
	}
	if taken {
		return apierror.UserAlreadyExistsError
	}

	sub, err := u.Cognito.SignUp(&cognitoclient.User{Email: req.Email, Password: req.Password})
	if err != nil {
		return fromIDPError("signup", req.Email, err, signUpErrors)
	}

	now := utils.NowUTC()
	user := &entity.User{
		SubUUID:       sub,
		Username:      req.Username,
		Email:         req.Email,
		ApprovalState: entity.ApprovalPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := u.UserRepo.Save(user); err != nil {
		log.Errorf("failed to store user %s, removing cognito account: %v", req.Email, err)
		if derr := u.Cognito.AdminDeleteUser(req.Email); derr != nil {
			log.Errorf("failed to remove cognito account %s: %v", req.Email, derr)
		}
		return apierror.InternalServerError
	}
	return nil
}

func (u *DefaultUserService) Login(req *UserLoginRequest) (*UserLoginResponse, apierror.ErrorResponse) {
	if err := u.Validate.Struct(req); err != nil {
		return nil, apierror.FromValidationError(err)
	}

	if _, apierr := u.fetchByEmail(req.Email); apierr != nil {
		return nil, apierr
	}

	auth, err := u.Cognito.SignIn(&cognitoclient.UserLogin{Email: req.Email, Password: req.Password})
	if err != nil {
		return nil, fromIDPError("signin", req.Email, err, signInErrors)
	}
	return &UserLoginResponse{AccessToken: auth.AccessToken, IDToken: auth.IDToken}, nil
}

// ConfirmSignup checks the mailed code with Cognito and marks the email as
// verified. A pending account still needs an administrator's approval.
func (u *DefaultUserService) ConfirmSignup(req *ConfirmSignupRequest) apierror.ErrorResponse {
	if err := u.Validate.Struct(req); err != nil {
		return apierror.FromValidationError(err)
	}

	user, apierr := u.fetchByEmail(req.Email)
	if apierr != nil {
		return apierr
	}
	if user.EmailVerified {
		return apierror.UserAlreadyConfirmedError
	}

	err := u.Cognito.ConfirmAccount(&cognitoclient.UserConfirmation{Email: req.Email, Code: req.Code})
	if err != nil {
		return fromIDPError("confirm", req.Email, err, confirmErrors)
	}

	user.EmailVerified = true
	user.UpdatedAt = utils.NowUTC()
	if err := u.UserRepo.Save(user); err != nil {
		// Cognito already holds the confirmation.
		log.Errorf("failed to mark user %d verified: %v", user.ID, err)
	}
	return nil
}

func (u *DefaultUserService) fetchUser(rawId, sub string) (*entity.User, apierror.ErrorResponse) {
	if rawId != "@me" {
		return u.fetchByID(rawId)
	}
	user, err := u.UserRepo.FindBySub(sub)
	if err != nil {
		log.Errorf("failed to find user by sub %s: %v", sub, err)
		return nil, apierror.InternalServerError
	}
	return user, nil
}

func (u *DefaultUserService) fetchByID(rawId string) (*entity.User, apierror.ErrorResponse) {
	id, err := strconv.Atoi(rawId)
	if err != nil {
		return nil, apierror.NewInvalidParamTypeError("id", "int")
	}
	user, err := u.UserRepo.FindByID(id)
	if err != nil {
		log.Errorf("failed to find user %d: %v", id, err)
		return nil, apierror.InternalServerError
	}
	return user, nil
}

// fetchByEmail treats a missing local row like an unknown Cognito user.
func (u *DefaultUserService) fetchByEmail(email string) (*entity.User, apierror.ErrorResponse) {
	user, err := u.UserRepo.FindByEmail(email)
	if err != nil {
		log.Errorf("failed to find user by email %s: %v", email, err)
		return nil, apierror.InternalServerError
	}
	if user == nil {
		return nil, apierror.IDPUserNotFoundError
	}
	return user, nil
}

// Cognito error codes callers can act on, per operation.
var (
	signUpErrors = map[string]*apierror.SimpleError{
		"InvalidPasswordException": apierror.IDPInvalidPasswordError,
		"UsernameExistsException":  apierror.IDPExistingEmailError,
	}
	signInErrors = map[string]*apierror.SimpleError{
		"UserNotFoundException":     apierror.IDPUserNotFoundError,
		"UserNotConfirmedException": apierror.IDPUserNotConfirmedError,
		"NotAuthorizedException":    apierror.IDPCredentialsMismatchError,
	}
	confirmErrors = map[string]*apierror.SimpleError{
		"CodeMismatchException": apierror.IDPConfirmCodeMismatchError,
		"ExpiredCodeException":  apierror.IDPConfirmCodeExpiredError,
		"UserNotFoundException": apierror.IDPUserNotFoundError,
	}
)

// fromIDPError maps a Cognito API error through known. Anything else is
// logged and reported as an internal error.
func fromIDPError(op, email string, err error, known map[string]*apierror.SimpleError) apierror.ErrorResponse {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		log.Errorf("cognito %s for %s failed: %v", op, email, err)
		return apierror.InternalServerError
	}
	if resp, ok := known[apiErr.ErrorCode()]; ok {
		return resp
	}
	log.Errorf("cognito %s for %s failed: %s: %s", op, email, apiErr.ErrorCode(), apiErr.ErrorMessage())
	return apierror.InternalServerError
}

func toUserResponse(user *entity.User) *UserResponse {
	return &UserResponse{
		ID:               user.ID,
		Username:         user.Username,
		Email:            user.Email,
		Label:            user.Label,
		IsAdmin:          user.IsAdmin,
		ApprovalState:    string(user.ApprovalState),
		SessionsGranted:  user.SessionsGranted,
		RemainingCredits: user.RemainingCredits,
		ConsumedCredits:  user.ConsumedCredits,
		CreatedAt:        utils.FormatEpoch(user.CreatedAt),
		UpdatedAt:        utils.FormatEpoch(user.UpdatedAt),
	}
}
