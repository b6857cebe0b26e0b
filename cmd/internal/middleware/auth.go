package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"selfbooking/cmd/internal/domain/entity"
	cognitoclient "selfbooking/cmd/internal/integration/aws/cognito"
	"selfbooking/cmd/internal/utils"
	"selfbooking/cmd/internal/utils/apierror"
)

// TokenVerifier confirms with the identity provider that a token is live.
type TokenVerifier interface {
	GetUser(ctx context.Context, accessToken string) (*cognitoclient.Identity, error)
}

// UserEnroller maps a verified caller onto a local user row, creating a
// pending one on first sight.
type UserEnroller interface {
	EnsureUser(data *utils.TokenData) (*entity.User, apierror.ErrorResponse)
}

var errBadToken = errors.New("malformed access token")

// Auth reads the Bearer access token, checks its claims locally, confirms it
// with Cognito and stores the resulting *utils.TokenData on the context.
func Auth(verifier TokenVerifier, enroller UserEnroller, now func() time.Time) echo.MiddlewareFunc {
	if now == nil {
		now = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return c.JSON(apierror.InvalidAuthTokenError.Code(), apierror.InvalidAuthTokenError)
			}

			data, err := parseAccessClaims(raw, now())
			if err != nil {
				return c.JSON(apierror.InvalidAuthTokenError.Code(), apierror.InvalidAuthTokenError)
			}

			identity, err := verifier.GetUser(c.Request().Context(), raw)
			if err != nil || identity.Sub != data.Sub {
				if err != nil {
					log.Warnf("access token for %s rejected by identity provider: %v", data.Sub, err)
				}
				return c.JSON(apierror.InvalidAuthTokenError.Code(), apierror.InvalidAuthTokenError)
			}
			if identity.Email != "" {
				data.Email = identity.Email
			}

			user, apierr := enroller.EnsureUser(data)
			if apierr != nil {
				return c.JSON(apierr.Code(), apierr)
			}
			data.UserID = user.ID
			data.IsAdmin = user.IsAdmin

			c.Set(utils.TokenDataKey, data)
			return next(c)
		}
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := utils.ParseTokenDataCtx(c)
		if err != nil {
			return c.JSON(apierror.InvalidAuthTokenError.Code(), apierror.InvalidAuthTokenError)
		}
		if !data.IsAdmin {
			return c.JSON(apierror.AdminOnlyError.Code(), apierror.AdminOnlyError)
		}
		return next(c)
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// parseAccessClaims decodes a Cognito access token without checking the
// signature; GetUser is the authority on whether it is genuine.
func parseAccessClaims(raw string, now time.Time) (*utils.TokenData, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}

	if use, _ := claims["token_use"].(string); use != "access" {
		return nil, errBadToken
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil || !now.Before(exp.Time) {
		return nil, errBadToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errBadToken
	}

	data := &utils.TokenData{Sub: sub}
	data.Username, _ = claims["username"].(string)
	if groups, ok := claims["cognito:groups"].([]any); ok {
		for _, g := range groups {
			if s, ok := g.(string); ok {
				data.Groups = append(data.Groups, s)
			}
		}
	}
	return data, nil
}
