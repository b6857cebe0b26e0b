package utils

import (
	"errors"

	"github.com/labstack/echo/v4"
)

// TokenDataKey is the echo context key the auth middleware stores claims under.
const TokenDataKey = "token_data"

var ErrNoTokenData = errors.New("no token data in request context")

// TokenData is what the handlers need from a verified access token.
type TokenData struct {
	Sub      string
	Username string
	Email    string
	Groups   []string
	// UserID and IsAdmin come from the local user row once the caller is
	// enrolled.
	UserID  int
	IsAdmin bool
}

// InAdminGroup reports whether the token carries the admin group.
func (t *TokenData) InAdminGroup() bool {
	for _, g := range t.Groups {
		if g == "admin" {
			return true
		}
	}
	return false
}

func ParseTokenDataCtx(c echo.Context) (*TokenData, error) {
	data, ok := c.Get(TokenDataKey).(*TokenData)
	if !ok || data == nil || data.Sub == "" {
		return nil, ErrNoTokenData
	}
	return data, nil
}
