package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials is the access/refresh token pair held by the credential store.
// Empty strings mean absent.
type Credentials struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (c Credentials) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// AccessExpiresAt reads the exp claim of the access token without verifying the
// signature. It reports false when the token is absent, opaque or carries no exp.
func (c Credentials) AccessExpiresAt() (time.Time, bool) {
	if c.AccessToken == "" {
		return time.Time{}, false
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, &jwt.RegisteredClaims{})
	if err != nil {
		return time.Time{}, false
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
