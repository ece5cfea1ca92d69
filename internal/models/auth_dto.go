package models

import openapi_types "github.com/oapi-codegen/runtime/types"

type LoginRequest struct {
	Email    openapi_types.Email `json:"email"`
	Password string              `json:"password"`
}

// LoginResponse is the raw /auth/login/ body. It is either a token pair or a
// second-factor challenge; the facade turns it into a LoginResult.
type LoginResponse struct {
	Token       string              `json:"token,omitempty"`
	Refresh     string              `json:"refresh,omitempty"`
	User        *User               `json:"user,omitempty"`
	Message     string              `json:"message,omitempty"`
	Requires2FA bool                `json:"requires_2fa,omitempty"`
	Email       openapi_types.Email `json:"email,omitempty"`
}

type RegisterRequest struct {
	Email     openapi_types.Email `json:"email"`
	Password  string              `json:"password"`
	Password2 string              `json:"password2,omitempty"`
	FirstName string              `json:"first_name"`
	LastName  string              `json:"last_name"`
	Phone     string              `json:"phone,omitempty"`
}

// TokenPairResponse is shared by register, verify-email, 2fa/verify and change-password.
type TokenPairResponse struct {
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
	Refresh string `json:"refresh,omitempty"`
	User    *User  `json:"user,omitempty"`
}

func (r TokenPairResponse) Credentials() (Credentials, bool) {
	if r.Token == "" || r.Refresh == "" {
		return Credentials{}, false
	}
	return Credentials{AccessToken: r.Token, RefreshToken: r.Refresh}, true
}

type TokenRefreshRequest struct {
	Refresh string `json:"refresh"`
}

// TokenRefreshResponse carries a new access token and, when the backend rotates
// refresh tokens, a new refresh token.
type TokenRefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

type EmailRequest struct {
	Email openapi_types.Email `json:"email"`
}

type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type VerifyTwoFactorRequest struct {
	Email openapi_types.Email `json:"email"`
	Code  string              `json:"code"`
}

// MessageResponse is the body of endpoints that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
