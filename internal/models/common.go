package models

//nolint:gosec //file not handles sensitive data
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	HeaderContentType   = "Content-Type"
	HeaderAccept        = "Accept"
	HeaderUserAgent     = "User-Agent"

	BearerScheme = "Bearer"
	MIMEJSON     = "application/json"
)

// Backend routes, relative to the API base URL. The backend routes them with a
// trailing slash.
const (
	PathLogin                = "/auth/login/"
	PathRegister             = "/auth/register/"
	PathLogout               = "/auth/logout/"
	PathTokenRefresh         = "/auth/token/refresh/"
	PathProfile              = "/auth/profile/"
	PathChangePassword       = "/auth/change-password/"
	PathDeleteAccount        = "/auth/delete-account/"
	PathPasswordReset        = "/auth/password-reset/"
	PathPasswordResetConfirm = "/auth/password-reset/confirm/"
	PathVerifyEmail          = "/auth/verify-email/"
	PathResendVerification   = "/auth/resend-verification/"
	PathTwoFactorEnable      = "/auth/2fa/enable/"
	PathTwoFactorDisable     = "/auth/2fa/disable/"
	PathTwoFactorVerify      = "/auth/2fa/verify/"
)
