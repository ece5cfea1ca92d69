package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/storefront/internal/backend"
	"github.com/rryowa/storefront/internal/models"
	"github.com/rryowa/storefront/internal/util"
)

const UserIDContextKey = "user_id"

type Controller struct {
	zapLogger *zap.SugaredLogger
	directory *backend.Directory
}

func NewController(logger *zap.SugaredLogger, directory *backend.Directory) *Controller {
	return &Controller{
		zapLogger: logger,
		directory: directory,
	}
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

// (POST /api/auth/login/).
func (c *Controller) Login(ctx echo.Context) error {
	var req models.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	user, pair, challenged, err := c.directory.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, backend.ErrInvalidCredentials) {
			return util.NewResponseError(http.StatusUnauthorized, "Invalid email or password")
		}
		return err
	}

	if challenged {
		return ctx.JSON(http.StatusOK, models.LoginResponse{
			Message:     "Verification code sent to your email",
			Requires2FA: true,
			Email:       user.Email,
		})
	}

	return ctx.JSON(http.StatusOK, models.LoginResponse{
		Message: "Login successful",
		Token:   pair.Access,
		Refresh: pair.Refresh,
		User:    &user,
	})
}

// (POST /api/auth/register/).
func (c *Controller) Register(ctx echo.Context) error {
	var req models.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	user, pair, err := c.directory.Register(req)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, pairResponse("Registration successful", user, pair))
}

// (POST /api/auth/logout/).
func (c *Controller) Logout(ctx echo.Context) error {
	var req models.LogoutRequest
	if err := ctx.Bind(&req); err != nil || req.RefreshToken == "" {
		return util.NewResponseError(http.StatusBadRequest, "Refresh token is required")
	}

	if err := c.directory.Revoke(req.RefreshToken); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "Invalid token")
	}

	return ctx.JSON(http.StatusOK, models.MessageResponse{Message: "Logout successful"})
}

// (POST /api/auth/token/refresh/).
func (c *Controller) RefreshToken(ctx echo.Context) error {
	var req models.TokenRefreshRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	pair, err := c.directory.Refresh(req.Refresh)
	if err != nil {
		c.zapLogger.Debugw("Refresh rejected", "error", err)
		return util.NewResponseError(http.StatusUnauthorized, "Token is invalid or expired")
	}

	return ctx.JSON(http.StatusOK, models.TokenRefreshResponse{Access: pair.Access, Refresh: pair.Refresh})
}

// (GET /api/auth/profile/).
func (c *Controller) GetProfile(ctx echo.Context) error {
	user, err := c.directory.Profile(userID(ctx))
	if err != nil {
		return notFound(err)
	}
	return ctx.JSON(http.StatusOK, user)
}

// (PATCH /api/auth/profile/).
func (c *Controller) UpdateProfile(ctx echo.Context) error {
	var req models.ProfileUpdate
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	user, err := c.directory.UpdateProfile(userID(ctx), req)
	if err != nil {
		return notFound(err)
	}
	return ctx.JSON(http.StatusOK, user)
}

// (POST /api/auth/change-password/).
func (c *Controller) ChangePassword(ctx echo.Context) error {
	var req models.ChangePasswordRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	pair, err := c.directory.ChangePassword(userID(ctx), req.CurrentPassword, req.NewPassword)
	if err != nil {
		return notFound(err)
	}

	return ctx.JSON(http.StatusOK, models.TokenPairResponse{
		Message: "Password changed successfully",
		Token:   pair.Access,
		Refresh: pair.Refresh,
	})
}

// (POST /api/auth/delete-account/).
func (c *Controller) DeleteAccount(ctx echo.Context) error {
	var req models.DeleteAccountRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	if err := c.directory.DeleteAccount(userID(ctx), req.Password); err != nil {
		if errors.Is(err, backend.ErrInvalidPassword) {
			return util.NewResponseError(http.StatusBadRequest, "Password is incorrect")
		}
		return notFound(err)
	}

	return ctx.JSON(http.StatusOK, models.MessageResponse{Message: "Account deleted"})
}

// (POST /api/auth/password-reset/).
func (c *Controller) RequestPasswordReset(ctx echo.Context) error {
	var req models.EmailRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	if err := c.directory.RequestPasswordReset(req.Email); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, models.MessageResponse{
		Message: "If an account exists for this email, a reset link has been sent",
	})
}

// (POST /api/auth/password-reset/confirm/).
func (c *Controller) ConfirmPasswordReset(ctx echo.Context) error {
	var req models.PasswordResetConfirmRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	if err := c.directory.ResetPassword(req.Token, req.NewPassword); err != nil {
		if errors.Is(err, backend.ErrInvalidResetToken) {
			return util.NewResponseError(http.StatusBadRequest, "Invalid or expired reset token")
		}
		return err
	}
	return ctx.JSON(http.StatusOK, models.MessageResponse{Message: "Password has been reset"})
}

// (POST /api/auth/verify-email/).
func (c *Controller) VerifyEmail(ctx echo.Context) error {
	var req models.VerifyEmailRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	user, pair, err := c.directory.VerifyEmail(req.Token)
	if err != nil {
		if errors.Is(err, backend.ErrInvalidVerificationToken) {
			return util.NewResponseError(http.StatusBadRequest, "Invalid or expired verification token")
		}
		return err
	}
	return ctx.JSON(http.StatusOK, pairResponse("Email verified", user, pair))
}

// (POST /api/auth/resend-verification/).
func (c *Controller) ResendVerification(ctx echo.Context) error {
	var req models.EmailRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	if err := c.directory.ResendVerification(req.Email); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, models.MessageResponse{Message: "Verification email sent"})
}

// (POST /api/auth/2fa/enable/).
func (c *Controller) EnableTwoFactor(ctx echo.Context) error {
	if err := c.directory.SetTwoFactor(userID(ctx), true); err != nil {
		return notFound(err)
	}
	return ctx.JSON(http.StatusOK, models.MessageResponse{Message: "Two-factor authentication enabled"})
}

// (POST /api/auth/2fa/disable/).
func (c *Controller) DisableTwoFactor(ctx echo.Context) error {
	if err := c.directory.SetTwoFactor(userID(ctx), false); err != nil {
		return notFound(err)
	}
	return ctx.JSON(http.StatusOK, models.MessageResponse{Message: "Two-factor authentication disabled"})
}

// (POST /api/auth/2fa/verify/).
func (c *Controller) VerifyTwoFactor(ctx echo.Context) error {
	var req models.VerifyTwoFactorRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}

	user, pair, err := c.directory.VerifyTwoFactor(req.Email, req.Code)
	if err != nil {
		if errors.Is(err, backend.ErrInvalidTwoFactorCode) {
			return util.NewResponseError(http.StatusBadRequest, "Invalid or expired verification code")
		}
		return err
	}
	return ctx.JSON(http.StatusOK, pairResponse("Login successful", user, pair))
}

func pairResponse(msg string, user models.User, pair backend.TokenPair) models.TokenPairResponse {
	return models.TokenPairResponse{
		Message: msg,
		Token:   pair.Access,
		Refresh: pair.Refresh,
		User:    &user,
	}
}

func userID(ctx echo.Context) string {
	id, _ := ctx.Get(UserIDContextKey).(string)
	return id
}

// notFound turns a vanished account into 404; everything else passes through
// to the error handler.
func notFound(err error) error {
	if errors.Is(err, backend.ErrUserNotFound) {
		return util.NewResponseError(http.StatusNotFound, "User not found")
	}
	return err
}
