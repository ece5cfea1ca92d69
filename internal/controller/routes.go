package controller

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"

	"github.com/rryowa/storefront/internal/models"
)

//go:embed openapi/openapi.yaml
var openapiSpec []byte

// GetSwagger loads the embedded OpenAPI document the request validator uses.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := swagger.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return swagger, nil
}

// EchoRouter is satisfied by both *echo.Echo and *echo.Group.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	PATCH(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlers mounts every endpoint relative to router; auth guards the
// ones that need a bearer token.
func RegisterHandlers(router EchoRouter, c *Controller, auth echo.MiddlewareFunc) {
	router.GET("/ping", c.CheckServer)

	router.POST(models.PathLogin, c.Login)
	router.POST(models.PathRegister, c.Register)
	router.POST(models.PathTokenRefresh, c.RefreshToken)
	router.POST(models.PathPasswordReset, c.RequestPasswordReset)
	router.POST(models.PathPasswordResetConfirm, c.ConfirmPasswordReset)
	router.POST(models.PathVerifyEmail, c.VerifyEmail)
	router.POST(models.PathResendVerification, c.ResendVerification)
	router.POST(models.PathTwoFactorVerify, c.VerifyTwoFactor)

	router.POST(models.PathLogout, c.Logout, auth)
	router.GET(models.PathProfile, c.GetProfile, auth)
	router.PATCH(models.PathProfile, c.UpdateProfile, auth)
	router.POST(models.PathChangePassword, c.ChangePassword, auth)
	router.POST(models.PathDeleteAccount, c.DeleteAccount, auth)
	router.POST(models.PathTwoFactorEnable, c.EnableTwoFactor, auth)
	router.POST(models.PathTwoFactorDisable, c.DisableTwoFactor, auth)
}
