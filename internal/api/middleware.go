package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rryowa/storefront/internal/controller"
	"github.com/rryowa/storefront/internal/models"
)

// Authenticator resolves a bearer access token to a user id.
type Authenticator interface {
	Authenticate(accessToken string) (string, error)
}

// BearerAuthMiddleware проверяет access токен в заголовке Authorization.
// Если токен валиден, id пользователя сохраняется в контексте Echo.
func BearerAuthMiddleware(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(models.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, models.BearerScheme+" ")
			if !ok || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided")
			}

			userID, err := auth.Authenticate(token)
			if err != nil {
				return &unauthorizedError{cause: err}
			}

			c.Set(controller.UserIDContextKey, userID)

			return next(c)
		}
	}
}

func GetLoggerMiddlewareConfig(a *API) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogError:     true,
		LogLatency:   true,
		LogRequestID: true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", c.Request().Header.Get(models.HeaderRequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				a.log.Warnw("Request", fields...)
			} else {
				a.log.Infow("Request", fields...)
			}
			return nil
		},
	}
}
