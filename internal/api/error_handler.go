package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/storefront/internal/backend"
	"github.com/rryowa/storefront/internal/models"
	"github.com/rryowa/storefront/internal/util"
)

type unauthorizedError struct {
	cause error
}

func (e *unauthorizedError) Error() string { return e.cause.Error() }
func (e *unauthorizedError) Unwrap() error { return e.cause }

func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if writeErr := writeError(log, err, c); writeErr != nil {
			log.Errorw("failed to write json response", "error", writeErr)
		}
	}
}

func writeError(log *zap.SugaredLogger, err error, c echo.Context) error {
	var unauthorized *unauthorizedError
	if errors.As(err, &unauthorized) {
		msg := "Given token not valid for any token type"
		if errors.Is(err, backend.ErrTokenExpired) {
			msg = "Token is expired"
		}
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: msg})
	}

	var fieldErr *backend.FieldError
	if errors.As(err, &fieldErr) {
		return c.JSON(http.StatusBadRequest, map[string][]string{fieldErr.Field: {fieldErr.Msg}})
	}

	var respErr util.ResponseError
	if errors.As(err, &respErr) {
		return c.JSON(respErr.Status, models.ErrorResponse{Error: respErr.Msg})
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code == http.StatusInternalServerError {
			log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
		}
		msg, ok := he.Message.(string)
		if !ok {
			msg = fmt.Sprint(he.Message)
		}
		return c.JSON(he.Code, models.ErrorResponse{Error: msg})
	}

	log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
}
