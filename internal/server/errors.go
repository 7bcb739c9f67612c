package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
)

// jsonErrors renders anything a handler or middleware returns as an
// ErrorResponse: echo errors (404, 401, 429) keep their code, swap errors
// map through apperr, the rest is a logged 500.
func jsonErrors(logger *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			msg := http.StatusText(he.Code)
			if m, ok := he.Message.(string); ok && m != "" {
				msg = m
			}
			_ = c.JSON(he.Code, ErrorResponse{Error: msg, Code: he.Code})
		case apperr.Kind(err) != nil:
			code := apperr.HTTPStatus(err)
			_ = c.JSON(code, ErrorResponse{Error: apperr.Kind(err).Error(), Code: code})
		default:
			logger.WithError(err).WithField("path", c.Path()).Error("unhandled error")
			_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: "internal server error",
				Code:  http.StatusInternalServerError,
			})
		}
	}
}
