// controllers/http_errors.go
package controllers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// errorStatus maps service-layer sentinels onto HTTP status codes. Anything
// unmapped is a 500; the raw error text stays out of the response body.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrFeeTooLow):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidPin):
		return http.StatusForbidden
	case errors.Is(err, models.ErrAlreadyTerminal),
		errors.Is(err, models.ErrDuplicateLink):
		return http.StatusConflict
	case errors.Is(err, models.ErrBusinessNotFound),
		errors.Is(err, models.ErrReferrerNotFound),
		errors.Is(err, models.ErrLinkNotFound),
		errors.Is(err, models.ErrLeadNotFound),
		errors.Is(err, models.ErrBonusNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrLedgerFrozen):
		return http.StatusLocked
	case errors.Is(err, models.ErrPaymentDeclined),
		errors.Is(err, models.ErrPaymentTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(c echo.Context, err error) error {
	status := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("internal error on %s: %v", c.Request().URL.Path, err)
		message = "Internal server error"
	}
	return c.JSON(status, models.Response{
		Status:  status,
		Message: message,
	})
}
