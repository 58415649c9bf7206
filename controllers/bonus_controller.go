// controllers/bonus_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
	"github.com/maddonsteve2-blip/traderefer-sub001/services"
)

type BonusController struct {
	bonuses  *services.BonusService
	validate *validator.Validate
}

func NewBonusController(bonuses *services.BonusService) *BonusController {
	return &BonusController{
		bonuses:  bonuses,
		validate: validator.New(),
	}
}

// AwardBonus handles POST /api/bonuses. INSUFFICIENT_FUNDS and
// PAYMENT_FAILED are reported inside the result body, not as HTTP errors:
// the request itself was handled fine, the award just did not go through.
func (bc *BonusController) AwardBonus(c echo.Context) error {
	// Card capture can take up to the provider timeout, so this budget is
	// wider than the usual handler timeout.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	var req models.AwardBonusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	// Header takes precedence over the body field
	if key := c.Request().Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	if err := bc.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	result, err := bc.bonuses.Award(ctx, req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Bonus award processed",
		Data:    result,
	})
}
