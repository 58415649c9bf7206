// controllers/wallet_controller.go
package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
	"github.com/maddonsteve2-blip/traderefer-sub001/services"
)

type WalletController struct {
	wallet   *services.WalletService
	validate *validator.Validate
}

func NewWalletController(wallet *services.WalletService) *WalletController {
	return &WalletController{
		wallet:   wallet,
		validate: validator.New(),
	}
}

// ownerFromQuery resolves the ?ownerType=&ownerId= pair shared by the wallet
// read endpoints.
func ownerFromQuery(c echo.Context) (models.OwnerRef, error) {
	ownerID, err := primitive.ObjectIDFromHex(c.QueryParam("ownerId"))
	if err != nil {
		return models.OwnerRef{}, echo.NewHTTPError(http.StatusBadRequest, "Invalid owner ID format")
	}

	switch models.OwnerType(c.QueryParam("ownerType")) {
	case models.OwnerBusiness:
		return models.BusinessOwner(ownerID), nil
	case models.OwnerReferrer:
		return models.ReferrerOwner(ownerID), nil
	default:
		return models.OwnerRef{}, echo.NewHTTPError(http.StatusBadRequest, "ownerType must be business or referrer")
	}
}

// Topup handles POST /api/wallet/topup. The business ID comes from the
// query so admins can top up on a business's behalf.
func (wc *WalletController) Topup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	businessID, err := primitive.ObjectIDFromHex(c.QueryParam("businessId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid business ID format",
		})
	}

	var req models.TopupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if err := wc.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	newBalance, err := wc.wallet.Topup(ctx, businessID, req.AmountCents, req.PaymentRef)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Wallet topped up",
		Data:    models.TopupResponse{NewBalanceCents: newBalance},
	})
}

// Balance handles GET /api/wallet/balance. Always the server-side cached
// balance, never a client-side estimate.
func (wc *WalletController) Balance(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	owner, err := ownerFromQuery(c)
	if err != nil {
		return err
	}

	balance, err := wc.wallet.Balance(ctx, owner)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Balance retrieved",
		Data: map[string]int64{
			"balanceCents": balance,
		},
	})
}

// Transactions handles GET /api/wallet/transactions, newest first.
func (wc *WalletController) Transactions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	owner, err := ownerFromQuery(c)
	if err != nil {
		return err
	}

	var limit int64
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid limit",
			})
		}
	}

	txs, err := wc.wallet.Transactions(ctx, owner, limit)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Transactions retrieved",
		Data:    txs,
	})
}
