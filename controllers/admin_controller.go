// controllers/admin_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/maddonsteve2-blip/traderefer-sub001/middleware"
	"github.com/maddonsteve2-blip/traderefer-sub001/models"
	"github.com/maddonsteve2-blip/traderefer-sub001/services"
	"github.com/maddonsteve2-blip/traderefer-sub001/websocket"
)

type AdminController struct {
	settlement *services.SettlementService
	wallet     *services.WalletService
	leads      *services.LeadService
	payments   *services.PaymentService
	hub        *websocket.Hub
}

func NewAdminController(settlement *services.SettlementService, wallet *services.WalletService, leads *services.LeadService, payments *services.PaymentService, hub *websocket.Hub) *AdminController {
	return &AdminController{
		settlement: settlement,
		wallet:     wallet,
		leads:      leads,
		payments:   payments,
		hub:        hub,
	}
}

// RetrySettlement handles POST /api/admin/leads/:id/settlement/retry. Only
// leads parked in PENDING_FUNDS are eligible; retry replays the wallet pair
// without touching the referrer's tier progress again.
func (ac *AdminController) RetrySettlement(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	leadID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid lead ID format",
		})
	}

	result, err := ac.settlement.Retry(ctx, leadID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Settlement retried",
		Data:    result,
	})
}

// Reconcile handles POST /api/admin/reconcile: a manual run of the cached
// balance vs ledger sum check across all owners. Faulted owners have their
// ledgers frozen before this returns.
func (ac *AdminController) Reconcile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	checked, faults := ac.wallet.ReconcileAll(ctx)

	faultMessages := make([]string, 0, len(faults))
	for _, f := range faults {
		faultMessages = append(faultMessages, f.Error())
	}

	status := http.StatusOK
	message := "Reconciliation complete"
	if len(faults) > 0 {
		status = http.StatusConflict
		message = "Reconciliation found inconsistencies"
	}

	return c.JSON(status, models.Response{
		Status:  status,
		Message: message,
		Data: map[string]interface{}{
			"ownersChecked": checked,
			"faults":        faultMessages,
		},
	})
}

// ExpireLeads handles POST /api/admin/leads/expire: a manual run of the
// sweep the scheduler performs daily.
func (ac *AdminController) ExpireLeads(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	expired, err := ac.leads.ExpireUnconfirmed(ctx, time.Now())
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Expiry sweep complete",
		Data: map[string]int64{
			"expired": expired,
		},
	})
}

// AlertStream handles GET /api/admin/alerts/ws, the live ops alert feed.
func (ac *AdminController) AlertStream(c echo.Context) error {
	return websocket.HandleWebSocket(c, ac.hub)
}

// AlertStatus handles GET /api/admin/alerts/status: how many dashboard
// clients are currently connected to the alert feed.
func (ac *AdminController) AlertStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Alert stream status",
		Data: map[string]int{
			"connectedClients": ac.hub.ClientCount(),
		},
	})
}

// GatewayBalance handles GET /api/admin/gateway/balance: the platform's
// balance at the card gateway, checked before large settlement runs.
func (ac *AdminController) GatewayBalance(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	balance, err := ac.payments.AccountBalance(ctx)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Gateway account balance",
		Data: map[string]int64{
			"balanceCents": balance,
		},
	})
}

// MintToken handles POST /api/admin/tokens. There is no self-service login;
// operators issue tokens for verified businesses and referrers here.
func (ac *AdminController) MintToken(c echo.Context) error {
	var req models.MintTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "actorId and a valid actorType are required",
		})
	}

	token, refresh, err := middleware.GenerateJWT(req.ActorID, req.ActorType)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Token issued",
		Data: models.TokenPair{
			Token:        token,
			RefreshToken: refresh,
		},
	})
}
