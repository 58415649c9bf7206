package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/maddonsteve2-blip/traderefer-sub001/controllers"
	"github.com/maddonsteve2-blip/traderefer-sub001/middleware"
	"github.com/maddonsteve2-blip/traderefer-sub001/services"
	"github.com/maddonsteve2-blip/traderefer-sub001/websocket"
)

// RegisterAdminRoutes sets up all admin-only routes
func RegisterAdminRoutes(e *echo.Echo, settlement *services.SettlementService, wallet *services.WalletService, leads *services.LeadService, payments *services.PaymentService, hub *websocket.Hub) {
	adminController := controllers.NewAdminController(settlement, wallet, leads, payments, hub)

	admin := e.Group("/api/admin")
	admin.Use(middleware.JWTMiddleware())
	admin.Use(middleware.RequireActorType("admin"))

	admin.POST("/leads/:id/settlement/retry", adminController.RetrySettlement)
	admin.POST("/leads/expire", adminController.ExpireLeads)
	admin.POST("/reconcile", adminController.Reconcile)
	admin.POST("/tokens", adminController.MintToken)
	admin.GET("/gateway/balance", adminController.GatewayBalance)
	admin.GET("/alerts/ws", adminController.AlertStream)
	admin.GET("/alerts/status", adminController.AlertStatus)
}
