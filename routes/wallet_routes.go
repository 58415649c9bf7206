package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/maddonsteve2-blip/traderefer-sub001/controllers"
	"github.com/maddonsteve2-blip/traderefer-sub001/middleware"
	"github.com/maddonsteve2-blip/traderefer-sub001/services"
)

// RegisterWalletRoutes sets up wallet and bonus routes
func RegisterWalletRoutes(e *echo.Echo, wallet *services.WalletService, bonuses *services.BonusService) {
	walletController := controllers.NewWalletController(wallet)
	bonusController := controllers.NewBonusController(bonuses)

	walletGroup := e.Group("/api/wallet")
	walletGroup.Use(middleware.JWTMiddleware())
	walletGroup.POST("/topup", walletController.Topup)
	walletGroup.GET("/balance", walletController.Balance)
	walletGroup.GET("/transactions", walletController.Transactions)

	bonusGroup := e.Group("/api/bonuses")
	bonusGroup.Use(middleware.JWTMiddleware())
	bonusGroup.Use(middleware.RequireActorType("business", "admin"))
	bonusGroup.POST("", bonusController.AwardBonus)
}
