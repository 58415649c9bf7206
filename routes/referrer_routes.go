package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/maddonsteve2-blip/traderefer-sub001/controllers"
	"github.com/maddonsteve2-blip/traderefer-sub001/middleware"
	"github.com/maddonsteve2-blip/traderefer-sub001/services"
)

// RegisterReferrerRoutes sets up referrer stats and link management routes
func RegisterReferrerRoutes(e *echo.Echo, referrers *services.ReferrerService) {
	referrerController := controllers.NewReferrerController(referrers)

	// Stats and QR are readable by the referrer themselves, their businesses
	// and admins
	stats := e.Group("/api/referrers")
	stats.Use(middleware.JWTMiddleware())
	stats.GET("/:id/stats", referrerController.GetStats)
	stats.GET("/:id/qrcode", referrerController.GetReferralQRCode)

	// Link management is a business/admin concern
	links := e.Group("/api/links")
	links.Use(middleware.JWTMiddleware())
	links.Use(middleware.RequireActorType("business", "admin"))
	links.POST("", referrerController.CreateLink)
	links.PUT("/fee", referrerController.SetCustomFee)
}
