package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/maddonsteve2-blip/traderefer-sub001/controllers"
	"github.com/maddonsteve2-blip/traderefer-sub001/middleware"
	"github.com/maddonsteve2-blip/traderefer-sub001/services"
)

// RegisterLeadRoutes sets up the lead lifecycle routes
func RegisterLeadRoutes(e *echo.Echo, leads *services.LeadService) {
	leadController := controllers.NewLeadController(leads)

	group := e.Group("/api/leads")
	group.Use(middleware.JWTMiddleware())
	group.Use(middleware.RequireActorType("business", "admin"))

	group.POST("", leadController.CreateLead)
	group.POST("/:id/confirm", leadController.ConfirmLead)
}
