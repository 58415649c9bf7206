// middleware/auth_middleware.go
package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// RequireActorType checks if the authenticated actor has one of the allowed types
func RequireActorType(allowedTypes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actorType := ExtractActorType(c)

			// If no actor type found, deny access
			if actorType == "" {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Status:  http.StatusUnauthorized,
					Message: "Authentication failed: actor type not found",
				})
			}

			for _, allowedType := range allowedTypes {
				if actorType == allowedType {
					return next(c)
				}
			}

			c.Logger().Errorf("Access denied for actor type: %s, allowed types: %v", actorType, allowedTypes)
			return c.JSON(http.StatusForbidden, models.Response{
				Status:  http.StatusForbidden,
				Message: "Access denied for your actor type",
			})
		}
	}
}
