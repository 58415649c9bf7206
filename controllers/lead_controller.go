// controllers/lead_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
	"github.com/maddonsteve2-blip/traderefer-sub001/services"
)

type LeadController struct {
	leads    *services.LeadService
	validate *validator.Validate
}

func NewLeadController(leads *services.LeadService) *LeadController {
	return &LeadController{
		leads:    leads,
		validate: validator.New(),
	}
}

// CreateLead handles POST /api/leads. The generated PIN is returned exactly
// once here; it is never readable again through the API.
func (lc *LeadController) CreateLead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.CreateLeadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if err := lc.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	resp, err := lc.leads.Create(ctx, req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Lead created",
		Data:    resp,
	})
}

// ConfirmLead handles POST /api/leads/:id/confirm. Repeating a confirmation
// with the same PIN returns the original result without settling twice.
func (lc *LeadController) ConfirmLead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	leadID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid lead ID format",
		})
	}

	var req models.ConfirmLeadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if err := lc.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "PIN must be exactly 6 digits",
		})
	}

	result, err := lc.leads.Confirm(ctx, leadID, req.PIN)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Lead confirmed",
		Data:    result,
	})
}
