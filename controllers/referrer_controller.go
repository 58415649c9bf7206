// controllers/referrer_controller.go
package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/http"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/maddonsteve2-blip/traderefer-sub001/middleware"
	"github.com/maddonsteve2-blip/traderefer-sub001/models"
	"github.com/maddonsteve2-blip/traderefer-sub001/services"
)

type ReferrerController struct {
	referrers *services.ReferrerService
	validate  *validator.Validate
}

func NewReferrerController(referrers *services.ReferrerService) *ReferrerController {
	return &ReferrerController{
		referrers: referrers,
		validate:  validator.New(),
	}
}

// GetStats handles GET /api/referrers/:id/stats. The tier is recomputed from
// the lifetime count so a stale cached tier can never be reported.
func (rc *ReferrerController) GetStats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	referrerID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid referrer ID format",
		})
	}

	stats, err := rc.referrers.Stats(ctx, referrerID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referrer stats retrieved",
		Data:    stats,
	})
}

// CreateLink handles POST /api/links
func (rc *ReferrerController) CreateLink(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.CreateLinkRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if err := rc.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	businessID, err := primitive.ObjectIDFromHex(req.BusinessID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid business ID format",
		})
	}
	referrerID, err := primitive.ObjectIDFromHex(req.ReferrerID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid referrer ID format",
		})
	}

	link, err := rc.referrers.CreateLink(ctx, businessID, referrerID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Referrer link created",
		Data:    link,
	})
}

// SetCustomFee handles PUT /api/links/fee. A null feeCents clears the
// override back to the business default.
func (rc *ReferrerController) SetCustomFee(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.SetCustomFeeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if err := rc.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	businessID, err := primitive.ObjectIDFromHex(req.BusinessID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid business ID format",
		})
	}
	referrerID, err := primitive.ObjectIDFromHex(req.ReferrerID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid referrer ID format",
		})
	}

	actor, _ := middleware.ExtractActorID(c)
	effectiveFee, err := rc.referrers.SetCustomFee(ctx, businessID, referrerID, req.FeeCents, actor)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Custom fee updated",
		Data:    models.SetCustomFeeResponse{EffectiveFeeCents: effectiveFee},
	})
}

// GetReferralQRCode handles GET /api/referrers/:id/qrcode?businessId=...
// and returns the referral link URL as a base64 QR PNG.
func (rc *ReferrerController) GetReferralQRCode(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	referrerID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid referrer ID format",
		})
	}
	businessID, err := primitive.ObjectIDFromHex(c.QueryParam("businessId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid business ID format",
		})
	}

	link, err := rc.referrers.Link(ctx, businessID, referrerID)
	if err != nil {
		return errorResponse(c, err)
	}

	qrData, err := generateReferralQRCode(link.ReferralCode)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate QR code",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "QR code generated",
		Data: map[string]string{
			"referralCode": link.ReferralCode,
			"qrCode":       qrData,
		},
	})
}

// generateReferralQRCode renders the referral URL as a 300x300 PNG and
// returns it as a data URI for embedding in responses.
func generateReferralQRCode(referralCode string) (string, error) {
	content := fmt.Sprintf("https://traderefer.app/referral?code=%s", referralCode)

	qrCode, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return "", err
	}

	qrCode, err = barcode.Scale(qrCode, 300, 300)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qrCode); err != nil {
		return "", err
	}

	base64QR := base64.StdEncoding.EncodeToString(buf.Bytes())
	return "data:image/png;base64," + base64QR, nil
}
