// controllers/lead_controller_test.go
package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
	"github.com/maddonsteve2-blip/traderefer-sub001/repositories"
	"github.com/maddonsteve2-blip/traderefer-sub001/services"
)

type leadTestEnv struct {
	store      *repositories.MemStore
	controller *LeadController
	business   *models.Business
	referrer   *models.Referrer
	link       *models.ReferrerLink
}

func newLeadTestEnv(t *testing.T) *leadTestEnv {
	t.Helper()

	store := repositories.NewMemStore()
	business := &models.Business{Name: "Eastside Electrical", DefaultFeeCents: 500, Active: true}
	referrer := &models.Referrer{Name: "Dana", Tier: models.TierStarter, Active: true}
	store.AddBusiness(business)
	store.AddReferrer(referrer)
	link := &models.ReferrerLink{
		ID:           primitive.NewObjectID(),
		BusinessID:   business.ID,
		ReferrerID:   referrer.ID,
		ReferralCode: "REF-E2ETST",
		Active:       true,
	}
	store.AddLink(link)

	tiers, err := services.TierPolicyFromEnv()
	require.NoError(t, err)
	fees := services.NewFeeResolver(300)
	settlement := services.NewSettlementService(store, fees, tiers, nil)
	leads := services.NewLeadService(store, settlement)

	return &leadTestEnv{
		store:      store,
		controller: NewLeadController(leads),
		business:   business,
		referrer:   referrer,
		link:       link,
	}
}

func postJSON(t *testing.T, e *echo.Echo, target, body string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

func TestLeadFlowEndToEnd(t *testing.T) {
	env := newLeadTestEnv(t)
	e := echo.New()

	// Seed funds so the settlement can land.
	_, err := env.store.Credit(context.Background(), models.BusinessOwner(env.business.ID), 5000, models.ReasonTopup, models.TxRef{Type: models.RefManual})
	require.NoError(t, err)

	// Create a referred lead.
	createBody := fmt.Sprintf(`{"businessId":%q,"referralCode":%q,"consumerName":"Alex","consumerPhone":"+61400000001"}`,
		env.business.ID.Hex(), env.link.ReferralCode)
	rec, c := postJSON(t, e, "/api/leads", createBody)
	require.NoError(t, env.controller.CreateLead(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var createResp struct {
		Data models.CreateLeadResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &createResp))
	require.NotEmpty(t, createResp.Data.LeadID)
	require.Len(t, createResp.Data.PIN, 6)

	// Confirm it with the issued PIN.
	confirmBody := fmt.Sprintf(`{"pin":%q}`, createResp.Data.PIN)
	rec, c = postJSON(t, e, "/api/leads/"+createResp.Data.LeadID+"/confirm", confirmBody)
	c.SetParamNames("id")
	c.SetParamValues(createResp.Data.LeadID)
	require.NoError(t, env.controller.ConfirmLead(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var confirmResp struct {
		Data models.ConfirmLeadResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirmResp))
	require.Equal(t, models.LeadConfirmed, confirmResp.Data.Status)
	require.Equal(t, models.SettlementDone, confirmResp.Data.Settlement)
	require.NotNil(t, confirmResp.Data.PayoutCents)
	require.Equal(t, int64(500), *confirmResp.Data.PayoutCents)
}

func TestConfirmLeadWrongPINReturnsForbidden(t *testing.T) {
	env := newLeadTestEnv(t)
	e := echo.New()

	createBody := fmt.Sprintf(`{"businessId":%q,"consumerName":"Alex","consumerPhone":"+61400000001"}`,
		env.business.ID.Hex())
	rec, c := postJSON(t, e, "/api/leads", createBody)
	require.NoError(t, env.controller.CreateLead(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var createResp struct {
		Data models.CreateLeadResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &createResp))

	wrong := "000000"
	if wrong == createResp.Data.PIN {
		wrong = "000001"
	}
	rec, c = postJSON(t, e, "/api/leads/"+createResp.Data.LeadID+"/confirm", fmt.Sprintf(`{"pin":%q}`, wrong))
	c.SetParamNames("id")
	c.SetParamValues(createResp.Data.LeadID)
	require.NoError(t, env.controller.ConfirmLead(c))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateLeadRejectsMalformedBody(t *testing.T) {
	env := newLeadTestEnv(t)
	e := echo.New()

	rec, c := postJSON(t, e, "/api/leads", `{"businessId":`)
	require.NoError(t, env.controller.CreateLead(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
