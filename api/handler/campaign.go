package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/api/transport"
	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/pkg/httpcontext"
	campaignUC "github.com/relaycrm/automation/usecase/campaign"
)

type CampaignHandler struct {
	baseHandler
	uc *campaignUC.UseCase
}

func NewCampaignHandler(uc *campaignUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List campaigns
// @Tags campaigns
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) List(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	campaigns, err := h.uc.ListCampaigns(stdCtx, orgID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, campaigns, len(campaigns))
}

// @Summary Get campaign
// @Tags campaigns
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) Get(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	campaign, err := h.uc.GetCampaign(stdCtx, pathParam(ctx, "id"), orgID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, campaign)
}

// @Summary Create campaign
// @Tags campaigns
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) Create(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	var req transport.CampaignRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.CreateCampaign(stdCtx, &domain.Campaign{
		OrganizationID:  orgID,
		Name:            req.Name,
		MessageTemplate: req.MessageTemplate,
		TargetAudience:  req.TargetAudience,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Delete campaign
// @Tags campaigns
// @Router /api/v1/campaigns/{id} [delete]
func (h *CampaignHandler) Delete(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteCampaign(stdCtx, pathParam(ctx, "id"), orgID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

// @Summary Add sequence step
// @Tags campaigns
// @Router /api/v1/campaigns/{id}/steps [post]
func (h *CampaignHandler) AddStep(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	var req transport.SequenceStepRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	step, err := h.uc.AddSequenceStep(stdCtx, orgID, &domain.CampaignSequence{
		CampaignID: pathParam(ctx, "id"),
		StepNumber: req.StepNumber,
		DelayDays:  req.DelayDays,
		DelayHours: req.DelayHours,
		Template:   req.Template,
		Conditions: req.Conditions,
		IsActive:   isActive,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, step)
}

// @Summary List sequence steps
// @Tags campaigns
// @Router /api/v1/campaigns/{id}/steps [get]
func (h *CampaignHandler) ListSteps(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	steps, err := h.uc.ListSequenceSteps(stdCtx, pathParam(ctx, "id"), orgID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, steps, len(steps))
}

// @Summary Start campaign
// @Tags campaigns
// @Router /api/v1/campaigns/{id}/start [post]
func (h *CampaignHandler) Start(ctx *fasthttp.RequestCtx) {
	h.lifecycle(ctx, h.uc.StartCampaign)
}

// @Summary Pause campaign
// @Tags campaigns
// @Router /api/v1/campaigns/{id}/pause [post]
func (h *CampaignHandler) Pause(ctx *fasthttp.RequestCtx) {
	h.lifecycle(ctx, h.uc.PauseCampaign)
}

// @Summary Stop campaign
// @Tags campaigns
// @Router /api/v1/campaigns/{id}/stop [post]
func (h *CampaignHandler) Stop(ctx *fasthttp.RequestCtx) {
	h.lifecycle(ctx, h.uc.StopCampaign)
}

// @Summary List campaign messages
// @Tags campaigns
// @Router /api/v1/campaigns/{id}/messages [get]
func (h *CampaignHandler) Messages(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	contactID := string(ctx.QueryArgs().Peek("contact_id"))

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	messages, err := h.uc.ListMessages(stdCtx, pathParam(ctx, "id"), orgID, contactID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, messages, len(messages))
}

func (h *CampaignHandler) lifecycle(ctx *fasthttp.RequestCtx, op func(context.Context, string, string) (*domain.Campaign, error)) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	campaign, err := op(stdCtx, pathParam(ctx, "id"), orgID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, campaign)
}
