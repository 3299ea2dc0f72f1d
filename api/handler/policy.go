package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/api/transport"
	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/pkg/httpcontext"
	policyUC "github.com/relaycrm/automation/usecase/policy"
)

type PolicyHandler struct {
	baseHandler
	uc *policyUC.UseCase
}

func NewPolicyHandler(uc *policyUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List policies
// @Tags policies
// @Router /api/v1/policies [get]
func (h *PolicyHandler) List(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	policies, err := h.uc.ListPolicies(stdCtx, orgID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, policies, len(policies))
}

// @Summary Get policy
// @Tags policies
// @Router /api/v1/policies/{id} [get]
func (h *PolicyHandler) Get(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	policy, err := h.uc.GetPolicy(stdCtx, pathParam(ctx, "id"), orgID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, policy)
}

// @Summary Create policy
// @Tags policies
// @Router /api/v1/policies [post]
func (h *PolicyHandler) Create(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	policy, ok := h.parsePolicy(ctx, orgID)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.CreatePolicy(stdCtx, policy)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Update policy
// @Tags policies
// @Router /api/v1/policies/{id} [put]
func (h *PolicyHandler) Update(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	policy, ok := h.parsePolicy(ctx, orgID)
	if !ok {
		return
	}
	policy.ID = pathParam(ctx, "id")

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.UpdatePolicy(stdCtx, policy)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Delete policy
// @Tags policies
// @Router /api/v1/policies/{id} [delete]
func (h *PolicyHandler) Delete(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeletePolicy(stdCtx, pathParam(ctx, "id"), orgID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

func (h *PolicyHandler) parsePolicy(ctx *fasthttp.RequestCtx, orgID string) (*domain.PipelinePolicy, bool) {
	var req transport.PolicyRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return nil, false
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	return &domain.PipelinePolicy{
		OrganizationID: orgID,
		PipelineID:     req.PipelineID,
		PolicyType:     req.PolicyType,
		TriggerEvent:   domain.EventType(req.TriggerEvent),
		Conditions:     req.Conditions,
		Actions:        req.Actions,
		IsActive:       isActive,
	}, true
}
