package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/api/transport"
	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/pkg/httpcontext"
	triggerUC "github.com/relaycrm/automation/usecase/trigger"
)

type TriggerHandler struct {
	baseHandler
	uc *triggerUC.UseCase
}

func NewTriggerHandler(uc *triggerUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TriggerHandler {
	return &TriggerHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List triggers
// @Tags triggers
// @Router /api/v1/triggers [get]
func (h *TriggerHandler) List(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	triggers, err := h.uc.ListTriggers(stdCtx, orgID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, triggers, len(triggers))
}

// @Summary Get trigger
// @Tags triggers
// @Router /api/v1/triggers/{id} [get]
func (h *TriggerHandler) Get(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	trigger, err := h.uc.GetTrigger(stdCtx, pathParam(ctx, "id"), orgID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, trigger)
}

// @Summary Create trigger
// @Tags triggers
// @Router /api/v1/triggers [post]
func (h *TriggerHandler) Create(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	trigger, ok := h.parseTrigger(ctx, orgID)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.CreateTrigger(stdCtx, trigger)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Update trigger
// @Tags triggers
// @Router /api/v1/triggers/{id} [put]
func (h *TriggerHandler) Update(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	trigger, ok := h.parseTrigger(ctx, orgID)
	if !ok {
		return
	}
	trigger.ID = pathParam(ctx, "id")

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.UpdateTrigger(stdCtx, trigger)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Delete trigger
// @Tags triggers
// @Router /api/v1/triggers/{id} [delete]
func (h *TriggerHandler) Delete(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteTrigger(stdCtx, pathParam(ctx, "id"), orgID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

// @Summary List trigger executions
// @Tags triggers
// @Router /api/v1/triggers/{id}/executions [get]
func (h *TriggerHandler) Executions(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	limit := parseInt(string(ctx.QueryArgs().Peek("limit")), 50)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	executions, err := h.uc.ListExecutions(stdCtx, pathParam(ctx, "id"), orgID, limit)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, executions, len(executions))
}

func (h *TriggerHandler) parseTrigger(ctx *fasthttp.RequestCtx, orgID string) (*domain.Trigger, bool) {
	var req transport.TriggerRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return nil, false
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	return &domain.Trigger{
		OrganizationID: orgID,
		Name:           req.Name,
		EventType:      domain.EventType(req.EventType),
		Conditions:     req.Conditions,
		Actions:        req.Actions,
		IsActive:       isActive,
		Priority:       req.Priority,
	}, true
}

func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}
