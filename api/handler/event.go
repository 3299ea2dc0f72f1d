package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/api/transport"
	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/pkg/httpcontext"
	"github.com/relaycrm/automation/repository"
	eventUC "github.com/relaycrm/automation/usecase/event"
)

type EventHandler struct {
	baseHandler
	uc *eventUC.UseCase
}

func NewEventHandler(uc *eventUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Publish event
// @Tags events
// @Router /api/v1/events [post]
func (h *EventHandler) Publish(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	var req transport.EventPublishRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	event, err := h.uc.Publish(stdCtx, domain.EventType(req.Type), domain.EventInput{
		OrganizationID: orgID,
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		UserID:         req.UserID,
		AgentID:        req.AgentID,
		Data:           req.Data,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, event)
}

// @Summary List events
// @Tags events
// @Router /api/v1/events [get]
func (h *EventHandler) List(ctx *fasthttp.RequestCtx) {
	orgID := h.organizationID(ctx)
	if orgID == "" {
		return
	}

	filter := repository.EventFilter{
		EventType:  string(ctx.QueryArgs().Peek("type")),
		EntityType: string(ctx.QueryArgs().Peek("entity_type")),
		Limit:      parseInt(string(ctx.QueryArgs().Peek("limit")), 100),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.uc.ListEvents(stdCtx, orgID, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, events, len(events))
}
