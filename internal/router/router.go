package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/relaycrm/automation/api/handler"
)

type Handlers struct {
	Event    *apiHandler.EventHandler
	Trigger  *apiHandler.TriggerHandler
	Campaign *apiHandler.CampaignHandler
	Policy   *apiHandler.PolicyHandler
	Health   *apiHandler.HealthHandler
}

func New(handlers Handlers, tenant func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Event log
	r.POST("/api/v1/events", tenant(handlers.Event.Publish))
	r.GET("/api/v1/events", tenant(handlers.Event.List))

	// Triggers
	r.GET("/api/v1/triggers", tenant(handlers.Trigger.List))
	r.POST("/api/v1/triggers", tenant(handlers.Trigger.Create))
	r.GET("/api/v1/triggers/{id}", tenant(handlers.Trigger.Get))
	r.PUT("/api/v1/triggers/{id}", tenant(handlers.Trigger.Update))
	r.DELETE("/api/v1/triggers/{id}", tenant(handlers.Trigger.Delete))
	r.GET("/api/v1/triggers/{id}/executions", tenant(handlers.Trigger.Executions))

	// Campaigns
	r.GET("/api/v1/campaigns", tenant(handlers.Campaign.List))
	r.POST("/api/v1/campaigns", tenant(handlers.Campaign.Create))
	r.GET("/api/v1/campaigns/{id}", tenant(handlers.Campaign.Get))
	r.DELETE("/api/v1/campaigns/{id}", tenant(handlers.Campaign.Delete))
	r.GET("/api/v1/campaigns/{id}/steps", tenant(handlers.Campaign.ListSteps))
	r.POST("/api/v1/campaigns/{id}/steps", tenant(handlers.Campaign.AddStep))
	r.POST("/api/v1/campaigns/{id}/start", tenant(handlers.Campaign.Start))
	r.POST("/api/v1/campaigns/{id}/pause", tenant(handlers.Campaign.Pause))
	r.POST("/api/v1/campaigns/{id}/stop", tenant(handlers.Campaign.Stop))
	r.GET("/api/v1/campaigns/{id}/messages", tenant(handlers.Campaign.Messages))

	// Pipeline policies
	r.GET("/api/v1/policies", tenant(handlers.Policy.List))
	r.POST("/api/v1/policies", tenant(handlers.Policy.Create))
	r.GET("/api/v1/policies/{id}", tenant(handlers.Policy.Get))
	r.PUT("/api/v1/policies/{id}", tenant(handlers.Policy.Update))
	r.DELETE("/api/v1/policies/{id}", tenant(handlers.Policy.Delete))

	return r
}
