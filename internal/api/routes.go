package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Stacks
	mux.Handle("GET /api/v1/stacks", chain(http.HandlerFunc(h.ListStacks)))
	mux.Handle("POST /api/v1/stacks", chain(http.HandlerFunc(h.CreateStack)))
	mux.Handle("GET /api/v1/stacks/{id}", chain(http.HandlerFunc(h.GetStack)))
	mux.Handle("PUT /api/v1/stacks/{id}", chain(http.HandlerFunc(h.UpdateStack)))
	mux.Handle("DELETE /api/v1/stacks/{id}", chain(http.HandlerFunc(h.DeleteStack)))

	// Stack Versions
	mux.Handle("GET /api/v1/stacks/{id}/versions", chain(http.HandlerFunc(h.ListStackVersions)))
	mux.Handle("POST /api/v1/stacks/{id}/versions", chain(http.HandlerFunc(h.CreateStackVersion)))
	mux.Handle("GET /api/v1/stacks/{id}/versions/{version}", chain(http.HandlerFunc(h.GetStackVersion)))

	// Deployments
	mux.Handle("GET /api/v1/deployments", chain(http.HandlerFunc(h.ListDeployments)))
	mux.Handle("POST /api/v1/stacks/{id}/deployments", chain(http.HandlerFunc(h.CreateDeployment)))
	mux.Handle("GET /api/v1/deployments/{id}", chain(http.HandlerFunc(h.GetDeployment)))
	mux.Handle("POST /api/v1/deployments/{id}/stop", chain(http.HandlerFunc(h.StopDeployment)))
	mux.Handle("GET /api/v1/deployments/{id}/services", chain(http.HandlerFunc(h.ListDeploymentServices)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/stacks/{id}/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))
}
