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

	// Pipelines
	mux.Handle("GET /api/v1/pipelines", chain(http.HandlerFunc(h.ListPipelines)))
	mux.Handle("POST /api/v1/pipelines", chain(http.HandlerFunc(h.CreatePipeline)))
	mux.Handle("POST /api/v1/pipelines/blueprint", chain(http.HandlerFunc(h.CreateFromBlueprint)))
	mux.Handle("GET /api/v1/pipelines/current", chain(http.HandlerFunc(h.GetCurrentPipeline)))
	mux.Handle("GET /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.GetPipeline)))
	mux.Handle("PUT /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.SyncPipeline)))
	mux.Handle("PATCH /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.RenamePipeline)))
	mux.Handle("DELETE /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.DeletePipeline)))

	// Graph editing
	mux.Handle("POST /api/v1/pipelines/{id}/nodes", chain(http.HandlerFunc(h.AddNode)))
	mux.Handle("PATCH /api/v1/pipelines/{id}/nodes/{nodeID}", chain(http.HandlerFunc(h.UpdateNode)))
	mux.Handle("DELETE /api/v1/pipelines/{id}/nodes/{nodeID}", chain(http.HandlerFunc(h.DeleteNode)))
	mux.Handle("POST /api/v1/pipelines/{id}/edges", chain(http.HandlerFunc(h.AddEdge)))
	mux.Handle("DELETE /api/v1/pipelines/{id}/edges/{source}/{target}", chain(http.HandlerFunc(h.DeleteEdge)))

	// Execution
	mux.Handle("POST /api/v1/pipelines/{id}/execute", chain(http.HandlerFunc(h.StartExecution)))
	mux.Handle("POST /api/v1/pipelines/{id}/stop", chain(http.HandlerFunc(h.StopExecution)))
	mux.Handle("POST /api/v1/pipelines/{id}/nodes/{nodeID}/execute", chain(http.HandlerFunc(h.ExecuteNode)))
	mux.Handle("GET /api/v1/pipelines/{id}/executions/current", chain(http.HandlerFunc(h.GetCurrentExecution)))
	mux.Handle("GET /api/v1/pipelines/{id}/executions", chain(http.HandlerFunc(h.ListExecutions)))
	mux.Handle("POST /api/v1/pipelines/{id}/executions", chain(http.HandlerFunc(h.SaveExecution)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/pipelines/{id}/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))
}
