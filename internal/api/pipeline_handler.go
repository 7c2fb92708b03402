package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
	"github.com/shaiso/Helix/internal/engine"
)

// ListPipelines возвращает сохранённые pipelines пользователя.
// GET /api/v1/pipelines
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		uid = r.URL.Query().Get("user_id")
	}

	pipelines, err := h.coordinator.ListPipelines(r.Context(), uid)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	result := make([]PipelineResponse, len(pipelines))
	for i := range pipelines {
		result[i] = PipelineFromDomain(&pipelines[i])
	}

	List(w, result, len(result))
}

// CreatePipeline создаёт новый draft pipeline.
// POST /api/v1/pipelines
func (h *Handler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req CreatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	name := req.Name
	if name == "" {
		name = "Untitled Pipeline"
	}

	p := h.live.Track(domain.NewPipeline(name, userID(r), time.Now()))
	if err := h.coordinator.SavePipeline(r.Context(), p); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, h.snapshot(p))
}

// CreateFromBlueprint создаёт pipeline из принятых узлов blueprint.
// POST /api/v1/pipelines/blueprint
func (h *Handler) CreateFromBlueprint(w http.ResponseWriter, r *http.Request) {
	var req BlueprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	p, err := engine.FromBlueprint(&req.Blueprint, req.Accepted, userID(r), time.Now())
	if HandleEngineError(w, err) {
		return
	}

	p = h.live.Track(p)
	if err := h.coordinator.SavePipeline(r.Context(), p); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, h.snapshot(p))
}

// GetCurrentPipeline возвращает текущий pipeline пользователя:
// локальный draft, при его отсутствии — последний сохранённый.
// GET /api/v1/pipelines/current
func (h *Handler) GetCurrentPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := h.coordinator.LoadCurrent(r.Context(), userID(r))
	if HandleStoreError(w, h.logger, err, "no current pipeline") {
		return
	}

	Success(w, h.snapshot(h.live.Track(p)))
}

// GetPipeline возвращает pipeline по ID.
// GET /api/v1/pipelines/{id}
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	p, err := h.resolvePipeline(r, id)
	if HandleStoreError(w, h.logger, err, "pipeline not found") {
		return
	}

	Success(w, h.snapshot(p))
}

// SyncPipeline принимает полное состояние pipeline (remote sync).
// PUT /api/v1/pipelines/{id}
func (h *Handler) SyncPipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	var p domain.Pipeline
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if p.ID != id {
		BadRequest(w, "pipeline id mismatch")
		return
	}

	if h.exec.IsRunning(id) {
		Conflict(w, "pipeline is running")
		return
	}

	// Заменяем живой экземпляр присланным состоянием
	h.live.Replace(&p)

	if err := h.coordinator.SavePipeline(r.Context(), &p); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, h.snapshot(&p))
}

// RenamePipeline переименовывает pipeline.
// PATCH /api/v1/pipelines/{id}
func (h *Handler) RenamePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	var req RenamePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	if err := h.coordinator.RenamePipeline(r.Context(), userID(r), id, req.Name); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	if p := h.live.Get(id); p != nil {
		g := h.exec.Guard(id)
		g.Lock()
		p.Name = req.Name
		p.Touch(time.Now())
		g.Unlock()
	}

	NoContent(w)
}

// DeletePipeline удаляет pipeline.
// DELETE /api/v1/pipelines/{id}
func (h *Handler) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	if h.exec.IsRunning(id) {
		Conflict(w, "pipeline is running")
		return
	}

	if err := h.coordinator.DeletePipeline(r.Context(), userID(r), id); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.live.Forget(id)
	NoContent(w)
}

// AddNode добавляет узел в pipeline.
// POST /api/v1/pipelines/{id}/nodes
func (h *Handler) AddNode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	var req AddNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	p, err := h.resolvePipeline(r, id)
	if HandleStoreError(w, h.logger, err, "pipeline not found") {
		return
	}

	node := domain.Node{
		ID:     req.ID,
		Type:   req.Type,
		Label:  req.Label,
		Config: req.Config,
	}
	err = h.edit(p, func() error { return engine.AddNode(p, node, time.Now()) })
	if HandleEngineError(w, err) {
		return
	}

	Created(w, h.snapshot(p))
}

// UpdateNode обновляет label и/или config узла.
// PATCH /api/v1/pipelines/{id}/nodes/{nodeID}
func (h *Handler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	var req UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	p, err := h.resolvePipeline(r, id)
	if HandleStoreError(w, h.logger, err, "pipeline not found") {
		return
	}

	update := engine.NodeUpdate{Label: req.Label, Config: req.Config}
	err = h.edit(p, func() error {
		return engine.UpdateNode(p, r.PathValue("nodeID"), update, time.Now())
	})
	if HandleEngineError(w, err) {
		return
	}

	Success(w, h.snapshot(p))
}

// DeleteNode удаляет узел и все его рёбра.
// DELETE /api/v1/pipelines/{id}/nodes/{nodeID}
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	p, err := h.resolvePipeline(r, id)
	if HandleStoreError(w, h.logger, err, "pipeline not found") {
		return
	}

	err = h.edit(p, func() error { return engine.DeleteNode(p, r.PathValue("nodeID"), time.Now()) })
	if HandleEngineError(w, err) {
		return
	}

	NoContent(w)
}

// AddEdge добавляет ребро source → target.
// POST /api/v1/pipelines/{id}/edges
func (h *Handler) AddEdge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	var req AddEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	p, err := h.resolvePipeline(r, id)
	if HandleStoreError(w, h.logger, err, "pipeline not found") {
		return
	}

	err = h.edit(p, func() error { return engine.AddEdge(p, req.Source, req.Target, time.Now()) })
	if HandleEngineError(w, err) {
		return
	}

	Created(w, h.snapshot(p))
}

// DeleteEdge удаляет ребро source → target.
// DELETE /api/v1/pipelines/{id}/edges/{source}/{target}
func (h *Handler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	p, err := h.resolvePipeline(r, id)
	if HandleStoreError(w, h.logger, err, "pipeline not found") {
		return
	}

	err = h.edit(p, func() error {
		return engine.DeleteEdge(p, r.PathValue("source"), r.PathValue("target"), time.Now())
	})
	if HandleEngineError(w, err) {
		return
	}

	NoContent(w)
}
