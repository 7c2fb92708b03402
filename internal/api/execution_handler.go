package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
	"github.com/shaiso/Helix/internal/executor"
)

// StartExecution запускает выполнение pipeline в фоне.
// POST /api/v1/pipelines/{id}/execute
func (h *Handler) StartExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	p, err := h.resolvePipeline(r, id)
	if HandleStoreError(w, h.logger, err, "pipeline not found") {
		return
	}

	session, err := h.exec.Start(r.Context(), p)
	if err != nil {
		if errors.Is(err, executor.ErrRunActive) {
			Conflict(w, "pipeline is already running")
			return
		}
		if HandleEngineError(w, err) {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Accepted(w, SessionFromDomain(session))
}

// StopExecution останавливает текущее выполнение pipeline.
//
// Остановка кооперативная: активный узел дорабатывает до ближайшей
// границы опроса, уже полученные результаты сохраняются.
// POST /api/v1/pipelines/{id}/stop
func (h *Handler) StopExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	if err := h.exec.Stop(id); err != nil {
		if errors.Is(err, executor.ErrNoActiveRun) {
			InvalidState(w, "no active run")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}

// ExecuteNode перезапускает один узел вне полного прогона.
// POST /api/v1/pipelines/{id}/nodes/{nodeID}/execute
func (h *Handler) ExecuteNode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	p, err := h.resolvePipeline(r, id)
	if HandleStoreError(w, h.logger, err, "pipeline not found") {
		return
	}

	session, err := h.exec.ExecuteNode(r.Context(), p, r.PathValue("nodeID"))
	if err != nil {
		if errors.Is(err, executor.ErrRunActive) {
			Conflict(w, "pipeline is already running")
			return
		}
		if HandleEngineError(w, err) {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Accepted(w, SessionFromDomain(session))
}

// GetCurrentExecution возвращает текущую (незапечатанную) session.
// GET /api/v1/pipelines/{id}/executions/current
func (h *Handler) GetCurrentExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	session := h.exec.Recorder().Current(id)
	if session == nil {
		NotFound(w, "no current execution")
		return
	}

	Success(w, SessionFromDomain(session))
}

// ListExecutions возвращает историю executions (новые сверху).
//
// Сначала in-memory история процесса; если она пуста (свежий рестарт),
// запрашивается архив.
// GET /api/v1/pipelines/{id}/executions?limit=...
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	limit := int(mustParseInt(r.URL.Query().Get("limit"), 20))

	sessions := h.exec.Recorder().History(id)
	if len(sessions) == 0 {
		archived, aerr := h.coordinator.Sessions(r.Context(), id, limit)
		if aerr != nil {
			h.logger.Warn("load archived sessions", "pipeline_id", id, "error", aerr)
		} else {
			sessions = archived
		}
	}
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}

	result := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		result[i] = SessionFromDomain(s)
	}

	List(w, result, len(result))
}

// SaveExecution принимает запечатанную session на хранение (remote sync).
// POST /api/v1/pipelines/{id}/executions
func (h *Handler) SaveExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	var session domain.ExecutionSession
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if session.PipelineID == uuid.Nil {
		session.PipelineID = id
	}
	if session.PipelineID != id {
		BadRequest(w, "pipeline id mismatch")
		return
	}

	h.coordinator.SaveSession(r.Context(), &session)
	Created(w, SessionFromDomain(&session))
}
