package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
	"github.com/shaiso/Helix/internal/executor"
	"github.com/shaiso/Helix/internal/repo"
	"github.com/shaiso/Helix/internal/store"
)

// Handler — главный обработчик API с зависимостями.
//
// Живые pipelines резолвятся через общий store.Live: executor мутирует
// статусы узлов именно этих объектов, поэтому все точки входа обязаны
// работать с одним экземпляром на ID, а не перечитывать pipeline из
// хранилища на каждый запрос. Чтения и правки живого экземпляра идут
// под guard executor'а.
type Handler struct {
	coordinator  *store.Coordinator
	exec         *executor.Executor
	live         *store.Live
	scheduleRepo *repo.ScheduleRepo
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Coordinator  *store.Coordinator
	Executor     *executor.Executor
	Live         *store.Live
	ScheduleRepo *repo.ScheduleRepo
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	live := cfg.Live
	if live == nil {
		live = store.NewLive(cfg.Coordinator)
	}
	return &Handler{
		coordinator:  cfg.Coordinator,
		exec:         cfg.Executor,
		live:         live,
		scheduleRepo: cfg.ScheduleRepo,
		logger:       logger,
	}
}

// resolvePipeline возвращает живой экземпляр pipeline, загружая его
// из хранилища при первом обращении.
func (h *Handler) resolvePipeline(r *http.Request, id uuid.UUID) (*domain.Pipeline, error) {
	return h.live.Resolve(r.Context(), userID(r), id)
}

// snapshot сериализует живой pipeline под его guard: executor может
// мутировать статусы узлов в фоне.
func (h *Handler) snapshot(p *domain.Pipeline) PipelineResponse {
	g := h.exec.Guard(p.ID)
	g.Lock()
	defer g.Unlock()
	return PipelineFromDomain(p)
}

// edit применяет правку к живому pipeline под его guard и планирует
// автосохранение.
func (h *Handler) edit(p *domain.Pipeline, fn func() error) error {
	g := h.exec.Guard(p.ID)
	g.Lock()
	defer g.Unlock()
	if err := fn(); err != nil {
		return err
	}
	h.coordinator.Autosave(p)
	return nil
}

// userID извлекает идентификатор пользователя из заголовка.
// Пустое значение — анонимная сессия (draft живёт только локально).
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}
