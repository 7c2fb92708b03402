package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
)

// defaultDebounce — задержка между правкой и фактическим сохранением.
const defaultDebounce = time.Second

// Local — контракт быстрого локального слоя draft.
type Local interface {
	SaveDraft(ctx context.Context, userID string, p *domain.Pipeline) error
	LoadDraft(ctx context.Context, userID string) (*domain.Pipeline, error)
	DeleteDraft(ctx context.Context, userID string) error
}

// Coordinator согласует три слоя хранения pipeline:
// изменяемый in-memory объект, локальный draft и remote backend.
//
// Правила:
//   - автосохранение дебаунсится (~1 s): каждая правка сбрасывает
//     таймер, пишется только последний снимок
//   - draft пишется всегда; remote — best-effort, ошибки логируются
//     и проглатываются (правки пользователя не должны теряться из-за
//     недоступной сети)
//   - чтение текущего pipeline — сначала draft
//   - списки согласуются по updatedAt: новее побеждает
//   - delete/rename/load сохранённых pipelines — remote-first,
//     локальный fallback
type Coordinator struct {
	local    Local
	remote   Remote
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingSave
}

type pendingSave struct {
	timer    *time.Timer
	snapshot *domain.Pipeline
}

// CoordinatorConfig — зависимости Coordinator.
type CoordinatorConfig struct {
	// Local — локальный draft слой (обязателен).
	Local Local

	// Remote — удалённое хранилище (nil — работа без синхронизации).
	Remote Remote

	// Debounce — задержка автосохранения (default: 1s).
	Debounce time.Duration

	// Logger — логгер.
	Logger *slog.Logger
}

// NewCoordinator создаёт Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		local:    cfg.Local,
		remote:   cfg.Remote,
		logger:   logger,
		debounce: debounce,
		pending:  make(map[uuid.UUID]*pendingSave),
	}
}

// Autosave планирует отложенное сохранение pipeline.
//
// Снимок делается немедленно (дальнейшие мутации оригинала не влияют
// на уже запланированную запись), запись — после паузы в правках.
func (c *Coordinator) Autosave(p *domain.Pipeline) {
	snapshot := p.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if ps, ok := c.pending[p.ID]; ok {
		ps.snapshot = snapshot
		ps.timer.Reset(c.debounce)
		return
	}

	ps := &pendingSave{snapshot: snapshot}
	ps.timer = time.AfterFunc(c.debounce, func() {
		c.flushPending(p.ID)
	})
	c.pending[p.ID] = ps
}

// flushPending записывает отложенный снимок.
func (c *Coordinator) flushPending(id uuid.UUID) {
	c.mu.Lock()
	ps, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, id)
	snapshot := ps.snapshot
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.write(ctx, snapshot)
}

// Flush немедленно записывает все отложенные снимки (shutdown).
func (c *Coordinator) Flush(ctx context.Context) {
	c.mu.Lock()
	snapshots := make([]*domain.Pipeline, 0, len(c.pending))
	for id, ps := range c.pending {
		ps.timer.Stop()
		snapshots = append(snapshots, ps.snapshot)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	for _, snapshot := range snapshots {
		c.write(ctx, snapshot)
	}
}

// SavePipeline сохраняет pipeline немедленно, минуя дебаунс.
// Используется executor'ом после переходов состояния.
func (c *Coordinator) SavePipeline(ctx context.Context, p *domain.Pipeline) error {
	c.write(ctx, p.Clone())
	return nil
}

// write пишет снимок: draft всегда, remote best-effort.
func (c *Coordinator) write(ctx context.Context, snapshot *domain.Pipeline) {
	if err := c.local.SaveDraft(ctx, snapshot.UserID, snapshot); err != nil {
		c.logger.Error("save draft", "pipeline_id", snapshot.ID, "error", err)
	}
	if c.remote == nil || snapshot.UserID == "" {
		return
	}
	if err := c.remote.SavePipeline(ctx, snapshot); err != nil {
		// Remote недоступен — правки живут в draft до следующего sync
		c.logger.Warn("remote save failed, draft retained",
			"pipeline_id", snapshot.ID, "error", err)
	}
}

// SaveSession архивирует запечатанную session best-effort.
func (c *Coordinator) SaveSession(ctx context.Context, s *domain.ExecutionSession) {
	if c.remote == nil {
		return
	}
	if err := c.remote.SaveSession(ctx, s); err != nil {
		c.logger.Warn("archive session failed",
			"session_id", s.ID, "pipeline_id", s.PipelineID, "error", err)
	}
}

// LoadCurrent загружает текущий pipeline пользователя: сначала draft,
// при его отсутствии — последний по updatedAt из remote.
func (c *Coordinator) LoadCurrent(ctx context.Context, userID string) (*domain.Pipeline, error) {
	p, err := c.local.LoadDraft(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNoDraft) {
		c.logger.Warn("load draft", "user_id", userID, "error", err)
	}

	if c.remote == nil || userID == "" {
		return nil, ErrNoDraft
	}
	list, rerr := c.remote.ListPipelines(ctx, userID)
	if rerr != nil || len(list) == 0 {
		return nil, ErrNoDraft
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
	latest := list[0]
	return &latest, nil
}

// LoadPipeline загружает сохранённый pipeline: remote-first,
// при недоступности — локальный draft с тем же ID.
func (c *Coordinator) LoadPipeline(ctx context.Context, userID string, id uuid.UUID) (*domain.Pipeline, error) {
	if c.remote != nil {
		p, err := c.remote.LoadPipeline(ctx, id)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		c.logger.Warn("remote load failed, trying draft", "pipeline_id", id, "error", err)
	}

	draft, err := c.local.LoadDraft(ctx, userID)
	if err != nil {
		return nil, ErrNotFound
	}
	if draft.ID != id {
		return nil, ErrNotFound
	}
	return draft, nil
}

// ListPipelines возвращает сохранённые pipelines пользователя,
// согласованные с локальным draft по updatedAt.
func (c *Coordinator) ListPipelines(ctx context.Context, userID string) ([]domain.Pipeline, error) {
	var list []domain.Pipeline
	if c.remote != nil {
		remote, err := c.remote.ListPipelines(ctx, userID)
		if err != nil {
			c.logger.Warn("remote list failed", "user_id", userID, "error", err)
		} else {
			list = remote
		}
	}

	draft, err := c.local.LoadDraft(ctx, userID)
	if err != nil {
		return list, nil
	}

	// Draft замещает remote-версию, только если он новее
	for i := range list {
		if list[i].ID == draft.ID {
			if draft.UpdatedAt.After(list[i].UpdatedAt) {
				list[i] = *draft
			}
			return list, nil
		}
	}
	return append(list, *draft), nil
}

// DeletePipeline удаляет pipeline: remote-first, затем draft.
func (c *Coordinator) DeletePipeline(ctx context.Context, userID string, id uuid.UUID) error {
	if c.remote != nil {
		if err := c.remote.DeletePipeline(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	c.mu.Lock()
	if ps, ok := c.pending[id]; ok {
		ps.timer.Stop()
		delete(c.pending, id)
	}
	c.mu.Unlock()

	draft, err := c.local.LoadDraft(ctx, userID)
	if err == nil && draft.ID == id {
		if derr := c.local.DeleteDraft(ctx, userID); derr != nil {
			c.logger.Warn("delete draft", "pipeline_id", id, "error", derr)
		}
	}
	return nil
}

// RenamePipeline переименовывает pipeline: remote-first, затем draft.
func (c *Coordinator) RenamePipeline(ctx context.Context, userID string, id uuid.UUID, name string) error {
	if c.remote != nil {
		if err := c.remote.RenamePipeline(ctx, id, name); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	draft, err := c.local.LoadDraft(ctx, userID)
	if err == nil && draft.ID == id {
		draft.Name = name
		draft.Touch(time.Now())
		if serr := c.local.SaveDraft(ctx, userID, draft); serr != nil {
			c.logger.Warn("rename draft", "pipeline_id", id, "error", serr)
		}
	}
	return nil
}

// Sessions возвращает историю executions pipeline из remote.
func (c *Coordinator) Sessions(ctx context.Context, pipelineID uuid.UUID, limit int) ([]*domain.ExecutionSession, error) {
	if c.remote == nil {
		return nil, nil
	}
	return c.remote.ListSessions(ctx, pipelineID, limit)
}
