package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
	"github.com/shaiso/Helix/internal/engine"
	"github.com/shaiso/Helix/internal/jobs"
	"github.com/shaiso/Helix/internal/recorder"
)

// Ошибки executor.
var (
	// ErrRunActive — у pipeline уже есть активный запуск.
	ErrRunActive = errors.New("pipeline run already active")

	// ErrNoActiveRun — у pipeline нет активного запуска.
	ErrNoActiveRun = errors.New("no active run for pipeline")
)

// Saver сохраняет pipeline после переходов состояния.
// Ошибки сохранения не прерывают выполнение — они логируются.
type Saver interface {
	SavePipeline(ctx context.Context, p *domain.Pipeline) error
}

// Notifier получает события жизненного цикла выполнения.
// Все методы best-effort: executor не ждёт подтверждений.
type Notifier interface {
	PipelineStarted(p *domain.Pipeline, sessionID uuid.UUID)
	NodeFinished(p *domain.Pipeline, sessionID uuid.UUID, entry *domain.ExecutionLogEntry)
	PipelineFinished(p *domain.Pipeline, session *domain.ExecutionSession)
}

// Executor — state machine выполнения pipeline.
//
// Выполнение строго последовательное: узлы проходят в топологическом
// порядке, по одному remote job за раз. Переходы статусов узла:
//
//	idle → pending → running → success
//	                         ↘ error
//
// Уже успешные узлы пропускаются (skip-on-resume), если отпечаток их
// конфигурации и конфигураций всех транзитивных upstream-узлов не
// изменился с момента успеха; иначе узел сбрасывается и выполняется
// заново.
//
// Остановка кооперативная: Stop закрывает канал, executor наблюдает
// его на границах опроса и между узлами, запрос в полёте не прерывается.
type Executor struct {
	registry *jobs.Registry
	client   jobs.Client
	poller   *jobs.Poller
	recorder *recorder.Recorder
	saver    Saver
	notifier Notifier
	clock    jobs.Clock
	logger   *slog.Logger

	mu    sync.Mutex
	runs  map[uuid.UUID]*runHandle
	locks map[uuid.UUID]*sync.Mutex
}

// runHandle — состояние одного активного запуска.
type runHandle struct {
	sessionID uuid.UUID
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
}

// Config — зависимости Executor.
type Config struct {
	// Registry — реестр адаптеров job (default: NewRegistry).
	Registry *jobs.Registry

	// Client — клиент вычислительного сервиса.
	Client jobs.Client

	// Poller — poller статусов (default: NewPoller поверх Client).
	Poller *jobs.Poller

	// Recorder — журнал execution sessions (default: recorder.New).
	Recorder *recorder.Recorder

	// Saver — сохранение pipeline после переходов (nil — не сохранять).
	Saver Saver

	// Notifier — получатель событий жизненного цикла (nil — без событий).
	Notifier Notifier

	// Clock — источник времени (default: RealClock).
	Clock jobs.Clock

	// Logger — логгер.
	Logger *slog.Logger
}

// New создаёт Executor.
func New(cfg Config) *Executor {
	registry := cfg.Registry
	if registry == nil {
		registry = jobs.NewRegistry()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = jobs.RealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	poller := cfg.Poller
	if poller == nil {
		poller = jobs.NewPoller(jobs.PollerConfig{
			Client: cfg.Client,
			Clock:  clock,
			Logger: logger,
		})
	}
	rec := cfg.Recorder
	if rec == nil {
		rec = recorder.New(0)
	}
	return &Executor{
		registry: registry,
		client:   cfg.Client,
		poller:   poller,
		recorder: rec,
		saver:    cfg.Saver,
		notifier: cfg.Notifier,
		clock:    clock,
		logger:   logger,
		runs:     make(map[uuid.UUID]*runHandle),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// Guard возвращает мьютекс, сериализующий доступ к полям pipeline.
// Executor держит его на время переходов состояния; все остальные,
// кто читает или правит живой экземпляр (снимки API, autosave,
// правки графа), обязаны брать тот же замок.
func (e *Executor) Guard(id uuid.UUID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.locks[id]
	if !ok {
		g = &sync.Mutex{}
		e.locks[id] = g
	}
	return g
}

// mutate выполняет короткую мутацию pipeline под его guard.
func (e *Executor) mutate(p *domain.Pipeline, fn func()) {
	g := e.Guard(p.ID)
	g.Lock()
	fn()
	g.Unlock()
}

// Recorder возвращает журнал sessions (для API чтения истории).
func (e *Executor) Recorder() *recorder.Recorder {
	return e.recorder
}

// Run выполняет pipeline синхронно и возвращает запечатанную session.
func (e *Executor) Run(ctx context.Context, p *domain.Pipeline) (*domain.ExecutionSession, error) {
	h, session, order, err := e.begin(ctx, p)
	if err != nil {
		return nil, err
	}
	return e.loop(ctx, p, h, session, order), nil
}

// Start запускает pipeline в фоне. Валидация и создание session
// происходят синхронно, сам прогон — в отдельной goroutine.
func (e *Executor) Start(ctx context.Context, p *domain.Pipeline) (*domain.ExecutionSession, error) {
	h, session, order, err := e.begin(ctx, p)
	if err != nil {
		return nil, err
	}
	go e.loop(context.WithoutCancel(ctx), p, h, session, order)
	return session, nil
}

// Stop запрашивает кооперативную остановку активного запуска.
// Возвращается сразу; фактическая остановка произойдёт на ближайшей
// границе опроса. Wait на done-канале session не предусмотрен:
// наблюдать завершение следует через статус session.
func (e *Executor) Stop(pipelineID uuid.UUID) error {
	e.mu.Lock()
	h, ok := e.runs[pipelineID]
	e.mu.Unlock()
	if !ok {
		return ErrNoActiveRun
	}
	h.stopOnce.Do(func() { close(h.stop) })
	return nil
}

// IsRunning возвращает true, если у pipeline есть активный запуск.
func (e *Executor) IsRunning(pipelineID uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.runs[pipelineID]
	return ok
}

// begin валидирует pipeline и создаёт session.
// До первой мутации состояния проверяется всё: структура графа,
// конфигурация каждого узла. Любая ошибка валидации оставляет
// pipeline нетронутым.
func (e *Executor) begin(ctx context.Context, p *domain.Pipeline) (*runHandle, *domain.ExecutionSession, []string, error) {
	e.mu.Lock()
	if _, ok := e.runs[p.ID]; ok {
		e.mu.Unlock()
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrRunActive, p.ID)
	}
	e.mu.Unlock()

	g := e.Guard(p.ID)
	g.Lock()
	session, order, err := e.prepare(p)
	g.Unlock()
	if err != nil {
		return nil, nil, nil, err
	}
	e.save(ctx, p)

	h := &runHandle{
		sessionID: session.ID,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	e.mu.Lock()
	e.runs[p.ID] = h
	e.mu.Unlock()

	if e.notifier != nil {
		e.notifier.PipelineStarted(p, session.ID)
	}
	e.logger.Info("pipeline run started",
		"pipeline_id", p.ID, "session_id", session.ID, "nodes", len(order))

	return h, session, order, nil
}

// prepare валидирует граф и переводит pipeline в running.
// Вызывается под guard: мутаций до успешной валидации нет.
func (e *Executor) prepare(p *domain.Pipeline) (*domain.ExecutionSession, []string, error) {
	if err := engine.Validate(p); err != nil {
		return nil, nil, err
	}
	order, err := engine.Sort(p)
	if err != nil {
		return nil, nil, err
	}

	// Конфигурация всех узлов проверяется до любых remote вызовов
	for _, id := range order {
		node := p.Node(id)
		if err := e.validateNode(p, node); err != nil {
			return nil, nil, err
		}
	}

	// Инвалидация кэшированных успехов: изменение config узла или
	// любого его upstream сбрасывает сохранённый результат
	for _, id := range order {
		node := p.Node(id)
		if node.Status != domain.NodeStatusSuccess || node.Result == nil {
			continue
		}
		if node.Result.Fingerprint != e.fingerprint(p, id) {
			e.logger.Info("cached result invalidated by config change",
				"pipeline_id", p.ID, "node_id", id)
			node.Reset()
		}
	}

	now := e.clock.Now()
	session, err := e.recorder.Begin(p, order, now)
	if err != nil {
		return nil, nil, err
	}

	for _, id := range order {
		node := p.Node(id)
		if node.Status != domain.NodeStatusSuccess {
			node.Status = domain.NodeStatusPending
			node.Error = ""
		}
	}
	p.Status = domain.PipelineStatusRunning
	p.Touch(now)

	return session, order, nil
}

// loop прогоняет узлы в топологическом порядке и запечатывает session.
func (e *Executor) loop(ctx context.Context, p *domain.Pipeline, h *runHandle, session *domain.ExecutionSession, order []string) *domain.ExecutionSession {
	defer close(h.done)

	var (
		stopped bool
		failed  bool
	)

	for _, id := range order {
		node := p.Node(id)
		if node.Status == domain.NodeStatusSuccess {
			continue
		}

		// Stop наблюдается между узлами
		select {
		case <-h.stop:
			stopped = true
		default:
		}
		if stopped {
			break
		}

		err := e.executeNode(ctx, p, node, h.stop)
		switch {
		case err == nil:
			e.save(ctx, p)
		case isStopLike(err):
			stopped = true
		default:
			// Последовательное выполнение: downstream зависит от
			// выхода упавшего узла, продолжать нечем
			failed = true
			e.logger.Error("node failed, aborting run",
				"pipeline_id", p.ID, "node_id", id, "error", err)
		}
		if stopped || failed {
			break
		}
	}

	sealed := e.finalize(ctx, p, session, stopped, failed)

	e.mu.Lock()
	delete(e.runs, p.ID)
	e.mu.Unlock()

	return sealed
}

// finalize запечатывает session и выставляет итоговый статус pipeline.
//
// Узлы, не успевшие начаться, возвращаются в idle; успешно
// завершённые узлы сохраняют свои результаты (частичный прогресс
// переживает и ошибку, и остановку).
func (e *Executor) finalize(ctx context.Context, p *domain.Pipeline, session *domain.ExecutionSession, stopped, failed bool) *domain.ExecutionSession {
	now := e.clock.Now()

	g := e.Guard(p.ID)
	g.Lock()
	for i := range p.Nodes {
		if p.Nodes[i].Status == domain.NodeStatusPending {
			p.Nodes[i].Status = domain.NodeStatusIdle
		}
	}

	var sessionStatus domain.SessionStatus
	switch {
	case stopped:
		sessionStatus = domain.SessionStatusStopped
		p.Status = domain.PipelineStatusDraft
	case failed:
		sessionStatus = domain.SessionStatusFailed
		p.Status = domain.PipelineStatusFailed
	default:
		sessionStatus = domain.SessionStatusCompleted
		p.Status = domain.PipelineStatusCompleted
	}
	p.Touch(now)
	g.Unlock()

	sealed, err := e.recorder.Seal(p.ID, sessionStatus, now)
	if err != nil {
		e.logger.Error("seal session", "pipeline_id", p.ID, "error", err)
		sealed = session
	}
	e.save(ctx, p)

	if e.notifier != nil {
		e.notifier.PipelineFinished(p, sealed)
	}
	e.logger.Info("pipeline run finished",
		"pipeline_id", p.ID, "session_id", sealed.ID, "status", sessionStatus)

	return sealed
}

// save сохраняет снимок pipeline best-effort.
// Снимок берётся под guard, чтобы Clone не гонялся с мутациями.
func (e *Executor) save(ctx context.Context, p *domain.Pipeline) {
	if e.saver == nil {
		return
	}
	g := e.Guard(p.ID)
	g.Lock()
	snapshot := p.Clone()
	g.Unlock()
	if err := e.saver.SavePipeline(ctx, snapshot); err != nil {
		e.logger.Warn("save pipeline", "pipeline_id", p.ID, "error", err)
	}
}
