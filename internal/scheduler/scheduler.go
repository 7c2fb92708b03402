package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
	"github.com/shaiso/Helix/internal/executor"
	"github.com/shaiso/Helix/internal/repo"
	"github.com/shaiso/Helix/internal/store"
)

// Starter — точка входа запуска pipeline. Реализуется executor'ом.
type Starter interface {
	Start(ctx context.Context, p *domain.Pipeline) (*domain.ExecutionSession, error)
}

// Pipelines резолвит живой экземпляр pipeline. Реализуется store.Live:
// scheduler обязан стартовать тот же экземпляр, который видят API и
// executor, а не собственную копию из хранилища.
type Pipelines interface {
	Resolve(ctx context.Context, userID string, id uuid.UUID) (*domain.Pipeline, error)
}

// Scheduler — планировщик, запускающий due schedules.
type Scheduler struct {
	scheduleRepo *repo.ScheduleRepo
	pipelines    Pipelines
	starter      Starter
	logger       *slog.Logger
	batchSize    int
}

// Config — конфигурация Scheduler.
type Config struct {
	ScheduleRepo *repo.ScheduleRepo
	Pipelines    Pipelines
	Starter      Starter
	Logger       *slog.Logger
	BatchSize    int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		scheduleRepo: cfg.ScheduleRepo,
		pipelines:    cfg.Pipelines,
		starter:      cfg.Starter,
		logger:       logger,
		batchSize:    batchSize,
	}
}

// Run крутит цикл тиков до отмены контекста.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick", "error", err)
			}
		}
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Загружает pipeline и стартует выполнение через executor
// 3. Обновляет next_due_at
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	schedules, err := s.scheduleRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var processed, started int
	for i := range schedules {
		sched := &schedules[i]

		sessionStarted, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}

		processed++
		if sessionStarted {
			started++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
		"sessions_started", started,
	)

	return nil
}

// processSchedule обрабатывает один schedule.
// Возвращает true, если выполнение было запущено.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	pipeline, err := s.pipelines.Resolve(ctx, "", sched.PipelineID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("pipeline not found for schedule, skipping",
				"schedule_id", sched.ID,
				"pipeline_id", sched.PipelineID,
			)
			return false, nil
		}
		return false, fmt.Errorf("get pipeline: %w", err)
	}

	// Следующее время вычисляется в любом случае: due schedule не
	// должен зациклиться, даже если запуск не удался
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		s.logger.Error("failed to calculate next due, leaving schedule as is",
			"schedule_id", sched.ID,
			"error", err,
		)
		return false, nil
	}

	var sessionStarted bool
	session, err := s.starter.Start(ctx, pipeline)
	switch {
	case err == nil:
		sessionStarted = true
		sched.RecordRun(session.ID, nextDue)
		s.logger.Info("started scheduled execution",
			"session_id", session.ID,
			"schedule_id", sched.ID,
			"pipeline_id", sched.PipelineID,
		)
	case errors.Is(err, executor.ErrRunActive):
		// Предыдущий запуск ещё идёт — пропускаем этот тик
		s.logger.Warn("pipeline still running, skipping scheduled start",
			"schedule_id", sched.ID,
			"pipeline_id", sched.PipelineID,
		)
		sched.NextDueAt = &nextDue
		sched.UpdatedAt = now
	default:
		// Невалидный pipeline или ошибка старта: двигаем next_due_at,
		// чтобы не долбить его каждый тик
		s.logger.Error("scheduled start failed",
			"schedule_id", sched.ID,
			"pipeline_id", sched.PipelineID,
			"error", err,
		)
		sched.NextDueAt = &nextDue
		sched.UpdatedAt = now
	}

	if err := s.scheduleRepo.Update(ctx, sched); err != nil {
		return sessionStarted, fmt.Errorf("update schedule: %w", err)
	}
	return sessionStarted, nil
}
