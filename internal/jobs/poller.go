package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Helix/internal/domain"
)

// defaultPollInterval — интервал между опросами статуса.
const defaultPollInterval = 5 * time.Second

// Poller опрашивает remote job до терминального состояния.
//
// Реализован как явная state machine поверх Clock:
//
//	polling → (терминальный статус | потолок | stop) → done
//
// Транзиентные ошибки опроса (сеть, 5xx) не прерывают цикл;
// терминальные HTTP-коды (400/401/403/404/410) прерывают немедленно.
type Poller struct {
	client   Client
	clock    Clock
	interval time.Duration
	logger   *slog.Logger
}

// PollerConfig — конфигурация Poller.
type PollerConfig struct {
	// Client — клиент сервиса.
	Client Client

	// Clock — источник времени (default: RealClock).
	Clock Clock

	// Interval — интервал опроса (default: 5s).
	Interval time.Duration

	// Logger — логгер.
	Logger *slog.Logger
}

// NewPoller создаёт Poller.
func NewPoller(cfg PollerConfig) *Poller {
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:   cfg.Client,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// PollRequest — параметры ожидания одного job.
type PollRequest struct {
	// Type — тип job.
	Type domain.NodeType

	// JobID — идентификатор job на сервисе.
	JobID string

	// Ceiling — потолок ожидания по wall-clock.
	Ceiling time.Duration

	// Expected — типичная продолжительность для оценки прогресса.
	Expected time.Duration

	// Stop — канал кооперативной остановки. Закрытие наблюдается
	// на границе опроса, не прерывает запрос в полёте.
	Stop <-chan struct{}

	// OnProgress вызывается при росте оценки прогресса (0–1).
	OnProgress func(float64)
}

// Outcome — итог ожидания job.
type Outcome struct {
	// State — последнее наблюдавшееся состояние job.
	State domain.JobState

	// Result — сырой результат при State == completed.
	Result map[string]any

	// Error — текст ошибки job при State == error.
	Error string

	// Response — последний зафиксированный ответ сервиса.
	Response *domain.CapturedResponse

	// Progress — последняя оценка прогресса (0–1).
	Progress float64
}

// Wait опрашивает job до терминального состояния.
//
// Возвращает:
//   - (outcome, nil) — job достиг терминального состояния
//     (completed, error, cancelled, not_found); интерпретация
//     состояния — дело вызывающей стороны
//   - (outcome, ErrStillRunning) — потолок исчерпан, job не завершён
//   - (outcome, ErrStopped) — остановлено через req.Stop или ctx
//   - (nil, ErrRemotePoll) — терминальная HTTP-ошибка опроса
func (p *Poller) Wait(ctx context.Context, req PollRequest) (*Outcome, error) {
	start := p.clock.Now()
	outcome := &Outcome{State: domain.JobStateQueued}

	for attempt := 1; ; attempt++ {
		// Потолок проверяется до очередного опроса
		elapsed := p.clock.Now().Sub(start)
		if req.Ceiling > 0 && elapsed > req.Ceiling {
			p.logger.Warn("polling ceiling exceeded",
				"job_id", req.JobID,
				"type", req.Type,
				"elapsed", elapsed,
			)
			return outcome, fmt.Errorf("%w: %s after %s", ErrStillRunning, req.JobID, elapsed.Round(time.Second))
		}

		status, err := p.client.Status(ctx, req.Type, req.JobID)
		if err != nil {
			if ctx.Err() != nil {
				return outcome, ErrStopped
			}
			if IsTerminalError(err) {
				return nil, err
			}
			// Транзиентная ошибка — тихий retry до потолка
			p.logger.Debug("transient poll error",
				"job_id", req.JobID,
				"attempt", attempt,
				"error", err,
			)
		} else {
			outcome.State = status.State
			outcome.Error = status.Error
			outcome.Result = status.Result
			if status.Response != nil {
				outcome.Response = status.Response
			}

			p.advanceProgress(outcome, status.Progress, elapsed, req)

			if status.State.IsTerminal() {
				if status.State == domain.JobStateCompleted {
					p.advanceProgress(outcome, 1, elapsed, req)
				}
				return outcome, nil
			}
		}

		// Stop наблюдается только здесь, на границе между опросами.
		// Проверка до ожидания — чтобы закрытый stop имел приоритет
		// над уже готовым таймером.
		select {
		case <-ctx.Done():
			return outcome, ErrStopped
		case <-req.Stop:
			return outcome, ErrStopped
		default:
		}

		select {
		case <-ctx.Done():
			return outcome, ErrStopped
		case <-req.Stop:
			return outcome, ErrStopped
		case <-p.clock.After(p.interval):
		}
	}
}

// advanceProgress обновляет оценку прогресса.
//
// Оценка монотонно неубывающая: берётся максимум из прежней оценки,
// серверного значения и оценки от прошедшего времени (растёт к 0.95,
// 1.0 только по факту completed).
func (p *Poller) advanceProgress(outcome *Outcome, server float64, elapsed time.Duration, req PollRequest) {
	estimate := outcome.Progress
	if server > estimate {
		estimate = server
	}
	if req.Expected > 0 {
		byTime := float64(elapsed) / float64(req.Expected)
		if byTime > 0.95 {
			byTime = 0.95
		}
		if byTime > estimate {
			estimate = byTime
		}
	}
	if estimate > 1 {
		estimate = 1
	}
	if estimate > outcome.Progress {
		outcome.Progress = estimate
		if req.OnProgress != nil {
			req.OnProgress(estimate)
		}
	}
}
