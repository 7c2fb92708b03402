// Helix Engine — движок выполнения вычислительных pipelines.
//
// Engine:
//   - Редактирует DAG pipeline через HTTP API
//   - Выполняет узлы последовательно, проксируя удалённые jobs
//   - Сохраняет drafts в Redis, архив — в Postgres или remote backend
//   - Публикует события выполнения в RabbitMQ (опционально)
//   - Запускает pipelines по расписанию
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Helix/internal/api"
	"github.com/shaiso/Helix/internal/domain"
	"github.com/shaiso/Helix/internal/executor"
	"github.com/shaiso/Helix/internal/jobs"
	"github.com/shaiso/Helix/internal/mq"
	"github.com/shaiso/Helix/internal/repo"
	"github.com/shaiso/Helix/internal/scheduler"
	"github.com/shaiso/Helix/internal/store"
	"github.com/shaiso/Helix/internal/telemetry"
)

var startTime = time.Now()

// fanoutNotifier рассылает события executor'а нескольким получателям.
type fanoutNotifier []executor.Notifier

func (f fanoutNotifier) PipelineStarted(p *domain.Pipeline, sessionID uuid.UUID) {
	for _, n := range f {
		n.PipelineStarted(p, sessionID)
	}
}

func (f fanoutNotifier) NodeFinished(p *domain.Pipeline, sessionID uuid.UUID, entry *domain.ExecutionLogEntry) {
	for _, n := range f {
		n.NodeFinished(p, sessionID, entry)
	}
}

func (f fanoutNotifier) PipelineFinished(p *domain.Pipeline, session *domain.ExecutionSession) {
	for _, n := range f {
		n.PipelineFinished(p, session)
	}
}

// sessionArchiver отправляет запечатанные sessions в архив.
type sessionArchiver struct {
	coordinator *store.Coordinator
}

func (a sessionArchiver) PipelineStarted(*domain.Pipeline, uuid.UUID) {}

func (a sessionArchiver) NodeFinished(*domain.Pipeline, uuid.UUID, *domain.ExecutionLogEntry) {}

func (a sessionArchiver) PipelineFinished(p *domain.Pipeline, s *domain.ExecutionSession) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.coordinator.SaveSession(ctx, s)
}

func main() {
	// .env для локальной разработки; в production переменные приходят из окружения
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting helix-engine")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	pipelineRepo := repo.NewPipelineRepo(pool)
	sessionRepo := repo.NewSessionRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	// Redis для drafts
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	logger.Info("redis connected")

	// Remote хранилище: по умолчанию собственный Postgres (Archive),
	// при заданном BACKEND_URL — удалённый storage server
	var remote store.Remote = store.NewArchive(pipelineRepo, sessionRepo)
	if base := os.Getenv("BACKEND_URL"); base != "" {
		remote = store.NewBackend(base, os.Getenv("BACKEND_TOKEN"))
		logger.Info("using remote backend", "url", base)
	}

	coordinator := store.NewCoordinator(store.CoordinatorConfig{
		Local:  store.NewDraftStore(rdb),
		Remote: remote,
		Logger: logger,
	})

	// Вычислительный сервис
	jobsURL := os.Getenv("JOBS_URL")
	if jobsURL == "" {
		jobsURL = "http://localhost:8090/api/v1/jobs"
	}
	jobClient := jobs.NewHTTPClient(jobsURL)

	// События: метрики и архивация sessions всегда,
	// RabbitMQ — если брокер доступен
	notifiers := fanoutNotifier{
		telemetry.NewExecutionMetrics(),
		sessionArchiver{coordinator: coordinator},
	}

	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, events disabled", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Error("failed to setup topology", "error", err)
			os.Exit(1)
		}
		publisher := mq.NewPublisher(mqConn, logger)
		notifiers = append(notifiers, mq.NewEventNotifier(publisher, logger))
	}

	exec := executor.New(executor.Config{
		Client:   jobClient,
		Saver:    coordinator,
		Notifier: notifiers,
		Logger:   logger,
	})

	// Единый реестр живых pipelines: API, scheduler и MQ consumer
	// обязаны стартовать один и тот же экземпляр на ID
	live := store.NewLive(coordinator)

	// Consumer команд pipeline.execute
	if mqConn != nil {
		startFn := func(ctx context.Context, pipelineID uuid.UUID) error {
			p, err := live.Resolve(ctx, "", pipelineID)
			if err != nil {
				return err
			}
			_, err = exec.Start(ctx, p)
			if errors.Is(err, executor.ErrRunActive) {
				// Уже выполняется — команда отработала
				return nil
			}
			return err
		}
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:   string(mq.QueueExecute),
			Handler: mq.NewExecuteHandler(logger, startFn),
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("execute consumer stopped", "error", err)
			}
		}()
	}

	// Scheduler
	sched := scheduler.New(scheduler.Config{
		ScheduleRepo: scheduleRepo,
		Pipelines:    live,
		Starter:      exec,
		Logger:       logger,
	})
	go sched.Run(ctx, 15*time.Second)

	// HTTP API
	handler := api.NewHandler(api.Config{
		Coordinator:  coordinator,
		Executor:     exec,
		Live:         live,
		ScheduleRepo: scheduleRepo,
		Logger:       logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Дописываем отложенные autosaves
	coordinator.Flush(shutdownCtx)

	logger.Info("stopped")
}
