package mq

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
)

// eventPublishTimeout — бюджет на публикацию одного события.
const eventPublishTimeout = 5 * time.Second

// EventNotifier транслирует события жизненного цикла выполнения
// в helix.events. Все публикации best-effort: ошибка брокера
// логируется и не влияет на выполнение pipeline.
type EventNotifier struct {
	pub    *Publisher
	logger *slog.Logger
}

// NewEventNotifier создаёт EventNotifier.
func NewEventNotifier(pub *Publisher, logger *slog.Logger) *EventNotifier {
	return &EventNotifier{pub: pub, logger: logger}
}

// PipelineStarted публикует pipeline.started.
func (n *EventNotifier) PipelineStarted(p *domain.Pipeline, sessionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
	defer cancel()

	err := n.pub.PublishPipelineStarted(ctx, PipelineStartedPayload{
		PipelineID: p.ID,
		SessionID:  sessionID,
		Name:       p.Name,
	})
	if err != nil {
		n.logger.Warn("publish pipeline.started", "pipeline_id", p.ID, "error", err)
	}
}

// NodeFinished публикует node.completed.
func (n *EventNotifier) NodeFinished(p *domain.Pipeline, sessionID uuid.UUID, entry *domain.ExecutionLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
	defer cancel()

	err := n.pub.PublishNodeCompleted(ctx, NodeCompletedPayload{
		PipelineID: p.ID,
		SessionID:  sessionID,
		NodeID:     entry.NodeID,
		Type:       string(entry.Type),
		Status:     string(entry.Status),
		Error:      entry.Error,
		DurationMs: entry.DurationMs,
	})
	if err != nil {
		n.logger.Warn("publish node.completed", "node_id", entry.NodeID, "error", err)
	}
}

// PipelineFinished публикует pipeline.finished.
func (n *EventNotifier) PipelineFinished(p *domain.Pipeline, session *domain.ExecutionSession) {
	ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
	defer cancel()

	err := n.pub.PublishPipelineFinished(ctx, PipelineFinishedPayload{
		PipelineID: p.ID,
		SessionID:  session.ID,
		Status:     string(session.Status),
	})
	if err != nil {
		n.logger.Warn("publish pipeline.finished", "pipeline_id", p.ID, "error", err)
	}
}

// NewExecuteHandler возвращает Handler для очереди pipelines.execute:
// парсит команду и передаёт запуск через start.
func NewExecuteHandler(logger *slog.Logger, start func(ctx context.Context, pipelineID uuid.UUID) error) Handler {
	return func(ctx context.Context, d *Delivery) error {
		payload, err := ParsePayload[ExecutePayload](&d.Message)
		if err != nil {
			// Некорректная команда — ack и выбрасываем, retry бессмысленен
			logger.Error("malformed execute command", "message_id", d.Message.ID, "error", err)
			return nil
		}

		if err := start(ctx, payload.PipelineID); err != nil {
			logger.Error("execute command failed",
				"pipeline_id", payload.PipelineID, "error", err)
			return err
		}
		return nil
	}
}
