package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypePipelineStarted  MessageType = "pipeline.started"
	MessageTypeNodeCompleted    MessageType = "node.completed"
	MessageTypePipelineFinished MessageType = "pipeline.finished"
	MessageTypeExecute          MessageType = "pipeline.execute"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// PipelineStartedPayload — payload события о старте выполнения.
type PipelineStartedPayload struct {
	PipelineID uuid.UUID `json:"pipeline_id"`
	SessionID  uuid.UUID `json:"session_id"`
	Name       string    `json:"name,omitempty"`
}

// NodeCompletedPayload — payload события о завершении узла.
type NodeCompletedPayload struct {
	PipelineID uuid.UUID `json:"pipeline_id"`
	SessionID  uuid.UUID `json:"session_id"`
	NodeID     string    `json:"node_id"`
	Type       string    `json:"node_type"`
	Status     string    `json:"status"` // success или error
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// PipelineFinishedPayload — payload события о завершении выполнения.
type PipelineFinishedPayload struct {
	PipelineID uuid.UUID `json:"pipeline_id"`
	SessionID  uuid.UUID `json:"session_id"`
	Status     string    `json:"status"` // completed, failed или stopped
}

// ExecutePayload — payload команды автоматического запуска.
type ExecutePayload struct {
	PipelineID uuid.UUID `json:"pipeline_id"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishPipelineStarted публикует событие о старте выполнения.
func (p *Publisher) PublishPipelineStarted(ctx context.Context, payload PipelineStartedPayload) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyPipelineStarted, newMessage(MessageTypePipelineStarted, payload))
}

// PublishNodeCompleted публикует событие о завершении узла.
func (p *Publisher) PublishNodeCompleted(ctx context.Context, payload NodeCompletedPayload) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyNodeCompleted, newMessage(MessageTypeNodeCompleted, payload))
}

// PublishPipelineFinished публикует событие о завершении выполнения.
func (p *Publisher) PublishPipelineFinished(ctx context.Context, payload PipelineFinishedPayload) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyPipelineFinished, newMessage(MessageTypePipelineFinished, payload))
}

// PublishExecute публикует команду запуска pipeline.
// Потребитель: движок (queue pipelines.execute).
func (p *Publisher) PublishExecute(ctx context.Context, pipelineID uuid.UUID) error {
	return p.Publish(ctx, ExchangeCommands, RoutingKeyExecute, newMessage(MessageTypeExecute, ExecutePayload{PipelineID: pipelineID}))
}

func newMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}
