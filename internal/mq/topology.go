package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeEvents — события жизненного цикла выполнения (topic).
	// Потребители: UI, агенты, внешние интеграции — каждый со своей
	// очередью и binding'ом.
	ExchangeEvents Exchange = "helix.events"

	// ExchangeCommands — команды движку (direct).
	ExchangeCommands Exchange = "helix.commands"

	// ExchangeDLQ — dead letter exchange для команд.
	ExchangeDLQ Exchange = "helix.dlq"
)

// Queues — имена очередей.
const (
	// QueueExecute — триггеры автоматического запуска pipeline.
	// Потребитель: движок.
	QueueExecute Queue = "pipelines.execute"

	// QueueDLQCommands — команды, не обработанные после retry.
	QueueDLQCommands Queue = "dlq.commands"
)

// Routing keys.
const (
	RoutingKeyPipelineStarted  RoutingKey = "pipeline.started"
	RoutingKeyNodeCompleted    RoutingKey = "node.completed"
	RoutingKeyPipelineFinished RoutingKey = "pipeline.finished"
	RoutingKeyExecute          RoutingKey = "execute"
	RoutingKeyDLQCommands      RoutingKey = "commands"
)

// SetupTopology объявляет обменники, очереди и привязки движка.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeEvents, "topic"},
		{ExchangeCommands, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQCommands),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// pipelines.execute — с DLQ (команды ретраятся, потом в DLQ)
		{QueueExecute, dlqArgs},

		// dlq.commands — сама DLQ очередь
		{QueueDLQCommands, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
// Очереди событий не объявляются здесь: каждый потребитель событий
// создаёт свою очередь и привязывает её к helix.events сам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueExecute, RoutingKeyExecute, ExchangeCommands},
		{QueueDLQCommands, RoutingKeyDLQCommands, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Helix RabbitMQ Topology:

    helix.events (topic)
    ├── pipeline.started
    ├── node.completed
    └── pipeline.finished
            Consumers: UI, agents (собственные очереди)

    helix.commands (direct)
    └── pipelines.execute [routing: execute]
            Consumer: Engine
            DLQ: dlq.commands

    helix.dlq (direct)
    └── dlq.commands [routing: commands]
            Manual processing
  `
}
