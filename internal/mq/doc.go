// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//   - events.go     — трансляция событий выполнения и обработчик команд
//
// Типы сообщений:
//   - pipeline.started   — выполнение pipeline началось
//   - node.completed     — узел завершён (success или error)
//   - pipeline.finished  — выполнение завершено
//   - pipeline.execute   — команда автоматического запуска
//
// Exchanges:
//   - helix.events    — события выполнения (topic)
//   - helix.commands  — команды движку
//   - helix.dlq       — dead letter queue
//
// Брокер опционален: движок работает и без него, события просто
// не публикуются.
package mq
