// Package telemetry обеспечивает наблюдаемость движка.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики выполнения
//
// ExecutionMetrics реализует интерфейс уведомлений executor'а,
// поэтому метрики собираются из тех же событий, что и публикация
// в брокер. Экспорт — на /metrics endpoint движка.
package telemetry
