package telemetry

import (
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shaiso/Helix/internal/domain"
)

// Prometheus метрики движка.
var (
	executionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helix_executions_started_total",
		Help: "Total pipeline executions started",
	})

	executionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_executions_finished_total",
		Help: "Total pipeline executions finished, by terminal status",
	}, []string{"status"})

	nodesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_nodes_finished_total",
		Help: "Total nodes finished, by node type and status",
	}, []string{"type", "status"})

	nodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "helix_node_duration_seconds",
		Help: "Wall-clock duration of node execution",
		// Удалённые jobs живут от секунд до десятков минут
		Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
	}, []string{"type"})
)

// ExecutionMetrics транслирует события executor'а в Prometheus метрики.
// Реализует executor.Notifier.
type ExecutionMetrics struct{}

// NewExecutionMetrics создаёт ExecutionMetrics.
func NewExecutionMetrics() *ExecutionMetrics {
	return &ExecutionMetrics{}
}

// PipelineStarted учитывает старт выполнения.
func (m *ExecutionMetrics) PipelineStarted(p *domain.Pipeline, sessionID uuid.UUID) {
	executionsStarted.Inc()
}

// NodeFinished учитывает завершение узла.
func (m *ExecutionMetrics) NodeFinished(p *domain.Pipeline, sessionID uuid.UUID, entry *domain.ExecutionLogEntry) {
	nodesFinished.WithLabelValues(string(entry.Type), string(entry.Status)).Inc()
	if entry.DurationMs > 0 {
		nodeDuration.WithLabelValues(string(entry.Type)).Observe(float64(entry.DurationMs) / 1000)
	}
}

// PipelineFinished учитывает терминальный статус session.
func (m *ExecutionMetrics) PipelineFinished(p *domain.Pipeline, session *domain.ExecutionSession) {
	executionsFinished.WithLabelValues(string(session.Status)).Inc()
}
