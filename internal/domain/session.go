package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionSession — один запуск pipeline.
//
// Session создаётся при старте выполнения. В каждый момент времени
// у pipeline не больше одной "текущей" session; завершённые sessions
// перемещаются в ограниченную историю (новые сверху).
type ExecutionSession struct {
	// ID — уникальный идентификатор session.
	ID uuid.UUID `json:"id"`

	// PipelineID — ссылка на pipeline.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// Status — общий статус запуска.
	Status SessionStatus `json:"status"`

	// StartedAt — время начала выполнения.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения. Nil, пока session выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Entries — журнал по узлам в топологическом порядке.
	// Ровно одна запись на узел; записи обновляются по месту,
	// никогда не дублируются и не удаляются.
	Entries []ExecutionLogEntry `json:"entries"`
}

// Entry возвращает указатель на запись журнала по ID узла.
func (s *ExecutionSession) Entry(nodeID string) *ExecutionLogEntry {
	for i := range s.Entries {
		if s.Entries[i].NodeID == nodeID {
			return &s.Entries[i]
		}
	}
	return nil
}

// IsFinished возвращает true, если session завершена.
func (s *ExecutionSession) IsFinished() bool {
	return s.Status.IsTerminal()
}

// Clone возвращает глубокую копию session: записи журнала и указатели
// на времена/request/response независимы от оригинала. Карты Input и
// Output разделяются: они замещаются целиком и по месту не меняются.
func (s *ExecutionSession) Clone() *ExecutionSession {
	cp := *s
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		cp.FinishedAt = &t
	}
	cp.Entries = make([]ExecutionLogEntry, len(s.Entries))
	for i := range s.Entries {
		cp.Entries[i] = s.Entries[i].clone()
	}
	return &cp
}

func (e ExecutionLogEntry) clone() ExecutionLogEntry {
	if e.StartedAt != nil {
		t := *e.StartedAt
		e.StartedAt = &t
	}
	if e.FinishedAt != nil {
		t := *e.FinishedAt
		e.FinishedAt = &t
	}
	if e.Request != nil {
		r := *e.Request
		e.Request = &r
	}
	if e.Response != nil {
		r := *e.Response
		e.Response = &r
	}
	return e
}

// ExecutionLogEntry — запись журнала по одному узлу в рамках session.
type ExecutionLogEntry struct {
	// NodeID — ID узла.
	NodeID string `json:"node_id"`

	// Label — имя узла на момент запуска.
	Label string `json:"label,omitempty"`

	// Type — тип узла.
	Type NodeType `json:"type"`

	// Status — последний наблюдавшийся статус узла.
	Status NodeStatus `json:"status"`

	// StartedAt — время входа узла в running.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время достижения терминального статуса.
	// Устанавливается ровно один раз (повторные сигналы игнорируются).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// DurationMs — продолжительность выполнения в миллисекундах.
	DurationMs int64 `json:"duration_ms,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// Request — метаданные последнего HTTP-запроса к вычислительному сервису.
	Request *CapturedRequest `json:"request,omitempty"`

	// Response — метаданные последнего HTTP-ответа.
	Response *CapturedResponse `json:"response,omitempty"`

	// Input — снимок входных данных узла (config на момент запуска).
	Input map[string]any `json:"input,omitempty"`

	// Output — снимок нормализованного результата.
	Output map[string]any `json:"output,omitempty"`
}

// CapturedRequest — зафиксированный HTTP-запрос для журнала.
type CapturedRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// CapturedResponse — зафиксированный HTTP-ответ для журнала.
type CapturedResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Data    any               `json:"data,omitempty"`
}
