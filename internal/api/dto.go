package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
)

// Pipeline DTOs

// CreatePipelineRequest — запрос на создание pipeline.
type CreatePipelineRequest struct {
	Name string `json:"name"`
}

// RenamePipelineRequest — запрос на переименование pipeline.
type RenamePipelineRequest struct {
	Name string `json:"name"`
}

// BlueprintRequest — запрос на материализацию blueprint.
// Accepted — ID узлов, которые пользователь принял.
type BlueprintRequest struct {
	Blueprint domain.Blueprint `json:"blueprint"`
	Accepted  []string         `json:"accepted"`
}

// PipelineResponse — ответ с pipeline.
type PipelineResponse struct {
	ID        uuid.UUID             `json:"id"`
	Name      string                `json:"name"`
	UserID    string                `json:"user_id,omitempty"`
	Status    domain.PipelineStatus `json:"status"`
	Nodes     []domain.Node         `json:"nodes"`
	Edges     []domain.Edge         `json:"edges"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// PipelineFromDomain конвертирует domain.Pipeline в PipelineResponse.
func PipelineFromDomain(p *domain.Pipeline) PipelineResponse {
	return PipelineResponse{
		ID:        p.ID,
		Name:      p.Name,
		UserID:    p.UserID,
		Status:    p.Status,
		Nodes:     p.Nodes,
		Edges:     p.Edges,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// Node DTOs

// AddNodeRequest — запрос на добавление узла.
type AddNodeRequest struct {
	ID     string          `json:"id"`
	Type   domain.NodeType `json:"type"`
	Label  string          `json:"label,omitempty"`
	Config map[string]any  `json:"config,omitempty"`
}

// UpdateNodeRequest — запрос на обновление узла.
// Nil-поле означает "не трогать".
type UpdateNodeRequest struct {
	Label  *string        `json:"label,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// AddEdgeRequest — запрос на добавление ребра.
type AddEdgeRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Execution DTOs

// SessionResponse — ответ с execution session.
type SessionResponse struct {
	ID         uuid.UUID                  `json:"id"`
	PipelineID uuid.UUID                  `json:"pipeline_id"`
	Status     domain.SessionStatus       `json:"status"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt *time.Time                 `json:"finished_at,omitempty"`
	Entries    []domain.ExecutionLogEntry `json:"entries"`
}

// SessionFromDomain конвертирует domain.ExecutionSession в SessionResponse.
func SessionFromDomain(s *domain.ExecutionSession) SessionResponse {
	return SessionResponse{
		ID:         s.ID,
		PipelineID: s.PipelineID,
		Status:     s.Status,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Entries:    s.Entries,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string `json:"name"`
	CronExpr    string `json:"cron_expr,omitempty"`
	IntervalSec int    `json:"interval_sec,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID            uuid.UUID  `json:"id"`
	PipelineID    uuid.UUID  `json:"pipeline_id"`
	Name          string     `json:"name,omitempty"`
	CronExpr      string     `json:"cron_expr,omitempty"`
	IntervalSec   int        `json:"interval_sec,omitempty"`
	Timezone      string     `json:"timezone"`
	Enabled       bool       `json:"enabled"`
	NextDueAt     *time.Time `json:"next_due_at,omitempty"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastSessionID *uuid.UUID `json:"last_session_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:            s.ID,
		PipelineID:    s.PipelineID,
		Name:          s.Name,
		CronExpr:      s.CronExpr,
		IntervalSec:   s.IntervalSec,
		Timezone:      s.Timezone,
		Enabled:       s.Enabled,
		NextDueAt:     s.NextDueAt,
		LastRunAt:     s.LastRunAt,
		LastSessionID: s.LastSessionID,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}
