package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Helix/internal/domain"
)

// SessionRepo — репозиторий для работы с execution sessions.
//
// Журнал по узлам хранится единым JSONB-документом: session
// записывается целиком при запечатывании и промежуточных сохранениях.
type SessionRepo struct {
	pool *pgxpool.Pool
}

// NewSessionRepo создаёт новый SessionRepo.
func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// Save сохраняет session (upsert по ID).
func (r *SessionRepo) Save(ctx context.Context, s *domain.ExecutionSession) error {
	entriesJSON, err := json.Marshal(s.Entries)
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}

	query := `
		INSERT INTO execution_sessions (id, pipeline_id, status, started_at, finished_at, entries)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = $3, finished_at = $5, entries = $6
	`
	_, err = r.pool.Exec(ctx, query,
		s.ID,
		s.PipelineID,
		string(s.Status),
		s.StartedAt,
		s.FinishedAt,
		entriesJSON,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetByID возвращает session по ID.
func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExecutionSession, error) {
	query := `
		SELECT id, pipeline_id, status, started_at, finished_at, entries
		FROM execution_sessions
		WHERE id = $1
	`
	return r.scanSession(r.pool.QueryRow(ctx, query, id))
}

// ListByPipeline возвращает sessions pipeline, новые сверху.
func (r *SessionRepo) ListByPipeline(ctx context.Context, pipelineID uuid.UUID, limit int) ([]*domain.ExecutionSession, error) {
	query := `
		SELECT id, pipeline_id, status, started_at, finished_at, entries
		FROM execution_sessions
		WHERE pipeline_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, pipelineID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.ExecutionSession
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DeleteByPipeline удаляет все sessions pipeline.
func (r *SessionRepo) DeleteByPipeline(ctx context.Context, pipelineID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM execution_sessions WHERE pipeline_id = $1`, pipelineID)
	if err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

func (r *SessionRepo) scanSession(row pgx.Row) (*domain.ExecutionSession, error) {
	var s domain.ExecutionSession
	var entriesJSON []byte
	var status string

	err := row.Scan(
		&s.ID,
		&s.PipelineID,
		&status,
		&s.StartedAt,
		&s.FinishedAt,
		&entriesJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if err := json.Unmarshal(entriesJSON, &s.Entries); err != nil {
		return nil, fmt.Errorf("unmarshal entries: %w", err)
	}
	s.Status = domain.SessionStatus(status)

	return &s, nil
}
