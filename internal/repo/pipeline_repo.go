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

// PipelineRepo — репозиторий для работы с pipelines.
//
// Граф (узлы и рёбра) хранится единым JSONB-документом: pipeline
// сохраняется и загружается целиком, частичных обновлений графа нет.
type PipelineRepo struct {
	pool *pgxpool.Pool
}

// NewPipelineRepo создаёт новый PipelineRepo.
func NewPipelineRepo(pool *pgxpool.Pool) *PipelineRepo {
	return &PipelineRepo{pool: pool}
}

// pipelineDoc — JSONB-представление графа.
type pipelineDoc struct {
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}

// Save сохраняет pipeline (upsert по ID).
func (r *PipelineRepo) Save(ctx context.Context, p *domain.Pipeline) error {
	doc, err := json.Marshal(pipelineDoc{Nodes: p.Nodes, Edges: p.Edges})
	if err != nil {
		return fmt.Errorf("marshal pipeline doc: %w", err)
	}

	query := `
		INSERT INTO pipelines (id, name, user_id, doc, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = $2, doc = $4, status = $5, updated_at = $7
	`
	_, err = r.pool.Exec(ctx, query,
		p.ID,
		p.Name,
		p.UserID,
		doc,
		string(p.Status),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save pipeline: %w", err)
	}
	return nil
}

// GetByID возвращает pipeline по ID.
func (r *PipelineRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error) {
	query := `
		SELECT id, name, user_id, doc, status, created_at, updated_at
		FROM pipelines
		WHERE id = $1
	`
	return r.scanPipeline(r.pool.QueryRow(ctx, query, id))
}

// ListByUser возвращает pipelines пользователя, новые сверху.
func (r *PipelineRepo) ListByUser(ctx context.Context, userID string) ([]domain.Pipeline, error) {
	query := `
		SELECT id, name, user_id, doc, status, created_at, updated_at
		FROM pipelines
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []domain.Pipeline
	for rows.Next() {
		p, err := r.scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, *p)
	}
	return pipelines, rows.Err()
}

// Rename переименовывает pipeline.
func (r *PipelineRepo) Rename(ctx context.Context, id uuid.UUID, name string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE pipelines SET name = $2, updated_at = NOW() WHERE id = $1
	`, id, name)
	if err != nil {
		return fmt.Errorf("rename pipeline: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет pipeline (каскадно удалит sessions и schedules).
func (r *PipelineRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM pipelines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PipelineRepo) scanPipeline(row pgx.Row) (*domain.Pipeline, error) {
	var p domain.Pipeline
	var docJSON []byte
	var status string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.UserID,
		&docJSON,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pipeline: %w", err)
	}

	var doc pipelineDoc
	if err := json.Unmarshal(docJSON, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal pipeline doc: %w", err)
	}
	p.Nodes = doc.Nodes
	p.Edges = doc.Edges
	p.Status = domain.PipelineStatus(status)

	return &p, nil
}
