package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
	"github.com/shaiso/Helix/internal/repo"
)

// Archive — Remote поверх локального Postgres.
//
// Используется, когда движок сам является сервером хранения:
// координатор пишет в те же таблицы, которые читает HTTP API.
type Archive struct {
	pipelines *repo.PipelineRepo
	sessions  *repo.SessionRepo
}

// NewArchive создаёт Archive.
func NewArchive(pipelines *repo.PipelineRepo, sessions *repo.SessionRepo) *Archive {
	return &Archive{pipelines: pipelines, sessions: sessions}
}

// SavePipeline реализует Remote.
func (a *Archive) SavePipeline(ctx context.Context, p *domain.Pipeline) error {
	return a.pipelines.Save(ctx, p)
}

// LoadPipeline реализует Remote.
func (a *Archive) LoadPipeline(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error) {
	p, err := a.pipelines.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListPipelines реализует Remote.
func (a *Archive) ListPipelines(ctx context.Context, userID string) ([]domain.Pipeline, error) {
	return a.pipelines.ListByUser(ctx, userID)
}

// DeletePipeline реализует Remote.
func (a *Archive) DeletePipeline(ctx context.Context, id uuid.UUID) error {
	err := a.pipelines.Delete(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// RenamePipeline реализует Remote.
func (a *Archive) RenamePipeline(ctx context.Context, id uuid.UUID, name string) error {
	err := a.pipelines.Rename(ctx, id, name)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// SaveSession реализует Remote.
func (a *Archive) SaveSession(ctx context.Context, s *domain.ExecutionSession) error {
	return a.sessions.Save(ctx, s)
}

// ListSessions реализует Remote.
func (a *Archive) ListSessions(ctx context.Context, pipelineID uuid.UUID, limit int) ([]*domain.ExecutionSession, error) {
	return a.sessions.ListByPipeline(ctx, pipelineID, limit)
}
