package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
)

// ErrRemoteUnavailable — backend недоступен или ответил ошибкой.
var ErrRemoteUnavailable = errors.New("remote backend unavailable")

// ErrNotFound — backend не знает такой ресурс.
var ErrNotFound = errors.New("not found on remote backend")

// Remote — контракт удалённого хранилища pipelines.
//
// Реализации: Backend (HTTP API удалённого сервера) и Archive
// (локальный Postgres, когда движок сам является сервером хранения).
type Remote interface {
	SavePipeline(ctx context.Context, p *domain.Pipeline) error
	LoadPipeline(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error)
	ListPipelines(ctx context.Context, userID string) ([]domain.Pipeline, error)
	DeletePipeline(ctx context.Context, id uuid.UUID) error
	RenamePipeline(ctx context.Context, id uuid.UUID, name string) error
	SaveSession(ctx context.Context, s *domain.ExecutionSession) error
	ListSessions(ctx context.Context, pipelineID uuid.UUID, limit int) ([]*domain.ExecutionSession, error)
}

// Backend — Remote поверх HTTP API удалённого сервера хранения.
type Backend struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewBackend создаёт Backend. token пустой — запросы без авторизации.
func NewBackend(baseURL, token string) *Backend {
	return &Backend{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SavePipeline реализует Remote.
func (b *Backend) SavePipeline(ctx context.Context, p *domain.Pipeline) error {
	url := fmt.Sprintf("%s/api/v1/pipelines/%s", b.baseURL, p.ID)
	return b.send(ctx, http.MethodPut, url, p, nil)
}

// LoadPipeline реализует Remote.
func (b *Backend) LoadPipeline(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error) {
	url := fmt.Sprintf("%s/api/v1/pipelines/%s", b.baseURL, id)
	var p domain.Pipeline
	if err := b.send(ctx, http.MethodGet, url, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPipelines реализует Remote.
func (b *Backend) ListPipelines(ctx context.Context, userID string) ([]domain.Pipeline, error) {
	u := fmt.Sprintf("%s/api/v1/pipelines?user_id=%s", b.baseURL, url.QueryEscape(userID))
	var pipelines []domain.Pipeline
	if err := b.send(ctx, http.MethodGet, u, nil, &pipelines); err != nil {
		return nil, err
	}
	return pipelines, nil
}

// DeletePipeline реализует Remote.
func (b *Backend) DeletePipeline(ctx context.Context, id uuid.UUID) error {
	url := fmt.Sprintf("%s/api/v1/pipelines/%s", b.baseURL, id)
	return b.send(ctx, http.MethodDelete, url, nil, nil)
}

// RenamePipeline реализует Remote.
func (b *Backend) RenamePipeline(ctx context.Context, id uuid.UUID, name string) error {
	url := fmt.Sprintf("%s/api/v1/pipelines/%s", b.baseURL, id)
	return b.send(ctx, http.MethodPatch, url, map[string]string{"name": name}, nil)
}

// SaveSession реализует Remote.
func (b *Backend) SaveSession(ctx context.Context, s *domain.ExecutionSession) error {
	url := fmt.Sprintf("%s/api/v1/pipelines/%s/executions", b.baseURL, s.PipelineID)
	return b.send(ctx, http.MethodPost, url, s, nil)
}

// ListSessions реализует Remote.
func (b *Backend) ListSessions(ctx context.Context, pipelineID uuid.UUID, limit int) ([]*domain.ExecutionSession, error) {
	url := fmt.Sprintf("%s/api/v1/pipelines/%s/executions?limit=%d", b.baseURL, pipelineID, limit)
	var sessions []*domain.ExecutionSession
	if err := b.send(ctx, http.MethodGet, url, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// send выполняет HTTP-запрос и декодирует ответ в out (если не nil).
func (b *Backend) send(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("%w: %s: %s", ErrRemoteUnavailable, resp.Status, data)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	// Ответы API завёрнуты в {"data": ...}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRemoteUnavailable, err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRemoteUnavailable, err)
	}
	return nil
}
