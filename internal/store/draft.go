package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shaiso/Helix/internal/domain"
)

// draftKeyPrefix — префикс redis-ключей draft pipelines.
const draftKeyPrefix = "helix:draft:"

// draftTTL — срок жизни draft без активности.
const draftTTL = 30 * 24 * time.Hour

// ErrNoDraft — у пользователя нет сохранённого draft.
var ErrNoDraft = errors.New("no draft pipeline")

// DraftStore хранит текущий draft pipeline пользователя в Redis.
//
// Draft — быстрый локальный слой автосохранения: пишется на каждый
// flush координатора, переживает перезапуск процесса, не требует
// идентификации (анонимные пользователи получают общий ключ сессии).
type DraftStore struct {
	rdb *redis.Client
}

// NewDraftStore создаёт DraftStore.
func NewDraftStore(rdb *redis.Client) *DraftStore {
	return &DraftStore{rdb: rdb}
}

// SaveDraft сохраняет draft пользователя, продлевая TTL.
func (s *DraftStore) SaveDraft(ctx context.Context, userID string, p *domain.Pipeline) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.rdb.Set(ctx, draftKey(userID), data, draftTTL).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// LoadDraft загружает draft пользователя.
func (s *DraftStore) LoadDraft(ctx context.Context, userID string) (*domain.Pipeline, error) {
	data, err := s.rdb.Get(ctx, draftKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoDraft
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	var p domain.Pipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	return &p, nil
}

// DeleteDraft удаляет draft пользователя.
func (s *DraftStore) DeleteDraft(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, draftKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func draftKey(userID string) string {
	if userID == "" {
		userID = "anonymous"
	}
	return draftKeyPrefix + userID
}
