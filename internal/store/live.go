package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
)

// Live — реестр живых экземпляров pipeline в памяти процесса.
//
// На pipeline существует не больше одного живого экземпляра: его
// мутирует executor, читает API, клонирует autosave. Все точки входа
// (HTTP handlers, scheduler, MQ consumer) обязаны резолвить pipeline
// через один и тот же Live — иначе у одной записи появляются два
// расходящихся экземпляра и два писателя.
type Live struct {
	coordinator *Coordinator

	mu   sync.Mutex
	byID map[uuid.UUID]*domain.Pipeline
}

// NewLive создаёт реестр поверх Coordinator.
func NewLive(coordinator *Coordinator) *Live {
	return &Live{
		coordinator: coordinator,
		byID:        make(map[uuid.UUID]*domain.Pipeline),
	}
}

// Track регистрирует экземпляр и возвращает живой экземпляр этого
// pipeline: уже зарегистрированный, если он есть, иначе переданный.
func (l *Live) Track(p *domain.Pipeline) *domain.Pipeline {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.byID[p.ID]; ok {
		return cur
	}
	l.byID[p.ID] = p
	return p
}

// Get возвращает живой экземпляр (nil, если не зарегистрирован).
func (l *Live) Get(id uuid.UUID) *domain.Pipeline {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byID[id]
}

// Replace безусловно замещает живой экземпляр (полный sync документа).
func (l *Live) Replace(p *domain.Pipeline) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID[p.ID] = p
}

// Forget удаляет экземпляр из реестра (delete pipeline).
func (l *Live) Forget(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byID, id)
}

// Resolve возвращает живой экземпляр pipeline, при необходимости
// загружая его из хранилища и регистрируя. Если экземпляр уже есть,
// хранилище не трогается: живое состояние авторитетнее сохранённого.
func (l *Live) Resolve(ctx context.Context, userID string, id uuid.UUID) (*domain.Pipeline, error) {
	if p := l.Get(id); p != nil {
		return p, nil
	}
	p, err := l.coordinator.LoadPipeline(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return l.Track(p), nil
}
