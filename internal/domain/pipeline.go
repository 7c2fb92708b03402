package domain

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline — направленный граф вычислительных шагов.
//
// Pipeline принадлежит пользовательской сессии. Структуру (узлы и рёбра)
// мутируют операции редактирования графа; статусы узлов мутирует
// state machine во время выполнения. Пока pipeline в статусе running,
// структурные правки запрещены.
type Pipeline struct {
	// ID — уникальный идентификатор pipeline.
	ID uuid.UUID `json:"id"`

	// Name — отображаемое имя.
	Name string `json:"name"`

	// UserID — идентификатор владельца (пусто для анонимного draft).
	UserID string `json:"user_id,omitempty"`

	// Nodes — узлы в порядке добавления.
	// Порядок значим: он определяет tie-break топологической сортировки.
	Nodes []Node `json:"nodes"`

	// Edges — рёбра зависимостей.
	Edges []Edge `json:"edges"`

	// Status — общий статус pipeline.
	Status PipelineStatus `json:"status"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPipeline создаёт пустой draft pipeline.
func NewPipeline(name, userID string, now time.Time) *Pipeline {
	return &Pipeline{
		ID:        uuid.New(),
		Name:      name,
		UserID:    userID,
		Nodes:     make([]Node, 0),
		Edges:     make([]Edge, 0),
		Status:    PipelineStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Node возвращает указатель на узел по ID (nil, если не найден).
func (p *Pipeline) Node(id string) *Node {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i]
		}
	}
	return nil
}

// HasEdge проверяет наличие ребра source → target.
func (p *Pipeline) HasEdge(source, target string) bool {
	for _, e := range p.Edges {
		if e.Source == source && e.Target == target {
			return true
		}
	}
	return false
}

// Upstream возвращает ID узлов, от которых зависит узел id (прямые зависимости).
func (p *Pipeline) Upstream(id string) []string {
	var deps []string
	for _, e := range p.Edges {
		if e.Target == id {
			deps = append(deps, e.Source)
		}
	}
	return deps
}

// Downstream возвращает ID узлов, зависящих от узла id (прямые зависимые).
func (p *Pipeline) Downstream(id string) []string {
	var deps []string
	for _, e := range p.Edges {
		if e.Source == id {
			deps = append(deps, e.Target)
		}
	}
	return deps
}

// IsRunning возвращает true, если pipeline выполняется.
func (p *Pipeline) IsRunning() bool {
	return p.Status == PipelineStatusRunning
}

// Touch обновляет UpdatedAt.
func (p *Pipeline) Touch(now time.Time) {
	p.UpdatedAt = now
}

// Clone возвращает глубокую копию pipeline.
// Используется координатором, чтобы снимки для сохранения
// не делили память с изменяемым оригиналом.
func (p *Pipeline) Clone() *Pipeline {
	cp := *p
	cp.Nodes = make([]Node, len(p.Nodes))
	for i := range p.Nodes {
		cp.Nodes[i] = p.Nodes[i]
		cp.Nodes[i].Config = cloneMap(p.Nodes[i].Config)
		if p.Nodes[i].Result != nil {
			res := *p.Nodes[i].Result
			cp.Nodes[i].Result = &res
		}
	}
	cp.Edges = make([]Edge, len(p.Edges))
	copy(cp.Edges, p.Edges)
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
