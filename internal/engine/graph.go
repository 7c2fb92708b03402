package engine

import (
	"fmt"
	"time"

	"github.com/shaiso/Helix/internal/domain"
)

// AddNode добавляет узел в pipeline.
//
// Узел добавляется в конец списка; порядок добавления определяет
// tie-break топологической сортировки. Правки запрещены, пока
// pipeline выполняется.
func AddNode(p *domain.Pipeline, node domain.Node, now time.Time) error {
	if p.IsRunning() {
		return ErrPipelineRunning
	}
	if node.ID == "" {
		return ErrEmptyNodeID
	}
	if !node.Type.IsKnown() {
		return fmt.Errorf("%w: %s", ErrUnknownNodeType, node.Type)
	}
	if p.Node(node.ID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateNodeID, node.ID)
	}

	if node.Status == "" {
		node.Status = domain.NodeStatusIdle
	}
	p.Nodes = append(p.Nodes, node)
	p.Touch(now)
	return nil
}

// NodeUpdate — изменяемые поля узла.
// Nil-поле означает "не трогать".
type NodeUpdate struct {
	Label  *string
	Config map[string]any
}

// UpdateNode обновляет label и/или config узла.
func UpdateNode(p *domain.Pipeline, id string, update NodeUpdate, now time.Time) error {
	if p.IsRunning() {
		return ErrPipelineRunning
	}
	node := p.Node(id)
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	if update.Label != nil {
		node.Label = *update.Label
	}
	if update.Config != nil {
		node.Config = update.Config
	}
	p.Touch(now)
	return nil
}

// DeleteNode удаляет узел и все рёбра, которые его касаются.
func DeleteNode(p *domain.Pipeline, id string, now time.Time) error {
	if p.IsRunning() {
		return ErrPipelineRunning
	}
	idx := -1
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	p.Nodes = append(p.Nodes[:idx], p.Nodes[idx+1:]...)

	edges := p.Edges[:0]
	for _, e := range p.Edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	p.Edges = edges

	p.Touch(now)
	return nil
}

// AddEdge добавляет ребро source → target.
//
// Операция идемпотентна: повторное добавление существующего ребра —
// no-op. Ребро, замыкающее цикл (в том числе обратное к уже
// существующему пути), отклоняется с ErrCyclicGraph.
func AddEdge(p *domain.Pipeline, source, target string, now time.Time) error {
	if p.IsRunning() {
		return ErrPipelineRunning
	}
	if source == target {
		return ErrSelfEdge
	}
	if p.Node(source) == nil {
		return fmt.Errorf("%w: %s", ErrEdgeEndpoint, source)
	}
	if p.Node(target) == nil {
		return fmt.Errorf("%w: %s", ErrEdgeEndpoint, target)
	}
	if p.HasEdge(source, target) {
		return nil
	}

	p.Edges = append(p.Edges, domain.Edge{Source: source, Target: target})
	if _, err := Sort(p); err != nil {
		// Откатываем добавление
		p.Edges = p.Edges[:len(p.Edges)-1]
		return ErrCyclicGraph
	}

	p.Touch(now)
	return nil
}

// DeleteEdge удаляет ребро source → target.
// Удаление несуществующего ребра — no-op.
func DeleteEdge(p *domain.Pipeline, source, target string, now time.Time) error {
	if p.IsRunning() {
		return ErrPipelineRunning
	}
	for i, e := range p.Edges {
		if e.Source == source && e.Target == target {
			p.Edges = append(p.Edges[:i], p.Edges[i+1:]...)
			p.Touch(now)
			return nil
		}
	}
	return nil
}

// Validate проверяет структурную целостность графа:
// рёбра ссылаются на существующие узлы, нет self-edges, нет циклов.
func Validate(p *domain.Pipeline) error {
	if len(p.Nodes) == 0 {
		return ErrEmptyPipeline
	}

	seen := make(map[string]bool, len(p.Nodes))
	for i := range p.Nodes {
		node := &p.Nodes[i]
		if node.ID == "" {
			return ErrEmptyNodeID
		}
		if seen[node.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, node.ID)
		}
		seen[node.ID] = true

		if !node.Type.IsKnown() {
			return fmt.Errorf("%w: %s", ErrUnknownNodeType, node.Type)
		}
	}

	for _, e := range p.Edges {
		if e.Source == e.Target {
			return ErrSelfEdge
		}
		if !seen[e.Source] {
			return fmt.Errorf("%w: %s", ErrEdgeEndpoint, e.Source)
		}
		if !seen[e.Target] {
			return fmt.Errorf("%w: %s", ErrEdgeEndpoint, e.Target)
		}
	}

	if _, err := Sort(p); err != nil {
		return err
	}
	return nil
}
