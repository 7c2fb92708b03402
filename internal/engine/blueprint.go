package engine

import (
	"fmt"
	"time"

	"github.com/shaiso/Helix/internal/domain"
)

// FromBlueprint создаёт draft pipeline из blueprint агента.
//
// В pipeline попадают только узлы из accepted (в порядке blueprint)
// и рёбра, оба конца которых приняты. Пустой accepted означает
// "принять все узлы".
func FromBlueprint(bp *domain.Blueprint, accepted []string, userID string, now time.Time) (*domain.Pipeline, error) {
	acceptedSet := make(map[string]bool, len(accepted))
	for _, id := range accepted {
		acceptedSet[id] = true
	}
	acceptAll := len(accepted) == 0

	name := bp.Name
	if name == "" {
		name = "Untitled pipeline"
	}

	p := domain.NewPipeline(name, userID, now)

	for _, bn := range bp.Nodes {
		if !acceptAll && !acceptedSet[bn.ID] {
			continue
		}
		node := domain.Node{
			ID:     bn.ID,
			Type:   bn.Type,
			Label:  bn.Label,
			Config: bn.Config,
			Status: domain.NodeStatusIdle,
		}
		if err := AddNode(p, node, now); err != nil {
			return nil, fmt.Errorf("blueprint node %s: %w", bn.ID, err)
		}
	}

	if len(p.Nodes) == 0 {
		return nil, ErrEmptyPipeline
	}

	for _, e := range bp.Edges {
		if p.Node(e.Source) == nil || p.Node(e.Target) == nil {
			continue // ребро к непринятому узлу отбрасывается
		}
		if err := AddEdge(p, e.Source, e.Target, now); err != nil {
			return nil, fmt.Errorf("blueprint edge %s->%s: %w", e.Source, e.Target, err)
		}
	}

	return p, nil
}
