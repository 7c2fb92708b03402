package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Helix/internal/domain"
)

func TestAddNode_Validation(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		node    domain.Node
		wantErr error
	}{
		{
			name:    "empty id",
			node:    domain.Node{Type: domain.NodeTypeInput},
			wantErr: ErrEmptyNodeID,
		},
		{
			name:    "unknown type",
			node:    domain.Node{ID: "x", Type: "teleport"},
			wantErr: ErrUnknownNodeType,
		},
		{
			name: "ok",
			node: domain.Node{ID: "x", Type: domain.NodeTypeDocking},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.NewPipeline("test", "", now)
			err := AddNode(p, tt.node, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Node("x").Status != domain.NodeStatusIdle {
				t.Errorf("new node should start idle, got %s", p.Node("x").Status)
			}
		})
	}
}

func TestAddNode_Duplicate(t *testing.T) {
	now := time.Now()
	p := domain.NewPipeline("test", "", now)

	if err := AddNode(p, domain.Node{ID: "a", Type: domain.NodeTypeInput}, now); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := AddNode(p, domain.Node{ID: "a", Type: domain.NodeTypeInput}, now)
	if !errors.Is(err, ErrDuplicateNodeID) {
		t.Fatalf("expected ErrDuplicateNodeID, got %v", err)
	}
}

func TestAddEdge_Idempotent(t *testing.T) {
	p := buildPipeline(t, []string{"a", "b"}, nil)
	now := time.Now()

	if err := AddEdge(p, "a", "b", now); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := AddEdge(p, "a", "b", now); err != nil {
		t.Fatalf("second add should be no-op, got %v", err)
	}

	count := 0
	for _, e := range p.Edges {
		if e.Source == "a" && e.Target == "b" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly 1 edge a->b, got %d", count)
	}
}

func TestAddEdge_SelfEdge(t *testing.T) {
	p := buildPipeline(t, []string{"a"}, nil)

	err := AddEdge(p, "a", "a", time.Now())
	if !errors.Is(err, ErrSelfEdge) {
		t.Fatalf("expected ErrSelfEdge, got %v", err)
	}
}

func TestAddEdge_UnknownEndpoint(t *testing.T) {
	p := buildPipeline(t, []string{"a"}, nil)

	if err := AddEdge(p, "a", "ghost", time.Now()); !errors.Is(err, ErrEdgeEndpoint) {
		t.Errorf("expected ErrEdgeEndpoint for target, got %v", err)
	}
	if err := AddEdge(p, "ghost", "a", time.Now()); !errors.Is(err, ErrEdgeEndpoint) {
		t.Errorf("expected ErrEdgeEndpoint for source, got %v", err)
	}
}

func TestAddEdge_RejectsCycle(t *testing.T) {
	p := buildPipeline(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})

	err := AddEdge(p, "c", "a", time.Now())
	if !errors.Is(err, ErrCyclicGraph) {
		t.Fatalf("expected ErrCyclicGraph, got %v", err)
	}

	// Ребро не должно остаться после отката
	if p.HasEdge("c", "a") {
		t.Error("rejected edge must not remain in pipeline")
	}
}

func TestAddEdge_ReverseOfExistingEdge(t *testing.T) {
	// Прямое обратное ребро b→a при существующем a→b — это цикл длины 2
	p := buildPipeline(t, []string{"a", "b"}, [][2]string{{"a", "b"}})

	if err := AddEdge(p, "b", "a", time.Now()); !errors.Is(err, ErrCyclicGraph) {
		t.Fatalf("expected ErrCyclicGraph, got %v", err)
	}
}

func TestDeleteNode_CascadesEdges(t *testing.T) {
	p := buildPipeline(t, []string{"a", "b", "c"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}})

	if err := DeleteNode(p, "b", time.Now()); err != nil {
		t.Fatalf("delete node: %v", err)
	}

	if p.Node("b") != nil {
		t.Error("node b should be deleted")
	}
	for _, e := range p.Edges {
		if e.Source == "b" || e.Target == "b" {
			t.Errorf("edge %s->%s should be cascaded", e.Source, e.Target)
		}
	}
	if !p.HasEdge("a", "c") {
		t.Error("unrelated edge a->c should survive")
	}
}

func TestDeleteEdge_NoOpWhenMissing(t *testing.T) {
	p := buildPipeline(t, []string{"a", "b"}, nil)

	if err := DeleteEdge(p, "a", "b", time.Now()); err != nil {
		t.Fatalf("delete of missing edge should be no-op, got %v", err)
	}
}

func TestMutations_RejectedWhileRunning(t *testing.T) {
	p := buildPipeline(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	p.Status = domain.PipelineStatusRunning
	now := time.Now()

	if err := AddNode(p, domain.Node{ID: "c", Type: domain.NodeTypeInput}, now); !errors.Is(err, ErrPipelineRunning) {
		t.Errorf("AddNode: expected ErrPipelineRunning, got %v", err)
	}
	if err := UpdateNode(p, "a", NodeUpdate{}, now); !errors.Is(err, ErrPipelineRunning) {
		t.Errorf("UpdateNode: expected ErrPipelineRunning, got %v", err)
	}
	if err := DeleteNode(p, "a", now); !errors.Is(err, ErrPipelineRunning) {
		t.Errorf("DeleteNode: expected ErrPipelineRunning, got %v", err)
	}
	if err := AddEdge(p, "b", "a", now); !errors.Is(err, ErrPipelineRunning) {
		t.Errorf("AddEdge: expected ErrPipelineRunning, got %v", err)
	}
	if err := DeleteEdge(p, "a", "b", now); !errors.Is(err, ErrPipelineRunning) {
		t.Errorf("DeleteEdge: expected ErrPipelineRunning, got %v", err)
	}
}

func TestUpdateNode_PartialUpdate(t *testing.T) {
	p := buildPipeline(t, []string{"a"}, nil)
	node := p.Node("a")
	node.Label = "old"
	node.Config = map[string]any{"pdb_id": "1ABC"}

	label := "new"
	if err := UpdateNode(p, "a", NodeUpdate{Label: &label}, time.Now()); err != nil {
		t.Fatalf("update: %v", err)
	}

	if node.Label != "new" {
		t.Errorf("label not updated: %s", node.Label)
	}
	if node.Config["pdb_id"] != "1ABC" {
		t.Error("config should be untouched when update.Config is nil")
	}
}

func TestUpdateNode_TouchesUpdatedAt(t *testing.T) {
	p := buildPipeline(t, []string{"a"}, nil)
	before := p.UpdatedAt

	later := before.Add(5 * time.Second)
	if err := UpdateNode(p, "a", NodeUpdate{Config: map[string]any{"k": "v"}}, later); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !p.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt not touched: %v", p.UpdatedAt)
	}
}

func TestFromBlueprint_AcceptedSubset(t *testing.T) {
	bp := &domain.Blueprint{
		Name: "binder design",
		Nodes: []domain.BlueprintNode{
			{ID: "in", Type: domain.NodeTypeInput, Config: map[string]any{"pdb_id": "6M0J"}},
			{ID: "gen", Type: domain.NodeTypeStructureGen},
			{ID: "design", Type: domain.NodeTypeSequenceDesign},
			{ID: "dock", Type: domain.NodeTypeDocking},
		},
		Edges: []domain.Edge{
			{Source: "in", Target: "gen"},
			{Source: "gen", Target: "design"},
			{Source: "design", Target: "dock"},
		},
	}

	p, err := FromBlueprint(bp, []string{"in", "gen", "design"}, "user-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.Nodes) != 3 {
		t.Fatalf("expected 3 accepted nodes, got %d", len(p.Nodes))
	}
	if p.Node("dock") != nil {
		t.Error("rejected node must not appear in pipeline")
	}
	if len(p.Edges) != 2 {
		t.Errorf("expected 2 edges between accepted nodes, got %d", len(p.Edges))
	}
	if p.Status != domain.PipelineStatusDraft {
		t.Errorf("new pipeline should be draft, got %s", p.Status)
	}
	if p.UserID != "user-1" {
		t.Errorf("unexpected user id: %s", p.UserID)
	}
}

func TestFromBlueprint_EmptyAcceptedTakesAll(t *testing.T) {
	bp := &domain.Blueprint{
		Nodes: []domain.BlueprintNode{
			{ID: "a", Type: domain.NodeTypeInput},
			{ID: "b", Type: domain.NodeTypePrediction},
		},
		Edges: []domain.Edge{{Source: "a", Target: "b"}},
	}

	p, err := FromBlueprint(bp, nil, "", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Nodes) != 2 || len(p.Edges) != 1 {
		t.Errorf("expected full graph, got %d nodes %d edges", len(p.Nodes), len(p.Edges))
	}
}
