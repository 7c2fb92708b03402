package jobs

import (
	"errors"
	"testing"

	"github.com/shaiso/Helix/internal/domain"
)

func TestRegistry_KnownTypes(t *testing.T) {
	r := NewRegistry()

	for _, nodeType := range []domain.NodeType{
		domain.NodeTypeStructureGen,
		domain.NodeTypeSequenceDesign,
		domain.NodeTypePrediction,
		domain.NodeTypeDocking,
	} {
		a, err := r.Get(nodeType)
		if err != nil {
			t.Errorf("%s: %v", nodeType, err)
			continue
		}
		if a.Type() != nodeType {
			t.Errorf("%s: adapter reports type %s", nodeType, a.Type())
		}
		if a.Ceiling() <= 0 {
			t.Errorf("%s: ceiling must be positive", nodeType)
		}
	}

	if _, err := r.Get(domain.NodeTypeInput); !errors.Is(err, ErrUnknownJobType) {
		t.Errorf("input has no adapter, expected ErrUnknownJobType, got %v", err)
	}
}

func TestAdapters_Validate(t *testing.T) {
	tests := []struct {
		name     string
		adapter  Adapter
		node     *domain.Node
		upstream []*domain.Node
		wantErr  bool
	}{
		{
			name:    "structure-gen missing contig",
			adapter: &StructureGenAdapter{},
			node:    &domain.Node{ID: "g", Config: map[string]any{}},
			wantErr: true,
		},
		{
			name:    "structure-gen ok",
			adapter: &StructureGenAdapter{},
			node:    &domain.Node{ID: "g", Config: map[string]any{"contig": "70-100"}},
		},
		{
			name:    "design without structure or upstream",
			adapter: &SequenceDesignAdapter{},
			node:    &domain.Node{ID: "d", Config: map[string]any{}},
			wantErr: true,
		},
		{
			name:    "design with upstream structure",
			adapter: &SequenceDesignAdapter{},
			node:    &domain.Node{ID: "d", Config: map[string]any{}},
			upstream: []*domain.Node{
				{ID: "g", Type: domain.NodeTypeStructureGen},
			},
		},
		{
			name:    "prediction without sequence or upstream",
			adapter: &PredictionAdapter{},
			node:    &domain.Node{ID: "p", Config: map[string]any{}},
			wantErr: true,
		},
		{
			name:    "prediction with inline sequence",
			adapter: &PredictionAdapter{},
			node:    &domain.Node{ID: "p", Config: map[string]any{"sequence": "MKVL"}},
		},
		{
			name:    "docking missing ligand",
			adapter: &DockingAdapter{},
			node:    &domain.Node{ID: "k", Config: map[string]any{"receptor_url": "https://x/r.pdb"}},
			wantErr: true,
		},
		{
			name:    "docking ok",
			adapter: &DockingAdapter{},
			node:    &domain.Node{ID: "k", Config: map[string]any{"receptor_url": "https://x/r.pdb", "ligand": "CCO"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.adapter.Validate(tt.node, tt.upstream)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestPredictionAdapter_SequenceFromUpstreamDesign(t *testing.T) {
	adapter := &PredictionAdapter{}
	upstream := []*domain.Node{
		{
			ID:   "d",
			Type: domain.NodeTypeSequenceDesign,
			Result: &domain.JobResult{
				Type:   domain.NodeTypeSequenceDesign,
				Design: &domain.DesignResult{Sequences: []string{"MKVLAA", "MKVLGG"}},
			},
		},
	}

	payload, err := adapter.BuildRequest(&domain.Node{ID: "p", Config: map[string]any{}}, upstream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, ok := payload.(*PredictionRequest)
	if !ok {
		t.Fatalf("expected *PredictionRequest, got %T", payload)
	}
	if req.Sequence != "MKVLAA" {
		t.Errorf("expected first upstream sequence, got %s", req.Sequence)
	}
}

func TestSequenceDesignAdapter_StructureFromUpstream(t *testing.T) {
	adapter := &SequenceDesignAdapter{}
	upstream := []*domain.Node{
		{
			ID:   "g",
			Type: domain.NodeTypeStructureGen,
			Result: &domain.JobResult{
				Type:        domain.NodeTypeStructureGen,
				ArtifactURL: "https://store/backbone.pdb",
			},
		},
	}

	payload, err := adapter.BuildRequest(&domain.Node{ID: "d", Config: map[string]any{"num_sequences": float64(4)}}, upstream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := payload.(*SequenceDesignRequest)
	if req.StructureURL != "https://store/backbone.pdb" {
		t.Errorf("expected upstream artifact, got %s", req.StructureURL)
	}
	if req.NumSequences != 4 {
		t.Errorf("expected num_sequences from config, got %d", req.NumSequences)
	}
}

func TestAdapters_Normalize(t *testing.T) {
	t.Run("structure-gen", func(t *testing.T) {
		res, err := (&StructureGenAdapter{}).Normalize("j1", map[string]any{
			"pdb_url":   "https://store/bb.pdb",
			"backbones": float64(4),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Type != domain.NodeTypeStructureGen || res.Structure == nil {
			t.Fatal("wrong union variant")
		}
		if res.Structure.Backbones != 4 {
			t.Errorf("backbones: %d", res.Structure.Backbones)
		}
		if res.Design != nil || res.Prediction != nil || res.Docking != nil {
			t.Error("exactly one variant must be set")
		}
	})

	t.Run("design", func(t *testing.T) {
		res, err := (&SequenceDesignAdapter{}).Normalize("j2", map[string]any{
			"sequences": []any{"AAA", "BBB"},
			"fasta_url": "https://store/seqs.fasta",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Design == nil || len(res.Design.Sequences) != 2 {
			t.Fatalf("sequences not normalized: %+v", res)
		}
		if res.Format != "fasta" {
			t.Errorf("format: %s", res.Format)
		}
	})

	t.Run("prediction missing pdb_url", func(t *testing.T) {
		_, err := (&PredictionAdapter{}).Normalize("j3", map[string]any{"mean_plddt": 91.2})
		if !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("docking", func(t *testing.T) {
		res, err := (&DockingAdapter{}).Normalize("j4", map[string]any{
			"complex_url": "https://store/complex.pdb",
			"affinity":    -8.4,
			"poses":       float64(9),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Docking == nil || res.Docking.Affinity != -8.4 || res.Docking.Poses != 9 {
			t.Errorf("docking variant: %+v", res.Docking)
		}
	})
}
