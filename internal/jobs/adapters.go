package jobs

import (
	"fmt"
	"time"

	"github.com/shaiso/Helix/internal/domain"
)

// Потолки ожидания по типам jobs. Генерация и предсказание — самые
// долгие; дизайн последовательности обычно быстрее.
const (
	structureGenCeiling   = 45 * time.Minute
	sequenceDesignCeiling = 20 * time.Minute
	predictionCeiling     = 60 * time.Minute
	dockingCeiling        = 30 * time.Minute
)

// upstreamArtifact возвращает URL артефакта первой завершённой
// зависимости (или пустую строку).
func upstreamArtifact(upstream []*domain.Node) string {
	for _, n := range upstream {
		if n.Result != nil && n.Result.ArtifactURL != "" {
			return n.Result.ArtifactURL
		}
	}
	return ""
}

// hasUpstreamOfType проверяет наличие зависимости заданного типа.
func hasUpstreamOfType(upstream []*domain.Node, types ...domain.NodeType) bool {
	for _, n := range upstream {
		for _, t := range types {
			if n.Type == t {
				return true
			}
		}
	}
	return false
}

// --- structure-generation ---

// StructureGenRequest — типизированный запрос генерации каркаса.
type StructureGenRequest struct {
	// InputURL — опциональная стартовая структура (motif scaffolding).
	InputURL string `json:"input_url,omitempty"`

	// Contig — описание контига (например, "A1-80/0 70-100").
	Contig string `json:"contig"`

	// NumDesigns — количество каркасов.
	NumDesigns int `json:"num_designs"`
}

// StructureGenAdapter — адаптер генерации белкового каркаса.
type StructureGenAdapter struct{}

func (a *StructureGenAdapter) Type() domain.NodeType { return domain.NodeTypeStructureGen }

func (a *StructureGenAdapter) Validate(node *domain.Node, upstream []*domain.Node) error {
	if getString(node.Config, "contig") == "" {
		return fmt.Errorf("%w: node %s: contig is required", ErrInvalidConfig, node.ID)
	}
	return nil
}

func (a *StructureGenAdapter) BuildRequest(node *domain.Node, upstream []*domain.Node) (any, error) {
	return &StructureGenRequest{
		InputURL:   firstNonEmpty(getString(node.Config, "input_url"), upstreamArtifact(upstream)),
		Contig:     getString(node.Config, "contig"),
		NumDesigns: getInt(node.Config, "num_designs", 1),
	}, nil
}

func (a *StructureGenAdapter) Normalize(jobID string, raw map[string]any) (*domain.JobResult, error) {
	url := getString(raw, "pdb_url")
	if url == "" {
		return nil, fmt.Errorf("%w: structure-generation result has no pdb_url", ErrMalformedResponse)
	}
	return &domain.JobResult{
		Type:        domain.NodeTypeStructureGen,
		JobID:       jobID,
		ArtifactURL: url,
		Format:      "pdb",
		Structure: &domain.StructureResult{
			Backbones:    getInt(raw, "backbones", 1),
			ContigLength: getInt(raw, "contig_length", 0),
		},
	}, nil
}

func (a *StructureGenAdapter) Ceiling() time.Duration  { return structureGenCeiling }
func (a *StructureGenAdapter) Expected() time.Duration { return 10 * time.Minute }

// --- sequence-design ---

// SequenceDesignRequest — типизированный запрос дизайна последовательности.
type SequenceDesignRequest struct {
	// StructureURL — каркас, под который подбирается последовательность.
	StructureURL string `json:"structure_url"`

	// NumSequences — количество последовательностей.
	NumSequences int `json:"num_sequences"`

	// Temperature — температура сэмплирования.
	Temperature float64 `json:"temperature,omitempty"`
}

// SequenceDesignAdapter — адаптер дизайна последовательности.
type SequenceDesignAdapter struct{}

func (a *SequenceDesignAdapter) Type() domain.NodeType { return domain.NodeTypeSequenceDesign }

func (a *SequenceDesignAdapter) Validate(node *domain.Node, upstream []*domain.Node) error {
	if getString(node.Config, "structure_url") == "" &&
		!hasUpstreamOfType(upstream, domain.NodeTypeStructureGen, domain.NodeTypeInput, domain.NodeTypePrediction) {
		return fmt.Errorf("%w: node %s: structure_url or an upstream structure is required", ErrInvalidConfig, node.ID)
	}
	return nil
}

func (a *SequenceDesignAdapter) BuildRequest(node *domain.Node, upstream []*domain.Node) (any, error) {
	structure := firstNonEmpty(getString(node.Config, "structure_url"), upstreamArtifact(upstream))
	if structure == "" {
		return nil, fmt.Errorf("%w: node %s: no structure to design against", ErrInvalidConfig, node.ID)
	}
	return &SequenceDesignRequest{
		StructureURL: structure,
		NumSequences: getInt(node.Config, "num_sequences", 8),
		Temperature:  getFloat(node.Config, "temperature", 0.1),
	}, nil
}

func (a *SequenceDesignAdapter) Normalize(jobID string, raw map[string]any) (*domain.JobResult, error) {
	seqs := getStringSlice(raw, "sequences")
	if len(seqs) == 0 {
		return nil, fmt.Errorf("%w: sequence-design result has no sequences", ErrMalformedResponse)
	}
	return &domain.JobResult{
		Type:        domain.NodeTypeSequenceDesign,
		JobID:       jobID,
		ArtifactURL: getString(raw, "fasta_url"),
		Format:      "fasta",
		Design: &domain.DesignResult{
			Sequences: seqs,
			MeanScore: getFloat(raw, "mean_score", 0),
		},
	}, nil
}

func (a *SequenceDesignAdapter) Ceiling() time.Duration  { return sequenceDesignCeiling }
func (a *SequenceDesignAdapter) Expected() time.Duration { return 5 * time.Minute }

// --- structure-prediction ---

// PredictionRequest — типизированный запрос предсказания структуры.
type PredictionRequest struct {
	// Sequence — аминокислотная последовательность.
	Sequence string `json:"sequence"`

	// Model — модель предсказания (опционально).
	Model string `json:"model,omitempty"`
}

// PredictionAdapter — адаптер предсказания структуры.
type PredictionAdapter struct{}

func (a *PredictionAdapter) Type() domain.NodeType { return domain.NodeTypePrediction }

func (a *PredictionAdapter) Validate(node *domain.Node, upstream []*domain.Node) error {
	if getString(node.Config, "sequence") == "" &&
		!hasUpstreamOfType(upstream, domain.NodeTypeSequenceDesign, domain.NodeTypeInput) {
		return fmt.Errorf("%w: node %s: sequence or an upstream sequence source is required", ErrInvalidConfig, node.ID)
	}
	return nil
}

func (a *PredictionAdapter) BuildRequest(node *domain.Node, upstream []*domain.Node) (any, error) {
	sequence := getString(node.Config, "sequence")
	if sequence == "" {
		// Берём первую последовательность из upstream дизайна
		for _, n := range upstream {
			if n.Result != nil && n.Result.Design != nil && len(n.Result.Design.Sequences) > 0 {
				sequence = n.Result.Design.Sequences[0]
				break
			}
		}
	}
	if sequence == "" {
		return nil, fmt.Errorf("%w: node %s: no sequence to predict", ErrInvalidConfig, node.ID)
	}
	return &PredictionRequest{
		Sequence: sequence,
		Model:    getString(node.Config, "model"),
	}, nil
}

func (a *PredictionAdapter) Normalize(jobID string, raw map[string]any) (*domain.JobResult, error) {
	url := getString(raw, "pdb_url")
	if url == "" {
		return nil, fmt.Errorf("%w: structure-prediction result has no pdb_url", ErrMalformedResponse)
	}
	return &domain.JobResult{
		Type:        domain.NodeTypePrediction,
		JobID:       jobID,
		ArtifactURL: url,
		Format:      "pdb",
		Prediction: &domain.PredictionResult{
			MeanPLDDT: getFloat(raw, "mean_plddt", 0),
			PTM:       getFloat(raw, "ptm", 0),
		},
	}, nil
}

func (a *PredictionAdapter) Ceiling() time.Duration  { return predictionCeiling }
func (a *PredictionAdapter) Expected() time.Duration { return 15 * time.Minute }

// --- docking ---

// DockingRequest — типизированный запрос докинга.
type DockingRequest struct {
	// ReceptorURL — структура рецептора.
	ReceptorURL string `json:"receptor_url"`

	// Ligand — SMILES лиганда или URL структуры.
	Ligand string `json:"ligand"`

	// Exhaustiveness — глубина поиска поз.
	Exhaustiveness int `json:"exhaustiveness,omitempty"`
}

// DockingAdapter — адаптер докинга.
type DockingAdapter struct{}

func (a *DockingAdapter) Type() domain.NodeType { return domain.NodeTypeDocking }

func (a *DockingAdapter) Validate(node *domain.Node, upstream []*domain.Node) error {
	if getString(node.Config, "ligand") == "" {
		return fmt.Errorf("%w: node %s: ligand is required", ErrInvalidConfig, node.ID)
	}
	if getString(node.Config, "receptor_url") == "" && len(upstream) == 0 {
		return fmt.Errorf("%w: node %s: receptor_url or an upstream structure is required", ErrInvalidConfig, node.ID)
	}
	return nil
}

func (a *DockingAdapter) BuildRequest(node *domain.Node, upstream []*domain.Node) (any, error) {
	receptor := firstNonEmpty(getString(node.Config, "receptor_url"), upstreamArtifact(upstream))
	if receptor == "" {
		return nil, fmt.Errorf("%w: node %s: no receptor structure", ErrInvalidConfig, node.ID)
	}
	return &DockingRequest{
		ReceptorURL:    receptor,
		Ligand:         getString(node.Config, "ligand"),
		Exhaustiveness: getInt(node.Config, "exhaustiveness", 8),
	}, nil
}

func (a *DockingAdapter) Normalize(jobID string, raw map[string]any) (*domain.JobResult, error) {
	url := getString(raw, "complex_url")
	if url == "" {
		return nil, fmt.Errorf("%w: docking result has no complex_url", ErrMalformedResponse)
	}
	return &domain.JobResult{
		Type:        domain.NodeTypeDocking,
		JobID:       jobID,
		ArtifactURL: url,
		Format:      "pdb",
		Docking: &domain.DockingResult{
			Affinity: getFloat(raw, "affinity", 0),
			Poses:    getInt(raw, "poses", 1),
		},
	}, nil
}

func (a *DockingAdapter) Ceiling() time.Duration  { return dockingCeiling }
func (a *DockingAdapter) Expected() time.Duration { return 8 * time.Minute }

// --- helpers ---

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getStringSlice(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
