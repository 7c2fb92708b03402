package domain

// JobResult — нормализованный результат remote job.
//
// Tagged union: поле Type определяет, какой из вариантов заполнен.
// Общие поля (ArtifactURL, Format) не зависят от типа job, поэтому
// state machine сохраняет результат единообразно для любого узла.
type JobResult struct {
	// Type — тип узла, породившего результат.
	Type NodeType `json:"type"`

	// JobID — идентификатор job на вычислительном сервисе.
	JobID string `json:"job_id,omitempty"`

	// ArtifactURL — ссылка на главный артефакт (структура, список
	// последовательностей, комплекс).
	ArtifactURL string `json:"artifact_url,omitempty"`

	// Format — формат артефакта: "pdb", "cif", "fasta", "sdf".
	Format string `json:"format,omitempty"`

	// Fingerprint — отпечаток конфигурации узла и его upstream-узлов
	// на момент успешного завершения. Используется для инвалидации
	// кэшированного success при повторном запуске.
	Fingerprint string `json:"fingerprint,omitempty"`

	// --- Варианты (ровно один не-nil, по Type) ---

	// Structure — результат structure-generation.
	Structure *StructureResult `json:"structure,omitempty"`

	// Design — результат sequence-design.
	Design *DesignResult `json:"design,omitempty"`

	// Prediction — результат structure-prediction.
	Prediction *PredictionResult `json:"prediction,omitempty"`

	// Docking — результат docking.
	Docking *DockingResult `json:"docking,omitempty"`
}

// StructureResult — результат генерации каркаса.
type StructureResult struct {
	// Backbones — количество сгенерированных каркасов.
	Backbones int `json:"backbones"`

	// ContigLength — длина сгенерированного контига (остатков).
	ContigLength int `json:"contig_length,omitempty"`
}

// DesignResult — результат подбора последовательности.
type DesignResult struct {
	// Sequences — подобранные аминокислотные последовательности.
	Sequences []string `json:"sequences"`

	// MeanScore — средний score дизайна (ниже — лучше).
	MeanScore float64 `json:"mean_score,omitempty"`
}

// PredictionResult — результат предсказания структуры.
type PredictionResult struct {
	// MeanPLDDT — средняя уверенность предсказания (0–100).
	MeanPLDDT float64 `json:"mean_plddt,omitempty"`

	// PTM — predicted TM-score (0–1).
	PTM float64 `json:"ptm,omitempty"`
}

// DockingResult — результат докинга.
type DockingResult struct {
	// Affinity — оценка аффинности лучшей позы (ккал/моль).
	Affinity float64 `json:"affinity,omitempty"`

	// Poses — количество сгенерированных поз.
	Poses int `json:"poses"`
}

// Summary возвращает краткое описание результата для журнала.
func (r *JobResult) Summary() map[string]any {
	out := map[string]any{
		"type":         string(r.Type),
		"artifact_url": r.ArtifactURL,
		"format":       r.Format,
	}
	switch {
	case r.Structure != nil:
		out["backbones"] = r.Structure.Backbones
	case r.Design != nil:
		out["sequences"] = len(r.Design.Sequences)
	case r.Prediction != nil:
		out["mean_plddt"] = r.Prediction.MeanPLDDT
	case r.Docking != nil:
		out["affinity"] = r.Docking.Affinity
	}
	return out
}
